// Package textmetrics computes complexity, Halstead, and nesting metrics
// directly over raw source lines and a parsemodel.FunctionDecl's line range,
// since this domain's external parser produces no full AST/UAST to walk
// (spec sec 2: detectors share a "text/complexity metrics" helper layer).
package textmetrics

import (
	"regexp"
	"strings"
)

// decisionKeyword matches tokens that add one branch to cyclomatic
// complexity: conditionals, loops, exception handling, and short-circuit
// boolean operators, across the common C-family/Python/Ruby keyword set the
// teacher's complexity analyzer recognized over UAST node types.
var decisionKeyword = regexp.MustCompile(
	`\b(if|else\s+if|elif|for|while|case|catch|except|rescue|when)\b|&&|\|\||\?\?`,
)

// CyclomaticComplexity counts decision points in lines plus one, the
// standard McCabe definition (teacher: "DecisionPoints" + base path).
func CyclomaticComplexity(lines []string) int {
	complexity := 1

	for _, line := range lines {
		complexity += len(decisionKeyword.FindAllString(stripComment(line), -1))
	}

	return complexity
}

// NestingDepth returns the maximum brace nesting depth observed across
// lines. Only "{" and "}" are counted; indentation-delimited bodies (as in
// Python) are not tracked and report a depth of 0.
func NestingDepth(lines []string) int {
	depth, maxDepth := 0, 0

	for _, line := range lines {
		clean := stripComment(line)

		depth += strings.Count(clean, "{") - strings.Count(clean, "}")
		if depth < 0 {
			depth = 0
		}

		if depth > maxDepth {
			maxDepth = depth
		}
	}

	return maxDepth
}

// stripComment trims a trailing "//" or "#" line comment so decision
// keywords inside comments aren't double counted. This is a lexical
// heuristic, not a real tokenizer, so it can be fooled by string literals
// containing these markers.
func stripComment(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}

	if i := strings.Index(line, "#"); i >= 0 {
		line = line[:i]
	}

	return line
}
