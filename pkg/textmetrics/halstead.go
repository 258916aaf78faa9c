package textmetrics

import (
	"math"
	"regexp"
)

// Halstead measures adapted from the teacher's halstead.MetricsCalculator,
// operating on lexically tokenized source text instead of UAST operator/
// operand nodes.
type Halstead struct {
	DistinctOperators int
	DistinctOperands  int
	TotalOperators    int
	TotalOperands     int
	Vocabulary        int
	Length            int
	Volume            float64
	Difficulty        float64
	Effort            float64
	TimeToProgramSecs float64
	DeliveredBugs     float64
}

// Divisors used by the Halstead derived-measure formulas (teacher:
// halstead.DifficultyValue/TimeToProgramValue/DeliveredBugsValue).
const (
	difficultyDivisor    = 2.0
	timeToProgramDivisor = 18.0
	deliveredBugsDivisor = 3000.0
)

// operatorToken matches the common operator/punctuation set across
// C-family, Python, and Ruby-like syntaxes.
var operatorToken = regexp.MustCompile(
	`==|!=|<=|>=|&&|\|\||\+\+|--|::|->|=>|[-+*/%=<>!&|^~?:;,.(){}\[\]]`,
)

// operandToken matches identifiers, numbers, and string/char literals.
var operandToken = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'|\b[A-Za-z_][A-Za-z0-9_]*\b|\b\d+(?:\.\d+)?\b`)

// keyword is excluded from operand counting (language keywords behave as
// operators, not named values).
var keyword = map[string]struct{}{
	"if": {}, "else": {}, "for": {}, "while": {}, "return": {}, "func": {}, "def": {},
	"class": {}, "struct": {}, "interface": {}, "package": {}, "import": {}, "switch": {},
	"case": {}, "break": {}, "continue": {}, "var": {}, "const": {}, "let": {}, "true": {},
	"false": {}, "nil": {}, "null": {}, "none": {}, "try": {}, "catch": {}, "except": {},
	"finally": {}, "throw": {}, "raise": {}, "new": {}, "delete": {}, "public": {}, "private": {},
}

// ComputeHalstead tokenizes lines into operators/operands and derives the
// standard Halstead measures (teacher: calculateBasicMeasures through
// calculateTimeAndBugs in halstead.MetricsCalculator).
func ComputeHalstead(lines []string) Halstead {
	operatorCounts := make(map[string]int)
	operandCounts := make(map[string]int)

	for _, raw := range lines {
		line := stripComment(raw)

		for _, op := range operatorToken.FindAllString(line, -1) {
			operatorCounts[op]++
		}

		for _, operand := range operandToken.FindAllString(line, -1) {
			if _, isKeyword := keyword[operand]; isKeyword {
				operatorCounts[operand]++
				continue
			}

			operandCounts[operand]++
		}
	}

	h := Halstead{
		DistinctOperators: len(operatorCounts),
		DistinctOperands:  len(operandCounts),
		TotalOperators:    sumCounts(operatorCounts),
		TotalOperands:     sumCounts(operandCounts),
	}

	h.Vocabulary = h.DistinctOperators + h.DistinctOperands
	h.Length = h.TotalOperators + h.TotalOperands

	if h.Vocabulary > 0 {
		h.Volume = float64(h.Length) * math.Log2(float64(h.Vocabulary))
	}

	if h.DistinctOperands > 0 {
		h.Difficulty = (float64(h.DistinctOperators) / difficultyDivisor) * (float64(h.TotalOperands) / float64(h.DistinctOperands))
	}

	h.Effort = h.Difficulty * h.Volume
	h.TimeToProgramSecs = h.Effort / timeToProgramDivisor
	h.DeliveredBugs = h.Volume / deliveredBugsDivisor

	return h
}

func sumCounts(m map[string]int) int {
	sum := 0
	for _, v := range m {
		sum += v
	}

	return sum
}
