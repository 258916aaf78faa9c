// Package detectors implements the concrete detector suite run by
// pkg/detect's engine: security patterns, graph-structural issues, and
// code-quality smells, plus per-file debt scoring (spec sec 4.6).
package detectors

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/codegraph-dev/codegraph/pkg/detect"
	"github.com/codegraph-dev/codegraph/pkg/graph"
)

// securityPattern is one regex-driven security check (spec "Security (regex
// over file contents, context-aware)").
type securityPattern struct {
	name        string
	title       string
	description string
	suggestion  string
	cwe         string
	severity    detect.Severity
	pattern     *regexp.Regexp
}

var securityPatterns = []securityPattern{
	{
		name:        "security_sql_injection",
		title:       "Possible SQL injection",
		description: "A SQL statement appears to be built via string concatenation or formatting with a variable, rather than a parameterized query.",
		suggestion:  "Use parameterized queries or an ORM/query builder instead of concatenating user input into SQL.",
		cwe:         "CWE-89",
		severity:    detect.SeverityHigh,
		pattern:     regexp.MustCompile(`(?i)(select|insert|update|delete)\s+[^;"']{0,200}["']\s*\+|fmt\.Sprintf\([^)]*\b(select|insert|update|delete)\b`),
	},
	{
		name:        "security_command_injection",
		title:       "Possible command injection",
		description: "A shell command is constructed with untrusted input and passed to a command-execution call.",
		suggestion:  "Avoid shell interpretation of untrusted input; pass arguments as a slice rather than through a shell.",
		cwe:         "CWE-78",
		severity:    detect.SeverityCritical,
		pattern:     regexp.MustCompile(`(?i)(exec\.Command|os\.system|subprocess\.(call|run|popen))\([^)]*\+`),
	},
	{
		name:        "security_path_traversal",
		title:       "Possible path traversal",
		description: "A file path is built from untrusted input without sanitizing '..' segments.",
		suggestion:  "Clean and validate the path, and confirm it stays within the intended root directory.",
		cwe:         "CWE-22",
		severity:    detect.SeverityHigh,
		pattern:     regexp.MustCompile(`(?i)(open|readfile|os\.open)\([^)]*\+[^)]*\)`),
	},
	{
		name:        "security_xss",
		title:       "Possible cross-site scripting",
		description: "Untrusted input appears to be written directly into an HTML response without escaping.",
		suggestion:  "Escape output with the templating engine's auto-escaping context, or an explicit HTML sanitizer.",
		cwe:         "CWE-79",
		severity:    detect.SeverityHigh,
		pattern:     regexp.MustCompile(`(?i)(innerHTML\s*=|dangerouslySetInnerHTML|w\.Write\(\[\]byte\([^)]*\+)`),
	},
	{
		name:        "security_insecure_crypto",
		title:       "Use of a broken or weak cryptographic primitive",
		description: "MD5, SHA1, or DES are not suitable for security-sensitive hashing or encryption.",
		suggestion:  "Use SHA-256 or better for hashing, and AES-GCM or ChaCha20-Poly1305 for encryption.",
		cwe:         "CWE-327",
		severity:    detect.SeverityMedium,
		pattern:     regexp.MustCompile(`(?i)\b(md5|sha1|des\.New)\b`),
	},
	{
		name:        "security_unsafe_deserialization",
		title:       "Unsafe deserialization of untrusted data",
		description: "A generic deserializer (pickle, yaml.load, ObjectInputStream) is applied to data that may come from outside the process.",
		suggestion:  "Use a safe-by-default deserializer (yaml.safe_load, a schema-validated codec) instead.",
		cwe:         "CWE-502",
		severity:    detect.SeverityCritical,
		pattern:     regexp.MustCompile(`(?i)\b(pickle\.loads?|yaml\.load\(|ObjectInputStream)\b`),
	},
	{
		name:        "security_hardcoded_secret",
		title:       "Hardcoded credential or secret",
		description: "A string literal assigned to a variable named like a password, token, key, or secret.",
		suggestion:  "Load secrets from environment variables or a secret manager, never from source.",
		cwe:         "CWE-798",
		severity:    detect.SeverityHigh,
		pattern:     regexp.MustCompile(`(?i)\b(password|passwd|secret|api_?key|access_?token)\s*[:=]\s*["'][^"']{4,}["']`),
	},
	{
		name:        "security_broad_exception",
		title:       "Overly broad exception handler",
		description: "A catch-all exception handler silently swallows errors rather than handling specific failure modes.",
		suggestion:  "Catch the specific exception types you expect and handle unexpected ones by propagating them.",
		cwe:         "CWE-396",
		severity:    detect.SeverityLow,
		pattern:     regexp.MustCompile(`(?i)except\s*:\s*$|except\s+Exception\s*:|catch\s*\(\s*Exception\s+\w+\s*\)|catch\s*\(\s*\)`),
	},
}

// nestedQuantifier matches a quantified group whose body itself contains a
// quantifier, such as (a+)+, the classic catastrophic-backtracking shape (spec "regex denial
// of service (nested quantifiers in a regex-construction call)").
var nestedQuantifier = regexp.MustCompile(`\([^()]*[+*][^()]*\)[+*]`)

// regexConstructionCall recognizes the call forms that compile a pattern,
// so the nested-quantifier check only fires on actual regex literals.
var regexConstructionCall = regexp.MustCompile(`(?i)(regexp\.MustCompile|regexp\.Compile|re\.compile)\(\s*["'` + "`" + `]([^"'` + "`" + `]*)["'` + "`" + `]`)

// patternDetector runs one or more securityPattern regexes over every
// production source file's content (spec sec 4.6 "shared conventions").
type patternDetector struct {
	detect.Base
	patterns []securityPattern
}

// NewSecurityDetectors returns one detect.Detector per security pattern
// family member, all independent and read-only (spec "Representative
// families: Security").
func NewSecurityDetectors() []detect.Detector {
	out := make([]detect.Detector, 0, len(securityPatterns)+1)

	for _, p := range securityPatterns {
		out = append(out, patternDetector{
			Base: detect.Base{
				NameValue:        p.name,
				DescriptionValue: p.description,
				CategoryValue:    detect.CategorySecurity,
			},
			patterns: []securityPattern{p},
		})
	}

	out = append(out, regexDoSDetector{
		Base: detect.Base{
			NameValue:        "security_regex_dos",
			DescriptionValue: "Detects regex literals with nested quantifiers vulnerable to catastrophic backtracking",
			CategoryValue:    detect.CategorySecurity,
		},
	})

	out = append(out, syncBlockingInAsyncDetector{
		Base: detect.Base{
			NameValue:        "security_sync_blocking_in_async",
			DescriptionValue: "Detects synchronous blocking calls inside async functions, directly or through a callee that already blocks",
			CategoryValue:    detect.CategorySecurity,
		},
	})

	return out
}

func (d patternDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	forEachProductionFile(dctx, func(path string, lines []string) {
		for _, p := range d.patterns {
			for i, line := range lines {
				if isSuppressed(lines, i) {
					continue
				}

				if !p.pattern.MatchString(line) {
					continue
				}

				findings = append(findings, detect.Finding{
					ID:            detect.NewFindingID(p.name, path, i+1, p.title),
					Detector:      p.name,
					Severity:      p.severity,
					Title:         p.title,
					Description:   p.description,
					AffectedFiles: []string{path},
					SuggestedFix:  p.suggestion,
					CWEID:         p.cwe,
					Category:      detect.CategorySecurity,
					LineStart:     i + 1,
					LineEnd:       i + 1,
					HasLineRange:  true,
					Confidence:    0.5,
				})
			}
		}
	})

	return findings, nil
}

// regexDoSDetector flags regex literals passed to a compile call whose
// pattern text contains nested quantifiers (a quantified group whose body
// is itself quantified).
type regexDoSDetector struct {
	detect.Base
}

func (d regexDoSDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	forEachProductionFile(dctx, func(path string, lines []string) {
		for i, line := range lines {
			if isSuppressed(lines, i) {
				continue
			}

			m := regexConstructionCall.FindStringSubmatch(line)
			if m == nil {
				continue
			}

			if !nestedQuantifier.MatchString(m[2]) {
				continue
			}

			findings = append(findings, detect.Finding{
				ID:            detect.NewFindingID(d.Name(), path, i+1, "Regular expression vulnerable to catastrophic backtracking"),
				Detector:      d.Name(),
				Severity:      detect.SeverityMedium,
				Title:         "Regular expression vulnerable to catastrophic backtracking",
				Description:   "This regex pattern contains nested quantifiers, which can cause exponential backtracking on crafted input.",
				AffectedFiles: []string{path},
				SuggestedFix:  "Rewrite the pattern to avoid nested unbounded quantifiers, or bound input length before matching.",
				CWEID:         "CWE-1333",
				Category:      detect.CategorySecurity,
				LineStart:     i + 1,
				LineEnd:       i + 1,
				HasLineRange:  true,
				Confidence:    0.6,
			})
		}
	})

	return findings, nil
}

// isSuppressed reports whether line i (0-indexed) or the line before it
// carries an inline suppression marker (spec "Respect inline suppression
// markers on the previous line or the current line").
func isSuppressed(lines []string, i int) bool {
	const marker = "codegraph:ignore"

	if strings.Contains(lines[i], marker) {
		return true
	}

	if i > 0 && strings.Contains(lines[i-1], marker) {
		return true
	}

	return false
}

// blockingCallPattern matches calls known to block the calling thread or
// event loop (spec "missing-await, sync-blocking calls in async functions").
var blockingCallPattern = regexp.MustCompile(`(?i)(time\.sleep|Thread\.sleep|readFileSync|writeFileSync|execSync|spawnSync|requests\.(get|post|put|delete|head|patch)|urllib\.request|urlopen|subprocess\.(run|call|check_output)|os\.system|std::thread::sleep|std::fs::(read|write)|ioutil\.ReadFile|os\.ReadFile)\(`)

// asyncAlternative suggests a non-blocking replacement for a matched
// blocking call.
func asyncAlternative(call string) string {
	lower := strings.ToLower(call)

	switch {
	case strings.Contains(lower, "time.sleep"):
		return "asyncio.sleep()"
	case strings.Contains(lower, "thread.sleep"):
		return "await new Promise(r => setTimeout(r, ms))"
	case strings.Contains(lower, "readfilesync"):
		return "await fs.promises.readFile()"
	case strings.Contains(lower, "writefilesync"):
		return "await fs.promises.writeFile()"
	case strings.Contains(lower, "execsync"), strings.Contains(lower, "spawnsync"):
		return "await exec() from child_process/promises or execa"
	case strings.Contains(lower, "requests."):
		return "aiohttp, httpx, or aiofiles"
	case strings.Contains(lower, "urllib"), strings.Contains(lower, "urlopen"):
		return "aiohttp.ClientSession()"
	case strings.Contains(lower, "subprocess"), strings.Contains(lower, "os.system"):
		return "asyncio.create_subprocess_exec()"
	case strings.Contains(lower, "std::thread::sleep"):
		return "tokio::time::sleep() or the async-std equivalent"
	case strings.Contains(lower, "std::fs"), strings.Contains(lower, "ioutil.readfile"), strings.Contains(lower, "os.readfile"):
		return "tokio::fs, async-std::fs, or an async file read"
	default:
		return "an async-native equivalent"
	}
}

// syncBlockingInAsyncDetector flags blocking calls reached from async
// functions, either directly in the function's own body or transitively
// through a chain of callees one of which is already known to block (spec
// "missing-await, sync-blocking calls in async functions (including
// transitive detection by flagging async callers of functions already known
// to contain blocking calls)").
type syncBlockingInAsyncDetector struct {
	detect.Base
}

func (d syncBlockingInAsyncDetector) Run(_ context.Context, dctx *detect.Context, _ []detect.Finding) ([]detect.Finding, error) {
	var findings []detect.Finding

	functions := dctx.Store.GetNodesByKind(graph.KindFunction)

	fileLines := make(map[string][]string, len(functions))

	linesOf := func(path string) []string {
		if ls, ok := fileLines[path]; ok {
			return ls
		}

		entry, err := dctx.Files.Get(path)
		if err != nil {
			fileLines[path] = nil

			return nil
		}

		ls := entry.Lines()
		fileLines[path] = ls

		return ls
	}

	blockingFuncs := make(map[string]bool, len(functions))

	for _, fn := range functions {
		lines := linesOf(fn.FilePath)
		start, end := functionBodyRange(lines, fn)

		for i := start; i < end; i++ {
			if blockingCallPattern.MatchString(lines[i]) {
				blockingFuncs[fn.QualifiedName] = true

				break
			}
		}
	}

	for _, fn := range functions {
		if !fn.IsAsync() || !IsProductionPath(fn.FilePath) {
			continue
		}

		lines := linesOf(fn.FilePath)
		start, end := functionBodyRange(lines, fn)

		for i := start; i < end; i++ {
			if isSuppressed(lines, i) {
				continue
			}

			call := blockingCallPattern.FindString(lines[i])
			if call == "" {
				continue
			}

			lowerCall := strings.ToLower(call)

			severity := detect.SeverityMedium
			if strings.Contains(lowerCall, "sleep") || strings.Contains(call, "Sync") || strings.Contains(lowerCall, "subprocess") {
				severity = detect.SeverityHigh
			}

			findings = append(findings, detect.Finding{
				ID:              detect.NewFindingID(d.Name(), fn.FilePath, i+1, "Blocking call in async function"),
				Detector:        d.Name(),
				Severity:        severity,
				Title:           fmt.Sprintf("Blocking call `%s` in async function %s", call, fn.Name),
				Description:     "A synchronous blocking call inside an async function blocks the event loop, preventing other async tasks from running while it waits.",
				AffectedFiles:   []string{fn.FilePath},
				SuggestedFix:    fmt.Sprintf("Replace with an async alternative: %s", asyncAlternative(call)),
				EstimatedEffort: "20 minutes",
				Category:        detect.CategorySecurity,
				CWEID:           "CWE-400",
				WhyItMatters:    "Blocking calls in async code defeat the purpose of async/await and can stall the whole event loop.",
				LineStart:       i + 1,
				LineEnd:         i + 1,
				HasLineRange:    true,
				Confidence:      0.6,
			})
		}

		chain := transitiveBlockingChain(dctx.Store, fn.QualifiedName, blockingFuncs)
		if len(chain) == 0 {
			continue
		}

		findings = append(findings, detect.Finding{
			ID:            detect.NewFindingID(d.Name(), fn.FilePath, fn.LineStart, "Transitive blocking call in async function"),
			Detector:      d.Name(),
			Severity:      detect.SeverityMedium,
			Title:         fmt.Sprintf("%s is async but calls into a blocking function via %s", fn.Name, strings.Join(chain, " -> ")),
			Description:   "One of this async function's callees, directly or further down the call chain, contains a blocking call; the blocking is hidden behind a layer of indirection.",
			AffectedFiles: []string{fn.FilePath},
			SuggestedFix:  "Trace the call chain to the blocking function and replace it with an async equivalent, or isolate it behind a dedicated worker/thread pool.",
			Category:      detect.CategorySecurity,
			CWEID:         "CWE-400",
			WhyItMatters:  "Blocking calls reached through several layers of async functions are easy to miss in review and still stall the event loop.",
			LineStart:     fn.LineStart,
			LineEnd:       fn.LineEnd,
			HasLineRange:  true,
			Confidence:    0.4,
		})
	}

	return findings, nil
}

// functionBodyRange clamps fn's declared line range to lines' bounds,
// returning a 0-indexed [start, end) slice range.
func functionBodyRange(lines []string, fn *graph.Node) (start, end int) {
	start = fn.LineStart - 1
	if start < 0 {
		start = 0
	}

	end = fn.LineEnd
	if end > len(lines) {
		end = len(lines)
	}

	if start > end {
		start = end
	}

	return start, end
}

// transitiveBlockingChain BFS-searches fn's callees for the nearest function
// already known to block, returning the call path to it (names, not
// qualified names) or nil if none is reachable.
func transitiveBlockingChain(store *graph.Store, start string, blockingFuncs map[string]bool) []string {
	type step struct {
		qn   string
		path []string
	}

	const maxDepth = 5

	visited := map[string]bool{start: true}
	queue := []step{{qn: start}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if len(cur.path) >= maxDepth {
			continue
		}

		for _, callee := range store.GetCallees(cur.qn) {
			if visited[callee] {
				continue
			}

			visited[callee] = true

			name := callee
			if n := store.GetNode(callee); n != nil {
				name = n.Name
			}

			path := append(append([]string{}, cur.path...), name)

			if blockingFuncs[callee] {
				return path
			}

			queue = append(queue, step{qn: callee, path: path})
		}
	}

	return nil
}
