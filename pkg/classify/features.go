// Package classify extracts a fixed 28-feature vector per finding and
// scores it against category-aware thresholds to estimate whether the
// finding is a true or false positive (spec sec 4.7).
package classify

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/codegraph-dev/codegraph/pkg/alg/levenshtein"
	"github.com/codegraph-dev/codegraph/pkg/detect"
	"github.com/codegraph-dev/codegraph/pkg/graph"
)

// NumFeatures is the fixed length of every extracted vector.
const NumFeatures = 28

// Feature group boundaries, named per spec sec 4.7 so callers can slice a
// vector by group without hardcoding offsets.
const (
	GroupIdentity      = 0  // 0-4
	GroupCodeStructure = 5  // 5-14
	GroupGit           = 15 // 15-21
	GroupPath          = 22 // 22-24
	GroupCrossFinding  = 25 // 25-27
)

// entity-type encoding for feature 5.
const (
	entityFile     = 0.0
	entityFunction = 1.0
	entityClass    = 2.0
)

// fpPathIndicators and tpPathIndicators are fuzzily matched (Levenshtein
// distance <= 1 per path segment) against every segment of a finding's
// file path (spec "FP-path-indicator count"/"TP-path-indicator count";
// fuzzy matching grounded on pkg/alg/levenshtein).
var fpPathIndicators = []string{"test", "tests", "mock", "mocks", "fixture", "fixtures", "example", "examples", "generated", "vendor", "testdata"}

var tpPathIndicators = []string{"auth", "payment", "payments", "security", "admin", "crypto", "session", "token", "password", "billing"}

// Extractor builds feature vectors against a fixed graph snapshot and
// accumulates cross-finding statistics as findings are processed.
type Extractor struct {
	store       *graph.Store
	importCycle map[string]struct{} // "file:"+path -> present, membership in an import cycle.
	lev         levenshtein.Context
}

// NewExtractor builds an Extractor over store, precomputing the import-
// cycle membership set once (spec "SCC membership (is the file in a
// cycle)").
func NewExtractor(store *graph.Store) *Extractor {
	e := &Extractor{store: store, importCycle: make(map[string]struct{})}

	for _, cycle := range store.FindImportCycles() {
		for _, qn := range cycle {
			e.importCycle[qn] = struct{}{}
		}
	}

	return e
}

// FileContext precomputes the cross-finding group over one file's findings,
// so callers extract every finding in a file without rescanning the whole
// set per finding.
type FileContext struct {
	Path           string
	LOC            int
	FindingsByFile int
	DetectorCounts map[string]int
}

// BuildFileContext summarizes findings restricted to path (spec "findings
// density in same file"/"same-detector count in file").
func (e *Extractor) BuildFileContext(path string, findings []detect.Finding) FileContext {
	fc := FileContext{Path: path, DetectorCounts: make(map[string]int)}

	if f := e.fileNode(path); f != nil {
		fc.LOC = f.LOC()
	}

	for _, finding := range findings {
		if finding.PrimaryFile() != path {
			continue
		}

		fc.FindingsByFile++
		fc.DetectorCounts[finding.Detector]++
	}

	return fc
}

// Extract computes the 28-feature vector for finding, given the
// precomputed file context it belongs to and the detector's running
// historical false-positive rate (spec "historical FP rate").
func (e *Extractor) Extract(finding detect.Finding, fc FileContext, historicalFPRate float64) [NumFeatures]float64 {
	var v [NumFeatures]float64

	e.identity(&v, finding)
	e.codeStructure(&v, finding)
	e.git(&v, finding)
	e.path(&v, finding)
	e.crossFinding(&v, finding, fc, historicalFPRate)

	return v
}

func (e *Extractor) identity(v *[NumFeatures]float64, f detect.Finding) {
	v[0] = float64(xxhash.Sum64String(f.Detector) % 32)
	v[1] = float64(f.Severity.Ordinal())

	confidence := f.Confidence
	if confidence == 0 {
		confidence = 0.5
	}

	v[2] = confidence
	v[3] = float64(f.Category.Ordinal())

	if f.CWEID != "" {
		v[4] = 1
	}
}

func (e *Extractor) codeStructure(v *[NumFeatures]float64, f detect.Finding) {
	path := f.PrimaryFile()

	entity := e.entityFor(path, f.LineStart)

	fileNode := e.fileNode(path)
	fileLOC := 0

	if fileNode != nil {
		fileLOC = fileNode.LOC()
	}

	functionCount := len(e.store.GetFunctionsInFile(path))

	var entityType float64 = entityFile

	var functionLOC int

	var complexity, nesting int

	var fanIn, fanOut int

	if entity != nil {
		functionLOC = entity.LOC()

		switch entity.Kind {
		case graph.KindFunction:
			entityType = entityFunction
		case graph.KindClass:
			entityType = entityClass
		}

		if c, ok := entity.Complexity(); ok {
			complexity = c
		}

		if n, ok := entity.NestingDepth(); ok {
			nesting = n
		}

		fanIn = e.store.CallFanIn(entity.QualifiedName)
		fanOut = e.store.CallFanOut(entity.QualifiedName)
	}

	lineSpan := 1.0
	if f.HasLineRange && f.LineEnd >= f.LineStart {
		lineSpan = float64(f.LineEnd-f.LineStart) + 1
	}

	spanNormalized := 0.0
	if functionLOC > 0 {
		spanNormalized = lineSpan / float64(functionLOC)
	}

	inCycle := 0.0
	if _, ok := e.importCycle["file:"+path]; ok {
		inCycle = 1
	}

	v[5] = entityType
	v[6] = float64(functionLOC)
	v[7] = float64(fileLOC)
	v[8] = float64(functionCount)
	v[9] = spanNormalized
	v[10] = float64(complexity)
	v[11] = float64(nesting)
	v[12] = float64(fanIn)
	v[13] = float64(fanOut)
	v[14] = inCycle
}

func (e *Extractor) git(v *[NumFeatures]float64, f detect.Finding) {
	path := f.PrimaryFile()
	entity := e.entityFor(path, f.LineStart)
	if entity == nil {
		entity = e.fileNode(path)
	}

	if entity == nil {
		return
	}

	ageDays, recentlyCreated := e.age(entity)
	commitCount, _ := entity.CommitCount()
	authorCount, _ := entity.AuthorCount()
	majorFraction, minorCount := e.contributorSplit(entity)

	v[15] = math.Log(ageDays + 1)
	v[16] = float64(commitCount)
	v[17] = float64(authorCount)
	v[18] = float64(len(e.store.GetModifications(entity.QualifiedName)))

	if recentlyCreated {
		v[19] = 1
	}

	v[20] = majorFraction
	v[21] = float64(minorCount)
}

// age returns days since last_modified (0 when absent) and whether the
// entity's earliest observed commit falls within 30 days.
func (e *Extractor) age(n *graph.Node) (ageDays float64, recentlyCreated bool) {
	lastModified, ok := n.LastModified()
	if !ok {
		return 0, false
	}

	t, err := parseTime(lastModified)
	if err != nil {
		return 0, false
	}

	ageDays = nowUTC().Sub(t).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}

	var earliest float64 = -1

	for _, commitQN := range e.store.GetModifications(n.QualifiedName) {
		c := e.store.GetNode(commitQN)
		if c == nil {
			continue
		}

		ts, ok := c.Properties["timestamp"].(string)
		if !ok {
			continue
		}

		ct, err := parseTime(ts)
		if err != nil {
			continue
		}

		days := nowUTC().Sub(ct).Hours() / 24
		if earliest < 0 || days > earliest {
			earliest = days
		}
	}

	recentlyCreated = earliest >= 0 && earliest <= 30

	return ageDays, recentlyCreated
}

// contributorSplit tallies per-author commit counts across an entity's
// linked Commit nodes and returns the majority contributor's share of
// commits and the count of authors responsible for only one commit.
func (e *Extractor) contributorSplit(n *graph.Node) (majorFraction float64, minorCount int) {
	counts := make(map[string]int)

	for _, commitQN := range e.store.GetModifications(n.QualifiedName) {
		c := e.store.GetNode(commitQN)
		if c == nil {
			continue
		}

		author, _ := c.Author()
		counts[author]++
	}

	total := 0
	maxCount := 0

	for _, c := range counts {
		total += c

		if c > maxCount {
			maxCount = c
		}

		if c == 1 {
			minorCount++
		}
	}

	if total == 0 {
		return 0, 0
	}

	return float64(maxCount) / float64(total), minorCount
}

func (e *Extractor) path(v *[NumFeatures]float64, f detect.Finding) {
	path := f.PrimaryFile()
	slash := filepath.ToSlash(path)
	segments := strings.Split(slash, "/")

	v[22] = float64(len(segments) - 1)
	v[23] = float64(e.countFuzzyMatches(segments, fpPathIndicators))
	v[24] = float64(e.countFuzzyMatches(segments, tpPathIndicators))
}

// countFuzzyMatches counts path segments within Levenshtein distance 1 of
// any indicator, case-insensitively (spec "fuzzy path-indicator matching").
func (e *Extractor) countFuzzyMatches(segments, indicators []string) int {
	count := 0

	for _, seg := range segments {
		seg = strings.ToLower(seg)

		for _, ind := range indicators {
			if e.lev.Distance(seg, ind) <= 1 {
				count++

				break
			}
		}
	}

	return count
}

func (e *Extractor) crossFinding(v *[NumFeatures]float64, f detect.Finding, fc FileContext, historicalFPRate float64) {
	density := 0.0
	if fc.LOC > 0 {
		density = float64(fc.FindingsByFile) / (float64(fc.LOC) / 1000.0)
	}

	v[25] = density
	v[26] = float64(fc.DetectorCounts[f.Detector])
	v[27] = historicalFPRate
}

func (e *Extractor) fileNode(path string) *graph.Node {
	return e.store.GetNode("file:" + path)
}

// entityFor returns the innermost Function or Class node in path covering
// line, preferring a function over a class when both contain it.
func (e *Extractor) entityFor(path string, line int) *graph.Node {
	var best *graph.Node

	for _, fn := range e.store.GetFunctionsInFile(path) {
		if line >= fn.LineStart && line <= fn.LineEnd {
			if best == nil || fn.LOC() < best.LOC() {
				best = fn
			}
		}
	}

	if best != nil {
		return best
	}

	for _, cl := range e.store.GetClassesInFile(path) {
		if line >= cl.LineStart && line <= cl.LineEnd {
			if best == nil || cl.LOC() < best.LOC() {
				best = cl
			}
		}
	}

	return best
}
