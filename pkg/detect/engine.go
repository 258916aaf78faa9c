// Package detect runs the registered detector suite against a code graph in
// parallel, merges results deterministically, and isolates each detector's
// panics and errors from the rest of the run (spec sec 4.5 "Detector
// Engine").
package detect

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codegraph-dev/codegraph/pkg/alg/cms"
)

// DefaultMaxWorkers bounds auto-sized worker pools (spec "auto = min(available
// parallelism, 16)").
const DefaultMaxWorkers = 16

// DefaultEngineMaxFindings is the engine-wide cap applied to the merged,
// sorted finding list (spec "engine-wide cap (default 10 000)").
const DefaultEngineMaxFindings = 10_000

// ProgressFunc is invoked after each detector completes (spec "Progress
// reporting").
type ProgressFunc func(detectorName string, completed, total int)

// Options configures an Engine run.
type Options struct {
	Workers           int
	EngineMaxFindings int
	Progress          ProgressFunc
}

func (o Options) workerCount() int {
	if o.Workers > 0 {
		return o.Workers
	}

	n := runtime.GOMAXPROCS(0)
	if n > DefaultMaxWorkers {
		return DefaultMaxWorkers
	}

	return n
}

func (o Options) engineMaxFindings() int {
	if o.EngineMaxFindings > 0 {
		return o.EngineMaxFindings
	}

	return DefaultEngineMaxFindings
}

// DetectorResult records one detector's outcome (spec
// "DetectorResult{name, findings|error, duration_ms, success}").
type DetectorResult struct {
	Name       string
	Findings   []Finding
	Err        error
	DurationMS int64
	Success    bool
}

// Result is the outcome of a full engine run.
type Result struct {
	Findings  []Finding
	Detectors []DetectorResult
	Truncated bool
}

// Engine holds a fixed registration of detectors and runs them against a
// Context (spec "Register N detectors, run them against the graph, return
// the merged findings").
type Engine struct {
	detectors []Detector
	// dup approximates how often a near-identical finding signature
	// recurs within a single run, used to throttle runaway detectors
	// before the hard max_findings cap bites.
	dup *cms.Sketch
}

// New creates an engine over the given detectors, preserving registration
// order (spec "4. Run dependent detectors sequentially in registration
// order").
func New(detectors ...Detector) *Engine {
	sketch, _ := cms.New(0.001, 0.01)

	return &Engine{detectors: detectors, dup: sketch}
}

// Run executes every registered detector and returns the merged, sorted
// result (spec sec 4.5 "Execution").
func (e *Engine) Run(ctx context.Context, dctx *Context, opts Options) (*Result, error) {
	independent, dependent := e.partition()

	total := len(independent) + len(dependent)
	completed := 0

	results := make([]DetectorResult, 0, total)

	indResults, err := e.runIndependent(ctx, dctx, independent, opts, &completed, total)
	if err != nil {
		return nil, err
	}

	results = append(results, indResults...)

	var prior []Finding
	for _, r := range indResults {
		prior = append(prior, r.Findings...)
	}

	depResults := e.runDependent(ctx, dctx, dependent, prior, opts, &completed, total)
	results = append(results, depResults...)

	merged := make([]Finding, 0, total*8)
	for _, r := range results {
		merged = append(merged, r.Findings...)
	}

	merged = e.dedupeBySignature(merged)

	sortFindings(merged)

	truncated := false

	maxFindings := opts.engineMaxFindings()
	if len(merged) > maxFindings {
		merged = merged[:maxFindings]
		truncated = true
	}

	return &Result{Findings: merged, Detectors: results, Truncated: truncated}, nil
}

func (e *Engine) partition() (independent, dependent []Detector) {
	for _, d := range e.detectors {
		if d.IsDependent() {
			dependent = append(dependent, d)
		} else {
			independent = append(independent, d)
		}
	}

	return independent, dependent
}

// runIndependent runs every independent detector concurrently on a worker
// pool sized by opts (spec "3. Run all independent detectors in parallel on
// a worker pool sized by config").
func (e *Engine) runIndependent(
	ctx context.Context, dctx *Context, detectors []Detector, opts Options, completed *int, total int,
) ([]DetectorResult, error) {
	results := make([]DetectorResult, len(detectors))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(opts.workerCount())

	for i, d := range detectors {
		i, d := i, d

		group.Go(func() error {
			results[i] = e.invoke(gctx, dctx, d, nil)
			reportProgress(opts.Progress, d.Name(), completed, total)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// runDependent runs every dependent detector sequentially, in registration
// order, after independents complete (spec "4. Run dependent detectors
// sequentially in registration order after independents complete").
func (e *Engine) runDependent(
	ctx context.Context, dctx *Context, detectors []Detector, prior []Finding, opts Options, completed *int, total int,
) []DetectorResult {
	results := make([]DetectorResult, 0, len(detectors))

	for _, d := range detectors {
		r := e.invoke(ctx, dctx, d, prior)
		results = append(results, r)
		reportProgress(opts.Progress, d.Name(), completed, total)

		prior = append(prior, r.Findings...)
	}

	return results
}

func reportProgress(fn ProgressFunc, name string, completed *int, total int) {
	if fn == nil {
		return
	}

	*completed++
	fn(name, *completed, total)
}

// invoke runs a single detector, recovering panics into a failed
// DetectorResult so other detectors continue (spec "5. Each detector
// invocation is wrapped so that panics become failures... does not
// propagate").
func (e *Engine) invoke(ctx context.Context, dctx *Context, d Detector, prior []Finding) (result DetectorResult) {
	start := time.Now()

	result.Name = d.Name()

	findings, err := e.runSafely(ctx, dctx, d, prior)

	result.DurationMS = time.Since(start).Milliseconds()

	if err != nil {
		result.Err = err
		result.Success = false

		return result
	}

	if limit := d.MaxFindings(); limit > 0 && len(findings) > limit {
		findings = findings[:limit]
	}

	result.Findings = findings
	result.Success = true

	return result
}

func (e *Engine) runSafely(ctx context.Context, dctx *Context, d Detector, prior []Finding) (findings []Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detector %q panicked: %v", d.Name(), r)
		}
	}()

	return d.Run(ctx, dctx, prior)
}

// dedupeBySignature drops findings whose (detector, first file, title)
// signature has already appeared more than 100 times within this run, guarding
// against a single misbehaving detector flooding the merged list before the
// hard max_findings cap is reached.
func (e *Engine) dedupeBySignature(findings []Finding) []Finding {
	if e.dup == nil {
		return findings
	}

	const perSignatureLimit = 100

	e.dup.Reset()

	out := make([]Finding, 0, len(findings))

	for _, f := range findings {
		key := []byte(f.Detector + "|" + f.primaryFile() + "|" + f.Title)

		e.dup.Add(key, 1)

		if e.dup.Count(key) > perSignatureLimit {
			continue
		}

		out = append(out, f)
	}

	return out
}

// sortFindings orders findings by severity desc, then file, then line, then
// detector (spec "7. Sort merged findings by severity descending"; display
// ordering invariant in sec 3).
func sortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]

		if a.Severity.ordinal() != b.Severity.ordinal() {
			return a.Severity.ordinal() < b.Severity.ordinal()
		}

		if a.primaryFile() != b.primaryFile() {
			return a.primaryFile() < b.primaryFile()
		}

		if a.LineStart != b.LineStart {
			return a.LineStart < b.LineStart
		}

		return a.Detector < b.Detector
	})
}
