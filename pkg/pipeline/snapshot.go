package pipeline

import (
	"context"

	"github.com/codegraph-dev/codegraph/pkg/graphbuilder"
	"github.com/codegraph-dev/codegraph/pkg/toolserver"
)

// ToSnapshot adapts a Result into the toolserver.Snapshot shape the tool
// protocol adapter reads (spec sec 4.11), so the pipeline never duplicates
// the adapter's own state representation.
func (r *Result) ToSnapshot() *toolserver.Snapshot {
	return &toolserver.Snapshot{
		RepoRoot:  r.RepoRoot,
		Store:     r.Store,
		Findings:  r.Findings,
		Report:    r.Report,
		Detectors: r.Detectors,
		History:   r.History,
		Blame:     r.Blame,
	}
}

// Runner builds a toolserver.ServerDeps.Runner callback that re-executes
// the pipeline against repoRoot with parser and returns a fresh Snapshot,
// so `codegraph mcp`'s run_analysis tool can trigger a full re-analysis
// without the adapter importing pipeline internals directly.
func (p *Pipeline) Runner(repoRoot string, parser graphbuilder.Parser) func(ctx context.Context) (*toolserver.Snapshot, error) {
	return func(ctx context.Context) (*toolserver.Snapshot, error) {
		result, err := p.Run(ctx, repoRoot, parser)
		if err != nil {
			return nil, err
		}

		return result.ToSnapshot(), nil
	}
}
