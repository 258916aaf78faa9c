package detect

import (
	"context"

	"github.com/codegraph-dev/codegraph/pkg/filecache"
	"github.com/codegraph-dev/codegraph/pkg/funccontext"
	"github.com/codegraph-dev/codegraph/pkg/graph"
)

// Context is the shared, read-only state every detector invocation receives
// (spec sec 4.5: "the graph + a shared file-content cache" plus the
// function-context layer built once per run).
type Context struct {
	Store   *graph.Store
	Files   *filecache.Cache
	FuncCtx map[string]funccontext.Context
}

// Detector is one independent or dependent check run by the Engine.
type Detector interface {
	Name() string
	Description() string
	Category() Category
	// IsDependent reports whether this detector needs to observe the
	// findings already produced by other detectors before it can run.
	IsDependent() bool
	// UsesContext reports whether this detector reads the function-context
	// layer; purely informational, used by callers deciding whether to
	// build it.
	UsesContext() bool
	// MaxFindings caps this detector's own emitted findings; 0 means no
	// detector-specific cap.
	MaxFindings() int
	// Run executes the detector. prior holds every finding emitted by
	// detectors that ran before this one in this invocation (non-empty
	// only for dependent detectors run after independents complete).
	Run(ctx context.Context, dctx *Context, prior []Finding) ([]Finding, error)
}

// Base implements the non-Run methods of Detector via fixed fields, so
// concrete detectors can embed it and only implement Run.
type Base struct {
	NameValue        string
	DescriptionValue string
	CategoryValue    Category
	Dependent        bool
	ContextUser      bool
	FindingCap       int
}

// Name returns the detector's registered name.
func (b Base) Name() string { return b.NameValue }

// Description returns the detector's human-readable description.
func (b Base) Description() string { return b.DescriptionValue }

// Category returns the detector's feature-extraction/scoring category.
func (b Base) Category() Category { return b.CategoryValue }

// IsDependent reports whether this detector must run after independents.
func (b Base) IsDependent() bool { return b.Dependent }

// UsesContext reports whether this detector reads the function-context layer.
func (b Base) UsesContext() bool { return b.ContextUser }

// MaxFindings returns the detector-specific finding cap, 0 for unlimited.
func (b Base) MaxFindings() int { return b.FindingCap }
