package graph

import "github.com/codegraph-dev/codegraph/pkg/alg/mapx"

// Edge is a typed directed edge with its own property bag (CodeEdge in the
// data model). Parallel edges between the same pair of nodes are allowed.
type Edge struct {
	Properties Property
	Source     string
	Target     string
	Kind       EdgeKind
}

func (e *Edge) clone() *Edge {
	cp := *e
	cp.Properties = mapx.Clone(e.Properties)

	return &cp
}

// LineRange returns the line_start/line_end properties stored on the edge
// (used by ModifiedIn edges), if present.
func (e *Edge) LineRange() (start, end int, ok bool) {
	s, sok := intProp(e.Properties, "line_start")
	t, tok := intProp(e.Properties, "line_end")

	return s, t, sok && tok
}
