// Package commands provides CLI command implementations for codegraph.
package commands

import (
	"errors"

	"github.com/codegraph-dev/codegraph/pkg/graphbuilder"
)

// DefaultParser is the per-language parser adapter the analyze/watch/mcp
// commands build a graph with. It is nil in this module: the parser is an
// external collaborator specified only at the graphbuilder.Parser/
// watch.Parser interface boundary (spec 1/3), never implemented here.
// An embedder wires a concrete implementation by setting this var from an
// init() in a build-tag-gated file before main.main runs.
var DefaultParser graphbuilder.Parser

// ErrNoParser is returned by any command that needs to build a graph when
// DefaultParser has not been wired by an embedder.
var ErrNoParser = errors.New("codegraph: no parser configured; set commands.DefaultParser before running analyze/watch/mcp")

// requireParser returns DefaultParser or ErrNoParser.
func requireParser() (graphbuilder.Parser, error) {
	if DefaultParser == nil {
		return nil, ErrNoParser
	}

	return DefaultParser, nil
}
