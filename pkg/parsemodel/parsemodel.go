// Package parsemodel defines the boundary types produced by the external
// per-language parser adapter and consumed by the graph builder. The parser
// itself is out of scope (spec.md sec 1): any adapter that returns these
// shapes can be plugged into pkg/graphbuilder.
package parsemodel

// FunctionDecl describes one parsed function or method.
type FunctionDecl struct {
	Name          string
	QualifiedName string
	LineStart     int
	LineEnd       int
	Complexity    *int
	ParamCount    *int
	NestingDepth  *int
	IsAsync       bool
	IsExported    bool
}

// ClassDecl describes one parsed class or type.
type ClassDecl struct {
	Name          string
	QualifiedName string
	Methods       []string
	LineStart     int
	LineEnd       int
	IsExported    bool
}

// Call describes one observed call site: the qualified name of the
// enclosing function and the raw callee symbol as written in source,
// which may be of the form `name`, `module::name`, or `receiver.name`.
type Call struct {
	CallerQN      string
	CalleeSymbol  string
}

// Import describes one raw import/include/require specifier as written in
// source, before normalization.
type Import struct {
	RawSpec string
}

// ParseResult is the per-file output of the external parser adapter.
type ParseResult struct {
	Functions []FunctionDecl
	Classes   []ClassDecl
	Calls     []Call
	Imports   []Import
	LOC       int
	Language  string
}
