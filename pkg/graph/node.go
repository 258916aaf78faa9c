// Package graph provides a typed, concurrent, persistable directed
// multigraph of code entities: files, functions, classes, modules,
// variables, and commits, linked by calls/imports/containment/
// inheritance/usage/modification edges.
package graph

import "github.com/codegraph-dev/codegraph/pkg/alg/mapx"

// NodeKind enumerates the kinds of entities the graph can hold.
type NodeKind string

// Supported node kinds.
const (
	KindFile     NodeKind = "File"
	KindFunction NodeKind = "Function"
	KindClass    NodeKind = "Class"
	KindModule   NodeKind = "Module"
	KindVariable NodeKind = "Variable"
	KindCommit   NodeKind = "Commit"
)

// EdgeKind enumerates the kinds of relationships between nodes.
type EdgeKind string

// Supported edge kinds.
const (
	EdgeCalls      EdgeKind = "Calls"
	EdgeImports    EdgeKind = "Imports"
	EdgeContains   EdgeKind = "Contains"
	EdgeInherits   EdgeKind = "Inherits"
	EdgeUses       EdgeKind = "Uses"
	EdgeModifiedIn EdgeKind = "ModifiedIn"
)

// Property is an open, extensible bag of JSON-scalar-typed values attached
// to a node or edge. Detectors read typed fields out of it with the
// accessor helpers below.
type Property map[string]any

// Node is the atomic graph entity (CodeNode in the data model).
type Node struct {
	Properties   Property
	QualifiedName string
	Name          string
	FilePath      string
	Language      string
	Kind          NodeKind
	LineStart     int
	LineEnd       int
}

// LOC returns the node's line count, or 0 when the range is inverted.
func (n *Node) LOC() int {
	if n.LineEnd < n.LineStart {
		return 0
	}

	return n.LineEnd - n.LineStart + 1
}

// Complexity returns the node's complexity property, if present.
func (n *Node) Complexity() (int, bool) {
	return intProp(n.Properties, "complexity")
}

// ParamCount returns the node's param_count property, if present.
func (n *Node) ParamCount() (int, bool) {
	return intProp(n.Properties, "param_count")
}

// NestingDepth returns the node's nesting_depth property, if present.
func (n *Node) NestingDepth() (int, bool) {
	return intProp(n.Properties, "nesting_depth")
}

// IsAsync returns whether the node's is_async property is set true.
func (n *Node) IsAsync() bool {
	return boolProp(n.Properties, "is_async")
}

// IsExported returns whether the node's is_exported property is set true.
func (n *Node) IsExported() bool {
	return boolProp(n.Properties, "is_exported")
}

// MethodCount returns the node's methodCount property, if present.
func (n *Node) MethodCount() (int, bool) {
	return intProp(n.Properties, "methodCount")
}

// LastModified returns the node's last_modified property (RFC3339), if present.
func (n *Node) LastModified() (string, bool) {
	v, ok := n.Properties["last_modified"]
	if !ok {
		return "", false
	}

	s, ok := v.(string)

	return s, ok
}

// Author returns the node's author property, if present.
func (n *Node) Author() (string, bool) {
	v, ok := n.Properties["author"]
	if !ok {
		return "", false
	}

	s, ok := v.(string)

	return s, ok
}

// CommitCount returns the node's commit_count property, if present.
func (n *Node) CommitCount() (int, bool) {
	return intProp(n.Properties, "commit_count")
}

// AuthorCount returns the node's author_count property, if present.
func (n *Node) AuthorCount() (int, bool) {
	return intProp(n.Properties, "author_count")
}

// clone returns a deep-enough copy of n for safe return from Store reads.
func (n *Node) clone() *Node {
	cp := *n
	cp.Properties = mapx.Clone(n.Properties)

	return &cp
}

func intProp(p Property, key string) (int, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}

	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	default:
		return 0, false
	}
}

func boolProp(p Property, key string) bool {
	v, ok := p[key]
	if !ok {
		return false
	}

	b, _ := v.(bool)

	return b
}
