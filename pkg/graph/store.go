package graph

import (
	"sort"
	"sync"
)

// Store is a thread-safe typed multigraph with a qualified-name index.
// A single reader-writer lock guards the node set, edge list, and index;
// batch writes hold the write lock once so the index never lags the node
// set (spec 4.1/9).
type Store struct {
	mu    sync.RWMutex
	nodes map[string]*Node   // qualified_name -> node
	edges []*Edge
	// byKind indexes qualified names by kind for get_nodes_by_kind.
	byKind map[NodeKind]map[string]struct{}
}

// NewStore creates an empty graph store.
func NewStore() *Store {
	return &Store{
		nodes:  make(map[string]*Node),
		byKind: make(map[NodeKind]map[string]struct{}),
	}
}

// AddNode upserts a node by qualified name (full replace semantics: a
// reinsert preserves no prior properties).
func (s *Store) AddNode(n Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addNodeLocked(&n)
}

func (s *Store) addNodeLocked(n *Node) {
	cp := n.clone()

	if old, ok := s.nodes[cp.QualifiedName]; ok && old.Kind != cp.Kind {
		s.removeFromKindIndexLocked(old)
	}

	s.nodes[cp.QualifiedName] = cp
	s.addToKindIndexLocked(cp)
}

func (s *Store) addToKindIndexLocked(n *Node) {
	set, ok := s.byKind[n.Kind]
	if !ok {
		set = make(map[string]struct{})
		s.byKind[n.Kind] = set
	}

	set[n.QualifiedName] = struct{}{}
}

func (s *Store) removeFromKindIndexLocked(n *Node) {
	if set, ok := s.byKind[n.Kind]; ok {
		delete(set, n.QualifiedName)
	}
}

// AddNodesBatch upserts many nodes, acquiring the write lock once.
func (s *Store) AddNodesBatch(nodes []Node) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range nodes {
		s.addNodeLocked(&nodes[i])
	}
}

// AddEdgesBatch appends many edges, acquiring the write lock once. Edges
// referencing unknown endpoints are silently skipped.
func (s *Store) AddEdgesBatch(edges []Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range edges {
		e := &edges[i]
		if _, ok := s.nodes[e.Source]; !ok {
			continue
		}

		if _, ok := s.nodes[e.Target]; !ok {
			continue
		}

		s.edges = append(s.edges, e.clone())
	}
}

// AddEdgeByName inserts a single edge; returns false if either endpoint is
// absent.
func (s *Store) AddEdgeByName(srcQN, dstQN string, kind EdgeKind, props Property) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[srcQN]; !ok {
		return false
	}

	if _, ok := s.nodes[dstQN]; !ok {
		return false
	}

	s.edges = append(s.edges, &Edge{Source: srcQN, Target: dstQN, Kind: kind, Properties: props})

	return true
}

// GetNode returns a cloned snapshot of the node with the given qualified
// name, or nil if absent.
func (s *Store) GetNode(qn string) *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[qn]
	if !ok {
		return nil
	}

	return n.clone()
}

// GetNodesByKind returns cloned snapshots of every node of the given kind.
func (s *Store) GetNodesByKind(kind NodeKind) []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.byKind[kind]
	out := make([]*Node, 0, len(set))

	for qn := range set {
		out = append(out, s.nodes[qn].clone())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].QualifiedName < out[j].QualifiedName })

	return out
}

// GetFunctionsInFile returns cloned Function nodes whose file_path matches.
func (s *Store) GetFunctionsInFile(path string) []*Node {
	return s.getNodesInFile(KindFunction, path)
}

// GetClassesInFile returns cloned Class nodes whose file_path matches.
func (s *Store) GetClassesInFile(path string) []*Node {
	return s.getNodesInFile(KindClass, path)
}

func (s *Store) getNodesInFile(kind NodeKind, path string) []*Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Node

	for qn := range s.byKind[kind] {
		n := s.nodes[qn]
		if n.FilePath == path {
			out = append(out, n.clone())
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].QualifiedName < out[j].QualifiedName })

	return out
}

// GetCallers returns the qualified names of nodes with a Calls edge into qn.
func (s *Store) GetCallers(qn string) []string { return s.neighborsByKind(qn, EdgeCalls, false) }

// GetCallees returns the qualified names of nodes qn has a Calls edge to.
func (s *Store) GetCallees(qn string) []string { return s.neighborsByKind(qn, EdgeCalls, true) }

// GetChildClasses returns qualified names of nodes with an Inherits edge
// targeting qn.
func (s *Store) GetChildClasses(qn string) []string {
	return s.neighborsByKind(qn, EdgeInherits, false)
}

// GetImporters returns qualified names of nodes with an Imports edge
// targeting qn.
func (s *Store) GetImporters(qn string) []string {
	return s.neighborsByKind(qn, EdgeImports, false)
}

// GetImportees returns qualified names of nodes qn has an Imports edge to.
func (s *Store) GetImportees(qn string) []string {
	return s.neighborsByKind(qn, EdgeImports, true)
}

// GetModifications returns qualified names of Commit nodes with a
// ModifiedIn edge from qn (the entity's observed git history).
func (s *Store) GetModifications(qn string) []string {
	return s.neighborsByKind(qn, EdgeModifiedIn, true)
}

// neighborsByKind returns, for the given edge kind, either the sources of
// edges pointing at qn (outgoing=false) or the targets of edges from qn
// (outgoing=true).
func (s *Store) neighborsByKind(qn string, kind EdgeKind, outgoing bool) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})

	for _, e := range s.edges {
		if e.Kind != kind {
			continue
		}

		if outgoing && e.Source == qn {
			seen[e.Target] = struct{}{}
		} else if !outgoing && e.Target == qn {
			seen[e.Source] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}

	sort.Strings(out)

	return out
}

// CallFanIn returns the number of distinct callers of qn. Parallel Calls
// edges from the same caller count once.
func (s *Store) CallFanIn(qn string) int { return len(s.GetCallers(qn)) }

// CallFanOut returns the number of distinct callees of qn. Parallel Calls
// edges to the same callee count once.
func (s *Store) CallFanOut(qn string) int { return len(s.GetCallees(qn)) }

// Stats reports counts by kind plus totals.
type Stats struct {
	ByKind      map[NodeKind]int `json:"by_kind"`
	TotalNodes  int              `json:"total_nodes"`
	TotalEdges  int              `json:"total_edges"`
	TotalCalls  int              `json:"calls"`
	TotalImports int             `json:"imports"`
}

// Stats returns current graph counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{ByKind: make(map[NodeKind]int, len(s.byKind))}
	for k, set := range s.byKind {
		st.ByKind[k] = len(set)
	}

	st.TotalNodes = len(s.nodes)
	st.TotalEdges = len(s.edges)

	for _, e := range s.edges {
		switch e.Kind {
		case EdgeCalls:
			st.TotalCalls++
		case EdgeImports:
			st.TotalImports++
		}
	}

	return st
}

// Clear removes every node and edge from the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[string]*Node)
	s.edges = nil
	s.byKind = make(map[NodeKind]map[string]struct{})
}

// snapshotForPersist returns the current node and edge sets under a single
// read lock, for use by Save.
func (s *Store) snapshotForPersist() ([]*Node, []*Edge) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n.clone())
	}

	edges := make([]*Edge, len(s.edges))
	for i, e := range s.edges {
		edges[i] = e.clone()
	}

	return nodes, edges
}

// restoreFromPersist replaces the store's contents with the given node and
// edge sets (edges whose endpoints are missing are dropped), under a single
// write lock.
func (s *Store) restoreFromPersist(nodes []*Node, edges []*Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[string]*Node, len(nodes))
	s.byKind = make(map[NodeKind]map[string]struct{})

	for _, n := range nodes {
		s.nodes[n.QualifiedName] = n
		s.addToKindIndexLocked(n)
	}

	s.edges = s.edges[:0]

	for _, e := range edges {
		if _, ok := s.nodes[e.Source]; !ok {
			continue
		}

		if _, ok := s.nodes[e.Target]; !ok {
			continue
		}

		s.edges = append(s.edges, e)
	}
}

// UpdateProperties merges the given properties into the node's property bag
// under the write lock (used by the git enricher). Returns false if the
// node does not exist.
func (s *Store) UpdateProperties(qn string, props Property) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[qn]
	if !ok {
		return false
	}

	if n.Properties == nil {
		n.Properties = make(Property, len(props))
	}

	for k, v := range props {
		n.Properties[k] = v
	}

	return true
}
