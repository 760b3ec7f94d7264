package graph

import (
	"sort"
)

// Node represents a vertex in the module graph.
type Node struct {
	Module *Module `json:"module"`
}

// Edge represents a directed import between two modules.
type Edge struct {
	From string       `json:"from"`
	To   string       `json:"to"`
	Kind RelationKind `json:"kind"`
}

// Graph manages modules, their imports and the imports that could not be followed.
type Graph struct {
	Nodes      map[string]*Node   `json:"nodes"`
	Edges      []Edge             `json:"edges"`
	Unresolved []UnresolvedImport `json:"unresolved,omitempty"`

	edgeIndex       map[Edge]bool
	unresolvedIndex map[string]int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:           make(map[string]*Node),
		Edges:           []Edge{},
		edgeIndex:       make(map[Edge]bool),
		unresolvedIndex: make(map[string]int),
	}
}

// AddModule adds m as a node. It returns false if a module with the same
// name is already present; the existing node is kept.
func (g *Graph) AddModule(m *Module) bool {
	if m == nil {
		return false
	}
	if _, ok := g.Nodes[m.Name]; ok {
		return false
	}
	g.Nodes[m.Name] = &Node{Module: m}
	return true
}

// Module returns the module registered under name, or nil.
func (g *Graph) Module(name string) *Module {
	if n, ok := g.Nodes[name]; ok {
		return n.Module
	}
	return nil
}

// Has reports whether name is part of the graph.
func (g *Graph) Has(name string) bool {
	_, ok := g.Nodes[name]
	return ok
}

// Len returns the number of modules.
func (g *Graph) Len() int {
	return len(g.Nodes)
}

// AddEdge records from -> to. Duplicate edges collapse; the return value
// reports whether the edge is new.
func (g *Graph) AddEdge(from, to string, kind RelationKind) bool {
	e := Edge{From: from, To: to, Kind: kind}
	if g.edgeIndex[e] {
		return false
	}
	g.edgeIndex[e] = true
	g.Edges = append(g.Edges, e)
	return true
}

// MarkUnresolved records an import that could not be followed. Records with the
// same importer and target collapse; an unconditional occurrence wins over a
// conditional one.
func (g *Graph) MarkUnresolved(u UnresolvedImport) {
	key := u.From + "\x00" + u.Target
	if i, ok := g.unresolvedIndex[key]; ok {
		if !u.Conditional {
			g.Unresolved[i].Conditional = false
		}
		return
	}
	g.unresolvedIndex[key] = len(g.Unresolved)
	g.Unresolved = append(g.Unresolved, u)
}

// Names returns all module names in sorted order.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Modules returns all modules sorted by name.
func (g *Graph) Modules() []*Module {
	names := g.Names()
	mods := make([]*Module, 0, len(names))
	for _, name := range names {
		mods = append(mods, g.Nodes[name].Module)
	}
	return mods
}

// GetDependencies returns all nodes that the given module imports.
func (g *Graph) GetDependencies(name string) []*Node {
	var deps []*Node
	for _, edge := range g.Edges {
		if edge.From == name {
			if node, ok := g.Nodes[edge.To]; ok {
				deps = append(deps, node)
			}
		}
	}
	return deps
}

// GetDependents returns all nodes that import the given module.
func (g *Graph) GetDependents(name string) []*Node {
	var deps []*Node
	for _, edge := range g.Edges {
		if edge.To == name {
			if node, ok := g.Nodes[edge.From]; ok {
				deps = append(deps, node)
			}
		}
	}
	return deps
}

// PathTo returns the shortest import chain from -> ... -> to, or nil when
// to is not reachable from from.
func (g *Graph) PathTo(from, to string) []string {
	if !g.Has(from) || !g.Has(to) {
		return nil
	}

	adj := make(map[string][]string)
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e.To)
	}
	for k := range adj {
		sort.Strings(adj[k])
	}

	prev := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			var path []string
			for n := to; n != ""; n = prev[n] {
				path = append([]string{n}, path...)
			}
			return path
		}
		for _, next := range adj[cur] {
			if _, seen := prev[next]; !seen {
				prev[next] = cur
				queue = append(queue, next)
			}
		}
	}
	return nil
}

// RebuildIndices restores the lookup indices after the exported fields were
// filled directly, e.g. when decoding from JSON or loading from storage.
func (g *Graph) RebuildIndices() {
	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}
	g.edgeIndex = make(map[Edge]bool, len(g.Edges))
	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if g.edgeIndex[e] {
			continue
		}
		g.edgeIndex[e] = true
		edges = append(edges, e)
	}
	g.Edges = edges

	g.unresolvedIndex = make(map[string]int, len(g.Unresolved))
	for i, u := range g.Unresolved {
		g.unresolvedIndex[u.From+"\x00"+u.Target] = i
	}
}
