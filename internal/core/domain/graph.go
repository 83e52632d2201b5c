// Package domain contains the core domain model for the build dependency graph.
package domain

import (
	"iter"
	"strings"
	"sync"

	"go.trai.ch/zerr"
)

// Graph is a directed graph of dependency nodes. An edge u -> v means
// "u depends on v": v must be built or installed before u.
//
// Node identity is coarser than pointer identity: adding a node whose package
// set intersects an existing node's set reuses the existing node, and the
// newcomer's build command is discarded. The package registry makes that merge
// an explicit keyed lookup, so insertion order decides which command becomes
// canonical and callers must insert deterministically.
//
// All mutators take the graph lock; tree construction runs one goroutine per
// variant against a single shared graph.
type Graph struct {
	mu    sync.Mutex
	nodes []*DependencyNode
	index map[InternedString]*DependencyNode
	out   map[*DependencyNode][]*DependencyNode
	in    map[*DependencyNode][]*DependencyNode
}

// NewGraph creates a new empty Graph.
func NewGraph() *Graph {
	return &Graph{
		index: make(map[InternedString]*DependencyNode),
		out:   make(map[*DependencyNode][]*DependencyNode),
		in:    make(map[*DependencyNode][]*DependencyNode),
	}
}

// AddNode inserts a node and returns the canonical node for its package set.
// If any of the node's packages is already owned by an existing node, that
// node is returned unchanged and the newcomer is discarded.
func (g *Graph) AddNode(n *DependencyNode) *DependencyNode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addNodeLocked(n)
}

func (g *Graph) addNodeLocked(n *DependencyNode) *DependencyNode {
	for _, pkg := range n.packages {
		if existing, ok := g.index[pkg]; ok {
			return existing
		}
	}
	g.nodes = append(g.nodes, n)
	for _, pkg := range n.packages {
		g.index[pkg] = n
	}
	return n
}

// AddEdge records that u depends on v. Both endpoints are resolved through
// AddNode semantics first, so edges always land on canonical nodes.
// Duplicate edges are ignored.
func (g *Graph) AddEdge(u, v *DependencyNode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	from := g.addNodeLocked(u)
	to := g.addNodeLocked(v)
	g.addEdgeLocked(from, to)
}

func (g *Graph) addEdgeLocked(from, to *DependencyNode) {
	for _, succ := range g.out[from] {
		if succ == to {
			return
		}
	}
	g.out[from] = append(g.out[from], to)
	g.in[to] = append(g.in[to], from)
}

// NodeForPackage returns the canonical node owning the given package name.
func (g *Graph) NodeForPackage(name InternedString) (*DependencyNode, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.index[name]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*DependencyNode {
	g.mu.Lock()
	defer g.mu.Unlock()
	nodes := make([]*DependencyNode, len(g.nodes))
	copy(nodes, g.nodes)
	return nodes
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Successors returns the nodes that n depends on, in edge insertion order.
func (g *Graph) Successors(n *DependencyNode) []*DependencyNode {
	g.mu.Lock()
	defer g.mu.Unlock()
	succs := make([]*DependencyNode, len(g.out[n]))
	copy(succs, g.out[n])
	return succs
}

// Predecessors returns the nodes that depend on n, in edge insertion order.
func (g *Graph) Predecessors(n *DependencyNode) []*DependencyNode {
	g.mu.Lock()
	defer g.mu.Unlock()
	preds := make([]*DependencyNode, len(g.in[n]))
	copy(preds, g.in[n])
	return preds
}

// Roots returns the nodes no other node depends on, i.e. the top level
// requested build units, in insertion order.
func (g *Graph) Roots() []*DependencyNode {
	g.mu.Lock()
	defer g.mu.Unlock()
	var roots []*DependencyNode
	for _, n := range g.nodes {
		if len(g.in[n]) == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// Validate checks that the graph is a directed acyclic graph. Every cyclic
// component found is reported as an arrow chain of recipe names, all carried
// on a single ErrCycleDetected.
func (g *Graph) Validate() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cycles := g.cycleChainsLocked()
	if len(cycles) > 0 {
		return zerr.With(ErrCycleDetected, "cycles", strings.Join(cycles, "\n"))
	}
	return nil
}

// cycleChainsLocked finds every cyclic component and formats one representative
// chain per component, in discovery order.
func (g *Graph) cycleChainsLocked() []string {
	// Tarjan's strongly connected components. Any component with more than
	// one node, or a self loop, contains at least one cycle.
	counter := 0
	indices := make(map[*DependencyNode]int, len(g.nodes))
	lowlink := make(map[*DependencyNode]int, len(g.nodes))
	onStack := make(map[*DependencyNode]bool, len(g.nodes))
	var stack []*DependencyNode
	var cycles []string

	var connect func(v *DependencyNode)
	connect = func(v *DependencyNode) {
		indices[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.out[v] {
			if _, seen := indices[w]; !seen {
				connect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			component := make(map[*DependencyNode]bool)
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				component[w] = true
				if w == v {
					break
				}
			}
			if chain := g.cycleChain(component); chain != "" {
				cycles = append(cycles, chain)
			}
		}
	}

	for _, n := range g.nodes {
		if _, seen := indices[n]; !seen {
			connect(n)
		}
	}

	return cycles
}

// cycleChain formats one representative cycle within a cyclic component as
// "A -> B -> A". It returns "" for single-node components without a self loop.
func (g *Graph) cycleChain(component map[*DependencyNode]bool) string {
	var start *DependencyNode
	for _, n := range g.nodes {
		if component[n] {
			start = n
			break
		}
	}
	if start == nil {
		return ""
	}

	if len(component) == 1 {
		for _, succ := range g.out[start] {
			if succ == start {
				return recipeName(start) + " -> " + recipeName(start)
			}
		}
		return ""
	}

	visited := make(map[*DependencyNode]bool)
	var walk func(n *DependencyNode, path []*DependencyNode) []*DependencyNode
	walk = func(n *DependencyNode, path []*DependencyNode) []*DependencyNode {
		visited[n] = true
		path = append(path, n)
		for _, succ := range g.out[n] {
			if succ == start && len(path) > 1 {
				return path
			}
			if component[succ] && !visited[succ] {
				if found := walk(succ, path); found != nil {
					return found
				}
			}
		}
		return nil
	}

	path := walk(start, nil)
	if path == nil {
		return ""
	}
	names := make([]string, 0, len(path)+1)
	for _, n := range path {
		names = append(names, recipeName(n))
	}
	names = append(names, recipeName(start))
	return strings.Join(names, " -> ")
}

func recipeName(n *DependencyNode) string {
	if cmd := n.Command(); cmd != nil {
		return cmd.Recipe.String()
	}
	return n.Spec().Name.String()
}

// Walk returns an iterator that yields nodes in dependency order: every node's
// dependencies are yielded strictly before the node itself. Among ready nodes,
// insertion order decides, so traversal is deterministic.
// It assumes Validate() has been called and returned nil.
func (g *Graph) Walk() iter.Seq[*DependencyNode] {
	g.mu.Lock()
	nodes := make([]*DependencyNode, len(g.nodes))
	copy(nodes, g.nodes)
	out := make(map[*DependencyNode][]*DependencyNode, len(g.out))
	for n, succs := range g.out {
		out[n] = append([]*DependencyNode(nil), succs...)
	}
	g.mu.Unlock()

	return func(yield func(*DependencyNode) bool) {
		done := make(map[*DependencyNode]bool, len(nodes))
		for len(done) < len(nodes) {
			progressed := false
			for _, n := range nodes {
				if done[n] {
					continue
				}
				ready := true
				for _, dep := range out[n] {
					if !done[dep] {
						ready = false
						break
					}
				}
				if !ready {
					continue
				}
				done[n] = true
				progressed = true
				if !yield(n) {
					return
				}
			}
			if !progressed {
				return
			}
		}
	}
}

// RemoveExternalNodes deletes every node that carries no build command,
// reconnecting each removed node's predecessors to its successors so the
// dependency ordering between local build units is preserved.
func (g *Graph) RemoveExternalNodes() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, n := range append([]*DependencyNode(nil), g.nodes...) {
		if !n.IsExternal() {
			continue
		}
		for _, pred := range g.in[n] {
			for _, succ := range g.out[n] {
				if pred != succ {
					g.addEdgeLocked(pred, succ)
				}
			}
		}
		g.removeNodeLocked(n)
	}
}

func (g *Graph) removeNodeLocked(n *DependencyNode) {
	for _, pred := range g.in[n] {
		g.out[pred] = removeFromList(g.out[pred], n)
	}
	for _, succ := range g.out[n] {
		g.in[succ] = removeFromList(g.in[succ], n)
	}
	delete(g.out, n)
	delete(g.in, n)
	for _, pkg := range n.packages {
		if g.index[pkg] == n {
			delete(g.index, pkg)
		}
	}
	g.nodes = removeFromList(g.nodes, n)
}

func removeFromList(list []*DependencyNode, n *DependencyNode) []*DependencyNode {
	result := list[:0]
	for _, candidate := range list {
		if candidate != n {
			result = append(result, candidate)
		}
	}
	return result
}
