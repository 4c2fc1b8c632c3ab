package xlbuild

// depNode is one vertex of a DepGraph: the reference it stands for plus its
// insertion-ordered outgoing edges.
type depNode struct {
	ref    Ref
	out    []refKey
	outSet map[refKey]struct{}
	in     map[refKey]struct{}
}

func newDepNode(ref Ref) *depNode {
	return &depNode{
		ref:    ref,
		outSet: make(map[refKey]struct{}),
		in:     make(map[refKey]struct{}),
	}
}

// DepGraph tracks "formula at X mentions Y" edges and answers cycle queries.
// Sessions maintain one graph per workbook under construction; it exists to
// reject circular formulas at the moment they are attached, before anything
// is written out.
//
// Cycle detection treats range and named-range nodes as containers: during
// traversal, a range node's successors include every cell node that lies
// inside its rectangle and has outgoing edges of its own. Cells without
// outgoing edges cannot close a loop, so plain value cells inside a range
// never trigger expansion.
//
// A DepGraph is not safe for concurrent use; sessions are single-goroutine
// objects and the graph inherits that contract.
type DepGraph struct {
	nodes map[refKey]*depNode
	order []refKey // insertion order, for deterministic traversal
	edges int
}

// NewDepGraph creates an empty dependency graph.
func NewDepGraph() *DepGraph {
	return &DepGraph{nodes: make(map[refKey]*depNode)}
}

func (g *DepGraph) node(ref Ref) *depNode {
	k := ref.refKey()
	if n, ok := g.nodes[k]; ok {
		return n
	}
	n := newDepNode(ref)
	g.nodes[k] = n
	g.order = append(g.order, k)
	return n
}

// AddEdge records that from depends on to. It returns false when the edge
// was already present. Self-edges are recorded; FindCycle reports them as
// one-element cycles.
func (g *DepGraph) AddEdge(from, to Ref) bool {
	fn := g.node(from)
	tn := g.node(to)
	tk := to.refKey()
	if _, dup := fn.outSet[tk]; dup {
		return false
	}
	fn.outSet[tk] = struct{}{}
	fn.out = append(fn.out, tk)
	tn.in[from.refKey()] = struct{}{}
	g.edges++
	return true
}

// RemoveEdge deletes the from→to edge if present. Nodes left with no edges
// in either direction are pruned.
func (g *DepGraph) RemoveEdge(from, to Ref) bool {
	fk, tk := from.refKey(), to.refKey()
	fn, ok := g.nodes[fk]
	if !ok {
		return false
	}
	if _, ok := fn.outSet[tk]; !ok {
		return false
	}
	delete(fn.outSet, tk)
	for i, k := range fn.out {
		if k == tk {
			fn.out = append(fn.out[:i], fn.out[i+1:]...)
			break
		}
	}
	if tn, ok := g.nodes[tk]; ok {
		delete(tn.in, fk)
		g.pruneIfIsolated(tk, tn)
	}
	g.pruneIfIsolated(fk, fn)
	g.edges--
	return true
}

func (g *DepGraph) pruneIfIsolated(k refKey, n *depNode) {
	if len(n.out) == 0 && len(n.in) == 0 {
		delete(g.nodes, k)
	}
}

// HasEdge reports whether the from→to edge is present.
func (g *DepGraph) HasEdge(from, to Ref) bool {
	fn, ok := g.nodes[from.refKey()]
	if !ok {
		return false
	}
	_, ok = fn.outSet[to.refKey()]
	return ok
}

// OutEdges returns the direct successors recorded for from, in insertion
// order. Geometric range expansion is a traversal concern and is not
// reflected here.
func (g *DepGraph) OutEdges(from Ref) []Ref {
	fn, ok := g.nodes[from.refKey()]
	if !ok {
		return nil
	}
	refs := make([]Ref, 0, len(fn.out))
	for _, k := range fn.out {
		if n, ok := g.nodes[k]; ok {
			refs = append(refs, n.ref)
		}
	}
	return refs
}

// NodeCount returns the number of live nodes.
func (g *DepGraph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of recorded edges.
func (g *DepGraph) EdgeCount() int { return g.edges }

// successors returns the traversal successors of k: its recorded out-edges,
// then (for range and named nodes) every contained cell node that has
// out-edges of its own.
func (g *DepGraph) successors(k refKey) []refKey {
	n := g.nodes[k]
	if n == nil {
		return nil
	}
	succ := n.out
	if k.kind == refCell {
		return succ
	}
	var expanded []refKey
	for _, ck := range g.order {
		cn, ok := g.nodes[ck]
		if !ok || len(cn.out) == 0 {
			continue
		}
		if k.contains(ck) {
			if _, dup := n.outSet[ck]; dup {
				continue
			}
			expanded = append(expanded, ck)
		}
	}
	if len(expanded) == 0 {
		return succ
	}
	return append(append(make([]refKey, 0, len(succ)+len(expanded)), succ...), expanded...)
}

const (
	stateUnvisited uint8 = iota
	stateVisiting
	stateDone
)

// FindCycle looks for a dependency cycle and returns its path, or nil when
// the graph is acyclic. The path lists each participant once, starting at
// the node where the detector closed the loop; the last element refers back
// to the first. The search is deterministic: nodes are tried in insertion
// order, so repeated calls on the same graph report the same cycle.
func (g *DepGraph) FindCycle() []Ref {
	state := make(map[refKey]uint8, len(g.nodes))
	var stack []refKey
	var cycle []refKey

	var visit func(k refKey) bool
	visit = func(k refKey) bool {
		state[k] = stateVisiting
		stack = append(stack, k)

		for _, next := range g.successors(k) {
			switch state[next] {
			case stateDone:
				continue
			case stateVisiting:
				// back-edge: the cycle is the stack from next to the top
				start := 0
				for i, sk := range stack {
					if sk == next {
						start = i
						break
					}
				}
				cycle = append([]refKey(nil), stack[start:]...)
				return true
			default:
				if visit(next) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[k] = stateDone
		return false
	}

	for _, k := range g.order {
		if _, live := g.nodes[k]; !live {
			continue
		}
		if state[k] != stateUnvisited {
			continue
		}
		if visit(k) {
			refs := make([]Ref, len(cycle))
			for i, ck := range cycle {
				refs[i] = g.nodes[ck].ref
			}
			return refs
		}
	}
	return nil
}

// HasCycle reports whether the graph contains any dependency cycle.
func (g *DepGraph) HasCycle() bool {
	return g.FindCycle() != nil
}
