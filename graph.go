package andersen

import "golang.org/x/tools/container/intsets"

// offlineGraph is the constraint graph used for Hybrid Cycle Detection. It
// ignores base constraints and has two vertices per variable: v itself and
// the dereference *v, which is numbered v+n.
//
// offlineGraph implements graph.Iterator from github.com/yourbasic/graph.
type offlineGraph struct {
	n    int
	succ [][]int
}

func newOfflineGraph(n int) *offlineGraph {
	return &offlineGraph{n: n, succ: make([][]int, 2*n)}
}

func (g *offlineGraph) ref(v int) int    { return v + g.n }
func (g *offlineGraph) isRef(v int) bool { return v >= g.n }
func (g *offlineGraph) deref(r int) int  { return r - g.n }

func (g *offlineGraph) addEdge(from, to int) {
	g.succ[from] = append(g.succ[from], to)
}

func (g *offlineGraph) Order() int { return 2 * g.n }

func (g *offlineGraph) Visit(v int, do func(w int, c int64) bool) bool {
	for _, w := range g.succ[v] {
		if do(w, 0) {
			return true
		}
	}
	return false
}

// node is a vertex of the online constraint graph. Points-to and obligation
// sets contain variable ids, successor sets contain node ids. Both may refer
// to nodes that have since been merged away and must be resolved through the
// solver's union-find forest.
type node struct {
	// Points-to set. It only ever grows.
	pts intsets.Sparse
	// The part of pts for which complex obligations and merge targets have
	// been processed.
	prevPts intsets.Sparse
	// Targets of simple inclusion edges.
	succ intsets.Sparse

	// For every o ∈ pts: o → super for each super in complexMeSub (loads),
	// and sub → o for each sub in complexMeSuper (stores).
	complexMeSub   intsets.Sparse
	complexMeSuper intsets.Sparse

	// Hybrid cycle detection: every object in pts must be merged with each
	// of these nodes.
	mergeTargets []int
}

// edge is an ordered pair of node ids.
type edge struct {
	from, to int
}
