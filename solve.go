package andersen

import (
	"context"

	"github.com/BarrensZeppelin/andersen/internal/intern"
	"github.com/BarrensZeppelin/andersen/internal/queue"
	"github.com/BarrensZeppelin/andersen/internal/scc"
	"github.com/BarrensZeppelin/andersen/internal/uf"
	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/container/intsets"
)

// SolveConfig controls the optimizations used by the solver. The zero value
// enables both cycle detection schemes and logs to the standard logger.
//
// With hybrid cycle detection enabled, which is the default and the mode
// used by ConstraintSystem.PointsToSets, the variables of an offline cycle
// through a dereference *p are merged even if p never points to anything.
// The solution then contains every fact of the least solution but may
// contain more. Disable it to compute the least solution.
type SolveConfig struct {
	// Disable Hybrid Cycle Detection (offline SCC collapsing and the
	// deferred merges derived from it).
	DisableHCD bool
	// Disable Lazy Cycle Detection.
	DisableLCD bool

	Logger log.FieldLogger
}

// Stats describes the work done by a solver run.
type Stats struct {
	Variables   int
	OfflineSCCs int
	HCDMerges   int
	LCDChecks   int
	LCDMerges   int
	EdgesAdded  int
	Pops        int
}

func (s Stats) fields() log.Fields {
	return log.Fields{
		"variables":   s.Variables,
		"offlineSCCs": s.OfflineSCCs,
		"hcdMerges":   s.HCDMerges,
		"lcdChecks":   s.LCDChecks,
		"lcdMerges":   s.LCDMerges,
		"edgesAdded":  s.EdgesAdded,
		"pops":        s.Pops,
	}
}

type solver struct {
	cs     *ConstraintSystem
	config SolveConfig
	log    log.FieldLogger

	vars  *intern.Table
	uf    *uf.Forest
	nodes []*node

	work   queue.Worklist
	tested map[edge]struct{}
	stats  Stats
}

func newSolver(cs *ConstraintSystem, config SolveConfig) *solver {
	logger := config.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	return &solver{
		cs:     cs,
		config: config,
		log:    logger,
		vars:   intern.NewTable(),
		tested: make(map[edge]struct{}),
	}
}

// node returns the live node for variable or node id x.
func (s *solver) node(x int) *node {
	return s.nodes[s.uf.Find(x)]
}

// merge folds node b into node a and returns a. Both must be distinct
// representatives.
func (s *solver) merge(a, b int) int {
	if a == b || !s.uf.IsRep(a) || !s.uf.IsRep(b) {
		log.Panicf("Cannot merge nodes %d and %d", a, b)
	}

	na, nb := s.nodes[a], s.nodes[b]
	na.pts.UnionWith(&nb.pts)
	na.succ.UnionWith(&nb.succ)
	na.complexMeSub.UnionWith(&nb.complexMeSub)
	na.complexMeSuper.UnionWith(&nb.complexMeSuper)
	na.mergeTargets = append(na.mergeTargets, nb.mergeTargets...)

	// The merged obligations have to be checked against the whole set.
	na.prevPts.Clear()

	s.uf.Union(b, a)
	s.nodes[b] = nil
	return a
}

func (s *solver) build() {
	cs := s.cs

	// Allocate ids for every variable mentioned by a constraint.
	cs.base.ForEach(func(c BaseConstraint) {
		s.vars.ID(c.Sub)
		s.vars.ID(c.Super)
	})
	cs.simple.ForEach(func(c SimpleConstraint) {
		s.vars.ID(c.Sub)
		s.vars.ID(c.Super)
	})
	cs.complex.ForEach(func(c ComplexConstraint) {
		s.vars.ID(c.Sub)
		s.vars.ID(c.Super)
	})

	n := s.vars.Len()
	s.stats.Variables = n
	s.uf = uf.New(n)
	s.nodes = make([]*node, n)
	for i := range s.nodes {
		s.nodes[i] = new(node)
	}

	if !s.config.DisableHCD {
		s.applyHCD(s.buildOffline())
	}

	cs.base.ForEach(func(c BaseConstraint) {
		s.node(s.vars.ID(c.Super)).pts.Insert(s.vars.ID(c.Sub))
	})
	cs.simple.ForEach(func(c SimpleConstraint) {
		from, to := s.uf.Find(s.vars.ID(c.Sub)), s.uf.Find(s.vars.ID(c.Super))
		if from != to {
			s.nodes[from].succ.Insert(to)
		}
	})
	cs.complex.ForEach(func(c ComplexConstraint) {
		sub, super := s.vars.ID(c.Sub), s.vars.ID(c.Super)
		if c.SubDerefed {
			s.node(sub).complexMeSub.Insert(super)
		} else {
			s.node(super).complexMeSuper.Insert(sub)
		}
	})
}

func (s *solver) buildOffline() *offlineGraph {
	g := newOfflineGraph(s.vars.Len())

	s.cs.simple.ForEach(func(c SimpleConstraint) {
		g.addEdge(s.vars.ID(c.Sub), s.vars.ID(c.Super))
	})
	s.cs.complex.ForEach(func(c ComplexConstraint) {
		sub, super := s.vars.ID(c.Sub), s.vars.ID(c.Super)
		if c.SubDerefed {
			g.addEdge(g.ref(sub), super)
		} else {
			g.addEdge(sub, g.ref(super))
		}
	})

	return g
}

// applyHCD collapses the variables of every offline cycle into one node and
// records a merge target for every dereferenced variable on such a cycle.
func (s *solver) applyHCD(g *offlineGraph) {
	for _, comp := range scc.Cycles(g) {
		var normal, refs []int
		for _, v := range comp {
			if g.isRef(v) {
				refs = append(refs, g.deref(v))
			} else {
				normal = append(normal, v)
			}
		}

		if len(normal) == 0 {
			log.Panicf("Offline cycle without variables: %v", comp)
		}

		s.stats.OfflineSCCs++

		rep := s.uf.Find(normal[0])
		for _, v := range normal[1:] {
			if r := s.uf.Find(v); r != rep {
				rep = s.merge(rep, r)
				s.stats.HCDMerges++
			}
		}

		for _, p := range refs {
			n := s.node(p)
			n.mergeTargets = append(n.mergeTargets, rep)
		}
	}
}

func (s *solver) solve(ctx context.Context) error {
	s.build()

	for id := range s.nodes {
		if s.uf.IsRep(id) {
			s.work.Push(id)
		}
	}

	var delta intsets.Sparse
	for !s.work.Empty() {
		if err := ctx.Err(); err != nil {
			return err
		}

		id := s.work.Pop()
		s.stats.Pops++
		if !s.uf.IsRep(id) {
			continue
		}

		n := s.nodes[id]

		delta.Difference(&n.pts, &n.prevPts)
		if !delta.IsEmpty() {
			n.prevPts.Copy(&n.pts)
			objs := delta.AppendTo(nil)

			if s.collapseTargets(id, objs) {
				// Node id may have been merged away. In any case its
				// (possibly new) representative has to be visited again
				// with all of its objects.
				rep := s.uf.Find(id)
				s.nodes[rep].prevPts.Clear()
				s.work.Push(rep)
				continue
			}

			s.resolveComplex(n, objs)
		}

		s.propagate(id)
	}

	s.log.WithFields(s.stats.fields()).Debug("Solved constraint system")
	return nil
}

// collapseTargets merges every object in objs with the merge targets of
// node id. It reports whether any merge happened.
func (s *solver) collapseTargets(id int, objs []int) bool {
	n := s.nodes[id]
	if len(n.mergeTargets) == 0 || s.config.DisableHCD {
		return false
	}

	var targets intsets.Sparse
	for _, t := range n.mergeTargets {
		targets.Insert(s.uf.Find(t))
	}
	n.mergeTargets = targets.AppendTo(n.mergeTargets[:0])

	merged := false
	for _, t := range n.mergeTargets {
		for _, o := range objs {
			rt, ro := s.uf.Find(t), s.uf.Find(o)
			if rt != ro {
				s.work.Push(s.merge(rt, ro))
				s.stats.HCDMerges++
				merged = true
			}
		}
	}

	return merged
}

// resolveComplex adds the edges required by the complex constraints of n
// for the newly discovered objects objs.
func (s *solver) resolveComplex(n *node, objs []int) {
	if n.complexMeSub.IsEmpty() && n.complexMeSuper.IsEmpty() {
		return
	}

	supers := n.complexMeSub.AppendTo(nil)
	subs := n.complexMeSuper.AppendTo(nil)
	for _, o := range objs {
		ro := s.uf.Find(o)
		for _, super := range supers {
			s.addEdge(ro, s.uf.Find(super))
		}
		for _, sub := range subs {
			s.addEdge(s.uf.Find(sub), ro)
		}
	}
}

func (s *solver) addEdge(from, to int) {
	if from != to && s.nodes[from].succ.Insert(to) {
		s.stats.EdgesAdded++
		s.work.Push(from)
	}
}

// propagate pushes the points-to set of node id along its outgoing edges,
// collapsing cycles that are detected on the way.
func (s *solver) propagate(id int) {
	n := s.nodes[id]

	var succ intsets.Sparse
	for _, z := range n.succ.AppendTo(nil) {
		if z = s.uf.Find(z); z != id {
			succ.Insert(z)
		}
	}
	if !succ.Equals(&n.succ) {
		n.succ.Copy(&succ)
	}

	for _, z := range succ.AppendTo(nil) {
		nz := s.nodes[z]

		if !s.config.DisableLCD && !n.pts.IsEmpty() && nz.pts.Equals(&n.pts) {
			e := edge{id, z}
			if _, done := s.tested[e]; !done {
				s.tested[e] = struct{}{}
				s.stats.LCDChecks++

				if cycle := s.findPath(z, id); cycle != nil {
					s.work.Push(s.collapse(cycle))
					// The successors of id have changed. It has been
					// pushed again and is revisited with the merged sets.
					return
				}
			}
			continue
		}

		if nz.pts.UnionWith(&n.pts) {
			s.work.Push(z)
		}
	}
}

// findPath returns the nodes on a path from node from to node to, following
// successor edges, or nil if to is unreachable.
func (s *solver) findPath(from, to int) []int {
	parent := map[int]int{from: from}
	stack := []int{from}
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if v == to {
			path := []int{to}
			for v != from {
				v = parent[v]
				path = append(path, v)
			}
			return path
		}

		for _, w := range s.nodes[v].succ.AppendTo(nil) {
			w = s.uf.Find(w)
			if _, seen := parent[w]; !seen {
				parent[w] = v
				stack = append(stack, w)
			}
		}
	}

	return nil
}

// collapse merges all nodes on a cycle and returns the representative.
func (s *solver) collapse(cycle []int) int {
	rep := cycle[0]
	for _, v := range cycle[1:] {
		rep = s.merge(rep, v)
		s.stats.LCDMerges++
	}
	return rep
}

func (s *solver) result() PointsToSets {
	res := make(PointsToSets, s.vars.Len())
	names := make(map[int][]Variable)
	for id := 0; id < s.vars.Len(); id++ {
		rep := s.uf.Find(id)
		objs, found := names[rep]
		if !found {
			elems := s.nodes[rep].pts.AppendTo(nil)
			objs = make([]Variable, 0, len(elems))
			for _, o := range elems {
				objs = append(objs, s.vars.Name(o))
			}
			names[rep] = objs
		}

		// Variables in the same class share the backing array.
		res[s.vars.Name(id)] = objs[:len(objs):len(objs)]
	}
	return res
}
