package ssagen

import (
	"fmt"
	"sync"

	"github.com/BarrensZeppelin/andersen"
	islices "github.com/BarrensZeppelin/andersen/internal/slices"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/ssa"
)

type Result struct {
	// The constraints generated for the reachable functions.
	System *andersen.ConstraintSystem
	Stats  andersen.Stats

	Reachable map[*ssa.Function]bool

	prog   *ssa.Program
	roots  []*ssa.Function
	pts    andersen.PointsToSets
	labels map[andersen.Variable]Label

	callGraphOnce sync.Once
	callGraph     *callgraph.Graph
}

func (r *Result) labelsOf(v andersen.Variable) []Label {
	res := islices.FilterMap(r.pts[v], func(o andersen.Variable) (Label, bool) {
		l, ok := r.labels[o]
		return l, ok
	})

	slices.SortFunc(res, func(a, b Label) bool {
		return a.String() < b.String()
	})
	return res
}

// PointsTo returns the objects that v may point to. v must have a
// pointer-like type.
func (r *Result) PointsTo(v ssa.Value) []Label {
	if !PointerLike(v.Type()) {
		panic(fmt.Errorf("The type of %v is not pointer-like", v))
	}

	name := variable(v)
	if name == "" {
		return nil
	}
	return r.labelsOf(name)
}

// MayAlias reports whether a and b may point to the same object.
func (r *Result) MayAlias(a, b ssa.Value) bool {
	va, vb := variable(a), variable(b)
	if va == "" || vb == "" {
		return false
	}
	return r.pts.MayAlias(va, vb)
}

// PanicValues returns the objects that may be passed to panic, and hence
// returned by recover.
func (r *Result) PanicValues() []Label {
	return r.labelsOf(panicVar)
}

// PointsToSets returns the solution for the raw constraint variables.
func (r *Result) PointsToSets() andersen.PointsToSets {
	return r.pts
}
