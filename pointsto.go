package andersen

import (
	"fmt"
	"strings"

	"github.com/BarrensZeppelin/andersen/internal/maps"
	sets "github.com/BarrensZeppelin/andersen/slices"
	"golang.org/x/exp/slices"
)

// PointsToSets maps every variable of a solved constraint system to the
// objects it may point to. The slices are duplicate-free and unordered.
type PointsToSets map[Variable][]Variable

// PointsTo returns the points-to set of v, which is empty for variables that
// do not occur in the constraint system.
func (p PointsToSets) PointsTo(v Variable) []Variable {
	return p[v]
}

// MayAlias reports whether the points-to sets of a and b intersect.
func (p PointsToSets) MayAlias(a, b Variable) bool {
	return sets.Intersects(p[a], p[b])
}

// Sorted returns a copy of p where every points-to set is sorted.
func (p PointsToSets) Sorted() PointsToSets {
	res := make(PointsToSets, len(p))
	for v, objs := range p {
		objs = slices.Clone(objs)
		slices.Sort(objs)
		res[v] = objs
	}
	return res
}

// Variables returns the keys of p in sorted order.
func (p PointsToSets) Variables() []Variable {
	return maps.SortedKeys(p)
}

func (p PointsToSets) String() string {
	var sb strings.Builder
	sorted := p.Sorted()
	for _, v := range p.Variables() {
		fmt.Fprintf(&sb, "%s -> {%s}\n", v, strings.Join(sorted[v], ", "))
	}
	return sb.String()
}
