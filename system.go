package andersen

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/BarrensZeppelin/andersen/internal/pset"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// ConstraintSystem is an immutable collection of constraints together with
// the lazily computed solution of those constraints.
//
// AddConstraint and Join never modify their operands, so systems can be
// built independently (for instance one per function, on different
// goroutines) and joined before solving. The first call to PointsToSets
// solves the system under a lock; later calls return the cached solution.
//
// The zero value is not usable: adding constraints to it panics. Create
// systems with NewConstraintSystem.
type ConstraintSystem struct {
	base    pset.Set[BaseConstraint]
	simple  pset.Set[SimpleConstraint]
	complex pset.Set[ComplexConstraint]

	mu       sync.Mutex
	computed bool
	pts      PointsToSets
	stats    Stats
}

// NewConstraintSystem returns an empty constraint system.
func NewConstraintSystem() *ConstraintSystem {
	return &ConstraintSystem{
		base:    pset.New(hashBase),
		simple:  pset.New(hashSimple),
		complex: pset.New(hashComplex),
	}
}

func (cs *ConstraintSystem) with(
	base pset.Set[BaseConstraint],
	simple pset.Set[SimpleConstraint],
	complex pset.Set[ComplexConstraint],
) *ConstraintSystem {
	return &ConstraintSystem{base: base, simple: simple, complex: complex}
}

// AddConstraint returns a system that additionally contains c. If c is
// already present the receiver itself is returned.
func (cs *ConstraintSystem) AddConstraint(c Constraint) *ConstraintSystem {
	switch c := c.(type) {
	case BaseConstraint:
		if cs.base.Has(c) {
			return cs
		}
		return cs.with(cs.base.Insert(c), cs.simple, cs.complex)
	case SimpleConstraint:
		if cs.simple.Has(c) {
			return cs
		}
		return cs.with(cs.base, cs.simple.Insert(c), cs.complex)
	case ComplexConstraint:
		if cs.complex.Has(c) {
			return cs
		}
		return cs.with(cs.base, cs.simple, cs.complex.Insert(c))
	default:
		log.Panicf("Unknown constraint kind %T", c)
		return nil
	}
}

func (cs *ConstraintSystem) AddConstraints(constraints ...Constraint) *ConstraintSystem {
	for _, c := range constraints {
		cs = cs.AddConstraint(c)
	}
	return cs
}

// Join returns a system containing the constraints of both systems. If other
// contributes no new constraints the receiver is returned.
func (cs *ConstraintSystem) Join(other *ConstraintSystem) *ConstraintSystem {
	base := pset.Union(cs.base, other.base)
	simple := pset.Union(cs.simple, other.simple)
	complex := pset.Union(cs.complex, other.complex)

	if base.Len() == cs.base.Len() &&
		simple.Len() == cs.simple.Len() &&
		complex.Len() == cs.complex.Len() {
		return cs
	}

	return cs.with(base, simple, complex)
}

// Len returns the total number of constraints in the system.
func (cs *ConstraintSystem) Len() int {
	return cs.base.Len() + cs.simple.Len() + cs.complex.Len()
}

// BaseConstraints returns the base constraints in no particular order.
func (cs *ConstraintSystem) BaseConstraints() []BaseConstraint { return cs.base.Slice() }

// SimpleConstraints returns the simple constraints in no particular order.
func (cs *ConstraintSystem) SimpleConstraints() []SimpleConstraint { return cs.simple.Slice() }

// ComplexConstraints returns the complex constraints in no particular order.
func (cs *ConstraintSystem) ComplexConstraints() []ComplexConstraint { return cs.complex.Slice() }

// Constraints returns all constraints of the system, ordered by kind (base,
// simple, complex) and then by their textual representation.
func (cs *ConstraintSystem) Constraints() []Constraint {
	res := make([]Constraint, 0, cs.Len())
	appendSorted := func(part []Constraint) {
		slices.SortFunc(part, func(a, b Constraint) bool {
			return a.String() < b.String()
		})
		res = append(res, part...)
	}

	var part []Constraint
	cs.base.ForEach(func(c BaseConstraint) { part = append(part, c) })
	appendSorted(part)

	part = nil
	cs.simple.ForEach(func(c SimpleConstraint) { part = append(part, c) })
	appendSorted(part)

	part = nil
	cs.complex.ForEach(func(c ComplexConstraint) { part = append(part, c) })
	appendSorted(part)

	return res
}

// PointsToSets returns the solution of the system. The solution is computed
// with the default configuration on the first call and cached afterwards.
// The returned map must not be modified.
func (cs *ConstraintSystem) PointsToSets() PointsToSets {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.computed {
		// The background context is never cancelled.
		pts, stats, err := cs.Solve(context.Background(), SolveConfig{})
		if err != nil {
			log.Panicf("Solving failed: %v", err)
		}

		cs.pts, cs.stats, cs.computed = pts, stats, true
	}

	return cs.pts
}

// Stats returns the statistics of the cached solution, solving the system
// first if necessary.
func (cs *ConstraintSystem) Stats() Stats {
	cs.PointsToSets()
	return cs.stats
}

// Solve computes the solution of the system with the given configuration.
// The result is not cached. Solve returns ctx.Err() if ctx is cancelled
// before a fixed point is reached.
func (cs *ConstraintSystem) Solve(ctx context.Context, config SolveConfig) (PointsToSets, Stats, error) {
	s := newSolver(cs, config)
	if err := s.solve(ctx); err != nil {
		return nil, s.stats, err
	}

	return s.result(), s.stats, nil
}

func (cs *ConstraintSystem) String() string {
	var sb strings.Builder
	for _, c := range cs.Constraints() {
		fmt.Fprintln(&sb, c)
	}

	cs.mu.Lock()
	computed, pts := cs.computed, cs.pts
	cs.mu.Unlock()

	if computed {
		sb.WriteString("\n")
		sb.WriteString(pts.String())
	}

	return sb.String()
}
