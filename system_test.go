package andersen_test

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/BarrensZeppelin/andersen"
	"github.com/BarrensZeppelin/andersen/slices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func system(constraints ...andersen.Constraint) *andersen.ConstraintSystem {
	return andersen.NewConstraintSystem().AddConstraints(constraints...)
}

func TestAddConstraint(t *testing.T) {
	s := andersen.NewConstraintSystem()
	c := andersen.Simple("p", "q")

	s1 := s.AddConstraint(c)
	require.NotSame(t, s, s1)
	assert.Equal(t, 0, s.Len(), "the original system is unchanged")
	assert.Equal(t, 1, s1.Len())

	s2 := s1.AddConstraint(c)
	assert.Same(t, s1, s2, "adding a present constraint returns the same system")
	assert.Equal(t, s1.Constraints(), s2.Constraints())

	s3 := s2.AddConstraint(andersen.Load("p", "q"))
	assert.Equal(t, 2, s3.Len())
	assert.Same(t, s3, s3.AddConstraint(andersen.Complex("p", "q", true)))
	assert.NotSame(t, s3, s3.AddConstraint(andersen.Store("p", "q")))

	assert.Equal(t, []andersen.SimpleConstraint{c}, s3.SimpleConstraints())
	assert.Empty(t, s3.BaseConstraints())
	assert.Len(t, s3.ComplexConstraints(), 1)

	t.Run("ZeroValue", func(t *testing.T) {
		var zero andersen.ConstraintSystem
		assert.Panics(t, func() { zero.AddConstraint(c) })
	})
}

func TestJoin(t *testing.T) {
	a := system(andersen.Base("o", "p"), andersen.Simple("p", "q"))
	b := system(andersen.Simple("p", "q"), andersen.Load("q", "r"))

	j := a.Join(b)
	assert.Equal(t, 3, j.Len())
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, 2, b.Len())

	assert.Same(t, j, j.Join(a), "joining a subset returns the receiver")
	assert.Same(t, a, a.Join(andersen.NewConstraintSystem()))
	assert.ElementsMatch(t, j.Constraints(), b.Join(a).Constraints())
}

func TestParallelConstruction(t *testing.T) {
	const parts = 16

	var seq []andersen.Constraint
	systems := make([]*andersen.ConstraintSystem, parts)

	var eg errgroup.Group
	for i := 0; i < parts; i++ {
		i := i
		eg.Go(func() error {
			cs := andersen.NewConstraintSystem()
			for _, c := range chunk(i) {
				cs = cs.AddConstraint(c)
			}
			systems[i] = cs
			return nil
		})
		seq = append(seq, chunk(i)...)
	}
	require.NoError(t, eg.Wait())

	joined := andersen.NewConstraintSystem()
	for _, cs := range systems {
		joined = joined.Join(cs)
	}

	assert.Equal(t, system(seq...).Constraints(), joined.Constraints())
	assert.Equal(t,
		system(seq...).PointsToSets().Sorted(),
		joined.PointsToSets().Sorted())
}

// chunk returns the constraints of a small function-like unit i that shares
// the variable "global" with all other units.
func chunk(i int) []andersen.Constraint {
	v := func(name string) string { return fmt.Sprintf("f%d.%s", i, name) }
	return []andersen.Constraint{
		andersen.Base(v("obj"), v("x")),
		andersen.Simple(v("x"), v("y")),
		andersen.Store(v("y"), "global"),
		andersen.Base("gobj", "global"),
		andersen.Load("global", v("z")),
	}
}

func TestPointsToSets(t *testing.T) {
	type pts = map[string][]string

	check := func(t *testing.T, cs *andersen.ConstraintSystem, expected pts) {
		t.Helper()
		res := cs.PointsToSets()
		for v, objs := range expected {
			assert.ElementsMatch(t, objs, res[v], "pts(%s)", v)
		}
	}

	t.Run("BaseFact", func(t *testing.T) {
		check(t, system(andersen.Base("o", "p")), pts{"p": {"o"}})
	})

	t.Run("SimplePropagation", func(t *testing.T) {
		res := system(andersen.Base("o", "p"), andersen.Simple("p", "q")).PointsToSets()
		assert.Contains(t, res["q"], "o")
	})

	t.Run("ChainedPropagation", func(t *testing.T) {
		cs := system(
			andersen.Base("o1", "p"),
			andersen.Simple("p", "q"),
			andersen.Simple("q", "r"))
		check(t, cs, pts{"p": {"o1"}, "q": {"o1"}, "r": {"o1"}, "o1": {}})
		assert.Len(t, cs.PointsToSets(), 4)
	})

	t.Run("Load", func(t *testing.T) {
		// *p ⊆ q with p → o and o → x.
		res := system(
			andersen.Base("o", "p"),
			andersen.Base("x", "o"),
			andersen.Complex("p", "q", true)).PointsToSets()
		assert.Contains(t, res["q"], "x")
		assert.ElementsMatch(t, []string{"x"}, res["q"])
	})

	t.Run("Store", func(t *testing.T) {
		// q ⊆ *p with p → o and q → t.
		res := system(
			andersen.Base("o", "p"),
			andersen.Base("t", "q"),
			andersen.Complex("q", "p", false)).PointsToSets()
		assert.Contains(t, res["o"], "t")
		assert.ElementsMatch(t, []string{"t"}, res["o"])
		assert.ElementsMatch(t, []string{"o"}, res["p"], "stores do not change the pointer")
	})

	t.Run("CycleCollapsing", func(t *testing.T) {
		cs := system(
			andersen.Base("o", "a"),
			andersen.Simple("a", "b"),
			andersen.Simple("b", "c"),
			andersen.Simple("c", "a"))
		for _, config := range allConfigs {
			res, _, err := cs.Solve(context.Background(), config)
			require.NoError(t, err)
			for _, v := range []string{"a", "b", "c"} {
				assert.Equal(t, []string{"o"}, res[v], "pts(%s) with %+v", v, config)
			}
		}
	})

	t.Run("SelfLoop", func(t *testing.T) {
		check(t, system(andersen.Base("o", "x"), andersen.Simple("x", "x")), pts{"x": {"o"}})
	})

	t.Run("SourcesAreKeys", func(t *testing.T) {
		res := system(andersen.Simple("a", "b")).PointsToSets()
		require.Contains(t, res, "a")
		assert.NotNil(t, res["a"])
		assert.Empty(t, res["a"])
		assert.Empty(t, res["b"])
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Empty(t, andersen.NewConstraintSystem().PointsToSets())
	})

	t.Run("StoreThroughLoad", func(t *testing.T) {
		// x = &a; y = &b; p = &x; q = *p; *q = y  ==>  a → b
		check(t, system(
			andersen.Base("a", "x"),
			andersen.Base("b", "y"),
			andersen.Base("x", "p"),
			andersen.Load("p", "q"),
			andersen.Store("y", "q"),
		), pts{"q": {"a"}, "a": {"b"}, "x": {"a"}, "p": {"x"}})
	})
}

func TestMonotonicity(t *testing.T) {
	s1 := system(
		andersen.Base("o1", "p"),
		andersen.Simple("p", "q"),
		andersen.Load("q", "r"))
	s2 := s1.Join(system(
		andersen.Base("o2", "q"),
		andersen.Base("o3", "o2"),
		andersen.Store("p", "q")))

	p1, p2 := s1.PointsToSets(), s2.PointsToSets()
	for v, objs := range p1 {
		assert.True(t, slices.Subset(objs, p2[v]), "pts1(%s) = %v ⊈ %v", v, objs, p2[v])
	}
	assert.Contains(t, p2["r"], "o3")
	assert.Contains(t, p2["o2"], "o1")
}

func TestCaching(t *testing.T) {
	cs := system(andersen.Base("o", "p"), andersen.Simple("p", "q"))

	var wg sync.WaitGroup
	results := make([]andersen.PointsToSets, 8)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = cs.PointsToSets()
		}()
	}
	wg.Wait()

	first := reflect.ValueOf(results[0]).Pointer()
	for _, res := range results[1:] {
		assert.Equal(t, first, reflect.ValueOf(res).Pointer(), "every caller sees the cached map")
	}

	stats := cs.Stats()
	assert.Equal(t, 3, stats.Variables)
	assert.Positive(t, stats.Pops)

	t.Run("DerivedSystemsSolveAgain", func(t *testing.T) {
		cs2 := cs.AddConstraint(andersen.Base("o2", "q"))
		assert.ElementsMatch(t, []string{"o", "o2"}, cs2.PointsToSets()["q"])
		assert.ElementsMatch(t, []string{"o"}, cs.PointsToSets()["q"])
	})
}

func TestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cs := system(andersen.Base("o", "p"))
	res, _, err := cs.Solve(ctx, andersen.SolveConfig{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestString(t *testing.T) {
	cs := system(andersen.Base("o", "p"), andersen.Simple("p", "q"))
	assert.Equal(t, "{o} ⊆ p\np ⊆ q\n", cs.String())

	cs.PointsToSets()
	assert.Equal(t, "{o} ⊆ p\np ⊆ q\n\no -> {}\np -> {o}\nq -> {o}\n", cs.String())
}

func TestMayAlias(t *testing.T) {
	res := system(
		andersen.Base("o1", "p"),
		andersen.Base("o2", "p"),
		andersen.Base("o2", "q"),
		andersen.Base("o3", "r"),
	).PointsToSets()

	assert.True(t, res.MayAlias("p", "q"))
	assert.True(t, res.MayAlias("q", "p"))
	assert.False(t, res.MayAlias("p", "r"))
	assert.False(t, res.MayAlias("o1", "o1"), "empty sets alias nothing")
	assert.False(t, res.MayAlias("p", "unknown"))

	assert.Equal(t, []string{"o1", "o2"}, res.Sorted()["p"])
	assert.Equal(t, []string{"o1", "o2", "o3", "p", "q", "r"}, res.Variables())
}

var allConfigs = []andersen.SolveConfig{
	{},
	{DisableHCD: true},
	{DisableLCD: true},
	{DisableHCD: true, DisableLCD: true},
}
