package ssagen_test

import (
	"context"
	"testing"

	"github.com/BarrensZeppelin/andersen"
	"github.com/BarrensZeppelin/andersen/internal/slices"
	"github.com/BarrensZeppelin/andersen/pkgutil"
	"github.com/BarrensZeppelin/andersen/ssagen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/ssa"
)

func build(t *testing.T, source string) (*ssa.Program, *ssa.Package) {
	t.Helper()

	pkgs, err := pkgutil.LoadPackagesFromSource(source)
	require.NoError(t, err)

	prog, spkgs := pkgutil.BuildProgram(pkgs, ssa.SanityCheckFunctions)
	return prog, spkgs[0]
}

func analyze(t *testing.T, prog *ssa.Program) *ssagen.Result {
	t.Helper()

	res, err := ssagen.Analyze(context.Background(), ssagen.Config{Program: prog})
	require.NoError(t, err)
	return res
}

func instrs[T ssa.Instruction](fun *ssa.Function) []T {
	var res []T
	for _, block := range fun.Blocks {
		for _, insn := range block.Instrs {
			if i, ok := insn.(T); ok {
				res = append(res, i)
			}
		}
	}
	return res
}

// newAllocs returns the allocations of fun that stem from calls to new.
func newAllocs(fun *ssa.Function) []ssa.Value {
	var res []ssa.Value
	for _, alloc := range instrs[*ssa.Alloc](fun) {
		if alloc.Comment == "new" {
			res = append(res, alloc)
		}
	}
	return res
}

// printed returns the arguments of the first call to println in fun.
func printed(t *testing.T, fun *ssa.Function) []ssa.Value {
	t.Helper()
	for _, call := range instrs[*ssa.Call](fun) {
		if b, ok := call.Call.Value.(*ssa.Builtin); ok && b.Name() == "println" {
			return call.Call.Args
		}
	}
	require.FailNow(t, "no call to println")
	return nil
}

func sites(labels []ssagen.Label) []ssa.Value {
	return slices.Map(labels, ssagen.Label.Site)
}

func TestAnalyze(t *testing.T) {
	t.Run("Example", func(t *testing.T) {
		prog, pkg := build(t, `
			package main

			func ubool() bool

			func main() {
				x := new(*int)
				*x = new(int)
				if ubool() {
					*x = new(int)
				}
				y := *x
				*y = 10
				println(y)
			}`)

		res := analyze(t, prog)
		main := pkg.Func("main")
		allocs := newAllocs(main)
		require.Len(t, allocs, 3)

		y := printed(t, main)[0]
		assert.Equal(t, allocs[1:], sites(res.PointsTo(y)))
		assert.Equal(t, allocs[:1], sites(res.PointsTo(allocs[0])))
		assert.True(t, res.Reachable[main])
	})

	t.Run("SpuriousPointsTo", func(t *testing.T) {
		prog, pkg := build(t, `
			package main
			func ubool() bool
			func main() {
				x := new(*int)
				y := new(*int)
				z := *x
				if ubool() { z = *y }
				println(z)
			}`)

		res := analyze(t, prog)
		allocs := instrs[*ssa.Alloc](pkg.Func("main"))
		require.Len(t, allocs, 2)

		x, y := allocs[0], allocs[1]
		assert.Len(t, res.PointsTo(x), 1, "x should only point to one allocation site")
		assert.Len(t, res.PointsTo(y), 1, "y should only point to one allocation site")
		assert.False(t, res.MayAlias(x, y), "x and y should not alias")
		assert.Empty(t, res.PointsTo(printed(t, pkg.Func("main"))[0]))
	})

	t.Run("Calls", func(t *testing.T) {
		prog, pkg := build(t, `
			package main

			type T struct{ p *int }

			type I interface{ Get() *int }

			func (t *T) Get() *int { return t.p }

			func id(p *int) *int { return p }

			func main() {
				a := new(int)
				b := new(int)
				var i I = &T{p: a}
				f := func() *int { return a }
				println(i.Get(), id(b), f())
			}`)

		res := analyze(t, prog)
		main := pkg.Func("main")
		allocs := newAllocs(main)
		require.Len(t, allocs, 2)
		a, b := allocs[0], allocs[1]

		args := printed(t, main)
		require.Len(t, args, 3)
		viaInvoke, viaCall, viaClosure := args[0], args[1], args[2]

		assert.Equal(t, []ssa.Value{a}, sites(res.PointsTo(viaInvoke)))
		assert.Equal(t, []ssa.Value{b}, sites(res.PointsTo(viaCall)))
		assert.Equal(t, []ssa.Value{a}, sites(res.PointsTo(viaClosure)))

		assert.True(t, res.MayAlias(viaInvoke, viaClosure))
		assert.False(t, res.MayAlias(viaInvoke, viaCall))

		t.Run("CallGraph", func(t *testing.T) {
			cg := res.CallGraph()
			require.Contains(t, cg.Nodes, main)

			var callees []string
			for _, e := range cg.Nodes[main].Out {
				callees = append(callees, e.Callee.Func.Name())
			}
			assert.ElementsMatch(t, []string{"Get", "id", "main$1"}, callees)

			var roots []*ssa.Function
			for _, e := range cg.Root.Out {
				roots = append(roots, e.Callee.Func)
			}
			assert.Contains(t, roots, main)
		})
	})

	t.Run("Closures", func(t *testing.T) {
		prog, pkg := build(t, `
			package main

			func apply(f func() *int) *int { return f() }

			func main() {
				a := new(int)
				f := func() *int { return a }
				g := func() *int { return new(int) }
				println(apply(f), apply(g))
			}`)

		res := analyze(t, prog)
		main := pkg.Func("main")
		require.Len(t, main.AnonFuncs, 2)
		f, g := main.AnonFuncs[0], main.AnonFuncs[1]

		// Closures are denoted by the function they instantiate.
		param := pkg.Func("apply").Params[0]
		assert.Equal(t, []ssa.Value{f, g}, sites(res.PointsTo(param)))

		args := printed(t, main)
		assert.Contains(t, sites(res.PointsTo(args[0])), newAllocs(main)[0])
	})

	t.Run("ChannelsAndMaps", func(t *testing.T) {
		prog, pkg := build(t, `
			package main

			func main() {
				a, b := new(int), new(int)
				ch := make(chan *int, 1)
				ch <- a
				m := map[string]*int{}
				m["b"] = b
				println(<-ch, m["b"])
			}`)

		res := analyze(t, prog)
		main := pkg.Func("main")
		allocs := newAllocs(main)
		require.Len(t, allocs, 2)

		args := printed(t, main)
		assert.Equal(t, allocs[:1], sites(res.PointsTo(args[0])))
		assert.Equal(t, allocs[1:], sites(res.PointsTo(args[1])))
	})

	t.Run("PanicRecover", func(t *testing.T) {
		prog, pkg := build(t, `
			package main

			type E struct{}

			func main() {
				defer func() {
					println(recover())
				}()
				panic(&E{})
			}`)

		res := analyze(t, prog)
		main := pkg.Func("main")
		require.Len(t, main.AnonFuncs, 1)

		objs := res.PanicValues()
		require.Len(t, objs, 1)
		_, isItf := objs[0].Site().(*ssa.MakeInterface)
		assert.True(t, isItf)

		assert.Equal(t, objs, res.PointsTo(printed(t, main.AnonFuncs[0])[0]))
	})

	t.Run("Globals", func(t *testing.T) {
		prog, pkg := build(t, `
			package main

			var g *int

			func set() { g = new(int) }

			func main() {
				set()
				println(g)
			}`)

		res := analyze(t, prog)
		allocs := newAllocs(pkg.Func("set"))
		require.Len(t, allocs, 1)

		glob := pkg.Var("g")
		require.NotNil(t, glob)
		assert.Equal(t, []ssa.Value{glob}, sites(res.PointsTo(glob)))
		assert.Equal(t, allocs, sites(res.PointsTo(printed(t, pkg.Func("main"))[0])))
	})
}

func TestAnalyzeConfig(t *testing.T) {
	prog, _ := build(t, `
		package main

		type T struct{ next *T }

		func main() {
			var l *T
			for i := 0; i < 10; i++ {
				l = &T{next: l}
			}
			println(l)
		}`)

	t.Run("Parallelism", func(t *testing.T) {
		var systems []*andersen.ConstraintSystem
		for _, parallelism := range []int{1, 4} {
			res, err := ssagen.Analyze(context.Background(), ssagen.Config{
				Program:     prog,
				Parallelism: parallelism,
			})
			require.NoError(t, err)
			systems = append(systems, res.System)
		}

		assert.Equal(t, systems[0].Constraints(), systems[1].Constraints())
	})

	t.Run("Cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := ssagen.Analyze(ctx, ssagen.Config{Program: prog})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("NoRoots", func(t *testing.T) {
		_, err := ssagen.Analyze(context.Background(), ssagen.Config{
			Program: ssa.NewProgram(prog.Fset, 0),
		})
		assert.ErrorIs(t, err, ssagen.ErrNoRoots)
	})

	t.Run("SolverOptions", func(t *testing.T) {
		res, err := ssagen.Analyze(context.Background(), ssagen.Config{
			Program: prog,
			Solver:  andersen.SolveConfig{DisableHCD: true, DisableLCD: true},
		})
		require.NoError(t, err)
		assert.Zero(t, res.Stats.OfflineSCCs)
		assert.Zero(t, res.Stats.LCDMerges)
	})
}
