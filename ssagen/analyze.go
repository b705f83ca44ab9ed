// Package ssagen generates inclusion constraints for Go programs in SSA form
// and answers points-to queries about them.
package ssagen

import (
	"context"
	"errors"
	"runtime"

	"github.com/BarrensZeppelin/andersen"
	"github.com/BarrensZeppelin/andersen/internal/queue"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

var ErrNoRoots = errors.New("no entry points to analyse")

type Config struct {
	Program *ssa.Program

	// Functions that are reachable without being called. Defaults to the
	// main and init functions of the main packages of Program.
	Roots []*ssa.Function

	// Maximum number of functions translated concurrently. Defaults to
	// GOMAXPROCS.
	Parallelism int

	Solver andersen.SolveConfig
	Logger log.FieldLogger
}

func roots(prog *ssa.Program) []*ssa.Function {
	var res []*ssa.Function
	for _, pkg := range ssautil.MainPackages(prog.AllPackages()) {
		for _, name := range [...]string{"main", "init"} {
			if fun := pkg.Func(name); fun != nil {
				res = append(res, fun)
			}
		}
	}
	return res
}

// reachable returns the functions reachable from roots in the call graph cg,
// in discovery order.
func reachable(cg *callgraph.Graph, roots []*ssa.Function) []*ssa.Function {
	var q queue.Queue[*ssa.Function]
	visited := make(map[*ssa.Function]bool)
	discover := func(fun *ssa.Function) {
		if !visited[fun] {
			visited[fun] = true
			q.Push(fun)
		}
	}

	for _, fun := range roots {
		discover(fun)
	}

	var res []*ssa.Function
	for !q.Empty() {
		fun := q.Pop()
		res = append(res, fun)
		if n := cg.Nodes[fun]; n != nil {
			for _, e := range n.Out {
				discover(e.Callee.Func)
			}
		}
	}

	return res
}

// Analyze translates the functions of the program that are reachable from
// the roots into constraints and solves them.
//
// Callees of dynamically dispatched calls are approximated by class
// hierarchy analysis while generating constraints. The call graph of the
// result is refined with the computed points-to sets.
func Analyze(ctx context.Context, config Config) (*Result, error) {
	logger := config.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	entries := config.Roots
	if len(entries) == 0 {
		entries = roots(config.Program)
	}
	if len(entries) == 0 {
		return nil, ErrNoRoots
	}

	cg := cha.CallGraph(config.Program)
	funcs := reachable(cg, entries)
	logger.WithField("functions", len(funcs)).Debug("Computed reachable functions")

	parallelism := config.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	systems := make([]*andersen.ConstraintSystem, len(funcs))
	labels := make([]map[andersen.Variable]Label, len(funcs))

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(parallelism)
	for i, fun := range funcs {
		i, fun := i, fun
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}

			x := newExtractor(fun, cg)
			x.run()
			systems[i], labels[i] = x.cs, x.labels
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		System:    andersen.NewConstraintSystem(),
		Reachable: make(map[*ssa.Function]bool, len(funcs)),
		prog:      config.Program,
		roots:     entries,
		labels:    make(map[andersen.Variable]Label),
	}
	for i, fun := range funcs {
		res.Reachable[fun] = true
		res.System = res.System.Join(systems[i])
		for obj, label := range labels[i] {
			res.labels[obj] = label
		}
	}

	logger.WithField("constraints", res.System.Len()).Debug("Generated constraints")

	solver := config.Solver
	if solver.Logger == nil {
		solver.Logger = logger
	}

	pts, stats, err := res.System.Solve(ctx, solver)
	if err != nil {
		return nil, err
	}
	res.pts, res.Stats = pts, stats

	return res, nil
}
