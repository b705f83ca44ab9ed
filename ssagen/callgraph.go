package ssagen

import (
	"go/types"

	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/ssa"
)

// CallGraph returns a call graph for the analysed program. Dynamically
// dispatched calls are resolved using the results of the pointer analysis.
// The root node of the graph calls the entry points of the analysis.
func (r *Result) CallGraph() *callgraph.Graph {
	r.callGraphOnce.Do(func() {
		cg := callgraph.New(nil)
		for _, fun := range r.roots {
			callgraph.AddEdge(cg.Root, nil, cg.CreateNode(fun))
		}

		for fun := range r.Reachable {
			n := cg.CreateNode(fun)

			for _, block := range fun.Blocks {
				for _, insn := range block.Instrs {
					call, ok := insn.(ssa.CallInstruction)
					if !ok {
						continue
					}

					for _, callee := range r.callees(call.Common()) {
						callgraph.AddEdge(n, call, cg.CreateNode(callee))
					}
				}
			}
		}

		r.callGraph = cg
	})

	return r.callGraph
}

func (r *Result) callees(common *ssa.CallCommon) []*ssa.Function {
	if _, isBuiltin := common.Value.(*ssa.Builtin); isBuiltin {
		return nil
	}

	if common.IsInvoke() {
		var res []*ssa.Function
		for _, l := range r.labelsOf(variable(common.Value)) {
			mi, ok := l.Site().(*ssa.MakeInterface)
			if !ok {
				continue
			}

			if fun := r.lookupMethod(mi.X.Type(), common.Method); fun != nil {
				res = append(res, fun)
			}
		}
		return res
	}

	if sc := common.StaticCallee(); sc != nil {
		return []*ssa.Function{sc}
	}

	var res []*ssa.Function
	for _, l := range r.labelsOf(variable(common.Value)) {
		if fun, ok := l.Site().(*ssa.Function); ok {
			res = append(res, fun)
		}
	}
	return res
}

func (r *Result) lookupMethod(t types.Type, method *types.Func) *ssa.Function {
	sel := r.prog.MethodSets.MethodSet(t).Lookup(method.Pkg(), method.Name())
	if sel == nil {
		return nil
	}
	return r.prog.MethodValue(sel)
}
