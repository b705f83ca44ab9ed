package ssagen

import (
	"fmt"
	"go/token"
	"go/types"

	"github.com/BarrensZeppelin/andersen"
	"github.com/BarrensZeppelin/andersen/internal/slices"
	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/ssa"
)

// extractor translates the body of a single function into constraints.
//
// The translation is field-insensitive: the points-to set of an abstract
// object is the union of everything stored in any of its fields or
// elements, and struct or tuple values hold the union of their components.
type extractor struct {
	fn      *ssa.Function
	callees map[ssa.CallInstruction][]*ssa.Function

	cs     *andersen.ConstraintSystem
	labels map[andersen.Variable]Label
}

func newExtractor(fn *ssa.Function, cg *callgraph.Graph) *extractor {
	x := &extractor{
		fn:      fn,
		callees: make(map[ssa.CallInstruction][]*ssa.Function),
		cs:      andersen.NewConstraintSystem(),
		labels:  make(map[andersen.Variable]Label),
	}

	if n := cg.Nodes[fn]; n != nil {
		for _, e := range n.Out {
			x.callees[e.Site] = append(x.callees[e.Site], e.Callee.Func)
		}
	}

	return x
}

func (x *extractor) add(c andersen.Constraint) {
	if c.SubVar() != "" && c.SuperVar() != "" {
		x.cs = x.cs.AddConstraint(c)
	}
}

func (x *extractor) simple(from, to andersen.Variable) {
	x.add(andersen.Simple(from, to))
}

func (x *extractor) load(ptr, dst andersen.Variable) {
	x.add(andersen.Load(ptr, dst))
}

func (x *extractor) store(src, ptr andersen.Variable) {
	x.add(andersen.Store(src, ptr))
}

// alloc makes the register of v point to the object allocated by v.
func (x *extractor) alloc(v ssa.Value) andersen.Variable {
	obj := object(v)
	x.labels[obj] = Label{v}
	x.add(andersen.Base(obj, register(v)))
	return obj
}

// eval returns the variable holding v. Globals and functions are bound to
// their objects on first use.
func (x *extractor) eval(v ssa.Value) andersen.Variable {
	res := variable(v)
	switch v := v.(type) {
	case *ssa.Global, *ssa.Function:
		obj := object(v)
		x.labels[obj] = Label{v}
		x.add(andersen.Base(obj, res))
	}
	return res
}

// temp returns a fresh variable for the instruction at position i of block b.
func (x *extractor) temp(b *ssa.BasicBlock, i int, suffix string) andersen.Variable {
	return fmt.Sprintf("%s$b%di%d#%s", x.fn, b.Index, i, suffix)
}

func (x *extractor) run() {
	for _, block := range x.fn.Blocks {
		for i, insn := range block.Instrs {
			x.instruction(block, i, insn)
		}
	}
}

func (x *extractor) call(call ssa.CallInstruction) {
	common := call.Common()

	var rval andersen.Variable
	if v := call.Value(); v != nil && mayContainPointers(v.Type()) {
		rval = register(v)
	}

	args := slices.Map(common.Args, x.eval)
	recv := ""
	if common.IsInvoke() {
		recv = x.eval(common.Value)
	} else {
		// Make function values available for the call graph.
		x.eval(common.Value)
	}

	for _, callee := range x.callees[call] {
		if callee.Blocks == nil {
			continue
		}

		offset := 0
		if common.IsInvoke() {
			// The receiver is the concrete value held by the interface.
			x.load(recv, param(callee, 0))
			offset = 1
		}

		for i, arg := range args {
			if j := i + offset; j < len(callee.Params) {
				x.simple(arg, param(callee, j))
			}
		}

		x.simple(returnVar(callee), rval)
	}
}

func (x *extractor) builtin(b *ssa.BasicBlock, i int, call ssa.CallInstruction) {
	common := call.Common()

	var rval andersen.Variable
	if v := call.Value(); v != nil {
		rval = register(v)
	}

	switch common.Value.Name() {
	case "append":
		// The result is either the original slice or a fresh backing array
		// holding the elements of both arguments.
		obj := x.alloc(call.Value())
		s, elems := x.eval(common.Args[0]), x.eval(common.Args[1])
		x.simple(s, rval)
		x.load(s, obj)
		x.load(elems, obj)
	case "copy":
		tmp := x.temp(b, i, "copy")
		x.load(x.eval(common.Args[1]), tmp)
		x.store(tmp, x.eval(common.Args[0]))
	case "recover":
		x.simple(panicVar, rval)
	case "ssa:wrapnilchk":
		x.simple(x.eval(common.Args[0]), rval)
	}
}

func (x *extractor) instruction(b *ssa.BasicBlock, i int, insn ssa.Instruction) {
	switch t := insn.(type) {
	case ssa.CallInstruction:
		if _, ok := t.Common().Value.(*ssa.Builtin); ok {
			x.builtin(b, i, t)
		} else {
			x.call(t)
		}

	case *ssa.Range:
		// Ranges over strings yield no pointers.
		if _, isMap := t.X.Type().Underlying().(*types.Map); isMap {
			x.simple(x.eval(t.X), register(t))
		}

	case *ssa.Select:
		for _, st := range t.States {
			if st.Dir == types.RecvOnly {
				x.load(x.eval(st.Chan), register(t))
			} else {
				x.store(x.eval(st.Send), x.eval(st.Chan))
			}
		}

	case ssa.Value:
		if !mayContainPointers(t.Type()) {
			return
		}

		reg := register(t)
		switch t := t.(type) {
		case *ssa.Alloc,
			*ssa.MakeChan,
			*ssa.MakeMap,
			*ssa.MakeSlice:
			x.alloc(t)

		case *ssa.MakeClosure:
			// All closures of a function share the object of the function.
			fn := t.Fn.(*ssa.Function)
			x.simple(x.eval(fn), reg)
			for i, b := range t.Bindings {
				x.simple(x.eval(b), freeVar(fn, i))
			}

		case *ssa.MakeInterface:
			// The object of an interface value holds the concrete value.
			x.simple(x.eval(t.X), x.alloc(t))

		case *ssa.UnOp:
			switch t.Op {
			case token.MUL, token.ARROW:
				x.load(x.eval(t.X), reg)
			}

		case *ssa.Convert:
			switch t.Type().Underlying().(type) {
			case *types.Pointer:
				// Conversions from unsafe.Pointer are treated as allocations.
				x.alloc(t)
			case *types.Slice:
				// string -> []byte or []rune
				x.alloc(t)
			default:
				x.simple(x.eval(t.X), reg)
			}

		case *ssa.ChangeType:
			x.simple(x.eval(t.X), reg)
		case *ssa.ChangeInterface:
			x.simple(x.eval(t.X), reg)
		case *ssa.MultiConvert:
			x.simple(x.eval(t.X), reg)
		case *ssa.Slice:
			x.simple(x.eval(t.X), reg)
		case *ssa.SliceToArrayPointer:
			x.simple(x.eval(t.X), reg)

		// Addresses of fields and elements point to the object itself.
		case *ssa.FieldAddr:
			x.simple(x.eval(t.X), reg)
		case *ssa.IndexAddr:
			x.simple(x.eval(t.X), reg)

		case *ssa.Field:
			x.simple(x.eval(t.X), reg)
		case *ssa.Index:
			x.simple(x.eval(t.X), reg)
		case *ssa.Extract:
			x.simple(x.eval(t.Tuple), reg)

		case *ssa.Lookup:
			if _, isMap := t.X.Type().Underlying().(*types.Map); isMap {
				x.load(x.eval(t.X), reg)
			}

		case *ssa.Next:
			if !t.IsString {
				x.load(x.eval(t.Iter), reg)
			}

		case *ssa.Phi:
			for _, v := range t.Edges {
				x.simple(x.eval(v), reg)
			}

		case *ssa.TypeAssert:
			if _, isItf := t.AssertedType.Underlying().(*types.Interface); isItf {
				x.simple(x.eval(t.X), reg)
			} else {
				x.load(x.eval(t.X), reg)
			}

		case *ssa.BinOp:

		default:
			log.Panicf("Unhandled: %T %v", t, t)
		}

	case *ssa.Store:
		x.store(x.eval(t.Val), x.eval(t.Addr))

	case *ssa.Send:
		x.store(x.eval(t.X), x.eval(t.Chan))

	case *ssa.MapUpdate:
		m := x.eval(t.Map)
		x.store(x.eval(t.Key), m)
		x.store(x.eval(t.Value), m)

	case *ssa.Panic:
		x.simple(x.eval(t.X), panicVar)

	case *ssa.Return:
		ret := returnVar(x.fn)
		for _, v := range t.Results {
			x.simple(x.eval(v), ret)
		}

	case *ssa.RunDefers,
		*ssa.DebugRef,
		*ssa.If,
		*ssa.Jump:

	default:
		log.Panicf("Unhandled: %T %v", t, t)
	}
}
