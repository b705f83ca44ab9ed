package ssagen

import (
	"fmt"
	"go/types"

	"github.com/BarrensZeppelin/andersen"
	"golang.org/x/tools/go/ssa"
)

// Label denotes an abstract object of the analysed program. Objects are
// identified by the value that creates them: an allocating instruction, a
// global variable or a function. The closures created from a function are
// all denoted by the label of the function.
type Label struct {
	site ssa.Value
}

// Allocation site of the object denoted by the label.
func (l Label) Site() ssa.Value { return l.site }

// Returns the type of a pointer pointing to the object denoted by the label.
func (l Label) Type() types.Type { return l.site.Type() }

func (l Label) String() string {
	switch site := l.site.(type) {
	case *ssa.Function, *ssa.Global:
		return site.String()
	default:
		return fmt.Sprintf("%v: %s = %v", site.Parent(), site.Name(), site)
	}
}

// The names below give every SSA value of the program a unique constraint
// variable. They only depend on the program, so functions can be translated
// independently of each other.

func register(v ssa.Value) andersen.Variable {
	return v.Parent().String() + "$" + v.Name()
}

func object(v ssa.Value) andersen.Variable {
	switch v := v.(type) {
	case *ssa.Global:
		return "obj:" + v.String()
	case *ssa.Function:
		return "fn:" + v.String()
	default:
		return "obj:" + register(v)
	}
}

func param(fn *ssa.Function, i int) andersen.Variable {
	return fmt.Sprintf("%s$p%d", fn, i)
}

func freeVar(fn *ssa.Function, i int) andersen.Variable {
	return fmt.Sprintf("%s$fv%d", fn, i)
}

func returnVar(fn *ssa.Function) andersen.Variable {
	return fn.String() + "$ret"
}

// The variable holding every value that is passed to panic.
const panicVar andersen.Variable = "$panic"

// variable returns the constraint variable holding v, or the empty string
// if v can not point to anything.
func variable(v ssa.Value) andersen.Variable {
	switch v := v.(type) {
	case *ssa.Const, *ssa.Builtin:
		return ""
	case *ssa.Global:
		return "global:" + v.String()
	case *ssa.Function:
		return "func:" + v.String()
	case *ssa.Parameter:
		fn := v.Parent()
		for i, p := range fn.Params {
			if p == v {
				return param(fn, i)
			}
		}
	case *ssa.FreeVar:
		fn := v.Parent()
		for i, fv := range fn.FreeVars {
			if fv == v {
				return freeVar(fn, i)
			}
		}
	default:
		return register(v)
	}

	panic(fmt.Errorf("%v is not bound by its parent %v", v, v.Parent()))
}

// PointerLike reports whether values of type t are pointers, or behave like
// pointers (maps, channels, slices, interfaces and functions).
func PointerLike(t types.Type) bool {
	switch t := t.(type) {
	case *types.Pointer,
		*types.Map,
		*types.Chan,
		*types.Slice,
		*types.Interface,
		*types.Signature:
		return true
	case *types.Basic:
		return t.Kind() == types.UnsafePointer
	case *types.Named, *types.TypeParam:
		return PointerLike(t.Underlying())
	default:
		return false
	}
}

// mayContainPointers reports whether values of type t may transitively hold
// pointer-like values. Values of other types are not tracked.
func mayContainPointers(t types.Type) bool {
	switch t := t.Underlying().(type) {
	case *types.Struct:
		for i := 0; i < t.NumFields(); i++ {
			if mayContainPointers(t.Field(i).Type()) {
				return true
			}
		}
		return false
	case *types.Array:
		return mayContainPointers(t.Elem())
	case *types.Tuple:
		for i := 0; i < t.Len(); i++ {
			if mayContainPointers(t.At(i).Type()) {
				return true
			}
		}
		return false
	case *types.Interface:
		return true
	default:
		return PointerLike(t)
	}
}
