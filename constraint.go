package andersen

import (
	"fmt"
	"hash/fnv"
)

// Variable names a pointer or an abstract object. Variables are opaque to
// the analysis.
type Variable = string

// Constraint is an inclusion constraint between the points-to sets of two
// variables. Constraints are plain comparable values.
type Constraint interface {
	SubVar() Variable
	SuperVar() Variable
	fmt.Stringer

	// used to tag the constraint kinds of this package
	constraintTag()
}

type ctag struct{}

func (ctag) constraintTag() {}

// BaseConstraint states that Sub is an element of pts(Super).
type BaseConstraint struct {
	ctag
	Sub, Super Variable
}

// SimpleConstraint states pts(Sub) ⊆ pts(Super).
type SimpleConstraint struct {
	ctag
	Sub, Super Variable
}

// ComplexConstraint is an inclusion through one dereference. If SubDerefed
// is true it states *Sub ⊆ Super (a load), otherwise Sub ⊆ *Super (a store).
type ComplexConstraint struct {
	ctag
	Sub, Super Variable
	SubDerefed bool
}

func Base(sub, super Variable) BaseConstraint {
	return BaseConstraint{Sub: sub, Super: super}
}

func Simple(sub, super Variable) SimpleConstraint {
	return SimpleConstraint{Sub: sub, Super: super}
}

func Complex(sub, super Variable, subDerefed bool) ComplexConstraint {
	return ComplexConstraint{Sub: sub, Super: super, SubDerefed: subDerefed}
}

// Load returns the constraint *ptr ⊆ dst.
func Load(ptr, dst Variable) ComplexConstraint {
	return Complex(ptr, dst, true)
}

// Store returns the constraint src ⊆ *ptr.
func Store(src, ptr Variable) ComplexConstraint {
	return Complex(src, ptr, false)
}

func (c BaseConstraint) SubVar() Variable      { return c.Sub }
func (c BaseConstraint) SuperVar() Variable    { return c.Super }
func (c SimpleConstraint) SubVar() Variable    { return c.Sub }
func (c SimpleConstraint) SuperVar() Variable  { return c.Super }
func (c ComplexConstraint) SubVar() Variable   { return c.Sub }
func (c ComplexConstraint) SuperVar() Variable { return c.Super }
func (c ComplexConstraint) IsSubDerefed() bool { return c.SubDerefed }

func (c BaseConstraint) String() string {
	return fmt.Sprintf("{%s} ⊆ %s", c.Sub, c.Super)
}

func (c SimpleConstraint) String() string {
	return fmt.Sprintf("%s ⊆ %s", c.Sub, c.Super)
}

func (c ComplexConstraint) String() string {
	if c.SubDerefed {
		return fmt.Sprintf("*%s ⊆ %s", c.Sub, c.Super)
	}
	return fmt.Sprintf("%s ⊆ *%s", c.Sub, c.Super)
}

// hashVars hashes a (sub, super) pair together with a kind discriminator.
func hashVars(kind byte, sub, super Variable) uint64 {
	h := fnv.New64a()
	h.Write([]byte{kind})
	h.Write([]byte(sub))
	h.Write([]byte{0})
	h.Write([]byte(super))
	return h.Sum64()
}

func hashBase(c BaseConstraint) uint64     { return hashVars('b', c.Sub, c.Super) }
func hashSimple(c SimpleConstraint) uint64 { return hashVars('s', c.Sub, c.Super) }
func hashComplex(c ComplexConstraint) uint64 {
	if c.SubDerefed {
		return hashVars('l', c.Sub, c.Super)
	}
	return hashVars('t', c.Sub, c.Super)
}
