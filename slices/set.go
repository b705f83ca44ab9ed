// Package slices implements set operations on duplicate-free slices, such as
// the points-to sets of a solution.
package slices

import "github.com/BarrensZeppelin/andersen/internal/maps"

// Sets up to this size are compared by linear search.
const linearLimit = 8

func Contains[L ~[]E, E comparable](l L, x E) bool {
	for _, y := range l {
		if x == y {
			return true
		}
	}

	return false
}

// Subset reports whether every element of a is an element of b.
func Subset[L ~[]E, E comparable](a, b L) bool {
	if len(a) > len(b) {
		return false
	}

	if len(b) <= linearLimit {
		for _, x := range a {
			if !Contains(b, x) {
				return false
			}
		}
		return true
	}

	elems := maps.FromKeys(b)
	for _, x := range a {
		if !elems.Has(x) {
			return false
		}
	}

	return true
}

// Intersects reports whether a and b have an element in common.
func Intersects[L ~[]E, E comparable](a, b L) bool {
	if len(a) > len(b) {
		a, b = b, a
	}

	if len(a) == 0 {
		return false
	}

	if len(b) <= linearLimit {
		for _, x := range a {
			if Contains(b, x) {
				return true
			}
		}
		return false
	}

	elems := maps.FromKeys(b)
	for _, x := range a {
		if elems.Has(x) {
			return true
		}
	}
	return false
}
