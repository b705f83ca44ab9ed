// Package uf implements a union-find redirect table over dense integer ids.
package uf

import "fmt"

// Forest maps every id to the representative of its class.
type Forest struct {
	parent []int
}

// New returns a forest of n singleton classes with ids 0 to n-1.
func New(n int) *Forest {
	f := &Forest{parent: make([]int, n)}
	for i := range f.parent {
		f.parent[i] = i
	}
	return f
}

// Find returns the representative of x, compressing the path on the way.
func (f *Forest) Find(x int) int {
	root := x
	for f.parent[root] != root {
		root = f.parent[root]
	}

	for f.parent[x] != root {
		x, f.parent[x] = f.parent[x], root
	}

	return root
}

// IsRep reports whether x is the representative of its class.
func (f *Forest) IsRep(x int) bool {
	return f.parent[x] == x
}

// Union makes b the parent of a.
func (f *Forest) Union(a, b int) {
	if !f.IsRep(a) || !f.IsRep(b) {
		panic(fmt.Sprintf("union arguments should be representatives: %d, %d", a, b))
	} else if a == b {
		panic(fmt.Sprintf("union of %d with itself", a))
	}

	f.parent[a] = b
}
