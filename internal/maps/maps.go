package maps

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

// Set is a hash set.
type Set[K comparable] map[K]struct{}

// FromKeys returns the set of elements of l.
func FromKeys[L ~[]K, K comparable](l L) Set[K] {
	res := make(Set[K], len(l))
	for _, key := range l {
		res[key] = struct{}{}
	}
	return res
}

func (s Set[K]) Has(key K) bool {
	_, found := s[key]
	return found
}

func Keys[M ~map[K]V, K comparable, V any](m M) []K {
	keys := make([]K, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	return keys
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[M ~map[K]V, K constraints.Ordered, V any](m M) []K {
	keys := Keys(m)
	slices.Sort(keys)
	return keys
}
