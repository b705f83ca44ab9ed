// Package pset implements an immutable hash set with structural sharing.
//
// A Set is a hash trie with 32-way branching. Insert copies only the nodes
// on the path to the new element, so a set and its successor share all
// other nodes. Sets are safe for concurrent reads.
package pset

const (
	bits  = 5
	width = 1 << bits
	mask  = width - 1
)

// bucket holds the elements whose hashes are identical.
type bucket[K comparable] struct {
	hash uint64
	keys []K
}

// node slots hold nil, *node[K] or *bucket[K].
type node[K comparable] struct {
	slots [width]any
}

type Set[K comparable] struct {
	root *node[K]
	size int
	hash func(K) uint64
}

// New returns an empty set using the given hash function.
func New[K comparable](hash func(K) uint64) Set[K] {
	return Set[K]{hash: hash}
}

func (s Set[K]) Len() int {
	return s.size
}

func (s Set[K]) Has(k K) bool {
	h := s.hash(k)
	n := s.root
	for shift := uint(0); n != nil; shift += bits {
		switch slot := n.slots[(h>>shift)&mask].(type) {
		case nil:
			return false
		case *bucket[K]:
			return slot.hash == h && slot.contains(k)
		case *node[K]:
			n = slot
		}
	}
	return false
}

// Insert returns a set containing k. The receiver is returned unchanged
// when k is already present.
func (s Set[K]) Insert(k K) Set[K] {
	root, added := insert(s.root, &bucket[K]{hash: s.hash(k), keys: []K{k}}, 0)
	if !added {
		return s
	}
	return Set[K]{root: root, size: s.size + 1, hash: s.hash}
}

// Union returns a set containing the elements of both sets. If b adds
// nothing to a, a is returned.
func Union[K comparable](a, b Set[K]) Set[K] {
	if a.root == b.root {
		return a
	}
	if a.size < b.size {
		a, b = b, a
	}

	b.ForEach(func(k K) {
		a = a.Insert(k)
	})
	return a
}

// ForEach calls f for every element in an unspecified but stable order.
func (s Set[K]) ForEach(f func(K)) {
	if s.root != nil {
		s.root.forEach(f)
	}
}

func (s Set[K]) Slice() []K {
	res := make([]K, 0, s.size)
	s.ForEach(func(k K) { res = append(res, k) })
	return res
}

func (n *node[K]) forEach(f func(K)) {
	for _, slot := range n.slots {
		switch slot := slot.(type) {
		case *bucket[K]:
			for _, k := range slot.keys {
				f(k)
			}
		case *node[K]:
			slot.forEach(f)
		}
	}
}

func (b *bucket[K]) contains(k K) bool {
	for _, x := range b.keys {
		if x == k {
			return true
		}
	}
	return false
}

// insert places the singleton bucket b below n. The result shares every
// untouched subtree with n.
func insert[K comparable](n *node[K], b *bucket[K], shift uint) (*node[K], bool) {
	var c node[K]
	if n != nil {
		c = *n
	}

	i := (b.hash >> shift) & mask
	switch slot := c.slots[i].(type) {
	case nil:
		c.slots[i] = b

	case *bucket[K]:
		if slot.hash == b.hash {
			k := b.keys[0]
			if slot.contains(k) {
				return n, false
			}

			keys := make([]K, len(slot.keys), len(slot.keys)+1)
			copy(keys, slot.keys)
			c.slots[i] = &bucket[K]{hash: slot.hash, keys: append(keys, k)}
		} else {
			// Two distinct hashes agree on all bits below shift+bits, so they
			// must differ further down.
			sub, _ := insert(nil, slot, shift+bits)
			sub, _ = insert(sub, b, shift+bits)
			c.slots[i] = sub
		}

	case *node[K]:
		sub, added := insert(slot, b, shift+bits)
		if !added {
			return n, false
		}
		c.slots[i] = sub
	}

	return &c, true
}
