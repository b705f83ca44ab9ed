package queue

import (
	"errors"

	"golang.org/x/tools/container/intsets"
)

type Queue[E any] struct {
	elements []E
}

func (q *Queue[E]) Push(e E) {
	q.elements = append(q.elements, e)
}

func (q *Queue[E]) Empty() bool {
	return len(q.elements) == 0
}

func (q *Queue[E]) Len() int {
	return len(q.elements)
}

var ErrEmpty = errors.New("Queue is empty")

func (q *Queue[E]) Pop() E {
	if q.Empty() {
		panic(ErrEmpty)
	}

	e := q.elements[0]
	q.elements = q.elements[1:]
	return e
}

// Worklist is a FIFO queue of non-negative integers where each element is
// present at most once. Pushing an element that is already pending is a no-op.
type Worklist struct {
	q       Queue[int]
	pending intsets.Sparse
}

// Push enqueues x unless it is already pending. The return value reports
// whether x was enqueued.
func (w *Worklist) Push(x int) bool {
	if !w.pending.Insert(x) {
		return false
	}

	w.q.Push(x)
	return true
}

func (w *Worklist) Pop() int {
	x := w.q.Pop()
	w.pending.Remove(x)
	return x
}

func (w *Worklist) Empty() bool {
	return w.q.Empty()
}

func (w *Worklist) Len() int {
	return w.q.Len()
}
