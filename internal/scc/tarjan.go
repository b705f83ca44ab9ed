// Package scc computes strongly connected components with an iterative
// version of Tarjan's algorithm, so that deep graphs do not exhaust the
// goroutine stack.
package scc

import "github.com/yourbasic/graph"

type frame struct {
	v    int
	succ []int
	next int
}

// Tarjan returns the strongly connected components of g in reverse
// topological order. Every vertex of g belongs to exactly one component.
func Tarjan(g graph.Iterator) [][]int {
	n := g.Order()

	// index[v] == 0 means unvisited, otherwise it is the dfs number + 1.
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)

	var (
		stack   []int
		calls   []frame
		comps   [][]int
		counter int
	)

	visit := func(v int) {
		counter++
		index[v], lowlink[v] = counter, counter
		stack = append(stack, v)
		onStack[v] = true
		calls = append(calls, frame{v: v, succ: successors(g, v)})
	}

	for root := 0; root < n; root++ {
		if index[root] != 0 {
			continue
		}

		visit(root)
		for len(calls) > 0 {
			f := &calls[len(calls)-1]
			if f.next < len(f.succ) {
				w := f.succ[f.next]
				f.next++

				if index[w] == 0 {
					visit(w)
				} else if onStack[w] && index[w] < lowlink[f.v] {
					lowlink[f.v] = index[w]
				}
				continue
			}

			v := f.v
			calls = calls[:len(calls)-1]
			if len(calls) > 0 {
				if p := calls[len(calls)-1].v; lowlink[v] < lowlink[p] {
					lowlink[p] = lowlink[v]
				}
			}

			if lowlink[v] == index[v] {
				var comp []int
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					comp = append(comp, w)
					if w == v {
						break
					}
				}
				comps = append(comps, comp)
			}
		}
	}

	return comps
}

// Cycles returns the components of g with more than one vertex.
func Cycles(g graph.Iterator) [][]int {
	var res [][]int
	for _, comp := range Tarjan(g) {
		if len(comp) > 1 {
			res = append(res, comp)
		}
	}
	return res
}

func successors(g graph.Iterator, v int) []int {
	var succ []int
	g.Visit(v, func(w int, _ int64) bool {
		succ = append(succ, w)
		return false
	})
	return succ
}
