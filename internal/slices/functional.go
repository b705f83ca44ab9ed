package slices

// Map applies f to every element of l.
func Map[L ~[]X, X, Y any](l L, f func(X) Y) []Y {
	res := make([]Y, len(l))
	for i, x := range l {
		res[i] = f(x)
	}
	return res
}

// FilterMap applies f to every element of l and keeps the results for which
// f reports true.
func FilterMap[L ~[]X, X, Y any](l L, f func(X) (Y, bool)) []Y {
	res := make([]Y, 0, len(l))
	for _, x := range l {
		if y, ok := f(x); ok {
			res = append(res, y)
		}
	}
	return res
}
