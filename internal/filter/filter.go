// Package filter provides composable predicates over arbitrary values.
package filter

type Func[T any] func(T) bool

func Any[T any]() Func[T] {
	return func(T) bool {
		return true
	}
}

func And[T any](filters ...Func[T]) Func[T] {
	return func(v T) bool {
		for _, f := range filters {
			if !f(v) {
				return false
			}
		}
		return true
	}
}
