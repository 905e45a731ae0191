package slices

func Contains[T comparable, S ~[]T](ss S, s T) bool {
	return Index(ss, s) != -1
}

func Index[T comparable, S ~[]T](ss S, s T) int {
	for i, b := range ss {
		if b == s {
			return i
		}
	}
	return -1
}

func Map[U any, T any, S ~[]T](ss S, mapper func(T) U) []U {
	result := make([]U, 0, len(ss))
	for _, s := range ss {
		result = append(result, mapper(s))
	}
	return result
}

func Filter[T any, S ~[]T](ss S, keep func(T) bool) S {
	result := make(S, 0, len(ss))
	for _, s := range ss {
		if keep(s) {
			result = append(result, s)
		}
	}
	return result
}

// This is a "naive" algorithm that works well for short sequences,
// which is our main use case.
// If a need arises, we could switch this to Knuth-Morris-Pratt algorithm.
func SeqIndex[T comparable, S ~[]T](ss S, seq S) int {
	if len(ss) == 0 || len(seq) == 0 || len(seq) > len(ss) {
		return -1
	}

	for i := 0; i <= len(ss)-len(seq); i++ {
		match := true

		for j := 0; j < len(seq); j++ {
			if ss[i+j] != seq[j] {
				match = false
				break
			}
		}

		if match {
			return i
		}
	}

	return -1
}
