package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// AlignUp rounds v up to the next multiple of alignment. An alignment of
// zero leaves v untouched. Alignment does not need to be a power of two.
func AlignUp[T constraints.Integer](v, alignment T) T {
	if alignment == 0 {
		return v
	}
	if r := v % alignment; r != 0 {
		return v + alignment - r
	}
	return v
}
