package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Integer](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Percent clamps v to [0, 100].
func Percent[T constraints.Signed](v T) T {
	return Clamp(v, 0, 100)
}

// Map maps x in [inMin,inMax] to [outMin,outMax] with truncating integer
// arithmetic. Inputs outside the range clamp to the matching edge. The output
// range may be descending.
func Map[T constraints.Signed](x, inMin, inMax, outMin, outMax T) T {
	if inMax == inMin {
		return outMin
	}
	x = Clamp(x, inMin, inMax)
	return outMin + (x-inMin)*(outMax-outMin)/(inMax-inMin)
}
