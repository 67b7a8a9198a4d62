package analysis

import "sort"

// Resample linearly interpolates a series onto a target time axis. The
// source axis must be non-decreasing. Target instants before the first
// or after the last source sample clamp to the boundary values.
func Resample(srcTime, srcValues, target []float64) []float64 {
	out := make([]float64, len(target))
	if len(srcTime) == 0 {
		return out
	}
	if len(srcTime) == 1 {
		for i := range out {
			out[i] = srcValues[0]
		}
		return out
	}
	for i, t := range target {
		out[i] = interpAt(srcTime, srcValues, t)
	}
	return out
}

func interpAt(xs, ys []float64, x float64) float64 {
	n := len(xs)
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[n-1] {
		return ys[n-1]
	}
	// First index with xs[j] > x; the bracketing segment is [j-1, j].
	j := sort.SearchFloat64s(xs, x)
	if j < n && xs[j] == x {
		return ys[j]
	}
	x0, x1 := xs[j-1], xs[j]
	y0, y1 := ys[j-1], ys[j]
	if x1 == x0 {
		return y0
	}
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}

// trapezoid integrates values over time with the trapezoidal rule,
// returning the cumulative integral at every sample. cum[0] is zero.
func trapezoid(time, values []float64) []float64 {
	cum := make([]float64, len(time))
	for i := 1; i < len(time); i++ {
		dt := time[i] - time[i-1]
		if dt < 0 {
			dt = 0
		}
		cum[i] = cum[i-1] + 0.5*(values[i]+values[i-1])*dt
	}
	return cum
}

// percentile returns the p-th percentile (0..100) of the sample set
// using linear interpolation between order statistics.
func percentile(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(rank)
	frac := rank - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// median returns the middle value of the sample set.
func median(samples []float64) float64 {
	return percentile(samples, 50)
}
