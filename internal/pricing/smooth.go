package pricing

import (
	"math"
	"sort"
)

// rollingMedian applies a centered rolling median of the given window. Positions
// the window cannot cover are filled forward, then backward.
func rollingMedian(values []float64, window int) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if window < 1 {
		window = 1
	}
	offset := (window - 1) / 2
	buf := make([]float64, window)
	for i := range values {
		hi := i + offset
		lo := hi - window + 1
		if lo < 0 || hi >= n {
			out[i] = math.NaN()
			continue
		}
		copy(buf, values[lo:hi+1])
		out[i] = median(buf)
	}
	fillForward(out)
	fillBackward(out)
	return out
}

func median(values []float64) float64 {
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}

func fillForward(values []float64) {
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = last
			continue
		}
		last = v
	}
}

func fillBackward(values []float64) {
	next := math.NaN()
	for i := len(values) - 1; i >= 0; i-- {
		if math.IsNaN(values[i]) {
			values[i] = next
			continue
		}
		next = values[i]
	}
}

func smoothingWindow(n int) int {
	if n < 3 {
		return n
	}
	return 3
}
