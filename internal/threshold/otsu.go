package threshold

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// histBins is the intensity histogram resolution. Intensities live in [0,1].
const histBins = 256

// histogram is a normalized intensity histogram: p sums to 1 unless the
// image is empty.
type histogram struct {
	p [histBins]float64
}

func newHistogram(img *mat.Dense) histogram {
	var h histogram
	r, c := img.Dims()
	n := r * c
	if n == 0 {
		return h
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := img.At(i, j)
			b := int(v * histBins)
			if b < 0 {
				b = 0
			}
			if b >= histBins {
				b = histBins - 1
			}
			h.p[b]++
		}
	}
	floats.Scale(1/float64(n), h.p[:])
	return h
}

// binValue is the representative intensity of bin b.
func binValue(b int) float64 {
	return (float64(b) + 0.5) / histBins
}

// cutValue is the intensity cutoff placed at the upper edge of bin b, so that
// pixels in bins <= b fall strictly below the cutoff.
func cutValue(b int) float64 {
	return (float64(b) + 1) / histBins
}

// otsu2 finds the two-class cutoff minimizing the total class cost: the
// weighted within-class variance, or with entropy set, the weighted
// log-variance (the entropy of a per-class Gaussian model).
func otsu2(h histogram, entropy bool) float64 {
	best, bestCost := 0, math.Inf(1)
	for t := 0; t < histBins-1; t++ {
		cost := classCost(h, 0, t+1, entropy) + classCost(h, t+1, histBins, entropy)
		if cost < bestCost {
			best, bestCost = t, cost
		}
	}
	return cutValue(best)
}

// otsu3 finds the three-class cutoffs (lo < hi) under the same criterion as
// otsu2 extended to three classes.
func otsu3(h histogram, entropy bool) (lo, hi float64) {
	bestLo, bestHi, bestCost := 0, 1, math.Inf(1)
	for t1 := 0; t1 < histBins-2; t1++ {
		for t2 := t1 + 1; t2 < histBins-1; t2++ {
			cost := classCost(h, 0, t1+1, entropy) +
				classCost(h, t1+1, t2+1, entropy) +
				classCost(h, t2+1, histBins, entropy)
			if cost < bestCost {
				bestLo, bestHi, bestCost = t1, t2, cost
			}
		}
	}
	return cutValue(bestLo), cutValue(bestHi)
}

// varianceEps keeps the log-variance finite for single-bin classes. It is
// well below the variance a class spanning two adjacent bins would have.
const varianceEps = 1e-12

// classCost is one class's contribution over bins [from, to): its weight
// times its intensity variance, or under the entropy criterion, its weight
// times the log of that variance. An empty class costs nothing.
func classCost(h histogram, from, to int, entropy bool) float64 {
	var w, mean float64
	for b := from; b < to; b++ {
		w += h.p[b]
		mean += h.p[b] * binValue(b)
	}
	if w == 0 {
		return 0
	}
	mean /= w

	var v float64
	for b := from; b < to; b++ {
		d := binValue(b) - mean
		v += h.p[b] * d * d
	}
	v /= w

	if entropy {
		return w * math.Log(v+varianceEps)
	}
	return w * v
}

// backgroundThreshold assumes most pixels are background and places the
// cutoff at twice the histogram mode.
func backgroundThreshold(h histogram) float64 {
	mode := 0
	for b := 1; b < histBins; b++ {
		if h.p[b] > h.p[mode] {
			mode = b
		}
	}
	t := 2 * binValue(mode)
	if t > 1 {
		t = 1
	}
	return t
}
