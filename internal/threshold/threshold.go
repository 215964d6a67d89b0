// Package threshold clips or binarizes grayscale intensity matrices.
//
// Intensities are float64 in [0,1], held in gonum dense matrices. Grayscale
// output zeroes pixels below a low cutoff (optionally shifting survivors
// down) and/or zeroes pixels above a high cutoff with optional dilation of
// the excluded region. Binary output applies a manual or automatic cutoff
// and produces a 0/1 matrix.
package threshold

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"cellpipe/internal/config"
)

// Output kinds.
const (
	OutputGrayscale = "grayscale"
	OutputBinary    = "binary"
)

// Binary threshold methods.
const (
	MethodManual     = "manual"
	MethodOtsu       = "otsu"
	MethodBackground = "background"
)

// Apply applies the configured threshold to img and returns a new matrix of
// the same shape. img is not modified.
func Apply(img *mat.Dense, cfg config.ThresholdConfig) (*mat.Dense, error) {
	switch cfg.Output {
	case OutputGrayscale:
		return applyGrayscale(img, cfg), nil
	case OutputBinary:
		t, err := Compute(img, cfg)
		if err != nil {
			return nil, err
		}
		return Binarize(img, t), nil
	default:
		return nil, fmt.Errorf("threshold: unknown output kind %q", cfg.Output)
	}
}

// Compute returns the binary cutoff for img under cfg: the manual value, or
// an automatic method's value adjusted by the correction factor and clamped
// to [range_min, range_max].
func Compute(img *mat.Dense, cfg config.ThresholdConfig) (float64, error) {
	if cfg.Method == MethodManual {
		return cfg.ManualThreshold, nil
	}

	var t float64
	switch cfg.Method {
	case MethodOtsu:
		h := newHistogram(img)
		if cfg.ThreeClass {
			lo, hi := otsu3(h, cfg.Entropy)
			if cfg.MiddleForeground {
				t = lo
			} else {
				t = hi
			}
		} else {
			t = otsu2(h, cfg.Entropy)
		}
	case MethodBackground:
		t = backgroundThreshold(newHistogram(img))
	default:
		return 0, fmt.Errorf("threshold: unknown method %q", cfg.Method)
	}

	if cfg.CorrectionFactor > 0 {
		t *= cfg.CorrectionFactor
	}
	if t < cfg.RangeMin {
		t = cfg.RangeMin
	}
	if cfg.RangeMax > 0 && t > cfg.RangeMax {
		t = cfg.RangeMax
	}
	return t, nil
}

// Binarize returns a 0/1 matrix: 1 where img is strictly above t.
func Binarize(img *mat.Dense, t float64) *mat.Dense {
	r, c := img.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if img.At(i, j) > t {
				out.Set(i, j, 1)
			}
		}
	}
	return out
}

func applyGrayscale(img *mat.Dense, cfg config.ThresholdConfig) *mat.Dense {
	r, c := img.Dims()
	out := mat.DenseCopyOf(img)

	if cfg.Low {
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				v := out.At(i, j)
				if v < cfg.LowThreshold {
					out.Set(i, j, 0)
				} else if cfg.Shift {
					out.Set(i, j, v-cfg.LowThreshold)
				}
			}
		}
	}

	if cfg.High {
		// The excluded region is taken after the low clip, so a shifted
		// pixel is judged at its shifted intensity.
		bright := make([]bool, r*c)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				bright[i*c+j] = out.At(i, j) >= cfg.HighThreshold
			}
		}
		if cfg.Dilation > 0 {
			bright = dilate(bright, r, c, diskOffsets(cfg.Dilation))
		}
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if bright[i*c+j] {
					out.Set(i, j, 0)
				}
			}
		}
	}

	return out
}
