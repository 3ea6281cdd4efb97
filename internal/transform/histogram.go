package transform

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/stat"

	"github.com/svanichkin/hpdec/internal/pixgrid"
)

// Histogram counts channel values 0..255 across all pixels. Channel
// identity is not tracked: each pixel contributes three counts.
type Histogram [256]uint64

// ComputeHistogram tallies the R, G and B value of every pixel in src.
// src is only read.
func ComputeHistogram(src *pixgrid.Grid) (Histogram, error) {
	var h Histogram
	if err := src.Valid(); err != nil {
		return h, fmt.Errorf("histogram: %w", err)
	}
	for _, p := range src.Pix {
		h[p.R]++
		h[p.G]++
		h[p.B]++
	}
	return h, nil
}

// Total returns the sum of all counts, three per pixel.
func (h *Histogram) Total() uint64 {
	var n uint64
	for _, c := range h {
		n += c
	}
	return n
}

// WriteTo writes one "Value <v>: <count> pixels" line per value, ascending,
// zero counts included.
func (h *Histogram) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for v, c := range h {
		n, err := fmt.Fprintf(w, "Value %d: %d pixels\n", v, c)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Summary describes the distribution of channel values.
type Summary struct {
	Count  uint64
	Mean   float64
	StdDev float64
	Median float64
	Min    int
	Max    int
}

// Summary computes weighted statistics over the values present in h. An
// empty histogram yields a zero Summary.
func (h *Histogram) Summary() Summary {
	values := make([]float64, 0, len(h))
	weights := make([]float64, 0, len(h))
	s := Summary{Min: -1, Max: -1}
	for v, c := range h {
		if c == 0 {
			continue
		}
		if s.Min < 0 {
			s.Min = v
		}
		s.Max = v
		s.Count += c
		values = append(values, float64(v))
		weights = append(weights, float64(c))
	}
	if s.Count == 0 {
		return Summary{}
	}

	s.Mean, s.StdDev = stat.MeanStdDev(values, weights)
	if len(values) == 1 {
		s.StdDev = 0
	}
	s.Median = stat.Quantile(0.5, stat.Empirical, values, weights)
	return s
}
