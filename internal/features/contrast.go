package features

import (
	"math"
	"slices"
)

const (
	// ContrastBands is six octave bands above contrastFmin plus the band
	// below it.
	ContrastBands = 7

	contrastFmin     = 200.0
	contrastQuantile = 0.02
)

// contrastBand is an inclusive bin range and the number of bins averaged
// for its peak and valley.
type contrastBand struct {
	lo, hi int
	q      int
}

// contrastBands splits the spectrum at 0, 200, 400 ... 12800 Hz. Each band
// borrows the bin below its lower edge, and the top band runs to Nyquist.
// Bands above Nyquist are empty.
func contrastBands(sampleRate, nfft int) []contrastBand {
	bins := nfft/2 + 1
	binHz := float64(sampleRate) / float64(nfft)

	edges := make([]float64, ContrastBands+1)
	for i := 1; i < len(edges); i++ {
		edges[i] = contrastFmin * math.Pow(2, float64(i-1))
	}

	bands := make([]contrastBand, ContrastBands)
	for k := range bands {
		first, last := -1, -1
		for b := 0; b < bins; b++ {
			f := float64(b) * binHz
			if f >= edges[k] && f <= edges[k+1] {
				if first < 0 {
					first = b
				}
				last = b
			}
		}
		if first < 0 {
			bands[k] = contrastBand{lo: 0, hi: -1}
			continue
		}

		lo, hi := first, last
		if k > 0 && lo > 0 {
			lo--
		}
		if k == ContrastBands-1 {
			hi = bins - 1
		}
		q := max(1, int(math.RoundToEven(contrastQuantile*float64(hi-lo+1))))
		if k < ContrastBands-1 {
			hi--
		}
		bands[k] = contrastBand{lo: lo, hi: hi, q: q}
	}
	return bands
}

// contrast returns the decibel difference between the loudest and the
// quietest bins of the band. scratch must hold at least the band width.
func (b contrastBand) contrast(mag, scratch []float64) float64 {
	n := b.hi - b.lo + 1
	if n <= 0 {
		return 0
	}
	s := scratch[:n]
	copy(s, mag[b.lo:b.hi+1])
	slices.Sort(s)

	q := min(b.q, n)
	var peak, valley float64
	for i := 0; i < q; i++ {
		valley += s[i]
		peak += s[n-1-i]
	}
	return powerToDB(peak/float64(q)) - powerToDB(valley/float64(q))
}
