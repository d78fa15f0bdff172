package features

import "math"

const (
	// MelBands is the number of mel filters applied to each power spectrum.
	MelBands = 128
	// MFCCCount is the number of cepstral coefficients kept.
	MFCCCount = 13

	// topDB limits the dynamic range of the log-mel spectrogram.
	topDB = 80.0
)

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melLinearHz  = 200.0 / 3
	melBreakHz   = 1000.0
	melBreakMel  = melBreakHz / melLinearHz
	melLogFactor = 0.06875177742094912 // ln(6.4) / 27
)

func hzToMel(f float64) float64 {
	if f < melBreakHz {
		return f / melLinearHz
	}
	return melBreakMel + math.Log(f/melBreakHz)/melLogFactor
}

func melToHz(m float64) float64 {
	if m < melBreakMel {
		return m * melLinearHz
	}
	return melBreakHz * math.Exp(melLogFactor*(m-melBreakMel))
}

// melFilterbank returns bands triangular filters over the nfft/2+1 bins of
// a power spectrum, spanning 0 Hz to Nyquist. Each filter is scaled to unit
// area so wide high-frequency bands do not dominate.
func melFilterbank(sampleRate, nfft, bands int) [][]float64 {
	bins := nfft/2 + 1
	binHz := float64(sampleRate) / float64(nfft)
	lowMel, highMel := hzToMel(0), hzToMel(float64(sampleRate)/2)

	edges := make([]float64, bands+2)
	for i := range edges {
		edges[i] = melToHz(lowMel + (highMel-lowMel)*float64(i)/float64(bands+1))
	}

	fb := make([][]float64, bands)
	for m := range fb {
		lo, center, hi := edges[m], edges[m+1], edges[m+2]
		norm := 2 / (hi - lo)
		w := make([]float64, bins)
		for k := range w {
			f := float64(k) * binHz
			rise := (f - lo) / (center - lo)
			fall := (hi - f) / (hi - center)
			w[k] = max(0, min(rise, fall)) * norm
		}
		fb[m] = w
	}
	return fb
}

// melFrame projects a power spectrum onto the filterbank and returns the
// band energies in decibels.
func melFrame(fb [][]float64, power []float64) []float64 {
	out := make([]float64, len(fb))
	for m, w := range fb {
		var e float64
		for k, p := range power {
			e += w[k] * p
		}
		out[m] = powerToDB(e)
	}
	return out
}

// clipDB floors every value at topDB below the loudest band of the whole
// recording.
func clipDB(frames [][]float64) {
	peak := math.Inf(-1)
	for _, fr := range frames {
		for _, v := range fr {
			peak = max(peak, v)
		}
	}
	floor := peak - topDB
	for _, fr := range frames {
		for i, v := range fr {
			fr[i] = max(v, floor)
		}
	}
}

// mfcc returns the mean cepstrum of a log-mel spectrogram. The DCT is
// linear, so the transform of the mean band energies equals the mean of
// the per-frame coefficients.
func mfcc(melDB [][]float64) [MFCCCount]float64 {
	var out [MFCCCount]float64
	if len(melDB) == 0 {
		return out
	}
	bands := len(melDB[0])
	mean := make([]float64, bands)
	for _, fr := range melDB {
		for b, v := range fr {
			mean[b] += v
		}
	}
	for b := range mean {
		mean[b] /= float64(len(melDB))
	}

	for k, row := range dctBasis(bands, MFCCCount) {
		for j, w := range row {
			out[k] += w * mean[j]
		}
	}
	return out
}

// dctBasis returns the first k rows of the orthonormal DCT-II matrix of
// size n.
func dctBasis(n, k int) [][]float64 {
	basis := make([][]float64, k)
	for i := range basis {
		scale := math.Sqrt(2 / float64(n))
		if i == 0 {
			scale = math.Sqrt(1 / float64(n))
		}
		row := make([]float64, n)
		for j := range row {
			row[j] = scale * math.Cos(math.Pi*float64(i)*(2*float64(j)+1)/(2*float64(n)))
		}
		basis[i] = row
	}
	return basis
}
