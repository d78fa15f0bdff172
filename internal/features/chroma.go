package features

import "math"

// ChromaBins is the number of pitch classes, starting at C.
const ChromaBins = 12

// minChromaHz drops bins below C1, where the FFT resolution cannot tell
// pitch classes apart.
const minChromaHz = 32.70319566257483

// chromaMap assigns every FFT bin to its nearest pitch class, or -1.
func chromaMap(sampleRate, nfft int) []int {
	binHz := float64(sampleRate) / float64(nfft)
	m := make([]int, nfft/2+1)
	for k := range m {
		f := float64(k) * binHz
		if f < minChromaHz {
			m[k] = -1
			continue
		}
		midi := 69 + 12*math.Log2(f/440)
		m[k] = int(math.Round(midi)) % ChromaBins
	}
	return m
}

// chromaFrame folds a power spectrum into pitch classes and scales the
// result so the strongest class is 1. Silent frames stay at zero.
func chromaFrame(power []float64, cmap []int, dst []float64) {
	clear(dst)
	for k, p := range power {
		if c := cmap[k]; c >= 0 {
			dst[c] += p
		}
	}
	var peak float64
	for _, v := range dst {
		peak = max(peak, v)
	}
	if peak == 0 {
		return
	}
	for c := range dst {
		dst[c] /= peak
	}
}
