package features

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// FrameSize is the analysis window length in samples.
	FrameSize = 2048
	// HopSize is the distance between consecutive windows in samples.
	HopSize = 512
	// RolloffPercent is the share of spectral energy below the roll-off frequency.
	RolloffPercent = 0.85

	// amin floors power values before taking logarithms.
	amin = 1e-10
)

// Features are per-file means of frame-level descriptors. Tempo is
// estimated over the whole recording and Pitch is its highest tracked pitch.
type Features struct {
	MFCC      [MFCCCount]float64
	Chroma    [ChromaBins]float64
	Contrast  [ContrastBands]float64
	Centroid  float64
	Bandwidth float64
	Rolloff   float64
	Flatness  float64
	ZCR       float64
	RMS       float64
	Tempo     float64
	Pitch     float64
}

// analyser holds the per-sample-rate filterbanks shared by every frame.
type analyser struct {
	binHz    float64
	mel      [][]float64
	chroma   []int
	contrast []contrastBand
	scratch  []float64
}

func newAnalyser(sampleRate int) *analyser {
	return &analyser{
		binHz:    float64(sampleRate) / FrameSize,
		mel:      melFilterbank(sampleRate, FrameSize, MelBands),
		chroma:   chromaMap(sampleRate, FrameSize),
		contrast: contrastBands(sampleRate, FrameSize),
		scratch:  make([]float64, FrameSize/2+1),
	}
}

// Compute returns the descriptors of a mono signal sampled at sampleRate.
// Signals shorter than one frame are zero-padded to a single frame.
func Compute(samples []float64, sampleRate int) Features {
	if len(samples) == 0 || sampleRate <= 0 {
		return Features{}
	}

	a := newAnalyser(sampleRate)
	fft := fourier.NewFFT(FrameSize)
	win := hann(FrameSize)
	buf := make([]float64, FrameSize)
	mag := make([]float64, FrameSize/2+1)
	power := make([]float64, FrameSize/2+1)
	chroma := make([]float64, ChromaBins)
	var coeffs []complex128

	var sum Features
	frames := frameCount(len(samples))
	melDB := make([][]float64, frames)
	for i := 0; i < frames; i++ {
		start := i * HopSize
		n := min(FrameSize, len(samples)-start)
		frame := samples[start : start+n]

		sum.ZCR += zeroCrossingRate(frame)
		sum.RMS += rms(frame)

		for k := range buf {
			if k < n {
				buf[k] = frame[k] * win[k]
			} else {
				buf[k] = 0
			}
		}
		coeffs = fft.Coefficients(coeffs, buf)
		for k, c := range coeffs {
			mag[k] = math.Hypot(real(c), imag(c))
			power[k] = mag[k] * mag[k]
		}

		centroid := spectralCentroid(mag, a.binHz)
		sum.Centroid += centroid
		sum.Bandwidth += spectralBandwidth(mag, a.binHz, centroid)
		sum.Rolloff += spectralRolloff(mag, a.binHz)
		sum.Flatness += spectralFlatness(mag)

		melDB[i] = melFrame(a.mel, power)
		chromaFrame(power, a.chroma, chroma)
		for c, v := range chroma {
			sum.Chroma[c] += v
		}
		for b, band := range a.contrast {
			sum.Contrast[b] += band.contrast(mag, a.scratch)
		}
		sum.Pitch = max(sum.Pitch, framePitch(mag, a.binHz))
	}

	f := float64(frames)
	out := Features{
		Centroid:  sum.Centroid / f,
		Bandwidth: sum.Bandwidth / f,
		Rolloff:   sum.Rolloff / f,
		Flatness:  sum.Flatness / f,
		ZCR:       sum.ZCR / f,
		RMS:       sum.RMS / f,
		Pitch:     sum.Pitch,
	}
	for c := range out.Chroma {
		out.Chroma[c] = sum.Chroma[c] / f
	}
	for b := range out.Contrast {
		out.Contrast[b] = sum.Contrast[b] / f
	}

	clipDB(melDB)
	out.MFCC = mfcc(melDB)
	out.Tempo = estimateTempo(onsetEnvelope(melDB), sampleRate)
	return out
}

// frameCount returns the number of analysis frames covering n samples.
func frameCount(n int) int {
	if n <= FrameSize {
		return 1
	}
	return 1 + (n-FrameSize+HopSize-1)/HopSize
}

func spectralCentroid(mag []float64, binHz float64) float64 {
	var num, den float64
	for k, m := range mag {
		num += float64(k) * binHz * m
		den += m
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func spectralBandwidth(mag []float64, binHz, centroid float64) float64 {
	var num, den float64
	for k, m := range mag {
		d := float64(k)*binHz - centroid
		num += m * d * d
		den += m
	}
	if den == 0 {
		return 0
	}
	return math.Sqrt(num / den)
}

func spectralRolloff(mag []float64, binHz float64) float64 {
	var total float64
	for _, m := range mag {
		total += m
	}
	if total == 0 {
		return 0
	}
	threshold := RolloffPercent * total
	var acc float64
	for k, m := range mag {
		acc += m
		if acc >= threshold {
			return float64(k) * binHz
		}
	}
	return float64(len(mag)-1) * binHz
}

// spectralFlatness is the ratio of the geometric to the arithmetic mean of
// the power spectrum.
func spectralFlatness(mag []float64) float64 {
	var logSum, sum float64
	for _, m := range mag {
		p := max(m*m, amin)
		logSum += math.Log(p)
		sum += p
	}
	n := float64(len(mag))
	return math.Exp(logSum/n) / (sum / n)
}

func zeroCrossingRate(frame []float64) float64 {
	if len(frame) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i] >= 0) != (frame[i-1] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame))
}

func rms(frame []float64) float64 {
	var sum float64
	for _, s := range frame {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(frame)))
}

func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
}

// powerToDB converts a power value to decibels relative to 1.
func powerToDB(p float64) float64 {
	return 10 * math.Log10(max(p, amin))
}
