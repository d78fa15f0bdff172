package features

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq float64, sampleRate, n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)+0.1)
	}
	return out
}

func TestCompute_Sine(t *testing.T) {
	// 1000 Hz sits exactly on an FFT bin and every frame is full.
	f := Compute(sine(1000, 16000, FrameSize+28*HopSize, 0.5), 16000)

	assert.InDelta(t, 1000, f.Centroid, 25)
	assert.Less(t, f.Bandwidth, 200.0)
	assert.InDelta(t, 1000, f.Rolloff, 25)
	assert.Less(t, f.Flatness, 0.01)
	assert.InDelta(t, 0.125, f.ZCR, 0.005)
	assert.InDelta(t, 0.5/math.Sqrt2, f.RMS, 0.01)
}

func TestCompute_HigherToneHasHigherCentroid(t *testing.T) {
	low := Compute(sine(300, 16000, 8000, 0.5), 16000)
	high := Compute(sine(3000, 16000, 8000, 0.5), 16000)
	assert.Greater(t, high.Centroid, low.Centroid)
	assert.Greater(t, high.ZCR, low.ZCR)
}

func TestCompute_NoiseIsFlatterThanTone(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	noise := make([]float64, 16000)
	for i := range noise {
		noise[i] = rng.Float64()*2 - 1
	}
	tone := Compute(sine(440, 16000, 16000, 0.5), 16000)
	white := Compute(noise, 16000)

	assert.Greater(t, white.Flatness, 0.3)
	assert.Greater(t, white.Flatness, tone.Flatness)
	assert.Greater(t, white.Centroid, 3000.0)
}

func TestCompute_Silence(t *testing.T) {
	f := Compute(make([]float64, 4096), 8000)

	assert.Zero(t, f.Centroid)
	assert.Zero(t, f.Bandwidth)
	assert.Zero(t, f.Rolloff)
	assert.Zero(t, f.ZCR)
	assert.Zero(t, f.RMS)
	assert.InDelta(t, 1, f.Flatness, 1e-9)
	assert.Zero(t, f.Tempo)
	assert.Zero(t, f.Pitch)
	assert.Equal(t, [ChromaBins]float64{}, f.Chroma)
	assert.Equal(t, [ContrastBands]float64{}, f.Contrast)
}

func TestCompute_Empty(t *testing.T) {
	assert.Equal(t, Features{}, Compute(nil, 16000))
	assert.Equal(t, Features{}, Compute([]float64{1}, 0))
}

func TestCompute_ShortSignal(t *testing.T) {
	f := Compute(sine(1000, 16000, 100, 0.5), 16000)
	assert.Greater(t, f.RMS, 0.0)
}

func TestFrameCount(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{1, 1},
		{FrameSize, 1},
		{FrameSize + 1, 2},
		{FrameSize + HopSize, 2},
		{FrameSize + HopSize + 1, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, frameCount(tt.n), "n=%d", tt.n)
	}
}

func TestCompute_PitchAndChroma(t *testing.T) {
	// Full frames only: a truncated frame would add sidelobe peaks.
	f := Compute(sine(440, 16000, FrameSize+28*HopSize, 0.5), 16000)

	assert.InDelta(t, 440, f.Pitch, 5)
	// A is pitch class 9 when C is 0.
	assert.InDelta(t, 1, f.Chroma[9], 1e-9)
	for c, v := range f.Chroma {
		if c != 9 {
			assert.Less(t, v, 0.5, "pitch class %d", c)
		}
	}
}

func TestCompute_ContrastSeparatesToneFromNoise(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	noise := make([]float64, 16000)
	for i := range noise {
		noise[i] = rng.Float64()*2 - 1
	}
	tone := Compute(sine(1000, 16000, 16000, 0.5), 16000)
	white := Compute(noise, 16000)

	// 1000 Hz lies in the 800-1600 Hz band.
	assert.Greater(t, tone.Contrast[3], white.Contrast[3]+10)
}

func TestCompute_LouderSignalRaisesFirstMFCC(t *testing.T) {
	loud := Compute(sine(440, 16000, 16000, 0.5), 16000)
	quiet := Compute(sine(440, 16000, 16000, 0.05), 16000)

	assert.Greater(t, loud.MFCC[0], quiet.MFCC[0])
	assert.InDelta(t, loud.MFCC[1], quiet.MFCC[1], 1e-6)
}

func TestCompute_TempoOfClickTrack(t *testing.T) {
	// 16384 Hz gives 32 frames per second, so a click every 0.5 s repeats
	// every 16 frames.
	const sampleRate = 16384
	samples := make([]float64, 8*sampleRate)
	for start := 0; start < len(samples); start += sampleRate / 2 {
		for i := 0; i < 256 && start+i < len(samples); i++ {
			samples[start+i] = 0.8 * math.Sin(2*math.Pi*1000*float64(i)/sampleRate)
		}
	}

	f := Compute(samples, sampleRate)
	assert.InDelta(t, 120, f.Tempo, 1)
}

func TestMelFilterbank(t *testing.T) {
	fb := melFilterbank(16000, FrameSize, MelBands)
	require.Len(t, fb, MelBands)

	for m, w := range fb {
		assert.Len(t, w, FrameSize/2+1)
		var sum float64
		for _, v := range w {
			assert.GreaterOrEqual(t, v, 0.0)
			sum += v
		}
		assert.Greater(t, sum, 0.0, "band %d is empty", m)
	}
	assert.InDelta(t, 1000, melToHz(hzToMel(1000)), 1e-9)
	assert.InDelta(t, 4000, melToHz(hzToMel(4000)), 1e-9)
}

func TestContrastBands(t *testing.T) {
	bands := contrastBands(16000, FrameSize)
	require.Len(t, bands, ContrastBands)

	// 7.8125 Hz bins: the first band stops below 200 Hz.
	assert.Equal(t, 0, bands[0].lo)
	assert.Equal(t, 24, bands[0].hi)
	// The top band borrows the bin below 6400 Hz and runs to Nyquist.
	assert.Equal(t, 819, bands[6].lo)
	assert.Equal(t, FrameSize/2, bands[6].hi)

	// At 8 kHz the top band lies above Nyquist and is empty.
	low := contrastBands(8000, FrameSize)
	assert.Less(t, low[6].hi, low[6].lo)
}
