// Package audio provides decoded PCM clips, a WAV codec and the
// augmentation transforms used to synthesize new training samples.
package audio

import (
	"math"
	"time"
)

// Clip is a decoded PCM recording. Samples are interleaved by channel and
// normalized to [-1, 1]; BitDepth records the source resolution so a clip
// can be written back in the format it was read from.
type Clip struct {
	// SampleRate is the number of frames per second.
	SampleRate int
	// Channels is the number of interleaved channels.
	Channels int
	// BitDepth is the PCM sample width in bits (8, 16, 24 or 32).
	BitDepth int
	// Samples holds Frames()*Channels interleaved samples.
	Samples []float64
}

// Frames returns the number of sample frames in the clip.
func (c *Clip) Frames() int {
	if c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the playback length of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(c.Frames()) / float64(c.SampleRate) * float64(time.Second))
}

// Clone returns a deep copy of the clip.
func (c *Clip) Clone() *Clip {
	samples := make([]float64, len(c.Samples))
	copy(samples, c.Samples)
	return c.withSamples(samples)
}

// Peak returns the largest absolute sample value.
func (c *Clip) Peak() float64 {
	var peak float64
	for _, s := range c.Samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// Mono returns the per-frame average of all channels.
func (c *Clip) Mono() []float64 {
	frames := c.Frames()
	out := make([]float64, frames)
	if c.Channels == 1 {
		copy(out, c.Samples)
		return out
	}
	for f := 0; f < frames; f++ {
		var sum float64
		for ch := 0; ch < c.Channels; ch++ {
			sum += c.Samples[f*c.Channels+ch]
		}
		out[f] = sum / float64(c.Channels)
	}
	return out
}

// withSamples returns a clip in the same format as c holding samples.
func (c *Clip) withSamples(samples []float64) *Clip {
	return &Clip{
		SampleRate: c.SampleRate,
		Channels:   c.Channels,
		BitDepth:   c.BitDepth,
		Samples:    samples,
	}
}

// channel extracts one channel as a contiguous slice.
func (c *Clip) channel(ch int) []float64 {
	frames := c.Frames()
	out := make([]float64, frames)
	for f := 0; f < frames; f++ {
		out[f] = c.Samples[f*c.Channels+ch]
	}
	return out
}

// interleave builds a clip in c's format from per-channel slices of equal length.
func (c *Clip) interleave(channels [][]float64) *Clip {
	if len(channels) == 0 {
		return c.withSamples(nil)
	}
	frames := len(channels[0])
	samples := make([]float64, frames*len(channels))
	for ch, data := range channels {
		for f := 0; f < frames; f++ {
			samples[f*len(channels)+ch] = data[f]
		}
	}
	return c.withSamples(samples)
}

// dbToGain converts a decibel value to a linear amplitude factor.
func dbToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

func clamp(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}
