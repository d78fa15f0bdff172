package audio

import (
	"errors"
	"math"
	"time"
)

// stretchWindow is the overlap-add analysis window length.
const stretchWindow = 40 * time.Millisecond

// ErrEmptySegment is returned by Trim when the requested range selects no frames.
var ErrEmptySegment = errors.New("audio: empty segment")

// timeStretch changes the clip's duration by 1/factor without moving its
// pitch, using windowed overlap-add: Hann frames are read every
// hop*factor frames and written every hop frames. Clips shorter than one
// window fall back to plain resampling.
func timeStretch(c *Clip, factor float64) *Clip {
	frames := c.Frames()
	if frames == 0 || factor == 1 {
		return c.Clone()
	}

	window := int(float64(c.SampleRate) * stretchWindow.Seconds())
	if window < 64 {
		window = 64
	}
	if frames <= window {
		return resample(c, factor)
	}

	outFrames := int(math.Round(float64(frames) / factor))
	if outFrames < 1 {
		outFrames = 1
	}
	synthesisHop := window / 2
	analysisHop := float64(synthesisHop) * factor
	weights := hann(window)

	channels := make([][]float64, c.Channels)
	for ch := range channels {
		in := c.channel(ch)
		out := make([]float64, outFrames)
		norm := make([]float64, outFrames)

		for k := 0; k*synthesisHop < outFrames; k++ {
			src := int(math.Round(float64(k) * analysisHop))
			dst := k * synthesisHop
			for j := 0; j < window; j++ {
				if dst+j >= outFrames {
					break
				}
				w := weights[j]
				if src+j < frames {
					out[dst+j] += w * in[src+j]
				}
				norm[dst+j] += w
			}
		}

		for i := range out {
			if norm[i] > 1e-3 {
				out[i] /= norm[i]
			}
		}
		channels[ch] = out
	}
	return c.interleave(channels)
}

// resample reads the clip at step input frames per output frame using
// linear interpolation. A step above 1 shortens the clip and raises its
// pitch when played at the original rate.
func resample(c *Clip, step float64) *Clip {
	frames := c.Frames()
	if frames == 0 {
		return c.Clone()
	}
	outFrames := int(math.Round(float64(frames) / step))
	if outFrames < 1 {
		outFrames = 1
	}

	out := make([]float64, outFrames*c.Channels)
	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		i0 := int(pos)
		if i0 >= frames {
			i0 = frames - 1
		}
		i1 := i0 + 1
		if i1 >= frames {
			i1 = frames - 1
		}
		frac := pos - float64(i0)
		for ch := 0; ch < c.Channels; ch++ {
			a := c.Samples[i0*c.Channels+ch]
			b := c.Samples[i1*c.Channels+ch]
			out[i*c.Channels+ch] = a + (b-a)*frac
		}
	}
	return c.withSamples(out)
}

// hann returns a periodic Hann window of length n.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// Trim returns the frames between start and end. Bounds past either end of
// the clip are clamped; a range that selects nothing yields ErrEmptySegment.
func Trim(c *Clip, start, end time.Duration) (*Clip, error) {
	frames := c.Frames()
	first := clampFrame(int(math.Round(start.Seconds()*float64(c.SampleRate))), frames)
	last := clampFrame(int(math.Round(end.Seconds()*float64(c.SampleRate))), frames)
	if last <= first {
		return nil, ErrEmptySegment
	}

	out := make([]float64, (last-first)*c.Channels)
	copy(out, c.Samples[first*c.Channels:last*c.Channels])
	return c.withSamples(out), nil
}

func clampFrame(f, frames int) int {
	if f < 0 {
		return 0
	}
	if f > frames {
		return frames
	}
	return f
}
