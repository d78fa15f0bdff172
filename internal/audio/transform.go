package audio

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Kind identifies an augmentation transform. The string value is used in
// generated file names.
type Kind string

const (
	// KindSpeed changes playback speed while preserving pitch.
	KindSpeed Kind = "speed"
	// KindNoise mixes white noise over the clip.
	KindNoise Kind = "noise"
	// KindPitch shifts pitch while preserving duration.
	KindPitch Kind = "pitch"
	// KindEcho overlays a delayed, attenuated copy of the clip.
	KindEcho Kind = "echo"
)

// Kinds lists every transform in a stable order.
var Kinds = []Kind{KindSpeed, KindNoise, KindPitch, KindEcho}

// IsValid returns true if k names a known transform.
func (k Kind) IsValid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Transform parameters.
const (
	MinSpeedFactor = 0.8
	MaxSpeedFactor = 1.2

	NoiseLevelDBFS = -25.0

	MaxSemitones = 5

	EchoDelay         = 500 * time.Millisecond
	EchoAttenuationDB = 10.0

	// normalizeHeadroomDB is the gap left below full scale by peak normalization.
	normalizeHeadroomDB = 0.1
)

// Static errors for transforms.
var (
	// ErrUnknownKind is returned by Apply for an unrecognized transform.
	ErrUnknownKind = errors.New("audio: unknown transform kind")
	// ErrInvalidParams is returned when a transform parameter is out of range.
	ErrInvalidParams = errors.New("audio: invalid transform parameters")
)

// Rand is the random source used to choose transforms and their parameters.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
	Uint64() uint64
}

// Params carries the randomly drawn inputs of every transform. Given the
// same Params, each transform is a pure function of its input clip.
type Params struct {
	// SpeedFactor is the playback rate for KindSpeed, in [0.8, 1.2].
	SpeedFactor float64
	// Semitones is the pitch offset for KindPitch, in [-5, 5].
	Semitones int
	// NoiseSeed seeds the white noise generator for KindNoise.
	NoiseSeed uint64
}

// DrawParams draws an independent set of transform parameters from r.
func DrawParams(r Rand) Params {
	return Params{
		SpeedFactor: MinSpeedFactor + (MaxSpeedFactor-MinSpeedFactor)*r.Float64(),
		Semitones:   r.IntN(2*MaxSemitones+1) - MaxSemitones,
		NoiseSeed:   r.Uint64(),
	}
}

// RandomKind picks one of Kinds uniformly.
func RandomKind(r Rand) Kind {
	return Kinds[r.IntN(len(Kinds))]
}

// Apply runs the transform identified by kind on c. The input clip is not
// modified.
func Apply(kind Kind, c *Clip, p Params) (*Clip, error) {
	switch kind {
	case KindSpeed:
		return SpeedWarp(c, p.SpeedFactor)
	case KindNoise:
		return NoiseOverlay(c, p.NoiseSeed), nil
	case KindPitch:
		return PitchShift(c, p.Semitones)
	case KindEcho:
		return Echo(c), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// SpeedWarp plays the clip back factor times faster without changing its
// pitch. The output has roughly Frames()/factor frames.
func SpeedWarp(c *Clip, factor float64) (*Clip, error) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("%w: speed factor %v", ErrInvalidParams, factor)
	}
	return timeStretch(c, factor), nil
}

// NoiseOverlay mixes uniform white noise at NoiseLevelDBFS over the clip.
// The noise sequence is fully determined by seed.
func NoiseOverlay(c *Clip, seed uint64) *Clip {
	gain := dbToGain(NoiseLevelDBFS)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	out := make([]float64, len(c.Samples))
	for i, s := range c.Samples {
		noise := 2*rng.Float64() - 1
		out[i] = clamp(s + gain*noise)
	}
	return c.withSamples(out)
}

// PitchShift moves the clip's pitch by semitones and keeps its length: the
// clip is resampled by 2^(semitones/12) and then time-stretched back to the
// original frame count.
func PitchShift(c *Clip, semitones int) (*Clip, error) {
	if semitones < -12*4 || semitones > 12*4 {
		return nil, fmt.Errorf("%w: %d semitones", ErrInvalidParams, semitones)
	}
	if semitones == 0 || c.Frames() == 0 {
		return c.Clone(), nil
	}

	ratio := math.Pow(2, float64(semitones)/12)
	shifted := resample(c, ratio)
	restored := timeStretch(shifted, 1/ratio)
	return fitFrames(restored, c.Frames()), nil
}

// Echo overlays a copy attenuated by EchoAttenuationDB and delayed by
// EchoDelay, then normalizes the peak to just below full scale. The output
// has the same length as the input.
func Echo(c *Clip) *Clip {
	gain := dbToGain(-EchoAttenuationDB)
	delay := int(math.Round(float64(c.SampleRate) * EchoDelay.Seconds()))
	offset := delay * c.Channels

	out := make([]float64, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = s
		if i >= offset {
			out[i] += gain * c.Samples[i-offset]
		}
	}
	return normalize(c.withSamples(out))
}

// normalize scales the clip in place so its peak sits normalizeHeadroomDB
// below full scale. Silent clips are returned unchanged.
func normalize(c *Clip) *Clip {
	peak := c.Peak()
	if peak == 0 {
		return c
	}
	scale := dbToGain(-normalizeHeadroomDB) / peak
	for i := range c.Samples {
		c.Samples[i] *= scale
	}
	return c
}

// fitFrames truncates or zero-pads the clip to exactly frames frames.
func fitFrames(c *Clip, frames int) *Clip {
	want := frames * c.Channels
	if len(c.Samples) == want {
		return c
	}
	out := make([]float64, want)
	copy(out, c.Samples)
	return c.withSamples(out)
}
