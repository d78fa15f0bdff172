package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Static errors for WAV decoding and encoding.
var (
	// ErrInvalidWAV is returned when the input is not a RIFF/WAVE stream.
	ErrInvalidWAV = errors.New("audio: not a valid WAV file")
	// ErrUnsupportedFormat is returned for non-PCM encodings or unusual bit depths.
	ErrUnsupportedFormat = errors.New("audio: unsupported WAV format")
	// ErrEmptyClip is returned when a WAV file holds no sample frames.
	ErrEmptyClip = errors.New("audio: clip has no samples")
)

// wavFormatPCM is the WAVE format tag for integer PCM.
const wavFormatPCM = 1

// ReadWAV decodes the PCM WAV file at path.
func ReadWAV(path string) (*Clip, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from a directory listing
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer func() { _ = f.Close() }()

	clip, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return clip, nil
}

// DecodeWAV reads a complete PCM WAV stream into a Clip.
func DecodeWAV(r io.ReadSeeker) (*Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: format tag %d", ErrUnsupportedFormat, dec.WavAudioFormat)
	}

	bitDepth := int(dec.BitDepth)
	if !supportedBitDepth(bitDepth) {
		return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedFormat, bitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read PCM: %w", err)
	}
	if len(buf.Data) == 0 || dec.NumChans == 0 {
		return nil, ErrEmptyClip
	}

	channels := int(dec.NumChans)
	// Drop a trailing partial frame from a truncated data chunk.
	usable := len(buf.Data) - len(buf.Data)%channels
	samples := make([]float64, usable)
	for i := 0; i < usable; i++ {
		samples[i] = intToSample(buf.Data[i], bitDepth)
	}

	return &Clip{
		SampleRate: int(dec.SampleRate),
		Channels:   channels,
		BitDepth:   bitDepth,
		Samples:    samples,
	}, nil
}

// WriteWAV encodes the clip as PCM WAV at path. The data is written to a
// hidden temporary file in the destination directory and renamed into
// place, so readers never observe a partially written file under path.
func WriteWAV(path string, c *Clip) error {
	if !supportedBitDepth(c.BitDepth) {
		return fmt.Errorf("%w: %d-bit samples", ErrUnsupportedFormat, c.BitDepth)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := EncodeWAV(tmp, c); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// EncodeWAV writes the clip as a PCM WAV stream.
func EncodeWAV(w io.WriteSeeker, c *Clip) error {
	enc := wav.NewEncoder(w, c.SampleRate, c.BitDepth, c.Channels, wavFormatPCM)

	data := make([]int, len(c.Samples))
	for i, s := range c.Samples {
		data[i] = sampleToInt(s, c.BitDepth)
	}
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: c.Channels,
			SampleRate:  c.SampleRate,
		},
		Data:           data,
		SourceBitDepth: c.BitDepth,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write PCM: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

func supportedBitDepth(bits int) bool {
	switch bits {
	case 8, 16, 24, 32:
		return true
	default:
		return false
	}
}

// intToSample maps a decoded PCM integer onto [-1, 1]. 8-bit WAV data is
// unsigned with a 128 midpoint.
func intToSample(v, bitDepth int) float64 {
	if bitDepth == 8 {
		return float64(v-128) / 128
	}
	return float64(v) / float64(int64(1)<<(bitDepth-1))
}

// sampleToInt is the inverse of intToSample, saturating at full scale.
func sampleToInt(s float64, bitDepth int) int {
	s = clamp(s)
	if bitDepth == 8 {
		return int(math.Round(s*127)) + 128
	}
	full := float64(int64(1)<<(bitDepth-1)) - 1
	return int(math.Round(s * full))
}
