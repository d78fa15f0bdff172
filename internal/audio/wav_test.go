package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sineClip builds a clip holding a sine wave on every channel.
func sineClip(sampleRate, channels, frames int, freq, amp float64) *Clip {
	samples := make([]float64, frames*channels)
	for f := 0; f < frames; f++ {
		v := amp * math.Sin(2*math.Pi*freq*float64(f)/float64(sampleRate))
		for ch := 0; ch < channels; ch++ {
			samples[f*channels+ch] = v
		}
	}
	return &Clip{SampleRate: sampleRate, Channels: channels, BitDepth: 16, Samples: samples}
}

func TestWriteReadWAV(t *testing.T) {
	tests := []struct {
		name     string
		bitDepth int
		channels int
		tol      float64
	}{
		{"16-bit stereo", 16, 2, 1.0 / 32000},
		{"8-bit mono", 8, 1, 1.0 / 100},
		{"24-bit mono", 24, 1, 1e-6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clip := sineClip(8000, tt.channels, 800, 440, 0.5)
			clip.BitDepth = tt.bitDepth
			path := filepath.Join(t.TempDir(), "clip.wav")

			require.NoError(t, WriteWAV(path, clip))

			got, err := ReadWAV(path)
			require.NoError(t, err)
			assert.Equal(t, clip.SampleRate, got.SampleRate)
			assert.Equal(t, clip.Channels, got.Channels)
			assert.Equal(t, clip.BitDepth, got.BitDepth)
			require.Len(t, got.Samples, len(clip.Samples))
			for i := range clip.Samples {
				if math.Abs(clip.Samples[i]-got.Samples[i]) > tt.tol {
					t.Fatalf("sample %d = %v, want %v", i, got.Samples[i], clip.Samples[i])
				}
			}
		})
	}
}

func TestWriteWAV_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteWAV(filepath.Join(dir, "a.wav"), sineClip(8000, 1, 100, 440, 0.2)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.wav", entries[0].Name())
}

func TestWriteWAV_UnsupportedBitDepth(t *testing.T) {
	clip := sineClip(8000, 1, 100, 440, 0.2)
	clip.BitDepth = 12

	err := WriteWAV(filepath.Join(t.TempDir(), "a.wav"), clip)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadWAV_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not riff data"), 0o644))

	_, err := ReadWAV(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidWAV)
}

func TestReadWAV_Missing(t *testing.T) {
	_, err := ReadWAV(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestClip_Mono(t *testing.T) {
	clip := &Clip{SampleRate: 10, Channels: 2, BitDepth: 16, Samples: []float64{1, 0, 0.5, 0.5, -1, 1}}
	assert.Equal(t, []float64{0.5, 0.5, 0}, clip.Mono())
	assert.Equal(t, 3, clip.Frames())
}
