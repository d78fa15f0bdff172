package main

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/soundset/internal/audio"
	"github.com/maauso/soundset/internal/balance"
	"github.com/maauso/soundset/internal/config"
	"github.com/maauso/soundset/internal/features"
)

// isolateEnv clears configuration variables that would leak into tests.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SOUNDSET_ROOTS", "TARGET_COUNT", "WORKERS", "SEED", "LOCK_DIR", "AUDIO_EXT",
		"REPORT_DIR", "REPORT_FORMAT", "S3_BUCKET", "S3_REGION", "S3_ENDPOINT",
		"LOG_FORMAT", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeRecording(t *testing.T, path string, frames int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	samples := make([]float64, frames)
	for i := range samples {
		samples[i] = 0.4 * math.Sin(2*math.Pi*330*float64(i)/8000)
	}
	clip := &audio.Clip{SampleRate: 8000, Channels: 1, BitDepth: 16, Samples: samples}
	require.NoError(t, audio.WriteWAV(path, clip))
}

func countWAV(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".wav" {
			n++
		}
	}
	return n
}

func TestRun_Balance(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	writeRecording(t, filepath.Join(root, "siren", "a.wav"), 1600)
	writeRecording(t, filepath.Join(root, "siren", "b.wav"), 800)
	writeRecording(t, filepath.Join(root, "horn", "c.wav"), 800)
	writeRecording(t, filepath.Join(root, "horn", "d.wav"), 800)
	reports := filepath.Join(t.TempDir(), "reports")

	var stdout, stderr bytes.Buffer
	err := run([]string{"balance", root, "--target", "3", "--seed", "5", "--workers", "2",
		"--report", reports, "--report-format", "yaml"}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	assert.Equal(t, 3, countWAV(t, filepath.Join(root, "siren")))
	assert.Equal(t, 3, countWAV(t, filepath.Join(root, "horn")))
	assert.Contains(t, stdout.String(), "COMPLETED")
	assert.Contains(t, stdout.String(), "report: ")

	matches, err := filepath.Glob(filepath.Join(reports, "report-*.yaml"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestRun_BalanceFailureExitsNonZero(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	dir := filepath.Join(root, "broken")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.wav"), []byte("junk"), 0o644))
	// A directory in place of the lock file makes the lock unobtainable.
	lockDir := t.TempDir()
	t.Setenv("LOCK_DIR", lockDir)
	lockPath, err := balance.LockPath(lockDir, dir)
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(lockPath, 0o755))

	var stdout, stderr bytes.Buffer
	err = run([]string{"balance", root, "--target", "2", "--report", t.TempDir()}, &stdout, &stderr)
	assert.ErrorIs(t, err, errDirectoriesFailed)
	assert.Contains(t, stdout.String(), "FAILED")
}

func TestRun_BalanceInvalidTarget(t *testing.T) {
	isolateEnv(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"balance", t.TempDir(), "--target", "0"}, &stdout, &stderr)
	assert.ErrorIs(t, err, config.ErrInvalidTarget)
}

func TestRun_NoRoots(t *testing.T) {
	isolateEnv(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"inventory"}, &stdout, &stderr)
	assert.ErrorIs(t, err, config.ErrNoRoots)
}

func TestRun_RootsFromEnvironment(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	writeRecording(t, filepath.Join(root, "a", "x.wav"), 100)
	t.Setenv("SOUNDSET_ROOTS", root)

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"inventory"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), filepath.Join(root, "a")+",1")
}

func TestRun_Inventory(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	writeRecording(t, filepath.Join(root, "a", "x.wav"), 100)
	writeRecording(t, filepath.Join(root, "a", "y.wav"), 100)
	out := filepath.Join(t.TempDir(), "counts.csv")

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"inventory", root, "--out", out}, &stdout, &stderr))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Directory", "File Count"}, records[0])
	assert.Contains(t, records, []string{filepath.Join(root, "a"), "2"})
}

func TestRun_InventoryAllFiles(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	writeRecording(t, filepath.Join(root, "a", "x.wav"), 100)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "labels.csv"), []byte("x"), 0o644))

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"inventory", root}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), filepath.Join(root, "a")+",1\n")

	stdout.Reset()
	require.NoError(t, run([]string{"inventory", root, "--all"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), filepath.Join(root, "a")+",2\n")
}

func TestRun_Trim(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	writeRecording(t, filepath.Join(root, "rec.wav"), 16000)
	require.NoError(t, os.WriteFile(filepath.Join(root, "t.csv"), []byte("rec_a,0,1\n"), 0o644))

	t.Chdir(t.TempDir())

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"trim", root, "--delete-originals"}, &stdout, &stderr))

	assert.FileExists(t, filepath.Join(root, "rec_1.wav"))
	assert.NoFileExists(t, filepath.Join(root, "rec.wav"))
	assert.Contains(t, stdout.String(), "created: 1")
	assert.NoDirExists(t, "reports")
}

func TestRun_Features(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	writeRecording(t, filepath.Join(root, "cls", "x.wav"), 4000)
	writeRecording(t, filepath.Join(root, "Tick", "y.wav"), 4000)
	t.Chdir(t.TempDir())

	var stdout, stderr bytes.Buffer
	require.NoError(t, run([]string{"features", root, "--log-format", "json", "--exclude", "Tick"}, &stdout, &stderr))

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "File,Main_Folder,Subdirectory,Duration"))
	assert.True(t, strings.HasPrefix(lines[1], "x.wav,"))
	assert.Contains(t, stderr.String(), `"msg"`)
	assert.Equal(t, len(features.Header), strings.Count(lines[0], ",")+1)
	assert.NoDirExists(t, "reports")
}

func TestRun_Help(t *testing.T) {
	isolateEnv(t)

	var stdout, stderr bytes.Buffer
	require.NoError(t, run(nil, &stdout, &stderr))
	for _, name := range []string{"balance", "inventory", "trim", "features"} {
		assert.Contains(t, stdout.String(), name)
	}
}
