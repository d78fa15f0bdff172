package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/maauso/soundset/internal/storage"
)

func sampleReport() *Report {
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return New("run-1", 5, started, started.Add(time.Minute), []Directory{
		{Path: "/data/z", Status: StatusSkipped, BeforeCount: 9, AfterCount: 9},
		{Path: "/data/a", Status: StatusCompleted, BeforeCount: 2, AfterCount: 5,
			Created: []string{"x_echo_0.wav", "x_noise_0.wav", "y_speed_0.wav"},
			Errors:  []FileError{{File: "bad.wav", Error: "invalid WAV file"}}},
		{Path: "/data/m", Status: StatusFailed, Error: "permission denied"},
	})
}

func TestNew_SortsAndCounts(t *testing.T) {
	r := sampleReport()

	require.Len(t, r.Directories, 3)
	assert.Equal(t, "/data/a", r.Directories[0].Path)
	assert.Equal(t, "/data/m", r.Directories[1].Path)
	assert.Equal(t, "/data/z", r.Directories[2].Path)

	assert.Equal(t, Summary{
		Directories: 3,
		Completed:   1,
		Skipped:     1,
		Failed:      1,
		Created:     3,
		FileErrors:  1,
	}, r.Summary)
	assert.True(t, r.HasFailures())
}

func TestNew_DoesNotReorderInput(t *testing.T) {
	dirs := []Directory{{Path: "b"}, {Path: "a"}}
	_ = New("r", 1, time.Time{}, time.Time{}, dirs)
	assert.Equal(t, "b", dirs[0].Path)
}

func TestHasFailures_None(t *testing.T) {
	r := New("r", 1, time.Time{}, time.Time{}, []Directory{{Path: "a", Status: StatusSkipped}})
	assert.False(t, r.HasFailures())
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"", FormatJSON, false},
		{"YAML", FormatYAML, false},
		{" yml ", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Encode(&buf, FormatJSON))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	summary := decoded["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["failed"])
	dirs := decoded["directories"].([]any)
	first := dirs[0].(map[string]any)
	assert.Equal(t, "/data/a", first["directory"])
	assert.EqualValues(t, 5, first["after_count"])
}

func TestEncode_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReport().Encode(&buf, FormatYAML))

	var decoded Report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, 3, decoded.Summary.Directories)
	assert.Equal(t, "permission denied", decoded.Directories[1].Error)
}

func TestEncode_UnknownFormat(t *testing.T) {
	err := sampleReport().Encode(io.Discard, Format("xml"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestTable_FailuresFirst(t *testing.T) {
	out := sampleReport().Table()

	failed := strings.Index(out, "/data/m")
	completed := strings.Index(out, "/data/a")
	require.NotEqual(t, -1, failed)
	require.NotEqual(t, -1, completed)
	assert.Less(t, failed, completed)
	assert.Contains(t, out, "permission denied")
	// Footers are upper-cased by the table style.
	assert.Contains(t, strings.ToLower(out), "3 directories")
	assert.Contains(t, out, "+3")
}

func TestFileName(t *testing.T) {
	r := sampleReport()
	assert.Equal(t, "report-run-1.json", r.FileName(FormatJSON))
	assert.Equal(t, "report-run-1.yaml", r.FileName(FormatYAML))
}

func TestPublish_Local(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	loc, err := Publish(context.Background(), store, sampleReport(), FormatJSON, false)
	require.NoError(t, err)
	assert.Empty(t, loc.URL)

	data, err := os.ReadFile(loc.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id": "run-1"`)
}

func TestPublish_UploadWithoutS3(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	loc, err := Publish(context.Background(), store, sampleReport(), FormatYAML, true)
	assert.ErrorIs(t, err, storage.ErrS3NotConfigured)
	assert.NotEmpty(t, loc.Path)
}

// mockStorage is a testify mock of storage.Storage.
type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Save(ctx context.Context, name string, data io.Reader) (string, error) {
	args := m.Called(ctx, name, data)
	return args.String(0), args.Error(1)
}

func (m *mockStorage) Load(ctx context.Context, path string) (io.ReadCloser, error) {
	args := m.Called(ctx, path)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *mockStorage) UploadToS3(ctx context.Context, key string, data io.Reader) (string, error) {
	args := m.Called(ctx, key, data)
	return args.String(0), args.Error(1)
}

func TestPublish_CancelledContextStillSaves(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loc, err := Publish(ctx, store, sampleReport(), FormatJSON, false)
	require.NoError(t, err)
	assert.FileExists(t, loc.Path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPublish_Upload(t *testing.T) {
	store := &mockStorage{}
	store.On("Save", mock.Anything, "report-run-1.json", mock.Anything).Return("/tmp/report-run-1.json", nil)
	store.On("Load", mock.Anything, "/tmp/report-run-1.json").
		Return(io.NopCloser(strings.NewReader(`{"run_id": "run-1"}`)), nil)
	store.On("UploadToS3", mock.Anything, "report-run-1.json", mock.Anything).
		Return("https://bucket.s3.eu-west-1.amazonaws.com/report-run-1.json", nil)

	loc, err := Publish(context.Background(), store, sampleReport(), FormatJSON, true)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/report-run-1.json", loc.Path)
	assert.Contains(t, loc.URL, "report-run-1.json")
	store.AssertExpectations(t)
}

func TestPublish_ReloadError(t *testing.T) {
	store := &mockStorage{}
	store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return("/tmp/report-run-1.json", nil)
	store.On("Load", mock.Anything, "/tmp/report-run-1.json").Return(nil, os.ErrNotExist)

	loc, err := Publish(context.Background(), store, sampleReport(), FormatJSON, true)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, "/tmp/report-run-1.json", loc.Path)
	store.AssertNotCalled(t, "UploadToS3", mock.Anything, mock.Anything, mock.Anything)
}

func TestPublish_SaveError(t *testing.T) {
	store := &mockStorage{}
	store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("disk full"))

	_, err := Publish(context.Background(), store, sampleReport(), FormatJSON, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	store.AssertNotCalled(t, "UploadToS3", mock.Anything, mock.Anything, mock.Anything)
}
