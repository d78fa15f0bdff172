// Package features exports a table of acoustic descriptors for every
// recording under a set of dataset roots.
package features

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/soundset/internal/audio"
)

// ErrNoRoots is returned when Extract is called without root directories.
var ErrNoRoots = errors.New("features: at least one root directory is required")

// Header is the column row written by WriteCSV.
var Header = buildHeader()

func buildHeader() []string {
	h := []string{"File", "Main_Folder", "Subdirectory", "Duration", "Sample_Rate"}
	for i := 1; i <= MFCCCount; i++ {
		h = append(h, "MFCC_"+strconv.Itoa(i))
	}
	for i := 1; i <= ChromaBins; i++ {
		h = append(h, "Chroma_"+strconv.Itoa(i))
	}
	for i := 1; i <= ContrastBands; i++ {
		h = append(h, "Spectral_Contrast_"+strconv.Itoa(i))
	}
	return append(h,
		"Spectral_Centroid", "Spectral_Bandwidth", "Spectral_Rolloff",
		"Spectral_Flatness", "Zero_Crossing_Rate", "RMS", "Tempo", "Pitch",
	)
}

// Row holds the descriptors of one recording.
type Row struct {
	File         string
	MainFolder   string
	Subdirectory string
	Duration     float64
	SampleRate   int
	Features
}

// FileError records a recording that could not be analysed.
type FileError struct {
	File  string
	Error string
}

// Result is the outcome of an extraction run.
type Result struct {
	Rows   []Row
	Errors []FileError
}

// Extractor analyses recordings through a bounded worker pool.
type Extractor struct {
	logger  *slog.Logger
	workers int
	ext     string
	exclude map[string]struct{}
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithWorkers sets the number of recordings analysed concurrently.
func WithWorkers(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithExtension sets the audio file suffix to analyse.
func WithExtension(ext string) Option {
	return func(e *Extractor) {
		if ext != "" {
			e.ext = ext
		}
	}
}

// WithExclude leaves out recordings whose subdirectory, relative to its
// root, is one of dirs.
func WithExclude(dirs ...string) Option {
	return func(e *Extractor) {
		for _, d := range dirs {
			if d == "" {
				continue
			}
			if e.exclude == nil {
				e.exclude = make(map[string]struct{})
			}
			e.exclude[filepath.Clean(d)] = struct{}{}
		}
	}
}

// New creates an Extractor.
func New(logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{
		logger:  logger,
		workers: runtime.NumCPU(),
		ext:     ".wav",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// task is one recording together with its position in the dataset.
type task struct {
	path         string
	mainFolder   string
	subdirectory string
}

// Extract analyses every recording under roots. Rows keep the walk order:
// roots as given, then paths in lexical order. Unreadable or empty files
// are logged, recorded and left out of the table.
func (e *Extractor) Extract(ctx context.Context, roots []string) (*Result, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}

	tasks, err := e.collect(roots)
	if err != nil {
		return nil, err
	}
	e.logger.Info("extracting features",
		slog.Int("files", len(tasks)),
		slog.Int("workers", e.workers),
	)

	rows := make([]*Row, len(tasks))
	errs := make([]error, len(tasks))
	g := new(errgroup.Group)
	g.SetLimit(e.workers)
	for i, t := range tasks {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rows[i], errs[i] = analyse(t)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{}
	for i, t := range tasks {
		switch {
		case errs[i] != nil:
			e.logger.Warn("skipping recording",
				slog.String("file", t.path),
				slog.String("error", errs[i].Error()),
			)
			res.Errors = append(res.Errors, FileError{File: t.path, Error: errs[i].Error()})
		case rows[i] != nil:
			res.Rows = append(res.Rows, *rows[i])
		}
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	e.logger.Info("feature extraction finished",
		slog.Int("rows", len(res.Rows)),
		slog.Int("errors", len(res.Errors)),
	)
	return res, nil
}

func (e *Extractor) collect(roots []string) ([]task, error) {
	var tasks []task
	for _, root := range roots {
		mainFolder := filepath.Base(filepath.Clean(root))
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), e.ext) {
				return nil
			}
			sub, err := filepath.Rel(root, filepath.Dir(path))
			if err != nil {
				return err
			}
			if _, skip := e.exclude[sub]; skip {
				return nil
			}
			tasks = append(tasks, task{path: path, mainFolder: mainFolder, subdirectory: sub})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", root, err)
		}
	}
	return tasks, nil
}

func analyse(t task) (*Row, error) {
	clip, err := audio.ReadWAV(t.path)
	if err != nil {
		return nil, err
	}
	return &Row{
		File:         filepath.Base(t.path),
		MainFolder:   t.mainFolder,
		Subdirectory: t.subdirectory,
		Duration:     clip.Duration().Seconds(),
		SampleRate:   clip.SampleRate,
		Features:     Compute(clip.Mono(), clip.SampleRate),
	}, nil
}

// WriteCSV writes rows as a feature table with Header as the first line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		record := make([]string, 0, len(Header))
		record = append(record,
			r.File,
			r.MainFolder,
			r.Subdirectory,
			formatFloat(r.Duration),
			strconv.Itoa(r.SampleRate),
		)
		record = appendFloats(record, r.MFCC[:]...)
		record = appendFloats(record, r.Chroma[:]...)
		record = appendFloats(record, r.Contrast[:]...)
		record = appendFloats(record,
			r.Centroid, r.Bandwidth, r.Rolloff, r.Flatness, r.ZCR, r.RMS, r.Tempo, r.Pitch,
		)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func appendFloats(record []string, vs ...float64) []string {
	for _, v := range vs {
		record = append(record, formatFloat(v))
	}
	return record
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
