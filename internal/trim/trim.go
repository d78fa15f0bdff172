// Package trim cuts labelled segments out of recordings. Each CSV table
// found under the roots lists segments of the WAV files next to it.
package trim

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/soundset/internal/audio"
)

// ErrNoRoots is returned when Run is called without root directories.
var ErrNoRoots = errors.New("trim: at least one root directory is required")

// FileError records a failure on a single segment or table.
type FileError struct {
	File  string
	Error string
}

// Result summarises a trimming run.
type Result struct {
	// Tables is the number of CSV files processed.
	Tables int
	// Created lists the segment files written.
	Created []string
	// Existing counts segments skipped because their output already existed.
	Existing int
	// Missing lists source recordings that could not be found.
	Missing []string
	// Deleted lists originals removed after trimming.
	Deleted []string
	// Errors lists per-file failures.
	Errors []FileError
}

// Trimmer processes trimming tables through a bounded worker pool.
type Trimmer struct {
	logger          *slog.Logger
	workers         int
	deleteOriginals bool
}

// Option configures a Trimmer.
type Option func(*Trimmer)

// WithWorkers sets the number of tables processed concurrently.
func WithWorkers(n int) Option {
	return func(t *Trimmer) {
		if n > 0 {
			t.workers = n
		}
	}
}

// WithDeleteOriginals removes every source recording that produced at least
// one segment once all tables are processed.
func WithDeleteOriginals(v bool) Option {
	return func(t *Trimmer) {
		t.deleteOriginals = v
	}
}

// New creates a Trimmer.
func New(logger *slog.Logger, opts ...Option) *Trimmer {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Trimmer{
		logger:  logger,
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// tableResult is the outcome of one CSV table.
type tableResult struct {
	created   []string
	existing  int
	missing   []string
	errors    []FileError
	originals []string
}

// Run trims every table under roots. Tables are independent; a failing
// table is recorded and never stops the others.
func (t *Trimmer) Run(ctx context.Context, roots []string) (*Result, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}

	tables, err := FindTables(roots)
	if err != nil {
		return nil, err
	}
	t.logger.Info("trimming segments",
		slog.Int("tables", len(tables)),
		slog.Int("workers", t.workers),
	)

	results := make([]tableResult, len(tables))
	g := new(errgroup.Group)
	g.SetLimit(t.workers)
	for i, table := range tables {
		g.Go(func() error {
			results[i] = t.processTable(ctx, table)
			return nil
		})
	}
	_ = g.Wait()

	out := &Result{Tables: len(tables)}
	seen := make(map[string]bool)
	var originals []string
	for _, r := range results {
		out.Created = append(out.Created, r.created...)
		out.Existing += r.existing
		out.Missing = append(out.Missing, r.missing...)
		out.Errors = append(out.Errors, r.errors...)
		for _, o := range r.originals {
			if !seen[o] {
				seen[o] = true
				originals = append(originals, o)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}
	if t.deleteOriginals {
		sort.Strings(originals)
		for _, path := range originals {
			if err := os.Remove(path); err != nil {
				t.logger.Warn("failed to delete original",
					slog.String("file", path),
					slog.String("error", err.Error()),
				)
				out.Errors = append(out.Errors, FileError{File: path, Error: err.Error()})
				continue
			}
			out.Deleted = append(out.Deleted, path)
		}
	}

	t.logger.Info("trimming finished",
		slog.Int("created", len(out.Created)),
		slog.Int("existing", out.Existing),
		slog.Int("missing", len(out.Missing)),
		slog.Int("deleted", len(out.Deleted)),
		slog.Int("errors", len(out.Errors)),
	)
	return out, nil
}

// processTable writes {base}_{k}.wav for every segment of one table, where k
// counts the segments of base in this table starting at 1.
func (t *Trimmer) processTable(ctx context.Context, table string) tableResult {
	var res tableResult
	dir := filepath.Dir(table)
	logger := t.logger.With(slog.String("table", table))

	f, err := os.Open(table)
	if err != nil {
		res.errors = append(res.errors, FileError{File: table, Error: err.Error()})
		return res
	}
	segments, skipped, err := ReadSegments(f)
	_ = f.Close()
	if err != nil {
		logger.Warn("failed to read table", slog.String("error", err.Error()))
		res.errors = append(res.errors, FileError{File: table, Error: err.Error()})
	}
	if skipped > 0 {
		logger.Debug("skipped unparsable rows", slog.Int("rows", skipped))
	}

	counts := make(map[string]int)
	clips := make(map[string]*audio.Clip)
	used := make(map[string]bool)
	for _, seg := range segments {
		if ctx.Err() != nil {
			break
		}
		base := seg.Base()
		counts[base]++
		output := filepath.Join(dir, base+"_"+strconv.Itoa(counts[base])+".wav")

		if _, err := os.Stat(output); err == nil {
			res.existing++
			continue
		}

		source := filepath.Join(dir, base+".wav")
		clip, ok := clips[source]
		if !ok {
			clip, err = audio.ReadWAV(source)
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("source recording not found", slog.String("file", source))
				res.missing = append(res.missing, source)
				clips[source] = nil
				continue
			}
			if err != nil {
				logger.Warn("failed to decode source", slog.String("file", source), slog.String("error", err.Error()))
				res.errors = append(res.errors, FileError{File: source, Error: err.Error()})
				clips[source] = nil
				continue
			}
			clips[source] = clip
		}
		if clip == nil {
			continue
		}

		if err := t.writeSegment(clip, seg, output); err != nil {
			logger.Warn("failed to write segment",
				slog.String("file", output),
				slog.String("error", err.Error()),
			)
			res.errors = append(res.errors, FileError{File: output, Error: err.Error()})
			continue
		}
		res.created = append(res.created, output)
		if !used[source] {
			used[source] = true
			res.originals = append(res.originals, source)
		}
	}
	return res
}

func (t *Trimmer) writeSegment(clip *audio.Clip, seg Segment, output string) error {
	cut, err := audio.Trim(clip, seg.Start, seg.End)
	if err != nil {
		return fmt.Errorf("%s [%s, %s): %w", seg.Name, seg.Start, seg.End, err)
	}
	return audio.WriteWAV(output, cut)
}

// FindTables returns every .csv file under roots, sorted.
func FindTables(roots []string) ([]string, error) {
	var tables []string
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".csv") {
				tables = append(tables, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", root, err)
		}
	}
	sort.Strings(tables)
	return tables, nil
}
