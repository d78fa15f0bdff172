// Package balance tops up under-populated dataset directories with
// synthetic variants of their existing recordings.
package balance

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofrs/flock"

	"github.com/maauso/soundset/internal/audio"
	"github.com/maauso/soundset/internal/inventory"
)

// Static errors for balancing.
var (
	// ErrInvalidTarget is returned when the target count is not positive.
	ErrInvalidTarget = errors.New("balance: target count must be positive")
	// ErrDirectoryLocked is returned when another process holds the directory lock.
	ErrDirectoryLocked = errors.New("balance: directory is locked by another run")
)

// DefaultExtension is the audio file suffix balanced by default.
const DefaultExtension = ".wav"

// DefaultLockDir holds the advisory lock files of balanced directories.
// Locks live outside the dataset so leaf directories only ever hold audio.
func DefaultLockDir() string {
	return filepath.Join(os.TempDir(), "soundset-locks")
}

// LockPath returns the lock file guarding dir inside lockDir.
func LockPath(lockDir, dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(abs))
	return filepath.Join(lockDir, hex.EncodeToString(h.Sum(nil))+".lock"), nil
}

// FileError records a failure on a single source or synthetic file.
type FileError struct {
	File  string
	Error string
}

// Result describes the outcome of balancing one directory.
type Result struct {
	// Directory is the balanced directory.
	Directory string
	// Target is the requested file count.
	Target int
	// Before is the number of audio files found before augmenting.
	Before int
	// After is Before plus the number of synthetic files written.
	After int
	// Skipped is true when the directory already met the target.
	Skipped bool
	// Sources lists the files used as augmentation sources, in order.
	Sources []string
	// Created lists the synthetic file names written.
	Created []string
	// Errors lists per-file failures that did not abort the directory.
	Errors []FileError
}

// Balancer generates synthetic variants until a directory holds a target
// number of audio files.
//
// The deficit is spread over the sources in one pass, largest file first:
// with n sources and r files still missing, the next source receives
// ceil(r/n) variants. Every source is used at most once, a source that
// cannot be decoded contributes nothing and its share moves on to the
// remaining sources, and a directory with at least one usable source ends
// with exactly the target count.
type Balancer struct {
	ext     string
	rand    RandSource
	logger  *slog.Logger
	lockDir string
}

// Option configures a Balancer.
type Option func(*Balancer)

// WithExtension sets the audio file suffix to balance.
func WithExtension(ext string) Option {
	return func(b *Balancer) {
		if ext != "" {
			b.ext = ext
		}
	}
}

// WithRandSource sets the random generator factory.
func WithRandSource(src RandSource) Option {
	return func(b *Balancer) {
		if src != nil {
			b.rand = src
		}
	}
}

// WithLockDir sets the directory holding the per-directory lock files.
func WithLockDir(dir string) Option {
	return func(b *Balancer) {
		if dir != "" {
			b.lockDir = dir
		}
	}
}

// WithSeed is shorthand for WithRandSource(SeededSource(seed)).
func WithSeed(seed int64) Option {
	return WithRandSource(SeededSource(seed))
}

// New creates a Balancer. Without options it balances ".wav" files with a
// time-seeded generator.
func New(logger *slog.Logger, opts ...Option) *Balancer {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Balancer{
		ext:     DefaultExtension,
		rand:    SeededSource(0),
		logger:  logger,
		lockDir: DefaultLockDir(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Balance tops dir up to target files. It is a no-op, returning a skipped
// result, when the directory already holds target or more files. Errors on
// individual files are recorded in the result; the returned error is
// reserved for failures that affect the whole directory.
func (b *Balancer) Balance(ctx context.Context, dir string, target int) (*Result, error) {
	if target <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTarget, target)
	}

	res := &Result{Directory: dir, Target: target}
	files, err := inventory.List(dir, b.ext)
	if err != nil {
		return nil, err
	}
	res.Before = len(files)
	res.After = len(files)
	if len(files) >= target {
		res.Skipped = true
		b.logger.Debug("directory already balanced",
			slog.String("directory", dir),
			slog.Int("count", len(files)),
			slog.Int("target", target),
		)
		return res, nil
	}

	lockPath, err := LockPath(b.lockDir, dir)
	if err != nil {
		return res, fmt.Errorf("resolve lock: %w", err)
	}
	if err := os.MkdirAll(b.lockDir, 0o755); err != nil {
		return res, fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return res, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return res, ErrDirectoryLocked
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			b.logger.Warn("failed to release directory lock",
				slog.String("directory", dir),
				slog.String("error", err.Error()),
			)
		}
	}()

	// The directory may have changed between the first listing and the lock.
	files, err = inventory.List(dir, b.ext)
	if err != nil {
		return res, err
	}
	res.Before = len(files)
	res.After = len(files)
	if len(files) >= target {
		res.Skipped = true
		return res, nil
	}

	taken, err := inventory.Names(dir)
	if err != nil {
		return res, err
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Size != files[j].Size {
			return files[i].Size > files[j].Size
		}
		return files[i].Name < files[j].Name
	})

	remaining := target - len(files)
	b.logger.Info("augmenting directory",
		slog.String("directory", dir),
		slog.Int("count", len(files)),
		slog.Int("needed", remaining),
	)

	rng := b.rand(dir)
	for i, f := range files {
		if remaining <= 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		quota := ceilDiv(remaining, len(files)-i)
		res.Sources = append(res.Sources, f.Name)

		clip, err := audio.ReadWAV(filepath.Join(dir, f.Name))
		if err != nil {
			b.logger.Warn("skipping unreadable source",
				slog.String("directory", dir),
				slog.String("file", f.Name),
				slog.String("error", err.Error()),
			)
			res.Errors = append(res.Errors, FileError{File: f.Name, Error: err.Error()})
			continue
		}

		produced, err := b.augment(ctx, dir, f.Name, clip, quota, rng, taken, res)
		remaining -= produced
		if err != nil {
			return res, err
		}
	}

	b.logger.Info("finished augmenting directory",
		slog.String("directory", dir),
		slog.Int("before", res.Before),
		slog.Int("after", res.After),
		slog.Int("errors", len(res.Errors)),
	)
	return res, nil
}

// augment writes up to quota variants of one source and returns how many
// were written. Only context cancellation is returned as an error.
func (b *Balancer) augment(ctx context.Context, dir, source string, clip *audio.Clip, quota int, rng audio.Rand, taken map[string]struct{}, res *Result) (int, error) {
	base := strings.TrimSuffix(source, b.ext)
	produced := 0

	for v := 0; v < quota; v++ {
		if err := ctx.Err(); err != nil {
			return produced, err
		}

		kind := audio.RandomKind(rng)
		params := audio.DrawParams(rng)
		name := nextName(base, kind, b.ext, taken)

		out, err := audio.Apply(kind, clip, params)
		if err == nil {
			err = audio.WriteWAV(filepath.Join(dir, name), out)
		}
		if err != nil {
			b.logger.Warn("failed to write synthetic variant",
				slog.String("directory", dir),
				slog.String("source", source),
				slog.String("transform", string(kind)),
				slog.String("error", err.Error()),
			)
			res.Errors = append(res.Errors, FileError{File: name, Error: err.Error()})
			continue
		}

		taken[name] = struct{}{}
		res.Created = append(res.Created, name)
		res.After++
		produced++
	}
	return produced, nil
}

// nextName returns {base}_{kind}_{index}{ext} with the lowest index not
// already present in taken.
func nextName(base string, kind audio.Kind, ext string, taken map[string]struct{}) string {
	for idx := 0; ; idx++ {
		name := fmt.Sprintf("%s_%s_%d%s", base, kind, idx, ext)
		if _, exists := taken[name]; !exists {
			return name
		}
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
