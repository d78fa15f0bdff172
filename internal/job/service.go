package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/soundset/internal/balance"
	"github.com/maauso/soundset/internal/inventory"
	"github.com/maauso/soundset/internal/job/id"
	"github.com/maauso/soundset/internal/report"
)

// Static errors for the balancing run.
var (
	// ErrNoRoots is returned when Run is called without root directories.
	ErrNoRoots = errors.New("job: at least one root directory is required")
	// ErrWorkerPanic marks a directory whose worker panicked.
	ErrWorkerPanic = errors.New("job: worker panicked")
)

// DefaultTarget is the per-directory file count used when none is configured.
const DefaultTarget = 1500

// Balancer tops a single directory up to a target file count.
type Balancer interface {
	Balance(ctx context.Context, dir string, target int) (*balance.Result, error)
}

// Compile-time check that the concrete balancer satisfies Balancer.
var _ Balancer = (*balance.Balancer)(nil)

// Service runs the balancer over every leaf directory of a set of roots.
// Directories are processed by a bounded pool of workers and each one is
// tracked as a Job; a failing directory never cancels its siblings.
type Service struct {
	repo     Repository
	balancer Balancer
	logger   *slog.Logger

	workers  int
	target   int
	ext      string
	progress io.Writer
}

// Option configures a Service.
type Option func(*Service)

// WithWorkers sets the pool size. Values below 1 select runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithTarget sets the per-directory target count.
func WithTarget(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.target = n
		}
	}
}

// WithExtension sets the audio file suffix used to discover directories.
func WithExtension(ext string) Option {
	return func(s *Service) {
		if ext != "" {
			s.ext = ext
		}
	}
}

// WithProgress renders a progress bar on w while the run is in flight.
func WithProgress(w io.Writer) Option {
	return func(s *Service) {
		s.progress = w
	}
}

// NewService creates a new Service.
func NewService(repo Repository, balancer Balancer, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:     repo,
		balancer: balancer,
		logger:   logger,
		workers:  runtime.NumCPU(),
		target:   DefaultTarget,
		ext:      balance.DefaultExtension,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Discover returns every directory under roots that directly contains at
// least one file ending in ext, sorted and without duplicates.
func Discover(roots []string, ext string) ([]string, error) {
	dirs, err := inventory.LeafDirs(roots, ext)
	if err != nil {
		return nil, err
	}
	sort.Strings(dirs)
	return dirs, nil
}

// Run balances every leaf directory under roots and returns the run report.
// The returned error covers failures before dispatch only; per-directory
// failures are recorded in the report.
func (s *Service) Run(ctx context.Context, roots []string) (*report.Report, error) {
	if len(roots) == 0 {
		return nil, ErrNoRoots
	}

	runID := id.Generate("run")
	started := time.Now()

	dirs, err := Discover(roots, s.ext)
	if err != nil {
		return nil, fmt.Errorf("discover directories: %w", err)
	}

	s.logger.Info("starting balancing run",
		slog.String("run_id", runID),
		slog.Int("directories", len(dirs)),
		slog.Int("target", s.target),
		slog.Int("workers", s.workers),
	)

	jobs := make([]*Job, 0, len(dirs))
	for _, dir := range dirs {
		j := New(dir, s.target)
		if err := s.repo.Save(ctx, j); err != nil {
			return nil, fmt.Errorf("save job: %w", err)
		}
		jobs = append(jobs, j)
	}

	bar := newProgress(s.progress, len(jobs))

	// Workers always return nil so a failed directory never stops the others.
	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for _, j := range jobs {
		if ctx.Err() != nil {
			s.abandon(ctx, j)
			continue
		}
		g.Go(func() error {
			defer bar.increment()
			s.runJob(ctx, j)
			return nil
		})
	}
	_ = g.Wait()
	bar.wait()
	s.settle(ctx, jobs)

	finished, err := s.repo.List(context.WithoutCancel(ctx))
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	entries := make([]report.Directory, 0, len(finished))
	for _, j := range finished {
		entries = append(entries, j.Report())
	}

	r := report.New(runID, s.target, started, time.Now(), entries)
	s.logger.Info("balancing run finished",
		slog.String("run_id", runID),
		slog.Int("completed", r.Summary.Completed),
		slog.Int("skipped", r.Summary.Skipped),
		slog.Int("failed", r.Summary.Failed),
		slog.Int("created", r.Summary.Created),
		slog.Duration("elapsed", r.FinishedAt.Sub(started)),
	)
	return r, nil
}

// runJob balances one directory and stores the final job state. Panics in
// the balancer are recovered and reported as a directory failure.
func (s *Service) runJob(ctx context.Context, j *Job) {
	logger := s.logger.With(
		slog.String("job_id", j.ID),
		slog.String("directory", j.Directory),
	)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("worker panicked",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			_ = j.Fail(fmt.Sprintf("%v: %v", ErrWorkerPanic, rec), nil)
			s.save(ctx, logger, j)
		}
	}()

	if err := j.Start(); err != nil {
		logger.Error("failed to start job", slog.String("error", err.Error()))
		return
	}
	s.save(ctx, logger, j)

	res, err := s.balancer.Balance(ctx, j.Directory, j.Target)
	if err == nil && res == nil {
		err = errors.New("balancer returned no result")
	}
	if err != nil {
		logger.Error("directory failed", slog.String("error", err.Error()))
		_ = j.Fail(err.Error(), res)
		s.save(ctx, logger, j)
		return
	}

	if err := j.Finish(res); err != nil {
		logger.Error("failed to finish job", slog.String("error", err.Error()))
	}
	s.save(ctx, logger, j)
	logger.Debug("directory finished",
		slog.String("status", string(j.GetStatus())),
		slog.Int("created", len(res.Created)),
	)
}

// settle fails every job whose stored state is not terminal once the pool
// has drained, so the report never shows a directory as queued or running.
func (s *Service) settle(ctx context.Context, jobs []*Job) {
	ctx = context.WithoutCancel(ctx)
	for _, j := range jobs {
		stored, err := s.repo.FindByID(ctx, j.ID)
		if err == nil && stored.IsTerminal() {
			continue
		}
		if !j.IsTerminal() {
			_ = j.Fail("job did not finish", nil)
		}
		s.save(ctx, s.logger, j)
	}
}

// abandon fails a job that was never dispatched because the run stopped.
func (s *Service) abandon(ctx context.Context, j *Job) {
	_ = j.Fail(ctx.Err().Error(), nil)
	s.save(context.WithoutCancel(ctx), s.logger, j)
}

func (s *Service) save(ctx context.Context, logger *slog.Logger, j *Job) {
	if err := s.repo.Save(context.WithoutCancel(ctx), j); err != nil {
		logger.Error("failed to save job", slog.String("error", err.Error()))
	}
}
