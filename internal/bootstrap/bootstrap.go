// Package bootstrap provides dependency initialization for the soundset CLI.
package bootstrap

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/maauso/soundset/internal/balance"
	"github.com/maauso/soundset/internal/config"
	"github.com/maauso/soundset/internal/features"
	"github.com/maauso/soundset/internal/job"
	"github.com/maauso/soundset/internal/storage"
	"github.com/maauso/soundset/internal/trim"
)

// Dependencies holds all initialized dependencies for the commands.
type Dependencies struct {
	// Store is nil unless WithReportStorage was given.
	Store     storage.Storage
	Balancer  *balance.Balancer
	Jobs      *job.Service
	Trimmer   *trim.Trimmer
	Extractor *features.Extractor
}

// Option adjusts dependency construction with settings that only exist on
// the command line.
type Option func(*options)

type options struct {
	progress        io.Writer
	deleteOriginals bool
	reportStorage   bool
	exclude         []string
}

// WithReportStorage builds the report storage. Only commands that publish
// a report need it, and building it creates the report directory.
func WithReportStorage() Option {
	return func(o *options) {
		o.reportStorage = true
	}
}

// WithExclude leaves the given subdirectories out of feature extraction.
func WithExclude(dirs []string) Option {
	return func(o *options) {
		o.exclude = dirs
	}
}

// WithProgress renders balancing progress on w.
func WithProgress(w io.Writer) Option {
	return func(o *options) {
		o.progress = w
	}
}

// WithDeleteOriginals makes the trimmer remove trimmed source recordings.
func WithDeleteOriginals(v bool) Option {
	return func(o *options) {
		o.deleteOriginals = v
	}
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Dependencies, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var store storage.Storage
	if o.reportStorage {
		var err error
		store, err = initStorage(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	workers := cfg.EffectiveWorkers()

	balancer := balance.New(logger,
		balance.WithExtension(cfg.AudioExt),
		balance.WithSeed(cfg.Seed),
		balance.WithLockDir(cfg.LockDir),
	)

	jobOpts := []job.Option{
		job.WithWorkers(workers),
		job.WithTarget(cfg.TargetCount),
		job.WithExtension(cfg.AudioExt),
	}
	if o.progress != nil {
		jobOpts = append(jobOpts, job.WithProgress(o.progress))
	}
	svc := job.NewService(job.NewMemoryRepository(), balancer, logger, jobOpts...)

	trimmer := trim.New(logger,
		trim.WithWorkers(workers),
		trim.WithDeleteOriginals(o.deleteOriginals),
	)

	extractor := features.New(logger,
		features.WithWorkers(workers),
		features.WithExtension(cfg.AudioExt),
		features.WithExclude(o.exclude...),
	)

	return &Dependencies{
		Store:     store,
		Balancer:  balancer,
		Jobs:      svc,
		Trimmer:   trimmer,
		Extractor: extractor,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.ReportDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Debug("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.ReportDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Debug("local storage configured",
		slog.String("report_dir", localStore.Dir()),
	)
	return localStore, nil
}
