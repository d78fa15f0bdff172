// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrNoRoots is returned when no root directory is configured.
	ErrNoRoots = errors.New("config: at least one root directory is required")
	// ErrInvalidTarget is returned when TARGET_COUNT is not positive.
	ErrInvalidTarget = errors.New("config: TARGET_COUNT must be positive")
	// ErrInvalidWorkers is returned when WORKERS is negative.
	ErrInvalidWorkers = errors.New("config: WORKERS must not be negative")
	// ErrInvalidExtension is returned when AUDIO_EXT does not start with a dot.
	ErrInvalidExtension = errors.New("config: AUDIO_EXT must start with '.'")
	// ErrInvalidReportFormat is returned for an unknown REPORT_FORMAT.
	ErrInvalidReportFormat = errors.New("config: REPORT_FORMAT must be json or yaml")
	// ErrInvalidLogFormat is returned for an unknown LOG_FORMAT.
	ErrInvalidLogFormat = errors.New("config: LOG_FORMAT must be text or json")
	// ErrInvalidConfig wraps validation failures without a dedicated error.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// fieldErrors maps struct fields to the error reported when they fail validation.
var fieldErrors = map[string]error{
	"Roots":        ErrNoRoots,
	"TargetCount":  ErrInvalidTarget,
	"Workers":      ErrInvalidWorkers,
	"AudioExt":     ErrInvalidExtension,
	"ReportFormat": ErrInvalidReportFormat,
	"LogFormat":    ErrInvalidLogFormat,
}

// Config holds all configuration for the application.
type Config struct {
	// Dataset settings
	Roots       []string `env:"SOUNDSET_ROOTS" json:"roots" validate:"min=1,dive,required"`
	TargetCount int      `env:"TARGET_COUNT, default=1500" json:"target_count" validate:"gt=0"`
	AudioExt    string   `env:"AUDIO_EXT, default=.wav" json:"audio_ext" validate:"required,startswith=."`

	// Processing settings
	Workers int    `env:"WORKERS, default=0" json:"workers" validate:"gte=0"` // 0 selects runtime.NumCPU()
	Seed    int64  `env:"SEED, default=0" json:"seed"`                        // 0 seeds from the clock
	LockDir string `env:"LOCK_DIR" json:"lock_dir,omitempty"`                 // empty selects a directory under os.TempDir()

	// Report settings
	ReportDir    string `env:"REPORT_DIR, default=reports" json:"report_dir"`
	ReportFormat string `env:"REPORT_FORMAT, default=json" json:"report_format" validate:"oneof=json yaml yml"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Prefix           string `env:"S3_PREFIX, default=soundset/reports" json:"s3_prefix,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=text json"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"` // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// EffectiveWorkers returns the worker pool size, resolving 0 to the CPU count.
func (c *Config) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// Load reads configuration from environment variables using go-envconfig.
// Values are not validated so command-line flags can still override them;
// call Validate before use.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads configuration through the given lookuper.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration with go-playground/validator and maps
// the first failing field to its static error.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	fe := verrs[0]
	field := fe.StructField()
	// Errors inside dive report the element, e.g. "Roots[0]".
	if i := strings.IndexByte(field, '['); i >= 0 {
		field = field[:i]
	}
	if sentinel, ok := fieldErrors[field]; ok {
		return fmt.Errorf("%w (%s failed on %q)", sentinel, fe.Namespace(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", ErrInvalidConfig, fe)
}

// NewLogger creates a structured logger writing to stderr, keeping stdout
// free for tables and CSV output.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stderr)
}

// NewLoggerTo creates the configured logger writing to w.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Roots: %v, TargetCount: %d, AudioExt: %s, Workers: %d, Seed: %d, LockDir: %s, ReportDir: %s, ReportFormat: %s, S3Bucket: %s, S3Region: %s, S3Endpoint: %s, LogFormat: %s, LogLevel: %s}",
		c.Roots,
		c.TargetCount,
		c.AudioExt,
		c.Workers,
		c.Seed,
		c.LockDir,
		c.ReportDir,
		c.ReportFormat,
		c.S3Bucket,
		c.S3Region,
		c.S3Endpoint,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
