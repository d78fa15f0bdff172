package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maauso/soundset/internal/config"
)

// commandContext carries the global flags and output streams shared by
// every subcommand.
type commandContext struct {
	stdout io.Writer
	stderr io.Writer

	workers   int
	ext       string
	logLevel  string
	logFormat string
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	ctx := &commandContext{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "soundset",
		Short: "Balance and prepare audio classification datasets",
		Long: "soundset works on datasets laid out as root folders of class " +
			"directories holding WAV recordings. Roots come from the arguments " +
			"or SOUNDSET_ROOTS; flags override environment configuration.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	flags := rootCmd.PersistentFlags()
	flags.IntVarP(&ctx.workers, "workers", "w", 0, "Concurrent workers (0 uses every CPU) [WORKERS]")
	flags.StringVar(&ctx.ext, "ext", ".wav", "Audio file extension [AUDIO_EXT]")
	flags.StringVar(&ctx.logLevel, "log-level", "info", "Log level: debug, info, warn, error [LOG_LEVEL]")
	flags.StringVar(&ctx.logFormat, "log-format", "text", "Log format: text or json [LOG_FORMAT]")

	rootCmd.AddCommand(newBalanceCommand(ctx))
	rootCmd.AddCommand(newInventoryCommand(ctx))
	rootCmd.AddCommand(newTrimCommand(ctx))
	rootCmd.AddCommand(newFeaturesCommand(ctx))

	return rootCmd
}

// setup loads the environment configuration, applies the flags the user set
// and the positional roots, validates the result and installs the logger.
func (c *commandContext) setup(cmd *cobra.Command, args []string, apply func(*config.Config)) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = c.workers
	}
	if flags.Changed("ext") {
		cfg.AudioExt = c.ext
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = c.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = c.logFormat
	}
	if apply != nil {
		apply(cfg)
	}
	if len(args) > 0 {
		cfg.Roots = args
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := cfg.NewLoggerTo(c.stderr)
	slog.SetDefault(logger)
	logger.Debug("configuration loaded", slog.String("config", cfg.String()))
	return cfg, logger, nil
}
