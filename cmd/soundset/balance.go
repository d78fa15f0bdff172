package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maauso/soundset/internal/bootstrap"
	"github.com/maauso/soundset/internal/config"
	"github.com/maauso/soundset/internal/report"
)

// errDirectoriesFailed makes the process exit non-zero after the summary
// has already been printed.
var errDirectoriesFailed = errors.New("one or more directories failed")

func newBalanceCommand(ctx *commandContext) *cobra.Command {
	var (
		target       int
		seed         int64
		reportDir    string
		reportFormat string
		progress     bool
	)

	cmd := &cobra.Command{
		Use:   "balance [roots...]",
		Short: "Top every class directory up to a target file count",
		Long: "balance adds synthetic variants (speed, noise, pitch, echo) of the " +
			"existing recordings until each leaf directory holds --target files. " +
			"Directories already at or above the target are left untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.setup(cmd, args, func(cfg *config.Config) {
				flags := cmd.Flags()
				if flags.Changed("target") {
					cfg.TargetCount = target
				}
				if flags.Changed("seed") {
					cfg.Seed = seed
				}
				if flags.Changed("report") {
					cfg.ReportDir = reportDir
				}
				if flags.Changed("report-format") {
					cfg.ReportFormat = reportFormat
				}
			})
			if err != nil {
				return err
			}
			format, err := report.ParseFormat(cfg.ReportFormat)
			if err != nil {
				return err
			}

			opts := []bootstrap.Option{bootstrap.WithReportStorage()}
			if progress {
				opts = append(opts, bootstrap.WithProgress(ctx.stderr))
			}
			deps, err := bootstrap.NewDependencies(cfg, logger, opts...)
			if err != nil {
				return fmt.Errorf("initialize dependencies: %w", err)
			}

			r, err := deps.Jobs.Run(cmd.Context(), cfg.Roots)
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.stdout, r.Table())

			// Publish ignores cancellation so an interrupted run keeps its report.
			loc, err := report.Publish(cmd.Context(), deps.Store, r, format, cfg.S3Enabled())
			if loc.Path != "" {
				fmt.Fprintf(ctx.stdout, "report: %s\n", loc.Path)
			}
			if loc.URL != "" {
				fmt.Fprintf(ctx.stdout, "uploaded: %s\n", loc.URL)
			}
			if err != nil {
				logger.Error("failed to publish report", slog.String("error", err.Error()))
				return err
			}

			if r.HasFailures() {
				return errDirectoriesFailed
			}
			return cmd.Context().Err()
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&target, "target", "t", 1500, "Files wanted per directory [TARGET_COUNT]")
	flags.Int64Var(&seed, "seed", 0, "Random seed, 0 seeds from the clock [SEED]")
	flags.StringVar(&reportDir, "report", "reports", "Directory for the run report [REPORT_DIR]")
	flags.StringVar(&reportFormat, "report-format", "json", "Report format: json or yaml [REPORT_FORMAT]")
	flags.BoolVar(&progress, "progress", false, "Show a progress bar on stderr")

	return cmd
}
