package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maauso/soundset/internal/bootstrap"
)

func newTrimCommand(ctx *commandContext) *cobra.Command {
	var deleteOriginals bool

	cmd := &cobra.Command{
		Use:   "trim [roots...]",
		Short: "Cut labelled segments listed in CSV tables",
		Long: "trim reads every CSV table (name,start_sec,end_sec) under the roots " +
			"and writes each segment next to its recording as {base}_{n}.wav. " +
			"Segments that already exist are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.setup(cmd, args, nil)
			if err != nil {
				return err
			}
			deps, err := bootstrap.NewDependencies(cfg, logger, bootstrap.WithDeleteOriginals(deleteOriginals))
			if err != nil {
				return fmt.Errorf("initialize dependencies: %w", err)
			}

			res, err := deps.Trimmer.Run(cmd.Context(), cfg.Roots)
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.stdout, "tables: %d, created: %d, existing: %d, missing: %d, deleted: %d, errors: %d\n",
				res.Tables, len(res.Created), res.Existing, len(res.Missing), len(res.Deleted), len(res.Errors))
			return nil
		},
	}

	cmd.Flags().BoolVar(&deleteOriginals, "delete-originals", false, "Delete trimmed recordings once every table is processed")
	return cmd
}
