package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maauso/soundset/internal/bootstrap"
	"github.com/maauso/soundset/internal/features"
)

func newFeaturesCommand(ctx *commandContext) *cobra.Command {
	var (
		out     string
		exclude []string
	)

	cmd := &cobra.Command{
		Use:   "features [roots...]",
		Short: "Export acoustic features of every recording as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.setup(cmd, args, nil)
			if err != nil {
				return err
			}
			deps, err := bootstrap.NewDependencies(cfg, logger, bootstrap.WithExclude(exclude))
			if err != nil {
				return fmt.Errorf("initialize dependencies: %w", err)
			}

			res, err := deps.Extractor.Extract(cmd.Context(), cfg.Roots)
			if err != nil {
				return err
			}

			w, closeOut, err := openOutput(ctx.stdout, out)
			if err != nil {
				return err
			}
			if err := features.WriteCSV(w, res.Rows); err != nil {
				_ = closeOut()
				return fmt.Errorf("write features: %w", err)
			}
			return closeOut()
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&out, "out", "o", "-", "CSV output file, - for stdout")
	flags.StringSliceVar(&exclude, "exclude", nil, "Subdirectories, relative to each root, to leave out")
	return cmd
}
