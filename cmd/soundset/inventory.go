package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maauso/soundset/internal/inventory"
)

func newInventoryCommand(ctx *commandContext) *cobra.Command {
	var (
		out string
		all bool
	)

	cmd := &cobra.Command{
		Use:   "inventory [roots...]",
		Short: "Count audio files per directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := ctx.setup(cmd, args, nil)
			if err != nil {
				return err
			}

			ext := cfg.AudioExt
			if all {
				ext = ""
			}
			entries, err := inventory.Scan(cfg.Roots, ext)
			if err != nil {
				return err
			}

			w, closeOut, err := openOutput(ctx.stdout, out)
			if err != nil {
				return err
			}
			if err := inventory.WriteCSV(w, entries); err != nil {
				_ = closeOut()
				return fmt.Errorf("write inventory: %w", err)
			}
			return closeOut()
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&out, "out", "o", "-", "CSV output file, - for stdout")
	flags.BoolVar(&all, "all", false, "Count every regular file, not only audio files")
	return cmd
}
