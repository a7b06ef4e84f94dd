package main

import (
	"fmt"

	"github.com/leetleague/leetleague/pkg/catalog"
	"github.com/leetleague/leetleague/pkg/logging"
	"github.com/spf13/cobra"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the company question catalog",
	}

	var src, out string
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Generate the catalog from raw per-timeframe question lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.Setup(logging.DefaultConfig())
			stats, err := catalog.Build(src, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Companies: %d (skipped %d)\nQuestions: %d\nTopics:    %d\n",
				stats.Companies, stats.Skipped, stats.Questions, stats.Topics)
			return nil
		},
	}
	buildCmd.Flags().StringVar(&src, "src", "data/raw", "raw source directory")
	buildCmd.Flags().StringVar(&out, "out", "data", "output directory")

	cmd.AddCommand(buildCmd)
	return cmd
}
