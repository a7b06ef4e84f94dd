// Command leetleague runs the LeetCode friends tracker: the GraphQL proxy,
// dashboard and catalog server, plus CLI access to the friend list.
package main

import (
	"fmt"
	"os"

	"github.com/leetleague/leetleague/pkg/config"
	"github.com/leetleague/leetleague/pkg/logging"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "leetleague",
		Short:         "LeetLeague: track your friends' LeetCode progress",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults plus environment when empty)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		logging.Setup(cfg.LoggingConfig())
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newFriendsCmd(load),
		newLeaderboardCmd(load),
		newFeedCmd(load),
		newCatalogCmd(),
	)
	return root
}

// loader returns the validated configuration for a command run.
type loader func() (*config.Config, error)
