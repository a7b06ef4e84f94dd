package main

import (
	"context"
	"fmt"
	"io"

	"github.com/leetleague/leetleague/pkg/config"
	"github.com/leetleague/leetleague/pkg/dashboard"
	"github.com/leetleague/leetleague/pkg/friends"
	"github.com/leetleague/leetleague/pkg/logging"
	"github.com/leetleague/leetleague/pkg/requestcache"
	"github.com/leetleague/leetleague/pkg/upstream"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// session holds the store and the proxy-backed dashboard for one CLI run.
type session struct {
	store friends.Store
	dash  *dashboard.Service
	redis *redis.Client
}

func (s *session) Close() {
	s.store.Close()
	if s.redis != nil {
		s.redis.Close()
	}
}

// openSession opens the friend store and a dashboard that resolves through
// the proxy at upstream.proxy_url.
func openSession(ctx context.Context, cfg *config.Config) (*session, error) {
	s := &session{}
	if cfg.Friends.Backend == config.BackendRedis {
		client, err := connectRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.redis = client
	}

	store, err := openStore(cfg, s.redis)
	if err != nil {
		if s.redis != nil {
			s.redis.Close()
		}
		return nil, err
	}
	s.store = store

	transport, err := upstream.New(upstream.Config{
		URL:       cfg.Upstream.ProxyURL,
		UserAgent: cfg.Upstream.UserAgent,
		Timeout:   cfg.Upstream.Timeout,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("create proxy client: %w", err)
	}
	cache, err := requestcache.New(transport, requestcache.Config{
		Capacity: cfg.Cache.Capacity,
		TTL:      cfg.Cache.TTL,
	}, requestcache.WithLogger(logging.NewLogger("requestcache")))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("create request cache: %w", err)
	}
	s.dash = dashboard.NewService(cache, store, dashboard.WithLogger(logging.NewLogger("dashboard")))
	return s, nil
}

func newFriendsCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "friends",
		Short: "Manage the tracked friend list",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked friends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, load, func(s *session) error {
				names, err := s.store.List(cmd.Context())
				if err != nil {
					return err
				}
				printFriends(cmd.OutOrStdout(), names)
				return nil
			})
		},
	}

	var skipVerify bool
	addCmd := &cobra.Command{
		Use:   "add <username>...",
		Short: "Add friends, checking each exists on LeetCode",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, load, func(s *session) error {
				var verifier friends.Verifier
				if !skipVerify {
					verifier = s.dash
				}
				return addFriends(cmd.Context(), cmd.OutOrStdout(), s.store, verifier, args)
			})
		},
	}
	addCmd.Flags().BoolVar(&skipVerify, "no-verify", false, "skip the LeetCode existence check")

	removeCmd := &cobra.Command{
		Use:     "remove <username>...",
		Aliases: []string{"rm"},
		Short:   "Stop tracking friends",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, load, func(s *session) error {
				for _, name := range args {
					removed, err := s.store.Remove(cmd.Context(), name)
					if err != nil {
						return err
					}
					if removed {
						fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", name)
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "%s is not in your friends list\n", name)
					}
				}
				return nil
			})
		},
	}

	cmd.AddCommand(listCmd, addCmd, removeCmd)
	return cmd
}

func withSession(cmd *cobra.Command, load loader, fn func(*session) error) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	s, err := openSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

// addFriends adds each name, reporting per name; it fails on the first
// store or verification error.
func addFriends(ctx context.Context, out io.Writer, store friends.Store, verifier friends.Verifier, names []string) error {
	for _, raw := range names {
		name, err := friends.NormalizeUsername(raw)
		if err != nil {
			return err
		}

		if verifier != nil {
			exists, err := verifier.UserExists(ctx, name)
			if err != nil {
				return fmt.Errorf("verify %s: %w", name, err)
			}
			if !exists {
				fmt.Fprintf(out, "User %s not found on LeetCode\n", name)
				continue
			}
		}

		added, err := store.Add(ctx, name)
		if err != nil {
			return err
		}
		if added {
			fmt.Fprintf(out, "Added %s\n", name)
		} else {
			fmt.Fprintf(out, "%s is already in your friends list\n", name)
		}
	}
	return nil
}

func printFriends(out io.Writer, names []string) {
	if len(names) == 0 {
		fmt.Fprintln(out, "No friends tracked yet.")
		return
	}
	for i, name := range names {
		fmt.Fprintf(out, "%3d. %s\n", i+1, name)
	}
}
