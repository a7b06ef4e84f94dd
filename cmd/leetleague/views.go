package main

import (
	"fmt"
	"io"

	"github.com/leetleague/leetleague/pkg/dashboard"
	"github.com/spf13/cobra"
)

func newLeaderboardCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show today's leaderboard through the proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, load, func(s *session) error {
				board, err := s.dash.Leaderboard(cmd.Context())
				if err != nil {
					return err
				}
				printLeaderboard(cmd.OutOrStdout(), board)
				return nil
			})
		},
	}
}

func newFeedCmd(load loader) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show friends' recent accepted submissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if page < 1 {
				return fmt.Errorf("--page must be at least 1, got %d", page)
			}
			return withSession(cmd, load, func(s *session) error {
				feed, err := s.dash.ActivityFeed(cmd.Context(), page)
				if err != nil {
					return err
				}
				printFeed(cmd.OutOrStdout(), feed)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	return cmd
}

func printLeaderboard(out io.Writer, board []dashboard.LeaderboardEntry) {
	if len(board) == 0 {
		fmt.Fprintln(out, "No activity today.")
		return
	}
	for i, e := range board {
		fmt.Fprintf(out, "%3d. %-24s %d\n", i+1, e.Username, e.SolvedToday)
	}
}

func printFeed(out io.Writer, feed dashboard.FeedPage) {
	if feed.Total == 0 {
		fmt.Fprintln(out, "No recent submissions.")
		return
	}
	for _, a := range feed.Items {
		difficulty := a.Difficulty
		if difficulty == "" {
			difficulty = "-"
		}
		fmt.Fprintf(out, "%s  %-20s %-6s %s\n", a.Timestamp.Format("2006-01-02 15:04"), a.Username, difficulty, a.ProblemTitle)
	}
	fmt.Fprintf(out, "Page %d of %d (%d submissions)\n", feed.Page, feed.TotalPages, feed.Total)
}
