package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conorfennell/studyplan/internal/progress"
)

type statsOutput struct {
	progress.Stats
	Overdue int               `json:"overdue"`
	Buckets []progress.Bucket `json:"buckets,omitempty"`
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show completion progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			ownerID, err := owner(cmd)
			if err != nil {
				return err
			}
			asOf, err := timeFlag(cmd, "as-of", a.loc)
			if err != nil {
				return err
			}

			st, err := a.aggregator.CompletionStats(cmd.Context(), ownerID)
			if err != nil {
				return err
			}
			out := statsOutput{Stats: st}
			if out.Overdue, err = a.aggregator.OverdueCount(cmd.Context(), ownerID, asOf); err != nil {
				return err
			}

			if name, _ := cmd.Flags().GetString("granularity"); name != "" {
				g, err := progress.ParseGranularity(name)
				if err != nil {
					return err
				}
				if out.Buckets, err = a.aggregator.BucketedCompletion(cmd.Context(), ownerID, g); err != nil {
					return err
				}
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().String("as-of", "", "count overdue items at this time instead of now")
	cmd.Flags().String("granularity", "", "also bucket completion by day, week or month")
	return cmd
}

func newRankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Place the owner on a leaderboard read from a JSON score list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			ownerID, err := owner(cmd)
			if err != nil {
				return err
			}

			path, _ := cmd.Flags().GetString("scores")
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading scores: %w", err)
			}
			var scores []progress.Score
			if err := json.Unmarshal(data, &scores); err != nil {
				return fmt.Errorf("decoding scores: %w", err)
			}
			progress.SortScores(scores)

			return writeJSON(cmd.OutOrStdout(), a.aggregator.PercentileRank(ownerID, scores))
		},
	}
	cmd.Flags().String("scores", "", `JSON file of [{"owner_id": "...", "score": 0}]`)
	_ = cmd.MarkFlagRequired("scores")
	return cmd
}
