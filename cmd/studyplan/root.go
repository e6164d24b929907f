package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/conorfennell/studyplan/internal/config"
)

var errNoOwner = errors.New("--owner is required")

// newRootCmd builds the command tree. The returned cleanup releases whatever
// the invoked command opened.
func newRootCmd() (*cobra.Command, func()) {
	var current *app
	cleanup := func() {
		if current != nil {
			current.close()
		}
	}

	root := &cobra.Command{
		Use:           "studyplan",
		Short:         "Spaced-repetition study scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			current = a
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
	}

	config.RegisterFlags(root.PersistentFlags())
	root.PersistentFlags().String("owner", "", "learner whose items are read or changed")

	root.AddCommand(
		newAddCmd(),
		newReviewCmd(),
		newRescheduleCmd(),
		newSnoozeCmd(),
		newCompleteCmd(),
		newDueCmd(),
		newUpcomingCmd(),
		newStatsCmd(),
		newRankCmd(),
		newSourceCmd(),
		newSyncCmd(),
	)
	return root, cleanup
}

func owner(cmd *cobra.Command) (string, error) {
	o, _ := cmd.Flags().GetString("owner")
	if o == "" {
		return "", errNoOwner
	}
	return o, nil
}
