package main

import (
	"github.com/spf13/cobra"

	"github.com/conorfennell/studyplan/internal/domain"
	"github.com/conorfennell/studyplan/internal/schedule"
)

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a review item at stage 0",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			ownerID, err := owner(cmd)
			if err != nil {
				return err
			}
			at, err := timeFlag(cmd, "at", a.loc)
			if err != nil {
				return err
			}
			kind, _ := cmd.Flags().GetString("kind")
			subject, _ := cmd.Flags().GetString("subject")
			topic, _ := cmd.Flags().GetString("topic")

			item, err := a.store.Create(cmd.Context(), &domain.ReviewItem{
				OwnerID:      ownerID,
				Kind:         domain.Kind(kind),
				SubjectLabel: subject,
				TopicLabel:   topic,
				NextReviewAt: at,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), item)
		},
	}
	cmd.Flags().String("kind", string(domain.KindTopic), "flashcard, test_review, daily_challenge, topic or plan_task")
	cmd.Flags().String("subject", "", "subject label")
	cmd.Flags().String("topic", "", "topic label")
	cmd.Flags().String("at", "", "first review time, RFC3339 or YYYY-MM-DD (default now)")
	return cmd
}

func newReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review <item-id>",
		Short: "Record a review outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			ownerID, err := owner(cmd)
			if err != nil {
				return err
			}
			correct, _ := cmd.Flags().GetBool("correct")

			item, err := a.store.RecordOutcome(cmd.Context(), ownerID, args[0], correct)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), item)
		},
	}
	cmd.Flags().Bool("correct", true, "whether the answer was correct; --correct=false demotes the item")
	return cmd
}

func newRescheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reschedule <item-id>",
		Short: "Move the next review, keeping the stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			ownerID, err := owner(cmd)
			if err != nil {
				return err
			}

			name, _ := cmd.Flags().GetString("option")
			opt, err := schedule.ParseOption(name)
			if err != nil {
				return err
			}
			req := schedule.Request{Option: opt}
			if opt == schedule.Custom {
				date, _ := cmd.Flags().GetString("date")
				if req.Date, err = parseTime(date, a.loc); err != nil {
					return err
				}
			}

			item, err := a.store.ApplyOverride(cmd.Context(), ownerID, args[0], req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), item)
		},
	}
	cmd.Flags().String("option", string(schedule.Tomorrow), "tomorrow, in_7_days, in_30_days or custom")
	cmd.Flags().String("date", "", "target time for the custom option, RFC3339 or YYYY-MM-DD")
	return cmd
}

func newSnoozeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snooze <item-id>",
		Short: "Push the item to later today or tomorrow and restart its curve",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			ownerID, err := owner(cmd)
			if err != nil {
				return err
			}

			until, _ := cmd.Flags().GetString("until")
			opt := schedule.QuickTomorrow
			switch until {
			case "tomorrow":
			case "today":
				opt = schedule.QuickToday
			default:
				return &domain.ValidationError{Field: "until", Reason: "must be today or tomorrow"}
			}

			item, err := a.store.ApplyOverride(cmd.Context(), ownerID, args[0], schedule.Request{Option: opt})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), item)
		},
	}
	cmd.Flags().String("until", "tomorrow", "today (end of day) or tomorrow (noon)")
	return cmd
}

func newCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <item-id>",
		Short: "Retire an item from scheduling",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			ownerID, err := owner(cmd)
			if err != nil {
				return err
			}
			item, err := a.store.MarkCompleted(cmd.Context(), ownerID, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), item)
		},
	}
}

func newDueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "due",
		Short: "List items due now, earliest first",
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
			items, err := a.store.ListDue(cmd.Context(), ownerID, asOf)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), nonNil(items))
		},
	}
	cmd.Flags().String("as-of", "", "evaluate at this time instead of now")
	return cmd
}

func newUpcomingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List items not yet due, earliest first",
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
			items, err := a.store.ListUpcoming(cmd.Context(), ownerID, asOf)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), nonNil(items))
		},
	}
	cmd.Flags().String("as-of", "", "evaluate at this time instead of now")
	return cmd
}

// nonNil makes empty lists print as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
