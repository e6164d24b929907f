package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conorfennell/studyplan/internal/domain"
	"github.com/conorfennell/studyplan/internal/plan"
	"github.com/conorfennell/studyplan/internal/sync"
)

func newSourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage plan sources",
	}
	cmd.AddCommand(newSourceAddCmd(), newSourceListCmd(), newSourceRemoveCmd())
	return cmd
}

func newSourceAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <path-or-git-url>",
		Short: "Register a plan directory or git repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			ownerID, err := owner(cmd)
			if err != nil {
				return err
			}

			path := args[0]
			sourceType := domain.DetectSourceType(path)
			if t, _ := cmd.Flags().GetString("type"); t != "" {
				sourceType = domain.SourceType(t)
			}
			if sourceType != domain.SourceLocal && sourceType != domain.SourceGit {
				return &domain.ValidationError{Field: "type", Reason: "must be local or git"}
			}

			existing, err := a.db.FindSourceByPath(cmd.Context(), ownerID, path)
			if err != nil {
				return err
			}
			if existing != nil {
				return writeJSON(cmd.OutOrStdout(), existing)
			}

			id, err := a.db.InsertSource(cmd.Context(), ownerID, path, sourceType)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), domain.Source{ID: id, OwnerID: ownerID, Path: path, Type: sourceType})
		},
	}
	cmd.Flags().String("type", "", "local or git (detected from the path by default)")
	return cmd
}

func newSourceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List plan sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			ownerID, _ := cmd.Flags().GetString("owner")

			sources, err := a.db.GetAllSources(cmd.Context())
			if err != nil {
				return err
			}
			out := []domain.Source{}
			for _, s := range sources {
				if ownerID == "" || s.OwnerID == ownerID {
					out = append(out, s)
				}
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newSourceRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path-or-git-url>",
		Short: "Unregister a plan source; imported items stay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			ownerID, err := owner(cmd)
			if err != nil {
				return err
			}

			s, err := a.db.FindSourceByPath(cmd.Context(), ownerID, args[0])
			if err != nil {
				return err
			}
			if s == nil {
				return fmt.Errorf("no source %q for owner %s", args[0], ownerID)
			}
			if err := a.db.DeleteSource(cmd.Context(), s.ID); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), s)
		},
	}
}

// syncOutput is a Report with its errors rendered as text.
type syncOutput struct {
	sync.Report
	Errors []string `json:"errors,omitempty"`
}

func toOutput(r sync.Report) syncOutput {
	out := syncOutput{Report: r}
	for _, err := range r.Errors {
		out.Errors = append(out.Errors, err.Error())
	}
	return out
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror plan tasks into review items",
		Long: "Without flags every registered source of every owner is synced. " +
			"--owner limits the run to one owner; --plan reconciles a single file or directory for that owner.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			ownerID, _ := cmd.Flags().GetString("owner")
			planPath, _ := cmd.Flags().GetString("plan")

			switch {
			case planPath != "":
				if ownerID == "" {
					return errNoOwner
				}
				var prior []error
				tasks, err := parsePlan(planPath, a)
				if err != nil {
					prior = append(prior, err)
				}
				report, err := a.reconciler.Reconcile(cmd.Context(), ownerID, tasks, prior...)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), toOutput(report))

			case ownerID != "":
				report, err := a.runner.RunOwner(cmd.Context(), ownerID)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), toOutput(report))

			default:
				reports, err := a.runner.Run(cmd.Context())
				if err != nil {
					return err
				}
				out := make([]syncOutput, 0, len(reports))
				for _, r := range reports {
					out = append(out, toOutput(r))
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}
		},
	}
	cmd.Flags().String("plan", "", "reconcile this plan file or directory instead of the registered sources")
	return cmd
}

func parsePlan(path string, a *app) ([]domain.PlanTask, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return plan.ParseDir(path, a.loc)
	}
	return plan.ParseFile(path, a.loc)
}
