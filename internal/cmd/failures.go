package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/models"
	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/store"
)

// NewFailuresCommand creates the failures command group.
func NewFailuresCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "Inspect and resolve critical failures",
	}
	cmd.PersistentFlags().String("config", "", "Path to config file (default: .neuralaunch/config.yaml)")

	cmd.AddCommand(newFailuresListCommand())
	cmd.AddCommand(newFailuresResolveCommand())
	return cmd
}

func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, home, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return store.New(resolveStorePath(home, cfg.StorePath))
}

func newFailuresListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List critical failures",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			status, _ := cmd.Flags().GetString("status")
			failures, err := st.ListCriticalFailures(cmd.Context(), models.FailureStatus(status))
			if err != nil {
				return err
			}

			if len(failures) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no critical failures")
				return nil
			}
			for _, cf := range failures {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  [%s/%s]  task %s  %s\n",
					cf.ID, cf.Status, cf.Severity, cf.TaskID, cf.Title)
			}
			return nil
		},
	}
	cmd.Flags().String("status", "open", "Filter by status (open, in_review, resolved, dismissed; empty for all)")
	return cmd
}

func newFailuresResolveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <failure-id>",
		Short: "Resolve or dismiss a critical failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			dismiss, _ := cmd.Flags().GetBool("dismiss")
			requeue, _ := cmd.Flags().GetBool("requeue")
			note, _ := cmd.Flags().GetString("note")

			target := models.FailureResolved
			if dismiss {
				target = models.FailureDismissed
			}

			cf, err := st.GetCriticalFailure(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := st.ResolveCriticalFailure(cmd.Context(), cf.ID, target, note); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "failure %s -> %s\n", cf.ID, target)

			// Requeue sends the parked task back to pending so a resumed run
			// picks it up.
			if requeue {
				if err := st.ResetTaskForRetry(cmd.Context(), cf.TaskID, models.TaskNeedsReview, ""); err != nil {
					return fmt.Errorf("requeue task %s: %w", cf.TaskID, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "task %s requeued\n", cf.TaskID)
			}
			return nil
		},
	}
	cmd.Flags().Bool("dismiss", false, "Dismiss instead of resolve")
	cmd.Flags().Bool("requeue", false, "Send the task back to pending for a resumed run")
	cmd.Flags().String("note", "", "Resolution note")
	return cmd
}
