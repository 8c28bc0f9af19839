package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(auditFrequencyCmd)
	rootCmd.AddCommand(resetCounterCmd)

	resetCounterCmd.Flags().StringVar(&project, "project", "", "Project display name (required)")
	_ = resetCounterCmd.MarkFlagRequired("project")
}

var auditFrequencyCmd = &cobra.Command{
	Use:   "audit-frequency [N]",
	Short: "Show or set how often runs trigger an audit",
	Long: `Without an argument, print the effective audit frequency. With N, audit
automatically after every N recorded runs; 0 disables auto-audit.

Examples:
  membank audit-frequency
  membank audit-frequency 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuditFrequency,
}

var resetCounterCmd = &cobra.Command{
	Use:   "reset-counter",
	Short: "Restart a project's run counter",
	Long: `Reset the run counter for a project in the current workspace. The next
recorded run counts as run 1 of a new audit cycle.

Examples:
  membank reset-counter --project "Acme API"`,
	Args: cobra.NoArgs,
	RunE: runResetCounter,
}

func runAuditFrequency(cmd *cobra.Command, args []string) error {
	var n int
	if len(args) == 1 {
		var err error
		n, err = strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("audit frequency must be a non-negative integer, got %q", args[0])
		}
	}

	return withApp(func(ctx context.Context, a *app) error {
		if len(args) == 1 {
			if err := a.svc.SetAuditFrequency(ctx, n); err != nil {
				return fmt.Errorf("failed to set audit frequency: %w", err)
			}
		}
		freq, err := a.svc.AuditFrequency(ctx)
		if err != nil {
			return err
		}
		if freq == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Auto-audit disabled")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Auto-audit every %d runs\n", freq)
		return nil
	})
}

func runResetCounter(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		if err := a.svc.ResetRunCounter(ctx, project, workspacePath); err != nil {
			return fmt.Errorf("failed to reset run counter: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Run counter reset for project: %s\n", project)
		return nil
	})
}
