package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	// set-vault flags
	svVaultPath string

	// show-vault flags
	showAll bool
)

func init() {
	rootCmd.AddCommand(setVaultCmd)
	rootCmd.AddCommand(showVaultCmd)

	setVaultCmd.Flags().StringVar(&svVaultPath, "vault-path", "", "Absolute path to an existing vault (required)")
	_ = setVaultCmd.MarkFlagRequired("vault-path")

	showVaultCmd.Flags().BoolVar(&showAll, "all", false, "List the default vault and every workspace binding")
}

var setVaultCmd = &cobra.Command{
	Use:   "set-vault",
	Short: "Bind a workspace to a vault",
	Long: `Bind a workspace (the current directory unless --workspace is given) to a
vault directory. Re-binding a workspace replaces its vault. The first vault
ever bound also becomes the default for unbound workspaces.

Examples:
  # Bind the current directory
  membank set-vault --vault-path ~/Notes

  # Bind another workspace
  membank set-vault --vault-path ~/Notes --workspace ~/src/acme-api`,
	Args: cobra.NoArgs,
	RunE: runSetVault,
}

var showVaultCmd = &cobra.Command{
	Use:   "show-vault",
	Short: "Show the vault for a workspace",
	Long: `Print the vault that backs a workspace. The nearest bound ancestor of the
workspace wins, then the default vault.

Examples:
  # Vault for the current directory
  membank show-vault

  # Every binding
  membank show-vault --all`,
	Args: cobra.NoArgs,
	RunE: runShowVault,
}

func runSetVault(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		binding, err := a.svc.SetVault(ctx, svVaultPath, workspacePath)
		if err != nil {
			return fmt.Errorf("failed to set vault: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved vault: %s for workspace: %s\n", binding.Vault, binding.Workspace)
		return nil
	})
}

func runShowVault(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		if showAll {
			summary, err := a.svc.Vaults(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			def := summary.Default
			if def == "" {
				def = "(none)"
			}
			fmt.Fprintf(w, "default\t%s\n", def)
			for _, b := range summary.Bindings {
				fmt.Fprintf(w, "%s\t%s\n", b.Workspace, b.Vault)
			}
			return w.Flush()
		}

		vaultPath, err := a.svc.ShowVault(ctx, workspacePath)
		if err != nil {
			return noVaultHint(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), vaultPath)
		return nil
	})
}
