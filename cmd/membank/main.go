// Package main implements the membank CLI, which keeps a per-project memory
// bank of run notes inside a note vault.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// version information
	version = "dev"

	// persistent flags
	configPath    string
	statePath     string
	workspacePath string
	dryRun        bool
	logLevel      string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "membank",
	Short: "Project memory bank for coding assistants",
	Long: `membank records coding-assistant runs as linked notes in a vault managed by
an external note program (obsidian by default).

Each workspace is bound to one vault. Projects get five seed notes (Home, MOC,
Run Log, Decisions, Open Questions); every recorded run adds a note under Runs/
and a line to the indexes.

Examples:
  # Bind the current directory to a vault
  membank set-vault --vault-path ~/Notes

  # Record a run
  membank record-run --project "Acme API" --title "Fix login" \
    --prompt "..." --summary "..." --actions "..."

  # Log a Claude Code hook event from stdin
  membank hook claude < event.json`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/membank/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "State file holding vault bindings and counters")
	rootCmd.PersistentFlags().StringVar(&workspacePath, "workspace", "", "Workspace path (defaults to current directory)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Describe vault commands instead of running them")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
}
