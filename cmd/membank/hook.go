package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/membank/internal/hooks"
)

func init() {
	rootCmd.AddCommand(hookCmd)
}

var hookCmd = &cobra.Command{
	Use:       "hook <codex|claude|cursor|antigravity> [payload]",
	Short:     "Log a coding-assistant hook event as a run note",
	ValidArgs: []string{"codex", "claude", "cursor", "antigravity"},
	Long: `Turn one hook event into a run note. The JSON payload is taken from the
argument when given (Codex notify passes it that way) and from stdin otherwise.

Workspaces without a vault binding are skipped silently. This command always
exits 0 so it never blocks the assistant; problems are logged to stderr.

Examples:
  # Codex: notify = ["membank", "hook", "codex"]
  membank hook codex '{"type":"agent-turn-complete", ...}'

  # Claude Code hook
  membank hook claude < event.json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runHook,
}

func runHook(cmd *cobra.Command, args []string) error {
	source, err := hooks.ParseSource(args[0])
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "[membank-hook] %v\n", err)
		return nil
	}

	var raw []byte
	if len(args) == 2 {
		raw = []byte(args[1])
	} else {
		raw, err = io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxHookPayload))
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "[membank-hook] failed to read stdin: %v\n", err)
			return nil
		}
	}

	err = withApp(func(ctx context.Context, a *app) error {
		a.hookHandler().Handle(ctx, raw, hooks.Options{Source: source})
		return nil
	})
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "[membank-hook] %v\n", err)
	}
	return nil
}

// maxHookPayload caps stdin reads, matching the webhook body limit.
const maxHookPayload = 1 << 20
