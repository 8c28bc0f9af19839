package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/membank/internal/memorybank"
	"github.com/fyrsmithlabs/membank/internal/notes"
)

var (
	// shared by the project-scoped commands
	project string

	// record-run flags
	rrTitle     string
	rrPrompt    string
	rrSummary   string
	rrActions   string
	rrDecisions string
	rrQuestions string
	rrTags      string

	// search flags
	searchQuery string

	// read-note flags
	readPath string
	readMeta bool
)

func init() {
	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(recordRunCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(readNoteCmd)
	rootCmd.AddCommand(auditCmd)

	for _, c := range []*cobra.Command{bootstrapCmd, recordRunCmd, searchCmd, auditCmd} {
		c.Flags().StringVar(&project, "project", "", "Project display name (required)")
		_ = c.MarkFlagRequired("project")
	}

	recordRunCmd.Flags().StringVar(&rrTitle, "title", "", "Run note title (required)")
	recordRunCmd.Flags().StringVar(&rrPrompt, "prompt", "", "Prompt summary (required)")
	recordRunCmd.Flags().StringVar(&rrSummary, "summary", "", "Run summary (required)")
	recordRunCmd.Flags().StringVar(&rrActions, "actions", "", "Actions taken (required)")
	recordRunCmd.Flags().StringVar(&rrDecisions, "decisions", "", "Decision summary")
	recordRunCmd.Flags().StringVar(&rrQuestions, "questions", "", "Open questions summary")
	recordRunCmd.Flags().StringVar(&rrTags, "tags", "", "Comma-separated tags")
	for _, name := range []string{"title", "prompt", "summary", "actions"} {
		_ = recordRunCmd.MarkFlagRequired(name)
	}

	searchCmd.Flags().StringVar(&searchQuery, "query", "", "Search query (required)")
	_ = searchCmd.MarkFlagRequired("query")

	readNoteCmd.Flags().StringVar(&readPath, "path", "", "Note path relative to the vault root (required)")
	readNoteCmd.Flags().BoolVar(&readMeta, "meta", false, "Print the note's front matter as JSON")
	_ = readNoteCmd.MarkFlagRequired("path")
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the seed notes for a project",
	Long: `Create any missing seed notes (Home, MOC, Run Log, Decisions, Open Questions)
for a project. Existing notes are never overwritten.

Examples:
  membank bootstrap --project "Acme API"`,
	Args: cobra.NoArgs,
	RunE: runBootstrap,
}

var recordRunCmd = &cobra.Command{
	Use:   "record-run",
	Short: "Record a run note and update the indexes",
	Long: `Create a run note under Runs/ and append a line to the Run Log (and to
Decisions and Open Questions when given). Every N runs an audit runs
automatically; see audit-frequency.

Examples:
  membank record-run --project "Acme API" \
    --title "Fix login redirect" \
    --prompt "Users bounce back to /login" \
    --summary "Preserved return_to across the OAuth hop" \
    --actions "Patched the callback handler" \
    --decisions "Keep return_to in the session" \
    --tags auth,backend`,
	Args: cobra.NoArgs,
	RunE: runRecordRun,
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search a project's notes",
	Long: `Search the vault, scoped to the project's folder.

Examples:
  membank search --project "Acme API" --query "return_to"`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

var readNoteCmd = &cobra.Command{
	Use:   "read-note",
	Short: "Print one note",
	Long: `Print a note by its vault-relative path. With --meta only the parsed
front matter is printed, as JSON.

Examples:
  membank read-note --path "Project Memory/acme-api/Run Log.md"
  membank read-note --path "Project Memory/acme-api/MOC.md" --meta`,
	Args: cobra.NoArgs,
	RunE: runReadNote,
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check a project's note graph",
	Long: `Run the graph-integrity checks (unresolved links, orphans, dead ends and
backlinks to the project's Home note) and print one section per check.

Examples:
  membank audit --project "Acme API"`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		vaultPath, err := a.svc.ShowVault(ctx, workspacePath)
		if err != nil {
			return noVaultHint(err)
		}
		results, err := a.svc.Bootstrap(ctx, project, workspacePath)
		if err != nil {
			return noVaultHint(err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Bootstrapping project memory in vault: %s\n", vaultPath)
		for _, r := range results {
			if r.DryRun != "" {
				fmt.Fprintf(out, "- %s: %s\n", r.Path, r.DryRun)
				continue
			}
			fmt.Fprintf(out, "- %s: %s\n", r.Path, r.Outcome)
		}
		return nil
	})
}

func runRecordRun(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		res, err := a.svc.RecordRun(ctx, &memorybank.RunRequest{
			Project:   project,
			Workspace: workspacePath,
			Title:     rrTitle,
			Prompt:    rrPrompt,
			Summary:   rrSummary,
			Actions:   rrActions,
			Decisions: rrDecisions,
			Questions: rrQuestions,
			Tags:      notes.ParseTags(rrTags),
		})
		if err != nil {
			return noVaultHint(err)
		}

		out := cmd.OutOrStdout()
		if len(res.DryRun) > 0 {
			fmt.Fprintf(out, "Dry run, would record run note: %s\n", res.NotePath)
			for _, line := range res.DryRun {
				fmt.Fprintln(out, line)
			}
			return nil
		}
		fmt.Fprintf(out, "Recorded run note: %s\n", res.NotePath)
		for _, p := range res.IndexFailures {
			fmt.Fprintf(out, "Warning: could not update index %s\n", p)
		}
		if res.Audit != nil {
			fmt.Fprintf(out, "\nAuto-audit after run %d:\n\n", res.Counter)
			fmt.Fprint(out, res.Audit.Render())
		}
		return nil
	})
}

func runSearch(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		output, err := a.svc.Search(ctx, project, workspacePath, searchQuery)
		if err != nil {
			return noVaultHint(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), output)
		return nil
	})
}

func runReadNote(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		content, err := a.svc.ReadNote(ctx, workspacePath, readPath)
		if err != nil {
			return noVaultHint(err)
		}
		if !readMeta {
			fmt.Fprintln(cmd.OutOrStdout(), content)
			return nil
		}

		fm, _, err := notes.ParseFrontMatter(strings.TrimLeft(content, "\n"))
		if err != nil {
			return fmt.Errorf("failed to read front matter of %s: %w", readPath, err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(fm)
	})
}

func runAudit(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		report, err := a.svc.Audit(ctx, project, workspacePath)
		if report != nil {
			fmt.Fprint(cmd.OutOrStdout(), report.Render())
		}
		if err != nil {
			return fmt.Errorf("audit incomplete: %w", noVaultHint(err))
		}
		return nil
	})
}
