package memorybank

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/membank/internal/state"
	"github.com/fyrsmithlabs/membank/internal/vault"
)

// Store is the persisted state the service reads and updates.
// *state.Store implements it.
type Store interface {
	ResolveVault(workspace string) (string, error)
	BindVault(vaultPath, workspace string) (state.Binding, error)
	DefaultVault() (string, error)
	Bindings() ([]state.Binding, error)
	AuditFrequency() (int, bool, error)
	SetAuditFrequency(n int) error
	BumpRunCounter(workspace, slug string) (int, error)
	ResetRunCounter(workspace, slug string) error
	RunCounter(workspace, slug string) (int, error)
}

// Executor issues note operations against one vault.
// *vault.Executor implements it.
type Executor interface {
	Run(ctx context.Context, command string, args ...string) (string, error)
	EnsureNote(ctx context.Context, notePath, content string) (vault.Outcome, string, error)
	Append(ctx context.Context, notePath, content string) (string, error)
	Read(ctx context.Context, notePath string) (string, error)
	DryRun() bool
}

// ExecutorFactory returns the executor for a resolved vault path.
type ExecutorFactory func(vaultPath string) Executor

// SeedResult reports what happened to one seed note.
type SeedResult struct {
	Path    string
	Outcome vault.Outcome

	// DryRun is the create command that would have run, in dry-run mode.
	DryRun string
}

// RunRequest describes one run to record.
type RunRequest struct {
	Project   string
	Workspace string
	Title     string
	Prompt    string
	Summary   string
	Actions   string
	Decisions string
	Questions string
	Tags      []string

	// Source names the hook that produced the run, if any.
	Source string
}

// RunResult reports the outcome of RecordRun.
type RunResult struct {
	Vault    string
	NotePath string
	Outcome  vault.Outcome
	RunID    string

	// Counter is the run counter after this run; zero in dry-run mode.
	Counter int

	// Audit is set when this run triggered an auto-audit that completed.
	Audit *AuditReport

	// Redacted counts secrets removed from the captured text.
	Redacted int

	// IndexFailures lists index notes that could not be appended to.
	IndexFailures []string

	// DryRun lists the commands that would have run, in order.
	DryRun []string
}

// AuditCheck is the output of one graph-integrity command.
type AuditCheck struct {
	Name   string
	Args   []string
	Output string
	Err    error
}

// AuditReport collects the checks run against a project.
type AuditReport struct {
	Project string
	Vault   string
	Checks  []AuditCheck
}

// Failed reports whether any check failed.
func (r *AuditReport) Failed() bool {
	for _, c := range r.Checks {
		if c.Err != nil {
			return true
		}
	}
	return false
}

// Render formats the report as one "## <check>" section per check.
func (r *AuditReport) Render() string {
	var b strings.Builder
	for _, c := range r.Checks {
		fmt.Fprintf(&b, "## %s\n", c.Name)
		if c.Err != nil {
			fmt.Fprintf(&b, "check failed: %v\n", c.Err)
		} else {
			b.WriteString(c.Output)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// VaultSummary describes the configured vaults.
type VaultSummary struct {
	Default  string
	Bindings []state.Binding
}
