package vault_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/membank/internal/vault"
	"github.com/fyrsmithlabs/membank/internal/vault/vaulttest"
)

func newExecutor(t *testing.T, cfg vault.Config) (*vault.Executor, *vaulttest.Program, string) {
	t.Helper()
	dir := t.TempDir()
	program := vaulttest.New()
	return vault.New(dir, cfg, program, nil), program, dir
}

func TestEnsureNote_CreatesThenReportsExisted(t *testing.T) {
	exec, program, dir := newExecutor(t, vault.Config{})
	ctx := context.Background()

	outcome, _, err := exec.EnsureNote(ctx, "Project Memory/acme/MOC.md", "first")
	require.NoError(t, err)
	assert.Equal(t, vault.OutcomeCreated, outcome)

	outcome, _, err = exec.EnsureNote(ctx, "Project Memory/acme/MOC.md", "second")
	require.NoError(t, err)
	assert.Equal(t, vault.OutcomeExisted, outcome)

	assert.Equal(t, "first", vaulttest.NoteContent(t, dir, "Project Memory/acme/MOC.md"))
	assert.Len(t, program.CallsTo("create"), 1, "existence check must precede any write")

	create := program.CallsTo("create")[0]
	assert.Equal(t, "Project Memory/acme/MOC.md", create.Params["path"])
	assert.Equal(t, []string{"silent"}, create.Flags)
}

func TestAppendAndRead(t *testing.T) {
	exec, _, _ := newExecutor(t, vault.Config{})
	ctx := context.Background()

	_, _, err := exec.EnsureNote(ctx, "Run Log.md", "# Run Log")
	require.NoError(t, err)
	_, err = exec.Append(ctx, "Run Log.md", "- [[a]]: one")
	require.NoError(t, err)
	_, err = exec.Append(ctx, "Run Log.md", "- [[b]]: two")
	require.NoError(t, err)

	content, err := exec.Read(ctx, "Run Log.md")
	require.NoError(t, err)
	assert.Equal(t, "# Run Log\n- [[a]]: one\n- [[b]]: two", content)
}

func TestRun_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name string
		out  vault.Output
	}{
		{"non-zero exit", vault.Output{Stderr: "boom", ExitCode: 3}},
		{"error marker", vault.Output{Stdout: "Error: vault is not open\n"}},
		{"lowercase error marker", vault.Output{Stdout: "  error reading index"}},
		{"fail marker", vault.Output{Stdout: "FAILED to open note\nmore detail"}},
		{"error marker on stderr", vault.Output{Stderr: "Error: vault is not open\n"}},
		{"fail marker on stderr", vault.Output{Stdout: "done\n", Stderr: "  failed to write note"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, program, _ := newExecutor(t, vault.Config{})
			program.Fail("search", tt.out)

			_, err := exec.Run(context.Background(), "search", "query=x")
			require.Error(t, err)

			var execErr *vault.ExecError
			require.True(t, errors.As(err, &execErr))
			assert.Equal(t, "search", execErr.Command)
			assert.Equal(t, tt.out.ExitCode, execErr.ExitCode)
			assert.Equal(t, tt.out.Stdout, execErr.Stdout)
			assert.Equal(t, tt.out.Stderr, execErr.Stderr)
			assert.True(t, vault.IsExecError(err))
		})
	}
}

func TestRun_SuccessOutputIsNotMisclassified(t *testing.T) {
	exec, program, _ := newExecutor(t, vault.Config{})
	program.Respond("unresolved", "Terror Notes.md 2\nno errors here\n")

	out, err := exec.Run(context.Background(), "unresolved", "counts", "verbose")
	require.NoError(t, err)
	assert.Equal(t, "Terror Notes.md 2\nno errors here", out)
}

func TestReadMissingNoteIsExecError(t *testing.T) {
	exec, _, _ := newExecutor(t, vault.Config{})

	_, err := exec.Read(context.Background(), "missing.md")
	assert.True(t, vault.IsExecError(err))
}

func TestDryRun(t *testing.T) {
	exec, program, dir := newExecutor(t, vault.Config{Program: "obsidian", DryRun: true})
	ctx := context.Background()

	out, err := exec.Run(ctx, "search", `query=auth path:"Project Memory/acme"`)
	require.NoError(t, err)
	assert.Equal(t, `[dry-run] obsidian search query=auth path:"Project Memory/acme"`, out)

	outcome, line, err := exec.EnsureNote(ctx, "a.md", "content")
	require.NoError(t, err)
	assert.Equal(t, vault.OutcomeDryRun, outcome)
	assert.Equal(t, "[dry-run] obsidian create path=a.md content=content silent", line)

	line, err = exec.Append(ctx, "a.md", "line")
	require.NoError(t, err)
	assert.Equal(t, "[dry-run] obsidian append path=a.md content=line", line)

	assert.Empty(t, program.Calls())
	assert.NoFileExists(t, filepath.Join(dir, "a.md"))
	assert.True(t, exec.DryRun())
}

func TestDryRun_ExistingNoteStillReported(t *testing.T) {
	exec, _, dir := newExecutor(t, vault.Config{DryRun: true})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("x"), 0o644))

	outcome, line, err := exec.EnsureNote(context.Background(), "a.md", "y")
	require.NoError(t, err)
	assert.Equal(t, vault.OutcomeExisted, outcome)
	assert.Empty(t, line)
}

func TestNotePathValidation(t *testing.T) {
	exec, program, _ := newExecutor(t, vault.Config{})
	ctx := context.Background()

	_, _, err := exec.EnsureNote(ctx, "/etc/passwd", "x")
	assert.ErrorIs(t, err, vault.ErrAbsolutePath)

	_, err = exec.Append(ctx, "../outside.md", "x")
	assert.ErrorIs(t, err, vault.ErrPathTraversal)

	_, err = exec.Read(ctx, "notes/../../outside.md")
	assert.ErrorIs(t, err, vault.ErrPathTraversal)

	_, err = exec.Read(ctx, "  ")
	assert.ErrorIs(t, err, vault.ErrEmptyPath)

	assert.Empty(t, program.Calls())
}

func TestValidateNotePath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"Project Memory/acme/MOC.md", "Project Memory/acme/MOC.md", nil},
		{"./a//b.md", "a/b.md", nil},
		{"v1..2 notes.md", "v1..2 notes.md", nil},
		{"..", "", vault.ErrPathTraversal},
		{"/abs.md", "", vault.ErrAbsolutePath},
		{".", "", vault.ErrEmptyPath},
		{"", "", vault.ErrEmptyPath},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := vault.ValidateNotePath(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-obsidian")
	require.NoError(t, os.WriteFile(script, []byte(`#!/bin/sh
case "$1" in
  ok) echo "hello $2"; pwd ;;
  bad) echo "oops" >&2; exit 4 ;;
  slow) exec sleep 5 ;;
esac
`), 0o755))

	vaultDir := t.TempDir()
	exec := vault.New(vaultDir, vault.Config{Program: script, Timeout: 200 * time.Millisecond}, nil, nil)
	ctx := context.Background()

	out, err := exec.Run(ctx, "ok", "path=x.md")
	require.NoError(t, err)
	assert.Contains(t, out, "hello path=x.md")
	assert.Contains(t, out, filepath.Base(vaultDir), "runs inside the vault directory")

	_, err = exec.Run(ctx, "bad")
	var execErr *vault.ExecError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 4, execErr.ExitCode)
	assert.Contains(t, execErr.Stderr, "oops")

	_, err = exec.Run(ctx, "slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecRunner_ProgramNotFound(t *testing.T) {
	exec := vault.New(t.TempDir(), vault.Config{Program: "membank-no-such-program"}, nil, nil)

	_, err := exec.Run(context.Background(), "read", "path=a.md")
	assert.ErrorIs(t, err, vault.ErrProgramNotFound)
}

func TestDryRunLine(t *testing.T) {
	assert.Equal(t, "[dry-run] obsidian orphans", vault.DryRunLine("obsidian", "orphans"))
}
