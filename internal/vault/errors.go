package vault

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProgramNotFound indicates the vault program is not on PATH.
	ErrProgramNotFound = errors.New("vault program not found")

	// ErrAbsolutePath indicates a note path that is not vault-relative.
	ErrAbsolutePath = errors.New("note path must be relative to the vault")

	// ErrPathTraversal indicates a note path that escapes the vault.
	ErrPathTraversal = errors.New("note path escapes the vault")

	// ErrEmptyPath indicates a missing note path.
	ErrEmptyPath = errors.New("note path is empty")
)

// ExecError reports a failed invocation of the vault program. It carries
// the captured output for diagnostics.
type ExecError struct {
	Program  string
	Command  string
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

// Error implements error.
func (e *ExecError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s failed", e.Program, e.Command)
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if out := strings.TrimSpace(e.Stdout); out != "" {
		fmt.Fprintf(&b, "\nstdout:\n%s", out)
	}
	if out := strings.TrimSpace(e.Stderr); out != "" {
		fmt.Fprintf(&b, "\nstderr:\n%s", out)
	}
	return b.String()
}

// Unwrap returns the underlying process error, if any.
func (e *ExecError) Unwrap() error {
	return e.Err
}

// IsExecError reports whether err is or wraps an *ExecError.
func IsExecError(err error) bool {
	var execErr *ExecError
	return errors.As(err, &execErr)
}
