package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// waitDelay bounds how long output pipes are drained after the process is
// killed on timeout.
const waitDelay = 2 * time.Second

// Invocation is one process launch of the vault program.
type Invocation struct {
	Program string
	Dir     string
	Args    []string
}

// Output is what the program printed and how it exited.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner launches the vault program. A non-zero exit is reported through
// Output.ExitCode; the returned error is reserved for failures to run at all.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Output, error)
}

// ExecRunner runs the program with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, inv Invocation) (Output, error) {
	path, err := exec.LookPath(inv.Program)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %s", ErrProgramNotFound, inv.Program)
	}

	cmd := exec.CommandContext(ctx, path, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, err
	}
	return out, nil
}
