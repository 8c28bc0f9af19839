package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultProgram is the note program looked up on PATH.
	DefaultProgram = "obsidian"

	// DefaultTimeout bounds a single invocation.
	DefaultTimeout = 30 * time.Second

	dryRunPrefix = "[dry-run] "
)

// failureLine matches output whose first line reports an error even though
// the program exited zero.
var failureLine = regexp.MustCompile(`(?i)^\s*(error|fail)`)

// Outcome reports what EnsureNote did.
type Outcome string

const (
	// OutcomeCreated means the note did not exist and was created.
	OutcomeCreated Outcome = "created"

	// OutcomeExisted means the note was already present and left untouched.
	OutcomeExisted Outcome = "existed"

	// OutcomeDryRun means the note is missing and would have been created.
	OutcomeDryRun Outcome = "dry-run"
)

// Config configures an Executor.
type Config struct {
	// Program is the note program name or path (default: obsidian).
	Program string

	// Timeout bounds each invocation (default: 30s).
	Timeout time.Duration

	// DryRun makes every call return the command line it would have run.
	DryRun bool
}

// Executor issues commands to the note program for one vault.
type Executor struct {
	vaultPath string
	config    Config
	runner    Runner
	logger    *zap.Logger
}

// New creates an Executor for the vault at vaultPath. A nil runner uses
// ExecRunner and a nil logger discards output.
func New(vaultPath string, cfg Config, runner Runner, logger *zap.Logger) *Executor {
	if cfg.Program == "" {
		cfg.Program = DefaultProgram
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		vaultPath: vaultPath,
		config:    cfg,
		runner:    runner,
		logger:    logger.With(zap.String("vault", vaultPath)),
	}
}

// VaultPath returns the vault this executor operates on.
func (e *Executor) VaultPath() string {
	return e.vaultPath
}

// DryRun reports whether commands are only described.
func (e *Executor) DryRun() bool {
	return e.config.DryRun
}

// Run invokes command with args and returns the trimmed stdout.
func (e *Executor) Run(ctx context.Context, command string, args ...string) (string, error) {
	if e.config.DryRun {
		line := DryRunLine(e.config.Program, command, args...)
		e.logger.Info("dry run", zap.String("command", command), zap.String("line", line))
		return line, nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	start := time.Now()
	out, err := e.runner.Run(timeoutCtx, Invocation{
		Program: e.config.Program,
		Dir:     e.vaultPath,
		Args:    append([]string{command}, args...),
	})
	e.logger.Debug("vault command finished",
		zap.String("command", command),
		zap.Int("exit_code", out.ExitCode),
		zap.Duration("duration", time.Since(start)),
	)

	if err != nil {
		if errors.Is(err, ErrProgramNotFound) {
			return "", err
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("timed out after %v: %w", e.config.Timeout, err)
		}
		return "", e.execError(command, args, out, err)
	}
	if out.ExitCode != 0 ||
		failureLine.MatchString(firstLine(out.Stdout)) ||
		failureLine.MatchString(firstLine(out.Stderr)) {
		return "", e.execError(command, args, out, nil)
	}
	return strings.TrimSpace(out.Stdout), nil
}

// EnsureNote creates notePath with content unless it already exists. The
// existence check happens before any write, so an existing note is never
// overwritten. The returned string is the program output; in dry-run mode
// it is the description of the create command.
func (e *Executor) EnsureNote(ctx context.Context, notePath, content string) (Outcome, string, error) {
	clean, err := ValidateNotePath(notePath)
	if err != nil {
		return "", "", err
	}

	exists, err := e.exists(clean)
	if err != nil {
		return "", "", err
	}
	if exists {
		return OutcomeExisted, "", nil
	}

	out, err := e.Run(ctx, "create", "path="+clean, "content="+content, "silent")
	if err != nil {
		return "", "", err
	}
	if e.config.DryRun {
		return OutcomeDryRun, out, nil
	}
	return OutcomeCreated, out, nil
}

// Append adds content to the end of an existing note and returns the
// program output, which is the command description in dry-run mode.
func (e *Executor) Append(ctx context.Context, notePath, content string) (string, error) {
	clean, err := ValidateNotePath(notePath)
	if err != nil {
		return "", err
	}
	return e.Run(ctx, "append", "path="+clean, "content="+content)
}

// Read returns the content of a note.
func (e *Executor) Read(ctx context.Context, notePath string) (string, error) {
	clean, err := ValidateNotePath(notePath)
	if err != nil {
		return "", err
	}
	return e.Run(ctx, "read", "path="+clean)
}

func (e *Executor) exists(notePath string) (bool, error) {
	_, err := os.Stat(filepath.Join(e.vaultPath, filepath.FromSlash(notePath)))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat note %s: %w", notePath, err)
	}
}

func (e *Executor) execError(command string, args []string, out Output, err error) *ExecError {
	return &ExecError{
		Program:  e.config.Program,
		Command:  command,
		Args:     args,
		ExitCode: out.ExitCode,
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
		Err:      err,
	}
}

// DryRunLine renders the description returned in dry-run mode.
func DryRunLine(program, command string, args ...string) string {
	return dryRunPrefix + strings.Join(append([]string{program, command}, args...), " ")
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, " \t\r\n")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
