// Package vaulttest provides a filesystem-backed fake of the obsidian CLI
// for tests.
package vaulttest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/membank/internal/vault"
)

// Call is one recorded invocation.
type Call struct {
	Command string
	Params  map[string]string
	Flags   []string
}

// Program implements vault.Runner by applying create, append and read to
// files under the invocation directory. search does a case-insensitive
// substring scan; the audit commands answer with canned output.
type Program struct {
	mu        sync.Mutex
	calls     []Call
	failures  map[string]vault.Output
	responses map[string]string
}

var _ vault.Runner = (*Program)(nil)

// New returns an empty fake.
func New() *Program {
	return &Program{
		failures:  make(map[string]vault.Output),
		responses: make(map[string]string),
	}
}

// Fail makes every later call to command return out.
func (p *Program) Fail(command string, out vault.Output) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[command] = out
}

// Respond sets the stdout returned by command.
func (p *Program) Respond(command, stdout string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses[command] = stdout
}

// Calls returns every recorded call in order.
func (p *Program) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// CallsTo returns the recorded calls of one command.
func (p *Program) CallsTo(command string) []Call {
	var out []Call
	for _, c := range p.Calls() {
		if c.Command == command {
			out = append(out, c)
		}
	}
	return out
}

// Commands returns the command names of every recorded call in order.
func (p *Program) Commands() []string {
	calls := p.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Command
	}
	return out
}

// Run implements vault.Runner.
func (p *Program) Run(ctx context.Context, inv vault.Invocation) (vault.Output, error) {
	if err := ctx.Err(); err != nil {
		return vault.Output{}, err
	}
	if len(inv.Args) == 0 {
		return vault.Output{Stderr: "usage: obsidian <command>", ExitCode: 2}, nil
	}

	call := parseCall(inv.Args)
	p.mu.Lock()
	p.calls = append(p.calls, call)
	failure, failing := p.failures[call.Command]
	response, canned := p.responses[call.Command]
	p.mu.Unlock()

	if failing {
		return failure, nil
	}

	switch call.Command {
	case "create":
		return create(inv.Dir, call), nil
	case "append":
		return appendNote(inv.Dir, call), nil
	case "read":
		return read(inv.Dir, call), nil
	case "search":
		if canned {
			return vault.Output{Stdout: response}, nil
		}
		return search(inv.Dir, call), nil
	case "unresolved", "orphans", "deadends", "backlinks":
		if canned {
			return vault.Output{Stdout: response}, nil
		}
		return vault.Output{Stdout: "No results.\n"}, nil
	default:
		return vault.Output{Stderr: fmt.Sprintf("unknown command %q", call.Command), ExitCode: 1}, nil
	}
}

// NoteContent reads a note from a vault directory, failing the test when
// it is missing.
func NoteContent(tb interface {
	Helper()
	Fatalf(format string, args ...any)
}, vaultDir, notePath string) string {
	tb.Helper()
	data, err := os.ReadFile(filepath.Join(vaultDir, filepath.FromSlash(notePath)))
	if err != nil {
		tb.Fatalf("read note %s: %v", notePath, err)
	}
	return string(data)
}

func parseCall(args []string) Call {
	call := Call{Command: args[0], Params: make(map[string]string)}
	for _, arg := range args[1:] {
		if key, value, ok := strings.Cut(arg, "="); ok {
			call.Params[key] = value
			continue
		}
		call.Flags = append(call.Flags, arg)
	}
	return call
}

func create(dir string, call Call) vault.Output {
	full := filepath.Join(dir, filepath.FromSlash(call.Params["path"]))
	if _, err := os.Stat(full); err == nil {
		return vault.Output{Stdout: "Error: File already exists: " + call.Params["path"] + "\n"}
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return vault.Output{Stderr: err.Error(), ExitCode: 1}
	}
	if err := os.WriteFile(full, []byte(call.Params["content"]), 0o644); err != nil {
		return vault.Output{Stderr: err.Error(), ExitCode: 1}
	}
	if hasFlag(call, "silent") {
		return vault.Output{}
	}
	return vault.Output{Stdout: "Created " + call.Params["path"] + "\n"}
}

func appendNote(dir string, call Call) vault.Output {
	full := filepath.Join(dir, filepath.FromSlash(call.Params["path"]))
	existing, err := os.ReadFile(full)
	if err != nil {
		return vault.Output{Stdout: "Error: File not found: " + call.Params["path"] + "\n"}
	}
	var b strings.Builder
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		b.WriteString("\n")
	}
	b.WriteString(call.Params["content"])
	b.WriteString("\n")

	f, err := os.OpenFile(full, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return vault.Output{Stderr: err.Error(), ExitCode: 1}
	}
	defer f.Close()
	if _, err := f.WriteString(b.String()); err != nil {
		return vault.Output{Stderr: err.Error(), ExitCode: 1}
	}
	return vault.Output{}
}

func read(dir string, call Call) vault.Output {
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(call.Params["path"])))
	if err != nil {
		return vault.Output{Stdout: "Error: File not found: " + call.Params["path"] + "\n"}
	}
	return vault.Output{Stdout: string(data)}
}

// search treats a trailing path:"<dir>" term as a folder filter.
func search(dir string, call Call) vault.Output {
	query := call.Params["query"]
	scope := ""
	if i := strings.Index(query, ` path:"`); i >= 0 {
		scope = strings.TrimSuffix(query[i+len(` path:"`):], `"`)
		query = query[:i]
	}
	needle := strings.ToLower(strings.TrimSpace(query))

	root := filepath.Join(dir, filepath.FromSlash(scope))
	var matches []string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(p, ".md") {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil
		}
		if strings.Contains(strings.ToLower(string(data)), needle) {
			rel, _ := filepath.Rel(dir, p)
			matches = append(matches, filepath.ToSlash(rel))
		}
		return nil
	})
	if len(matches) == 0 {
		return vault.Output{Stdout: "No matches found.\n"}
	}
	sort.Strings(matches)
	return vault.Output{Stdout: strings.Join(matches, "\n") + "\n"}
}

func hasFlag(call Call, flag string) bool {
	for _, f := range call.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
