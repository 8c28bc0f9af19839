package hooks

import (
	"fmt"
	"path/filepath"
)

// Record is the canonical form of one hook event, independent of source.
type Record struct {
	Source    Source
	EventKind string
	Workspace string
	Project   string
	TurnID    string
	Prompt    string
	Summary   string
	Actions   string
	Tags      []string
	Title     string
}

// Normalize builds the canonical record for ev. It does not check
// relevance; callers filter on EventKind first.
func Normalize(ex Extractor, ev Event) (Record, error) {
	kind := ex.EventKind(ev)

	workspace, err := resolveWorkspace(ex.Workspace(ev))
	if err != nil {
		return Record{}, err
	}
	project := projectName(workspace)
	turnID := ex.TurnID(ev, kind)
	prompt := ex.Prompt(ev)

	return Record{
		Source:    ex.Source(),
		EventKind: kind,
		Workspace: workspace,
		Project:   project,
		TurnID:    turnID,
		Prompt:    prompt,
		Summary:   ex.Summary(ev),
		Actions:   ex.Actions(kind),
		Tags:      append([]string(nil), ex.Tags()...),
		Title:     Title(fmt.Sprintf("%s Turn %s %s", ex.TitlePrefix(project), turnID, prompt)),
	}, nil
}

// resolveWorkspace makes raw absolute, defaulting to the current directory.
func resolveWorkspace(raw string) (string, error) {
	if raw == "" {
		raw = "."
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace %q: %w", raw, err)
	}
	return abs, nil
}

// projectName is the workspace directory name.
func projectName(workspace string) string {
	name := filepath.Base(workspace)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return fallbackProject
	}
	return name
}
