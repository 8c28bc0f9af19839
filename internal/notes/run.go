package notes

import (
	"strings"
	"time"
)

const noneMarker = "None."

// RunNote is the content of one recorded run.
type RunNote struct {
	Project   string
	Title     string
	Prompt    string
	Summary   string
	Actions   string
	Decisions string
	Questions string
	Tags      []string
	RunID     string
	Created   time.Time
}

// RenderRunNote renders n as a run note linked into the project p.
// Front matter tags are the caller's tags followed by the project slug and
// "run", without duplicates.
func RenderRunNote(p Paths, n RunNote) (string, error) {
	title := strings.TrimSpace(n.Title)

	fm := newFrontMatter(TypeRun, strings.TrimSpace(n.Project), runTags(n.Tags, p.Slug), n.Created)
	fm.Title = title
	fm.RunID = n.RunID
	header, err := fm.Render()
	if err != nil {
		return "", err
	}

	body := []string{
		"# " + title,
		"",
		"Parent note: " + Link(p.Home),
		"MOC: " + Link(p.MOC),
		"Decision register: " + Link(p.Decisions),
		"Question log: " + Link(p.OpenQuestions),
		"",
		"## Prompt",
		strings.TrimSpace(n.Prompt),
		"",
		"## Summary",
		strings.TrimSpace(n.Summary),
		"",
		"## Actions Taken",
		strings.TrimSpace(n.Actions),
		"",
		"## Decisions",
		orNone(n.Decisions),
		"",
		"## Open Questions",
		orNone(n.Questions),
	}
	return compose(header, body), nil
}

func runTags(tags []string, slug string) []string {
	out := make([]string, 0, len(tags)+2)
	seen := make(map[string]bool, len(tags)+2)
	for _, tag := range append(append([]string{}, tags...), slug, TypeRun) {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func orNone(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return noneMarker
	}
	return s
}
