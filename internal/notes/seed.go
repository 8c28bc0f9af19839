package notes

import (
	"strings"
	"time"
)

// SeedNote is one of the five notes created when a project is bootstrapped.
type SeedNote struct {
	Path    string
	Content string
}

// BuildSeedNotes renders the seed notes for projectName in creation order:
// Home, MOC, Run Log, Decisions, Open Questions. Home links to the other
// four; each of them links back to Home.
func BuildSeedNotes(projectName string, p Paths, now time.Time) ([]SeedNote, error) {
	project := strings.TrimSpace(projectName)
	home := Stem(p.Home)
	parent := "Parent note: " + Link(p.Home)

	layouts := []struct {
		path     string
		noteType string
		tag      string
		body     []string
	}{
		{
			path:     p.Home,
			noteType: TypeProjectHome,
			tag:      "project-home",
			body: []string{
				"# " + home,
				"",
				"Primary hub for " + Link(p.MOC) + ", " + Link(p.RunLog) + ", " + Link(p.Decisions) + ", and " + Link(p.OpenQuestions) + ".",
				"",
				"## Active Focus",
				"- [ ] Add first execution summary",
				"",
				"## Knowledge Map",
				"- " + Link(p.MOC),
				"- " + Link(p.Decisions),
				"- " + Link(p.OpenQuestions),
				"- " + Link(p.RunLog),
				"",
				"## Retrieval Cues",
				"- Add stable keywords for high-value searches.",
			},
		},
		{
			path:     p.MOC,
			noteType: TypeMOC,
			tag:      "moc",
			body: []string{
				"# " + Stem(p.MOC),
				"",
				parent,
				"",
				"## Core Topics",
				"- [[Architecture]]",
				"- [[Roadmap]]",
				"- [[Debugging Notes]]",
				"- [[Release Notes]]",
				"",
				"## Working Sets",
				"- " + Link(p.Decisions),
				"- " + Link(p.OpenQuestions),
				"- " + Link(p.RunLog),
			},
		},
		{
			path:     p.RunLog,
			noteType: TypeRunLog,
			tag:      "runs",
			body: []string{
				"# " + Stem(p.RunLog),
				"",
				parent,
				"",
				"## Entries",
				"- Add run notes with timestamp and key outcomes.",
			},
		},
		{
			path:     p.Decisions,
			noteType: TypeDecisions,
			tag:      "decisions",
			body: []string{
				"# " + Stem(p.Decisions),
				"",
				parent,
				"",
				"## Decision Register",
				"- Record irreversible or expensive choices and rationale.",
			},
		},
		{
			path:     p.OpenQuestions,
			noteType: TypeOpenQuestions,
			tag:      "questions",
			body: []string{
				"# " + Stem(p.OpenQuestions),
				"",
				parent,
				"",
				"## Open Questions",
				"- Track unknowns that block confident execution.",
			},
		},
	}

	notes := make([]SeedNote, 0, len(layouts))
	for _, l := range layouts {
		fm, err := newFrontMatter(l.noteType, project, []string{l.tag, p.Slug}, now).Render()
		if err != nil {
			return nil, err
		}
		notes = append(notes, SeedNote{
			Path:    l.path,
			Content: compose(fm, l.body),
		})
	}
	return notes, nil
}

// compose joins front matter and body lines with a blank separator line.
func compose(frontMatter string, body []string) string {
	return frontMatter + "\n\n" + strings.Join(body, "\n") + "\n"
}
