package notes

import (
	"path"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultProjectRoot is the vault folder holding every project.
	DefaultProjectRoot = "Project Memory"

	// RunTimestampLayout is the minute-granularity prefix of run note names.
	RunTimestampLayout = "2006-01-02-1504"

	fallbackSlug      = "project"
	fallbackRunSlug   = "run"
	fallbackHomeTitle = "Project Home"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases value, collapses every run of characters outside
// [a-z0-9] into a single hyphen and trims hyphens from both ends.
func Slugify(value string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "-")
	return strings.Trim(s, "-")
}

// Paths is the note layout of one project. All paths are vault-relative and
// slash-separated.
type Paths struct {
	Slug          string
	Dir           string
	Home          string
	MOC           string
	RunLog        string
	Decisions     string
	OpenQuestions string
	RunsDir       string
}

// BuildPaths computes the note layout for projectName under projectRoot.
// An empty projectRoot uses DefaultProjectRoot.
func BuildPaths(projectRoot, projectName string) Paths {
	if projectRoot == "" {
		projectRoot = DefaultProjectRoot
	}
	slug := Slugify(projectName)
	if slug == "" {
		slug = fallbackSlug
	}
	dir := path.Join(projectRoot, slug)

	homeTitle := strings.TrimSpace(strings.TrimSpace(projectName) + " Home")
	if homeTitle == "Home" {
		homeTitle = fallbackHomeTitle
	}

	return Paths{
		Slug:          slug,
		Dir:           dir,
		Home:          path.Join(dir, homeTitle+".md"),
		MOC:           path.Join(dir, "MOC.md"),
		RunLog:        path.Join(dir, "Run Log.md"),
		Decisions:     path.Join(dir, "Decisions.md"),
		OpenQuestions: path.Join(dir, "Open Questions.md"),
		RunsDir:       path.Join(dir, "Runs"),
	}
}

// Seeds returns the five seed note paths in creation order.
func (p Paths) Seeds() []string {
	return []string{p.Home, p.MOC, p.RunLog, p.Decisions, p.OpenQuestions}
}

// RunNotePath returns Runs/<timestamp>-<title slug>.md for a run recorded at now.
func (p Paths) RunNotePath(title string, now time.Time) string {
	slug := Slugify(title)
	if slug == "" {
		slug = fallbackRunSlug
	}
	return path.Join(p.RunsDir, now.Format(RunTimestampLayout)+"-"+slug+".md")
}

// Stem returns the note name used in wiki links: the base name without .md.
func Stem(notePath string) string {
	return strings.TrimSuffix(path.Base(notePath), ".md")
}

// Link renders a wiki link to notePath.
func Link(notePath string) string {
	return "[[" + Stem(notePath) + "]]"
}

// IndexLine renders an index entry pointing at a run note.
func IndexLine(runPath, text string) string {
	return "- " + Link(runPath) + ": " + strings.TrimSpace(text)
}

// ParseTags splits a comma-separated tag list, dropping empty entries.
func ParseTags(raw string) []string {
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
