package notes

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const frontMatterDelimiter = "---"

// Note types recorded in front matter.
const (
	TypeProjectHome   = "project-home"
	TypeMOC           = "moc"
	TypeRunLog        = "run-log"
	TypeDecisions     = "decisions"
	TypeOpenQuestions = "open-questions"
	TypeRun           = "run"
)

// FrontMatter is the YAML metadata block at the top of every note.
type FrontMatter struct {
	Type    string   `yaml:"type" json:"type"`
	Project string   `yaml:"project" json:"project"`
	Created string   `yaml:"created" json:"created"`
	Updated string   `yaml:"updated" json:"updated"`
	Tags    []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Title   string   `yaml:"title,omitempty" json:"title,omitempty"`
	RunID   string   `yaml:"run_id,omitempty" json:"run_id,omitempty"`
}

// newFrontMatter stamps created and updated with now.
func newFrontMatter(noteType, project string, tags []string, now time.Time) FrontMatter {
	ts := now.Format(time.RFC3339)
	return FrontMatter{
		Type:    noteType,
		Project: project,
		Created: ts,
		Updated: ts,
		Tags:    tags,
	}
}

// Render encodes the block with every value double-quoted, delimiters included.
func (fm FrontMatter) Render() (string, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key string, value *yaml.Node) {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			value,
		)
	}
	quoted := func(s string) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Style: yaml.DoubleQuotedStyle, Tag: "!!str", Value: s}
	}

	add("type", quoted(fm.Type))
	add("project", quoted(fm.Project))
	add("created", quoted(fm.Created))
	add("updated", quoted(fm.Updated))
	if len(fm.Tags) > 0 {
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, tag := range fm.Tags {
			seq.Content = append(seq.Content, quoted(tag))
		}
		add("tags", seq)
	}
	if fm.Title != "" {
		add("title", quoted(fm.Title))
	}
	if fm.RunID != "" {
		add("run_id", quoted(fm.RunID))
	}

	var buf bytes.Buffer
	buf.WriteString(frontMatterDelimiter + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return "", fmt.Errorf("notes: encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("notes: encode front matter: %w", err)
	}
	buf.WriteString(frontMatterDelimiter)
	return buf.String(), nil
}

// ParseFrontMatter splits a note into its front matter and body.
func ParseFrontMatter(content string) (FrontMatter, string, error) {
	var fm FrontMatter
	if !strings.HasPrefix(content, frontMatterDelimiter) {
		return fm, content, fmt.Errorf("notes: missing front-matter delimiter")
	}
	rest := content[len(frontMatterDelimiter):]
	idx := strings.Index(rest, "\n"+frontMatterDelimiter)
	if idx == -1 {
		return fm, content, fmt.Errorf("notes: unclosed front-matter block")
	}
	block := rest[:idx]
	body := strings.TrimPrefix(rest[idx+len("\n"+frontMatterDelimiter):], "\n")
	body = strings.TrimPrefix(body, "\n")

	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return fm, body, fmt.Errorf("notes: front-matter parse error: %w", err)
	}
	return fm, body, nil
}
