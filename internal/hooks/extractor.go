package hooks

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

// Source identifies the assistant that emitted a hook event.
type Source string

const (
	// SourceCodex is the Codex notify hook (JSON passed as an argument).
	SourceCodex Source = "codex"

	// SourceClaude is a Claude Code hook (JSON on stdin).
	SourceClaude Source = "claude"

	// SourceCursor is a Cursor hook.
	SourceCursor Source = "cursor"

	// SourceAntigravity is a webhook-delivered Antigravity event.
	SourceAntigravity Source = "antigravity"
)

// ParseSource maps a source name to a Source.
func ParseSource(name string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(name)))
	if _, err := ExtractorFor(s); err != nil {
		return "", err
	}
	return s, nil
}

// Extractor reads one source's payload schema. Every method is pure and
// tolerates missing or mistyped fields.
type Extractor interface {
	// Source names the schema.
	Source() Source

	// Unwrap returns the event body nested inside outer, or outer itself.
	Unwrap(outer gjson.Result) gjson.Result

	// EventKind returns the event name, or "" when the payload has none.
	EventKind(ev Event) string

	// IsRelevant reports whether events of kind should be logged.
	IsRelevant(kind string) bool

	// Prompt returns the user prompt, capped, or NoPrompt.
	Prompt(ev Event) string

	// Summary returns the assistant summary, capped, or NoSummary.
	Summary(ev Event) string

	// Workspace returns the raw workspace path, or "" when absent.
	Workspace(ev Event) string

	// TurnID identifies the turn; kind is the value EventKind returned.
	TurnID(ev Event, kind string) string

	// Actions describes how the run was captured.
	Actions(kind string) string

	// Tags are added to every run note from this source.
	Tags() []string

	// TitlePrefix starts the generated note title.
	TitlePrefix(project string) string

	// Webhook reports whether payloads arrive over a webhook and must be
	// signature-checked.
	Webhook() bool
}

// Registry maps sources to their extractors.
type Registry struct {
	mu         sync.RWMutex
	extractors map[Source]Extractor
}

// NewRegistry creates a registry holding extractors.
func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{extractors: make(map[Source]Extractor)}
	for _, ex := range extractors {
		r.Register(ex)
	}
	return r
}

// Register adds ex, replacing any extractor for the same source.
func (r *Registry) Register(ex Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[ex.Source()] = ex
}

// Get returns the extractor for source.
func (r *Registry) Get(source Source) (Extractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.extractors[source]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	return ex, nil
}

// Sources lists the registered sources in name order.
func (r *Registry) Sources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, 0, len(r.extractors))
	for s := range r.extractors {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var defaultRegistry = NewRegistry(
	codexExtractor{},
	claudeExtractor{},
	cursorExtractor{},
	antigravityExtractor{},
)

// DefaultRegistry returns the registry of built-in extractors.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// ExtractorFor returns the built-in extractor for source.
func ExtractorFor(source Source) (Extractor, error) {
	return defaultRegistry.Get(source)
}

// containsAny reports whether kind contains one of the turn-ish tokens.
func containsAny(kind string, tokens ...string) bool {
	for _, t := range tokens {
		if strings.Contains(kind, t) {
			return true
		}
	}
	return false
}

var turnTokens = []string{"turn", "message", "complete"}
