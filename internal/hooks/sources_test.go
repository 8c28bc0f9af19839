package hooks

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, ex Extractor, raw string) Event {
	t.Helper()
	ev, err := ParsePayload([]byte(raw))
	require.NoError(t, err)
	ev.Inner = ex.Unwrap(ev.Outer)
	return ev
}

func mustExtractor(t *testing.T, s Source) Extractor {
	t.Helper()
	ex, err := ExtractorFor(s)
	require.NoError(t, err)
	return ex
}

func TestParsePayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "object", raw: `{"a":1}`},
		{name: "object with whitespace", raw: "\n  {}\n"},
		{name: "empty", raw: "", wantErr: true},
		{name: "blank", raw: "   ", wantErr: true},
		{name: "invalid json", raw: `{"a":`, wantErr: true},
		{name: "array root", raw: `[1,2]`, wantErr: true},
		{name: "string root", raw: `"hi"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePayload([]byte(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedPayload)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseSource(t *testing.T) {
	s, err := ParseSource(" Claude ")
	require.NoError(t, err)
	assert.Equal(t, SourceClaude, s)

	_, err = ParseSource("emacs")
	assert.ErrorIs(t, err, ErrUnknownSource)

	assert.Equal(t,
		[]Source{SourceAntigravity, SourceClaude, SourceCodex, SourceCursor},
		DefaultRegistry().Sources())
}

func TestSentinelsWhenFieldsMissing(t *testing.T) {
	for _, s := range DefaultRegistry().Sources() {
		t.Run(string(s), func(t *testing.T) {
			ex := mustExtractor(t, s)
			ev := parse(t, ex, `{"unrelated": true, "messages": "not a list"}`)
			assert.Equal(t, NoPrompt, ex.Prompt(ev))
			assert.Equal(t, NoSummary, ex.Summary(ev))
		})
	}
}

func TestCapsPerSchema(t *testing.T) {
	long := strings.Repeat("word ", 1000)
	payloads := map[Source]string{
		SourceCodex:       `{"input-messages":["` + long + `"],"last-assistant-message":"` + long + `"}`,
		SourceClaude:      `{"prompt":"` + long + `","last_assistant_message":"` + long + `"}`,
		SourceCursor:      `{"prompt":"` + long + `","response":"` + long + `"}`,
		SourceAntigravity: `{"data":{"prompt":"` + long + `","assistant":"` + long + `"}}`,
	}

	for s, raw := range payloads {
		t.Run(string(s), func(t *testing.T) {
			ex := mustExtractor(t, s)
			ev := parse(t, ex, raw)

			prompt := ex.Prompt(ev)
			assert.Len(t, prompt, PromptLimit)
			assert.True(t, strings.HasSuffix(prompt, "..."))

			summary := ex.Summary(ev)
			assert.Len(t, summary, SummaryLimit)
			assert.True(t, strings.HasSuffix(summary, "..."))
		})
	}
}

func TestCodexExtractor(t *testing.T) {
	ex := mustExtractor(t, SourceCodex)
	ev := parse(t, ex, `{
		"type": "agent-turn-complete",
		"turn-id": "T1",
		"cwd": "/tmp/proj",
		"input-messages": ["first", {"role": "system", "content": [{"text": "second"}, "third"]}, 7],
		"last-assistant-message": "done"
	}`)

	kind := ex.EventKind(ev)
	assert.Equal(t, "agent-turn-complete", kind)
	assert.True(t, ex.IsRelevant(kind))
	assert.False(t, ex.IsRelevant("agent-turn-start"))
	assert.False(t, ex.IsRelevant(""))
	// Captured text is whitespace-collapsed.
	assert.Equal(t, "first second third", ex.Prompt(ev))
	assert.Equal(t, "done", ex.Summary(ev))
	assert.Equal(t, "/tmp/proj", ex.Workspace(ev))
	assert.Equal(t, "T1", ex.TurnID(ev, kind))
	assert.Equal(t, []string{"codex", "auto-log"}, ex.Tags())
	assert.False(t, ex.Webhook())

	empty := parse(t, ex, `{"type":"agent-turn-complete"}`)
	assert.Equal(t, UnknownTurn, ex.TurnID(empty, kind))
}

func TestClaudeExtractor(t *testing.T) {
	ex := mustExtractor(t, SourceClaude)

	t.Run("prompt submit", func(t *testing.T) {
		ev := parse(t, ex, `{
			"hook_event_name": "UserPromptSubmit",
			"session_id": "abc",
			"cwd": "/work/app",
			"prompt": "Refactor the cache"
		}`)
		kind := ex.EventKind(ev)
		assert.Equal(t, "UserPromptSubmit", kind)
		assert.True(t, ex.IsRelevant(kind))
		assert.Equal(t, "Refactor the cache", ex.Prompt(ev))
		assert.Equal(t, NoSummary, ex.Summary(ev))
		assert.Equal(t, "abc:UserPromptSubmit", ex.TurnID(ev, kind))
		assert.Equal(t, "/work/app", ex.Workspace(ev))
		assert.Equal(t, "Auto-captured from Claude Code hook event 'UserPromptSubmit'.", ex.Actions(kind))
	})

	t.Run("tool use falls back to tool name", func(t *testing.T) {
		ev := parse(t, ex, `{"hook_event_name":"PostToolUse","tool_name":"Bash","sessionId":42}`)
		kind := ex.EventKind(ev)
		assert.Equal(t, "Claude hook event for tool: Bash", ex.Summary(ev))
		assert.Equal(t, "42:PostToolUse", ex.TurnID(ev, kind))
	})

	t.Run("messages by role", func(t *testing.T) {
		ev := parse(t, ex, `{"type":"Stop","messages":[
			{"role":"user","content":"question"},
			{"role":"assistant","content":[{"text":"answer"}]},
			{"role":"Human","content":"follow up"}
		]}`)
		assert.Equal(t, "question follow up", ex.Prompt(ev))
		assert.Equal(t, "answer", ex.Summary(ev))
		assert.Equal(t, "unknown-session:Stop", ex.TurnID(ev, ex.EventKind(ev)))
	})

	t.Run("unknown event is irrelevant", func(t *testing.T) {
		assert.False(t, ex.IsRelevant("PermissionRequest"))
		assert.False(t, ex.IsRelevant(""))
	})
}

func TestCursorExtractor(t *testing.T) {
	ex := mustExtractor(t, SourceCursor)

	t.Run("mkv prompt", func(t *testing.T) {
		ev := parse(t, ex, `{"messages":[{"role":"user","content":"Add MKV audio copy fallback logs."}]}`)
		assert.True(t, ex.IsRelevant(ex.EventKind(ev)))
		assert.Contains(t, ex.Prompt(ev), "MKV audio copy")
		assert.Equal(t, UnknownTurn, ex.TurnID(ev, ""))
	})

	t.Run("alternate shape", func(t *testing.T) {
		ev := parse(t, ex, `{
			"event": "Turn-Complete",
			"turn_id": "c-9",
			"workspace": "/w",
			"transcript": [
				{"author": "user", "text": "hi"},
				{"author": "assistant", "content": "", "text": "hello"}
			]
		}`)
		kind := ex.EventKind(ev)
		assert.Equal(t, "turn-complete", kind)
		assert.True(t, ex.IsRelevant(kind))
		assert.Equal(t, "hi", ex.Prompt(ev))
		assert.Equal(t, "hello", ex.Summary(ev))
		assert.Equal(t, "c-9", ex.TurnID(ev, kind))
		assert.Equal(t, "/w", ex.Workspace(ev))
	})

	t.Run("relevance", func(t *testing.T) {
		assert.True(t, ex.IsRelevant("message.created"))
		assert.False(t, ex.IsRelevant("file-saved"))
	})
}

func TestAntigravityExtractor(t *testing.T) {
	ex := mustExtractor(t, SourceAntigravity)

	ev := parse(t, ex, `{
		"id": 77,
		"type": "turn.completed",
		"workspace": "/outer",
		"data": {
			"conversation": [
				{"role": "user", "content": "plan the release"},
				{"role": "ai", "content": "drafted the plan"}
			]
		}
	}`)
	kind := ex.EventKind(ev)
	assert.Equal(t, "turn.completed", kind)
	assert.True(t, ex.IsRelevant(kind))
	assert.Equal(t, "plan the release", ex.Prompt(ev))
	assert.Equal(t, "drafted the plan", ex.Summary(ev))
	assert.Equal(t, "/outer", ex.Workspace(ev))
	assert.Equal(t, "77", ex.TurnID(ev, kind))
	assert.True(t, ex.Webhook())

	inner := parse(t, ex, `{"event":{"type":"message","cwd":"/inner","turnId":"t-1"}}`)
	assert.Equal(t, "/inner", ex.Workspace(inner))
	assert.Equal(t, "t-1", ex.TurnID(inner, ex.EventKind(inner)))
}

func TestNormalize(t *testing.T) {
	ex := mustExtractor(t, SourceCodex)
	ev := parse(t, ex, `{"type":"agent-turn-complete","cwd":"/tmp/proj","input-messages":["do X"],"turn-id":"T1"}`)

	rec, err := Normalize(ex, ev)
	require.NoError(t, err)
	assert.Equal(t, SourceCodex, rec.Source)
	assert.Equal(t, filepath.FromSlash("/tmp/proj"), rec.Workspace)
	assert.Equal(t, "proj", rec.Project)
	assert.Equal(t, "T1", rec.TurnID)
	assert.Equal(t, "do X", rec.Prompt)
	assert.Equal(t, NoSummary, rec.Summary)
	assert.Equal(t, "Codex Turn T1 do X", rec.Title)
	assert.Equal(t, []string{"codex", "auto-log"}, rec.Tags)
}

func TestNormalize_DefaultsWorkspaceToCurrentDir(t *testing.T) {
	ex := mustExtractor(t, SourceCursor)
	ev := parse(t, ex, `{"prompt":"hello"}`)

	rec, err := Normalize(ex, ev)
	require.NoError(t, err)
	wd, err := filepath.Abs(".")
	require.NoError(t, err)
	assert.Equal(t, wd, rec.Workspace)
	assert.Equal(t, filepath.Base(wd), rec.Project)
	assert.Equal(t, filepath.Base(wd)+" Turn unknown-turn hello", rec.Title)
}
