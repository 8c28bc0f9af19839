package hooks

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// codexExtractor reads the Codex notify payload:
//
//	{"type": "agent-turn-complete", "turn-id": "...", "cwd": "...",
//	 "input-messages": [...], "last-assistant-message": "..."}
type codexExtractor struct{}

const codexTurnComplete = "agent-turn-complete"

func (codexExtractor) Source() Source                         { return SourceCodex }
func (codexExtractor) Unwrap(outer gjson.Result) gjson.Result { return outer }
func (codexExtractor) Webhook() bool                          { return false }
func (codexExtractor) Tags() []string                         { return []string{"codex", "auto-log"} }
func (codexExtractor) TitlePrefix(string) string              { return "Codex" }

func (codexExtractor) EventKind(ev Event) string {
	return stringAt(ev.Inner, "type")
}

func (codexExtractor) IsRelevant(kind string) bool {
	return kind == codexTurnComplete
}

// Prompt joins every input message. Entries are plain strings or objects
// whose content is flattened regardless of role.
func (codexExtractor) Prompt(ev Event) string {
	var parts []string
	for _, msg := range ev.Inner.Get("input-messages").Array() {
		var text string
		switch {
		case msg.Type == gjson.String:
			text = msg.Str
		case msg.IsObject():
			text = flatten(msg.Get("content"))
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	return capOr(strings.Join(parts, "\n\n"), PromptLimit, NoPrompt)
}

func (codexExtractor) Summary(ev Event) string {
	return capOr(firstOf(ev, field("last-assistant-message")), SummaryLimit, NoSummary)
}

func (codexExtractor) Workspace(ev Event) string {
	return firstOf(ev, field("cwd"))
}

func (codexExtractor) TurnID(ev Event, _ string) string {
	return firstOf(ev, idField("turn-id"), constant(UnknownTurn))
}

func (codexExtractor) Actions(string) string {
	return "Auto-captured from Codex notify hook on agent-turn-complete."
}

// claudeExtractor reads Claude Code hook payloads, keyed by hook_event_name.
type claudeExtractor struct{}

var claudeEvents = map[string]bool{
	"UserPromptSubmit": true,
	"PreToolUse":       true,
	"PostToolUse":      true,
	"Notification":     true,
	"Stop":             true,
	"SubagentStop":     true,
	"PreCompact":       true,
	"SessionStart":     true,
	"SessionEnd":       true,
}

var claudeMessages = messageShape{
	listKeys:    []string{"messages", "input", "chat"},
	roleKeys:    []string{"role"},
	contentKeys: []string{"content"},
}

func (claudeExtractor) Source() Source                         { return SourceClaude }
func (claudeExtractor) Unwrap(outer gjson.Result) gjson.Result { return outer }
func (claudeExtractor) Webhook() bool                          { return false }
func (claudeExtractor) Tags() []string                         { return []string{"claude", "auto-log"} }
func (claudeExtractor) TitlePrefix(project string) string      { return project }

func (claudeExtractor) EventKind(ev Event) string {
	return strings.TrimSpace(firstOf(ev, field("hook_event_name", "type", "event")))
}

func (claudeExtractor) IsRelevant(kind string) bool {
	return claudeEvents[kind]
}

func (claudeExtractor) Prompt(ev Event) string {
	return capOr(firstOf(ev,
		field("prompt", "user_prompt", "message", "input"),
		claudeMessages.byRole("user", "human"),
	), PromptLimit, NoPrompt)
}

func (claudeExtractor) Summary(ev Event) string {
	return capOr(firstOf(ev,
		field("last_assistant_message", "assistant", "response", "output", "tool_response"),
		func(ev Event) string {
			if tool := stringAt(ev.Inner, "tool_name"); tool != "" {
				return "Claude hook event for tool: " + tool
			}
			return ""
		},
		claudeMessages.byRole("assistant", "ai"),
	), SummaryLimit, NoSummary)
}

func (claudeExtractor) Workspace(ev Event) string {
	return firstOf(ev, field("cwd", "workspace", "project_path"))
}

// TurnID is synthesized as <session>:<event> since Claude payloads carry
// no turn id.
func (claudeExtractor) TurnID(ev Event, kind string) string {
	session := firstOf(ev, idField("session_id", "sessionId"), constant("unknown-session"))
	return session + ":" + kind
}

func (claudeExtractor) Actions(kind string) string {
	return fmt.Sprintf("Auto-captured from Claude Code hook event '%s'.", kind)
}

// cursorExtractor reads Cursor hook payloads.
type cursorExtractor struct{}

var cursorMessages = messageShape{
	listKeys:    []string{"messages", "chat_messages", "conversation", "transcript"},
	roleKeys:    []string{"role", "author"},
	contentKeys: []string{"content", "text"},
}

func (cursorExtractor) Source() Source                         { return SourceCursor }
func (cursorExtractor) Unwrap(outer gjson.Result) gjson.Result { return outer }
func (cursorExtractor) Webhook() bool                          { return false }
func (cursorExtractor) Tags() []string                         { return []string{"cursor", "auto-log"} }
func (cursorExtractor) TitlePrefix(project string) string      { return project }

func (cursorExtractor) EventKind(ev Event) string {
	return strings.ToLower(firstOf(ev, field("type", "event")))
}

// IsRelevant accepts untyped events and anything turn-shaped.
func (cursorExtractor) IsRelevant(kind string) bool {
	return kind == "" || containsAny(kind, turnTokens...)
}

func (cursorExtractor) Prompt(ev Event) string {
	return capOr(firstOf(ev,
		cursorMessages.byRole("user", "human"),
		field("prompt"),
	), PromptLimit, NoPrompt)
}

func (cursorExtractor) Summary(ev Event) string {
	return capOr(firstOf(ev,
		field("assistant_message", "last_assistant_message", "response", "output"),
		cursorMessages.byRole("assistant", "ai"),
	), SummaryLimit, NoSummary)
}

func (cursorExtractor) Workspace(ev Event) string {
	return firstOf(ev, field("workspace", "cwd", "project"))
}

func (cursorExtractor) TurnID(ev Event, _ string) string {
	return firstOf(ev, idField("turnId", "turn_id", "id"), constant(UnknownTurn))
}

func (cursorExtractor) Actions(string) string {
	return "Auto-captured from Cursor hook."
}

// antigravityExtractor reads Antigravity events delivered over a webhook.
// Runners may nest the event under data, event or payload.
type antigravityExtractor struct{}

var antigravityMessages = messageShape{
	listKeys:    []string{"messages", "conversation", "transcript", "turn"},
	roleKeys:    []string{"role", "author"},
	contentKeys: []string{"content", "text"},
}

func (antigravityExtractor) Source() Source                    { return SourceAntigravity }
func (antigravityExtractor) Webhook() bool                     { return true }
func (antigravityExtractor) Tags() []string                    { return []string{"antigravity", "auto-log"} }
func (antigravityExtractor) TitlePrefix(project string) string { return project }

func (antigravityExtractor) Unwrap(outer gjson.Result) gjson.Result {
	for _, key := range []string{"data", "event", "payload"} {
		if inner := outer.Get(key); inner.IsObject() {
			return inner
		}
	}
	return outer
}

func (antigravityExtractor) EventKind(ev Event) string {
	return strings.ToLower(firstOf(ev, field("type"), outerField("type"), field("event")))
}

func (antigravityExtractor) IsRelevant(kind string) bool {
	return kind == "" || containsAny(kind, turnTokens...)
}

func (antigravityExtractor) Prompt(ev Event) string {
	return capOr(firstOf(ev,
		antigravityMessages.byRole("user", "human"),
		field("prompt"),
	), PromptLimit, NoPrompt)
}

func (antigravityExtractor) Summary(ev Event) string {
	return capOr(firstOf(ev,
		field("assistant", "assistant_message", "last_assistant_message", "output", "response"),
		antigravityMessages.byRole("assistant", "ai"),
	), SummaryLimit, NoSummary)
}

func (antigravityExtractor) Workspace(ev Event) string {
	return firstOf(ev, field("cwd", "workspace"), outerField("cwd", "workspace"))
}

func (antigravityExtractor) TurnID(ev Event, _ string) string {
	return firstOf(ev,
		idField("turn_id", "turnId", "id"),
		outerIDField("id"),
		constant(UnknownTurn),
	)
}

func (antigravityExtractor) Actions(string) string {
	return "Auto-captured from Antigravity hook (best-effort schema support)."
}
