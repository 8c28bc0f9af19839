package hooks

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Event is one parsed hook payload. Inner is the event body after the
// source's unwrapping; for most sources it is the same as Outer.
type Event struct {
	Raw   []byte
	Outer gjson.Result
	Inner gjson.Result
}

// ParsePayload validates raw as a JSON object. Anything else is an
// ErrMalformedPayload.
func ParsePayload(raw []byte) (Event, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Event{}, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}
	if !gjson.ValidBytes(trimmed) {
		return Event{}, fmt.Errorf("%w: invalid JSON", ErrMalformedPayload)
	}
	root := gjson.ParseBytes(trimmed)
	if !root.IsObject() {
		return Event{}, fmt.Errorf("%w: root is %s, not an object", ErrMalformedPayload, root.Type)
	}
	return Event{Raw: raw, Outer: root, Inner: root}, nil
}

// strategy extracts one candidate value from an event. An empty result
// means "try the next one".
type strategy func(ev Event) string

// firstOf returns the first non-blank strategy result.
func firstOf(ev Event, strategies ...strategy) string {
	for _, s := range strategies {
		if v := s(ev); strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// field reads the first non-blank string among keys of the inner payload.
func field(keys ...string) strategy {
	return func(ev Event) string {
		return stringAt(ev.Inner, keys...)
	}
}

// outerField reads the first non-blank string among keys of the outer payload.
func outerField(keys ...string) strategy {
	return func(ev Event) string {
		return stringAt(ev.Outer, keys...)
	}
}

// idField is field for identifiers, which some sources send as numbers.
func idField(keys ...string) strategy {
	return func(ev Event) string {
		return idAt(ev.Inner, keys...)
	}
}

func outerIDField(keys ...string) strategy {
	return func(ev Event) string {
		return idAt(ev.Outer, keys...)
	}
}

// constant always yields s.
func constant(s string) strategy {
	return func(Event) string { return s }
}

func stringAt(obj gjson.Result, keys ...string) string {
	for _, key := range keys {
		v := obj.Get(escapeKey(key))
		if v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
			return v.Str
		}
	}
	return ""
}

func idAt(obj gjson.Result, keys ...string) string {
	for _, key := range keys {
		v := obj.Get(escapeKey(key))
		switch v.Type {
		case gjson.String:
			if strings.TrimSpace(v.Str) != "" {
				return v.Str
			}
		case gjson.Number:
			return v.Raw
		}
	}
	return ""
}

// messageShape describes how a source lays out chat messages.
type messageShape struct {
	listKeys    []string
	roleKeys    []string
	contentKeys []string
}

// messages returns the object elements of the first list key holding any.
func (m messageShape) messages(obj gjson.Result) []gjson.Result {
	for _, key := range m.listKeys {
		v := obj.Get(escapeKey(key))
		if !v.IsArray() {
			continue
		}
		var out []gjson.Result
		for _, item := range v.Array() {
			if item.IsObject() {
				out = append(out, item)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func (m messageShape) role(msg gjson.Result) string {
	for _, key := range m.roleKeys {
		if v := msg.Get(escapeKey(key)); v.Exists() {
			return strings.ToLower(v.String())
		}
	}
	return ""
}

// content returns the first content key that flattens to non-empty text.
func (m messageShape) content(msg gjson.Result) string {
	for _, key := range m.contentKeys {
		if text := flatten(msg.Get(escapeKey(key))); text != "" {
			return text
		}
	}
	return ""
}

// byRole joins the content of inner-payload messages whose role is in
// roles, separated by blank lines.
func (m messageShape) byRole(roles ...string) strategy {
	return func(ev Event) string {
		var parts []string
		for _, msg := range m.messages(ev.Inner) {
			role := m.role(msg)
			for _, want := range roles {
				if role == want {
					if text := m.content(msg); strings.TrimSpace(text) != "" {
						parts = append(parts, text)
					}
					break
				}
			}
		}
		return strings.Join(parts, "\n\n")
	}
}

// flatten renders message content that is either a string or a list of
// strings and {"text": ...} fragments.
func flatten(content gjson.Result) string {
	switch {
	case content.Type == gjson.String:
		return content.Str
	case content.IsArray():
		var chunks []string
		for _, item := range content.Array() {
			switch {
			case item.Type == gjson.String:
				chunks = append(chunks, item.Str)
			case item.IsObject():
				if text := item.Get("text"); text.Type == gjson.String {
					chunks = append(chunks, text.Str)
				}
			}
		}
		return strings.Join(chunks, "\n")
	default:
		return ""
	}
}

var keyEscaper = strings.NewReplacer(
	`\`, `\\`,
	".", `\.`,
	"*", `\*`,
	"?", `\?`,
	"|", `\|`,
	"#", `\#`,
	"@", `\@`,
)

// escapeKey makes a literal object key safe to use as a gjson path.
func escapeKey(key string) string {
	return keyEscaper.Replace(key)
}
