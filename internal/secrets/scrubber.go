package secrets

import (
	"regexp"
	"sort"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// Scrubber redacts secrets from text.
type Scrubber interface {
	// Scrub returns content with every detected secret replaced.
	Scrub(content string) *Result

	// IsEnabled reports whether scrubbing is active.
	IsEnabled() bool
}

// Result is the outcome of one Scrub call.
type Result struct {
	Scrubbed string
	// ByRule counts matches per rule ID. Matched values are never kept.
	ByRule map[string]int
	Total  int
}

// HasFindings returns true if any secrets were found.
func (r *Result) HasFindings() bool {
	return r.Total > 0
}

type scrubber struct {
	enabled   bool
	redaction string
	rules     []*compiledRule
	allow     []*regexp.Regexp
	detector  *detect.Detector
}

type span struct{ start, end int }

// New creates a Scrubber. A nil cfg uses DefaultConfig.
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !cfg.Enabled {
		return Noop{}, nil
	}
	rules, allow, err := cfg.compile()
	if err != nil {
		return nil, err
	}
	redaction := cfg.Redaction
	if redaction == "" {
		redaction = "[REDACTED]"
	}
	s := &scrubber{enabled: true, redaction: redaction, rules: rules, allow: allow}
	if cfg.Gitleaks {
		if s.detector, err = gitleaksDetector(cfg.AllowList); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// MustNew creates a Scrubber, panicking on an invalid configuration.
func MustNew(cfg *Config) Scrubber {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *scrubber) IsEnabled() bool { return s.enabled }

func (s *scrubber) Scrub(content string) *Result {
	result := &Result{Scrubbed: content, ByRule: make(map[string]int)}

	var spans []span
	for _, rule := range s.rules {
		if !rule.applies(content) {
			continue
		}
		for _, m := range rule.pattern.FindAllStringIndex(content, -1) {
			if s.allowed(content[m[0]:m[1]]) {
				continue
			}
			result.ByRule[rule.ID]++
			result.Total++
			spans = append(spans, span{m[0], m[1]})
		}
	}
	if s.detector != nil {
		for id, found := range gitleaksSpans(s.detector, content) {
			for _, sp := range found {
				if s.allowed(content[sp.start:sp.end]) {
					continue
				}
				result.ByRule[id]++
				result.Total++
				spans = append(spans, sp)
			}
		}
	}
	if len(spans) == 0 {
		return result
	}

	merged := mergeSpans(spans)
	out := make([]byte, 0, len(content))
	last := 0
	for _, sp := range merged {
		out = append(out, content[last:sp.start]...)
		out = append(out, s.redaction...)
		last = sp.end
	}
	out = append(out, content[last:]...)
	result.Scrubbed = string(out)
	return result
}

func (r *compiledRule) applies(content string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	for _, kw := range r.keywords {
		if kw.MatchString(content) {
			return true
		}
	}
	return false
}

func (s *scrubber) allowed(match string) bool {
	for _, re := range s.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

// mergeSpans sorts spans and merges overlapping or adjacent ones.
func mergeSpans(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := []span{spans[0]}
	for _, cur := range spans[1:] {
		last := &merged[len(merged)-1]
		if cur.start <= last.end {
			if cur.end > last.end {
				last.end = cur.end
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// Noop returns content unchanged.
type Noop struct{}

// Scrub returns content unchanged.
func (Noop) Scrub(content string) *Result {
	return &Result{Scrubbed: content, ByRule: map[string]int{}}
}

// IsEnabled returns false.
func (Noop) IsEnabled() bool { return false }

var (
	_ Scrubber = (*scrubber)(nil)
	_ Scrubber = Noop{}
)
