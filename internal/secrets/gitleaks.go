package secrets

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// gitleaksRulePrefix marks ByRule keys produced by the gitleaks detector.
const gitleaksRulePrefix = "gitleaks:"

// Building the default detector compiles several hundred rules, so it is
// done once per process.
var (
	defaultDetectorOnce sync.Once
	defaultDetector     *detect.Detector
	defaultDetectorErr  error
)

func gitleaksDetector(allow []string) (*detect.Detector, error) {
	if len(allow) == 0 {
		defaultDetectorOnce.Do(func() {
			defaultDetector, defaultDetectorErr = detect.NewDetectorDefaultConfig()
		})
		return defaultDetector, defaultDetectorErr
	}

	d, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, err
	}
	list := &gitleaksConfig.Allowlist{Description: "membank allow_list"}
	for i, p := range allow {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("allow_list %d: invalid pattern: %w", i, err)
		}
		list.Regexes = append(list.Regexes, (*gitleaksRegexp.Regexp)(re))
	}
	d.Config.Allowlists = append(d.Config.Allowlists, list)
	return d, nil
}

// gitleaksSpans runs the detector over content and returns the location of
// every occurrence of each detected secret, keyed by rule.
func gitleaksSpans(d *detect.Detector, content string) map[string][]span {
	out := make(map[string][]span)
	for _, f := range d.DetectString(content) {
		if f.Secret == "" {
			continue
		}
		id := gitleaksRulePrefix + f.RuleID
		for from := 0; from < len(content); {
			i := strings.Index(content[from:], f.Secret)
			if i < 0 {
				break
			}
			start := from + i
			out[id] = append(out[id], span{start, start + len(f.Secret)})
			from = start + len(f.Secret)
		}
	}
	return out
}
