package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits one step below Debug. It carries raw vault program
// arguments and hook payload dumps, so it is off unless asked for.
const TraceLevel = zapcore.Level(-2)

// LevelFromString parses a level name. It accepts the zap names plus
// "trace", ignoring case and surrounding space; unknown names fall back to
// info alongside the error.
func LevelFromString(level string) (zapcore.Level, error) {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "trace" {
		return TraceLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}
