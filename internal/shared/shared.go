// package shared defines shared helpers
package shared

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// ApplyLogLevel parses a level name ("debug", "info", "warn", "error") and sets it on the logger.
//
// Unknown or empty names leave the logger at its current level.
func ApplyLogLevel(l *log.Logger, name string) {
	if strings.TrimSpace(name) == "" {
		return
	}
	lvl, err := log.ParseLevel(strings.ToLower(name))
	if err != nil {
		l.Warn("unknown log level, keeping default", "level", name)
		return
	}
	SetLogLevel(l, lvl)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// GenerateState returns an opaque random token for OAuth state parameters.
func GenerateState() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Dedupe returns ids with blanks and repeats removed, preserving first-seen order.
func Dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
