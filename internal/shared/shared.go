// package shared defines shared helpers
package shared

import (
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const maxFileNameLength = 200

var (
	invalidFileChars = regexp.MustCompile(`[<>:"/\\|?*]`)
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

// ParseLogLevel converts a config level name into a [log.Level], falling back to info.
func ParseLogLevel(name string) log.Level {
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// CollapseSpace lowercases s, trims it and collapses inner whitespace runs to a single space.
// Unicode spaces such as NBSP count as whitespace.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NormalizeTrackKey builds the "title|artist" identity used to key per-track state.
func NormalizeTrackKey(title, artist string) string {
	return CollapseSpace(title) + "|" + CollapseSpace(artist)
}

// SanitizeFileName strips characters that are invalid in file names on common filesystems,
// collapses whitespace and caps the length.
func SanitizeFileName(name string) string {
	name = invalidFileChars.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")
	if len(name) > maxFileNameLength {
		name = strings.TrimSpace(truncateRunes(name, maxFileNameLength))
	}
	return name
}

// truncateRunes cuts s to at most n bytes without splitting a multi-byte rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
