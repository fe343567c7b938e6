package agent

import (
	"regexp"
	"strings"
)

// Escape sequence patterns, applied in precedence order. CSI and the
// string-terminated families must run before the generic two-byte
// pattern or their openers would be eaten and the payload left behind.
var (
	// CSI: ESC [ parameters intermediates final
	csiSeq = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)

	// OSC: ESC ] payload BEL
	oscSeq = regexp.MustCompile(`\x1b\][^\x07]*\x07`)

	// DCS, SOS, PM, APC: ESC {P,X,^,_} payload ST (ESC \)
	strSeq = regexp.MustCompile(`\x1b[PX^_][^\x1b]*\x1b\\`)

	// Any remaining two-byte escape, e.g. ESC ( B charset selection
	escPair = regexp.MustCompile(`\x1b.`)
)

// Sanitize strips terminal escape sequences and control characters
// from a line of subprocess output, keeping newline, tab and carriage
// return. Sanitize is idempotent: a sanitized line passes through
// unchanged.
func Sanitize(s string) string {
	if !needsSanitize(s) {
		return s
	}

	s = csiSeq.ReplaceAllString(s, "")
	s = oscSeq.ReplaceAllString(s, "")
	s = strSeq.ReplaceAllString(s, "")
	s = escPair.ReplaceAllString(s, "")

	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\t' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// needsSanitize reports whether s contains an escape or a control
// character that Sanitize would remove. Fast path for the common case
// of already-clean output.
func needsSanitize(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 && c != '\n' && c != '\t' && c != '\r' {
			return true
		}
	}
	return false
}
