package transcript

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Display limits for embedded content.
const (
	MaxLines  = 30
	MaxLength = 2000
)

// Truncate bounds content for display. The line limit is checked first and,
// when it applies, the character limit is not. Characters are counted as
// runes.
//
// Truncate is not idempotent: the omission marker itself counts toward the
// limits, so a truncated string may be cut again.
func Truncate(content string) string {
	if content == "" {
		return ""
	}

	lines := strings.Split(content, "\n")
	if len(lines) > MaxLines {
		return strings.Join(lines[:MaxLines], "\n") +
			fmt.Sprintf("\n... (omitted %d lines)", len(lines)-MaxLines)
	}

	if n := utf8.RuneCountInString(content); n > MaxLength {
		return prefixRunes(content, MaxLength) +
			fmt.Sprintf("... (omitted %d characters)", n-MaxLength)
	}

	return content
}

// prefixRunes returns the first n runes of s.
func prefixRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
