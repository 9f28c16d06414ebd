package normalize

import (
	"regexp"
	"strings"
)

// tried in order; dotted names win over bare identifiers, Exception over Error
var exceptionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z_][a-zA-Z0-9_]*)*Exception`),
	regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*(?:\.[a-zA-Z_][a-zA-Z0-9_]*)*Error`),
	regexp.MustCompile(`[A-Z][a-zA-Z0-9]*Exception`),
	regexp.MustCompile(`[A-Z][a-zA-Z0-9]*Error`),
}

// ExceptionClass returns the exception or error class named in a stack trace,
// without its package path. It returns "" when nothing matches.
func ExceptionClass(text string) string {
	if text == "" {
		return ""
	}

	for _, pattern := range exceptionPatterns {
		match := pattern.FindString(text)
		if match == "" {
			continue
		}
		return match[strings.LastIndex(match, ".")+1:]
	}
	return ""
}
