package classify

import (
	"fmt"
	"strings"
)

// Normalized log levels
const (
	LevelError = "ERROR"
	LevelWarn  = "WARN"
	LevelInfo  = "INFO"
	LevelDebug = "DEBUG"
	LevelTrace = "TRACE"
)

// Levels returns every level a document may carry
func Levels() []string {
	return []string{LevelError, LevelWarn, LevelInfo, LevelDebug, LevelTrace}
}

// explicit level spellings that the substring rule would not map correctly
var levelSynonyms = map[string]string{
	"CRITICAL": LevelError,
	"CRIT":     LevelError,
	"SEVERE":   LevelError,
	"PANIC":    LevelError,
	"ALERT":    LevelError,
	"EMERG":    LevelError,
	"FINE":     LevelDebug,
	"FINEST":   LevelTrace,
}

// ClassifyError reports a message that looked structured but did not parse.
// The message is handled as free text.
type ClassifyError struct {
	Err error
}

func (e *ClassifyError) Error() string {
	return fmt.Sprintf("classify message: %v", e.Err)
}

func (e *ClassifyError) Unwrap() error {
	return e.Err
}

// Result is the outcome of classifying one message body
type Result struct {
	Structured bool
	Fields     Object
	Err        error
}

// Classify decides whether a message body is a JSON object or free text
func Classify(message string) Result {
	trimmed := strings.TrimSpace(message)
	if !strings.HasPrefix(trimmed, "{") {
		return Result{}
	}

	fields, err := parseObject(trimmed)
	if err != nil {
		return Result{Err: &ClassifyError{Err: err}}
	}

	return Result{Structured: true, Fields: fields}
}

// DetectLevel derives a level from free text by substring priority
func DetectLevel(text string) string {
	upper := strings.ToUpper(text)

	switch {
	case strings.Contains(upper, "ERROR") || strings.Contains(upper, "FATAL"):
		return LevelError
	case strings.Contains(upper, "WARN"):
		return LevelWarn
	case strings.Contains(upper, "DEBUG"):
		return LevelDebug
	case strings.Contains(upper, "TRACE"):
		return LevelTrace
	default:
		return LevelInfo
	}
}

// NormalizeLevel maps an explicit level field onto the normalized levels
func NormalizeLevel(value any) string {
	upper := strings.ToUpper(strings.TrimSpace(fmt.Sprint(value)))
	if level, ok := levelSynonyms[upper]; ok {
		return level
	}
	return DetectLevel(upper)
}
