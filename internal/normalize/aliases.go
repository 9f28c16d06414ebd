package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Canonical optional fields
const (
	FieldLogLevel       = "log_level"
	FieldLogger         = "logger"
	FieldThread         = "thread"
	FieldParsedMessage  = "parsed_message"
	FieldStackTrace     = "stack_trace"
	FieldExceptionClass = "exception_class"
	FieldErrorMessage   = "error_message"
	FieldHTTPMethod     = "http_method"
	FieldHTTPPath       = "http_path"
	FieldStatusCode     = "status_code"
	FieldDurationMs     = "duration_ms"
	FieldClientIP       = "client_ip"
	FieldTraceID        = "trace_id"
	FieldSpanID         = "span_id"
	FieldRequestID      = "request_id"
	FieldUserID         = "user_id"
	FieldAction         = "action"
	FieldAppName        = "app_name"
	FieldEnvironment    = "environment"
)

// Alias lists the source keys probed, in order, for one canonical field.
// Keys named in StringOnly only count when their value is a string.
type Alias struct {
	Canonical  string
	Keys       []string
	StringOnly []string
}

// Aliases is the canonical field table. Keys are case-sensitive.
var Aliases = []Alias{
	{Canonical: FieldLogLevel, Keys: []string{"level", "log_level", "severity"}},
	{Canonical: FieldLogger, Keys: []string{"logger", "logger_name", "caller"}},
	{Canonical: FieldThread, Keys: []string{"thread", "thread_name"}},
	{Canonical: FieldParsedMessage, Keys: []string{"message", "msg"}, StringOnly: []string{"message"}},
	{Canonical: FieldStackTrace, Keys: []string{"stack_trace", "stacktrace", "exception"}},
	{Canonical: FieldErrorMessage, Keys: []string{"error_message", "error"}, StringOnly: []string{"error_message", "error"}},
	{Canonical: FieldHTTPMethod, Keys: []string{"http_method", "method", "httpMethod"}},
	{Canonical: FieldHTTPPath, Keys: []string{"http_path", "path", "uri", "url"}},
	{Canonical: FieldStatusCode, Keys: []string{"status_code", "statusCode", "status", "http_status"}},
	{Canonical: FieldDurationMs, Keys: []string{"duration", "duration_ms", "response_time", "elapsed"}},
	{Canonical: FieldClientIP, Keys: []string{"client_ip", "clientIp", "remote_addr", "ip"}},
	{Canonical: FieldTraceID, Keys: []string{"trace_id", "traceId", "x-amzn-trace-id"}},
	{Canonical: FieldSpanID, Keys: []string{"span_id", "spanId"}},
	{Canonical: FieldRequestID, Keys: []string{"request_id", "requestId", "correlationId"}},
	{Canonical: FieldUserID, Keys: []string{"user_id", "userId"}},
	{Canonical: FieldAction, Keys: []string{"action", "operation"}},
	{Canonical: FieldAppName, Keys: []string{"APP_NAME", "application", "service", "SERVICE_NAME"}},
	{Canonical: FieldEnvironment, Keys: []string{"APP_ENV", "environment", "env", "ENVIRONMENT"}},
}

// Lookup returns the first alias key holding a usable value. Besides
// absent and null values, empty strings are skipped too, so a blank
// "level" falls through to "severity".
func Lookup(flat map[string]any, alias Alias) (key string, value any, ok bool) {
	for _, k := range alias.Keys {
		v, present := flat[k]
		if !present || v == nil {
			continue
		}
		s, isString := v.(string)
		if isString && s == "" {
			continue
		}
		if !isString && contains(alias.StringOnly, k) {
			continue
		}
		return k, v, true
	}
	return "", nil, false
}

// Resolve reconciles synonymous source keys into canonical fields.
// A parsed_message taken from "message" removes that key from flat.
func Resolve(flat map[string]any) map[string]any {
	fields := make(map[string]any)

	for _, alias := range Aliases {
		key, value, ok := Lookup(flat, alias)
		if !ok {
			continue
		}

		switch alias.Canonical {
		case FieldLogLevel:
			value = strings.ToUpper(stringify(value))
		case FieldStatusCode:
			value = coerceStatus(value)
		case FieldParsedMessage:
			if key == "message" {
				delete(flat, "message")
			}
		case FieldStackTrace:
			if class := ExceptionClass(stringify(value)); class != "" {
				fields[FieldExceptionClass] = class
			}
		}

		fields[alias.Canonical] = value
	}

	return fields
}

// coerceStatus turns pure-digit status codes into integers
func coerceStatus(value any) any {
	s := stringify(value)
	if s == "" || !isDigits(s) {
		return value
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return value
	}
	return n
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// stringify renders a value as text. Strings and numbers are used verbatim, anything else as JSON.
func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
