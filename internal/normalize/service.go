package normalize

import (
	"regexp"
	"strings"
	"time"

	"example.com/backstage/services/logrouter/internal/models"
)

// UnknownService is used when a log group yields no name
const UnknownService = "unknown"

// TimestampLayout is the ISO-8601 form written to @timestamp
const TimestampLayout = "2006-01-02T15:04:05.000Z"

var envSuffix = regexp.MustCompile(`-(prod|staging|dev).*$`)

// role suffixes stripped after the environment suffix, longest first
var roleSuffixes = []string{"-web-api", "-scheduler", "-application", "-worker"}

// ServiceName derives a service short-name from a log group.
//
//	/aws/ecs/crawlinghub-web-api-prod/application -> crawlinghub
//	/aws/ecs/gateway-prod/application             -> gateway
//	/aws/lambda/log-router                        -> log
//
// Multi-component deployments collapse onto the segment before the first hyphen.
func ServiceName(logGroup string) string {
	parts := strings.Split(strings.Trim(logGroup, "/"), "/")

	if len(parts) >= 3 && parts[0] == "aws" && (parts[1] == "ecs" || parts[1] == "lambda") {
		name := envSuffix.ReplaceAllString(parts[2], "")
		for _, suffix := range roleSuffixes {
			name = strings.TrimSuffix(name, suffix)
		}
		if i := strings.Index(name, "-"); i >= 0 {
			name = name[:i]
		}
		if name != "" {
			return name
		}
		return UnknownService
	}

	if last := parts[len(parts)-1]; last != "" {
		return last
	}
	return UnknownService
}

// Timestamp renders epoch milliseconds as UTC ISO-8601. Zero is the epoch itself,
// and so is any value whose year falls outside 0000-9999.
func Timestamp(ms int64) string {
	if !models.ValidMillis(ms) {
		ms = 0
	}
	return time.UnixMilli(ms).UTC().Format(TimestampLayout)
}
