// Package sysutil carries small process-level helpers shared by the server
// entrypoint and the HTTP layer: log-level plumbing and env-style value
// parsing that belongs to no single domain package.
package sysutil

import (
	"strings"

	"github.com/rs/zerolog"
)

// SetLogLevel applies lvl to the global zerolog level. "warning" is
// accepted as an alias for "warn"; empty or unrecognized values leave the
// service at info.
func SetLogLevel(lvl string) {
	v := strings.ToLower(strings.TrimSpace(lvl))
	if v == "warning" {
		v = "warn"
	}
	parsed, err := zerolog.ParseLevel(v)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

// IsTruthy reports whether an env-style flag value means enabled:
// "1", "true", "yes", "y" or "on", case-insensitive.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

// FirstNonEmpty returns the first value that is not blank, preserving its
// original spacing. Returns "" when every value is blank. Useful for
// header-then-default fallback chains.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
