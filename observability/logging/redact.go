package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces the value of every sensitive attribute.
const RedactedValue = "[REDACTED]"

var redactionAllowlist = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"component": {},
	"signer":    {},
	"address":   {},
	"label":     {},
}

var sensitiveMarkers = []string{
	"privatekey",
	"secretkey",
	"secret",
	"passphrase",
	"mnemonic",
	"password",
	"authorization",
}

// IsAllowlisted reports whether key is always emitted verbatim.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[normalizeKey(key)]
	return ok
}

// Sensitive reports whether the handler installed by Setup masks key.
// Matching ignores case, underscores and dashes.
func Sensitive(key string) bool {
	if IsAllowlisted(key) {
		return false
	}
	normalized := normalizeKey(key)
	for _, marker := range sensitiveMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer("_", "", "-", "").Replace(key)
}

// redactAttr masks non-empty sensitive attributes. slog hands group members
// to ReplaceAttr one at a time, so nested keys are covered too.
func redactAttr(attr slog.Attr) slog.Attr {
	if !Sensitive(attr.Key) || attr.Value.String() == "" {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}
