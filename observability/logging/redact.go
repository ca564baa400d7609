package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces masked attribute values.
const RedactedValue = "[REDACTED]"

// Keys emitted by the exchange daemon that never carry credentials.
var plainKeys = map[string]struct{}{
	"service":   {},
	"env":       {},
	"error":     {},
	"operation": {},
	"owner":     {},
	"signer":    {},
	"receipt":   {},
	"slot":      {},
	"code":      {},
	"category":  {},
	"route":     {},
	"path":      {},
	"status":    {},
}

func isPlain(key string) bool {
	_, ok := plainKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField returns key=value for known exchange keys and key=[REDACTED]
// for anything else, so bearer tokens and secrets passed by mistake stay out
// of the log. Empty values are kept as is.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || isPlain(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
