package providers

import (
	"strconv"
	"strings"
	"time"
)

// ParseTimestamp accepts the two formats provider payloads use: RFC 3339
// strings and millisecond epoch numbers. Anything else yields nil rather
// than a guessed time.
func ParseTimestamp(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}

	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		utc := parsed.UTC()
		return &utc
	}

	if epochMillis, err := strconv.ParseInt(value, 10, 64); err == nil && len(value) >= 13 {
		utc := time.UnixMilli(epochMillis).UTC()
		return &utc
	}
	return nil
}
