package models

import (
	"fmt"
	"regexp"
)

// Interval is an archiver sampling interval: a decimal number followed
// by a single unit, one of s, m or h. Examples: "0.1s", "1m", "2h".
// The archive interprets it; we only validate the shape.
type Interval string

// DefaultInterval matches the archiver's native sampling rate.
const DefaultInterval Interval = "0.1s"

var intervalRe = regexp.MustCompile(`^\d+(\.\d+)?[smh]$`)

// ParseInterval validates s and returns it as an Interval. An empty
// string means the default. Rejection happens before any network call.
func ParseInterval(s string) (Interval, error) {
	if s == "" {
		return DefaultInterval, nil
	}
	if !intervalRe.MatchString(s) {
		return "", fmt.Errorf("%w: %q (want <number><s|m|h>, e.g. 0.1s)", ErrInvalidInterval, s)
	}
	return Interval(s), nil
}

func (i Interval) String() string {
	return string(i)
}
