package models

import (
	"errors"
	"testing"
)

func TestParseIntervalValid(t *testing.T) {
	for _, s := range []string{"0.1s", "1s", "5m", "2h", "10.5m"} {
		got, err := ParseInterval(s)
		if err != nil {
			t.Fatalf("ParseInterval(%q): %v", s, err)
		}
		if got.String() != s {
			t.Fatalf("ParseInterval(%q) = %q", s, got)
		}
	}
}

func TestParseIntervalEmptyUsesDefault(t *testing.T) {
	got, err := ParseInterval("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != DefaultInterval {
		t.Fatalf("got %q, want %q", got, DefaultInterval)
	}
}

func TestParseIntervalInvalid(t *testing.T) {
	for _, s := range []string{"5x", "s", "1.s", "-1s", "1sm", "0.1 s", "1d"} {
		_, err := ParseInterval(s)
		if err == nil {
			t.Fatalf("ParseInterval(%q) accepted", s)
		}
		if !errors.Is(err, ErrInvalidInterval) {
			t.Fatalf("ParseInterval(%q) error %v, want ErrInvalidInterval", s, err)
		}
	}
}
