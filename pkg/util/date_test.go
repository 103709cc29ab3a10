package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseCivilInLocation(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	got, ok := ParseCivil("2024-10-10T10:10:10", loc)
	if !ok {
		t.Fatalf("expected ok")
	}
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if got.Location() != loc {
		t.Fatalf("wrong location %v", got.Location())
	}
}

func TestParseCivilSpaceLayout(t *testing.T) {
	got, ok := ParseCivil("2024-10-10 10:10:10", time.UTC)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Hour() != 10 || got.Day() != 10 {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseCivilFallsBackToRFC3339(t *testing.T) {
	got, ok := ParseCivil("2024-10-10T10:10:10Z", time.UTC)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != "2024-10-10T10:10:10Z" {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseCivilGarbage(t *testing.T) {
	if _, ok := ParseCivil("not-a-time", time.UTC); ok {
		t.Fatalf("expected !ok")
	}
}

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}
