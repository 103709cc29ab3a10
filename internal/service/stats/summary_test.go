package stats

import (
	"math"
	"testing"
	"time"

	"HistPull/internal/domain/models"
)

func f64(v float64) *float64 { return &v }

func TestSummarize(t *testing.T) {
	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	points := []models.DataPoint{
		{Time: base, Value: f64(2.0)},
		{Time: base.Add(time.Second), Value: nil},
		{Time: base.Add(2 * time.Second), Value: f64(-1.0)},
		{Time: base.Add(3 * time.Second), Value: f64(5.0)},
	}

	s := Summarize("cab01/sig/a", points)
	if s.Count != 4 || s.Nulls != 1 {
		t.Fatalf("count=%d nulls=%d", s.Count, s.Nulls)
	}
	if s.Min != -1.0 || s.Max != 5.0 {
		t.Fatalf("min=%v max=%v", s.Min, s.Max)
	}
	if math.Abs(s.Mean-2.0) > 1e-9 {
		t.Fatalf("mean=%v", s.Mean)
	}
	if !s.First.Equal(base) || !s.Last.Equal(base.Add(3*time.Second)) {
		t.Fatalf("first=%v last=%v", s.First, s.Last)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize("x", nil)
	if s.Count != 0 || s.Nulls != 0 || s.Min != 0 || s.Max != 0 || s.Mean != 0 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if !s.First.IsZero() || !s.Last.IsZero() {
		t.Fatalf("first/last should stay zero")
	}
}

func TestSummarizeAllNulls(t *testing.T) {
	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	points := []models.DataPoint{
		{Time: base, Value: nil},
		{Time: base.Add(time.Second), Value: nil},
	}
	s := Summarize("x", points)
	if s.Count != 2 || s.Nulls != 2 {
		t.Fatalf("count=%d nulls=%d", s.Count, s.Nulls)
	}
	if s.Mean != 0 || s.Min != 0 || s.Max != 0 {
		t.Fatalf("stats over nulls must stay zero: %+v", s)
	}
}

func TestSummarizeSetSkipsFailures(t *testing.T) {
	base := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	results := []models.QueryResult{
		{Signal: "a", Points: []models.DataPoint{{Time: base, Value: f64(1)}}},
		{Signal: "b", Err: errFake},
		{Signal: "c", Points: nil},
	}
	out := SummarizeSet(results)
	if len(out) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(out))
	}
	if out[0].Signal != "a" || out[1].Signal != "c" {
		t.Fatalf("unexpected order %v %v", out[0].Signal, out[1].Signal)
	}
}

var errFake = &models.SignalError{Signal: "b", Err: models.ErrNoMatch}
