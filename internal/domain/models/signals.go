package models

import "time"

// QuerySet represents a consolidated view of one multi-signal retrieval.
// Note: no transport (json/http) concerns here.
type QuerySet struct {
	Patterns  []string
	Signals   []string
	Range     TimeRange
	Interval  Interval
	Backend   string
	Timestamp time.Time
	Results   []QueryResult
	Summaries []Summary
	Errors    map[string]string
}

// Failures counts results that carry an error.
func (s *QuerySet) Failures() int {
	n := 0
	for _, r := range s.Results {
		if r.Failed() {
			n++
		}
	}
	return n
}

// TotalPoints sums the points of all successful results.
func (s *QuerySet) TotalPoints() int64 {
	var n int64
	for _, r := range s.Results {
		n += int64(len(r.Points))
	}
	return n
}
