package models

import "time"

// DataPoint is one archived sample. A nil Value is a null reading;
// the archive stores gaps and invalid readings explicitly.
type DataPoint struct {
	Time  time.Time
	Value *float64
}

// QueryResult carries one signal's retrieved series, or the error that
// stopped its retrieval. Results keep the request order of signals.
type QueryResult struct {
	Signal string
	Points []DataPoint
	Err    error
}

// Failed reports whether retrieval of this signal went wrong.
func (r QueryResult) Failed() bool {
	return r.Err != nil
}

// ExportBlock is one signal's formatted dataset text, ready to write
// to a file or publish to a bus.
type ExportBlock struct {
	Signal string
	Text   string
}

// Summary describes one retrieved series for reporting endpoints.
// Min, Max and Mean ignore null readings.
type Summary struct {
	Signal string
	Count  int
	Nulls  int
	Min    float64
	Max    float64
	Mean   float64
	First  time.Time
	Last   time.Time
}

// RunRecord is one completed retrieval run as kept in the audit log.
type RunRecord struct {
	ID         int64
	Mode       string // "fetch", "dump", "api", "job", "schedule"
	Patterns   string
	Signals    int
	Points     int64
	Failures   int
	Output     string
	StartedAt  time.Time
	FinishedAt time.Time
}
