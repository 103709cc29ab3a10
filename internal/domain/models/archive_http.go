package models

import "time"

// Requests and response payloads for the archive HTTP endpoints.
// Defined in domain for consistency and reuse.

type SearchRequest struct {
	Patterns []string `json:"patterns" validate:"required,min=1,dive,required"`
}

type QueryRequest struct {
	Patterns []string `json:"patterns" validate:"required,min=1,dive,required"`
	From     string   `json:"from" validate:"required"`
	To       string   `json:"to" validate:"required"`
	Interval string   `json:"interval" default:"0.1s"`
	Backend  string   `json:"backend" default:"rest" validate:"oneof=rest hdb"`
}

type ExportRequest struct {
	QueryRequest
	Target     string `json:"target" default:"files" validate:"oneof=files kafka"`
	OutputRoot string `json:"output_root" validate:"required_if=Target files"`
}

type StreamRequest struct {
	Pattern  string `query:"pattern" validate:"required"`
	From     string `query:"from" validate:"required"`
	To       string `query:"to" validate:"required"`
	Interval string `query:"interval" default:"0.1s"`
}

type SearchResponse struct {
	Patterns []string `json:"patterns"`
	Matches  []string `json:"matches"`
	Count    int      `json:"count"`
}

type PointPayload struct {
	Time  time.Time `json:"t"`
	Value *float64  `json:"v"`
}

// SeriesPayload carries one signal's series in a query response. Error
// is the per-signal failure text, empty on success.
type SeriesPayload struct {
	Signal string         `json:"signal"`
	Points []PointPayload `json:"points"`
	Error  string         `json:"error,omitempty"`
}

type SummaryPayload struct {
	Signal string    `json:"signal"`
	Count  int       `json:"count"`
	Nulls  int       `json:"nulls"`
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
	Mean   float64   `json:"mean"`
	First  time.Time `json:"first"`
	Last   time.Time `json:"last"`
}

// QueryResponse is the transport shape of a QuerySet. Results that
// failed keep their slot with an empty series and the error text.
type QueryResponse struct {
	Patterns  []string          `json:"patterns"`
	Signals   []string          `json:"signals"`
	From      time.Time         `json:"from"`
	To        time.Time         `json:"to"`
	Interval  string            `json:"interval"`
	Backend   string            `json:"backend"`
	Timestamp time.Time         `json:"timestamp"`
	Series    []SeriesPayload   `json:"series"`
	Summaries []SummaryPayload  `json:"summaries,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// NewQueryResponse flattens a QuerySet for JSON delivery.
func NewQueryResponse(set *QuerySet) *QueryResponse {
	res := &QueryResponse{
		Patterns:  set.Patterns,
		Signals:   set.Signals,
		From:      set.Range.Start,
		To:        set.Range.End,
		Interval:  set.Interval.String(),
		Backend:   set.Backend,
		Timestamp: set.Timestamp,
		Series:    make([]SeriesPayload, 0, len(set.Results)),
		Errors:    set.Errors,
	}
	for _, r := range set.Results {
		sp := SeriesPayload{
			Signal: r.Signal,
			Points: make([]PointPayload, 0, len(r.Points)),
		}
		if r.Err != nil {
			sp.Error = r.Err.Error()
		}
		for _, p := range r.Points {
			sp.Points = append(sp.Points, PointPayload{Time: p.Time, Value: p.Value})
		}
		res.Series = append(res.Series, sp)
	}
	for _, s := range set.Summaries {
		res.Summaries = append(res.Summaries, SummaryPayload{
			Signal: s.Signal,
			Count:  s.Count,
			Nulls:  s.Nulls,
			Min:    s.Min,
			Max:    s.Max,
			Mean:   s.Mean,
			First:  s.First,
			Last:   s.Last,
		})
	}
	return res
}

// ExportReport summarizes one synchronous export for API clients.
type ExportReport struct {
	Signals  int               `json:"signals"`
	Points   int64             `json:"points"`
	Failures int               `json:"failures"`
	Target   string            `json:"target"`
	Files    []string          `json:"files,omitempty"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// RunPayload is the transport shape of a RunRecord.
type RunPayload struct {
	ID         int64     `json:"id"`
	Mode       string    `json:"mode"`
	Patterns   string    `json:"patterns"`
	Signals    int       `json:"signals"`
	Points     int64     `json:"points"`
	Failures   int       `json:"failures"`
	Output     string    `json:"output"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func NewRunPayloads(recs []*RunRecord) []RunPayload {
	rows := make([]RunPayload, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, RunPayload{
			ID:         r.ID,
			Mode:       r.Mode,
			Patterns:   r.Patterns,
			Signals:    r.Signals,
			Points:     r.Points,
			Failures:   r.Failures,
			Output:     r.Output,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
		})
	}
	return rows
}
