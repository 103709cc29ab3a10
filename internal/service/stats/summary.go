package stats

import (
	"HistPull/internal/domain/models"
)

// Summarize reduces one retrieved series to its reporting summary.
// Null readings count toward Nulls but are excluded from Min, Max and
// Mean. First and Last stay zero for an empty series.
func Summarize(signal string, points []models.DataPoint) models.Summary {
	s := models.Summary{Signal: signal, Count: len(points)}
	if len(points) == 0 {
		return s
	}

	s.First = points[0].Time
	s.Last = points[len(points)-1].Time

	sum := 0.0
	n := 0
	for _, p := range points {
		if p.Value == nil {
			s.Nulls++
			continue
		}
		v := *p.Value
		if n == 0 || v < s.Min {
			s.Min = v
		}
		if n == 0 || v > s.Max {
			s.Max = v
		}
		sum += v
		n++
	}
	if n > 0 {
		s.Mean = sum / float64(n)
	}
	return s
}

// SummarizeSet computes summaries for every successful result in a
// retrieval set, in result order. Failed results are skipped.
func SummarizeSet(results []models.QueryResult) []models.Summary {
	out := make([]models.Summary, 0, len(results))
	for _, r := range results {
		if r.Failed() {
			continue
		}
		out = append(out, Summarize(r.Signal, r.Points))
	}
	return out
}
