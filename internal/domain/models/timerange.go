package models

import "time"

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Duration returns End minus Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// UTC returns the range with both ends converted to UTC.
func (r TimeRange) UTC() TimeRange {
	return TimeRange{Start: r.Start.UTC(), End: r.End.UTC()}
}

// DayPartition is one calendar date together with the slice of a
// TimeRange that falls on it. Start and End stay half-open.
type DayPartition struct {
	Date  string // YYYY-MM-DD in the range's location
	Start time.Time
	End   time.Time
}

const dateLayout = "2006-01-02"

// SplitByDay cuts r into contiguous per-date partitions: the first runs
// from Start to the next midnight, interior days are whole, the last
// runs from its midnight to End. Midnights come from time.Date in the
// range's location, so days shortened or stretched by DST split
// correctly. A zero-length range yields one empty partition.
func SplitByDay(r TimeRange) []DayPartition {
	loc := r.Start.Location()
	end := r.End.In(loc)
	parts := make([]DayPartition, 0, 4)

	cur := r.Start
	for {
		y, m, d := cur.Date()
		next := time.Date(y, m, d+1, 0, 0, 0, 0, loc)
		if !next.Before(end) {
			parts = append(parts, DayPartition{Date: cur.Format(dateLayout), Start: cur, End: end})
			return parts
		}
		parts = append(parts, DayPartition{Date: cur.Format(dateLayout), Start: cur, End: next})
		cur = next
	}
}
