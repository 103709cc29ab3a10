// Package export renders query results into the canonical dataset text
// format and delivers the rendered blocks to files, stdout, or Kafka.
package export

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"HistPull/internal/domain/models"
)

// Body and snapshot timestamps use microsecond precision in the
// configured display zone.
const seriesTimeLayout = "2006-01-02_15:04:05.000000"

const nullValue = "null"

// Formatter converts one QueryResult into dataset text. Output is
// stable for a fixed result apart from the snapshot line, which carries
// the formatting time.
type Formatter struct {
	loc *time.Location
	now func() time.Time
}

// FormatterOption configures Formatter.
type FormatterOption func(*Formatter)

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) FormatterOption {
	return func(f *Formatter) {
		f.now = now
	}
}

// NewFormatter creates a formatter that renders timestamps in loc.
// A nil loc falls back to UTC.
func NewFormatter(loc *time.Location, opts ...FormatterOption) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	f := &Formatter{
		loc: loc,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format renders one result. The two header lines are always present;
// a failed or empty result simply has no body lines. One bad signal
// therefore still produces a well-formed, addressable block.
func (f *Formatter) Format(result models.QueryResult) string {
	var b strings.Builder
	b.Grow(64 + len(result.Points)*40)

	b.WriteString("# DATASET= ")
	b.WriteString(datasetName(result.Signal))
	b.WriteByte('\n')
	b.WriteString("# SNAPSHOT_TIME= ")
	b.WriteString(f.now().In(f.loc).Format(seriesTimeLayout))
	b.WriteByte('\n')

	if result.Failed() {
		return b.String()
	}
	for _, p := range result.Points {
		b.WriteString(p.Time.In(f.loc).Format(seriesTimeLayout))
		b.WriteByte(' ')
		b.WriteString(formatValue(p.Value))
		b.WriteByte('\n')
	}
	return b.String()
}

// Block pairs the rendered text with its signal name for routing.
func (f *Formatter) Block(result models.QueryResult) models.ExportBlock {
	return models.ExportBlock{
		Signal: result.Signal,
		Text:   f.Format(result),
	}
}

// datasetName qualifies the signal with the tango scheme unless the
// resolver already returned a fully qualified name.
func datasetName(signal string) string {
	if strings.HasPrefix(signal, "tango://") {
		return signal
	}
	return "tango://" + signal
}

func formatValue(v *float64) string {
	if v == nil {
		return nullValue
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

// ParseSeries reads `<timestamp> <value>` body lines back into data
// points, interpreting timestamps in loc. Header and blank lines are
// skipped. Round-trips Format output up to microsecond truncation.
func ParseSeries(text string, loc *time.Location) ([]models.DataPoint, error) {
	if loc == nil {
		loc = time.UTC
	}
	var points []models.DataPoint
	sc := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: want \"<timestamp> <value>\", got %q", lineNo, line)
		}
		ts, err := time.ParseInLocation(seriesTimeLayout, fields[0], loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad timestamp %q: %w", lineNo, fields[0], err)
		}
		var value *float64
		if fields[1] != nullValue {
			v, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad value %q: %w", lineNo, fields[1], err)
			}
			value = &v
		}
		points = append(points, models.DataPoint{Time: ts, Value: value})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan series: %w", err)
	}
	return points, nil
}
