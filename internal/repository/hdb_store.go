package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"HistPull/internal/domain/models"
	svccache "HistPull/internal/service/cache"
	pkgch "HistPull/pkg/clickhouse"
	applogger "HistPull/pkg/logger"
)

// HDBStore implements repository.Archive straight against the archive's
// column store, bypassing the REST gateway. Tables are partitioned by
// calendar date, so every fetch splits its range and binds the period
// column to let the server prune partitions.
type HDBStore struct {
	db      *sql.DB
	conf    *svccache.TTLCache
	confTTL time.Duration
	loc     *time.Location
	l       *applogger.Logger
}

// NewHDBStore wraps the shared cluster pool. loc is the zone the
// archive partitions dates in.
func NewHDBStore(ch *pkgch.Client, loc *time.Location, confTTL time.Duration) *HDBStore {
	return newHDBStore(ch.DB(), loc, confTTL)
}

func newHDBStore(db *sql.DB, loc *time.Location, confTTL time.Duration) *HDBStore {
	if loc == nil {
		loc = time.UTC
	}
	if confTTL <= 0 {
		confTTL = 10 * time.Minute
	}
	return &HDBStore{
		db:      db,
		conf:    svccache.NewTTLCache(),
		confTTL: confTTL,
		loc:     loc,
	}
}

// SetLogger injects a structured logger.
func (s *HDBStore) SetLogger(l *applogger.Logger) { s.l = l }

type attConf struct {
	ID   int64
	Type string
}

// Value table names derive from att_conf.data_type; anything outside
// this shape never reaches a query string.
var identRe = regexp.MustCompile(`^[a-z0-9_]+$`)

func (s *HDBStore) lookupConf(ctx context.Context, signal string) (attConf, error) {
	key := "conf:" + signal
	if v, ok := s.conf.Get(key); ok {
		return v.(attConf), nil
	}

	var conf attConf
	err := s.db.QueryRowContext(ctx,
		`SELECT att_conf_id FROM att_conf WHERE att_name = ?`, signal,
	).Scan(&conf.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attConf{}, fmt.Errorf("signal %s not found in att_conf", signal)
		}
		return attConf{}, fmt.Errorf("att_conf_id lookup: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT data_type FROM att_conf WHERE att_conf_id = ?`, conf.ID,
	).Scan(&conf.Type)
	if err != nil {
		return attConf{}, fmt.Errorf("data_type lookup: %w", err)
	}

	if !identRe.MatchString(conf.Type) {
		return attConf{}, fmt.Errorf("refusing data_type %q for %s", conf.Type, signal)
	}

	s.conf.Set(key, conf, s.confTTL)
	return conf, nil
}

// Fetch retrieves one signal's raw samples. The range is converted to
// the storage zone, split per date, partitions are read concurrently
// into indexed slots and concatenated in order. Any partition error
// fails the whole signal. The sampling interval does not apply here.
func (s *HDBStore) Fetch(ctx context.Context, signal string, r models.TimeRange, _ models.Interval) ([]models.DataPoint, error) {
	start := time.Now()

	conf, err := s.lookupConf(ctx, signal)
	if err != nil {
		return nil, err
	}
	table := "att_" + conf.Type

	rng := models.TimeRange{Start: r.Start.In(s.loc), End: r.End.In(s.loc)}
	parts := models.SplitByDay(rng)

	results := make([][]models.DataPoint, len(parts))
	errs := make([]error, len(parts))

	var wg sync.WaitGroup
	for i, p := range parts {
		wg.Add(1)
		go func(i int, p models.DayPartition) {
			defer wg.Done()
			results[i], errs[i] = s.fetchPartition(ctx, conf.ID, table, p)
		}(i, p)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			if s.l != nil {
				s.l.Error("hdb partition fetch error",
					applogger.String("signal", signal),
					applogger.String("period", parts[i].Date),
					applogger.Error(err),
				)
			}
			return nil, fmt.Errorf("period %s: %w", parts[i].Date, err)
		}
	}

	total := 0
	for _, pts := range results {
		total += len(pts)
	}
	out := make([]models.DataPoint, 0, total)
	for _, pts := range results {
		out = append(out, pts...)
	}

	if s.l != nil {
		s.l.Info("hdb fetch ok",
			applogger.String("signal", signal),
			applogger.String("table", table),
			applogger.Int("partitions", len(parts)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *HDBStore) fetchPartition(ctx context.Context, confID int64, table string, p models.DayPartition) ([]models.DataPoint, error) {
	const qtpl = `
        SELECT data_time, value_r
        FROM %s
        WHERE att_conf_id = ? AND period = ? AND data_time >= ? AND data_time < ?
        ORDER BY data_time ASC
    `
	q := fmt.Sprintf(qtpl, table)
	rows, err := s.db.QueryContext(ctx, q, confID, p.Date, p.Start, p.End)
	if err != nil {
		return nil, fmt.Errorf("partition query: %w", err)
	}
	defer rows.Close()

	out := make([]models.DataPoint, 0, 1024)
	for rows.Next() {
		var ts time.Time
		var v sql.NullFloat64
		if err := rows.Scan(&ts, &v); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		dp := models.DataPoint{Time: ts}
		if v.Valid {
			val := v.Float64
			dp.Value = &val
		}
		out = append(out, dp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

// Health pings the shared pool.
func (s *HDBStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to the cluster client and outlives
// any one store.
func (s *HDBStore) Close() error {
	return nil
}
