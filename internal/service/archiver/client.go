package archiver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"HistPull/internal/domain/models"
	apphttp "HistPull/pkg/http"
	"HistPull/pkg/logger"
)

// Wire timestamps are UTC with millisecond precision and a literal Z.
const wireTimeLayout = "2006-01-02T15:04:05.000Z"

// Client talks to the archive's REST gateway. It implements both
// repository.Resolver and repository.Archive over the same shared
// HTTP client; no per-signal sessions are ever opened.
type Client struct {
	http       *apphttp.Client
	baseURL    string
	source     string
	searchPath string
	queryPath  string
	log        *logger.Logger
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *apphttp.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithPaths overrides the search and query endpoint paths.
func WithPaths(search, query string) Option {
	return func(c *Client) {
		if search != "" {
			c.searchPath = search
		}
		if query != "" {
			c.queryPath = query
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// NewClient creates a gateway client. source is the archiver source
// label the gateway expects as "cs" on every call.
func NewClient(baseURL, source string, opts ...Option) *Client {
	c := &Client{
		http:       apphttp.NewClient(),
		baseURL:    baseURL,
		source:     source,
		searchPath: "/search",
		queryPath:  "/query",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchRequest struct {
	CS     string `json:"cs"`
	Target string `json:"target"`
}

type queryTarget struct {
	Target string `json:"target"`
	CS     string `json:"cs"`
}

type queryRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type queryRequest struct {
	Targets  []queryTarget `json:"targets"`
	Range    queryRange    `json:"range"`
	Interval string        `json:"interval"`
}

// Datapoint rows arrive as [value, epoch_ms]; value may be null.
type querySeries struct {
	Target     string       `json:"target"`
	Datapoints [][]*float64 `json:"datapoints"`
}

// Search asks the gateway for signal names matching target. The target
// is passed through verbatim; callers decide about regex wrapping.
func (c *Client) Search(ctx context.Context, target string) ([]string, error) {
	resp, err := c.http.SendRequest(ctx, &apphttp.RequestOptions{
		Method: apphttp.MethodPost,
		URL:    c.baseURL + c.searchPath,
		Body:   searchRequest{CS: c.source, Target: target},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("search status %d: %s", resp.StatusCode, body)
	}

	var names []string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	if c.log != nil {
		c.log.Debug("archiver search",
			logger.String("target", target),
			logger.Int("matches", len(names)),
		)
	}
	return names, nil
}

// Fetch retrieves one signal's series for the whole range in a single
// query; the gateway handles storage partitioning on this path.
func (c *Client) Fetch(ctx context.Context, signal string, r models.TimeRange, interval models.Interval) ([]models.DataPoint, error) {
	start := time.Now()

	req := queryRequest{
		Targets: []queryTarget{{Target: signal, CS: c.source}},
		Range: queryRange{
			From: r.Start.UTC().Format(wireTimeLayout),
			To:   r.End.UTC().Format(wireTimeLayout),
		},
		Interval: interval.String(),
	}

	resp, err := c.http.SendRequest(ctx, &apphttp.RequestOptions{
		Method: apphttp.MethodPost,
		URL:    c.baseURL + c.queryPath,
		Body:   req,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("query status %d: %s", resp.StatusCode, body)
	}

	var out []querySeries
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}

	points, err := toDataPoints(pickSeries(out, signal))
	if err != nil {
		return nil, err
	}

	if c.log != nil {
		c.log.Debug("archiver fetch",
			logger.String("signal", signal),
			logger.Int("points", len(points)),
			logger.Duration("duration_ms", time.Since(start)),
		)
	}
	return points, nil
}

// Health checks that the gateway answers at all. Any HTTP status counts;
// only a transport failure is unhealthy.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.SendRequest(ctx, &apphttp.RequestOptions{
		Method: apphttp.MethodGet,
		URL:    c.baseURL,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrBackendUnreachable, err)
	}
	resp.Body.Close()
	return nil
}

// Close satisfies repository.Archive; the HTTP client has no state to
// tear down.
func (c *Client) Close() error {
	return nil
}

func pickSeries(out []querySeries, signal string) *querySeries {
	if len(out) == 0 {
		return nil
	}
	for i := range out {
		if out[i].Target == signal {
			return &out[i]
		}
	}
	return &out[0]
}

func toDataPoints(s *querySeries) ([]models.DataPoint, error) {
	if s == nil {
		return nil, nil
	}
	points := make([]models.DataPoint, 0, len(s.Datapoints))
	for i, dp := range s.Datapoints {
		if len(dp) != 2 {
			return nil, fmt.Errorf("datapoint %d has %d elements, want 2", i, len(dp))
		}
		if dp[1] == nil {
			return nil, fmt.Errorf("datapoint %d has null timestamp", i)
		}
		points = append(points, models.DataPoint{
			Time:  time.UnixMilli(int64(*dp[1])).UTC(),
			Value: dp[0],
		})
	}
	return points, nil
}
