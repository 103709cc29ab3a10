package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	models "HistPull/internal/domain/models"
	"HistPull/internal/service/export"
	"HistPull/internal/service/jobs"
	"HistPull/internal/service/ratelimit"
	"HistPull/internal/usecase"
	"HistPull/pkg/cache"
	xlogger "HistPull/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type stubResolver struct {
	matches map[string][]string
	err     error
}

func (s *stubResolver) Search(_ context.Context, target string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.matches[target], nil
}

type stubArchive struct {
	mu     sync.Mutex
	points map[string][]models.DataPoint
	down   error
	calls  int
}

func (s *stubArchive) Fetch(_ context.Context, signal string, _ models.TimeRange, _ models.Interval) ([]models.DataPoint, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.points[signal], nil
}

func (s *stubArchive) Health(context.Context) error { return s.down }
func (s *stubArchive) Close() error                 { return nil }

func (s *stubArchive) fetchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubRecorder struct {
	records []*models.RunRecord
}

func (s *stubRecorder) Record(_ context.Context, rec *models.RunRecord) error {
	s.records = append(s.records, rec)
	return nil
}

func (s *stubRecorder) Recent(_ context.Context, limit int) ([]*models.RunRecord, error) {
	if limit > len(s.records) {
		limit = len(s.records)
	}
	return s.records[:limit], nil
}

func (s *stubRecorder) Close() error { return nil }

type stubQueue struct {
	types []string
}

func (s *stubQueue) PublishMessage(_ context.Context, msgType string, _ interface{}) error {
	s.types = append(s.types, msgType)
	return nil
}

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	log, err := xlogger.New(&xlogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func newTestHandler(t *testing.T, fr *stubResolver, fa *stubArchive) (*ArchiveEchoHandler, *echo.Echo) {
	t.Helper()
	resolve := usecase.NewResolveUseCase(fr, nil)
	fetch := usecase.NewFetchUseCase(fa, nil, "rest", 2, 0, nil)
	query := usecase.NewQueryUseCase(resolve, fetch, nil, nil)
	fmtr := export.NewFormatter(time.UTC, export.WithClock(func() time.Time {
		return time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC)
	}))
	exp := usecase.NewExportUseCase(query, fmtr, export.NewWriter(nil), nil, nil, nil)

	h := NewArchiveEchoHandler(testLogger(t), resolve, query, exp, time.UTC)
	e := echo.New()
	h.RegisterRoutes(e)
	return h, e
}

func magFixture() (*stubResolver, *stubArchive) {
	base := time.Date(2024, 5, 14, 6, 0, 0, 0, time.UTC)
	v1, v2 := 1.5, 2.5
	fr := &stubResolver{matches: map[string][]string{
		".*mag.*": {"r1/mag/a/current", "r1/mag/b/current"},
	}}
	fa := &stubArchive{points: map[string][]models.DataPoint{
		"r1/mag/a/current": {{Time: base, Value: &v1}},
		"r1/mag/b/current": {{Time: base, Value: &v2}},
	}}
	return fr, fa
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, e *echo.Echo, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v\nbody: %s", err, w.Body.String())
	}
	return w, env
}

func TestSearchEndpoint(t *testing.T) {
	fr, fa := magFixture()
	_, e := newTestHandler(t, fr, fa)

	w, env := doJSON(t, e, http.MethodPost, "/api/search", map[string]interface{}{
		"patterns": []string{"mag"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}

	var res models.SearchResponse
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if res.Count != 2 || len(res.Matches) != 2 {
		t.Fatalf("unexpected response: %+v", res)
	}
	if res.Matches[0] != "r1/mag/a/current" {
		t.Fatalf("match order: %v", res.Matches)
	}
}

func TestSearchRejectsEmptyBody(t *testing.T) {
	fr, fa := magFixture()
	_, e := newTestHandler(t, fr, fa)

	w, _ := doJSON(t, e, http.MethodPost, "/api/search", map[string]interface{}{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", w.Code)
	}
}

func TestSearchRateLimit(t *testing.T) {
	fr, fa := magFixture()
	h, e := newTestHandler(t, fr, fa)
	h.WithRateLimiter(ratelimit.New())

	codes := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		w, _ := doJSON(t, e, http.MethodPost, "/api/search", map[string]interface{}{
			"patterns": []string{"mag"},
		})
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK {
		t.Fatalf("first request rejected: %v", codes)
	}
	if codes[5] != http.StatusTooManyRequests {
		t.Fatalf("sixth request not limited: %v", codes)
	}
}

func TestQueryEndpoint(t *testing.T) {
	fr, fa := magFixture()
	_, e := newTestHandler(t, fr, fa)

	w, env := doJSON(t, e, http.MethodPost, "/api/query", map[string]interface{}{
		"patterns": []string{"mag"},
		"from":     "2024-05-14T00:00:00",
		"to":       "2024-05-14T12:00:00",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}

	var res models.QueryResponse
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if res.Backend != "rest" || res.Interval != "0.1s" {
		t.Fatalf("defaults not applied: backend=%s interval=%s", res.Backend, res.Interval)
	}
	if len(res.Series) != 2 || len(res.Summaries) != 2 {
		t.Fatalf("expected 2 series and summaries, got %d/%d", len(res.Series), len(res.Summaries))
	}
	if len(res.Series[0].Points) != 1 || res.Series[0].Points[0].Value == nil {
		t.Fatalf("unexpected first series: %+v", res.Series[0])
	}
	if *res.Series[0].Points[0].Value != 1.5 {
		t.Fatalf("first value: got %v", *res.Series[0].Points[0].Value)
	}
}

func TestQueryRejectsBadTimestamp(t *testing.T) {
	fr, fa := magFixture()
	_, e := newTestHandler(t, fr, fa)

	w, _ := doJSON(t, e, http.MethodPost, "/api/query", map[string]interface{}{
		"patterns": []string{"mag"},
		"from":     "yesterday-ish",
		"to":       "2024-05-14T12:00:00",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", w.Code)
	}
	if fa.fetchCalls() != 0 {
		t.Fatalf("archive touched on invalid input: %d calls", fa.fetchCalls())
	}
}

func TestQueryRejectsUnknownBackend(t *testing.T) {
	fr, fa := magFixture()
	_, e := newTestHandler(t, fr, fa)

	w, _ := doJSON(t, e, http.MethodPost, "/api/query", map[string]interface{}{
		"patterns": []string{"mag"},
		"from":     "2024-05-14T00:00:00",
		"to":       "2024-05-14T12:00:00",
		"backend":  "carrier-pigeon",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", w.Code)
	}
}

func TestQueryResponseCache(t *testing.T) {
	fr, fa := magFixture()
	h, e := newTestHandler(t, fr, fa)
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { mem.Close() })
	h.WithQueryCache(mem, time.Minute)

	body := map[string]interface{}{
		"patterns": []string{"mag"},
		"from":     "2024-05-14T00:00:00",
		"to":       "2024-05-14T12:00:00",
	}
	w1, env1 := doJSON(t, e, http.MethodPost, "/api/query", body)
	if w1.Code != http.StatusOK {
		t.Fatalf("first query: %d", w1.Code)
	}
	if fa.fetchCalls() != 2 {
		t.Fatalf("expected 2 fetches on first query, got %d", fa.fetchCalls())
	}

	w2, env2 := doJSON(t, e, http.MethodPost, "/api/query", body)
	if w2.Code != http.StatusOK {
		t.Fatalf("second query: %d", w2.Code)
	}
	if fa.fetchCalls() != 2 {
		t.Fatalf("cached query still hit the archive: %d calls", fa.fetchCalls())
	}
	if !bytes.Equal(env1.Data, env2.Data) {
		t.Fatal("cached response differs from original")
	}
}

func TestExportEndpointWritesFiles(t *testing.T) {
	fr, fa := magFixture()
	_, e := newTestHandler(t, fr, fa)
	root := filepath.Join(t.TempDir(), "scan_")

	w, env := doJSON(t, e, http.MethodPost, "/api/export", map[string]interface{}{
		"patterns":    []string{"mag"},
		"from":        "2024-05-14T00:00:00",
		"to":          "2024-05-14T12:00:00",
		"target":      "files",
		"output_root": root,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}

	var report models.ExportReport
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Signals != 2 || report.Points != 2 || len(report.Files) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if _, err := os.Stat(report.Files[0]); err != nil {
		t.Fatalf("reported file missing: %v", err)
	}
}

func TestJobsDisabled(t *testing.T) {
	fr, fa := magFixture()
	_, e := newTestHandler(t, fr, fa)

	w, _ := doJSON(t, e, http.MethodPost, "/api/jobs", map[string]interface{}{
		"patterns":    []string{"mag"},
		"from":        "2024-05-14T00:00:00",
		"to":          "2024-05-14T12:00:00",
		"output_root": "out/scan_",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", w.Code)
	}
}

func TestJobSubmitAndStatus(t *testing.T) {
	fr, fa := magFixture()
	h, e := newTestHandler(t, fr, fa)
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { mem.Close() })
	q := &stubQueue{}
	h.WithJobs(jobs.NewService(q, mem, time.Hour, nil))

	w, env := doJSON(t, e, http.MethodPost, "/api/jobs", map[string]interface{}{
		"patterns":    []string{"mag"},
		"from":        "2024-05-14T00:00:00",
		"to":          "2024-05-14T12:00:00",
		"output_root": "out/scan_",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var st jobs.JobStatus
	if err := json.Unmarshal(env.Data, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.ID == "" || st.State != jobs.StateQueued {
		t.Fatalf("unexpected submit status: %+v", st)
	}
	if len(q.types) != 1 {
		t.Fatalf("expected 1 enqueued message, got %d", len(q.types))
	}

	w2, env2 := doJSON(t, e, http.MethodGet, "/api/jobs/"+st.ID, nil)
	if w2.Code != http.StatusOK {
		t.Fatalf("lookup status: got %d", w2.Code)
	}
	var got jobs.JobStatus
	if err := json.Unmarshal(env2.Data, &got); err != nil {
		t.Fatalf("decode lookup: %v", err)
	}
	if got.State != jobs.StateQueued {
		t.Fatalf("lookup state: got %s", got.State)
	}

	w3, _ := doJSON(t, e, http.MethodGet, "/api/jobs/no-such-job", nil)
	if w3.Code != http.StatusNotFound {
		t.Fatalf("unknown job: got %d, want 404", w3.Code)
	}
}

func TestRunsEndpoint(t *testing.T) {
	fr, fa := magFixture()
	h, e := newTestHandler(t, fr, fa)
	now := time.Now()
	h.WithRecorder(&stubRecorder{records: []*models.RunRecord{
		{ID: 2, Mode: "api", Patterns: "mag", StartedAt: now, FinishedAt: now},
		{ID: 1, Mode: "fetch", Patterns: "cab01", StartedAt: now, FinishedAt: now},
	}})

	w, env := doJSON(t, e, http.MethodGet, "/api/runs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var list struct {
		Rows  []models.RunPayload `json:"rows"`
		Total int64               `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 2 || len(list.Rows) != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}
	if list.Rows[0].ID != 2 || list.Rows[0].Mode != "api" {
		t.Fatalf("unexpected first row: %+v", list.Rows[0])
	}

	w2, env2 := doJSON(t, e, http.MethodGet, "/api/runs?limit=1", nil)
	if w2.Code != http.StatusOK {
		t.Fatalf("limited status: got %d", w2.Code)
	}
	if err := json.Unmarshal(env2.Data, &list); err != nil {
		t.Fatalf("decode limited list: %v", err)
	}
	if len(list.Rows) != 1 {
		t.Fatalf("limit ignored: %d rows", len(list.Rows))
	}
}

func TestHealthEndpoint(t *testing.T) {
	fr, fa := magFixture()
	h, e := newTestHandler(t, fr, fa)
	h.WithArchiveProbe(fa)

	w, _ := doJSON(t, e, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthy status: got %d", w.Code)
	}

	fa.down = models.ErrBackendUnreachable
	w2, _ := doJSON(t, e, http.MethodGet, "/health", nil)
	if w2.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded status: got %d, want 503", w2.Code)
	}
}

func TestStreamBatchesFrames(t *testing.T) {
	base := time.Date(2024, 5, 14, 6, 0, 0, 0, time.UTC)
	points := make([]models.DataPoint, 1200)
	for i := range points {
		v := float64(i)
		points[i] = models.DataPoint{Time: base.Add(time.Duration(i) * 100 * time.Millisecond), Value: &v}
	}
	fr := &stubResolver{matches: map[string][]string{
		".*bpm1.*": {"r3/beam/bpm1/x"},
	}}
	fa := &stubArchive{points: map[string][]models.DataPoint{"r3/beam/bpm1/x": points}}
	_, e := newTestHandler(t, fr, fa)

	ts := httptest.NewServer(e)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") +
		"/api/stream?pattern=bpm1&from=2024-05-14T00:00:00&to=2024-05-14T12:00:00"

	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	defer resp.Body.Close()

	var frames []StreamFrame
	for {
		var f StreamFrame
		if err := ws.ReadJSON(&f); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		frames = append(frames, f)
		if f.Last {
			break
		}
	}

	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	if len(frames[0].Points) != 500 || len(frames[1].Points) != 500 || len(frames[2].Points) != 200 {
		t.Fatalf("frame sizes: %d/%d/%d", len(frames[0].Points), len(frames[1].Points), len(frames[2].Points))
	}
	for i, f := range frames {
		if f.Seq != i {
			t.Fatalf("frame %d has seq %d", i, f.Seq)
		}
		if f.Signal != "r3/beam/bpm1/x" {
			t.Fatalf("frame %d signal: %s", i, f.Signal)
		}
	}
	if frames[0].Last || frames[1].Last || !frames[2].Last {
		t.Fatal("last flag set on the wrong frame")
	}
	if v := frames[2].Points[199].Value; v == nil || *v != 1199 {
		t.Fatalf("unexpected final point: %v", v)
	}
}

func TestStreamNoMatchRejectsBeforeUpgrade(t *testing.T) {
	fr := &stubResolver{matches: map[string][]string{}}
	_, e := newTestHandler(t, fr, &stubArchive{})

	ts := httptest.NewServer(e)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") +
		"/api/stream?pattern=nothing&from=2024-05-14T00:00:00&to=2024-05-14T12:00:00"

	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		ws.Close()
		t.Fatal("expected the handshake to fail")
	}
	if resp == nil {
		t.Fatalf("no HTTP response: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStreamAmbiguousPattern(t *testing.T) {
	fr := &stubResolver{matches: map[string][]string{
		".*mag.*": {"r1/mag/a/current", "r1/mag/b/current"},
	}}
	_, e := newTestHandler(t, fr, &stubArchive{})

	ts := httptest.NewServer(e)
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") +
		"/api/stream?pattern=mag&from=2024-05-14T00:00:00&to=2024-05-14T12:00:00"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected the handshake to fail")
	}
	if resp == nil {
		t.Fatalf("no HTTP response: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status: got %d, want 409", resp.StatusCode)
	}
}
