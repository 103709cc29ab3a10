package archiver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"HistPull/internal/domain/models"
)

func TestSearch(t *testing.T) {
	var gotBody searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode([]string{"cab01/sig/a", "cab01/sig/b"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "hdb_cluster/history")
	names, err := c.Search(context.Background(), ".*cab01.*")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(names) != 2 || names[0] != "cab01/sig/a" {
		t.Fatalf("unexpected names %v", names)
	}
	if gotBody.CS != "hdb_cluster/history" || gotBody.Target != ".*cab01.*" {
		t.Fatalf("unexpected request %+v", gotBody)
	}
}

func TestFetch(t *testing.T) {
	var gotBody queryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Errorf("path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`[{"target":"cab01/sig/a","datapoints":[[1.5,1709632800000],[null,1709632800100]]}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "hdb_cluster/history")
	r := models.TimeRange{
		Start: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 5, 11, 0, 0, 0, time.UTC),
	}
	points, err := c.Fetch(context.Background(), "cab01/sig/a", r, "0.1s")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if gotBody.Range.From != "2024-03-05T10:00:00.000Z" {
		t.Fatalf("from %q", gotBody.Range.From)
	}
	if gotBody.Range.To != "2024-03-05T11:00:00.000Z" {
		t.Fatalf("to %q", gotBody.Range.To)
	}
	if gotBody.Interval != "0.1s" {
		t.Fatalf("interval %q", gotBody.Interval)
	}
	if len(gotBody.Targets) != 1 || gotBody.Targets[0].Target != "cab01/sig/a" {
		t.Fatalf("targets %+v", gotBody.Targets)
	}

	if len(points) != 2 {
		t.Fatalf("points %d", len(points))
	}
	if points[0].Value == nil || *points[0].Value != 1.5 {
		t.Fatalf("first value %v", points[0].Value)
	}
	if points[1].Value != nil {
		t.Fatalf("second value should be null")
	}
	if !points[0].Time.Equal(time.UnixMilli(1709632800000).UTC()) {
		t.Fatalf("first time %v", points[0].Time)
	}
}

func TestFetchUnreachable(t *testing.T) {
	// Port 1 is never listening.
	c := NewClient("http://127.0.0.1:1", "hdb_cluster/history")
	_, err := c.Fetch(context.Background(), "x", models.TimeRange{
		Start: time.Now().Add(-time.Hour),
		End:   time.Now(),
	}, "0.1s")
	if !errors.Is(err, models.ErrBackendUnreachable) {
		t.Fatalf("expected ErrBackendUnreachable, got %v", err)
	}
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "hdb_cluster/history")
	_, err := c.Fetch(context.Background(), "x", models.TimeRange{
		Start: time.Now().Add(-time.Hour),
		End:   time.Now(),
	}, "0.1s")
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, models.ErrBackendUnreachable) {
		t.Fatalf("server error must not be unreachable: %v", err)
	}
}

func TestFetchEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "hdb_cluster/history")
	points, err := c.Fetch(context.Background(), "x", models.TimeRange{
		Start: time.Now().Add(-time.Hour),
		End:   time.Now(),
	}, "0.1s")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(points) != 0 {
		t.Fatalf("expected empty series, got %d points", len(points))
	}
}
