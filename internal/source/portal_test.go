package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func portalPayload() string {
	return `{"chart":{"result":[
		{"date":"20240104","open":69800,"high":70200,"low":69500,"close":70000,"volume":900000},
		{"date":"20240105","open":70000,"high":71000,"low":69500,"close":70500,"volume":1000000}
	]}}`
}

func TestPortalFetchNormalises(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/stock/005930/chart" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("period"); got != "DAY" {
			t.Errorf("period = %q, want DAY", got)
		}
		if got := r.URL.Query().Get("count"); got != "4500" {
			t.Errorf("count = %q, want 4500", got)
		}
		fmt.Fprint(w, portalPayload())
	}))
	defer srv.Close()

	s := NewPortalSource(srv.URL, 0, time.Second, nil)
	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)

	quotes, err := s.Fetch(context.Background(), "005930", start, end)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("got %d quotes, want 1 (range-filtered to 2024-01-05)", len(quotes))
	}

	q := quotes[0]
	if !q.Date.Equal(start) {
		t.Errorf("Date = %v, want %v (8-digit date converted)", q.Date, start)
	}
	if q.Code != "005930" {
		t.Errorf("Code = %q, want 005930", q.Code)
	}
	if q.Open != 70000 || q.High != 71000 || q.Low != 69500 || q.Close != 70500 || q.Volume != 1000000 {
		t.Errorf("OHLCV = %v/%v/%v/%v/%v, want 70000/71000/69500/70500/1000000",
			q.Open, q.High, q.Low, q.Close, q.Volume)
	}
}

func TestPortalNon200YieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewPortalSource(srv.URL, 100, time.Second, nil)
	quotes, err := s.Fetch(context.Background(), "005930",
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Fetch must swallow a 404: %v", err)
	}
	if len(quotes) != 0 {
		t.Errorf("got %d quotes, want 0", len(quotes))
	}
}

func TestPortalMissingSubstructureYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"unexpected":true}`)
	}))
	defer srv.Close()

	s := NewPortalSource(srv.URL, 100, time.Second, nil)
	quotes, err := s.Fetch(context.Background(), "005930",
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC))
	if err != nil || len(quotes) != 0 {
		t.Errorf("Fetch = %d quotes, err %v; want empty, nil", len(quotes), err)
	}
}

func TestPortalRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, portalPayload())
	}))
	defer srv.Close()

	s := NewPortalSource(srv.URL, 100, time.Second, nil)
	s.EnableRetry(4)
	s.retryBase = time.Millisecond // keep the test fast

	quotes, err := s.Fetch(context.Background(), "005930",
		time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d calls, want 3 (two 429s then success)", got)
	}
	if len(quotes) != 2 {
		t.Errorf("got %d quotes, want 2", len(quotes))
	}
}

func TestPortalDoesNotRetryPermanentStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewPortalSource(srv.URL, 100, time.Second, nil)
	s.EnableRetry(4)
	s.retryBase = time.Millisecond

	quotes, err := s.Fetch(context.Background(), "005930",
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC))
	if err != nil || len(quotes) != 0 {
		t.Errorf("Fetch = %d quotes, err %v; want empty, nil", len(quotes), err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d calls, want 1 (404 is permanent)", got)
	}
}
