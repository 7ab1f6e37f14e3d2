package hojsle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:8090/")

	if c.baseURL != "http://localhost:8090" {
		t.Errorf("baseURL = %q, want trailing slash stripped", c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func TestGetQuotes(t *testing.T) {
	closePx := 70500.0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/quotes" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("code") != "005930" || q.Get("start") != "2024-01-02" || q.Get("end") != "2024-01-05" {
			t.Errorf("query = %v", q)
		}
		json.NewEncoder(w).Encode(QuotesResponse{
			Code: "005930",
			Quotes: []QuoteJSON{
				{Date: "2024-01-05", Code: "005930", Close: &closePx},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	resp, err := c.GetQuotes(context.Background(), "005930",
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("GetQuotes: %v", err)
	}
	if len(resp.Quotes) != 1 || *resp.Quotes[0].Close != 70500 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGetSymbolsAndDates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/symbols":
			json.NewEncoder(w).Encode(SymbolsResponse{Symbols: []string{"000660", "005930"}})
		case "/api/v1/dates":
			json.NewEncoder(w).Encode(DatesResponse{Dates: []string{"2024-01-02"}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	ctx := context.Background()

	symbols, err := c.GetSymbols(ctx)
	if err != nil {
		t.Fatalf("GetSymbols: %v", err)
	}
	if len(symbols) != 2 {
		t.Errorf("symbols = %v", symbols)
	}

	dates, err := c.GetDates(ctx)
	if err != nil {
		t.Fatalf("GetDates: %v", err)
	}
	if len(dates) != 1 || dates[0] != "2024-01-02" {
		t.Errorf("dates = %v", dates)
	}
}

func TestErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Health(context.Background()); err == nil {
		t.Fatal("expected error on 500 response")
	}
}
