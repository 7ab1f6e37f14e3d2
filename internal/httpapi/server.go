// Package httpapi serves the read-only query API over the cumulative quote
// store. It is a convenience surface for downstream consumers (notebooks,
// dashboards) and never writes to the store.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hojsle/internal/domain"
	"hojsle/internal/store"
	"hojsle/pkg/hojsle"
)

// Server serves the quote query API.
type Server struct {
	dataDir string
	store   *store.ParquetStore
	log     *slog.Logger

	mu         sync.RWMutex
	quotes     []domain.Quote // full store, sorted by (date, code)
	symbols    []string
	dates      []string
	loaded     time.Time
	storeMTime time.Time // store file mtime at last load
}

// NewServer creates a Server over the given store.
func NewServer(dataDir string, ps *store.ParquetStore, log *slog.Logger) *Server {
	return &Server{
		dataDir: dataDir,
		store:   ps,
		log:     log,
	}
}

// Init loads the store and the snapshot date list. Call before serving.
func (s *Server) Init(ctx context.Context) error {
	return s.refresh(ctx)
}

// refresh reloads the cumulative store and re-scans the DAILY directory.
// The two reads are independent, so they run concurrently.
func (s *Server) refresh(ctx context.Context) error {
	var quotes []domain.Quote
	var dates []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if !s.store.Exists() {
			return nil
		}
		var err error
		quotes, err = s.store.Load(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		dates, err = listSnapshotDates(s.dataDir)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("loading store: %w", err)
	}

	symbolSet := make(map[string]struct{})
	for _, q := range quotes {
		symbolSet[q.Code] = struct{}{}
	}
	symbols := make([]string, 0, len(symbolSet))
	for code := range symbolSet {
		symbols = append(symbols, code)
	}
	sort.Strings(symbols)

	var mtime time.Time
	if info, err := os.Stat(s.store.StorePath()); err == nil {
		mtime = info.ModTime()
	}

	s.mu.Lock()
	s.quotes = quotes
	s.symbols = symbols
	s.dates = dates
	s.loaded = time.Now()
	s.storeMTime = mtime
	s.mu.Unlock()

	s.log.Info("store loaded", "rows", len(quotes), "symbols", len(symbols), "snapshots", len(dates))
	return nil
}

// maybeRefresh reloads the store when the file on disk has changed since the
// last load, so a patch run finishing while the server is up becomes visible
// on the next request.
func (s *Server) maybeRefresh(ctx context.Context) {
	info, err := os.Stat(s.store.StorePath())
	if err != nil {
		return
	}

	s.mu.RLock()
	mtime := s.storeMTime
	s.mu.RUnlock()
	if info.ModTime().Equal(mtime) {
		return
	}

	if err := s.refresh(ctx); err != nil {
		s.log.Warn("refreshing store", "error", err)
	}
}

// listSnapshotDates scans <dataDir>/DAILY for snapshot files and returns
// their dates as ISO strings, ascending.
func listSnapshotDates(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(dataDir, "DAILY"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dates []string
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".parquet")
		if len(name) != 8 || name == entry.Name() {
			continue
		}
		d, err := time.Parse("20060102", name)
		if err != nil {
			continue
		}
		dates = append(dates, d.Format("2006-01-02"))
	}
	sort.Strings(dates)
	return dates, nil
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/quotes", s.handleQuotes)
	mux.HandleFunc("GET /api/v1/symbols", s.handleSymbols)
	mux.HandleFunc("GET /api/v1/dates", s.handleDates)
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	return corsMiddleware(mux)
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	s.maybeRefresh(r.Context())

	code := domain.PadCode(r.URL.Query().Get("code"))
	if code == "" {
		http.Error(w, "code required", http.StatusBadRequest)
		return
	}

	var start, end time.Time
	var err error
	if v := r.URL.Query().Get("start"); v != "" {
		if start, err = time.Parse("2006-01-02", v); err != nil {
			http.Error(w, "invalid start date", http.StatusBadRequest)
			return
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		if end, err = time.Parse("2006-01-02", v); err != nil {
			http.Error(w, "invalid end date", http.StatusBadRequest)
			return
		}
	}

	s.mu.RLock()
	quotes := s.quotes
	s.mu.RUnlock()

	var rows []hojsle.QuoteJSON
	for _, q := range quotes {
		if q.Code != code {
			continue
		}
		if !start.IsZero() && q.Date.Before(start) {
			continue
		}
		if !end.IsZero() && q.Date.After(end) {
			continue
		}
		rows = append(rows, toQuoteJSON(q))
	}
	if rows == nil {
		rows = []hojsle.QuoteJSON{}
	}

	writeJSON(w, hojsle.QuotesResponse{Code: code, Quotes: rows})
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	s.maybeRefresh(r.Context())

	s.mu.RLock()
	symbols := s.symbols
	s.mu.RUnlock()
	if symbols == nil {
		symbols = []string{}
	}
	writeJSON(w, hojsle.SymbolsResponse{Symbols: symbols})
}

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	s.maybeRefresh(r.Context())

	s.mu.RLock()
	dates := s.dates
	s.mu.RUnlock()
	if dates == nil {
		dates = []string{}
	}
	writeJSON(w, hojsle.DatesResponse{Dates: dates})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.maybeRefresh(r.Context())

	s.mu.RLock()
	rows := len(s.quotes)
	loaded := s.loaded
	s.mu.RUnlock()

	writeJSON(w, hojsle.HealthResponse{
		Status:   "ok",
		Rows:     rows,
		LoadedAt: loaded.UTC().Format(time.RFC3339),
	})
}
