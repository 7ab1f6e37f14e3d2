package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hojsle/internal/collect"
	"hojsle/internal/config"
	"hojsle/internal/source"
	"hojsle/internal/store"
	"hojsle/internal/universe"
	"hojsle/internal/util"
)

func main() {
	cfgPath := "config/hojsle.yaml"
	if p := os.Getenv("HOJSLE_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Dual logger: stdout + /tmp log file.
	logFileName := fmt.Sprintf("/tmp/kr-raw-build-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.Create(logFileName)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	w := io.MultiWriter(os.Stdout, logFile)
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start, err := time.Parse("2006-01-02", cfg.Collect.StartDate)
	if err != nil {
		log.Fatalf("invalid collect.start_date %q: %v", cfg.Collect.StartDate, err)
	}
	end := time.Now().UTC().AddDate(0, 0, -1) // through yesterday

	timeout := time.Duration(cfg.Sources.TimeoutSeconds) * time.Second
	limiter := util.NewRateLimiter(cfg.Sources.RateLimitPerMin)

	resolver := universe.NewResolver(cfg.Sources.ListingBaseURL, cfg.Sources.PortalBaseURL, timeout)
	uni, err := resolver.Resolve(ctx)
	if err != nil {
		log.Fatalf("resolving universe: %v", err)
	}
	slog.Info("universe resolved", "symbols", uni.Count())

	fetcher := source.NewFallback(
		source.NewQuotesSource(cfg.Sources.QuotesBaseURL, timeout, limiter),
		source.NewPortalSource(cfg.Sources.PortalBaseURL, cfg.Sources.PortalCount, timeout, limiter),
		source.NewKRXSource(cfg.Sources.KRXBaseURL, timeout, limiter),
	)

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	collector := collect.New(fetcher, pstore,
		collect.NewDiagLogs(cfg.Storage.DataDir),
		util.NewTradingCalendar(),
		cfg.Collect.ProgressEvery)

	startedAt := time.Now()
	slog.Info("starting bulk build",
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
		"rateLimit", limiter.PerMinute(),
		"logFile", logFileName)

	res, err := collector.BulkBuild(ctx, uni.Sorted(), start, end)
	if err != nil {
		log.Fatalf("bulk build failed: %v", err)
	}

	recordRun(ctx, cfg.Storage.SQLitePath, res, startedAt)

	slog.Info("bulk build finished",
		"rowsAfter", res.Merge.RowsAfter,
		"failed", len(res.Outcome.Failed),
		"fallback", len(res.Outcome.Fallback))
}

// recordRun saves run history; failures here are logged, never fatal.
func recordRun(ctx context.Context, dbPath string, res *collect.Result, startedAt time.Time) {
	rs, err := store.NewSQLiteRunStore(dbPath)
	if err != nil {
		slog.Warn("opening run-history db", "error", err)
		return
	}
	defer rs.Close()

	run := &store.RunRecord{
		Mode:       res.Mode,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		StartDate:  res.StartDate.Format("2006-01-02"),
		EndDate:    res.EndDate.Format("2006-01-02"),
		DaysFound:  res.DaysFound,
		RowsMerged: res.Merge.RowsNew,
		Failed:     res.Outcome.SortedFailed(),
		Fallback:   res.Outcome.SortedFallback(),
		KRXUsed:    res.Outcome.SortedKRXUsed(),
	}
	if err := rs.SaveRun(ctx, run); err != nil {
		slog.Warn("saving run record", "error", err)
	}
}
