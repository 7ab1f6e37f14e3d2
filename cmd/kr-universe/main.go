package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hojsle/internal/config"
	"hojsle/internal/universe"
	"hojsle/internal/util"
)

// kr-universe resolves the current symbol universe and prints it, one code
// per line. Useful for checking listing-endpoint health before a long run.
func main() {
	cfgPath := "config/hojsle.yaml"
	if p := os.Getenv("HOJSLE_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	timeout := time.Duration(cfg.Sources.TimeoutSeconds) * time.Second
	resolver := universe.NewResolver(cfg.Sources.ListingBaseURL, cfg.Sources.PortalBaseURL, timeout)

	uni, err := resolver.Resolve(ctx)
	if err != nil {
		log.Fatalf("resolving universe: %v", err)
	}

	for _, code := range uni.Sorted() {
		fmt.Println(code)
	}
	slog.Info("universe resolved", "symbols", uni.Count())
}
