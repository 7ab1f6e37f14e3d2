// Package universe resolves the set of tradable KRX symbol codes by querying
// independent listing sources and unioning the results.
package universe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"hojsle/internal/domain"
)

// markets are the two KRX sub-markets, each with its own listing endpoint.
var markets = []string{"KOSPI", "KOSDAQ"}

// Resolver builds a fresh symbol universe per collection run. A failure on
// any single listing source contributes zero codes from that source; only an
// empty union after all sources aborts the run.
type Resolver struct {
	listingBaseURL string
	tickerBaseURL  string // optional third listing source, "" to disable
	client         *http.Client
	log            *slog.Logger
}

// NewResolver creates a Resolver over the portal listing endpoints.
// tickerBaseURL may be empty when the fallback ticker-listing source is
// unavailable.
func NewResolver(listingBaseURL, tickerBaseURL string, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 7 * time.Second
	}
	return &Resolver{
		listingBaseURL: listingBaseURL,
		tickerBaseURL:  tickerBaseURL,
		client:         &http.Client{Timeout: timeout},
		log:            slog.Default().With("component", "universe"),
	}
}

// listingResponse is the portal's stock listing envelope.
type listingResponse struct {
	Stocks []struct {
		Code string `json:"code"`
	} `json:"stocks"`
}

// Resolve queries every listing source and returns the validated union.
func (r *Resolver) Resolve(ctx context.Context) (*domain.Universe, error) {
	u := domain.NewUniverse()

	for _, market := range markets {
		codes, err := r.fetchListing(ctx, market)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.log.Warn("listing source failed, continuing", "market", market, "err", err)
			continue
		}
		accepted := 0
		for _, code := range codes {
			if u.Add(code) {
				accepted++
			}
		}
		r.log.Info("listing source resolved", "market", market, "codes", accepted)
	}

	if r.tickerBaseURL != "" {
		for _, market := range markets {
			codes, err := r.fetchTickerList(ctx, market)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				r.log.Warn("ticker listing failed, continuing", "market", market, "err", err)
				continue
			}
			for _, code := range codes {
				u.Add(code)
			}
		}
	}

	if u.Count() == 0 {
		return nil, fmt.Errorf("symbol universe is empty after trying all listing sources")
	}

	r.log.Info("universe resolved", "total", u.Count())
	return u, nil
}

// fetchListing pulls one sub-market's {"stocks": [...]} listing.
func (r *Resolver) fetchListing(ctx context.Context, market string) ([]string, error) {
	url := fmt.Sprintf("%s/api/stocks/market/%s", r.listingBaseURL, market)

	body, err := r.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var parsed listingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parsing listing: %w", err)
	}

	codes := make([]string, 0, len(parsed.Stocks))
	for _, s := range parsed.Stocks {
		codes = append(codes, s.Code)
	}
	return codes, nil
}

// fetchTickerList pulls the fallback source's bare code list for one
// sub-market.
func (r *Resolver) fetchTickerList(ctx context.Context, market string) ([]string, error) {
	url := fmt.Sprintf("%s/tickers?market=%s", r.tickerBaseURL, market)

	body, err := r.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var codes []string
	if err := json.Unmarshal(body, &codes); err != nil {
		return nil, fmt.Errorf("parsing ticker list: %w", err)
	}
	return codes, nil
}

func (r *Resolver) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
