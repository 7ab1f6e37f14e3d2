package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"hojsle/internal/domain"
	"hojsle/internal/schema"
	"hojsle/internal/util"
)

// Compile-time interface check.
var _ Source = (*PortalSource)(nil)

// PortalSource is the 2nd-tier adapter: the financial portal's JSON chart
// API. One request returns the most recent Count daily rows for a symbol;
// the adapter filters them to the requested range.
//
// In daily-patch runs RetryAttempts is set above 1, enabling bounded
// exponential backoff (1s, 2s, 4s, ...) on 429/500/503 responses. Bulk runs
// leave it at 1: a transient failure there simply falls through to the next
// tier.
type PortalSource struct {
	baseURL       string
	count         int
	retryAttempts int
	retryBase     time.Duration
	client        *http.Client
	limiter       *util.RateLimiter
	log           *slog.Logger
}

// NewPortalSource creates the tier-B adapter against the given base URL.
// count is the fixed page-size parameter sent with every chart request.
func NewPortalSource(baseURL string, count int, timeout time.Duration, limiter *util.RateLimiter) *PortalSource {
	if count <= 0 {
		count = 4500
	}
	return &PortalSource{
		baseURL:       baseURL,
		count:         count,
		retryAttempts: 1,
		retryBase:     time.Second,
		client:        newHTTPClient(timeout),
		limiter:       limiter,
		log:           slog.Default().With("source", "portal"),
	}
}

// EnableRetry turns on bounded exponential-backoff retry for transient HTTP
// failures, capped at attempts tries.
func (s *PortalSource) EnableRetry(attempts int) {
	if attempts > 1 {
		s.retryAttempts = attempts
	}
}

// Name returns the adapter identifier.
func (s *PortalSource) Name() string { return "portal" }

// transientError marks a retryable HTTP response status.
type transientError struct{ status int }

func (e *transientError) Error() string { return fmt.Sprintf("transient status %d", e.status) }

// chartRow is one daily entry in the portal's chart payload. The date is an
// 8-digit YYYYMMDD string.
type chartRow struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// portalResponse is the portal's chart JSON envelope.
type portalResponse struct {
	Chart struct {
		Result []chartRow `json:"result"`
	} `json:"chart"`
}

// Fetch pulls the symbol's daily chart and returns quotes within [start,
// end). Non-200 statuses and missing JSON substructure yield an empty
// result; only transient statuses are retried, and only when retry is
// enabled.
func (s *PortalSource) Fetch(ctx context.Context, code string, start, end time.Time) ([]domain.Quote, error) {
	var rows []chartRow

	fetch := func() error {
		var err error
		rows, err = s.fetchChart(ctx, code)
		return err
	}

	var err error
	if s.retryAttempts > 1 {
		err = util.Retry(ctx, s.retryAttempts, s.retryBase, func() error {
			err := fetch()
			if err == nil {
				return nil
			}
			if _, transient := err.(*transientError); transient {
				return err
			}
			// Permanent failures are not worth another attempt; surface the
			// empty result immediately.
			rows = nil
			return nil
		})
	} else {
		err = fetch()
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Debug("chart fetch failed", "code", code, "err", err)
		return nil, nil
	}
	if len(rows) == 0 {
		return nil, nil
	}

	// 8-digit dates pass through the frame; the normaliser converts them to
	// calendar dates.
	frame := schema.RawFrame{
		Columns: []string{"date", "open", "high", "low", "close", "volume"},
	}
	for _, r := range rows {
		frame.Rows = append(frame.Rows, []string{
			r.Date,
			strconv.FormatFloat(r.Open, 'f', -1, 64),
			strconv.FormatFloat(r.High, 'f', -1, 64),
			strconv.FormatFloat(r.Low, 'f', -1, 64),
			strconv.FormatFloat(r.Close, 'f', -1, 64),
			strconv.FormatFloat(r.Volume, 'f', -1, 64),
		})
	}

	return filterRange(schema.Normalize(frame, code), start, end), nil
}

// fetchChart issues the fixed-path chart request. It returns a
// *transientError for retryable statuses and a plain error otherwise.
func (s *PortalSource) fetchChart(ctx context.Context, code string) ([]chartRow, error) {
	if err := wait(ctx, s.limiter); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/stock/%s/chart?period=DAY&count=%d", s.baseURL, code, s.count)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if util.RetryableStatus(resp.StatusCode) {
		return nil, &transientError{status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var parsed portalResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return parsed.Chart.Result, nil
}
