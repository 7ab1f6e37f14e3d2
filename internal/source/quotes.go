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
var _ Source = (*QuotesSource)(nil)

// marketSuffixes are the ticker suffixes for the two KRX sub-markets, tried
// in order. KOSPI-listed symbols resolve under .KS, KOSDAQ under .KQ.
var marketSuffixes = []string{".KS", ".KQ"}

// QuotesSource is the primary (tier A) adapter: the historical quotes
// provider's v8 chart endpoint, addressed by <code><suffix> tickers.
type QuotesSource struct {
	baseURL string
	client  *http.Client
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewQuotesSource creates the tier-A adapter against the given base URL.
func NewQuotesSource(baseURL string, timeout time.Duration, limiter *util.RateLimiter) *QuotesSource {
	return &QuotesSource{
		baseURL: baseURL,
		client:  newHTTPClient(timeout),
		limiter: limiter,
		log:     slog.Default().With("source", "quotes"),
	}
}

// Name returns the adapter identifier.
func (s *QuotesSource) Name() string { return "quotes" }

// Fetch tries each market-suffix variant of the code in sequence and returns
// the first non-empty normalised result. A failure on one suffix means "try
// the next suffix", never a fatal error.
func (s *QuotesSource) Fetch(ctx context.Context, code string, start, end time.Time) ([]domain.Quote, error) {
	for _, suffix := range marketSuffixes {
		ticker := code + suffix
		frame, err := s.fetchTicker(ctx, ticker, start, end)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Debug("suffix attempt failed", "ticker", ticker, "err", err)
			continue
		}
		if quotes := schema.Normalize(frame, code); len(quotes) > 0 {
			return filterRange(quotes, start, end), nil
		}
	}
	return nil, nil
}

// chartResponse is the provider's v8 chart JSON envelope.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// fetchTicker pulls one ticker's daily chart and shapes it as a raw frame
// with the provider's composite (ticker, field) headers.
func (s *QuotesSource) fetchTicker(ctx context.Context, ticker string, start, end time.Time) (schema.RawFrame, error) {
	if err := wait(ctx, s.limiter); err != nil {
		return schema.RawFrame{}, err
	}

	url := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		s.baseURL, ticker, start.Unix(), end.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return schema.RawFrame{}, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return schema.RawFrame{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return schema.RawFrame{}, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return schema.RawFrame{}, err
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return schema.RawFrame{}, err
	}
	if parsed.Chart.Error != nil {
		return schema.RawFrame{}, fmt.Errorf("chart error: %s", parsed.Chart.Error.Code)
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return schema.RawFrame{}, nil
	}

	result := parsed.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	// Composite headers mirror the provider's (ticker, field) column levels;
	// the normaliser flattens them to the final segment.
	frame := schema.RawFrame{
		Columns: []string{
			ticker + "|Date",
			ticker + "|Open",
			ticker + "|High",
			ticker + "|Low",
			ticker + "|Close",
			ticker + "|Volume",
		},
	}
	for i, ts := range result.Timestamp {
		frame.Rows = append(frame.Rows, []string{
			time.Unix(ts, 0).UTC().Format("2006-01-02"),
			optCell(quote.Open, i),
			optCell(quote.High, i),
			optCell(quote.Low, i),
			optCell(quote.Close, i),
			optCell(quote.Volume, i),
		})
	}
	return frame, nil
}

// optCell renders a nullable series value, empty when the provider sent null
// or the series is ragged.
func optCell(series []*float64, i int) string {
	if i >= len(series) || series[i] == nil {
		return ""
	}
	return strconv.FormatFloat(*series[i], 'f', -1, 64)
}
