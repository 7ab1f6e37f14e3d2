package source

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hojsle/internal/domain"
	"hojsle/internal/schema"
	"hojsle/internal/util"
)

// Compile-time interface check.
var _ Source = (*KRXSource)(nil)

// KRXSource is the 3rd-tier adapter: the exchange statistics provider,
// queried with 8-digit numeric start/end date strings. Its responses carry
// provider-language column keys that are mapped to the canonical English
// names before normalisation. Any failure yields an empty result.
type KRXSource struct {
	baseURL string
	client  *http.Client
	limiter *util.RateLimiter
	log     *slog.Logger
}

// NewKRXSource creates the tier-C adapter against the given base URL.
func NewKRXSource(baseURL string, timeout time.Duration, limiter *util.RateLimiter) *KRXSource {
	return &KRXSource{
		baseURL: baseURL,
		client:  newHTTPClient(timeout),
		limiter: limiter,
		log:     slog.Default().With("source", "krx"),
	}
}

// Name returns the adapter identifier.
func (s *KRXSource) Name() string { return "krx" }

// statRow is one daily entry of the exchange statistics payload. Prices and
// volume arrive as comma-grouped strings; TRD_DD as "YYYY/MM/DD".
type statRow struct {
	TradeDate string `json:"TRD_DD"`
	Open      string `json:"TDD_OPNPRC"`
	High      string `json:"TDD_HGPRC"`
	Low       string `json:"TDD_LWPRC"`
	Close     string `json:"TDD_CLSPRC"`
	Volume    string `json:"ACC_TRDVOL"`
}

// statResponse is the exchange statistics JSON envelope.
type statResponse struct {
	Output []statRow `json:"output"`
}

// Fetch queries the statistics endpoint for the code over [start, end). Any
// exception — transport error, bad status, malformed body — results in an
// empty result, never a propagated error.
func (s *KRXSource) Fetch(ctx context.Context, code string, start, end time.Time) ([]domain.Quote, error) {
	if err := wait(ctx, s.limiter); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, nil
	}

	// The endpoint treats endDd as inclusive; [start, end) maps to end-1d.
	form := url.Values{
		"bld":    {"dbms/MDC/STAT/standard/MDCSTAT01701"},
		"isuCd":  {code},
		"strtDd": {start.Format("20060102")},
		"endDd":  {end.AddDate(0, 0, -1).Format("20060102")},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/comm/bldAttendant/getJsonData.cmd",
		strings.NewReader(form.Encode()))
	if err != nil {
		s.log.Debug("building request failed", "code", code, "err", err)
		return nil, nil
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Debug("statistics fetch failed", "code", code, "err", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Debug("statistics fetch bad status", "code", code, "status", resp.StatusCode)
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil
	}

	var parsed statResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		s.log.Debug("statistics payload malformed", "code", code, "err", err)
		return nil, nil
	}
	if len(parsed.Output) == 0 {
		return nil, nil
	}

	// Provider-language keys mapped to canonical column names.
	frame := schema.RawFrame{
		Columns: []string{"date", "open", "high", "low", "close", "volume"},
	}
	for _, r := range parsed.Output {
		frame.Rows = append(frame.Rows, []string{
			r.TradeDate, r.Open, r.High, r.Low, r.Close, r.Volume,
		})
	}

	return filterRange(schema.Normalize(frame, code), start, end), nil
}
