package hojsle

// QuoteJSON is the wire representation of one daily bar. Missing numeric
// values render as null rather than NaN, which JSON cannot carry.
type QuoteJSON struct {
	Date   string   `json:"date"`
	Code   string   `json:"code"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  *float64 `json:"close"`
	Volume *float64 `json:"volume"`
}

// QuotesResponse is the response for GET /api/v1/quotes.
type QuotesResponse struct {
	Code   string      `json:"code"`
	Quotes []QuoteJSON `json:"quotes"`
}

// SymbolsResponse is the response for GET /api/v1/symbols.
type SymbolsResponse struct {
	Symbols []string `json:"symbols"`
}

// DatesResponse is the response for GET /api/v1/dates.
type DatesResponse struct {
	Dates []string `json:"dates"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Rows     int    `json:"rows"`
	LoadedAt string `json:"loadedAt"`
}
