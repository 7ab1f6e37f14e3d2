package httpapi

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"

	"hojsle/internal/domain"
	"hojsle/pkg/hojsle"
)

func toQuoteJSON(q domain.Quote) hojsle.QuoteJSON {
	return hojsle.QuoteJSON{
		Date:   q.Date.Format("2006-01-02"),
		Code:   q.Code,
		Open:   optFloat(q.Open),
		High:   optFloat(q.High),
		Low:    optFloat(q.Low),
		Close:  optFloat(q.Close),
		Volume: optFloat(q.Volume),
	}
}

func optFloat(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writing JSON response", "error", err)
	}
}
