package web

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"seva-invoicing/internal/app"
	"seva-invoicing/internal/core"
)

// apiAnalytics handles GET /api/analytics?mode=week|month&date=YYYY-MM-DD.
// A store failure yields an empty report rather than an error page.
func (h *Handler) apiAnalytics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := h.svc.GetAnalytics(r.Context(), q.Get("mode"), q.Get("date"))
	if err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			writeServiceError(w, r, err)
			return
		}
		h.log.Error().Err(err).Str("request_id", requestIDFromContext(r.Context())).Msg("failed to load analytics")
		mode, _ := core.ParseViewMode(q.Get("mode"))
		report = &core.Report{
			Mode:          mode,
			Buckets:       []core.Bucket{},
			Total:         decimal.Zero,
			PreviousTotal: decimal.Zero,
			Growth:        decimal.Zero,
			Recent:        []core.Invoice{},
		}
	}
	writeJSON(w, report)
}
