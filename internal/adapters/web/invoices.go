package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"seva-invoicing/internal/app"
	"seva-invoicing/internal/core"
)

// createInvoiceRequest is the POST /api/invoices body: the invoice fields
// plus the draft id issued by GET /api/invoices/draft.
type createInvoiceRequest struct {
	DraftID string `json:"draft_id"`
	core.Invoice
}

// apiDraft handles GET /api/invoices/draft.
func (h *Handler) apiDraft(w http.ResponseWriter, r *http.Request) {
	draft, err := h.svc.NewDraft(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, draft)
}

// apiNextNumber handles GET /api/invoices/next-number?date=YYYY-MM-DD.
func (h *Handler) apiNextNumber(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.NextNumber(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiListInvoices handles GET /api/invoices?q=&category=&page=&sort=.
// Store failures degrade to an empty page so the history view still loads.
func (h *Handler) apiListInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := 0
	if p := q.Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > core.MaxHistoryPage {
			writeError(w, r, fmt.Sprintf("page must be an integer between 0 and %d", core.MaxHistoryPage), "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		page = n
	}

	res, err := h.svc.ListInvoices(r.Context(), app.ListInvoicesRequest{
		Search:   q.Get("q"),
		Category: q.Get("category"),
		Sort:     q.Get("sort"),
		Page:     page,
	})
	if err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			writeServiceError(w, r, err)
			return
		}
		h.log.Error().Err(err).Str("request_id", requestIDFromContext(r.Context())).Msg("failed to list invoices")
		res = &app.InvoiceListResult{Invoices: []app.ListedInvoice{}, Page: page, PageSize: core.HistoryPageSize}
	}
	writeJSON(w, res)
}

// apiRecentInvoices handles GET /api/invoices/recent?limit=N.
func (h *Handler) apiRecentInvoices(w http.ResponseWriter, r *http.Request) {
	limit := core.RecentDashboardSize
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, r, "limit must be between 1 and 100", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		limit = n
	}

	invoices, err := h.svc.RecentInvoices(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Str("request_id", requestIDFromContext(r.Context())).Msg("failed to load recent invoices")
		invoices = []core.Invoice{}
	}
	writeJSON(w, map[string]any{"invoices": invoices})
}

// apiCreateInvoice handles POST /api/invoices. A draft that was already saved
// returns the saved invoice again instead of inserting a duplicate, and a
// draft whose first submit is still running gets 409.
func (h *Handler) apiCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	saved, err := h.submitted.claim(req.DraftID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if saved != nil {
		writeJSON(w, saved)
		return
	}

	res, err := h.svc.CreateInvoice(r.Context(), app.CreateInvoiceRequest{
		DraftID: req.DraftID,
		Invoice: req.Invoice,
	})
	if err != nil {
		h.submitted.release(req.DraftID)
		if !errors.Is(err, core.ErrValidation) {
			h.log.Error().Err(err).Str("request_id", requestIDFromContext(r.Context())).Msg("failed to save invoice")
		}
		writeServiceError(w, r, err)
		return
	}
	h.submitted.put(req.DraftID, res)

	w.Header().Set("Location", "/api/invoices/"+res.Invoice.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, res)
}

// apiGetInvoice handles GET /api/invoices/{id}.
func (h *Handler) apiGetInvoice(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiDeleteInvoice handles DELETE /api/invoices/{id}.
func (h *Handler) apiDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteInvoice(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.submitted.forget(id)
	w.WriteHeader(http.StatusNoContent)
}

// apiInvoicePDF handles GET /api/invoices/{id}/pdf as a file download.
func (h *Handler) apiInvoicePDF(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.ExportInvoice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Content)))
	_, _ = w.Write(doc.Content)
}
