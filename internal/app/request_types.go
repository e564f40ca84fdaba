package app

import "seva-invoicing/internal/core"

// CreateInvoiceRequest is the input for CreateInvoice. DraftID comes from
// NewDraft; when set, a second submit of the same draft is refused while
// the first is still being saved.
type CreateInvoiceRequest struct {
	DraftID string
	Invoice core.Invoice
}

// ListInvoicesRequest is the input for ListInvoices.
type ListInvoicesRequest struct {
	Search   string
	Category string
	Sort     string // "date" (default) or "created"
	Page     int    // zero based
}
