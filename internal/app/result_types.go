package app

import (
	"time"

	"seva-invoicing/internal/core"
)

// HealthResult is returned by Health.
type HealthResult struct {
	Status   string `json:"status"`
	MockMode bool   `json:"mock_mode"`
}

// AdminSession is returned by Authenticate.
type AdminSession struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NextNumberResult is returned by NextNumber.
type NextNumberResult struct {
	InvoiceNumber string            `json:"invoice_number"`
	Format        core.NumberFormat `json:"format"`
	Fallback      bool              `json:"fallback"`
}

// InvoiceResult is returned by single-invoice operations.
type InvoiceResult struct {
	Invoice  *core.Invoice `json:"invoice"`
	Category string        `json:"category"`
}

// ListedInvoice is one history row with its work category.
type ListedInvoice struct {
	core.Invoice
	Category string `json:"category"`
}

// InvoiceListResult is returned by ListInvoices.
type InvoiceListResult struct {
	Invoices []ListedInvoice `json:"invoices"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	HasMore  bool            `json:"has_more"`
}
