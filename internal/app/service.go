package app

import (
	"context"
	"errors"

	"seva-invoicing/internal/core"
	"seva-invoicing/internal/render"
)

var (
	// ErrInvalidInput is returned for malformed request parameters.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials is returned when the admin login does not match.
	ErrInvalidCredentials = errors.New("invalid admin id or password")
	// ErrAuthNotConfigured is returned when no admin credentials are set.
	ErrAuthNotConfigured = errors.New("admin credentials are not configured")
)

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// Health reports liveness and whether the file store is in use.
	Health(ctx context.Context) HealthResult

	// Authenticate checks the shared admin credentials.
	Authenticate(ctx context.Context, email, password string) (*AdminSession, error)

	// NewDraft opens an unsaved invoice dated today.
	NewDraft(ctx context.Context) (*core.Draft, error)

	// NextNumber previews the invoice number for date (YYYY-MM-DD, empty for today).
	NextNumber(ctx context.Context, date string) (*NextNumberResult, error)

	// CreateInvoice validates and stores a submitted draft.
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResult, error)

	// GetInvoice returns one stored invoice.
	GetInvoice(ctx context.Context, id string) (*InvoiceResult, error)

	// ListInvoices returns one page of invoice history.
	ListInvoices(ctx context.Context, req ListInvoicesRequest) (*InvoiceListResult, error)

	// DeleteInvoice permanently removes an invoice.
	DeleteInvoice(ctx context.Context, id string) error

	// GetAnalytics returns revenue buckets for the week or month containing date.
	GetAnalytics(ctx context.Context, mode, date string) (*core.Report, error)

	// RecentInvoices returns the latest invoices for the dashboard.
	RecentInvoices(ctx context.Context, n int) ([]core.Invoice, error)

	// ExportInvoice renders a stored invoice as a PDF download.
	ExportInvoice(ctx context.Context, id string) (*render.Document, error)
}
