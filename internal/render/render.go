// Package render produces the printable PDF for a stored invoice.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"

	"seva-invoicing/internal/core"
	"seva-invoicing/internal/logger"
)

var (
	// ErrMissingField is returned when an invoice lacks data the document needs.
	ErrMissingField = errors.New("invoice is missing a required field")
	// ErrAssetTimeout is returned when the logo could not be loaded in time.
	ErrAssetTimeout = errors.New("timed out loading document asset")
)

// Company is the letterhead printed on every invoice.
type Company struct {
	Name    string
	Tagline string
	Address string
	Phone   string
	Email   string
	Logo    string // file path or http(s) URL; empty for none
}

// Document is a rendered file ready for download.
type Document struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Renderer turns invoices into A4 PDFs. It is safe for concurrent use.
type Renderer struct {
	company      Company
	assetTimeout time.Duration
	log          zerolog.Logger
}

// New returns a Renderer. A non-positive assetTimeout means 15 seconds.
func New(company Company, assetTimeout time.Duration) *Renderer {
	if assetTimeout <= 0 {
		assetTimeout = 15 * time.Second
	}
	return &Renderer{
		company:      company,
		assetTimeout: assetTimeout,
		log:          logger.WithComponent("render"),
	}
}

// Render draws inv. The same invoice always yields the same bytes.
func (r *Renderer) Render(ctx context.Context, inv *core.Invoice) ([]byte, error) {
	if err := checkInvoice(inv); err != nil {
		return nil, err
	}

	var logo *asset
	if r.company.Logo != "" {
		a, err := loadAsset(ctx, r.company.Logo, r.assetTimeout)
		switch {
		case errors.Is(err, ErrAssetTimeout):
			return nil, err
		case err != nil:
			r.log.Warn().Err(err).Str("logo", r.company.Logo).Msg("logo unavailable, rendering without it")
		default:
			logo = a
		}
	}

	pdf := newDocument(inv)
	l := &layout{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), company: r.company, inv: inv, logo: logo}
	l.draw()
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to render invoice %s: %w", inv.InvoiceNumber, err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write invoice %s: %w", inv.InvoiceNumber, err)
	}
	return buf.Bytes(), nil
}

// Export renders inv as a downloadable document named after its number.
func (r *Renderer) Export(ctx context.Context, inv *core.Invoice) (*Document, error) {
	content, err := r.Render(ctx, inv)
	if err != nil {
		return nil, err
	}
	return &Document{
		Filename:    Filename(inv),
		ContentType: "application/pdf",
		Content:     content,
	}, nil
}

// Filename is the download name for inv.
func Filename(inv *core.Invoice) string {
	return inv.InvoiceNumber + ".pdf"
}

func checkInvoice(inv *core.Invoice) error {
	switch {
	case inv == nil:
		return fmt.Errorf("%w: invoice", ErrMissingField)
	case len(inv.Items) == 0:
		return fmt.Errorf("%w: items", ErrMissingField)
	case inv.InvoiceNumber == "":
		return fmt.Errorf("%w: invoice_number", ErrMissingField)
	case inv.CustomerName == "":
		return fmt.Errorf("%w: customer_name", ErrMissingField)
	case inv.InvoiceDate == "":
		return fmt.Errorf("%w: invoice_date", ErrMissingField)
	}
	return nil
}

// newDocument prepares an A4 page stream whose metadata depends only on inv.
func newDocument(inv *core.Invoice) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	stamp := inv.CreatedAt.UTC()
	if inv.CreatedAt.IsZero() {
		stamp = time.Unix(0, 0).UTC()
	}
	pdf.SetCreationDate(stamp)
	pdf.SetModificationDate(stamp)
	pdf.SetCatalogSort(true)
	pdf.SetTitle("Invoice "+inv.InvoiceNumber, true)
	pdf.SetMargins(marginX, marginTop, marginX)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.AliasNbPages("")
	return pdf
}
