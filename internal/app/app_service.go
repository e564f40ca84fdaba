package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"seva-invoicing/internal/core"
	"seva-invoicing/internal/logger"
	"seva-invoicing/internal/render"
)

// AdminCredentials is the single shared login. PasswordHash (bcrypt) wins
// over Password when both are set.
type AdminCredentials struct {
	Email        string
	Password     string
	PasswordHash string
}

func (c AdminCredentials) configured() bool {
	return c.Email != "" && (c.Password != "" || c.PasswordHash != "")
}

// Options configures an appService.
type Options struct {
	Credentials  AdminCredentials
	SessionTTL   time.Duration
	Location     *time.Location
	NumberFormat core.NumberFormat
	MockMode     bool
	Now          func() time.Time
}

type appService struct {
	invoices core.InvoiceService
	reports  core.ReportingService
	renderer *render.Renderer
	opts     Options
	log      zerolog.Logger
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	invoices core.InvoiceService,
	reports core.ReportingService,
	renderer *render.Renderer,
	opts Options,
) ApplicationService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * 24 * time.Hour
	}
	return &appService{
		invoices: invoices,
		reports:  reports,
		renderer: renderer,
		opts:     opts,
		log:      logger.WithComponent("app"),
	}
}

func (s *appService) Health(ctx context.Context) HealthResult {
	return HealthResult{Status: "ok", MockMode: s.opts.MockMode}
}

func (s *appService) Authenticate(ctx context.Context, email, password string) (*AdminSession, error) {
	creds := s.opts.Credentials
	if !creds.configured() {
		return nil, ErrAuthNotConfigured
	}

	emailOK := subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(strings.TrimSpace(email))),
		[]byte(strings.ToLower(creds.Email)),
	) == 1

	var passOK bool
	if creds.PasswordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(creds.Password)) == 1
	}

	if !emailOK || !passOK {
		s.log.Warn().Msg("admin login rejected")
		return nil, ErrInvalidCredentials
	}
	return &AdminSession{Email: creds.Email, ExpiresAt: s.opts.Now().Add(s.opts.SessionTTL)}, nil
}

func (s *appService) NewDraft(ctx context.Context) (*core.Draft, error) {
	return s.invoices.NewDraft(ctx, s.opts.Now())
}

func (s *appService) NextNumber(ctx context.Context, date string) (*NextNumberResult, error) {
	day := s.opts.Now()
	if date != "" {
		d, err := time.ParseInLocation(core.DateLayout, date, s.opts.Location)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
		}
		day = d
	}
	number, fallback := s.invoices.NextNumber(ctx, day)
	return &NextNumberResult{InvoiceNumber: number, Format: s.opts.NumberFormat, Fallback: fallback}, nil
}

func (s *appService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResult, error) {
	inv, err := s.invoices.Submit(ctx, req.DraftID, req.Invoice)
	if err != nil {
		return nil, err
	}
	return &InvoiceResult{Invoice: inv, Category: core.Classify(inv.Items)}, nil
}

func (s *appService) GetInvoice(ctx context.Context, id string) (*InvoiceResult, error) {
	inv, err := s.invoices.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &InvoiceResult{Invoice: inv, Category: core.Classify(inv.Items)}, nil
}

func (s *appService) ListInvoices(ctx context.Context, req ListInvoicesRequest) (*InvoiceListResult, error) {
	var sort core.ListSort
	switch req.Sort {
	case "", string(core.SortByInvoiceDate):
		sort = core.SortByInvoiceDate
	case string(core.SortByCreated):
		sort = core.SortByCreated
	default:
		return nil, fmt.Errorf("%w: sort must be %q or %q", ErrInvalidInput, core.SortByInvoiceDate, core.SortByCreated)
	}
	if req.Page < 0 || req.Page > core.MaxHistoryPage {
		return nil, fmt.Errorf("%w: page must be between 0 and %d", ErrInvalidInput, core.MaxHistoryPage)
	}

	page, err := s.invoices.List(ctx, core.ListFilter{
		Search:   strings.TrimSpace(req.Search),
		Category: req.Category,
		Sort:     sort,
		Page:     req.Page,
	})
	if err != nil {
		return nil, err
	}

	listed := make([]ListedInvoice, len(page.Invoices))
	for i, inv := range page.Invoices {
		listed[i] = ListedInvoice{Invoice: inv, Category: core.Classify(inv.Items)}
	}
	return &InvoiceListResult{
		Invoices: listed,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
		HasMore:  page.HasMore,
	}, nil
}

func (s *appService) DeleteInvoice(ctx context.Context, id string) error {
	return s.invoices.Delete(ctx, id)
}

func (s *appService) GetAnalytics(ctx context.Context, mode, date string) (*core.Report, error) {
	m, err := core.ParseViewMode(mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	ref := s.opts.Now()
	if date != "" {
		d, err := time.ParseInLocation(core.DateLayout, date, s.opts.Location)
		if err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
		}
		ref = d
	}
	return s.reports.GetAnalytics(ctx, m, ref)
}

func (s *appService) RecentInvoices(ctx context.Context, n int) ([]core.Invoice, error) {
	return s.reports.RecentInvoices(ctx, n)
}

func (s *appService) ExportInvoice(ctx context.Context, id string) (*render.Document, error) {
	inv, err := s.invoices.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := s.renderer.Export(ctx, inv)
	if err != nil {
		if errors.Is(err, render.ErrMissingField) || errors.Is(err, render.ErrAssetTimeout) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to export invoice %s: %w", inv.InvoiceNumber, err)
	}
	s.log.Info().Str("id", id).Str("filename", doc.Filename).Int("bytes", len(doc.Content)).Msg("invoice exported")
	return doc, nil
}
