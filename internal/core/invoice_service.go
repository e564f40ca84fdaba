package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"seva-invoicing/internal/logger"
)

// HistoryPageSize is the number of invoices per history page.
const HistoryPageSize = 20

// MaxHistoryPage bounds the page index so row offsets cannot overflow.
const MaxHistoryPage = 1 << 20

// SearchColumns are matched by the free-text history search.
var SearchColumns = []string{"customer_name", "car_model", "invoice_number", "reg_no"}

// ListSort selects the ordering of invoice lists.
type ListSort string

const (
	// SortByInvoiceDate orders by invoice_date, newest first (history view).
	SortByInvoiceDate ListSort = "date"
	// SortByCreated orders by created_at, newest first (records view).
	SortByCreated ListSort = "created"
)

// ListFilter selects one page of invoices.
type ListFilter struct {
	Search   string
	Category string
	Sort     ListSort
	Page     int // zero based
	PageSize int // defaults to HistoryPageSize
}

// ListPage is one page of invoices plus the total match count.
type ListPage struct {
	Invoices []Invoice `json:"invoices"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	HasMore  bool      `json:"has_more"`
}

// InvoiceService creates, reads and deletes invoices.
type InvoiceService interface {
	// NewDraft prepares an unsaved invoice dated today with one empty line
	// item and the next invoice number.
	NewDraft(ctx context.Context, now time.Time) (*Draft, error)

	// NextNumber returns the number a draft dated date would receive.
	NextNumber(ctx context.Context, date time.Time) (string, bool)

	// Create normalizes and validates inv, then inserts it. Invalid invoices
	// never reach the store.
	Create(ctx context.Context, inv Invoice) (*Invoice, error)

	// Submit is Create for an invoice opened with NewDraft. A second submit of
	// the same draft while the first is still running fails with
	// ErrSubmitInFlight. An empty draftID skips the check.
	Submit(ctx context.Context, draftID string, inv Invoice) (*Invoice, error)

	// Get returns one invoice by id or ErrNotFound.
	Get(ctx context.Context, id string) (*Invoice, error)

	// List returns a page of invoices matching the filter.
	List(ctx context.Context, f ListFilter) (*ListPage, error)

	// Delete permanently removes an invoice.
	Delete(ctx context.Context, id string) error
}

type invoiceService struct {
	store     RecordStore
	sequencer *Sequencer
	loc       *time.Location
	log       zerolog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewInvoiceService constructs an InvoiceService. Draft dates are taken in loc.
func NewInvoiceService(store RecordStore, sequencer *Sequencer, loc *time.Location) InvoiceService {
	if loc == nil {
		loc = time.UTC
	}
	return &invoiceService{
		store:     store,
		sequencer: sequencer,
		loc:       loc,
		log:       logger.WithComponent("invoices"),
		inFlight:  make(map[string]struct{}),
	}
}

func (s *invoiceService) NewDraft(ctx context.Context, now time.Time) (*Draft, error) {
	today := now.In(s.loc)
	number, fallback := s.sequencer.Next(ctx, today)
	return &Draft{
		DraftID: uuid.NewString(),
		Invoice: Invoice{
			InvoiceNumber: number,
			InvoiceDate:   today.Format(DateLayout),
			Items:         []LineItem{{}},
		},
		NumberFallback: fallback,
	}, nil
}

func (s *invoiceService) NextNumber(ctx context.Context, date time.Time) (string, bool) {
	return s.sequencer.Next(ctx, date.In(s.loc))
}

func (s *invoiceService) Create(ctx context.Context, inv Invoice) (*Invoice, error) {
	inv.ID = ""
	inv.CreatedAt = time.Time{}
	Normalize(&inv)
	if err := Validate(inv); err != nil {
		return nil, err
	}

	rows, err := s.store.Insert(ctx, []Invoice{inv})
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("failed to create invoice: store returned %d rows", len(rows))
	}

	s.log.Info().
		Str("id", rows[0].ID).
		Str("invoice_number", rows[0].InvoiceNumber).
		Str("total", rows[0].TotalAmount.StringFixed(2)).
		Msg("invoice created")
	return &rows[0], nil
}

func (s *invoiceService) Submit(ctx context.Context, draftID string, inv Invoice) (*Invoice, error) {
	if draftID == "" {
		return s.Create(ctx, inv)
	}
	if !s.begin(draftID) {
		s.log.Warn().Str("draft_id", draftID).Msg("duplicate submit rejected")
		return nil, ErrSubmitInFlight
	}
	defer s.finish(draftID)
	return s.Create(ctx, inv)
}

func (s *invoiceService) begin(draftID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[draftID]; busy {
		return false
	}
	s.inFlight[draftID] = struct{}{}
	return true
}

func (s *invoiceService) finish(draftID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, draftID)
}

func (s *invoiceService) Get(ctx context.Context, id string) (*Invoice, error) {
	inv, err := s.store.Single(ctx, NewQuery().Eq("id", id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get invoice %s: %w", id, err)
	}
	return inv, nil
}

func (s *invoiceService) List(ctx context.Context, f ListFilter) (*ListPage, error) {
	if f.PageSize <= 0 {
		f.PageSize = HistoryPageSize
	}
	if f.Page < 0 {
		f.Page = 0
	}
	if f.Page > MaxHistoryPage {
		f.Page = MaxHistoryPage
	}

	q := NewQuery().WithCount()
	if f.Search != "" {
		q.Or(SearchExpr(f.Search, SearchColumns...))
	}
	if f.Sort == SortByCreated {
		q.Order("created_at", false)
	} else {
		q.Order("invoice_date", false).Order("created_at", false)
	}
	q.Range(f.Page*f.PageSize, (f.Page+1)*f.PageSize-1)

	res, err := s.store.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	// Category filtering applies to the fetched page, like the history view.
	rows := make([]Invoice, 0, len(res.Rows))
	for _, inv := range res.Rows {
		if MatchesCategory(inv.Items, f.Category) {
			rows = append(rows, inv)
		}
	}

	return &ListPage{
		Invoices: rows,
		Total:    res.Count,
		Page:     f.Page,
		PageSize: f.PageSize,
		HasMore:  (f.Page+1)*f.PageSize < res.Count,
	}, nil
}

func (s *invoiceService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete invoice %s: %w", id, err)
	}
	s.log.Info().Str("id", id).Msg("invoice deleted")
	return nil
}
