package core

import (
	"context"
	"fmt"
	"time"
)

// analyticsColumns are the fields the aggregation needs.
var analyticsColumns = []string{
	"id", "invoice_number", "invoice_date", "created_at",
	"customer_name", "customer_phone", "car_model", "total_amount",
}

// ReportingService provides read-only revenue analytics over stored invoices.
type ReportingService interface {
	// GetAnalytics buckets revenue for the week or month containing ref and
	// compares it with the preceding window. ActiveClients is the lifetime
	// count of distinct customer phones.
	GetAnalytics(ctx context.Context, mode ViewMode, ref time.Time) (*Report, error)

	// RecentInvoices returns the n most recent invoices by invoice date.
	RecentInvoices(ctx context.Context, n int) ([]Invoice, error)
}

type reportingService struct {
	store RecordStore
	loc   *time.Location
}

// NewReportingService constructs a ReportingService backed by store.
func NewReportingService(store RecordStore, loc *time.Location) ReportingService {
	if loc == nil {
		loc = time.UTC
	}
	return &reportingService{store: store, loc: loc}
}

func (s *reportingService) GetAnalytics(ctx context.Context, mode ViewMode, ref time.Time) (*Report, error) {
	ref = ref.In(s.loc)
	current, previous := Windows(mode, ref)

	// The store narrows rows to both windows; Aggregate places each row itself.
	res, err := s.store.Select(ctx, NewQuery().
		Select(analyticsColumns...).
		Gte("invoice_date", previous.Start.Format(DateLayout)).
		Lte("invoice_date", current.End.Format(DateLayout)))
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices for analytics: %w", err)
	}
	report := Aggregate(res.Rows, mode, ref, s.loc)

	phones, err := s.store.Select(ctx, NewQuery().Select("customer_phone"))
	if err != nil {
		return nil, fmt.Errorf("failed to count active clients: %w", err)
	}
	report.ActiveClients = ActiveClients(phones.Rows)

	return &report, nil
}

func (s *reportingService) RecentInvoices(ctx context.Context, n int) ([]Invoice, error) {
	if n <= 0 {
		n = RecentDashboardSize
	}
	res, err := s.store.Select(ctx, NewQuery().
		Select(analyticsColumns...).
		Order("invoice_date", false).
		Order("created_at", false).
		Limit(n))
	if err != nil {
		return nil, fmt.Errorf("failed to load recent invoices: %w", err)
	}
	return RecentTransactions(res.Rows, n, s.loc), nil
}
