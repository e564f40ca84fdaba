package core_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seva-invoicing/internal/core"
	"seva-invoicing/internal/logger"
	"seva-invoicing/internal/store"
)

func init() {
	logger.Discard()
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// sampleInvoice builds a valid invoice with two line items totalling 12500.
func sampleInvoice(number, date string) core.Invoice {
	return core.Invoice{
		InvoiceNumber: number,
		InvoiceDate:   date,
		CustomerName:  "Ravi Kumar",
		CustomerPhone: "9000000001",
		CarModel:      "Activa 6G",
		RegNo:         "KA01AB1234",
		Items: []core.LineItem{
			{Description: "Side wheels kit", MRP: d(11000), SellingPrice: d(10000), Amount: d(10000)},
			{Description: "Fitting charges", MRP: d(2500), SellingPrice: d(2500), Amount: d(2500)},
		},
		TotalAmount: d(12500),
	}
}

func newInvoiceService(t *testing.T) (core.InvoiceService, core.RecordStore) {
	t.Helper()
	s := store.NewMemory()
	return core.NewInvoiceService(s, core.NewSequencer(s, core.FormatMonthly), time.UTC), s
}

func TestInvoiceService_NewDraft(t *testing.T) {
	svc, _ := newInvoiceService(t)
	now := time.Date(2025, time.June, 15, 23, 0, 0, 0, time.UTC)

	draft, err := svc.NewDraft(context.Background(), now)
	require.NoError(t, err)

	assert.NotEmpty(t, draft.DraftID)
	assert.Equal(t, "250601", draft.Invoice.InvoiceNumber)
	assert.Equal(t, "2025-06-15", draft.Invoice.InvoiceDate)
	assert.Len(t, draft.Invoice.Items, 1)
	assert.False(t, draft.NumberFallback)
}

func TestInvoiceService_NewDraftUsesServiceLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	s := store.NewMemory()
	svc := core.NewInvoiceService(s, core.NewSequencer(s, core.FormatDaily), ist)

	// 20:00 UTC on the 30th is already the 1st in India.
	draft, err := svc.NewDraft(context.Background(), time.Date(2025, time.June, 30, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2025-07-01", draft.Invoice.InvoiceDate)
	assert.Equal(t, "2507011", draft.Invoice.InvoiceNumber)
}

func TestInvoiceService_CreateNormalizesAndStores(t *testing.T) {
	svc, s := newInvoiceService(t)
	ctx := context.Background()

	inv := sampleInvoice("250601", "2025-06-15")
	inv.CustomerName = "  Ravi Kumar "
	inv.Items[1].Amount = decimal.Zero
	inv.Items = append(inv.Items, core.LineItem{})
	inv.TotalAmount = d(1)

	created, err := svc.Create(ctx, inv)
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, "Ravi Kumar", created.CustomerName)
	assert.Len(t, created.Items, 2)
	assert.True(t, created.Items[1].Amount.Equal(d(2500)))
	assert.True(t, created.TotalAmount.Equal(d(12500)))

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.InvoiceNumber, got.InvoiceNumber)

	res, err := s.Select(ctx, core.NewQuery().WithCount())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
}

func TestInvoiceService_CreateRejectsInvalid(t *testing.T) {
	svc, s := newInvoiceService(t)
	ctx := context.Background()

	inv := sampleInvoice("250601", "2025-06-15")
	inv.CustomerPhone = ""
	inv.Items[0].Amount = d(9000)

	_, err := svc.Create(ctx, inv)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrValidation))

	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "customer_phone")
	assert.Contains(t, verr.Fields, "items[0]")

	res, err := s.Select(ctx, core.NewQuery().WithCount())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count, "invalid invoices never reach the store")
}

func TestInvoiceService_CreateIgnoresClientIdentity(t *testing.T) {
	svc, _ := newInvoiceService(t)

	inv := sampleInvoice("250601", "2025-06-15")
	inv.ID = "client-chosen"
	created, err := svc.Create(context.Background(), inv)
	require.NoError(t, err)
	assert.NotEqual(t, "client-chosen", created.ID)
}

func TestInvoiceService_ListPaginatesNewestFirst(t *testing.T) {
	svc, _ := newInvoiceService(t)
	ctx := context.Background()

	for i := 1; i <= 45; i++ {
		date := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
		_, err := svc.Create(ctx, sampleInvoice(fmt.Sprintf("2505%02d", i), date.Format(core.DateLayout)))
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, core.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, first.Invoices, core.HistoryPageSize)
	assert.Equal(t, 45, first.Total)
	assert.True(t, first.HasMore)
	assert.Equal(t, "250545", first.Invoices[0].InvoiceNumber)

	last, err := svc.List(ctx, core.ListFilter{Page: 2})
	require.NoError(t, err)
	assert.Len(t, last.Invoices, 5)
	assert.False(t, last.HasMore)
	assert.Equal(t, "250501", last.Invoices[4].InvoiceNumber)

	beyond, err := svc.List(ctx, core.ListFilter{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, beyond.Invoices)
	assert.Equal(t, 45, beyond.Total)

	huge, err := svc.List(ctx, core.ListFilter{Page: math.MaxInt})
	require.NoError(t, err)
	assert.Empty(t, huge.Invoices)
	assert.Equal(t, core.MaxHistoryPage, huge.Page)
	assert.Equal(t, 45, huge.Total)
}

func TestInvoiceService_ListSearchAndCategory(t *testing.T) {
	svc, _ := newInvoiceService(t)
	ctx := context.Background()

	a := sampleInvoice("250601", "2025-06-01")
	b := sampleInvoice("250602", "2025-06-02")
	b.CustomerName = "Anita Rao"
	b.CarModel = "Jupiter"
	b.RegNo = "KA05ZZ0001"
	b.Items = []core.LineItem{{Description: "Brake lever extension", SellingPrice: d(900), Amount: d(900)}}
	for _, inv := range []core.Invoice{a, b} {
		_, err := svc.Create(ctx, inv)
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, core.ListFilter{Search: "anita"})
	require.NoError(t, err)
	require.Len(t, page.Invoices, 1)
	assert.Equal(t, "250602", page.Invoices[0].InvoiceNumber)

	page, err = svc.List(ctx, core.ListFilter{Search: "KA05"})
	require.NoError(t, err)
	assert.Len(t, page.Invoices, 1)

	page, err = svc.List(ctx, core.ListFilter{Category: "brake"})
	require.NoError(t, err)
	require.Len(t, page.Invoices, 1)
	assert.Equal(t, "250602", page.Invoices[0].InvoiceNumber)

	page, err = svc.List(ctx, core.ListFilter{Category: "all"})
	require.NoError(t, err)
	assert.Len(t, page.Invoices, 2)
	assert.Equal(t, "250602", page.Invoices[0].InvoiceNumber)
}

func TestInvoiceService_Delete(t *testing.T) {
	svc, _ := newInvoiceService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, sampleInvoice("250601", "2025-06-01"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, created.ID), core.ErrNotFound)
}

// blockingStore holds Insert until release is closed.
type blockingStore struct {
	core.RecordStore
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) Insert(ctx context.Context, rows []core.Invoice) ([]core.Invoice, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.RecordStore.Insert(ctx, rows)
}

func TestInvoiceService_SubmitRejectsConcurrentDuplicate(t *testing.T) {
	mem := store.NewMemory()
	bs := &blockingStore{RecordStore: mem, entered: make(chan struct{}, 1), release: make(chan struct{})}
	svc := core.NewInvoiceService(bs, core.NewSequencer(mem, core.FormatMonthly), time.UTC)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.Submit(ctx, "draft-1", sampleInvoice("250601", "2025-06-15"))
		done <- err
	}()
	<-bs.entered

	_, err := svc.Submit(ctx, "draft-1", sampleInvoice("250601", "2025-06-15"))
	assert.ErrorIs(t, err, core.ErrSubmitInFlight)

	close(bs.release)
	require.NoError(t, <-done)

	res, err := mem.Select(ctx, core.NewQuery().WithCount())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)

	// Once the first submit has finished the draft id is free again.
	bs.entered = make(chan struct{}, 1)
	_, err = svc.Submit(ctx, "draft-1", sampleInvoice("250602", "2025-06-15"))
	require.NoError(t, err)
}
