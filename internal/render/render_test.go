package render_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seva-invoicing/internal/core"
	"seva-invoicing/internal/logger"
	"seva-invoicing/internal/render"
)

func init() {
	logger.Discard()
}

var company = render.Company{
	Name:    "Seva Auto Sales",
	Tagline: "Side Wheels, Side Cars & Vehicle Modifications",
	Address: "123 Dealer Row, Auto City",
	Phone:   "+91 00000 00000",
}

func invoice(items int) *core.Invoice {
	inv := &core.Invoice{
		ID:              "7d0b3a3e-3f0a-4c55-9a71-4d4c2b1f0c11",
		InvoiceNumber:   "250615",
		InvoiceDate:     "2025-06-15",
		CreatedAt:       time.Date(2025, time.June, 15, 9, 30, 0, 0, time.UTC),
		CustomerName:    "Ravi Kumar",
		CustomerPhone:   "9000000001",
		CustomerAddress: "42 Market Road, Mysuru",
		CarModel:        "Activa 6G",
		RegNo:           "KA09AB1234",
		EngineNumber:    "JF50E1234567",
		Notes:           "Customer to return for free check-up after 500 km.",
	}
	for i := 0; i < items; i++ {
		price := decimal.NewFromInt(int64(1000 + i*250))
		inv.Items = append(inv.Items, core.LineItem{
			Description:  fmt.Sprintf("Side wheels attachment part %d with fitting and alignment", i+1),
			MRP:          price.Add(decimal.NewFromInt(100)),
			SellingPrice: price,
			Amount:       price,
		})
	}
	inv.TotalAmount = core.SumItems(inv.Items)
	return inv
}

var pageObject = regexp.MustCompile(`/Type /Page\b`)

func pageCount(pdf []byte) int {
	return len(pageObject.FindAll(pdf, -1))
}

func TestRender_ProducesPDF(t *testing.T) {
	r := render.New(company, time.Second)

	out, err := r.Render(context.Background(), invoice(3))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Equal(t, 1, pageCount(out))
}

func TestRender_IsDeterministic(t *testing.T) {
	r := render.New(company, time.Second)
	inv := invoice(5)

	first, err := r.Render(context.Background(), inv)
	require.NoError(t, err)
	second, err := r.Render(context.Background(), inv)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first, second), "same invoice must render to identical bytes")
}

func TestRender_FailsFastOnMissingData(t *testing.T) {
	r := render.New(company, time.Second)

	cases := map[string]func(*core.Invoice){
		"nil items":   func(i *core.Invoice) { i.Items = nil },
		"empty items": func(i *core.Invoice) { i.Items = []core.LineItem{} },
		"no number":   func(i *core.Invoice) { i.InvoiceNumber = "" },
		"no customer": func(i *core.Invoice) { i.CustomerName = "" },
		"no date":     func(i *core.Invoice) { i.InvoiceDate = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			inv := invoice(2)
			mutate(inv)
			out, err := r.Render(context.Background(), inv)
			assert.ErrorIs(t, err, render.ErrMissingField)
			assert.Nil(t, out)
		})
	}

	_, err := r.Render(context.Background(), nil)
	assert.ErrorIs(t, err, render.ErrMissingField)
}

func TestRender_PaginatesLongInvoices(t *testing.T) {
	r := render.New(company, time.Second)

	out, err := r.Render(context.Background(), invoice(60))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pageCount(out), 3)
}

func TestRender_HandlesNonLatinText(t *testing.T) {
	r := render.New(company, time.Second)
	inv := invoice(1)
	inv.CustomerName = "रवि कुमार"
	inv.Notes = "Tyre pressure ≈ 30 psi — recheck"

	out, err := r.Render(context.Background(), inv)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestRender_LogoTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := company
	c.Logo = srv.URL + "/logo.png"
	r := render.New(c, 50*time.Millisecond)

	_, err := r.Render(context.Background(), invoice(1))
	assert.ErrorIs(t, err, render.ErrAssetTimeout)
}

func TestRender_MissingLogoIsSkipped(t *testing.T) {
	c := company
	c.Logo = filepath.Join(t.TempDir(), "absent.png")
	r := render.New(c, time.Second)

	out, err := r.Render(context.Background(), invoice(1))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestRender_UnreadableLogoIsSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logo.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))
	c := company
	c.Logo = path
	r := render.New(c, time.Second)

	out, err := r.Render(context.Background(), invoice(1))
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestExport(t *testing.T) {
	r := render.New(company, time.Second)

	doc, err := r.Export(context.Background(), invoice(2))
	require.NoError(t, err)
	assert.Equal(t, "250615.pdf", doc.Filename)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.NotEmpty(t, doc.Content)
}
