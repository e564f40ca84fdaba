package core_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seva-invoicing/internal/core"
)

func TestNormalize(t *testing.T) {
	inv := sampleInvoice(" 250601 ", "2025-06-15")
	inv.Items = []core.LineItem{
		{Description: " Side car frame ", SellingPrice: d(4000)},
		{Description: "", SellingPrice: decimal.Zero},
		{Description: "Labour", SellingPrice: d(600), Amount: d(600)},
	}
	inv.TotalAmount = decimal.Zero

	core.Normalize(&inv)

	assert.Equal(t, "250601", inv.InvoiceNumber)
	require.Len(t, inv.Items, 2)
	assert.Equal(t, "Side car frame", inv.Items[0].Description)
	assert.True(t, inv.Items[0].Amount.Equal(d(4000)))
	assert.True(t, inv.TotalAmount.Equal(d(4600)))
	assert.NoError(t, core.Validate(inv))
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*core.Invoice)
		field  string
	}{
		{"missing customer", func(i *core.Invoice) { i.CustomerName = "" }, "customer_name"},
		{"missing reg no", func(i *core.Invoice) { i.RegNo = "" }, "reg_no"},
		{"bad date", func(i *core.Invoice) { i.InvoiceDate = "15/06/2025" }, "invoice_date"},
		{"no items", func(i *core.Invoice) { i.Items = nil; i.TotalAmount = decimal.Zero }, "items"},
		{"amount diverges", func(i *core.Invoice) { i.Items[0].Amount = d(1) }, "items[0]"},
		{"negative price", func(i *core.Invoice) {
			i.Items[1].SellingPrice = d(-5)
			i.Items[1].Amount = d(-5)
		}, "items[1]"},
		{"stale total", func(i *core.Invoice) { i.TotalAmount = d(1) }, "total_amount"},
		{"zero total", func(i *core.Invoice) {
			i.Items = []core.LineItem{{Description: "Free check"}}
			i.TotalAmount = decimal.Zero
		}, "total_amount"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inv := sampleInvoice("250601", "2025-06-15")
			tc.mutate(&inv)

			err := core.Validate(inv)
			require.ErrorIs(t, err, core.ErrValidation)
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tc.field)
		})
	}
}

func TestValidate_MRPDoesNotAffectTotal(t *testing.T) {
	inv := sampleInvoice("250601", "2025-06-15")
	inv.Items[0].MRP = d(99999)
	assert.NoError(t, core.Validate(inv))
}

func TestValidationError_MessageIsSorted(t *testing.T) {
	err := &core.ValidationError{Fields: map[string]string{"reg_no": "is required", "car_model": "is required"}}
	assert.Equal(t, "invalid invoice: car_model: is required; reg_no: is required", err.Error())
}

func TestClassify(t *testing.T) {
	item := func(desc string) []core.LineItem { return []core.LineItem{{Description: desc}} }

	assert.Equal(t, "Side Wheels", core.Classify(item("Side-Wheels fitting")))
	assert.Equal(t, "Side Car", core.Classify(item("side car body")))
	assert.Equal(t, "Auto Clutch", core.Classify(item("Auto Clutch kit")))
	assert.Equal(t, "Brake & Accelarator", core.Classify(item("Hand brake")))
	assert.Equal(t, "Modifications", core.Classify(item("Seat cover")))
	assert.Equal(t, "Other", core.Classify(nil))
}

func TestMatchesCategory(t *testing.T) {
	items := []core.LineItem{{Description: "Auto Clutch kit"}}
	assert.True(t, core.MatchesCategory(items, "all"))
	assert.True(t, core.MatchesCategory(items, ""))
	assert.True(t, core.MatchesCategory(items, "AUTO CLUTCH"))
	assert.False(t, core.MatchesCategory(items, "brake"))
}
