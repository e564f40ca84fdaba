package core

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire and storage layout of calendar dates (invoice_date).
const DateLayout = "2006-01-02"

var (
	// ErrNotFound is returned when no invoice matches an id or query.
	ErrNotFound = errors.New("invoice not found")
	// ErrSubmitInFlight is returned when a draft is submitted while an
	// earlier submit of the same draft has not finished.
	ErrSubmitInFlight = errors.New("invoice submit already in progress")
)

// LineItem is one priced entry on an invoice. MRP is shown for reference only
// and never participates in totals.
type LineItem struct {
	Description  string          `json:"description"`
	MRP          decimal.Decimal `json:"mrp"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Amount       decimal.Decimal `json:"amount"`
}

// Invoice is the persisted unit. ID and CreatedAt are assigned by the store.
type Invoice struct {
	ID              string          `json:"id"`
	InvoiceNumber   string          `json:"invoice_number"`
	InvoiceDate     string          `json:"invoice_date"` // YYYY-MM-DD
	CreatedAt       time.Time       `json:"created_at"`
	CustomerName    string          `json:"customer_name"`
	CustomerPhone   string          `json:"customer_phone"`
	CustomerAddress string          `json:"customer_address"`
	BillingAddress  string          `json:"billing_address"`
	CarModel        string          `json:"car_model"`
	RegNo           string          `json:"reg_no"`
	EngineNumber    string          `json:"engine_number"`
	ChassisNumber   string          `json:"chassis_number"`
	Items           []LineItem      `json:"items"`
	Notes           string          `json:"notes"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
}

// Draft is a new invoice before its first and only insert. DraftID lets the
// service refuse a second submit of the same draft while the first is running.
type Draft struct {
	DraftID string  `json:"draft_id"`
	Invoice Invoice `json:"invoice"`
	// NumberFallback is set when the number lookup failed and the first
	// number of the bucket was used instead.
	NumberFallback bool `json:"number_fallback"`
}

// SumItems returns the total of all line item amounts.
func SumItems(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
	}
	return total
}

// ResolvedDate is the calendar date an invoice is reported under: invoice_date
// when it parses, otherwise created_at in loc.
func (inv Invoice) ResolvedDate(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	s := inv.InvoiceDate
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	if d, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return d
	}
	c := inv.CreatedAt.In(loc)
	return time.Date(c.Year(), c.Month(), c.Day(), 0, 0, 0, 0, loc)
}
