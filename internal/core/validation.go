package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrValidation is wrapped by every ValidationError.
var ErrValidation = errors.New("invalid invoice")

// ValidationError lists every problem found in an invoice, keyed by field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid invoice: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Normalize prepares a submitted invoice for validation: text fields are
// trimmed, fully blank item rows are dropped, an unset item amount takes the
// selling price, and total_amount is recomputed from the items.
func Normalize(inv *Invoice) {
	for _, f := range []*string{
		&inv.InvoiceNumber, &inv.InvoiceDate, &inv.CustomerName, &inv.CustomerPhone,
		&inv.CustomerAddress, &inv.BillingAddress, &inv.CarModel, &inv.RegNo,
		&inv.EngineNumber, &inv.ChassisNumber, &inv.Notes,
	} {
		*f = strings.TrimSpace(*f)
	}

	items := make([]LineItem, 0, len(inv.Items))
	for _, it := range inv.Items {
		it.Description = strings.TrimSpace(it.Description)
		if it.Description == "" && it.SellingPrice.IsZero() && it.Amount.IsZero() && it.MRP.IsZero() {
			continue
		}
		if it.Amount.IsZero() {
			it.Amount = it.SellingPrice
		}
		items = append(items, it)
	}
	inv.Items = items
	inv.TotalAmount = SumItems(items)
}

// Validate checks a normalized invoice before any store call.
func Validate(inv Invoice) error {
	fields := map[string]string{}

	required := map[string]string{
		"invoice_number": inv.InvoiceNumber,
		"customer_name":  inv.CustomerName,
		"customer_phone": inv.CustomerPhone,
		"car_model":      inv.CarModel,
		"reg_no":         inv.RegNo,
	}
	for name, v := range required {
		if v == "" {
			fields[name] = "is required"
		}
	}

	if inv.InvoiceDate == "" {
		fields["invoice_date"] = "is required"
	} else if _, err := time.Parse(DateLayout, inv.InvoiceDate); err != nil {
		fields["invoice_date"] = "must be a date in YYYY-MM-DD form"
	}

	if len(inv.Items) == 0 {
		fields["items"] = "at least one line item is required"
	}
	for i, it := range inv.Items {
		key := fmt.Sprintf("items[%d]", i)
		switch {
		case it.Description == "":
			fields[key] = "description is required"
		case it.MRP.IsNegative() || it.SellingPrice.IsNegative() || it.Amount.IsNegative():
			fields[key] = "prices must not be negative"
		case !it.Amount.Equal(it.SellingPrice):
			fields[key] = "amount must equal selling_price"
		}
	}

	if !inv.TotalAmount.Equal(SumItems(inv.Items)) {
		fields["total_amount"] = "must equal the sum of item amounts"
	} else if !inv.TotalAmount.IsPositive() {
		fields["total_amount"] = "must be greater than zero"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
