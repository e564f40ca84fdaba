// Package store holds the two RecordStore implementations: Postgres for
// production and a JSON file store used when no database is configured.
// Both apply filters, ordering, ranges and counts identically.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"seva-invoicing/internal/core"
)

var errMultipleRows = errors.New("query matched more than one invoice")

// columnKind decides how a column is compared.
type columnKind int

const (
	kindText columnKind = iota
	kindNumeric
	kindTime
	kindJSON
)

func kindOf(col string) columnKind {
	switch col {
	case "total_amount":
		return kindNumeric
	case "created_at":
		return kindTime
	case "items":
		return kindJSON
	}
	return kindText
}

// checkQuery rejects queries that no store can answer the same way.
func checkQuery(q *core.Query) error {
	if q == nil {
		return errors.New("nil query")
	}
	if err := q.Err(); err != nil {
		return fmt.Errorf("invalid query: %w", err)
	}
	all := append([]core.Filter{}, q.Filters...)
	for _, g := range q.OrGroups {
		all = append(all, g...)
	}
	for _, f := range all {
		if err := checkFilter(f); err != nil {
			return err
		}
	}
	for _, o := range q.Orders {
		if kindOf(o.Column) == kindJSON {
			return fmt.Errorf("invalid query: cannot order by %s", o.Column)
		}
	}
	return nil
}

func checkFilter(f core.Filter) error {
	switch kindOf(f.Column) {
	case kindJSON:
		return fmt.Errorf("invalid query: cannot filter on %s", f.Column)
	case kindNumeric:
		if f.Op == core.OpLike || f.Op == core.OpILike {
			return fmt.Errorf("invalid query: %s does not support %s", f.Column, f.Op)
		}
		if _, err := decimal.NewFromString(f.Value); err != nil {
			return fmt.Errorf("invalid query: %s value %q is not a number", f.Column, f.Value)
		}
	case kindTime:
		if f.Op == core.OpLike || f.Op == core.OpILike {
			return fmt.Errorf("invalid query: %s does not support %s", f.Column, f.Op)
		}
		if _, err := parseTimeValue(f.Value); err != nil {
			return fmt.Errorf("invalid query: %s value %q is not a timestamp", f.Column, f.Value)
		}
	}
	return nil
}

// parseTimeValue accepts RFC 3339 timestamps or bare dates (UTC midnight).
func parseTimeValue(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	return time.Parse(core.DateLayout, v)
}

// textValue returns the text form of a text column.
func textValue(inv *core.Invoice, col string) string {
	switch col {
	case "id":
		return inv.ID
	case "invoice_number":
		return inv.InvoiceNumber
	case "invoice_date":
		return inv.InvoiceDate
	case "customer_name":
		return inv.CustomerName
	case "customer_phone":
		return inv.CustomerPhone
	case "customer_address":
		return inv.CustomerAddress
	case "billing_address":
		return inv.BillingAddress
	case "car_model":
		return inv.CarModel
	case "reg_no":
		return inv.RegNo
	case "engine_number":
		return inv.EngineNumber
	case "chassis_number":
		return inv.ChassisNumber
	case "notes":
		return inv.Notes
	}
	return ""
}

// compareColumn orders a and b on col: negative, zero or positive.
func compareColumn(a, b *core.Invoice, col string) int {
	switch kindOf(col) {
	case kindNumeric:
		return a.TotalAmount.Cmp(b.TotalAmount)
	case kindTime:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
	return strings.Compare(textValue(a, col), textValue(b, col))
}

// matches evaluates a checked filter against one row.
func matches(inv *core.Invoice, f core.Filter) bool {
	var cmp int
	switch kindOf(f.Column) {
	case kindNumeric:
		v, _ := decimal.NewFromString(f.Value)
		cmp = inv.TotalAmount.Cmp(v)
	case kindTime:
		v, _ := parseTimeValue(f.Value)
		cmp = inv.CreatedAt.Compare(v)
	default:
		s := textValue(inv, f.Column)
		switch f.Op {
		case core.OpLike:
			return likeMatch(f.Value, s)
		case core.OpILike:
			return likeMatch(strings.ToLower(f.Value), strings.ToLower(s))
		}
		cmp = strings.Compare(s, f.Value)
	}

	switch f.Op {
	case core.OpEq:
		return cmp == 0
	case core.OpGte:
		return cmp >= 0
	case core.OpLte:
		return cmp <= 0
	}
	return false
}

// rowMatches applies every filter and every or-group of q.
func rowMatches(inv *core.Invoice, q *core.Query) bool {
	for _, f := range q.Filters {
		if !matches(inv, f) {
			return false
		}
	}
	for _, group := range q.OrGroups {
		hit := false
		for _, f := range group {
			if matches(inv, f) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// effectiveOrders returns the requested order terms, or newest first when
// none were given.
func effectiveOrders(q *core.Query) []core.Order {
	if len(q.Orders) == 0 {
		return []core.Order{{Column: "created_at", Ascending: false}}
	}
	return q.Orders
}

// likeMatch implements SQL LIKE: % matches any run of characters, _ matches
// exactly one, and a backslash escapes the next character.
func likeMatch(pattern, s string) bool {
	for len(pattern) > 0 {
		r, size := utf8.DecodeRuneInString(pattern)
		switch r {
		case '%':
			rest := pattern[size:]
			for rest != "" && rest[0] == '%' {
				rest = rest[1:]
			}
			if rest == "" {
				return true
			}
			for i := 0; i <= len(s); {
				if likeMatch(rest, s[i:]) {
					return true
				}
				if i == len(s) {
					break
				}
				_, n := utf8.DecodeRuneInString(s[i:])
				i += n
			}
			return false
		case '_':
			if s == "" {
				return false
			}
			_, n := utf8.DecodeRuneInString(s)
			s = s[n:]
			pattern = pattern[size:]
		default:
			if r == '\\' && len(pattern) > size {
				pattern = pattern[size:]
				r, size = utf8.DecodeRuneInString(pattern)
			}
			c, n := utf8.DecodeRuneInString(s)
			if s == "" || c != r {
				return false
			}
			s = s[n:]
			pattern = pattern[size:]
		}
	}
	return s == ""
}

// project keeps only the selected columns of inv.
func project(inv core.Invoice, cols []string) core.Invoice {
	if len(cols) == 0 {
		inv.Items = cloneItems(inv.Items)
		return inv
	}
	var out core.Invoice
	for _, c := range cols {
		switch c {
		case "id":
			out.ID = inv.ID
		case "invoice_number":
			out.InvoiceNumber = inv.InvoiceNumber
		case "invoice_date":
			out.InvoiceDate = inv.InvoiceDate
		case "created_at":
			out.CreatedAt = inv.CreatedAt
		case "customer_name":
			out.CustomerName = inv.CustomerName
		case "customer_phone":
			out.CustomerPhone = inv.CustomerPhone
		case "customer_address":
			out.CustomerAddress = inv.CustomerAddress
		case "billing_address":
			out.BillingAddress = inv.BillingAddress
		case "car_model":
			out.CarModel = inv.CarModel
		case "reg_no":
			out.RegNo = inv.RegNo
		case "engine_number":
			out.EngineNumber = inv.EngineNumber
		case "chassis_number":
			out.ChassisNumber = inv.ChassisNumber
		case "items":
			out.Items = cloneItems(inv.Items)
		case "notes":
			out.Notes = inv.Notes
		case "total_amount":
			out.TotalAmount = inv.TotalAmount
		}
	}
	return out
}

func cloneItems(items []core.LineItem) []core.LineItem {
	if items == nil {
		return nil
	}
	out := make([]core.LineItem, len(items))
	copy(out, items)
	return out
}

// single reduces a result to exactly one row.
func single(rows []core.Invoice) (*core.Invoice, error) {
	switch len(rows) {
	case 0:
		return nil, core.ErrNotFound
	case 1:
		return &rows[0], nil
	}
	return nil, errMultipleRows
}
