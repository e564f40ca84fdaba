package core

import (
	"context"
	"fmt"
	"strings"
)

// FilterOp is a comparison understood by every RecordStore.
type FilterOp string

const (
	OpEq    FilterOp = "eq"
	OpGte   FilterOp = "gte"
	OpLte   FilterOp = "lte"
	OpLike  FilterOp = "like"  // case-sensitive pattern, % and _ wildcards
	OpILike FilterOp = "ilike" // case-insensitive pattern
)

// Filter compares one column against a text value. Dates are compared as
// YYYY-MM-DD text, total_amount numerically.
type Filter struct {
	Column string
	Op     FilterOp
	Value  string
}

// Order is one ORDER BY term.
type Order struct {
	Column    string
	Ascending bool
}

// InvoiceColumns lists the selectable and filterable columns of the invoices table.
var InvoiceColumns = []string{
	"id", "invoice_number", "invoice_date", "created_at",
	"customer_name", "customer_phone", "customer_address", "billing_address",
	"car_model", "reg_no", "engine_number", "chassis_number",
	"items", "notes", "total_amount",
}

// IsInvoiceColumn reports whether name is one of InvoiceColumns.
func IsInvoiceColumn(name string) bool {
	for _, c := range InvoiceColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Query describes a read against the invoices table. Build one with NewQuery
// and the chaining methods; the first invalid call is kept in Err and
// reported by the store.
type Query struct {
	Columns    []string   // empty selects every column
	Filters    []Filter   // all must hold
	OrGroups   [][]Filter // in each group at least one must hold
	Orders     []Order
	RangeFrom  int
	RangeTo    int // inclusive
	HasRange   bool
	LimitN     int
	CountExact bool

	err error
}

// NewQuery starts a query over all invoice columns.
func NewQuery() *Query {
	return &Query{}
}

func (q *Query) fail(err error) *Query {
	if q.err == nil {
		q.err = err
	}
	return q
}

func (q *Query) checkColumn(col string) bool {
	if !IsInvoiceColumn(col) {
		q.fail(fmt.Errorf("unknown column %q", col))
		return false
	}
	return true
}

// Select restricts the returned columns.
func (q *Query) Select(cols ...string) *Query {
	for _, c := range cols {
		if !q.checkColumn(c) {
			return q
		}
	}
	q.Columns = append(q.Columns, cols...)
	return q
}

func (q *Query) where(col string, op FilterOp, value string) *Query {
	if q.checkColumn(col) {
		q.Filters = append(q.Filters, Filter{Column: col, Op: op, Value: value})
	}
	return q
}

// Eq keeps rows where col equals value.
func (q *Query) Eq(col, value string) *Query { return q.where(col, OpEq, value) }

// Gte keeps rows where col >= value.
func (q *Query) Gte(col, value string) *Query { return q.where(col, OpGte, value) }

// Lte keeps rows where col <= value.
func (q *Query) Lte(col, value string) *Query { return q.where(col, OpLte, value) }

// Like keeps rows where col matches a case-sensitive pattern.
func (q *Query) Like(col, pattern string) *Query { return q.where(col, OpLike, pattern) }

// ILike keeps rows where col matches a case-insensitive pattern.
func (q *Query) ILike(col, pattern string) *Query { return q.where(col, OpILike, pattern) }

// Or adds a disjunction written as comma-separated "column.op.value" terms,
// e.g. "customer_name.ilike.%ravi%,car_model.ilike.%ravi%".
func (q *Query) Or(expr string) *Query {
	group, err := ParseOr(expr)
	if err != nil {
		return q.fail(err)
	}
	q.OrGroups = append(q.OrGroups, group)
	return q
}

// Order appends an ORDER BY term. Stores break remaining ties by id ascending.
func (q *Query) Order(col string, ascending bool) *Query {
	if q.checkColumn(col) {
		q.Orders = append(q.Orders, Order{Column: col, Ascending: ascending})
	}
	return q
}

// Range selects rows from..to inclusive (zero based) after filtering and ordering.
func (q *Query) Range(from, to int) *Query {
	if from < 0 || to < from {
		return q.fail(fmt.Errorf("invalid range %d..%d", from, to))
	}
	q.RangeFrom, q.RangeTo, q.HasRange = from, to, true
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n int) *Query {
	if n <= 0 {
		return q.fail(fmt.Errorf("invalid limit %d", n))
	}
	q.LimitN = n
	return q
}

// WithCount asks the store for the number of matching rows before Range and Limit.
func (q *Query) WithCount() *Query {
	q.CountExact = true
	return q
}

// Err returns the first construction error, if any.
func (q *Query) Err() error {
	return q.err
}

// Window converts Range and Limit into an offset and row cap. ok is false
// when neither was set.
func (q *Query) Window() (offset, limit int, ok bool) {
	if q.HasRange {
		offset = q.RangeFrom
		limit = q.RangeTo - q.RangeFrom + 1
		ok = true
	}
	if q.LimitN > 0 && (!ok || q.LimitN < limit) {
		limit = q.LimitN
		ok = true
	}
	return offset, limit, ok
}

// ParseOr parses "col.op.value,col.op.value" into filters.
func ParseOr(expr string) ([]Filter, error) {
	var group []Filter
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, ".", 3)
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed or term %q", part)
		}
		col, op := fields[0], FilterOp(fields[1])
		if !IsInvoiceColumn(col) {
			return nil, fmt.Errorf("unknown column %q", col)
		}
		switch op {
		case OpEq, OpGte, OpLte, OpLike, OpILike:
		default:
			return nil, fmt.Errorf("unsupported operator %q", op)
		}
		group = append(group, Filter{Column: col, Op: op, Value: fields[2]})
	}
	if len(group) == 0 {
		return nil, fmt.Errorf("empty or expression")
	}
	return group, nil
}

// SearchExpr builds an Or expression matching term as a substring of any of cols.
// Characters that would split the expression are dropped from term.
func SearchExpr(term string, cols ...string) string {
	term = strings.Map(func(r rune) rune {
		switch r {
		case ',', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(term))

	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = c + ".ilike.%" + term + "%"
	}
	return strings.Join(parts, ",")
}

// QueryResult is what a store returns for Select. Count is only filled when
// the query asked for it.
type QueryResult struct {
	Rows  []Invoice
	Count int
}

// RecordStore is the persistence surface the services depend on. The
// Postgres store and the local file store implement it with the same
// filtering, ordering and paging semantics.
type RecordStore interface {
	Select(ctx context.Context, q *Query) (QueryResult, error)
	// Single returns exactly one row or ErrNotFound.
	Single(ctx context.Context, q *Query) (*Invoice, error)
	// Insert stores the rows and returns them with id assigned. created_at is
	// set to now unless the row already carries one.
	Insert(ctx context.Context, rows []Invoice) ([]Invoice, error)
	// Delete removes the row with id or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}
