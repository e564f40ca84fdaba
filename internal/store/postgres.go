package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"seva-invoicing/internal/core"
)

// Postgres is a RecordStore over the invoices table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a store using pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// selectExpr is the SELECT list expression for a column. ids and dates are
// read back as text so both stores return identical strings.
func selectExpr(col string) string {
	switch col {
	case "id":
		return "id::text"
	case "invoice_date":
		return "invoice_date::text"
	}
	return col
}

// orderExpr sorts text columns by byte order to match the file store.
func orderExpr(col string) string {
	switch kindOf(col) {
	case kindNumeric, kindTime:
		return col
	}
	if col == "invoice_date" {
		return col
	}
	return selectExpr(col) + ` COLLATE "C"`
}

// sqlBuilder accumulates positional arguments.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *sqlBuilder) condition(f core.Filter) string {
	var value any = f.Value
	col := f.Column
	switch kindOf(col) {
	case kindNumeric:
		value, _ = decimal.NewFromString(f.Value)
	case kindTime:
		value, _ = parseTimeValue(f.Value)
	default:
		if col == "id" || f.Op == core.OpLike || f.Op == core.OpILike {
			col = selectExpr(col)
		}
		// Text compares by byte order like the file store; dates stay DATE.
		if f.Column != "invoice_date" && (f.Op == core.OpEq || f.Op == core.OpGte || f.Op == core.OpLte) {
			col += ` COLLATE "C"`
		}
	}

	switch f.Op {
	case core.OpEq:
		return col + " = " + b.arg(value)
	case core.OpGte:
		return col + " >= " + b.arg(value)
	case core.OpLte:
		return col + " <= " + b.arg(value)
	case core.OpLike:
		return col + " LIKE " + b.arg(value)
	case core.OpILike:
		return col + " ILIKE " + b.arg(value)
	}
	return "FALSE"
}

func (b *sqlBuilder) where(q *core.Query) string {
	var conds []string
	for _, f := range q.Filters {
		conds = append(conds, b.condition(f))
	}
	for _, group := range q.OrGroups {
		parts := make([]string, len(group))
		for i, f := range group {
			parts[i] = b.condition(f)
		}
		conds = append(conds, "("+strings.Join(parts, " OR ")+")")
	}
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func (s *Postgres) Select(ctx context.Context, q *core.Query) (core.QueryResult, error) {
	if err := checkQuery(q); err != nil {
		return core.QueryResult{}, err
	}

	cols := q.Columns
	if len(cols) == 0 {
		cols = core.InvoiceColumns
	}
	exprs := make([]string, len(cols))
	for i, c := range cols {
		exprs[i] = selectExpr(c)
	}

	b := &sqlBuilder{}
	where := b.where(q)

	var res core.QueryResult
	if q.CountExact {
		if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM invoices"+where, b.args...).Scan(&res.Count); err != nil {
			return core.QueryResult{}, fmt.Errorf("failed to count invoices: %w", err)
		}
	}

	orders := effectiveOrders(q)
	terms := make([]string, 0, len(orders)+1)
	for _, o := range orders {
		dir := "DESC"
		if o.Ascending {
			dir = "ASC"
		}
		terms = append(terms, orderExpr(o.Column)+" "+dir)
	}
	terms = append(terms, orderExpr("id")+" ASC")

	sql := "SELECT " + strings.Join(exprs, ", ") + " FROM invoices" + where + " ORDER BY " + strings.Join(terms, ", ")
	if offset, limit, ok := q.Window(); ok {
		sql += " OFFSET " + b.arg(offset) + " LIMIT " + b.arg(limit)
	}

	rows, err := s.pool.Query(ctx, sql, b.args...)
	if err != nil {
		return core.QueryResult{}, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var inv core.Invoice
		var items []byte
		if err := rows.Scan(scanTargets(&inv, cols, &items)...); err != nil {
			return core.QueryResult{}, fmt.Errorf("failed to scan invoice: %w", err)
		}
		if items != nil {
			if err := json.Unmarshal(items, &inv.Items); err != nil {
				return core.QueryResult{}, fmt.Errorf("failed to decode items of invoice %s: %w", inv.ID, err)
			}
		}
		res.Rows = append(res.Rows, inv)
	}
	if err := rows.Err(); err != nil {
		return core.QueryResult{}, fmt.Errorf("failed to read invoices: %w", err)
	}
	if res.Rows == nil {
		res.Rows = []core.Invoice{}
	}
	return res, nil
}

func scanTargets(inv *core.Invoice, cols []string, items *[]byte) []any {
	targets := make([]any, len(cols))
	for i, c := range cols {
		switch c {
		case "id":
			targets[i] = &inv.ID
		case "invoice_number":
			targets[i] = &inv.InvoiceNumber
		case "invoice_date":
			targets[i] = &inv.InvoiceDate
		case "created_at":
			targets[i] = &inv.CreatedAt
		case "customer_name":
			targets[i] = &inv.CustomerName
		case "customer_phone":
			targets[i] = &inv.CustomerPhone
		case "customer_address":
			targets[i] = &inv.CustomerAddress
		case "billing_address":
			targets[i] = &inv.BillingAddress
		case "car_model":
			targets[i] = &inv.CarModel
		case "reg_no":
			targets[i] = &inv.RegNo
		case "engine_number":
			targets[i] = &inv.EngineNumber
		case "chassis_number":
			targets[i] = &inv.ChassisNumber
		case "items":
			targets[i] = items
		case "notes":
			targets[i] = &inv.Notes
		case "total_amount":
			targets[i] = &inv.TotalAmount
		}
	}
	return targets
}

func (s *Postgres) Single(ctx context.Context, q *core.Query) (*core.Invoice, error) {
	res, err := s.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	return single(res.Rows)
}

func (s *Postgres) Insert(ctx context.Context, rows []core.Invoice) ([]core.Invoice, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := make([]core.Invoice, len(rows))
	for i, r := range rows {
		items := r.Items
		if items == nil {
			items = []core.LineItem{}
		}
		itemsJSON, err := json.Marshal(items)
		if err != nil {
			return nil, fmt.Errorf("failed to encode items: %w", err)
		}

		var createdAt *time.Time
		if !r.CreatedAt.IsZero() {
			createdAt = &r.CreatedAt
		}

		r.ID = uuid.NewString()
		err = tx.QueryRow(ctx, `
			INSERT INTO invoices (
				id, invoice_number, invoice_date, customer_name, customer_phone,
				customer_address, billing_address, car_model, reg_no, engine_number,
				chassis_number, items, notes, total_amount, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, COALESCE($15, NOW()))
			RETURNING created_at, invoice_date::text`,
			r.ID, r.InvoiceNumber, r.InvoiceDate, r.CustomerName, r.CustomerPhone,
			r.CustomerAddress, r.BillingAddress, r.CarModel, r.RegNo, r.EngineNumber,
			r.ChassisNumber, itemsJSON, r.Notes, r.TotalAmount, createdAt,
		).Scan(&r.CreatedAt, &r.InvoiceDate)
		if err != nil {
			return nil, fmt.Errorf("failed to insert invoice %s: %w", r.InvoiceNumber, err)
		}
		inserted[i] = r
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

func (s *Postgres) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM invoices WHERE id::text = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

var _ core.RecordStore = (*Postgres)(nil)
var _ core.RecordStore = (*File)(nil)
