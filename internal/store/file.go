package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"seva-invoicing/internal/core"
)

// File is a RecordStore kept in memory and mirrored to a JSON file after
// every write. Rows are held newest first, the way inserts prepend them.
// An empty path keeps the data in memory only.
type File struct {
	mu   sync.Mutex
	path string
	rows []core.Invoice
	now  func() time.Time
}

// NewFile opens the JSON store at path, creating it on first write.
func NewFile(path string) (*File, error) {
	s := &File{path: path, now: time.Now}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.rows); err != nil {
			return nil, fmt.Errorf("failed to decode store file %s: %w", path, err)
		}
	}
	return s, nil
}

// NewMemory returns a File store that never touches disk.
func NewMemory() *File {
	s, _ := NewFile("")
	return s
}

// SetClock overrides the created_at clock. Used by tests.
func (s *File) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *File) Select(ctx context.Context, q *core.Query) (core.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return core.QueryResult{}, err
	}
	if err := checkQuery(q); err != nil {
		return core.QueryResult{}, err
	}

	s.mu.Lock()
	matched := make([]core.Invoice, 0, len(s.rows))
	for i := range s.rows {
		if rowMatches(&s.rows[i], q) {
			matched = append(matched, project(s.rows[i], nil))
		}
	}
	s.mu.Unlock()

	orders := effectiveOrders(q)
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := &matched[i], &matched[j]
		for _, o := range orders {
			c := compareColumn(a, b, o.Column)
			if c == 0 {
				continue
			}
			if o.Ascending {
				return c < 0
			}
			return c > 0
		}
		return a.ID < b.ID
	})

	res := core.QueryResult{}
	if q.CountExact {
		res.Count = len(matched)
	}

	if offset, limit, ok := q.Window(); ok {
		if offset > len(matched) {
			offset = len(matched)
		}
		end := offset + limit
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[offset:end]
	}

	res.Rows = make([]core.Invoice, len(matched))
	for i, inv := range matched {
		res.Rows[i] = project(inv, q.Columns)
	}
	return res, nil
}

func (s *File) Single(ctx context.Context, q *core.Query) (*core.Invoice, error) {
	res, err := s.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	return single(res.Rows)
}

func (s *File) Insert(ctx context.Context, rows []core.Invoice) ([]core.Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC().Truncate(time.Microsecond)
	inserted := make([]core.Invoice, len(rows))
	for i, r := range rows {
		r.ID = uuid.NewString()
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		} else {
			r.CreatedAt = r.CreatedAt.UTC().Truncate(time.Microsecond)
		}
		r.Items = cloneItems(r.Items)
		inserted[i] = r
	}

	next := make([]core.Invoice, 0, len(inserted)+len(s.rows))
	next = append(next, inserted...)
	next = append(next, s.rows...)
	if err := s.persist(next); err != nil {
		return nil, err
	}
	s.rows = next

	out := make([]core.Invoice, len(inserted))
	for i, r := range inserted {
		out[i] = project(r, nil)
	}
	return out, nil
}

func (s *File) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.rows {
		if s.rows[i].ID != id {
			continue
		}
		next := make([]core.Invoice, 0, len(s.rows)-1)
		next = append(next, s.rows[:i]...)
		next = append(next, s.rows[i+1:]...)
		if err := s.persist(next); err != nil {
			return err
		}
		s.rows = next
		return nil
	}
	return core.ErrNotFound
}

// persist writes rows to a temporary file and renames it over the store file.
func (s *File) persist(rows []core.Invoice) error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store file: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".invoices-*.json")
	if err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
