package web

import (
	"context"
	"sync"
	"time"

	"seva-invoicing/internal/app"
	"seva-invoicing/internal/core"
)

// submittedTTL is how long a saved draft is remembered for replay.
const submittedTTL = 15 * time.Minute

// submission is the stored outcome of a draft submit. A nil Result marks a
// submit that is still running.
type submission struct {
	Result    *app.InvoiceResult
	CreatedAt time.Time
}

// submittedStore remembers which drafts have been saved so that a repeated
// submit (double click, client retry) returns the saved invoice instead of
// inserting it twice. It is a thread-safe in-memory map with TTL expiry.
type submittedStore struct {
	mu      sync.Mutex
	entries map[string]submission
}

func newSubmittedStore() *submittedStore {
	return &submittedStore{entries: make(map[string]submission)}
}

// claim reserves draftID for one submit. It returns the saved result when the
// draft was already saved and ErrSubmitInFlight while another submit holds it.
// On (nil, nil) the caller owns the draft and must call put or release.
func (s *submittedStore) claim(draftID string) (*app.InvoiceResult, error) {
	if draftID == "" {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[draftID]; ok && time.Since(e.CreatedAt) <= submittedTTL {
		if e.Result == nil {
			return nil, core.ErrSubmitInFlight
		}
		return e.Result, nil
	}
	s.entries[draftID] = submission{CreatedAt: time.Now()}
	return nil, nil
}

// put records the saved invoice for a claimed draft.
func (s *submittedStore) put(draftID string, res *app.InvoiceResult) {
	if draftID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[draftID] = submission{Result: res, CreatedAt: time.Now()}
}

// release drops a claim whose submit failed so the draft can be retried.
func (s *submittedStore) release(draftID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[draftID]; ok && e.Result == nil {
		delete(s.entries, draftID)
	}
}

// forget drops every remembered draft that produced invoiceID.
func (s *submittedStore) forget(invoiceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for draftID, e := range s.entries {
		if e.Result != nil && e.Result.Invoice != nil && e.Result.Invoice.ID == invoiceID {
			delete(s.entries, draftID)
		}
	}
}

// startPurge launches a background goroutine that evicts expired entries every 5 minutes.
func (s *submittedStore) startPurge(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				for draftID, e := range s.entries {
					if time.Since(e.CreatedAt) > submittedTTL {
						delete(s.entries, draftID)
					}
				}
				s.mu.Unlock()
			}
		}
	}()
}
