package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"seva-invoicing/internal/logger"
)

// NumberFormat selects how invoice numbers are bucketed and padded.
type NumberFormat string

const (
	// FormatMonthly numbers are YYMM followed by a two digit sequence: 250601.
	FormatMonthly NumberFormat = "monthly"
	// FormatDaily numbers are YYMMDD followed by an unpadded sequence: 2506151.
	FormatDaily NumberFormat = "daily"
	// FormatLegacy marks stored numbers that match neither shape.
	FormatLegacy NumberFormat = "legacy"
)

// ParseNumberFormat accepts "monthly" or "daily" in any case.
func ParseNumberFormat(s string) (NumberFormat, error) {
	switch f := NumberFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatMonthly, FormatDaily:
		return f, nil
	}
	return "", fmt.Errorf("unknown invoice number format %q", s)
}

// BucketKey returns the date prefix shared by every number issued in the
// same period: YYMM for monthly, YYMMDD for daily.
func (f NumberFormat) BucketKey(date time.Time) string {
	if f == FormatDaily {
		return date.Format("060102")
	}
	return date.Format("0601")
}

// Compose appends seq to key using the format's padding rule.
func (f NumberFormat) Compose(key string, seq int) string {
	if f == FormatDaily {
		return key + strconv.Itoa(seq)
	}
	return fmt.Sprintf("%s%02d", key, seq)
}

// owns reports whether number was issued under key in this format. Monthly
// numbers must be exactly two digits longer than the key so that daily or
// legacy numbers sharing the prefix are never read as monthly sequences.
func (f NumberFormat) owns(number, key string) bool {
	if !strings.HasPrefix(number, key) {
		return false
	}
	switch f {
	case FormatMonthly:
		return len(number) == len(key)+2
	case FormatDaily:
		return DetectFormat(number) == FormatDaily
	}
	return false
}

// DetectFormat classifies a stored invoice number by shape: six digits is
// monthly, seven or more digits is daily, anything else is legacy.
func DetectFormat(number string) NumberFormat {
	if number == "" || strings.TrimLeft(number, "0123456789") != "" {
		return FormatLegacy
	}
	switch {
	case len(number) == 6:
		return FormatMonthly
	case len(number) >= 7:
		return FormatDaily
	}
	return FormatLegacy
}

// NextNumber computes the number following the highest sequence found among
// existing numbers for key. Suffixes that do not parse count as zero.
func NextNumber(existing []string, key string, f NumberFormat) string {
	highest := 0
	for _, n := range existing {
		if !f.owns(n, key) {
			continue
		}
		seq, err := strconv.Atoi(strings.TrimPrefix(n, key))
		if err != nil {
			seq = 0
		}
		if seq > highest {
			highest = seq
		}
	}
	return f.Compose(key, highest+1)
}

// NumberLookup fetches stored invoice numbers that start with prefix.
type NumberLookup interface {
	NumbersWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// storeLookup adapts a RecordStore to NumberLookup.
type storeLookup struct {
	store RecordStore
}

func (l storeLookup) NumbersWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	res, err := l.store.Select(ctx, NewQuery().Select("invoice_number").Like("invoice_number", prefix+"%"))
	if err != nil {
		return nil, err
	}
	numbers := make([]string, len(res.Rows))
	for i, r := range res.Rows {
		numbers[i] = r.InvoiceNumber
	}
	return numbers, nil
}

// Sequencer issues invoice numbers for new drafts.
//
// Numbers are computed from what is already stored and nothing is reserved,
// so two drafts opened before either is saved receive the same number. This
// is accepted for single-admin use; the store does not enforce uniqueness.
type Sequencer struct {
	lookup NumberLookup
	format NumberFormat
	log    zerolog.Logger
}

// NewSequencer returns a Sequencer reading existing numbers from store.
func NewSequencer(store RecordStore, format NumberFormat) *Sequencer {
	return NewSequencerWithLookup(storeLookup{store: store}, format)
}

// NewSequencerWithLookup returns a Sequencer backed by an arbitrary lookup.
func NewSequencerWithLookup(lookup NumberLookup, format NumberFormat) *Sequencer {
	if format == "" {
		format = FormatMonthly
	}
	return &Sequencer{lookup: lookup, format: format, log: logger.WithComponent("sequencer")}
}

// Format returns the active number format.
func (s *Sequencer) Format() NumberFormat { return s.format }

// Next returns the next number for the bucket containing date. When the
// lookup fails it returns the first number of the bucket and fallback=true
// rather than blocking invoice entry.
func (s *Sequencer) Next(ctx context.Context, date time.Time) (number string, fallback bool) {
	key := s.format.BucketKey(date)
	existing, err := s.lookup.NumbersWithPrefix(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("bucket", key).Msg("invoice number lookup failed, using first number of bucket")
		return s.format.Compose(key, 1), true
	}
	return NextNumber(existing, key, s.format), false
}
