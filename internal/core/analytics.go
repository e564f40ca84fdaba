package core

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ViewMode selects the analytics window granularity.
type ViewMode string

const (
	ViewWeek  ViewMode = "week"
	ViewMonth ViewMode = "month"
)

// ParseViewMode accepts "week" or "month"; empty means week.
func ParseViewMode(s string) (ViewMode, error) {
	switch m := ViewMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ViewWeek, nil
	case ViewWeek, ViewMonth:
		return m, nil
	}
	return "", fmt.Errorf("unknown view mode %q", s)
}

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the calendar day d falls inside w.
func (w Window) Contains(d time.Time) bool {
	day := dateOf(d)
	return !day.Before(dateOf(w.Start)) && !day.After(dateOf(w.End))
}

// Bucket is one point of a revenue series.
type Bucket struct {
	Label string          `json:"label"`
	Start string          `json:"start"`
	End   string          `json:"end"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// Report is the analytics view for one window.
type Report struct {
	Mode          ViewMode        `json:"mode"`
	Start         string          `json:"start"`
	End           string          `json:"end"`
	Buckets       []Bucket        `json:"buckets"`
	Total         decimal.Decimal `json:"total"`
	PreviousTotal decimal.Decimal `json:"previous_total"`
	Growth        decimal.Decimal `json:"growth"` // percent versus the previous window
	InvoiceCount  int             `json:"invoice_count"`
	ActiveClients int             `json:"active_clients"`
	Recent        []Invoice       `json:"recent"`
}

var weekdayLabels = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// dateOf drops the clock, keeping the calendar day in d's location.
func dateOf(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

// daysBetween counts calendar days from a to b.
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// WeekStart returns the Monday of the week containing d.
func WeekStart(d time.Time) time.Time {
	d = dateOf(d)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// Windows returns the window containing ref and the window immediately before
// it: the previous Monday-to-Sunday week, or the previous calendar month.
func Windows(mode ViewMode, ref time.Time) (current, previous Window) {
	if mode == ViewMonth {
		start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
		current = Window{Start: start, End: start.AddDate(0, 1, -1)}
		prevStart := start.AddDate(0, -1, 0)
		previous = Window{Start: prevStart, End: start.AddDate(0, 0, -1)}
		return current, previous
	}
	start := WeekStart(ref)
	current = Window{Start: start, End: start.AddDate(0, 0, 6)}
	previous = Window{Start: start.AddDate(0, 0, -7), End: start.AddDate(0, 0, -1)}
	return current, previous
}

// emptyBuckets lays out the series for a window in chronological order.
// Month buckets are the Monday-start weeks overlapping the month, clipped to it.
func emptyBuckets(mode ViewMode, w Window) []Bucket {
	if mode != ViewMonth {
		buckets := make([]Bucket, 7)
		for i := range buckets {
			day := w.Start.AddDate(0, 0, i)
			buckets[i] = Bucket{
				Label: weekdayLabels[i],
				Start: day.Format(DateLayout),
				End:   day.Format(DateLayout),
				Total: decimal.Zero,
			}
		}
		return buckets
	}

	var buckets []Bucket
	for ws := WeekStart(w.Start); !ws.After(w.End); ws = ws.AddDate(0, 0, 7) {
		start, end := ws, ws.AddDate(0, 0, 6)
		if start.Before(w.Start) {
			start = w.Start
		}
		if end.After(w.End) {
			end = w.End
		}
		buckets = append(buckets, Bucket{
			Label: fmt.Sprintf("Week %d", len(buckets)+1),
			Start: start.Format(DateLayout),
			End:   end.Format(DateLayout),
			Total: decimal.Zero,
		})
	}
	return buckets
}

// bucketIndex places a day inside the current window's series.
func bucketIndex(mode ViewMode, w Window, day time.Time) int {
	if mode == ViewMonth {
		return daysBetween(WeekStart(w.Start), WeekStart(day)) / 7
	}
	return daysBetween(w.Start, day)
}

// Aggregate buckets invoices into the window containing ref and compares the
// window total against the previous window. Invoice dates are resolved in loc.
// ActiveClients counts distinct phones over every invoice given, not only the
// window, so callers pass the whole history when they want the lifetime count.
// The input slice is not modified.
func Aggregate(invoices []Invoice, mode ViewMode, ref time.Time, loc *time.Location) Report {
	if loc == nil {
		loc = time.UTC
	}
	if mode != ViewMonth {
		mode = ViewWeek
	}
	current, previous := Windows(mode, ref.In(loc))

	buckets := emptyBuckets(mode, current)
	total, prevTotal := decimal.Zero, decimal.Zero
	count := 0
	var inWindow []Invoice

	for _, inv := range invoices {
		day := inv.ResolvedDate(loc)
		switch {
		case current.Contains(day):
			i := bucketIndex(mode, current, day)
			buckets[i].Total = buckets[i].Total.Add(inv.TotalAmount)
			buckets[i].Count++
			total = total.Add(inv.TotalAmount)
			count++
			inWindow = append(inWindow, inv)
		case previous.Contains(day):
			prevTotal = prevTotal.Add(inv.TotalAmount)
		}
	}

	return Report{
		Mode:          mode,
		Start:         current.Start.Format(DateLayout),
		End:           current.End.Format(DateLayout),
		Buckets:       buckets,
		Total:         total,
		PreviousTotal: prevTotal,
		Growth:        Growth(total, prevTotal),
		InvoiceCount:  count,
		ActiveClients: ActiveClients(invoices),
		Recent:        RecentTransactions(inWindow, RecentPanelSize, loc),
	}
}

// Growth is (current-previous)/previous as a percentage rounded to two
// places, or zero when there is no previous revenue.
func Growth(current, previous decimal.Decimal) decimal.Decimal {
	if !previous.IsPositive() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Round(2)
}

// ActiveClients counts distinct non-blank customer phone numbers.
func ActiveClients(invoices []Invoice) int {
	seen := make(map[string]struct{}, len(invoices))
	for _, inv := range invoices {
		if p := strings.TrimSpace(inv.CustomerPhone); p != "" {
			seen[p] = struct{}{}
		}
	}
	return len(seen)
}

const (
	// RecentPanelSize is the recent-transactions length on the analytics view.
	RecentPanelSize = 6
	// RecentDashboardSize is the recent-transactions length on the dashboard.
	RecentDashboardSize = 8
)

// RecentTransactions returns the n most recent invoices by resolved date,
// newest first, breaking ties by created_at. The input is not reordered.
func RecentTransactions(invoices []Invoice, n int, loc *time.Location) []Invoice {
	sorted := make([]Invoice, len(invoices))
	copy(sorted, invoices)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := sorted[i].ResolvedDate(loc), sorted[j].ResolvedDate(loc)
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
