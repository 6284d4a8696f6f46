package core

import (
	"strings"
	"time"
)

// FilterAll is the sentinel meaning "no restriction" for the type and
// category filters.
const FilterAll = "All"

type (
	// Filter is the ephemeral view state applied to a fetched month of
	// transactions. It is never persisted.
	Filter struct {
		Search   string
		Type     string // FilterAll or a TransactionType
		Category string // FilterAll or a category of the selected type
		Year     int
		Month    int // 1-12
	}

	// Summary holds the totals derived from a visible transaction set.
	// Balance may be negative; that is the over-budget display state,
	// not an error.
	Summary struct {
		Income  Money
		Expense Money
		Balance Money
	}
)

// NewFilter returns a filter scoped to year/month with everything else
// open.
func NewFilter(year, month int) Filter {
	return Filter{
		Search:   "",
		Type:     FilterAll,
		Category: FilterAll,
		Year:     year,
		Month:    month,
	}
}

// Reset clears search and the type/category restrictions, keeping the
// month window.
func (f *Filter) Reset() {
	f.Search = ""
	f.Type = FilterAll
	f.Category = FilterAll
}

// Matches reports whether a single transaction is visible under the
// filter: case-insensitive substring match on the title, type and
// category equality (or FilterAll), and membership in the selected
// month. The month check repeats what the fetch already scoped, guarding
// against a stale working copy.
func (f Filter) Matches(t Transaction) bool {
	if !strings.Contains(strings.ToLower(t.Title), strings.ToLower(f.Search)) {
		return false
	}
	if f.Type != FilterAll && f.Type != string(t.Type) {
		return false
	}
	if f.Category != FilterAll && f.Category != t.Category {
		return false
	}
	return t.Date.Month() == f.Month && t.Date.Year() == f.Year
}

// Apply returns the visible subset in input order.
func (f Filter) Apply(txns []Transaction) []Transaction {
	visible := make([]Transaction, 0, len(txns))
	for _, t := range txns {
		if f.Matches(t) {
			visible = append(visible, t)
		}
	}
	return visible
}

// Summarize computes income, expense, and balance totals over the given
// set. Callers pass the visible subset: totals deliberately follow the
// active filters, so selecting only expenses zeroes the income total.
// Result is independent of input order.
func Summarize(visible []Transaction) Summary {
	var s Summary
	for _, t := range visible {
		switch t.Type {
		case Income:
			s.Income.Cents += t.Amount.Cents
		case Expense:
			s.Expense.Cents += t.Amount.Cents
		}
	}
	s.Balance.Cents = s.Income.Cents - s.Expense.Cents
	return s
}

// MonthWindow returns the inclusive first and last calendar day of a
// month. The end bound is day 0 of the following month, which time.Date
// normalizes to the true last day, so 30-day months and leap-year
// February come out right.
func MonthWindow(year, month int) (start, end Date) {
	start = NewDate(year, month, 1)
	end = Date{Time: time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC)}
	return start, end
}
