package core

import (
	"testing"
)

func march2024Fixtures() []Transaction {
	return []Transaction{
		{ID: "t1", Title: "Salary", Amount: Money{Cents: 5000000}, Type: Income, Category: "Salary", Date: NewDate(2024, 3, 1), UserID: "u1"},
		{ID: "t2", Title: "Rent", Amount: Money{Cents: 1500000}, Type: Expense, Category: "Housing", Date: NewDate(2024, 3, 5), UserID: "u1"},
	}
}

func TestFilterMonthScenario(t *testing.T) {
	txns := march2024Fixtures()
	f := NewFilter(2024, 3)

	visible := f.Apply(txns)
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible rows, got %d", len(visible))
	}
	s := Summarize(visible)
	if s.Income.Cents != 5000000 || s.Expense.Cents != 1500000 || s.Balance.Cents != 3500000 {
		t.Fatalf("totals: %+v", s)
	}

	// Totals follow the visible set: restricting the type filter to
	// Expense drops the income total to zero.
	f.Type = string(Expense)
	visible = f.Apply(txns)
	if len(visible) != 1 || visible[0].Title != "Rent" {
		t.Fatalf("expected only Rent, got %v", visible)
	}
	s = Summarize(visible)
	if s.Income.Cents != 0 || s.Expense.Cents != 1500000 || s.Balance.Cents != -1500000 {
		t.Fatalf("type-filtered totals: %+v", s)
	}
}

func TestFilterSearchCaseInsensitive(t *testing.T) {
	f := NewFilter(2024, 3)
	for _, term := range []string{"rent", "RENT", "Ren"} {
		f.Search = term
		visible := f.Apply(march2024Fixtures())
		if len(visible) != 1 || visible[0].Title != "Rent" {
			t.Fatalf("search %q: got %v", term, visible)
		}
	}
}

func TestFilterCategory(t *testing.T) {
	f := NewFilter(2024, 3)
	f.Type = string(Expense)
	f.Category = "Housing"
	if got := f.Apply(march2024Fixtures()); len(got) != 1 || got[0].ID != "t2" {
		t.Fatalf("category filter: got %v", got)
	}
	f.Category = "Food"
	if got := f.Apply(march2024Fixtures()); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}

func TestFilterMonthBoundaries(t *testing.T) {
	cases := []struct {
		name        string
		date        Date
		year, month int
		want        bool
	}{
		{"first day included", NewDate(2024, 3, 1), 2024, 3, true},
		{"last day included", NewDate(2024, 3, 31), 2024, 3, true},
		{"leap day in february", NewDate(2024, 2, 29), 2024, 2, true},
		{"leap day not in march", NewDate(2024, 2, 29), 2024, 3, false},
		{"april 30 included", NewDate(2024, 4, 30), 2024, 4, true},
		{"march 31 not in april", NewDate(2024, 3, 31), 2024, 4, false},
		{"same month previous year", NewDate(2023, 3, 15), 2024, 3, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFilter(tc.year, tc.month)
			tx := Transaction{Title: "x", Type: Expense, Category: "Food", Date: tc.date}
			if got := f.Matches(tx); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSummarizeOrderIndependent(t *testing.T) {
	txns := march2024Fixtures()
	reversed := []Transaction{txns[1], txns[0]}
	a := Summarize(txns)
	b := Summarize(reversed)
	if a != b {
		t.Fatalf("summaries differ by order: %+v vs %+v", a, b)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.Income.Cents != 0 || s.Expense.Cents != 0 || s.Balance.Cents != 0 {
		t.Fatalf("empty set should produce zero totals: %+v", s)
	}
}

func TestFilterReset(t *testing.T) {
	f := NewFilter(2024, 3)
	f.Search = "rent"
	f.Type = string(Income)
	f.Category = "Salary"
	f.Reset()
	if f.Search != "" || f.Type != FilterAll || f.Category != FilterAll {
		t.Fatalf("reset incomplete: %+v", f)
	}
	if f.Year != 2024 || f.Month != 3 {
		t.Fatal("reset must keep the month window")
	}
}

func TestMonthWindow(t *testing.T) {
	cases := []struct {
		year, month int
		wantEnd     Date
	}{
		{2024, 2, NewDate(2024, 2, 29)}, // leap year
		{2023, 2, NewDate(2023, 2, 28)},
		{2024, 4, NewDate(2024, 4, 30)},
		{2024, 12, NewDate(2024, 12, 31)},
		{2024, 1, NewDate(2024, 1, 31)},
	}
	for _, tc := range cases {
		start, end := MonthWindow(tc.year, tc.month)
		if start != NewDate(tc.year, tc.month, 1) {
			t.Fatalf("%d-%d start: got %v", tc.year, tc.month, start)
		}
		if end != tc.wantEnd {
			t.Fatalf("%d-%d end: got %v, want %v", tc.year, tc.month, end, tc.wantEnd)
		}
	}
}
