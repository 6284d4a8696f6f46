package core

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func validTransaction() Transaction {
	return Transaction{
		Title:    "Groceries",
		Amount:   Money{Cents: 4250},
		Type:     Expense,
		Category: "Food",
		Date:     NewDate(2025, 6, 10),
		UserID:   "user-1",
	}
}

func TestTransactionValidate(t *testing.T) {
	if err := validTransaction().Validate(testNow); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Transaction)
		want   error
	}{
		{"empty title", func(tx *Transaction) { tx.Title = "  " }, ErrEmptyTitle},
		{"negative amount", func(tx *Transaction) { tx.Amount.Cents = -1 }, ErrInvalidAmount},
		{"bad type", func(tx *Transaction) { tx.Type = "Transfer" }, ErrInvalidType},
		{"empty category", func(tx *Transaction) { tx.Category = "" }, ErrInvalidCategory},
		{"category of other type", func(tx *Transaction) { tx.Category = "Salary" }, ErrInvalidCategory},
		{"zero date", func(tx *Transaction) { tx.Date = Date{} }, ErrInvalidDate},
		{"future date", func(tx *Transaction) { tx.Date = NewDate(2025, 6, 16) }, ErrFutureDate},
		{"missing user", func(tx *Transaction) { tx.UserID = "" }, ErrMissingUser},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := validTransaction()
			tc.mutate(&tx)
			if err := tx.Validate(testNow); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestTransactionValidateTodayAllowed(t *testing.T) {
	tx := validTransaction()
	tx.Date = NewDate(2025, 6, 15)
	// now is midday; a transaction dated today must pass the max bound.
	if err := tx.Validate(testNow); err != nil {
		t.Fatalf("expected ok for today, got %v", err)
	}
}

func TestCategoryTaxonomy(t *testing.T) {
	if !CategoryAllowed(Income, "Salary") {
		t.Fatal("Salary should be an Income category")
	}
	if CategoryAllowed(Expense, "Salary") {
		t.Fatal("Salary must not be an Expense category")
	}
	if CategoryAllowed(Income, "") {
		t.Fatal("empty category must never be allowed")
	}
	if got := Categories("Transfer"); got != nil {
		t.Fatalf("unknown type should yield nil, got %v", got)
	}
	// Both types share the trailing catch-all label.
	incomes := Categories(Income)
	expenses := Categories(Expense)
	if incomes[len(incomes)-1] != "Other" || expenses[len(expenses)-1] != "Other" {
		t.Fatal("both category sets should end with Other")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-01")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Year() != 2024 || d.Month() != 3 || d.Day() != 1 {
		t.Fatalf("got %v", d)
	}
	if _, err := ParseDate("01/03/2024"); err == nil {
		t.Fatal("expected error for wrong layout")
	}
}

func TestDateOfNearMidnightUTC(t *testing.T) {
	// 23:59 UTC and 00:01 UTC on adjacent days must map to different
	// calendar dates, with no off-by-one.
	late := time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC)
	early := time.Date(2024, 3, 1, 0, 1, 0, 0, time.UTC)
	if got := DateOf(late); got != NewDate(2024, 2, 29) {
		t.Fatalf("late: got %v", got)
	}
	if got := DateOf(early); got != NewDate(2024, 3, 1) {
		t.Fatalf("early: got %v", got)
	}
	// A non-UTC instant normalizes to its UTC calendar date.
	ist := time.FixedZone("IST", 5*3600+1800)
	if got := DateOf(time.Date(2024, 3, 1, 2, 0, 0, 0, ist)); got != NewDate(2024, 2, 29) {
		t.Fatalf("zone: got %v", got)
	}
}
