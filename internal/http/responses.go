package http

import (
	"encoding/json"
	"net/http"
	"time"

	"budgetplanner/internal/core"
)

type errorResponse struct {
	Error string `json:"error"`
}

type transactionPayload struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amount_cents"`
	Type        string `json:"type"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type summaryPayload struct {
	Income       string `json:"income"`
	Expense      string `json:"expense"`
	Balance      string `json:"balance"`
	IncomeCents  int64  `json:"income_cents"`
	ExpenseCents int64  `json:"expense_cents"`
	BalanceCents int64  `json:"balance_cents"`
}

type listResponse struct {
	Transactions []transactionPayload `json:"transactions"`
	Summary      summaryPayload       `json:"summary"`
	Year         int                  `json:"year"`
	Month        int                  `json:"month"`
	Shown        int                  `json:"shown"`
	Total        int                  `json:"total"`
}

type sessionResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func toPayload(t core.Transaction) transactionPayload {
	p := transactionPayload{
		ID:          t.ID,
		Title:       t.Title,
		Amount:      core.FormatAmount(t.Amount.Cents),
		AmountCents: t.Amount.Cents,
		Type:        string(t.Type),
		Category:    t.Category,
		Date:        t.Date.String(),
	}
	if !t.CreatedAt.IsZero() {
		p.CreatedAt = t.CreatedAt.UTC().Format(time.RFC3339)
	}
	return p
}

func toSummaryPayload(s core.Summary) summaryPayload {
	return summaryPayload{
		Income:       core.FormatAmount(s.Income.Cents),
		Expense:      core.FormatAmount(s.Expense.Cents),
		Balance:      core.FormatAmount(s.Balance.Cents),
		IncomeCents:  s.Income.Cents,
		ExpenseCents: s.Expense.Cents,
		BalanceCents: s.Balance.Cents,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
