package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"budgetplanner/internal/auth"
	"budgetplanner/internal/core"
	"budgetplanner/internal/docstore"
	"budgetplanner/internal/ledger"
	applog "budgetplanner/internal/log"
)

type transactionRequest struct {
	Title    string `json:"title"`
	Amount   string `json:"amount"`
	Type     string `json:"type"`
	Category string `json:"category"`
	Date     string `json:"date"`
}

type deleteResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request, session auth.Session) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTransactions(w, r, session)
	case http.MethodPost:
		s.handleCreateTransaction(w, r, session)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, session auth.Session) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ws := s.workspaceFor(session)
	if err := ws.Load(r.Context(), year, month); err != nil {
		applog.FromContext(r.Context()).Error("month load failed",
			applog.FieldComponent, applog.ComponentLedger,
			applog.FieldUserID, session.UserID,
			applog.FieldYear, year, applog.FieldMonth, month,
			applog.FieldError, err.Error())
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "transaction store unavailable"})
		return
	}

	f := core.NewFilter(year, month)
	if v := strings.TrimSpace(r.URL.Query().Get("search")); v != "" {
		f.Search = v
	}
	if v := strings.TrimSpace(r.URL.Query().Get("type")); v != "" {
		f.Type = v
	}
	if v := strings.TrimSpace(r.URL.Query().Get("category")); v != "" {
		f.Category = v
	}

	visible, summary := ws.View(f)

	resp := listResponse{
		Transactions: make([]transactionPayload, 0, len(visible)),
		Summary:      toSummaryPayload(summary),
		Year:         year,
		Month:        month,
		Shown:        len(visible),
		Total:        len(ws.Transactions()),
	}
	for _, t := range visible {
		resp.Transactions = append(resp.Transactions, toPayload(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, session auth.Session) {
	txn, err := decodeTransaction(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	ws := s.workspaceFor(session)
	created, err := ws.Create(r.Context(), txn)
	if err != nil {
		writeError(w, mutationStatus(err), err)
		return
	}

	s.invalidateSummaries(session.UserID)
	s.publishRecorded(r, created.ID, session.UserID)

	applog.FromContext(r.Context()).Info("transaction recorded",
		applog.NewFields().
			WithComponent(applog.ComponentLedger).
			WithOperation(applog.OpCreate).
			WithUser(session.UserID).
			WithTransaction(created.ID, created.Title, string(created.Type), created.Category, created.Amount.Cents).
			ToSlice()...)

	writeJSON(w, http.StatusCreated, toPayload(created))
}

func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request, session auth.Session) {
	id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown transaction"})
		return
	}

	switch r.Method {
	case http.MethodPut:
		s.handleUpdateTransaction(w, r, session, id)
	case http.MethodDelete:
		s.handleDeleteTransaction(w, r, session, id)
	default:
		w.Header().Set("Allow", "PUT, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, session auth.Session, id string) {
	txn, err := decodeTransaction(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	ws := s.workspaceFor(session)
	updated, err := ws.Update(r.Context(), id, txn)
	if err != nil {
		writeError(w, mutationStatus(err), err)
		return
	}

	s.invalidateSummaries(session.UserID)
	s.publishRecorded(r, id, session.UserID)

	applog.FromContext(r.Context()).Info("transaction updated",
		applog.FieldComponent, applog.ComponentLedger,
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldUserID, session.UserID,
		applog.FieldTxnID, id)

	writeJSON(w, http.StatusOK, toPayload(updated))
}

// handleDeleteTransaction is the two-step delete: the first DELETE only
// marks the record and answers 202, the repeat with confirm=true removes
// it. cancel=true clears the pending mark.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, session auth.Session, id string) {
	ws := s.workspaceFor(session)
	q := r.URL.Query()

	if q.Get("cancel") == "true" {
		if ws.PendingDelete() != id {
			writeError(w, http.StatusConflict, ledger.ErrNoPendingDelete)
			return
		}
		ws.CancelDelete()
		writeJSON(w, http.StatusOK, deleteResponse{ID: id, Status: "cancelled"})
		return
	}

	if q.Get("confirm") != "true" {
		if err := ws.RequestDelete(id); err != nil {
			writeError(w, mutationStatus(err), err)
			return
		}
		writeJSON(w, http.StatusAccepted, deleteResponse{ID: id, Status: "confirmation required"})
		return
	}

	if ws.PendingDelete() != id {
		writeError(w, http.StatusConflict, ledger.ErrNoPendingDelete)
		return
	}
	if err := ws.ConfirmDelete(r.Context()); err != nil {
		writeError(w, mutationStatus(err), err)
		return
	}

	s.invalidateSummaries(session.UserID)
	s.publishDeleted(r, id, session.UserID)

	applog.FromContext(r.Context()).Info("transaction deleted",
		applog.FieldComponent, applog.ComponentLedger,
		applog.FieldOperation, applog.OpDelete,
		applog.FieldUserID, session.UserID,
		applog.FieldTxnID, id)

	w.WriteHeader(http.StatusNoContent)
}

// handleSummary serves the unfiltered month totals, cached per user and
// month.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, session auth.Session) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	key := s.summaryKey(session.UserID, year, month)
	if cached, ok := s.summaryCache.Get(key); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	txns, err := s.store.FetchMonth(r.Context(), session.UserID, year, month)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "transaction store unavailable"})
		return
	}

	payload := toSummaryPayload(core.Summarize(txns))
	s.summaryCache.Set(key, payload)
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	typ := strings.TrimSpace(r.URL.Query().Get("type"))
	if typ == "" {
		writeJSON(w, http.StatusOK, map[string][]string{
			string(core.Income):  core.Categories(core.Income),
			string(core.Expense): core.Categories(core.Expense),
		})
		return
	}

	tt := core.TransactionType(typ)
	if err := tt.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{typ: core.Categories(tt)})
}

func (s *Server) publishRecorded(r *http.Request, id, userID string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionRecorded(r.Context(), id, userID); err != nil {
		applog.FromContext(r.Context()).Warn("export publish failed",
			applog.FieldComponent, applog.ComponentAMQP,
			applog.FieldTxnID, id, applog.FieldError, err.Error())
	}
}

func (s *Server) publishDeleted(r *http.Request, id, userID string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionDeleted(r.Context(), id, userID); err != nil {
		applog.FromContext(r.Context()).Warn("export publish failed",
			applog.FieldComponent, applog.ComponentAMQP,
			applog.FieldTxnID, id, applog.FieldError, err.Error())
	}
}

func decodeTransaction(r *http.Request) (core.Transaction, error) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return core.Transaction{}, errors.New("invalid request body")
	}

	cents, err := core.ParseDecimalToCents(strings.TrimSpace(req.Amount))
	if err != nil {
		return core.Transaction{}, core.ErrInvalidAmount
	}

	date, err := core.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		return core.Transaction{}, core.ErrInvalidDate
	}

	return core.Transaction{
		Title:    strings.TrimSpace(req.Title),
		Amount:   core.Money{Cents: cents},
		Type:     core.TransactionType(req.Type),
		Category: req.Category,
		Date:     date,
	}, nil
}

// mutationStatus maps workspace errors onto HTTP statuses: validation as
// 422, unknown ids as 404, store trouble as 502.
func mutationStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrUnknownTransaction), errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrNoPendingDelete):
		return http.StatusConflict
	case errors.Is(err, core.ErrEmptyTitle),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrFutureDate),
		errors.Is(err, core.ErrMissingUser):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func parseYearMonth(r *http.Request) (year, month int, err error) {
	now := time.Now().UTC()
	year = now.Year()
	month = int(now.Month())

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		year, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid year %q", v)
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		month, err = strconv.Atoi(v)
		if err != nil || month < 1 || month > 12 {
			return 0, 0, fmt.Errorf("invalid month %q", v)
		}
	}
	return year, month, nil
}
