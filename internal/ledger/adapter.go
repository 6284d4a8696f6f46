// Package ledger holds the transaction store adapter and the per-session
// working copy that the dashboard operates on.
package ledger

import (
	"context"
	"fmt"
	"time"

	"budgetplanner/internal/core"
	"budgetplanner/internal/docstore"
)

const transactionsCollection = "transactions"

// TransactionStore maps between the Transaction entity (calendar date)
// and the docstore document shape (instant). All month scoping and
// ownership filtering happens here.
type TransactionStore struct {
	docs docstore.Store
}

func NewTransactionStore(docs docstore.Store) *TransactionStore {
	return &TransactionStore{docs: docs}
}

// FetchMonth returns the user's transactions dated within the selected
// month, inclusive of the first and true last calendar day.
func (s *TransactionStore) FetchMonth(ctx context.Context, userID string, year, month int) ([]core.Transaction, error) {
	start, end := core.MonthWindow(year, month)

	docs, err := s.docs.Query(ctx, transactionsCollection, []docstore.Where{
		{Field: "userId", Op: docstore.OpEqual, Value: userID},
		{Field: "date", Op: docstore.OpGreater, Value: start.Time},
		{Field: "date", Op: docstore.OpLess, Value: end.Time},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch month %d-%02d: %w", year, month, err)
	}

	txns := make([]core.Transaction, 0, len(docs))
	for _, doc := range docs {
		txns = append(txns, fromDocument(doc))
	}
	return txns, nil
}

// Get loads a single transaction by id.
func (s *TransactionStore) Get(ctx context.Context, id string) (core.Transaction, error) {
	doc, err := s.docs.Get(ctx, transactionsCollection, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return fromDocument(doc), nil
}

// Create persists a new transaction. The calendar date is converted to
// an instant at this boundary and createdAt is stamped by the store, not
// a client clock. The returned transaction carries the assigned id.
func (s *TransactionStore) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	fields := toFields(t)
	fields["userId"] = t.UserID
	fields["createdAt"] = docstore.ServerTimestamp()

	id, err := s.docs.Insert(ctx, transactionsCollection, fields)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	t.ID = id
	return t, nil
}

// Update rewrites the editable fields. userId and createdAt are
// write-once and never touched here.
func (s *TransactionStore) Update(ctx context.Context, t core.Transaction) error {
	if err := s.docs.Update(ctx, transactionsCollection, t.ID, toFields(t)); err != nil {
		return fmt.Errorf("update transaction %s: %w", t.ID, err)
	}
	return nil
}

func (s *TransactionStore) Delete(ctx context.Context, id string) error {
	if err := s.docs.Delete(ctx, transactionsCollection, id); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}

func toFields(t core.Transaction) docstore.Fields {
	return docstore.Fields{
		"title":    t.Title,
		"amount":   t.Amount.Cents,
		"type":     string(t.Type),
		"category": t.Category,
		"date":     t.Date.Time,
	}
}

func fromDocument(doc docstore.Document) core.Transaction {
	t := core.Transaction{ID: doc.ID}
	t.Title, _ = doc.Fields["title"].(string)
	t.Amount.Cents = asInt64(doc.Fields["amount"])
	if typ, ok := doc.Fields["type"].(string); ok {
		t.Type = core.TransactionType(typ)
	}
	t.Category, _ = doc.Fields["category"].(string)
	if instant, ok := doc.Fields["date"].(time.Time); ok {
		t.Date = core.DateOf(instant)
	}
	t.UserID, _ = doc.Fields["userId"].(string)
	if created, ok := doc.Fields["createdAt"].(time.Time); ok {
		t.CreatedAt = created
	}
	return t
}

// asInt64 tolerates the float64 that JSON-backed stores hand back for
// numeric fields.
func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
