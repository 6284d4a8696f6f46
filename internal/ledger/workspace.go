package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"budgetplanner/internal/auth"
	"budgetplanner/internal/core"
	"budgetplanner/internal/docstore"
)

var (
	ErrUnknownTransaction = errors.New("transaction not in working copy")
	ErrNoPendingDelete    = errors.New("no delete awaiting confirmation")
)

// Workspace is the working copy of one user's selected month: the last
// confirmed remote state plus optimistic reconciliation after each
// successful mutation. Every mutation is validate, then remote call,
// then local apply on success, so the visible list never shows a state
// the store has not accepted.
type Workspace struct {
	store   *TransactionStore
	session auth.Session
	now     func() time.Time

	mu            sync.Mutex
	txns          []core.Transaction
	loaded        bool
	pendingDelete string
}

func NewWorkspace(store *TransactionStore, session auth.Session) *Workspace {
	return &Workspace{
		store:   store,
		session: session,
		now:     time.Now,
	}
}

// Load replaces the working copy with a fresh month fetch. A failed
// initial load leaves the copy empty; a failed re-load keeps the
// previous known-good copy.
func (w *Workspace) Load(ctx context.Context, year, month int) error {
	fetched, err := w.store.FetchMonth(ctx, w.session.UserID, year, month)
	if err != nil {
		w.mu.Lock()
		if !w.loaded {
			w.txns = nil
		}
		w.mu.Unlock()
		return err
	}

	w.mu.Lock()
	w.txns = fetched
	w.loaded = true
	w.pendingDelete = ""
	w.mu.Unlock()
	return nil
}

// Transactions returns a copy of the working set in display order.
func (w *Workspace) Transactions() []core.Transaction {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]core.Transaction(nil), w.txns...)
}

// View applies the filter and computes totals over the visible subset.
func (w *Workspace) View(f core.Filter) ([]core.Transaction, core.Summary) {
	visible := f.Apply(w.Transactions())
	return visible, core.Summarize(visible)
}

// Create validates the input, persists it, and prepends the stored
// record to the working copy. The owner is always the workspace's
// session, regardless of what the input carries.
func (w *Workspace) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	t.ID = ""
	t.UserID = w.session.UserID
	if err := t.Validate(w.now()); err != nil {
		return core.Transaction{}, err
	}

	created, err := w.store.Create(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}

	w.mu.Lock()
	w.txns = append([]core.Transaction{created}, w.txns...)
	w.mu.Unlock()
	return created, nil
}

// Update replaces the fields of the transaction with the given edit id,
// keeping its position in the working copy. The edit id must name a
// record in the working copy.
func (w *Workspace) Update(ctx context.Context, editID string, t core.Transaction) (core.Transaction, error) {
	w.mu.Lock()
	idx := w.indexOf(editID)
	w.mu.Unlock()
	if idx < 0 {
		return core.Transaction{}, ErrUnknownTransaction
	}

	t.ID = editID
	t.UserID = w.session.UserID
	if err := t.Validate(w.now()); err != nil {
		return core.Transaction{}, err
	}

	if err := w.store.Update(ctx, t); err != nil {
		return core.Transaction{}, err
	}

	w.mu.Lock()
	if idx = w.indexOf(editID); idx >= 0 {
		t.CreatedAt = w.txns[idx].CreatedAt
		w.txns[idx] = t
	}
	w.mu.Unlock()
	return t, nil
}

// RequestDelete marks a transaction for deletion and waits for an
// explicit confirmation. Nothing is removed until ConfirmDelete.
func (w *Workspace) RequestDelete(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.indexOf(id) < 0 {
		return ErrUnknownTransaction
	}
	w.pendingDelete = id
	return nil
}

// PendingDelete returns the id awaiting confirmation, or "" when none.
func (w *Workspace) PendingDelete() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pendingDelete
}

// CancelDelete clears any pending confirmation.
func (w *Workspace) CancelDelete() {
	w.mu.Lock()
	w.pendingDelete = ""
	w.mu.Unlock()
}

// ConfirmDelete performs the remote delete and removes the record from
// the working copy on success. Confirming with nothing pending, or
// confirming a record that is already gone remotely, is a no-op.
func (w *Workspace) ConfirmDelete(ctx context.Context) error {
	w.mu.Lock()
	id := w.pendingDelete
	w.mu.Unlock()
	if id == "" {
		return ErrNoPendingDelete
	}

	if err := w.store.Delete(ctx, id); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return err
	}

	w.mu.Lock()
	if idx := w.indexOf(id); idx >= 0 {
		w.txns = append(w.txns[:idx:idx], w.txns[idx+1:]...)
	}
	w.pendingDelete = ""
	w.mu.Unlock()
	return nil
}

// indexOf must be called with w.mu held.
func (w *Workspace) indexOf(id string) int {
	for i, t := range w.txns {
		if t.ID == id {
			return i
		}
	}
	return -1
}
