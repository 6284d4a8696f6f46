package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"budgetplanner/internal/auth"
	"budgetplanner/internal/core"
	"budgetplanner/internal/docstore"
	"budgetplanner/internal/docstore/memory"
)

var errStoreDown = errors.New("store unavailable")

// flakyStore wraps the memory backend and fails on demand, letting
// tests exercise the remote-failure contract.
type flakyStore struct {
	docstore.Store
	fail bool
}

func (f *flakyStore) Query(ctx context.Context, c string, w []docstore.Where) ([]docstore.Document, error) {
	if f.fail {
		return nil, errStoreDown
	}
	return f.Store.Query(ctx, c, w)
}

func (f *flakyStore) Insert(ctx context.Context, c string, fields docstore.Fields) (string, error) {
	if f.fail {
		return "", errStoreDown
	}
	return f.Store.Insert(ctx, c, fields)
}

func (f *flakyStore) Update(ctx context.Context, c, id string, fields docstore.Fields) error {
	if f.fail {
		return errStoreDown
	}
	return f.Store.Update(ctx, c, id, fields)
}

func (f *flakyStore) Delete(ctx context.Context, c, id string) error {
	if f.fail {
		return errStoreDown
	}
	return f.Store.Delete(ctx, c, id)
}

func testSession() auth.Session {
	return auth.Session{Token: "tok", UserID: "u1", Email: "u1@example.com"}
}

func newTestWorkspace(t *testing.T) (*Workspace, *flakyStore) {
	t.Helper()
	flaky := &flakyStore{Store: memory.New()}
	ws := NewWorkspace(NewTransactionStore(flaky), testSession())
	ws.now = func() time.Time { return time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC) }
	if err := ws.Load(context.Background(), 2024, 3); err != nil {
		t.Fatalf("initial load: %v", err)
	}
	return ws, flaky
}

func marchEntry(title string, typ core.TransactionType, category string, cents int64, day int) core.Transaction {
	return core.Transaction{
		Title:    title,
		Amount:   core.Money{Cents: cents},
		Type:     typ,
		Category: category,
		Date:     core.NewDate(2024, 3, day),
	}
}

func TestWorkspaceCreatePrepends(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	ctx := context.Background()

	first, err := ws.Create(ctx, marchEntry("Salary", core.Income, "Salary", 5000000, 1))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := ws.Create(ctx, marchEntry("Rent", core.Expense, "Housing", 1500000, 5))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got := ws.Transactions()
	if len(got) != 2 || got[0].ID != second.ID || got[1].ID != first.ID {
		t.Fatalf("new records must be prepended: %v", got)
	}
	if got[0].UserID != "u1" {
		t.Fatal("owner must be stamped from the session")
	}
}

func TestWorkspaceCreateValidationNeverHitsRemote(t *testing.T) {
	ws, flaky := newTestWorkspace(t)
	flaky.fail = true // any remote call would error loudly

	_, err := ws.Create(context.Background(), marchEntry("", core.Expense, "Food", 100, 5))
	if !errors.Is(err, core.ErrEmptyTitle) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(ws.Transactions()) != 0 {
		t.Fatal("validation failure must not touch local state")
	}
}

func TestWorkspaceCreateRemoteFailure(t *testing.T) {
	ws, flaky := newTestWorkspace(t)
	flaky.fail = true

	_, err := ws.Create(context.Background(), marchEntry("Rent", core.Expense, "Housing", 100, 5))
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(ws.Transactions()) != 0 {
		t.Fatal("failed remote create must leave the working copy unchanged")
	}
}

func TestWorkspaceUpdateInPlace(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	ctx := context.Background()

	a, _ := ws.Create(ctx, marchEntry("Salary", core.Income, "Salary", 5000000, 1))
	b, _ := ws.Create(ctx, marchEntry("Rnt", core.Expense, "Housing", 1400000, 5))

	edited := marchEntry("Rent", core.Expense, "Housing", 1500000, 5)
	updated, err := ws.Update(ctx, b.ID, edited)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "Rent" || updated.Amount.Cents != 1500000 {
		t.Fatalf("updated record: %+v", updated)
	}

	got := ws.Transactions()
	if got[0].ID != b.ID || got[1].ID != a.ID {
		t.Fatal("update must preserve position in the working copy")
	}
	if got[0].Title != "Rent" {
		t.Fatalf("local copy not reconciled: %+v", got[0])
	}
}

func TestWorkspaceUpdateUnknownID(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	_, err := ws.Update(context.Background(), "missing", marchEntry("Rent", core.Expense, "Housing", 100, 5))
	if !errors.Is(err, ErrUnknownTransaction) {
		t.Fatalf("expected ErrUnknownTransaction, got %v", err)
	}
}

func TestWorkspaceUpdateRemoteFailure(t *testing.T) {
	ws, flaky := newTestWorkspace(t)
	ctx := context.Background()

	created, _ := ws.Create(ctx, marchEntry("Rnt", core.Expense, "Housing", 100, 5))
	flaky.fail = true

	_, err := ws.Update(ctx, created.ID, marchEntry("Rent", core.Expense, "Housing", 100, 5))
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if got := ws.Transactions(); got[0].Title != "Rnt" {
		t.Fatal("failed remote update must leave the working copy unchanged")
	}
}

func TestWorkspaceDeleteRequiresConfirmation(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	ctx := context.Background()

	created, _ := ws.Create(ctx, marchEntry("Rent", core.Expense, "Housing", 100, 5))

	if err := ws.RequestDelete(created.ID); err != nil {
		t.Fatalf("request: %v", err)
	}
	if len(ws.Transactions()) != 1 {
		t.Fatal("nothing is removed before confirmation")
	}

	if err := ws.ConfirmDelete(ctx); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(ws.Transactions()) != 0 {
		t.Fatal("confirmed delete must remove the record")
	}

	// Confirming again with nothing pending is rejected but harmless.
	if err := ws.ConfirmDelete(ctx); !errors.Is(err, ErrNoPendingDelete) {
		t.Fatalf("double confirm: got %v", err)
	}
}

func TestWorkspaceDeleteCancel(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	ctx := context.Background()

	created, _ := ws.Create(ctx, marchEntry("Rent", core.Expense, "Housing", 100, 5))
	ws.RequestDelete(created.ID)
	ws.CancelDelete()

	if err := ws.ConfirmDelete(ctx); !errors.Is(err, ErrNoPendingDelete) {
		t.Fatalf("confirm after cancel: got %v", err)
	}
	if len(ws.Transactions()) != 1 {
		t.Fatal("cancelled delete must leave the record in place")
	}
}

func TestWorkspaceDeleteUnknownID(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	if err := ws.RequestDelete("missing"); !errors.Is(err, ErrUnknownTransaction) {
		t.Fatalf("expected ErrUnknownTransaction, got %v", err)
	}
}

func TestWorkspaceDeleteAlreadyGoneRemotely(t *testing.T) {
	flaky := &flakyStore{Store: memory.New()}
	store := NewTransactionStore(flaky)
	ws := NewWorkspace(store, testSession())
	ws.now = func() time.Time { return time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	ws.Load(ctx, 2024, 3)

	created, _ := ws.Create(ctx, marchEntry("Rent", core.Expense, "Housing", 100, 5))

	// Another device already deleted it remotely.
	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("out-of-band delete: %v", err)
	}

	ws.RequestDelete(created.ID)
	if err := ws.ConfirmDelete(ctx); err != nil {
		t.Fatalf("confirming an already-deleted record must not fail: %v", err)
	}
	if len(ws.Transactions()) != 0 {
		t.Fatal("record should be dropped from the working copy")
	}
}

func TestWorkspaceDeleteRemoteFailure(t *testing.T) {
	ws, flaky := newTestWorkspace(t)
	ctx := context.Background()

	created, _ := ws.Create(ctx, marchEntry("Rent", core.Expense, "Housing", 100, 5))
	ws.RequestDelete(created.ID)
	flaky.fail = true

	if err := ws.ConfirmDelete(ctx); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(ws.Transactions()) != 1 {
		t.Fatal("failed remote delete must leave the working copy unchanged")
	}
}

func TestWorkspaceLoadFailure(t *testing.T) {
	flaky := &flakyStore{Store: memory.New()}
	ws := NewWorkspace(NewTransactionStore(flaky), testSession())
	ws.now = func() time.Time { return time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	// Initial load failure leaves the copy empty.
	flaky.fail = true
	if err := ws.Load(ctx, 2024, 3); !errors.Is(err, errStoreDown) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(ws.Transactions()) != 0 {
		t.Fatal("failed initial load must leave the copy empty")
	}

	flaky.fail = false
	if err := ws.Load(ctx, 2024, 3); err != nil {
		t.Fatalf("load: %v", err)
	}
	ws.Create(ctx, marchEntry("Rent", core.Expense, "Housing", 100, 5))

	// A later failed re-fetch keeps the last known-good copy.
	flaky.fail = true
	if err := ws.Load(ctx, 2024, 3); err == nil {
		t.Fatal("expected load error")
	}
	if len(ws.Transactions()) != 1 {
		t.Fatal("failed re-load must keep the previous working copy")
	}
}

func TestWorkspaceViewEndToEnd(t *testing.T) {
	ws, _ := newTestWorkspace(t)
	ctx := context.Background()

	ws.Create(ctx, marchEntry("Salary", core.Income, "Salary", 5000000, 1))
	ws.Create(ctx, marchEntry("Rent", core.Expense, "Housing", 1500000, 5))

	f := core.NewFilter(2024, 3)
	visible, summary := ws.View(f)
	if len(visible) != 2 {
		t.Fatalf("visible: %d", len(visible))
	}
	if summary.Income.Cents != 5000000 || summary.Expense.Cents != 1500000 || summary.Balance.Cents != 3500000 {
		t.Fatalf("summary: %+v", summary)
	}

	f.Type = string(core.Expense)
	visible, summary = ws.View(f)
	if len(visible) != 1 || visible[0].Title != "Rent" {
		t.Fatalf("expense view: %v", visible)
	}
	if summary.Income.Cents != 0 {
		t.Fatal("income total follows the visible subset")
	}
}
