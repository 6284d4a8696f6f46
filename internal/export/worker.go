package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budgetplanner/internal/amqp"
	"budgetplanner/internal/docstore"
	"budgetplanner/internal/ledger"
)

// Worker turns export feed messages into ledger rows. Messages carry
// only identifiers; the worker reads the full record from the store.
type Worker struct {
	store    *ledger.TransactionStore
	appender RowAppender
	remover  RowRemover
}

func NewWorker(store *ledger.TransactionStore, appender RowAppender, remover RowRemover) *Worker {
	return &Worker{
		store:    store,
		appender: appender,
		remover:  remover,
	}
}

// HandleRecorded exports a created or updated transaction. Any existing
// row for the id is removed first, so re-delivery and edits replace the
// row instead of duplicating it. A record deleted between publish and
// delivery is skipped, not retried.
func (w *Worker) HandleRecorded(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	t, err := w.store.Get(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			slog.WarnContext(ctx, "transaction gone before export, skipping", "txn_id", msg.ID)
			return nil
		}
		return fmt.Errorf("load transaction: %w", err)
	}

	if err := w.remover.RemoveTransaction(ctx, msg.ID); err != nil {
		return fmt.Errorf("replace exported row %s: %w", msg.ID, err)
	}
	if err := w.appender.AppendTransaction(ctx, t); err != nil {
		return fmt.Errorf("export transaction %s: %w", msg.ID, err)
	}

	slog.InfoContext(ctx, "transaction exported",
		"txn_id", t.ID,
		"user_id", t.UserID,
		"amount_cents", t.Amount.Cents)
	return nil
}

// HandleDeleted removes the exported row for a deleted transaction.
func (w *Worker) HandleDeleted(ctx context.Context, msg *amqp.TransactionDeletedMessage) error {
	if err := w.remover.RemoveTransaction(ctx, msg.ID); err != nil {
		return fmt.Errorf("remove exported row %s: %w", msg.ID, err)
	}
	slog.InfoContext(ctx, "exported row removed", "txn_id", msg.ID)
	return nil
}
