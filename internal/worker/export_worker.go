package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"hisob/internal/amqp"
	"hisob/internal/log"
	"hisob/internal/period"
	"hisob/internal/sheets"
	"hisob/internal/storage"
)

// ExportWorker copies recorded transactions from storage to the export sheet.
// It consumes transaction.recorded events and logs budget and goal
// notifications.
type ExportWorker struct {
	store    storage.TransactionStore
	exporter sheets.TransactionExporter
}

func NewExportWorker(store storage.TransactionStore, exporter sheets.TransactionExporter) *ExportWorker {
	return &ExportWorker{store: store, exporter: exporter}
}

// HandleDelivery dispatches on the routing key. Payloads that cannot be
// decoded are reported as poison so the broker drops them.
func (w *ExportWorker) HandleDelivery(ctx context.Context, d amqp.Delivery) error {
	switch d.RoutingKey {
	case amqp.KeyTransactionRecorded:
		msg, err := amqp.TransactionRecordedMessageFromJSON(d.Body)
		if err != nil {
			return fmt.Errorf("%w: decode %s: %v", amqp.ErrPoison, d.RoutingKey, err)
		}
		return w.HandleTransactionRecorded(ctx, msg)

	case amqp.KeyBudgetAlert:
		msg, err := amqp.BudgetAlertMessageFromJSON(d.Body)
		if err != nil {
			return fmt.Errorf("%w: decode %s: %v", amqp.ErrPoison, d.RoutingKey, err)
		}
		slog.WarnContext(ctx, "Budget alert",
			"budget_id", msg.BudgetID,
			"user_id", msg.UserID,
			"state", msg.State,
			"usage_pct", msg.UsagePct,
			"spent", msg.Spent,
			"currency", msg.Currency)
		return nil

	case amqp.KeyGoalStatusChanged:
		msg, err := amqp.GoalStatusChangedMessageFromJSON(d.Body)
		if err != nil {
			return fmt.Errorf("%w: decode %s: %v", amqp.ErrPoison, d.RoutingKey, err)
		}
		slog.InfoContext(ctx, "Goal status changed",
			"goal_id", msg.GoalID,
			"user_id", msg.UserID,
			"from", msg.From,
			"to", msg.To,
			"progress_pct", msg.Progress)
		return nil
	}

	slog.WarnContext(ctx, "Ignoring message with unknown routing key", "routing_key", d.RoutingKey)
	return nil
}

// HandleTransactionRecorded exports the referenced transaction once. A
// transaction that no longer exists is dropped.
func (w *ExportWorker) HandleTransactionRecorded(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"id", msg.ID,
		"user_id", msg.UserID,
		"kind", msg.Kind)

	tx, err := w.store.GetTransaction(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: transaction %s not found", amqp.ErrPoison, msg.ID)
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}

	done, err := w.exporter.Exported(ctx, tx)
	if err != nil {
		return fmt.Errorf("check export: %w", err)
	}
	if done {
		slog.DebugContext(ctx, "Transaction already exported", "id", tx.ID)
		return nil
	}

	ref, err := w.exporter.Append(ctx, tx)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	log.NewStructuredLogger(log.FromContext(ctx)).LogTransactionExported(ctx,
		tx.ID, tx.UserID, string(tx.Kind), tx.Amount.String(), string(tx.Currency), ref)
	return nil
}

// BackfillResult counts the outcome of a backfill run.
type BackfillResult struct {
	Total    int
	Exported int
	Skipped  int
	Errors   int
}

// Backfill exports every transaction of userID in r that is not in the sheet
// yet. It recovers from lost events or worker downtime.
func (w *ExportWorker) Backfill(ctx context.Context, userID int64, r period.Range) (BackfillResult, error) {
	txs, err := w.store.ListTransactions(ctx, userID, r)
	if err != nil {
		return BackfillResult{}, fmt.Errorf("list transactions for backfill: %w", err)
	}

	res := BackfillResult{Total: len(txs)}
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		done, err := w.exporter.Exported(ctx, tx)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to check export", "id", tx.ID, "error", err)
			res.Errors++
			continue
		}
		if done {
			res.Skipped++
			continue
		}
		if _, err := w.exporter.Append(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction during backfill", "id", tx.ID, "error", err)
			res.Errors++
			continue
		}
		res.Exported++
	}

	slog.InfoContext(ctx, "Backfill completed",
		"user_id", userID,
		"range", r.String(),
		"total", res.Total,
		"exported", res.Exported,
		"skipped", res.Skipped,
		"errors", res.Errors)
	return res, nil
}
