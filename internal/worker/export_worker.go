package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"moneta/internal/amqp"
	"moneta/internal/core"
	"moneta/internal/sheets"
	"moneta/internal/storage"
)

// ExportWorker forwards changed monthly summaries to an outbound summary
// writer. It consumes ledger change messages, loads the current summary for
// each affected month, and writes it out. The message carries only keys, so
// processing is idempotent: re-delivery just re-exports the latest state.
type ExportWorker struct {
	storage *storage.SQLiteRepository
	writer  sheets.SummaryWriter
}

func NewExportWorker(storage *storage.SQLiteRepository, writer sheets.SummaryWriter) *ExportWorker {
	return &ExportWorker{
		storage: storage,
		writer:  writer,
	}
}

// HandleChangeMessage exports every month named in the message. A month
// without a summary row is skipped: the message may refer to state that a
// later mutation already replaced.
func (w *ExportWorker) HandleChangeMessage(ctx context.Context, msg *amqp.LedgerChangeMessage) error {
	slog.InfoContext(ctx, "Processing ledger change message",
		"owner", msg.Owner,
		"month_keys", msg.MonthKeys)

	for _, monthKey := range msg.MonthKeys {
		if err := w.exportMonth(ctx, msg.Owner, monthKey); err != nil {
			return fmt.Errorf("export month %s: %w", monthKey, err)
		}
	}
	return nil
}

func (w *ExportWorker) exportMonth(ctx context.Context, owner string, monthKey core.MonthKey) error {
	summary, err := w.storage.GetSummary(ctx, owner, monthKey)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "No summary for changed month, skipping export",
			"owner", owner,
			"month_key", monthKey)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load summary: %w", err)
	}

	if err := w.writer.WriteSummary(ctx, *summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	slog.InfoContext(ctx, "Summary exported",
		"owner", owner,
		"month_key", monthKey,
		"profit", summary.Profit.String())
	return nil
}
