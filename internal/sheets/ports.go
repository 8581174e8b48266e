package sheets

import (
	"context"

	"moneta/internal/core"
)

// Ports for outbound adapters.
type (
	// SummaryWriter receives the current state of a monthly summary after a
	// ledger change. Writes are idempotent at the consumer's discretion;
	// the export worker simply forwards the latest state.
	SummaryWriter interface {
		WriteSummary(ctx context.Context, s core.MonthlySummary) error
	}
)
