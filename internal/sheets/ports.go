package sheets

import (
	"context"

	"hisob/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionWriter appends one recorded transaction to the export sheet
	// for its year.
	TransactionWriter interface {
		Append(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}

	// ExportChecker reports whether a transaction was already exported, so
	// redelivered events do not produce duplicate rows.
	ExportChecker interface {
		Exported(ctx context.Context, tx core.Transaction) (bool, error)
	}

	TransactionExporter interface {
		TransactionWriter
		ExportChecker
	}
)
