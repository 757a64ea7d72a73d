package irn

import (
	"context"
	"time"
)

// SetStatusRecord describes a status transition request against the store.
type SetStatusRecord struct {
	IRN       string
	Status    Status
	InvoiceID *string
	Now       time.Time
}

// Counts are per-status record counts.
type Counts struct {
	Used    int64
	Unused  int64
	Expired int64
	Total   int64
}

// Store is the persistence boundary for IRN records.
//
// Requirements:
//   - Uniqueness on the IRN value (Insert returns ErrConflict on duplicates)
//   - InsertBatch is all-or-nothing: either every record commits or none do
//   - SetStatus enforces the expiry guard atomically: past ValidUntil, only
//     a transition to expired may land (ErrExpired otherwise)
type Store interface {
	Insert(ctx context.Context, rec Record) (Record, error)
	InsertBatch(ctx context.Context, recs []Record) error
	GetByIRN(ctx context.Context, irn string) (Record, error)
	GetByInvoiceNumber(ctx context.Context, integrationID, invoiceNumber string) (Record, error)
	ListByIntegration(ctx context.Context, integrationID string, skip, limit int) ([]Record, error)
	SetStatus(ctx context.Context, in SetStatusRecord) (Record, error)
	CountsByStatus(ctx context.Context, integrationID *string) (Counts, error)
	Recent(ctx context.Context, integrationID *string, limit int) ([]Record, error)
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	Close() error
}
