package irn

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a dev/test fallback used when Postgres is not configured.
// It mirrors the PostgresStore semantics, including the expiry guard and
// all-or-nothing batch insert.
type MemoryStore struct {
	mu      sync.Mutex
	byIRN   map[string]Record
	ordered []string // IRN values in insertion order
}

// NewMemoryStore constructs an in-memory Store implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byIRN: make(map[string]Record)}
}

// Close closes the store (noop for in-memory).
func (s *MemoryStore) Close() error { return nil }

// Insert persists a record, rejecting duplicate IRN values.
func (s *MemoryStore) Insert(ctx context.Context, rec Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if rec.IRN == "" || rec.IntegrationID == "" {
		return Record{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byIRN[rec.IRN]; ok {
		return Record{}, ErrConflict
	}
	s.byIRN[rec.IRN] = rec
	s.ordered = append(s.ordered, rec.IRN)
	return rec, nil
}

// InsertBatch persists all records or none of them.
func (s *MemoryStore) InsertBatch(ctx context.Context, recs []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range recs {
		if rec.IRN == "" || rec.IntegrationID == "" {
			return ErrInvalidInput
		}
		if _, ok := s.byIRN[rec.IRN]; ok {
			return ErrConflict
		}
	}
	for _, rec := range recs {
		s.byIRN[rec.IRN] = rec
		s.ordered = append(s.ordered, rec.IRN)
	}
	return nil
}

// GetByIRN fetches a record by its IRN value.
func (s *MemoryStore) GetByIRN(ctx context.Context, irn string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byIRN[irn]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// GetByInvoiceNumber fetches the record generated for an invoice number
// within one integration.
func (s *MemoryStore) GetByInvoiceNumber(ctx context.Context, integrationID, invoiceNumber string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, irn := range s.ordered {
		rec := s.byIRN[irn]
		if rec.IntegrationID == integrationID && rec.InvoiceNumber == invoiceNumber {
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

// ListByIntegration returns an integration's records ordered by generation
// time descending, with offset/limit paging.
func (s *MemoryStore) ListByIntegration(ctx context.Context, integrationID string, skip, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if skip < 0 || limit <= 0 {
		return nil, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.matchLocked(&integrationID)
	if skip >= len(matched) {
		return []Record{}, nil
	}
	matched = matched[skip:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// SetStatus applies a status transition with the expiry guard.
func (s *MemoryStore) SetStatus(ctx context.Context, in SetStatusRecord) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byIRN[in.IRN]
	if !ok {
		return Record{}, ErrNotFound
	}
	if rec.Expired(in.Now) && in.Status != StatusExpired {
		return Record{}, ErrExpired
	}

	rec.Status = in.Status
	switch in.Status {
	case StatusUsed:
		now := in.Now
		rec.UsedAt = &now
		if in.InvoiceID != nil {
			rec.InvoiceID = in.InvoiceID
		}
	case StatusUnused:
		rec.UsedAt = nil
		rec.InvoiceID = nil
	}
	s.byIRN[in.IRN] = rec
	return rec, nil
}

// CountsByStatus tallies records per status, optionally for one integration.
func (s *MemoryStore) CountsByStatus(ctx context.Context, integrationID *string) (Counts, error) {
	if err := ctx.Err(); err != nil {
		return Counts{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var c Counts
	for _, rec := range s.matchLocked(integrationID) {
		switch rec.Status {
		case StatusUsed:
			c.Used++
		case StatusUnused:
			c.Unused++
		case StatusExpired:
			c.Expired++
		}
		c.Total++
	}
	return c, nil
}

// Recent returns the most recently generated records, newest first.
func (s *MemoryStore) Recent(ctx context.Context, integrationID *string, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.matchLocked(integrationID)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// SweepExpired flips unused records past their validity window to expired.
func (s *MemoryStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for irn, rec := range s.byIRN {
		if rec.Status == StatusUnused && rec.ValidUntil.Before(now) {
			rec.Status = StatusExpired
			s.byIRN[irn] = rec
			n++
		}
	}
	return n, nil
}

// matchLocked returns records for the optional integration scope ordered by
// GeneratedAt descending. Caller must hold s.mu.
func (s *MemoryStore) matchLocked(integrationID *string) []Record {
	out := make([]Record, 0, len(s.ordered))
	for _, irn := range s.ordered {
		rec := s.byIRN[irn]
		if integrationID != nil && rec.IntegrationID != *integrationID {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].GeneratedAt.After(out[j].GeneratedAt)
	})
	return out
}
