package irn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// Integration tests are enabled when FIRSGATE_DATABASE_URL is set.
// In non-CI runs, unreachable Postgres skips these tests to keep local runs fast.

func TestPostgresStore_CreateSetStatusSweep(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplySchema(t, pool, schema)

	store, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()
	ts := now.Format("20060102")

	rec, err := svc.Create(ctx, CreateInput{
		IntegrationID: "int-pg-1",
		InvoiceNumber: "INV001",
		ServiceID:     "94ND90NR",
		Timestamp:     ts,
		MetaData:      map[string]string{"source": "test"},
		Now:           now,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.IRN != "INV001-94ND90NR-"+ts {
		t.Fatalf("unexpected irn: %q", rec.IRN)
	}

	again, err := svc.Create(ctx, CreateInput{
		IntegrationID: "int-pg-1",
		InvoiceNumber: "INV001",
		ServiceID:     "94ND90NR",
		Timestamp:     ts,
		Now:           now,
	})
	if err != nil {
		t.Fatalf("idempotent create: %v", err)
	}
	if again.ID != rec.ID {
		t.Fatalf("expected stored record back, got %q vs %q", again.ID, rec.ID)
	}

	if _, err := svc.Create(ctx, CreateInput{
		IntegrationID: "int-pg-2",
		InvoiceNumber: "INV001",
		ServiceID:     "94ND90NR",
		Timestamp:     ts,
		Now:           now,
	}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict across integrations, got %v", err)
	}

	invoiceID := "erp-7"
	used, err := svc.SetStatus(ctx, SetStatusInput{IRN: rec.IRN, Status: "used", InvoiceID: &invoiceID, Now: now})
	if err != nil {
		t.Fatalf("set used: %v", err)
	}
	if used.Status != StatusUsed || used.UsedAt == nil || used.InvoiceID == nil || *used.InvoiceID != invoiceID {
		t.Fatalf("unexpected used record: %+v", used)
	}

	// The guard rejects anything but expired once the window has passed.
	past := rec.ValidUntil.Add(time.Minute)
	back, err := svc.SetStatus(ctx, SetStatusInput{IRN: rec.IRN, Status: "unused", Now: now})
	if err != nil {
		t.Fatalf("set unused: %v", err)
	}
	if back.UsedAt != nil || back.InvoiceID != nil {
		t.Fatalf("expected cleared record, got %+v", back)
	}
	if _, err := svc.SetStatus(ctx, SetStatusInput{IRN: rec.IRN, Status: "used", Now: past}); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired past the window, got %v", err)
	}

	n, err := svc.SweepExpired(ctx, past)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}

	rep, err := svc.Validate(ctx, rec.IRN, past)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if rep.Success || rep.Status != StatusExpired {
		t.Fatalf("expected expired report, got %+v", rep)
	}
}

func TestPostgresStore_BatchAllOrNothing(t *testing.T) {
	t.Parallel()

	pool := mustOpenTestPool(t)
	defer pool.Close()

	schema := mustCreateTestSchema(t, pool)
	t.Cleanup(func() { mustDropSchema(t, pool, schema) })
	mustApplySchema(t, pool, schema)

	store, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()
	ts := now.Format("20060102")

	mk := func(inv string) Record {
		id, err := newULID(now)
		if err != nil {
			t.Fatalf("ulid: %v", err)
		}
		return Record{
			ID:            id,
			IRN:           inv + "-94ND90NR-" + ts,
			IntegrationID: "int-batch",
			InvoiceNumber: inv,
			ServiceID:     "94ND90NR",
			Timestamp:     ts,
			Status:        StatusUnused,
			GeneratedAt:   now,
			ValidUntil:    now.Add(7 * 24 * time.Hour),
		}
	}

	if _, err := store.Insert(ctx, mk("DUP")); err != nil {
		t.Fatalf("seed insert: %v", err)
	}

	// Batch containing a colliding IRN rolls back entirely.
	err = store.InsertBatch(ctx, []Record{mk("NEW1"), mk("DUP"), mk("NEW2")})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := store.GetByIRN(ctx, "NEW1-94ND90NR-"+ts); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected rollback of NEW1, got %v", err)
	}

	if err := store.InsertBatch(ctx, []Record{mk("NEW1"), mk("NEW2")}); err != nil {
		t.Fatalf("clean batch: %v", err)
	}
	counts, err := store.CountsByStatus(ctx, nil)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Total != 3 || counts.Unused != 3 {
		t.Fatalf("unexpected counts: %+v", counts)
	}

	list, err := store.ListByIntegration(ctx, "int-batch", 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 records, got %d", len(list))
	}
}

// ---- helpers ----

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("FIRSGATE_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: FIRSGATE_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse FIRSGATE_DATABASE_URL: %v", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable (FIRSGATE_DATABASE_URL set): %v", err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	return pool
}

func shouldSkipIntegration(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host") {
		return true
	}
	return false
}

func mustCreateTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	schema := "firsgate_irn_it_" + strings.ToLower(ulid.Make().String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := pool.Exec(ctx, `CREATE SCHEMA `+pgx.Identifier{schema}.Sanitize()); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return schema
}

func mustDropSchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+pgx.Identifier{schema}.Sanitize()+` CASCADE`)
}

func mustApplySchema(t *testing.T, pool *pgxpool.Pool, schema string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	irns := pgx.Identifier{schema, "irns"}.Sanitize()

	schemaSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  irn TEXT NOT NULL,
  integration_id TEXT NOT NULL,
  invoice_number TEXT NOT NULL,
  service_id TEXT NOT NULL,
  irn_date TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'unused',
  generated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  valid_until TIMESTAMPTZ NOT NULL,
  used_at TIMESTAMPTZ NULL,
  invoice_id TEXT NULL,
  meta_data JSONB NULL,
  CONSTRAINT chk_irns_id_ulid_len CHECK (char_length(id) = 26),
  CONSTRAINT chk_irns_status CHECK (status IN ('unused', 'used', 'expired')),
  CONSTRAINT chk_irns_date_len CHECK (char_length(irn_date) = 8)
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_irns_irn ON %s (irn);
CREATE INDEX IF NOT EXISTS ix_irns_integration ON %s (integration_id, generated_at DESC);
CREATE INDEX IF NOT EXISTS ix_irns_sweep ON %s (valid_until) WHERE status = 'unused';
`, irns, irns, irns, irns)

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}
