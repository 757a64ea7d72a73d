package integration

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

func TestPostgresStore_Registry(t *testing.T) {
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

	org, err := store.CreateOrganization(ctx, Organization{
		ID:         ulid.Make().String(),
		Name:       "Acme Nigeria Ltd",
		ServiceID:  "94ND90NR",
		APIKeyHash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		CreatedAt:  now,
	})
	if err != nil {
		t.Fatalf("create org: %v", err)
	}

	if _, err := store.CreateOrganization(ctx, Organization{
		ID:        ulid.Make().String(),
		Name:      "Clone",
		ServiceID: "94ND90NR",
		CreatedAt: now,
	}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate service id, got %v", err)
	}

	got, err := store.GetOrganization(ctx, org.ID)
	if err != nil {
		t.Fatalf("get org: %v", err)
	}
	if got.ServiceID != org.ServiceID || got.APIKeyHash != org.APIKeyHash {
		t.Fatalf("org mismatch: %+v", got)
	}

	if _, err := store.CreateIntegration(ctx, Integration{
		ID:        ulid.Make().String(),
		OrgID:     ulid.Make().String(), // no such org
		Name:      "orphan",
		Platform:  PlatformOdoo,
		Config:    OdooConfig{URL: "https://erp.example.com", Database: "prod", Username: "svc"},
		CreatedAt: now,
	}); !errors.Is(err, ErrOrgNotFound) {
		t.Fatalf("expected ErrOrgNotFound, got %v", err)
	}

	in, err := store.CreateIntegration(ctx, Integration{
		ID:        ulid.Make().String(),
		OrgID:     org.ID,
		Name:      "erp",
		Platform:  PlatformOdoo,
		Config:    OdooConfig{URL: "https://erp.example.com", Database: "prod", Username: "svc", APIKey: "secret"},
		CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("create integration: %v", err)
	}

	loaded, err := store.GetIntegration(ctx, in.ID)
	if err != nil {
		t.Fatalf("get integration: %v", err)
	}
	odoo, ok := loaded.Config.(OdooConfig)
	if !ok {
		t.Fatalf("expected decoded OdooConfig, got %T", loaded.Config)
	}
	if odoo.Database != "prod" || odoo.APIKey != "secret" {
		t.Fatalf("config round trip mismatch: %+v", odoo)
	}

	list, err := store.ListIntegrations(ctx, org.ID)
	if err != nil {
		t.Fatalf("list integrations: %v", err)
	}
	if len(list) != 1 || list[0].ID != in.ID {
		t.Fatalf("unexpected list: %+v", list)
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

	schema := "firsgate_registry_it_" + strings.ToLower(ulid.Make().String())

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

	orgs := pgx.Identifier{schema, "organizations"}.Sanitize()
	integrations := pgx.Identifier{schema, "integrations"}.Sanitize()

	schemaSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  service_id TEXT NOT NULL,
  api_key_hash TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_organizations_service_id ON %s (service_id);

CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  org_id TEXT NOT NULL REFERENCES %s(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  platform TEXT NOT NULL,
  config JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS ix_integrations_org ON %s (org_id, created_at DESC);
`, orgs, orgs, integrations, orgs, integrations)

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}
