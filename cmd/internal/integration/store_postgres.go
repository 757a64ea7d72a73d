package integration

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PostgresStore persists organizations and integrations in PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// StoreOption configures PostgresStore.
type StoreOption func(*PostgresStore) error

// WithSchema sets the DB schema used by the store (default: "firsgate").
func WithSchema(schema string) StoreOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return ErrInvalidInput
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...StoreOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "firsgate"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, ErrInvalidInput
	}
	return st, nil
}

// Close closes the store. The pool is owned by the app, so this is a no-op.
func (s *PostgresStore) Close() error { return nil }

func (s *PostgresStore) ident(table string) string {
	return pgx.Identifier{s.schema, table}.Sanitize()
}

// CreateOrganization persists an organization. A duplicate service ID maps
// to ErrConflict.
func (s *PostgresStore) CreateOrganization(ctx context.Context, org Organization) (Organization, error) {
	if s == nil || s.pool == nil {
		return Organization{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Organization{}, err
	}
	if strings.TrimSpace(org.ID) == "" || strings.TrimSpace(org.ServiceID) == "" {
		return Organization{}, ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.ident("organizations")+` (id, name, service_id, api_key_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		org.ID, org.Name, org.ServiceID, org.APIKeyHash, org.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return Organization{}, ErrConflict
		}
		return Organization{}, err
	}
	return org, nil
}

// GetOrganization fetches an organization by ID.
func (s *PostgresStore) GetOrganization(ctx context.Context, id string) (Organization, error) {
	if s == nil || s.pool == nil {
		return Organization{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Organization{}, err
	}

	var org Organization
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, service_id, api_key_hash, created_at
		   FROM `+s.ident("organizations")+`
		  WHERE id = $1`, id).
		Scan(&org.ID, &org.Name, &org.ServiceID, &org.APIKeyHash, &org.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organization{}, ErrOrgNotFound
		}
		return Organization{}, err
	}
	return org, nil
}

// CreateIntegration persists an integration row with its config as JSONB.
func (s *PostgresStore) CreateIntegration(ctx context.Context, in Integration) (Integration, error) {
	if s == nil || s.pool == nil {
		return Integration{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Integration{}, err
	}
	if strings.TrimSpace(in.ID) == "" || strings.TrimSpace(in.OrgID) == "" {
		return Integration{}, ErrInvalidInput
	}
	cfg, err := EncodeConfig(in.Config)
	if err != nil {
		return Integration{}, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.ident("integrations")+` (id, org_id, name, platform, config, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		in.ID, in.OrgID, in.Name, string(in.Platform), cfg, in.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign key
			return Integration{}, ErrOrgNotFound
		}
		return Integration{}, err
	}
	return in, nil
}

// GetIntegration fetches an integration by ID and decodes its config.
func (s *PostgresStore) GetIntegration(ctx context.Context, id string) (Integration, error) {
	if s == nil || s.pool == nil {
		return Integration{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Integration{}, err
	}

	var in Integration
	var platform string
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, org_id, name, platform, config, created_at
		   FROM `+s.ident("integrations")+`
		  WHERE id = $1`, id).
		Scan(&in.ID, &in.OrgID, &in.Name, &platform, &raw, &in.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Integration{}, ErrNotFound
		}
		return Integration{}, err
	}

	in.Platform = Platform(platform)
	cfg, err := DecodeConfig(in.Platform, raw)
	if err != nil {
		return Integration{}, err
	}
	in.Config = cfg
	return in, nil
}

// ListIntegrations returns an organization's integrations, newest first.
func (s *PostgresStore) ListIntegrations(ctx context.Context, orgID string) ([]Integration, error) {
	if s == nil || s.pool == nil {
		return nil, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, org_id, name, platform, config, created_at
		   FROM `+s.ident("integrations")+`
		  WHERE org_id = $1
		  ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Integration{}
	for rows.Next() {
		var in Integration
		var platform string
		var raw []byte
		if err := rows.Scan(&in.ID, &in.OrgID, &in.Name, &platform, &raw, &in.CreatedAt); err != nil {
			return nil, err
		}
		in.Platform = Platform(platform)
		cfg, err := DecodeConfig(in.Platform, raw)
		if err != nil {
			return nil, err
		}
		in.Config = cfg
		out = append(out, in)
	}
	return out, rows.Err()
}
