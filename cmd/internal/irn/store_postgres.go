package irn

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PostgresStore persists IRN records in PostgreSQL.
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

const irnColumns = `id, irn, integration_id, invoice_number, service_id, irn_date,
       status, generated_at, valid_until, used_at, invoice_id, meta_data`

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "irns"}.Sanitize()
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var status string
	err := row.Scan(
		&rec.ID,
		&rec.IRN,
		&rec.IntegrationID,
		&rec.InvoiceNumber,
		&rec.ServiceID,
		&rec.Timestamp,
		&status,
		&rec.GeneratedAt,
		&rec.ValidUntil,
		&rec.UsedAt,
		&rec.InvoiceID,
		&rec.MetaData,
	)
	if err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	return rec, nil
}

// Insert persists a new record. A duplicate IRN value maps to ErrConflict.
func (s *PostgresStore) Insert(ctx context.Context, rec Record) (Record, error) {
	if s == nil || s.pool == nil {
		return Record{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if strings.TrimSpace(rec.ID) == "" || strings.TrimSpace(rec.IRN) == "" || strings.TrimSpace(rec.IntegrationID) == "" {
		return Record{}, ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (
		     id, irn, integration_id, invoice_number, service_id, irn_date,
		     status, generated_at, valid_until, used_at, invoice_id, meta_data
		   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID,
		rec.IRN,
		rec.IntegrationID,
		rec.InvoiceNumber,
		rec.ServiceID,
		rec.Timestamp,
		string(rec.Status),
		rec.GeneratedAt,
		rec.ValidUntil,
		rec.UsedAt,
		rec.InvoiceID,
		rec.MetaData,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Record{}, ErrConflict
		}
		return Record{}, err
	}
	return rec, nil
}

// InsertBatch persists the records in a single transaction. Either every
// record commits or none do.
func (s *PostgresStore) InsertBatch(ctx context.Context, recs []Record) error {
	if s == nil || s.pool == nil {
		return ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, rec := range recs {
		if strings.TrimSpace(rec.ID) == "" || strings.TrimSpace(rec.IRN) == "" || strings.TrimSpace(rec.IntegrationID) == "" {
			return ErrInvalidInput
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO `+s.table()+` (
			     id, irn, integration_id, invoice_number, service_id, irn_date,
			     status, generated_at, valid_until, used_at, invoice_id, meta_data
			   ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			rec.ID,
			rec.IRN,
			rec.IntegrationID,
			rec.InvoiceNumber,
			rec.ServiceID,
			rec.Timestamp,
			string(rec.Status),
			rec.GeneratedAt,
			rec.ValidUntil,
			rec.UsedAt,
			rec.InvoiceID,
			rec.MetaData,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetByIRN fetches a record by its IRN value.
func (s *PostgresStore) GetByIRN(ctx context.Context, irn string) (Record, error) {
	if s == nil || s.pool == nil {
		return Record{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	irn = strings.TrimSpace(irn)
	if irn == "" {
		return Record{}, ErrInvalidInput
	}

	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+irnColumns+` FROM `+s.table()+` WHERE irn = $1`, irn))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// GetByInvoiceNumber fetches the record generated for an invoice number
// within one integration.
func (s *PostgresStore) GetByInvoiceNumber(ctx context.Context, integrationID, invoiceNumber string) (Record, error) {
	if s == nil || s.pool == nil {
		return Record{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if strings.TrimSpace(integrationID) == "" || strings.TrimSpace(invoiceNumber) == "" {
		return Record{}, ErrInvalidInput
	}

	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`SELECT `+irnColumns+`
		   FROM `+s.table()+`
		  WHERE integration_id = $1 AND invoice_number = $2
		  ORDER BY generated_at DESC
		  LIMIT 1`,
		integrationID, invoiceNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// ListByIntegration returns an integration's records newest first with
// offset/limit paging.
func (s *PostgresStore) ListByIntegration(ctx context.Context, integrationID string, skip, limit int) ([]Record, error) {
	if s == nil || s.pool == nil {
		return nil, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(integrationID) == "" || skip < 0 || limit <= 0 {
		return nil, ErrInvalidInput
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+irnColumns+`
		   FROM `+s.table()+`
		  WHERE integration_id = $1
		  ORDER BY generated_at DESC
		  OFFSET $2 LIMIT $3`,
		integrationID, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecords(rows)
}

// SetStatus applies a status transition. The expiry guard lives in the WHERE
// clause so the check-and-set is a single atomic statement.
func (s *PostgresStore) SetStatus(ctx context.Context, in SetStatusRecord) (Record, error) {
	if s == nil || s.pool == nil {
		return Record{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if strings.TrimSpace(in.IRN) == "" {
		return Record{}, ErrInvalidInput
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}

	rec, err := scanRecord(s.pool.QueryRow(ctx,
		`UPDATE `+s.table()+`
		    SET status = $2,
		        used_at = CASE
		                    WHEN $2 = 'used' THEN $3::timestamptz
		                    WHEN $2 = 'unused' THEN NULL
		                    ELSE used_at
		                  END,
		        invoice_id = CASE
		                       WHEN $2 = 'used' THEN COALESCE($4, invoice_id)
		                       WHEN $2 = 'unused' THEN NULL
		                       ELSE invoice_id
		                     END
		  WHERE irn = $1
		    AND (valid_until >= $3 OR $2 = 'expired')
		RETURNING `+irnColumns,
		in.IRN, string(in.Status), in.Now, in.InvoiceID))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, err
	}

	// Distinguish not-found from the expiry guard.
	if _, selErr := s.GetByIRN(ctx, in.IRN); selErr != nil {
		return Record{}, selErr
	}
	return Record{}, ErrExpired
}

// CountsByStatus tallies records per status, optionally for one integration.
func (s *PostgresStore) CountsByStatus(ctx context.Context, integrationID *string) (Counts, error) {
	if s == nil || s.pool == nil {
		return Counts{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Counts{}, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*)
		   FROM `+s.table()+`
		  WHERE $1::text IS NULL OR integration_id = $1
		  GROUP BY status`,
		integrationID)
	if err != nil {
		return Counts{}, err
	}
	defer rows.Close()

	var c Counts
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, err
		}
		switch Status(status) {
		case StatusUsed:
			c.Used = n
		case StatusUnused:
			c.Unused = n
		case StatusExpired:
			c.Expired = n
		}
		c.Total += n
	}
	return c, rows.Err()
}

// Recent returns the most recently generated records, newest first.
func (s *PostgresStore) Recent(ctx context.Context, integrationID *string, limit int) ([]Record, error) {
	if s == nil || s.pool == nil {
		return nil, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, ErrInvalidInput
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+irnColumns+`
		   FROM `+s.table()+`
		  WHERE $1::text IS NULL OR integration_id = $1
		  ORDER BY generated_at DESC
		  LIMIT $2`,
		integrationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecords(rows)
}

// SweepExpired flips unused records past their validity window to expired
// in one bulk statement and returns the number of rows updated.
func (s *PostgresStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+`
		    SET status = 'expired'
		  WHERE status = 'unused' AND valid_until < $1`,
		now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
