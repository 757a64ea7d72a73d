package irn

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// DefaultValidDays is the validity window applied when the caller does
	// not override it. Expiry is stored as an absolute timestamp.
	DefaultValidDays = 7

	recentLimit = 10
)

// Service implements the IRN lifecycle on top of a Store.
type Service struct {
	store Store
	log   *slog.Logger
	pub   Publisher
	inst  *Instrumentation

	validDays int
}

// Option configures the Service.
type Option func(*Service) error

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) error {
		if log == nil {
			return ErrInvalidInput
		}
		s.log = log
		return nil
	}
}

// WithPublisher sets the lifecycle event publisher.
func WithPublisher(pub Publisher) Option {
	return func(s *Service) error {
		s.pub = pub
		return nil
	}
}

// WithInstrumentation sets the Prometheus collectors.
func WithInstrumentation(inst *Instrumentation) Option {
	return func(s *Service) error {
		s.inst = inst
		return nil
	}
}

// WithValidDays overrides the default validity window in days.
func WithValidDays(n int) Option {
	return func(s *Service) error {
		if n <= 0 {
			return ErrInvalidInput
		}
		s.validDays = n
		return nil
	}
}

// NewService constructs a Service with safe defaults.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrInvalidInput
	}
	s := &Service{store: store, log: slog.Default(), validDays: DefaultValidDays}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// CreateInput describes a single IRN generation request.
type CreateInput struct {
	IntegrationID string
	InvoiceNumber string
	ServiceID     string
	Timestamp     string // optional; defaults to today's UTC date (YYYYMMDD)
	ValidDays     int    // optional; defaults to the service setting
	MetaData      map[string]string
	Now           time.Time
}

// Create generates and persists an IRN.
//
// Re-generation for the same (integration, invoice number) pair is an
// idempotent no-op returning the stored record. An identical IRN issued for
// an unrelated invoice fails with ErrConflict.
func (s *Service) Create(ctx context.Context, in CreateInput) (Record, error) {
	if s == nil || s.store == nil {
		return Record{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if strings.TrimSpace(in.IntegrationID) == "" {
		return Record{}, fmt.Errorf("%w: integration id is required", ErrInvalidInput)
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	ts := strings.TrimSpace(in.Timestamp)
	if ts == "" {
		ts = now.UTC().Format(timestampLayout)
	}

	value, err := GenerateAt(in.InvoiceNumber, in.ServiceID, ts, now)
	if err != nil {
		return Record{}, err
	}

	if existing, err := s.store.GetByIRN(ctx, value); err == nil {
		return s.resolveDuplicate(existing, in.IntegrationID, in.InvoiceNumber)
	} else if !errors.Is(err, ErrNotFound) {
		return Record{}, err
	}

	rec, err := s.buildRecord(in, value, ts, now)
	if err != nil {
		return Record{}, err
	}
	rec, err = s.store.Insert(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			// Lost a generation race; re-apply the idempotency rule.
			existing, getErr := s.store.GetByIRN(ctx, value)
			if getErr != nil {
				return Record{}, getErr
			}
			return s.resolveDuplicate(existing, in.IntegrationID, in.InvoiceNumber)
		}
		s.log.Error("irn.create.fail", "integration_id", in.IntegrationID, "err", err)
		return Record{}, err
	}

	s.inst.generated(1)
	s.publish(ctx, Event{Kind: "irn.generated", IRN: rec.IRN, IntegrationID: rec.IntegrationID, Status: rec.Status, At: now})
	s.log.Info("irn.create", "irn", rec.IRN, "integration_id", rec.IntegrationID)
	return rec, nil
}

// CreateBatchInput describes a batch generation request.
type CreateBatchInput struct {
	IntegrationID  string
	InvoiceNumbers []string
	ServiceID      string
	Timestamp      string // optional shared date component
	ValidDays      int
	Now            time.Time
}

// BatchFailure reports one invoice number that could not be processed.
type BatchFailure struct {
	InvoiceNumber string
	Reason        string
}

// BatchResult is the outcome of CreateBatch: partial success by design.
type BatchResult struct {
	Created []Record
	Failed  []BatchFailure
}

// CreateBatch processes each invoice number independently, isolating
// per-item validation and collision failures, then persists every new
// record in one transaction. A commit failure demotes the whole inserted
// set to failed so callers never see unreported durable state.
func (s *Service) CreateBatch(ctx context.Context, in CreateBatchInput) (BatchResult, error) {
	if s == nil || s.store == nil {
		return BatchResult{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}
	if strings.TrimSpace(in.IntegrationID) == "" {
		return BatchResult{}, fmt.Errorf("%w: integration id is required", ErrInvalidInput)
	}
	if len(in.InvoiceNumbers) == 0 {
		return BatchResult{}, fmt.Errorf("%w: at least one invoice number is required", ErrInvalidInput)
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	ts := strings.TrimSpace(in.Timestamp)
	if ts == "" {
		ts = now.UTC().Format(timestampLayout)
	}

	var res BatchResult
	var pending []Record
	seen := make(map[string]bool, len(in.InvoiceNumbers))

	for _, invoiceNumber := range in.InvoiceNumbers {
		value, err := GenerateAt(invoiceNumber, in.ServiceID, ts, now)
		if err != nil {
			res.Failed = append(res.Failed, BatchFailure{InvoiceNumber: invoiceNumber, Reason: err.Error()})
			continue
		}
		if seen[value] {
			res.Failed = append(res.Failed, BatchFailure{InvoiceNumber: invoiceNumber, Reason: "duplicate invoice number in batch"})
			continue
		}
		seen[value] = true

		if existing, err := s.store.GetByIRN(ctx, value); err == nil {
			dup, dupErr := s.resolveDuplicate(existing, in.IntegrationID, invoiceNumber)
			if dupErr != nil {
				res.Failed = append(res.Failed, BatchFailure{InvoiceNumber: invoiceNumber, Reason: dupErr.Error()})
				continue
			}
			res.Created = append(res.Created, dup)
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return BatchResult{}, err
		}

		rec, err := s.buildRecord(CreateInput{
			IntegrationID: in.IntegrationID,
			InvoiceNumber: invoiceNumber,
			ServiceID:     in.ServiceID,
			ValidDays:     in.ValidDays,
		}, value, ts, now)
		if err != nil {
			res.Failed = append(res.Failed, BatchFailure{InvoiceNumber: invoiceNumber, Reason: err.Error()})
			continue
		}
		pending = append(pending, rec)
	}

	itemFailures := len(res.Failed)

	if len(pending) > 0 {
		if err := s.store.InsertBatch(ctx, pending); err != nil {
			// All-or-nothing: the whole inserted set becomes failed.
			s.log.Error("irn.create_batch.commit.fail", "integration_id", in.IntegrationID, "count", len(pending), "err", err)
			for _, rec := range pending {
				res.Failed = append(res.Failed, BatchFailure{InvoiceNumber: rec.InvoiceNumber, Reason: "persistence failed: " + err.Error()})
			}
			s.inst.batchFailed(len(pending))
			pending = nil
		} else {
			res.Created = append(res.Created, pending...)
			s.inst.generated(len(pending))
			for _, rec := range pending {
				s.publish(ctx, Event{Kind: "irn.generated", IRN: rec.IRN, IntegrationID: rec.IntegrationID, Status: rec.Status, At: now})
			}
		}
	}

	s.inst.batchFailed(itemFailures)
	s.log.Info("irn.create_batch",
		"integration_id", in.IntegrationID,
		"requested", len(in.InvoiceNumbers),
		"created", len(res.Created),
		"failed", len(res.Failed),
	)
	return res, nil
}

// GetByIRN fetches a record by IRN value.
func (s *Service) GetByIRN(ctx context.Context, irn string) (Record, error) {
	if s == nil || s.store == nil {
		return Record{}, ErrInvalidInput
	}
	irn = strings.TrimSpace(irn)
	if irn == "" {
		return Record{}, fmt.Errorf("%w: irn is required", ErrInvalidInput)
	}
	return s.store.GetByIRN(ctx, irn)
}

// GetByInvoiceNumber fetches the record generated for an invoice number
// within one integration.
func (s *Service) GetByInvoiceNumber(ctx context.Context, integrationID, invoiceNumber string) (Record, error) {
	if s == nil || s.store == nil {
		return Record{}, ErrInvalidInput
	}
	return s.store.GetByInvoiceNumber(ctx, integrationID, invoiceNumber)
}

// ListByIntegration pages through an integration's records, newest first.
func (s *Service) ListByIntegration(ctx context.Context, integrationID string, skip, limit int) ([]Record, error) {
	if s == nil || s.store == nil {
		return nil, ErrInvalidInput
	}
	return s.store.ListByIntegration(ctx, integrationID, skip, limit)
}

// SetStatusInput describes a status transition request.
type SetStatusInput struct {
	IRN       string
	Status    string // raw status value, validated here
	InvoiceID *string
	Now       time.Time
}

// SetStatus transitions a record's status.
//
// Marking used stamps UsedAt and stores InvoiceID when provided; marking
// unused clears both. Once ValidUntil has passed, only a transition to
// expired is accepted.
func (s *Service) SetStatus(ctx context.Context, in SetStatusInput) (Record, error) {
	if s == nil || s.store == nil {
		return Record{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	status, err := ParseStatus(in.Status)
	if err != nil {
		return Record{}, err
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}

	rec, err := s.store.SetStatus(ctx, SetStatusRecord{
		IRN:       strings.TrimSpace(in.IRN),
		Status:    status,
		InvoiceID: in.InvoiceID,
		Now:       in.Now,
	})
	if err != nil {
		return Record{}, err
	}

	s.inst.transition(status)
	s.publish(ctx, Event{Kind: "irn.status_changed", IRN: rec.IRN, IntegrationID: rec.IntegrationID, Status: rec.Status, At: in.Now})
	s.log.Info("irn.set_status", "irn", rec.IRN, "status", string(status))
	return rec, nil
}

// MetricsReport summarizes the IRN population.
type MetricsReport struct {
	Counts Counts
	Recent []Record // up to 10 most recently generated
}

// Metrics returns per-status counts and the most recent records,
// optionally scoped to one integration.
func (s *Service) Metrics(ctx context.Context, integrationID *string) (MetricsReport, error) {
	if s == nil || s.store == nil {
		return MetricsReport{}, ErrInvalidInput
	}
	counts, err := s.store.CountsByStatus(ctx, integrationID)
	if err != nil {
		return MetricsReport{}, err
	}
	recent, err := s.store.Recent(ctx, integrationID, recentLimit)
	if err != nil {
		return MetricsReport{}, err
	}
	return MetricsReport{Counts: counts, Recent: recent}, nil
}

// SweepExpired bulk-transitions unused records past their validity window
// to expired. Triggering is an external concern (cron or admin endpoint).
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	if s == nil || s.store == nil {
		return 0, ErrInvalidInput
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	n, err := s.store.SweepExpired(ctx, now)
	if err != nil {
		s.log.Error("irn.sweep.fail", "err", err)
		return 0, err
	}
	if n > 0 {
		s.inst.swept(n)
		s.publish(ctx, Event{Kind: "irn.sweep", Count: n, At: now})
	}
	s.log.Info("irn.sweep", "expired", n)
	return n, nil
}

// ValidationReport is the result of the read-only semantic check.
type ValidationReport struct {
	Success    bool
	Status     Status // empty when the record does not exist
	Message    string
	ValidUntil *time.Time
	UsedAt     *time.Time
	InvoiceID  *string
}

// Validate reports whether an IRN exists and where it sits in its
// lifecycle. It never mutates state: an unused record past its window is
// reported expired even before the sweep has run.
func (s *Service) Validate(ctx context.Context, irn string, now time.Time) (ValidationReport, error) {
	if s == nil || s.store == nil {
		return ValidationReport{}, ErrInvalidInput
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	rec, err := s.store.GetByIRN(ctx, strings.TrimSpace(irn))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ValidationReport{Success: false, Message: "irn not found"}, nil
		}
		return ValidationReport{}, err
	}

	validUntil := rec.ValidUntil
	switch {
	case rec.Status == StatusExpired || rec.Expired(now):
		return ValidationReport{
			Success:    false,
			Status:     StatusExpired,
			Message:    "irn expired",
			ValidUntil: &validUntil,
		}, nil
	case rec.Status == StatusUsed:
		return ValidationReport{
			Success:    true,
			Status:     StatusUsed,
			Message:    "irn is valid but already used",
			ValidUntil: &validUntil,
			UsedAt:     rec.UsedAt,
			InvoiceID:  rec.InvoiceID,
		}, nil
	default:
		return ValidationReport{
			Success:    true,
			Status:     StatusUnused,
			Message:    "irn is valid and unused",
			ValidUntil: &validUntil,
		}, nil
	}
}

func (s *Service) resolveDuplicate(existing Record, integrationID, invoiceNumber string) (Record, error) {
	if existing.IntegrationID == integrationID && existing.InvoiceNumber == invoiceNumber {
		return existing, nil
	}
	return Record{}, fmt.Errorf("%w: irn %q already issued for a different invoice", ErrConflict, existing.IRN)
}

func (s *Service) buildRecord(in CreateInput, value, ts string, now time.Time) (Record, error) {
	validDays := in.ValidDays
	if validDays <= 0 {
		validDays = s.validDays
	}
	id, err := newULID(now)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:            id,
		IRN:           value,
		IntegrationID: in.IntegrationID,
		InvoiceNumber: in.InvoiceNumber,
		ServiceID:     in.ServiceID,
		Timestamp:     ts,
		Status:        StatusUnused,
		GeneratedAt:   now,
		ValidUntil:    now.Add(time.Duration(validDays) * 24 * time.Hour),
		MetaData:      in.MetaData,
	}, nil
}

func (s *Service) publish(ctx context.Context, ev Event) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(ctx, ev)
}

func newULID(now time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
