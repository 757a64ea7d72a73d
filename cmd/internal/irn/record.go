package irn

import (
	"fmt"
	"time"
)

// Status is the IRN lifecycle state.
type Status string

const (
	StatusUnused  Status = "unused"
	StatusUsed    Status = "used"
	StatusExpired Status = "expired"
)

// ParseStatus validates a status string against the closed set.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusUnused, StatusUsed, StatusExpired:
		return Status(s), nil
	default:
		return "", fmt.Errorf("%w: status must be one of unused, used, expired", ErrInvalidInput)
	}
}

// Record is the canonical persisted IRN representation.
//
// IRN is immutable once generated; the record is never physically deleted in
// normal operation (it transitions to expired instead).
type Record struct {
	ID            string
	IRN           string
	IntegrationID string
	InvoiceNumber string
	ServiceID     string
	Timestamp     string // date component, YYYYMMDD
	Status        Status
	GeneratedAt   time.Time
	ValidUntil    time.Time
	UsedAt        *time.Time
	InvoiceID     *string
	MetaData      map[string]string
}

// Expired reports whether the record's validity window has elapsed.
func (r Record) Expired(now time.Time) bool {
	return r.ValidUntil.Before(now)
}
