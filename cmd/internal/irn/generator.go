package irn

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	maxInvoiceNumberLen = 50
	serviceIDLen        = 8
	timestampLayout     = "20060102"
)

var (
	alnumPattern     = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	timestampPattern = regexp.MustCompile(`^\d{8}$`)
)

// ValidateInvoiceNumber checks the invoice number component: non-empty,
// at most 50 characters, alphanumeric only.
func ValidateInvoiceNumber(s string) error {
	if s == "" {
		return fmt.Errorf("%w: invoice number is required", ErrInvalidInput)
	}
	if len(s) > maxInvoiceNumberLen {
		return fmt.Errorf("%w: invoice number exceeds %d characters", ErrInvalidInput, maxInvoiceNumberLen)
	}
	if !alnumPattern.MatchString(s) {
		return fmt.Errorf("%w: invoice number must be alphanumeric", ErrInvalidInput)
	}
	return nil
}

// ValidateServiceID checks the FIRS-assigned service ID component:
// exactly 8 alphanumeric characters.
func ValidateServiceID(s string) error {
	if len(s) != serviceIDLen || !alnumPattern.MatchString(s) {
		return fmt.Errorf("%w: service id must be exactly %d alphanumeric characters", ErrInvalidInput, serviceIDLen)
	}
	return nil
}

// ValidateTimestampAt checks the date component against a reference time:
// exactly 8 digits, a real calendar date, and not after the reference day.
// The comparison is done on the UTC calendar day of now.
func ValidateTimestampAt(s string, now time.Time) error {
	if !timestampPattern.MatchString(s) {
		return fmt.Errorf("%w: timestamp must be 8 digits (YYYYMMDD)", ErrInvalidInput)
	}
	d, err := time.ParseInLocation(timestampLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("%w: timestamp is not a valid calendar date", ErrInvalidInput)
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	today := now.UTC().Truncate(24 * time.Hour)
	if d.After(today) {
		return fmt.Errorf("%w: timestamp must not be in the future", ErrInvalidInput)
	}
	return nil
}

// ValidateTimestamp is ValidateTimestampAt against the current UTC day.
func ValidateTimestamp(s string) error {
	return ValidateTimestampAt(s, time.Now().UTC())
}

// GenerateAt validates the three components against the given reference time
// and concatenates them into an IRN. Pure; no side effects.
func GenerateAt(invoiceNumber, serviceID, timestamp string, now time.Time) (string, error) {
	if err := ValidateInvoiceNumber(invoiceNumber); err != nil {
		return "", err
	}
	if err := ValidateServiceID(serviceID); err != nil {
		return "", err
	}
	if err := ValidateTimestampAt(timestamp, now); err != nil {
		return "", err
	}
	return invoiceNumber + "-" + serviceID + "-" + timestamp, nil
}

// Generate is GenerateAt against the current UTC day.
func Generate(invoiceNumber, serviceID, timestamp string) (string, error) {
	return GenerateAt(invoiceNumber, serviceID, timestamp, time.Now().UTC())
}

// Parse splits an IRN back into its three components. It checks shape only
// (component syntax), not the future-date rule, so historical IRNs parse.
func Parse(irn string) (invoiceNumber, serviceID, timestamp string, err error) {
	parts := strings.Split(irn, "-")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("%w: irn must have the form InvoiceNumber-ServiceID-YYYYMMDD", ErrInvalidInput)
	}
	invoiceNumber, serviceID, timestamp = parts[0], parts[1], parts[2]
	if err := ValidateInvoiceNumber(invoiceNumber); err != nil {
		return "", "", "", err
	}
	if err := ValidateServiceID(serviceID); err != nil {
		return "", "", "", err
	}
	if !timestampPattern.MatchString(timestamp) {
		return "", "", "", fmt.Errorf("%w: timestamp must be 8 digits (YYYYMMDD)", ErrInvalidInput)
	}
	if _, perr := time.ParseInLocation(timestampLayout, timestamp, time.UTC); perr != nil {
		return "", "", "", fmt.Errorf("%w: timestamp is not a valid calendar date", ErrInvalidInput)
	}
	return invoiceNumber, serviceID, timestamp, nil
}
