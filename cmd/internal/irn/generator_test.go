package irn

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2024, 6, 11, 15, 4, 5, 0, time.UTC)

func TestGenerateAt_OK(t *testing.T) {
	got, err := GenerateAt("INV001", "94ND90NR", "20240611", testNow)
	if err != nil {
		t.Fatalf("GenerateAt error: %v", err)
	}
	if got != "INV001-94ND90NR-20240611" {
		t.Fatalf("unexpected irn: %q", got)
	}
}

func TestGenerateAt_RoundTrip(t *testing.T) {
	irn, err := GenerateAt("INV001", "94ND90NR", "20240611", testNow)
	if err != nil {
		t.Fatalf("GenerateAt error: %v", err)
	}
	inv, svc, ts, err := Parse(irn)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if inv != "INV001" || svc != "94ND90NR" || ts != "20240611" {
		t.Fatalf("round trip mismatch: %q %q %q", inv, svc, ts)
	}
}

func TestValidateInvoiceNumber(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"INV001", true},
		{"abc123XYZ", true},
		{"", false},
		{"INV-001", false},
		{"INV 001", false},
		{"INV_001", false},
		{string(make([]byte, 51)), false},
	}
	for _, tc := range cases {
		err := ValidateInvoiceNumber(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("ValidateInvoiceNumber(%q): unexpected error %v", tc.in, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("ValidateInvoiceNumber(%q): expected ErrInvalidInput, got %v", tc.in, err)
		}
	}
}

func TestValidateServiceID(t *testing.T) {
	if err := ValidateServiceID("94ND90NR"); err != nil {
		t.Fatalf("valid service id rejected: %v", err)
	}
	for _, in := range []string{"", "SHORT", "TOOLONG123", "94ND90N!", "94ND 0NR"} {
		if err := ValidateServiceID(in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("ValidateServiceID(%q): expected ErrInvalidInput, got %v", in, err)
		}
	}
}

func TestValidateTimestampAt(t *testing.T) {
	if err := ValidateTimestampAt("20240611", testNow); err != nil {
		t.Fatalf("today rejected: %v", err)
	}
	if err := ValidateTimestampAt("20240101", testNow); err != nil {
		t.Fatalf("past date rejected: %v", err)
	}

	for _, in := range []string{"2024611", "240611xx", "20241301", "20240230", "20990101", "20240612"} {
		if err := ValidateTimestampAt(in, testNow); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("ValidateTimestampAt(%q): expected ErrInvalidInput, got %v", in, err)
		}
	}
}

func TestGenerateAt_ComponentErrors(t *testing.T) {
	if _, err := GenerateAt("INV-001", "94ND90NR", "20240611", testNow); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("hyphenated invoice number: expected ErrInvalidInput, got %v", err)
	}
	if _, err := GenerateAt("INV001", "94ND90NR", "20990101", testNow); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("future date: expected ErrInvalidInput, got %v", err)
	}
}

func TestParse_Shape(t *testing.T) {
	for _, in := range []string{
		"",
		"INV001",
		"INV001-94ND90NR",
		"INV001-94ND90NR-20240611-extra",
		"INV 001-94ND90NR-20240611",
		"INV001-SHORT-20240611",
		"INV001-94ND90NR-2024",
		"INV001-94ND90NR-20240230",
	} {
		if _, _, _, err := Parse(in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("Parse(%q): expected ErrInvalidInput, got %v", in, err)
		}
	}
}

func TestParse_AllowsHistoricalDates(t *testing.T) {
	// Parse checks shape only; an IRN issued years ago still parses even
	// though GenerateAt would reject its date as future relative to then.
	if _, _, _, err := Parse("INV001-94ND90NR-19990101"); err != nil {
		t.Fatalf("historical irn rejected: %v", err)
	}
}
