package integration

import (
	"errors"
	"testing"
)

func TestParsePlatform(t *testing.T) {
	for _, s := range []string{"odoo", "square", "hubspot", "salesforce"} {
		p, err := ParsePlatform(s)
		if err != nil {
			t.Fatalf("ParsePlatform(%q): %v", s, err)
		}
		if string(p) != s {
			t.Fatalf("ParsePlatform(%q) = %q", s, p)
		}
	}
	for _, s := range []string{"", "sap", "Odoo", "ODOO"} {
		if _, err := ParsePlatform(s); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("ParsePlatform(%q): expected ErrInvalidInput, got %v", s, err)
		}
	}
}

func TestDecodeConfig_RoundTrip(t *testing.T) {
	raw := []byte(`{"url":"https://erp.example.com","database":"prod","username":"svc","api_key":"secret"}`)

	cfg, err := DecodeConfig(PlatformOdoo, raw)
	if err != nil {
		t.Fatalf("DecodeConfig error: %v", err)
	}
	odoo, ok := cfg.(OdooConfig)
	if !ok {
		t.Fatalf("expected OdooConfig, got %T", cfg)
	}
	if odoo.URL != "https://erp.example.com" || odoo.Database != "prod" {
		t.Fatalf("unexpected decode: %+v", odoo)
	}

	encoded, err := EncodeConfig(odoo)
	if err != nil {
		t.Fatalf("EncodeConfig error: %v", err)
	}
	again, err := DecodeConfig(PlatformOdoo, encoded)
	if err != nil {
		t.Fatalf("re-decode error: %v", err)
	}
	if again != cfg {
		t.Fatalf("round trip mismatch: %+v vs %+v", again, cfg)
	}
}

func TestDecodeConfig_Rejections(t *testing.T) {
	cases := []struct {
		name     string
		platform Platform
		raw      string
	}{
		{"empty payload", PlatformOdoo, ""},
		{"unknown field", PlatformOdoo, `{"url":"x","database":"d","username":"u","surprise":true}`},
		{"missing required", PlatformSquare, `{"access_token":"tok"}`},
		{"wrong shape", PlatformHubSpot, `[1,2,3]`},
		{"missing salesforce client", PlatformSalesforce, `{"instance_url":"https://x.my.salesforce.com"}`},
	}
	for _, tc := range cases {
		if _, err := DecodeConfig(tc.platform, []byte(tc.raw)); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestDecodeConfig_OptionalFields(t *testing.T) {
	cfg, err := DecodeConfig(PlatformSquare, []byte(`{"location_id":"L1","access_token":"tok"}`))
	if err != nil {
		t.Fatalf("DecodeConfig error: %v", err)
	}
	sq, ok := cfg.(SquareConfig)
	if !ok {
		t.Fatalf("expected SquareConfig, got %T", cfg)
	}
	if sq.WebhookSignatureKey != "" {
		t.Fatalf("expected empty webhook key, got %q", sq.WebhookSignatureKey)
	}
}
