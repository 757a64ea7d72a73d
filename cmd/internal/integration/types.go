// Package integration is the registry of organizations and their configured
// ERP/POS/CRM connections. The IRN core treats integration IDs as opaque
// foreign keys; this package is where they resolve to an owning organization
// and its FIRS service ID.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Platform identifies a supported external system.
type Platform string

const (
	PlatformOdoo       Platform = "odoo"
	PlatformSquare     Platform = "square"
	PlatformHubSpot    Platform = "hubspot"
	PlatformSalesforce Platform = "salesforce"
)

// ParsePlatform validates a platform string against the closed set.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(s) {
	case PlatformOdoo, PlatformSquare, PlatformHubSpot, PlatformSalesforce:
		return Platform(s), nil
	default:
		return "", fmt.Errorf("%w: platform must be one of odoo, square, hubspot, salesforce", ErrInvalidInput)
	}
}

// Organization is a FIRS-onboarded tenant. ServiceID is the 8-character code
// FIRS assigned to it, embedded in every IRN it issues. APIKeyHash is the
// argon2id hash of its API key; the plaintext is shown once at creation.
type Organization struct {
	ID         string
	Name       string
	ServiceID  string
	APIKeyHash string
	CreatedAt  time.Time
}

// Integration is one configured connection to an external platform,
// owned by exactly one organization.
type Integration struct {
	ID        string
	OrgID     string
	Name      string
	Platform  Platform
	Config    Config
	CreatedAt time.Time
}

// Config is the closed set of per-platform connection settings. Payloads are
// decoded and validated at the boundary so downstream code never handles
// loose maps.
type Config interface {
	Platform() Platform
	Validate() error
}

// OdooConfig connects to an Odoo instance over XML-RPC.
type OdooConfig struct {
	URL      string `json:"url"`
	Database string `json:"database"`
	Username string `json:"username"`
	APIKey   string `json:"api_key"`
}

func (OdooConfig) Platform() Platform { return PlatformOdoo }

func (c OdooConfig) Validate() error {
	if strings.TrimSpace(c.URL) == "" || strings.TrimSpace(c.Database) == "" || strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("%w: odoo config requires url, database and username", ErrInvalidInput)
	}
	return nil
}

// SquareConfig connects to a Square merchant account.
type SquareConfig struct {
	LocationID          string `json:"location_id"`
	AccessToken         string `json:"access_token"`
	WebhookSignatureKey string `json:"webhook_signature_key,omitempty"`
}

func (SquareConfig) Platform() Platform { return PlatformSquare }

func (c SquareConfig) Validate() error {
	if strings.TrimSpace(c.LocationID) == "" || strings.TrimSpace(c.AccessToken) == "" {
		return fmt.Errorf("%w: square config requires location_id and access_token", ErrInvalidInput)
	}
	return nil
}

// HubSpotConfig connects to a HubSpot portal.
type HubSpotConfig struct {
	PortalID      string `json:"portal_id"`
	AccessToken   string `json:"access_token"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

func (HubSpotConfig) Platform() Platform { return PlatformHubSpot }

func (c HubSpotConfig) Validate() error {
	if strings.TrimSpace(c.PortalID) == "" || strings.TrimSpace(c.AccessToken) == "" {
		return fmt.Errorf("%w: hubspot config requires portal_id and access_token", ErrInvalidInput)
	}
	return nil
}

// SalesforceConfig connects to a Salesforce org.
type SalesforceConfig struct {
	InstanceURL  string `json:"instance_url"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

func (SalesforceConfig) Platform() Platform { return PlatformSalesforce }

func (c SalesforceConfig) Validate() error {
	if strings.TrimSpace(c.InstanceURL) == "" || strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("%w: salesforce config requires instance_url and client_id", ErrInvalidInput)
	}
	return nil
}

// DecodeConfig parses and validates a platform config payload.
func DecodeConfig(platform Platform, raw []byte) (Config, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidInput)
	}

	var cfg Config
	switch platform {
	case PlatformOdoo:
		cfg = &OdooConfig{}
	case PlatformSquare:
		cfg = &SquareConfig{}
	case PlatformHubSpot:
		cfg = &HubSpotConfig{}
	case PlatformSalesforce:
		cfg = &SalesforceConfig{}
	default:
		return nil, fmt.Errorf("%w: unknown platform %q", ErrInvalidInput, platform)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: malformed %s config: %v", ErrInvalidInput, platform, err)
	}

	out := derefConfig(cfg)
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeConfig serializes a platform config for storage.
func EncodeConfig(cfg Config) ([]byte, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(cfg)
}

func derefConfig(cfg Config) Config {
	switch c := cfg.(type) {
	case *OdooConfig:
		return *c
	case *SquareConfig:
		return *c
	case *HubSpotConfig:
		return *c
	case *SalesforceConfig:
		return *c
	default:
		return cfg
	}
}
