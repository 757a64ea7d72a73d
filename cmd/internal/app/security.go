package app

import (
	"errors"

	"firsgate/cmd/internal/irnapi"
)

// ValidateSecurityConfig enforces the startup security policy.
//
// Fail-fast: a deployment that expects admin endpoints must not come up
// with them silently disabled, and an admin token short enough to brute
// force is treated as absent.
func ValidateSecurityConfig(cfg Config, apiCfg irnapi.Config) error {
	if !cfg.RequireAdminToken {
		return nil
	}
	if apiCfg.AdminToken == "" {
		return errors.New("security policy: FIRSGATE_REQUIRE_ADMIN_TOKEN=true but FIRSGATE_ADMIN_TOKEN is missing")
	}
	if len(apiCfg.AdminToken) < 32 {
		return errors.New("security policy: FIRSGATE_ADMIN_TOKEN is too short (min 32 bytes)")
	}
	return nil
}
