package irnapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"firsgate/cmd/internal/integration"
	"firsgate/cmd/security/apikey"
)

// authenticate resolves the calling organization from the Bearer API key.
// On failure it writes the error response and returns ok=false.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (integration.Organization, bool) {
	key, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer api key")
		return integration.Organization{}, false
	}

	orgID, secret, err := apikey.Split(key)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "malformed api key")
		return integration.Organization{}, false
	}

	org, err := h.registry.GetOrganization(r.Context(), orgID)
	if err != nil {
		if errors.Is(err, integration.ErrOrgNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "unknown api key")
			return integration.Organization{}, false
		}
		h.log.Error("irnapi.auth.lookup.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		return integration.Organization{}, false
	}

	match, err := apikey.Verify(org.APIKeyHash, secret)
	if err != nil || !match {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unknown api key")
		return integration.Organization{}, false
	}
	return org, true
}

// resolveOwnedIntegration loads an integration and enforces ownership.
// Foreign integrations answer 404 to avoid confirming their existence.
func (h *Handler) resolveOwnedIntegration(w http.ResponseWriter, r *http.Request, org integration.Organization, id string) (integration.Integration, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "integration_id is required")
		return integration.Integration{}, false
	}

	in, err := h.registry.GetIntegration(r.Context(), id)
	if err != nil {
		if errors.Is(err, integration.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "integration not found")
			return integration.Integration{}, false
		}
		h.log.Error("irnapi.integration.lookup.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")
		return integration.Integration{}, false
	}
	if in.OrgID != org.ID {
		writeError(w, http.StatusNotFound, "not_found", "integration not found")
		return integration.Integration{}, false
	}
	return in, true
}

// requireAdmin checks the admin bearer token. Admin endpoints are disabled
// (503) when no token is configured.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if h.cfg.AdminToken == "" {
		writeError(w, http.StatusServiceUnavailable, "admin_disabled", "admin endpoints are not configured")
		return false
	}
	token, ok := bearerToken(r)
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.AdminToken)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid admin token")
		return false
	}
	return true
}

func bearerToken(r *http.Request) (string, bool) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}
