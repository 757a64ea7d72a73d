package irnapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"firsgate/cmd/internal/integration"
	"firsgate/cmd/internal/irn"
	"firsgate/cmd/security/apikey"

	"github.com/oklog/ulid/v2"
)

func (h *Handler) handleCreateOrg(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req createOrgRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	if err := irn.ValidateServiceID(req.ServiceID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "service_id must be exactly 8 alphanumeric characters")
		return
	}

	now := time.Now().UTC()
	orgID := ulid.Make().String()

	plainKey, keyHash, err := apikey.Generate(orgID, apikey.DefaultParams())
	if err != nil {
		h.log.Error("irnapi.org.keygen.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	org, err := h.registry.CreateOrganization(r.Context(), integration.Organization{
		ID:         orgID,
		Name:       strings.TrimSpace(req.Name),
		ServiceID:  req.ServiceID,
		APIKeyHash: keyHash,
		CreatedAt:  now,
	})
	if err != nil {
		if errors.Is(err, integration.ErrConflict) {
			writeError(w, http.StatusConflict, "conflict", "service_id already registered")
			return
		}
		h.log.Error("irnapi.org.create.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	h.log.Info("irnapi.org.create", "org_id", org.ID, "service_id", org.ServiceID)
	writeJSON(w, http.StatusCreated, orgResponse{
		ID:        org.ID,
		Name:      org.Name,
		ServiceID: org.ServiceID,
		APIKey:    plainKey, // shown once; only the hash is stored
		CreatedAt: org.CreatedAt,
	})
}

func (h *Handler) handleCreateIntegration(w http.ResponseWriter, r *http.Request) {
	org, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req createIntegrationRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	platform, err := integration.ParsePlatform(req.Platform)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	cfg, err := integration.DecodeConfig(platform, req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	in, err := h.registry.CreateIntegration(r.Context(), integration.Integration{
		ID:        ulid.Make().String(),
		OrgID:     org.ID,
		Name:      strings.TrimSpace(req.Name),
		Platform:  platform,
		Config:    cfg,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		h.log.Error("irnapi.integration.create.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	h.log.Info("irnapi.integration.create", "integration_id", in.ID, "org_id", org.ID, "platform", string(platform))
	writeJSON(w, http.StatusCreated, toIntegrationResponse(in))
}

func (h *Handler) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	org, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	list, err := h.registry.ListIntegrations(r.Context(), org.ID)
	if err != nil {
		h.log.Error("irnapi.integration.list.fail", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}

	out := make([]integrationResponse, 0, len(list))
	for _, in := range list {
		out = append(out, toIntegrationResponse(in))
	}
	writeJSON(w, http.StatusOK, out)
}
