// Package irnapi exposes the IRN lifecycle over HTTP.
//
// Every non-admin endpoint authenticates the calling organization via its
// API key and rejects operations on integrations it does not own; the IRN
// core below this layer trusts its caller.
package irnapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"firsgate/cmd/internal/integration"
	"firsgate/cmd/internal/irn"
)

// Handler wires the HTTP endpoints to the IRN service and the registry.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	svc      *irn.Service
	registry integration.Store
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, cfg Config, svc *irn.Service, registry integration.Store) (*Handler, error) {
	if svc == nil || registry == nil {
		return nil, errors.New("irnapi: nil service or registry")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{log: log, cfg: cfg, svc: svc, registry: registry}, nil
}

// Register wires the API routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("POST /v1/irn/generate", h.handleGenerate)
	mux.HandleFunc("POST /v1/irn/generate-batch", h.handleGenerateBatch)
	mux.HandleFunc("GET /v1/irn/{irn}", h.handleGet)
	mux.HandleFunc("GET /v1/irn/{irn}/validate", h.handleValidate)
	mux.HandleFunc("POST /v1/irn/{irn}/status", h.handleSetStatus)
	mux.HandleFunc("GET /v1/integrations", h.handleListIntegrations)
	mux.HandleFunc("POST /v1/integrations", h.handleCreateIntegration)
	mux.HandleFunc("GET /v1/integrations/{id}/irns", h.handleListIRNs)
	mux.HandleFunc("GET /v1/irn-metrics", h.handleMetrics)
	mux.HandleFunc("POST /v1/admin/organizations", h.handleCreateOrg)
	mux.HandleFunc("POST /v1/admin/sweep-expired", h.handleSweepExpired)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	org, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req generateRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if _, ok := h.resolveOwnedIntegration(w, r, org, req.IntegrationID); !ok {
		return
	}

	rec, err := h.svc.Create(r.Context(), irn.CreateInput{
		IntegrationID: req.IntegrationID,
		InvoiceNumber: req.InvoiceNumber,
		ServiceID:     org.ServiceID,
		Timestamp:     req.Timestamp,
		MetaData:      req.MetaData,
	})
	if err != nil {
		h.writeIRNError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIRNResponse(rec))
}

func (h *Handler) handleGenerateBatch(w http.ResponseWriter, r *http.Request) {
	org, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req generateBatchRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if len(req.InvoiceNumbers) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invoice_numbers must not be empty")
		return
	}
	if len(req.InvoiceNumbers) > h.cfg.MaxBatchSize {
		writeError(w, http.StatusBadRequest, "batch_too_large",
			"at most "+strconv.Itoa(h.cfg.MaxBatchSize)+" invoice numbers per request")
		return
	}
	if _, ok := h.resolveOwnedIntegration(w, r, org, req.IntegrationID); !ok {
		return
	}

	res, err := h.svc.CreateBatch(r.Context(), irn.CreateBatchInput{
		IntegrationID:  req.IntegrationID,
		InvoiceNumbers: req.InvoiceNumbers,
		ServiceID:      org.ServiceID,
		Timestamp:      req.Timestamp,
	})
	if err != nil {
		h.writeIRNError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(res))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	org, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	rec, ok := h.lookupOwnedRecord(w, r, org)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toIRNResponse(rec))
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	org, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	value := r.PathValue("irn")

	// An IRN that exists nowhere is a validation outcome, not a routing
	// error. Records owned by another organization still answer 404.
	rec, err := h.svc.GetByIRN(r.Context(), value)
	if err != nil {
		if errors.Is(err, irn.ErrNotFound) {
			writeJSON(w, http.StatusOK, validateResponse{Success: false, Message: "irn not found"})
			return
		}
		h.writeIRNError(w, err)
		return
	}
	if in, err := h.registry.GetIntegration(r.Context(), rec.IntegrationID); err != nil || in.OrgID != org.ID {
		writeError(w, http.StatusNotFound, "not_found", "irn not found")
		return
	}

	report, err := h.svc.Validate(r.Context(), value, time.Time{})
	if err != nil {
		h.writeIRNError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Success:    report.Success,
		Status:     string(report.Status),
		Message:    report.Message,
		ValidUntil: report.ValidUntil,
		UsedAt:     report.UsedAt,
		InvoiceID:  report.InvoiceID,
	})
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	org, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	if _, ok := h.lookupOwnedRecord(w, r, org); !ok {
		return
	}

	var req setStatusRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	rec, err := h.svc.SetStatus(r.Context(), irn.SetStatusInput{
		IRN:       r.PathValue("irn"),
		Status:    req.Status,
		InvoiceID: req.InvoiceID,
	})
	if err != nil {
		h.writeIRNError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIRNResponse(rec))
}

func (h *Handler) handleListIRNs(w http.ResponseWriter, r *http.Request) {
	org, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	integrationID := r.PathValue("id")
	if _, ok := h.resolveOwnedIntegration(w, r, org, integrationID); !ok {
		return
	}

	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 50)

	recs, err := h.svc.ListByIntegration(r.Context(), integrationID, skip, limit)
	if err != nil {
		h.writeIRNError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIRNResponses(recs))
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	integrationID := strings.TrimSpace(r.URL.Query().Get("integration_id"))

	// Fleet-wide metrics are admin-only; organizations must scope to one
	// of their own integrations.
	if integrationID == "" {
		if !h.requireAdmin(w, r) {
			return
		}
		h.writeMetrics(w, r, nil)
		return
	}

	org, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if _, ok := h.resolveOwnedIntegration(w, r, org, integrationID); !ok {
		return
	}
	h.writeMetrics(w, r, &integrationID)
}

func (h *Handler) writeMetrics(w http.ResponseWriter, r *http.Request, integrationID *string) {
	report, err := h.svc.Metrics(r.Context(), integrationID)
	if err != nil {
		h.writeIRNError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metricsResponse{
		UsedCount:    report.Counts.Used,
		UnusedCount:  report.Counts.Unused,
		ExpiredCount: report.Counts.Expired,
		TotalCount:   report.Counts.Total,
		Recent:       toIRNResponses(report.Recent),
	})
}

func (h *Handler) handleSweepExpired(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	n, err := h.svc.SweepExpired(r.Context(), time.Time{})
	if err != nil {
		h.writeIRNError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{Expired: n})
}

// lookupOwnedRecord fetches the record at {irn} and enforces that its
// integration belongs to the calling organization. Foreign records answer
// 404 rather than 403 to avoid confirming their existence.
func (h *Handler) lookupOwnedRecord(w http.ResponseWriter, r *http.Request, org integration.Organization) (irn.Record, bool) {
	rec, err := h.svc.GetByIRN(r.Context(), r.PathValue("irn"))
	if err != nil {
		h.writeIRNError(w, err)
		return irn.Record{}, false
	}

	in, err := h.registry.GetIntegration(r.Context(), rec.IntegrationID)
	if err != nil || in.OrgID != org.ID {
		writeError(w, http.StatusNotFound, "not_found", "irn not found")
		return irn.Record{}, false
	}
	return rec, true
}

func (h *Handler) writeIRNError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, irn.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "irn not found")
	case errors.Is(err, irn.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, irn.ErrExpired):
		writeError(w, http.StatusBadRequest, "irn_expired", "cannot change status for expired irn")
	case errors.Is(err, irn.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		h.log.Error("irnapi.internal", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func queryInt(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
