package irnapi

import (
	"encoding/json"
	"time"

	"firsgate/cmd/internal/integration"
	"firsgate/cmd/internal/irn"
)

type generateRequest struct {
	IntegrationID string            `json:"integration_id"`
	InvoiceNumber string            `json:"invoice_number"`
	Timestamp     string            `json:"timestamp,omitempty"`
	MetaData      map[string]string `json:"meta_data,omitempty"`
}

type generateBatchRequest struct {
	IntegrationID  string   `json:"integration_id"`
	InvoiceNumbers []string `json:"invoice_numbers"`
	Timestamp      string   `json:"timestamp,omitempty"`
}

type setStatusRequest struct {
	Status    string  `json:"status"`
	InvoiceID *string `json:"invoice_id,omitempty"`
}

type irnResponse struct {
	IRN           string            `json:"irn"`
	IntegrationID string            `json:"integration_id"`
	InvoiceNumber string            `json:"invoice_number"`
	ServiceID     string            `json:"service_id"`
	Timestamp     string            `json:"timestamp"`
	Status        string            `json:"status"`
	GeneratedAt   time.Time         `json:"generated_at"`
	ValidUntil    time.Time         `json:"valid_until"`
	UsedAt        *time.Time        `json:"used_at,omitempty"`
	InvoiceID     *string           `json:"invoice_id,omitempty"`
	MetaData      map[string]string `json:"meta_data,omitempty"`
}

type batchFailureResponse struct {
	InvoiceNumber string `json:"invoice_number"`
	Error         string `json:"error"`
}

type batchResponse struct {
	Created []irnResponse          `json:"created"`
	Failed  []batchFailureResponse `json:"failed"`
}

type metricsResponse struct {
	UsedCount    int64         `json:"used_count"`
	UnusedCount  int64         `json:"unused_count"`
	ExpiredCount int64         `json:"expired_count"`
	TotalCount   int64         `json:"total_count"`
	Recent       []irnResponse `json:"recent"`
}

type validateResponse struct {
	Success    bool       `json:"success"`
	Status     string     `json:"status,omitempty"`
	Message    string     `json:"message"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	InvoiceID  *string    `json:"invoice_id,omitempty"`
}

type sweepResponse struct {
	Expired int64 `json:"expired"`
}

type createOrgRequest struct {
	Name      string `json:"name"`
	ServiceID string `json:"service_id"`
}

type orgResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ServiceID string    `json:"service_id"`
	APIKey    string    `json:"api_key,omitempty"` // plaintext, returned once
	CreatedAt time.Time `json:"created_at"`
}

type createIntegrationRequest struct {
	Name     string          `json:"name"`
	Platform string          `json:"platform"`
	Config   json.RawMessage `json:"config"`
}

// integrationResponse deliberately omits the config payload: platform
// configs carry credentials and never leave the server once stored.
type integrationResponse struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Name      string    `json:"name"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
}

func toIRNResponse(rec irn.Record) irnResponse {
	return irnResponse{
		IRN:           rec.IRN,
		IntegrationID: rec.IntegrationID,
		InvoiceNumber: rec.InvoiceNumber,
		ServiceID:     rec.ServiceID,
		Timestamp:     rec.Timestamp,
		Status:        string(rec.Status),
		GeneratedAt:   rec.GeneratedAt,
		ValidUntil:    rec.ValidUntil,
		UsedAt:        rec.UsedAt,
		InvoiceID:     rec.InvoiceID,
		MetaData:      rec.MetaData,
	}
}

func toIRNResponses(recs []irn.Record) []irnResponse {
	out := make([]irnResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toIRNResponse(rec))
	}
	return out
}

func toBatchResponse(res irn.BatchResult) batchResponse {
	out := batchResponse{
		Created: toIRNResponses(res.Created),
		Failed:  make([]batchFailureResponse, 0, len(res.Failed)),
	}
	for _, f := range res.Failed {
		out.Failed = append(out.Failed, batchFailureResponse{InvoiceNumber: f.InvoiceNumber, Error: f.Reason})
	}
	return out
}

func toIntegrationResponse(in integration.Integration) integrationResponse {
	return integrationResponse{
		ID:        in.ID,
		OrgID:     in.OrgID,
		Name:      in.Name,
		Platform:  string(in.Platform),
		CreatedAt: in.CreatedAt,
	}
}
