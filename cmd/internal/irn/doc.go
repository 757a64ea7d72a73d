// Package irn implements the Invoice Reference Number core: deterministic
// format validation and construction (InvoiceNumber-ServiceID-YYYYMMDD),
// idempotent generation, the unused/used/expired status machine, batch
// generation with partial-failure reporting, and the expiry sweep.
//
// Persistence lives behind Store; ownership/authorization is the caller's
// concern (the API layer scopes every operation to the owning organization).
package irn
