package integration

import "context"

// Store is the persistence boundary for organizations and integrations.
//
// Requirements:
//   - Uniqueness on Organization.ServiceID (ErrConflict on duplicates)
//   - GetIntegration resolves the owning organization's service id so
//     callers can issue IRNs without a second lookup
type Store interface {
	CreateOrganization(ctx context.Context, org Organization) (Organization, error)
	GetOrganization(ctx context.Context, id string) (Organization, error)
	CreateIntegration(ctx context.Context, in Integration) (Integration, error)
	GetIntegration(ctx context.Context, id string) (Integration, error)
	ListIntegrations(ctx context.Context, orgID string) ([]Integration, error)
	Close() error
}
