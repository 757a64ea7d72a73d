package integration

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is a dev/test fallback used when Postgres is not configured.
type MemoryStore struct {
	mu           sync.Mutex
	orgs         map[string]Organization
	integrations map[string]Integration
}

// NewMemoryStore constructs an in-memory Store implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orgs:         make(map[string]Organization),
		integrations: make(map[string]Integration),
	}
}

// Close closes the store (noop for in-memory).
func (s *MemoryStore) Close() error { return nil }

// CreateOrganization persists an organization, rejecting duplicate service IDs.
func (s *MemoryStore) CreateOrganization(ctx context.Context, org Organization) (Organization, error) {
	if err := ctx.Err(); err != nil {
		return Organization{}, err
	}
	if strings.TrimSpace(org.ID) == "" || strings.TrimSpace(org.ServiceID) == "" {
		return Organization{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.orgs {
		if existing.ServiceID == org.ServiceID {
			return Organization{}, ErrConflict
		}
	}
	s.orgs[org.ID] = org
	return org, nil
}

// GetOrganization fetches an organization by ID.
func (s *MemoryStore) GetOrganization(ctx context.Context, id string) (Organization, error) {
	if err := ctx.Err(); err != nil {
		return Organization{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	org, ok := s.orgs[id]
	if !ok {
		return Organization{}, ErrOrgNotFound
	}
	return org, nil
}

// CreateIntegration persists an integration for an existing organization.
func (s *MemoryStore) CreateIntegration(ctx context.Context, in Integration) (Integration, error) {
	if err := ctx.Err(); err != nil {
		return Integration{}, err
	}
	if strings.TrimSpace(in.ID) == "" || strings.TrimSpace(in.OrgID) == "" || in.Config == nil {
		return Integration{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[in.OrgID]; !ok {
		return Integration{}, ErrOrgNotFound
	}
	s.integrations[in.ID] = in
	return in, nil
}

// GetIntegration fetches an integration by ID.
func (s *MemoryStore) GetIntegration(ctx context.Context, id string) (Integration, error) {
	if err := ctx.Err(); err != nil {
		return Integration{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.integrations[id]
	if !ok {
		return Integration{}, ErrNotFound
	}
	return in, nil
}

// ListIntegrations returns an organization's integrations, newest first.
func (s *MemoryStore) ListIntegrations(ctx context.Context, orgID string) ([]Integration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Integration{}
	for _, in := range s.integrations {
		if in.OrgID == orgID {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
