// Package store provides the practitioner repository adapters.
package store

import (
	"context"
	"strings"
	"sync"

	"clinicore/internal/practitioner/models"
	"clinicore/pkg/domain"
	"clinicore/pkg/platform/sentinel"
)

// InMemory keeps practitioners bucketed per tenant behind a single lock.
type InMemory struct {
	mu            sync.RWMutex
	practitioners map[domain.TenantID]map[domain.PractitionerID]models.Practitioner
}

func NewInMemory() *InMemory {
	return &InMemory{practitioners: make(map[domain.TenantID]map[domain.PractitionerID]models.Practitioner)}
}

func (s *InMemory) FindByID(_ context.Context, tenantID domain.TenantID, id domain.PractitionerID) (models.Practitioner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	practitioner, ok := s.practitioners[tenantID][id]
	if !ok {
		return models.Practitioner{}, sentinel.ErrNotFound
	}
	return practitioner, nil
}

func (s *InMemory) FindByLicense(_ context.Context, tenantID domain.TenantID, licenseNumber string) (models.Practitioner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, practitioner := range s.practitioners[tenantID] {
		if strings.EqualFold(practitioner.LicenseNumber, licenseNumber) {
			return practitioner, nil
		}
	}
	return models.Practitioner{}, sentinel.ErrNotFound
}

func (s *InMemory) ListByTenant(_ context.Context, tenantID domain.TenantID) ([]models.Practitioner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Practitioner, 0, len(s.practitioners[tenantID]))
	for _, practitioner := range s.practitioners[tenantID] {
		out = append(out, practitioner)
	}
	return out, nil
}

// Save upserts with optimistic versioning, mirroring the patient store:
// version 1 inserts, higher versions must land exactly one above the stored
// record.
func (s *InMemory) Save(_ context.Context, practitioner models.Practitioner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.practitioners[practitioner.TenantID]
	if !ok {
		bucket = make(map[domain.PractitionerID]models.Practitioner)
		s.practitioners[practitioner.TenantID] = bucket
	}

	existing, exists := bucket[practitioner.ID]
	if practitioner.Version == 1 {
		if exists {
			return sentinel.ErrDuplicateKey
		}
		for _, other := range bucket {
			if strings.EqualFold(other.LicenseNumber, practitioner.LicenseNumber) {
				return sentinel.ErrDuplicateKey
			}
		}
	} else {
		if !exists {
			return sentinel.ErrNotFound
		}
		if existing.Version != practitioner.Version-1 {
			return sentinel.ErrConflict
		}
	}

	bucket[practitioner.ID] = practitioner
	return nil
}
