// Package store provides the encounter repository adapters.
package store

import (
	"context"
	"sync"

	"clinicore/internal/encounter/models"
	"clinicore/pkg/domain"
	"clinicore/pkg/platform/sentinel"
)

// InMemory keeps encounters bucketed per tenant behind a single lock.
type InMemory struct {
	mu         sync.RWMutex
	encounters map[domain.TenantID]map[domain.EncounterID]models.Encounter
}

func NewInMemory() *InMemory {
	return &InMemory{encounters: make(map[domain.TenantID]map[domain.EncounterID]models.Encounter)}
}

func (s *InMemory) FindByID(_ context.Context, tenantID domain.TenantID, id domain.EncounterID) (models.Encounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	encounter, ok := s.encounters[tenantID][id]
	if !ok {
		return models.Encounter{}, sentinel.ErrNotFound
	}
	return encounter, nil
}

func (s *InMemory) ListByTenant(_ context.Context, tenantID domain.TenantID) ([]models.Encounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Encounter, 0, len(s.encounters[tenantID]))
	for _, encounter := range s.encounters[tenantID] {
		out = append(out, encounter)
	}
	return out, nil
}

func (s *InMemory) ListByPatient(_ context.Context, tenantID domain.TenantID, patientID domain.PatientID) ([]models.Encounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Encounter
	for _, encounter := range s.encounters[tenantID] {
		if encounter.PatientID == patientID {
			out = append(out, encounter)
		}
	}
	return out, nil
}

// Save upserts with optimistic versioning.
func (s *InMemory) Save(_ context.Context, encounter models.Encounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.encounters[encounter.TenantID]
	if !ok {
		bucket = make(map[domain.EncounterID]models.Encounter)
		s.encounters[encounter.TenantID] = bucket
	}

	existing, exists := bucket[encounter.ID]
	if encounter.Version == 1 {
		if exists {
			return sentinel.ErrDuplicateKey
		}
	} else {
		if !exists {
			return sentinel.ErrNotFound
		}
		if existing.Version != encounter.Version-1 {
			return sentinel.ErrConflict
		}
	}

	bucket[encounter.ID] = encounter
	return nil
}
