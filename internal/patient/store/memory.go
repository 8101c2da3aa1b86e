// Package store provides the patient repository adapters. The kernel only
// sees the service.Store interface; these implementations own atomicity of
// Save and surface conflicts as sentinel errors instead of losing writes.
package store

import (
	"context"
	"strings"
	"sync"

	"clinicore/internal/patient/models"
	"clinicore/pkg/domain"
	"clinicore/pkg/platform/sentinel"
)

// InMemory keeps patients bucketed per tenant behind a single lock. Used by
// unit tests and the demo wiring; records go in and come out by value, so
// callers never share memory with the store.
type InMemory struct {
	mu       sync.RWMutex
	patients map[domain.TenantID]map[domain.PatientID]models.Patient
}

func NewInMemory() *InMemory {
	return &InMemory{patients: make(map[domain.TenantID]map[domain.PatientID]models.Patient)}
}

func (s *InMemory) FindByID(_ context.Context, tenantID domain.TenantID, id domain.PatientID) (models.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	patient, ok := s.patients[tenantID][id]
	if !ok {
		return models.Patient{}, sentinel.ErrNotFound
	}
	return patient, nil
}

func (s *InMemory) FindByMRN(_ context.Context, tenantID domain.TenantID, mrn string) (models.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, patient := range s.patients[tenantID] {
		if strings.EqualFold(patient.MRN, mrn) {
			return patient, nil
		}
	}
	return models.Patient{}, sentinel.ErrNotFound
}

func (s *InMemory) ListByTenant(_ context.Context, tenantID domain.TenantID) ([]models.Patient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Patient, 0, len(s.patients[tenantID]))
	for _, patient := range s.patients[tenantID] {
		out = append(out, patient)
	}
	return out, nil
}

// Save upserts with optimistic versioning: version 1 inserts (duplicate id or
// MRN in the tenant is ErrDuplicateKey), higher versions update and must land
// exactly one version above the stored record or the write lost a race.
func (s *InMemory) Save(_ context.Context, patient models.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.patients[patient.TenantID]
	if !ok {
		bucket = make(map[domain.PatientID]models.Patient)
		s.patients[patient.TenantID] = bucket
	}

	existing, exists := bucket[patient.ID]
	if patient.Version == 1 {
		if exists {
			return sentinel.ErrDuplicateKey
		}
		for _, other := range bucket {
			if strings.EqualFold(other.MRN, patient.MRN) {
				return sentinel.ErrDuplicateKey
			}
		}
	} else {
		if !exists {
			return sentinel.ErrNotFound
		}
		if existing.Version != patient.Version-1 {
			return sentinel.ErrConflict
		}
	}

	bucket[patient.ID] = patient
	return nil
}
