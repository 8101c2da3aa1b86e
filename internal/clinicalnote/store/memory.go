// Package store provides the clinical note repository adapters. Both
// implementations refuse to overwrite a finalized note so immutability holds
// even for callers that bypass the service and talk to the store directly.
package store

import (
	"context"
	"sync"

	"clinicore/internal/clinicalnote/models"
	"clinicore/pkg/domain"
	"clinicore/pkg/platform/sentinel"
)

// InMemory keeps notes bucketed per tenant behind a single lock.
type InMemory struct {
	mu    sync.RWMutex
	notes map[domain.TenantID]map[domain.NoteID]models.ClinicalNote
}

func NewInMemory() *InMemory {
	return &InMemory{notes: make(map[domain.TenantID]map[domain.NoteID]models.ClinicalNote)}
}

func (s *InMemory) FindByID(_ context.Context, tenantID domain.TenantID, id domain.NoteID) (models.ClinicalNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	note, ok := s.notes[tenantID][id]
	if !ok {
		return models.ClinicalNote{}, sentinel.ErrNotFound
	}
	return note, nil
}

func (s *InMemory) ListByTenant(_ context.Context, tenantID domain.TenantID) ([]models.ClinicalNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ClinicalNote, 0, len(s.notes[tenantID]))
	for _, note := range s.notes[tenantID] {
		out = append(out, note)
	}
	return out, nil
}

func (s *InMemory) ListByEncounter(_ context.Context, tenantID domain.TenantID, encounterID domain.EncounterID) ([]models.ClinicalNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.ClinicalNote
	for _, note := range s.notes[tenantID] {
		if note.EncounterID == encounterID {
			out = append(out, note)
		}
	}
	return out, nil
}

// Save upserts with optimistic versioning. An update to a note whose stored
// status is FINALIZED is ErrFinalized no matter what the incoming copy says.
func (s *InMemory) Save(_ context.Context, note models.ClinicalNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.notes[note.TenantID]
	if !ok {
		bucket = make(map[domain.NoteID]models.ClinicalNote)
		s.notes[note.TenantID] = bucket
	}

	existing, exists := bucket[note.ID]
	if note.Version == 1 {
		if exists {
			return sentinel.ErrDuplicateKey
		}
	} else {
		if !exists {
			return sentinel.ErrNotFound
		}
		if existing.Status == models.StatusFinalized {
			return sentinel.ErrFinalized
		}
		if existing.Version != note.Version-1 {
			return sentinel.ErrConflict
		}
	}

	bucket[note.ID] = note
	return nil
}
