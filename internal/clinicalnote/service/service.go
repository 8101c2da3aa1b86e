// Package service holds the clinical note write and read models. Notes carry
// the strongest immutability guarantee in the kernel: once finalized, a note
// cannot change through any path, and both the model and the store enforce
// it independently.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"clinicore/internal/audit"
	"clinicore/internal/authority"
	"clinicore/internal/clinicalnote/models"
	"clinicore/internal/platform/metrics"
	"clinicore/pkg/attrs"
	"clinicore/pkg/domain"
	dErrors "clinicore/pkg/domain-errors"
	"clinicore/pkg/platform/sentinel"
	"clinicore/pkg/requestcontext"
)

// Store is the tenant-scoped repository contract. Save must refuse any
// update to a note whose stored status is FINALIZED with
// sentinel.ErrFinalized.
type Store interface {
	FindByID(ctx context.Context, tenantID domain.TenantID, id domain.NoteID) (models.ClinicalNote, error)
	ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]models.ClinicalNote, error)
	ListByEncounter(ctx context.Context, tenantID domain.TenantID, encounterID domain.EncounterID) ([]models.ClinicalNote, error)
	Save(ctx context.Context, note models.ClinicalNote) error
}

// AuditEmitter is satisfied by audit.Emitter.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event)
}

const entityName = "clinical_note"

// Service is the clinical note write model.
type Service struct {
	store   Store
	logger  *slog.Logger
	auditor AuditEmitter
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditEmitter(auditor AuditEmitter) Option {
	return func(s *Service) { s.auditor = auditor }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("clinical note store is required")
	}
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateInput carries the raw fields for a new draft note.
type CreateInput struct {
	EncounterID domain.EncounterID
	Content     string
}

// Create opens a draft note under the authority's tenant.
func (s *Service) Create(ctx context.Context, authz *authority.Context, in CreateInput) (models.ClinicalNote, error) {
	if err := s.requireAuthority(authz); err != nil {
		return models.ClinicalNote{}, err
	}

	note, err := models.NewClinicalNote(
		domain.NewNoteID(),
		authz.TenantID(),
		in.EncounterID,
		in.Content,
		authz.ClinicianID(),
		requestcontext.Now(ctx),
	)
	if err != nil {
		return models.ClinicalNote{}, s.failed(err)
	}

	if err := s.store.Save(ctx, note); err != nil {
		return models.ClinicalNote{}, s.failed(dErrors.Wrap(err, dErrors.CodeInternal, "failed to save note"))
	}

	s.emitAudit(ctx, authz, audit.EventNoteCreated, map[string]any{
		"note_id":      note.ID.String(),
		"encounter_id": note.EncounterID.String(),
	})
	s.metrics.IncrementWriteOutcome(entityName, "success")
	return note, nil
}

// AmendContent replaces a draft note's content. A finalized note reports
// ALREADY_FINALIZED.
func (s *Service) AmendContent(ctx context.Context, authz *authority.Context, id domain.NoteID, content string) (models.ClinicalNote, error) {
	if err := s.requireAuthority(authz); err != nil {
		return models.ClinicalNote{}, err
	}

	existing, err := s.load(ctx, authz.TenantID(), id)
	if err != nil {
		return models.ClinicalNote{}, s.failed(err)
	}

	updated, err := existing.WithContent(content, authz.ClinicianID(), requestcontext.Now(ctx))
	if err != nil {
		return models.ClinicalNote{}, s.failed(err)
	}

	if err := s.save(ctx, updated); err != nil {
		return models.ClinicalNote{}, s.failed(err)
	}

	s.emitAudit(ctx, authz, audit.EventNoteAmended, map[string]any{
		"note_id": updated.ID.String(),
		"version": updated.Version,
	})
	s.metrics.IncrementWriteOutcome(entityName, "success")
	return updated, nil
}

// Finalize seals a draft note. The second call on the same note reports
// ALREADY_FINALIZED and the stored record is identical before and after.
func (s *Service) Finalize(ctx context.Context, authz *authority.Context, id domain.NoteID) (models.ClinicalNote, error) {
	if err := s.requireAuthority(authz); err != nil {
		return models.ClinicalNote{}, err
	}

	existing, err := s.load(ctx, authz.TenantID(), id)
	if err != nil {
		return models.ClinicalNote{}, s.failed(err)
	}

	finalized, err := existing.Finalized(authz.ClinicianID(), requestcontext.Now(ctx))
	if err != nil {
		return models.ClinicalNote{}, s.failed(err)
	}

	if err := s.save(ctx, finalized); err != nil {
		return models.ClinicalNote{}, s.failed(err)
	}

	s.emitAudit(ctx, authz, audit.EventNoteFinalized, map[string]any{
		"note_id": finalized.ID.String(),
	})
	s.metrics.IncrementWriteOutcome(entityName, "success")
	return finalized, nil
}

func (s *Service) load(ctx context.Context, tenantID domain.TenantID, id domain.NoteID) (models.ClinicalNote, error) {
	note, err := s.store.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.ClinicalNote{}, dErrors.New(dErrors.CodeClinicalNoteNotFound, "clinical note not found")
		}
		return models.ClinicalNote{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load note")
	}
	return note, nil
}

func (s *Service) save(ctx context.Context, note models.ClinicalNote) error {
	err := s.store.Save(ctx, note)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrFinalized):
		// The store saw a finalized record the model copy predates.
		return dErrors.New(dErrors.CodeAlreadyFinalized, "note is already finalized")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.New(dErrors.CodeConflict, "note was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save note")
	}
}

func (s *Service) requireAuthority(authz *authority.Context) error {
	if err := authority.Require(authz); err != nil {
		s.metrics.IncrementAuthorityRejection(string(dErrors.CodeOf(err)))
		s.metrics.IncrementWriteOutcome(entityName, string(dErrors.CodeOf(err)))
		return err
	}
	return nil
}

func (s *Service) failed(err error) error {
	s.metrics.IncrementWriteOutcome(entityName, string(dErrors.CodeOf(err)))
	if s.logger != nil && dErrors.HasCode(err, dErrors.CodeInternal) {
		s.logger.Error("clinical note write failed", "error", err)
	}
	return err
}

func (s *Service) emitAudit(ctx context.Context, authz *authority.Context, eventType audit.EventType, payload map[string]any) {
	if s.auditor == nil {
		return
	}
	s.auditor.Emit(ctx, audit.Event{
		Context: audit.EventContext{
			TenantID:  authz.TenantID(),
			ActorID:   authz.ClinicianID(),
			TraceID:   authz.CorrelationID(),
			Timestamp: requestcontext.Now(ctx),
		},
		Type:     eventType,
		Severity: audit.SeverityInfo,
		Result:   audit.ResultSuccess,
		Payload:  attrs.Sanitize(payload),
	})
}

// ReadModel serves tenant-filtered note projections; no authority parameter.
type ReadModel struct {
	store Store
}

func NewReadModel(store Store) *ReadModel {
	return &ReadModel{store: store}
}

func (r *ReadModel) Get(ctx context.Context, tenantID domain.TenantID, id domain.NoteID) (models.ClinicalNote, error) {
	note, err := r.store.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.ClinicalNote{}, dErrors.New(dErrors.CodeClinicalNoteNotFound, "clinical note not found")
		}
		return models.ClinicalNote{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load note")
	}
	return note, nil
}

func (r *ReadModel) List(ctx context.Context, tenantID domain.TenantID) ([]models.ClinicalNote, error) {
	notes, err := r.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notes")
	}
	return notes, nil
}

// ListByEncounter returns the tenant's notes for one encounter.
func (r *ReadModel) ListByEncounter(ctx context.Context, tenantID domain.TenantID, encounterID domain.EncounterID) ([]models.ClinicalNote, error) {
	notes, err := r.store.ListByEncounter(ctx, tenantID, encounterID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list notes")
	}
	return notes, nil
}
