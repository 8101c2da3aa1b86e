// Package service holds the encounter write and read models. On top of the
// shared fail-closed pipeline the write model drives the encounter state
// machine; every transition re-validates tenant ownership before mutating.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"clinicore/internal/audit"
	"clinicore/internal/authority"
	"clinicore/internal/encounter/models"
	"clinicore/internal/platform/metrics"
	"clinicore/pkg/attrs"
	"clinicore/pkg/domain"
	dErrors "clinicore/pkg/domain-errors"
	"clinicore/pkg/platform/sentinel"
	"clinicore/pkg/requestcontext"
)

// Store is the tenant-scoped repository contract.
type Store interface {
	FindByID(ctx context.Context, tenantID domain.TenantID, id domain.EncounterID) (models.Encounter, error)
	ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]models.Encounter, error)
	ListByPatient(ctx context.Context, tenantID domain.TenantID, patientID domain.PatientID) ([]models.Encounter, error)
	Save(ctx context.Context, encounter models.Encounter) error
}

// AuditEmitter is satisfied by audit.Emitter.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event)
}

const entityName = "encounter"

// Service is the encounter write model.
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
		return nil, fmt.Errorf("encounter store is required")
	}
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateInput carries the raw fields for a new encounter.
type CreateInput struct {
	PatientID      domain.PatientID
	PractitionerID domain.PractitionerID
	ReasonText     string
}

// Create opens an encounter in CREATED under the authority's tenant.
func (s *Service) Create(ctx context.Context, authz *authority.Context, in CreateInput) (models.Encounter, error) {
	if err := s.requireAuthority(authz); err != nil {
		return models.Encounter{}, err
	}

	encounter, err := models.NewEncounter(
		domain.NewEncounterID(),
		authz.TenantID(),
		in.PatientID,
		in.PractitionerID,
		in.ReasonText,
		authz.ClinicianID(),
		requestcontext.Now(ctx),
	)
	if err != nil {
		return models.Encounter{}, s.failed(err)
	}

	if err := s.store.Save(ctx, encounter); err != nil {
		return models.Encounter{}, s.failed(dErrors.Wrap(err, dErrors.CodeInternal, "failed to save encounter"))
	}

	s.emitAudit(ctx, authz, audit.EventEncounterCreated, map[string]any{
		"encounter_id": encounter.ID.String(),
		"patient_id":   encounter.PatientID.String(),
	})
	s.metrics.IncrementWriteOutcome(entityName, "success")
	return encounter, nil
}

// Activate moves a CREATED encounter to ACTIVE.
func (s *Service) Activate(ctx context.Context, authz *authority.Context, id domain.EncounterID) (models.Encounter, error) {
	return s.transition(ctx, authz, id, models.StatusActive, audit.EventEncounterActivated)
}

// Complete moves an ACTIVE encounter to COMPLETED.
func (s *Service) Complete(ctx context.Context, authz *authority.Context, id domain.EncounterID) (models.Encounter, error) {
	return s.transition(ctx, authz, id, models.StatusCompleted, audit.EventEncounterCompleted)
}

// Abort moves a CREATED or ACTIVE encounter to ABORTED.
func (s *Service) Abort(ctx context.Context, authz *authority.Context, id domain.EncounterID) (models.Encounter, error) {
	return s.transition(ctx, authz, id, models.StatusAborted, audit.EventEncounterAborted)
}

func (s *Service) transition(ctx context.Context, authz *authority.Context, id domain.EncounterID, target models.Status, eventType audit.EventType) (models.Encounter, error) {
	if err := s.requireAuthority(authz); err != nil {
		return models.Encounter{}, err
	}

	existing, err := s.store.FindByID(ctx, authz.TenantID(), id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Encounter{}, s.failed(dErrors.New(dErrors.CodeEncounterNotFound, "encounter not found"))
		}
		return models.Encounter{}, s.failed(dErrors.Wrap(err, dErrors.CodeInternal, "failed to load encounter"))
	}

	updated, err := existing.WithStatus(target, authz.ClinicianID(), requestcontext.Now(ctx))
	if err != nil {
		return models.Encounter{}, s.failed(err)
	}

	if err := s.store.Save(ctx, updated); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Encounter{}, s.failed(dErrors.New(dErrors.CodeConflict, "encounter was modified concurrently"))
		}
		return models.Encounter{}, s.failed(dErrors.Wrap(err, dErrors.CodeInternal, "failed to save encounter"))
	}

	s.emitAudit(ctx, authz, eventType, map[string]any{
		"encounter_id": updated.ID.String(),
		"status":       string(updated.Status),
	})
	s.metrics.IncrementWriteOutcome(entityName, "success")
	return updated, nil
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
		s.logger.Error("encounter write failed", "error", err)
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

// ReadModel serves tenant-filtered encounter projections; no authority
// parameter.
type ReadModel struct {
	store Store
}

func NewReadModel(store Store) *ReadModel {
	return &ReadModel{store: store}
}

func (r *ReadModel) Get(ctx context.Context, tenantID domain.TenantID, id domain.EncounterID) (models.Encounter, error) {
	encounter, err := r.store.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Encounter{}, dErrors.New(dErrors.CodeEncounterNotFound, "encounter not found")
		}
		return models.Encounter{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load encounter")
	}
	return encounter, nil
}

func (r *ReadModel) List(ctx context.Context, tenantID domain.TenantID) ([]models.Encounter, error) {
	encounters, err := r.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list encounters")
	}
	return encounters, nil
}

// ListByPatient returns the tenant's encounters for one patient. The tenant
// filter applies before the patient filter; a patient id from another tenant
// simply matches nothing.
func (r *ReadModel) ListByPatient(ctx context.Context, tenantID domain.TenantID, patientID domain.PatientID) ([]models.Encounter, error) {
	encounters, err := r.store.ListByPatient(ctx, tenantID, patientID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list encounters")
	}
	return encounters, nil
}
