// Package service holds the patient write and read models.
//
// The write model runs the same fail-closed pipeline as every entity: validate
// authority before anything else, validate input, load scoped to the
// authority's own tenant, apply invariants, persist a fresh copy. The read
// model takes no authority at all; reads carry no mutation capability, so
// there is nothing for a token to gate.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"clinicore/internal/audit"
	"clinicore/internal/authority"
	"clinicore/internal/patient/models"
	"clinicore/internal/platform/metrics"
	"clinicore/pkg/attrs"
	"clinicore/pkg/domain"
	dErrors "clinicore/pkg/domain-errors"
	"clinicore/pkg/platform/sentinel"
	"clinicore/pkg/requestcontext"
)

// Store is the tenant-scoped repository contract the patient models depend
// on. Every lookup is scoped by (tenant, key); a record under another tenant
// is indistinguishable from a missing one.
type Store interface {
	FindByID(ctx context.Context, tenantID domain.TenantID, id domain.PatientID) (models.Patient, error)
	FindByMRN(ctx context.Context, tenantID domain.TenantID, mrn string) (models.Patient, error)
	ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]models.Patient, error)
	Save(ctx context.Context, patient models.Patient) error
}

// AuditEmitter is satisfied by audit.Emitter.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event)
}

const entityName = "patient"

// Service is the patient write model.
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
		return nil, fmt.Errorf("patient store is required")
	}
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateInput carries the raw fields for a new patient record.
type CreateInput struct {
	MRN        string
	GivenName  string
	FamilyName string
	BirthDate  string
}

// Create registers a patient under the authority's tenant. A duplicate MRN
// within the tenant is a validation failure; the same MRN under another
// tenant is an independent namespace.
func (s *Service) Create(ctx context.Context, authz *authority.Context, in CreateInput) (models.Patient, error) {
	if err := s.requireAuthority(authz); err != nil {
		return models.Patient{}, err
	}

	patient, err := models.NewPatient(
		domain.NewPatientID(),
		authz.TenantID(),
		in.MRN,
		in.GivenName,
		in.FamilyName,
		in.BirthDate,
		authz.ClinicianID(),
		requestcontext.Now(ctx),
	)
	if err != nil {
		return models.Patient{}, s.failed(err)
	}

	if _, err := s.store.FindByMRN(ctx, authz.TenantID(), strings.TrimSpace(in.MRN)); err == nil {
		return models.Patient{}, s.failed(dErrors.New(dErrors.CodeValidation, "mrn is already registered for this tenant"))
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return models.Patient{}, s.failed(dErrors.Wrap(err, dErrors.CodeInternal, "failed to check mrn availability"))
	}

	if err := s.store.Save(ctx, patient); err != nil {
		if errors.Is(err, sentinel.ErrDuplicateKey) {
			// The store lost a race the pre-check could not see.
			return models.Patient{}, s.failed(dErrors.New(dErrors.CodeValidation, "mrn is already registered for this tenant"))
		}
		return models.Patient{}, s.failed(dErrors.Wrap(err, dErrors.CodeInternal, "failed to save patient"))
	}

	s.emitAudit(ctx, authz, audit.EventPatientCreated, map[string]any{
		"patient_id": patient.ID.String(),
	})
	s.metrics.IncrementWriteOutcome(entityName, "success")
	return patient, nil
}

// UpdateDemographics merges a partial demographic change onto the existing
// record within the authority's tenant.
func (s *Service) UpdateDemographics(ctx context.Context, authz *authority.Context, id domain.PatientID, update models.DemographicsUpdate) (models.Patient, error) {
	if err := s.requireAuthority(authz); err != nil {
		return models.Patient{}, err
	}

	existing, err := s.store.FindByID(ctx, authz.TenantID(), id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Patient{}, s.failed(dErrors.New(dErrors.CodePatientNotFound, "patient not found"))
		}
		return models.Patient{}, s.failed(dErrors.Wrap(err, dErrors.CodeInternal, "failed to load patient"))
	}

	updated, err := existing.WithDemographics(update, authz.ClinicianID(), requestcontext.Now(ctx))
	if err != nil {
		return models.Patient{}, s.failed(err)
	}

	if err := s.store.Save(ctx, updated); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Patient{}, s.failed(dErrors.New(dErrors.CodeConflict, "patient was modified concurrently"))
		}
		return models.Patient{}, s.failed(dErrors.Wrap(err, dErrors.CodeInternal, "failed to save patient"))
	}

	s.emitAudit(ctx, authz, audit.EventPatientUpdated, map[string]any{
		"patient_id": updated.ID.String(),
		"version":    updated.Version,
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
		s.logger.Error("patient write failed", "error", err)
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

// ReadModel serves tenant-filtered patient projections. Reads take a tenant
// id, not an authority context; every query is scoped at the store interface.
type ReadModel struct {
	store Store
}

func NewReadModel(store Store) *ReadModel {
	return &ReadModel{store: store}
}

// Get returns the patient in the given tenant, or PATIENT_NOT_FOUND. A record
// existing under a different tenant reports the same code.
func (r *ReadModel) Get(ctx context.Context, tenantID domain.TenantID, id domain.PatientID) (models.Patient, error) {
	patient, err := r.store.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Patient{}, dErrors.New(dErrors.CodePatientNotFound, "patient not found")
		}
		return models.Patient{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load patient")
	}
	return patient, nil
}

// GetByMRN resolves a patient by natural key within the tenant.
func (r *ReadModel) GetByMRN(ctx context.Context, tenantID domain.TenantID, mrn string) (models.Patient, error) {
	patient, err := r.store.FindByMRN(ctx, tenantID, strings.TrimSpace(mrn))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Patient{}, dErrors.New(dErrors.CodePatientNotFound, "patient not found")
		}
		return models.Patient{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load patient")
	}
	return patient, nil
}

// List returns every patient in the tenant.
func (r *ReadModel) List(ctx context.Context, tenantID domain.TenantID) ([]models.Patient, error) {
	patients, err := r.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list patients")
	}
	return patients, nil
}
