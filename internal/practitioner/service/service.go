// Package service holds the practitioner write and read models. Same
// fail-closed pipeline as the patient service; the natural key here is the
// license number.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"clinicore/internal/audit"
	"clinicore/internal/authority"
	"clinicore/internal/platform/metrics"
	"clinicore/internal/practitioner/models"
	"clinicore/pkg/attrs"
	"clinicore/pkg/domain"
	dErrors "clinicore/pkg/domain-errors"
	"clinicore/pkg/platform/sentinel"
	"clinicore/pkg/requestcontext"
)

// Store is the tenant-scoped repository contract. Every lookup is scoped by
// (tenant, key); a record under another tenant is indistinguishable from a
// missing one.
type Store interface {
	FindByID(ctx context.Context, tenantID domain.TenantID, id domain.PractitionerID) (models.Practitioner, error)
	FindByLicense(ctx context.Context, tenantID domain.TenantID, licenseNumber string) (models.Practitioner, error)
	ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]models.Practitioner, error)
	Save(ctx context.Context, practitioner models.Practitioner) error
}

// AuditEmitter is satisfied by audit.Emitter.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event)
}

const entityName = "practitioner"

// Service is the practitioner write model.
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
		return nil, fmt.Errorf("practitioner store is required")
	}
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateInput carries the raw fields for a new practitioner record.
type CreateInput struct {
	LicenseNumber string
	GivenName     string
	FamilyName    string
	Specialty     string
}

// Create registers a practitioner under the authority's tenant. A duplicate
// license number within the tenant is a validation failure.
func (s *Service) Create(ctx context.Context, authz *authority.Context, in CreateInput) (models.Practitioner, error) {
	if err := s.requireAuthority(authz); err != nil {
		return models.Practitioner{}, err
	}

	practitioner, err := models.NewPractitioner(
		domain.NewPractitionerID(),
		authz.TenantID(),
		in.LicenseNumber,
		in.GivenName,
		in.FamilyName,
		in.Specialty,
		authz.ClinicianID(),
		requestcontext.Now(ctx),
	)
	if err != nil {
		return models.Practitioner{}, s.failed(err)
	}

	if _, err := s.store.FindByLicense(ctx, authz.TenantID(), strings.TrimSpace(in.LicenseNumber)); err == nil {
		return models.Practitioner{}, s.failed(dErrors.New(dErrors.CodeValidation, "license number is already registered for this tenant"))
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return models.Practitioner{}, s.failed(dErrors.Wrap(err, dErrors.CodeInternal, "failed to check license availability"))
	}

	if err := s.store.Save(ctx, practitioner); err != nil {
		if errors.Is(err, sentinel.ErrDuplicateKey) {
			return models.Practitioner{}, s.failed(dErrors.New(dErrors.CodeValidation, "license number is already registered for this tenant"))
		}
		return models.Practitioner{}, s.failed(dErrors.Wrap(err, dErrors.CodeInternal, "failed to save practitioner"))
	}

	s.emitAudit(ctx, authz, audit.EventPractitionerCreated, map[string]any{
		"practitioner_id": practitioner.ID.String(),
	})
	s.metrics.IncrementWriteOutcome(entityName, "success")
	return practitioner, nil
}

// UpdateProfile merges a partial profile change onto the existing record
// within the authority's tenant.
func (s *Service) UpdateProfile(ctx context.Context, authz *authority.Context, id domain.PractitionerID, update models.ProfileUpdate) (models.Practitioner, error) {
	if err := s.requireAuthority(authz); err != nil {
		return models.Practitioner{}, err
	}

	existing, err := s.store.FindByID(ctx, authz.TenantID(), id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Practitioner{}, s.failed(dErrors.New(dErrors.CodePractitionerNotFound, "practitioner not found"))
		}
		return models.Practitioner{}, s.failed(dErrors.Wrap(err, dErrors.CodeInternal, "failed to load practitioner"))
	}

	updated, err := existing.WithProfile(update, authz.ClinicianID(), requestcontext.Now(ctx))
	if err != nil {
		return models.Practitioner{}, s.failed(err)
	}

	if err := s.store.Save(ctx, updated); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Practitioner{}, s.failed(dErrors.New(dErrors.CodeConflict, "practitioner was modified concurrently"))
		}
		return models.Practitioner{}, s.failed(dErrors.Wrap(err, dErrors.CodeInternal, "failed to save practitioner"))
	}

	s.emitAudit(ctx, authz, audit.EventPractitionerUpdated, map[string]any{
		"practitioner_id": updated.ID.String(),
		"version":         updated.Version,
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
		s.logger.Error("practitioner write failed", "error", err)
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

// ReadModel serves tenant-filtered practitioner projections; no authority
// parameter, reads carry no mutation capability.
type ReadModel struct {
	store Store
}

func NewReadModel(store Store) *ReadModel {
	return &ReadModel{store: store}
}

func (r *ReadModel) Get(ctx context.Context, tenantID domain.TenantID, id domain.PractitionerID) (models.Practitioner, error) {
	practitioner, err := r.store.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Practitioner{}, dErrors.New(dErrors.CodePractitionerNotFound, "practitioner not found")
		}
		return models.Practitioner{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load practitioner")
	}
	return practitioner, nil
}

// GetByLicense resolves a practitioner by natural key within the tenant.
func (r *ReadModel) GetByLicense(ctx context.Context, tenantID domain.TenantID, licenseNumber string) (models.Practitioner, error) {
	practitioner, err := r.store.FindByLicense(ctx, tenantID, strings.TrimSpace(licenseNumber))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Practitioner{}, dErrors.New(dErrors.CodePractitionerNotFound, "practitioner not found")
		}
		return models.Practitioner{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load practitioner")
	}
	return practitioner, nil
}

func (r *ReadModel) List(ctx context.Context, tenantID domain.TenantID) ([]models.Practitioner, error) {
	practitioners, err := r.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list practitioners")
	}
	return practitioners, nil
}
