package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"clinicore/internal/audit"
	"clinicore/internal/authority"
	"clinicore/internal/encounter/models"
	"clinicore/internal/encounter/store"
	"clinicore/pkg/domain"
	dErrors "clinicore/pkg/domain-errors"
	"clinicore/pkg/requestcontext"
)

type capturingAuditor struct {
	events []audit.Event
}

func (a *capturingAuditor) Emit(_ context.Context, event audit.Event) {
	a.events = append(a.events, event)
}

type EncounterServiceSuite struct {
	suite.Suite
	store   *store.InMemory
	auditor *capturingAuditor
	service *Service
	reads   *ReadModel

	factory   *authority.Factory
	tenantA   domain.TenantID
	tenantB   domain.TenantID
	clinician domain.ClinicianID
	ctx       context.Context
}

func TestEncounterServiceSuite(t *testing.T) {
	suite.Run(t, new(EncounterServiceSuite))
}

func (s *EncounterServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.auditor = &capturingAuditor{}

	var err error
	s.service, err = New(s.store, WithAuditEmitter(s.auditor))
	s.Require().NoError(err)
	s.reads = NewReadModel(s.store)

	s.factory = authority.NewFactory()
	s.tenantA = domain.NewTenantID()
	s.tenantB = domain.NewTenantID()
	s.clinician = domain.NewClinicianID()
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC))
}

func (s *EncounterServiceSuite) mint(tenantID domain.TenantID) *authority.Context {
	authz, err := s.factory.Mint(s.ctx, authority.Input{
		ClinicianID:   s.clinician,
		TenantID:      tenantID,
		CorrelationID: "corr-test",
	})
	s.Require().NoError(err)
	return &authz
}

func (s *EncounterServiceSuite) create(tenantID domain.TenantID) models.Encounter {
	encounter, err := s.service.Create(s.ctx, s.mint(tenantID), CreateInput{
		PatientID:      domain.NewPatientID(),
		PractitionerID: domain.NewPractitionerID(),
		ReasonText:     "routine checkup",
	})
	s.Require().NoError(err)
	return encounter
}

func (s *EncounterServiceSuite) TestAuthorityGating() {
	_, err := s.service.Create(s.ctx, nil, CreateInput{})
	s.True(dErrors.HasCode(err, dErrors.CodeAuthorityMissing))

	_, err = s.service.Activate(s.ctx, &authority.Context{}, domain.NewEncounterID())
	s.True(dErrors.HasCode(err, dErrors.CodeAuthorityInvalid))
}

func (s *EncounterServiceSuite) TestCreate() {
	encounter := s.create(s.tenantA)
	s.Equal(models.StatusCreated, encounter.Status)
	s.Equal(s.tenantA, encounter.TenantID)
	s.Equal(s.clinician, encounter.LastModifiedBy)
	s.Equal(encounter.CreatedAt, encounter.UpdatedAt)
}

func (s *EncounterServiceSuite) TestLifecycle() {
	encounter := s.create(s.tenantA)

	active, err := s.service.Activate(s.ctx, s.mint(s.tenantA), encounter.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, active.Status)

	completed, err := s.service.Complete(s.ctx, s.mint(s.tenantA), encounter.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, completed.Status)
}

func (s *EncounterServiceSuite) TestAbort() {
	s.Run("from CREATED", func() {
		encounter := s.create(s.tenantA)
		aborted, err := s.service.Abort(s.ctx, s.mint(s.tenantA), encounter.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusAborted, aborted.Status)
	})

	s.Run("from ACTIVE", func() {
		encounter := s.create(s.tenantA)
		_, err := s.service.Activate(s.ctx, s.mint(s.tenantA), encounter.ID)
		s.Require().NoError(err)

		aborted, err := s.service.Abort(s.ctx, s.mint(s.tenantA), encounter.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusAborted, aborted.Status)
	})

	s.Run("not from COMPLETED", func() {
		encounter := s.create(s.tenantA)
		_, err := s.service.Activate(s.ctx, s.mint(s.tenantA), encounter.ID)
		s.Require().NoError(err)
		_, err = s.service.Complete(s.ctx, s.mint(s.tenantA), encounter.ID)
		s.Require().NoError(err)

		_, err = s.service.Abort(s.ctx, s.mint(s.tenantA), encounter.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *EncounterServiceSuite) TestIllegalTransitionLeavesRecordUnchanged() {
	encounter := s.create(s.tenantA)

	// Complete straight from CREATED skips ACTIVE and must conflict.
	_, err := s.service.Complete(s.ctx, s.mint(s.tenantA), encounter.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	stored, err := s.reads.Get(s.ctx, s.tenantA, encounter.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCreated, stored.Status)
	s.Equal(encounter.UpdatedAt, stored.UpdatedAt)
	s.Equal(encounter.Version, stored.Version)

	s.Run("activate after terminal state", func() {
		_, err := s.service.Abort(s.ctx, s.mint(s.tenantA), encounter.ID)
		s.Require().NoError(err)

		_, err = s.service.Activate(s.ctx, s.mint(s.tenantA), encounter.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *EncounterServiceSuite) TestTenantIsolation() {
	encounter := s.create(s.tenantA)

	_, err := s.service.Activate(s.ctx, s.mint(s.tenantB), encounter.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeEncounterNotFound),
		"transition under another tenant is indistinguishable from absence")

	_, err = s.reads.Get(s.ctx, s.tenantB, encounter.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeEncounterNotFound))
}

func (s *EncounterServiceSuite) TestAuditTrail() {
	encounter := s.create(s.tenantA)
	_, err := s.service.Activate(s.ctx, s.mint(s.tenantA), encounter.ID)
	s.Require().NoError(err)

	s.Require().Len(s.auditor.events, 2)
	s.Equal(audit.EventEncounterCreated, s.auditor.events[0].Type)
	s.Equal(audit.EventEncounterActivated, s.auditor.events[1].Type)
	s.Equal("ACTIVE", s.auditor.events[1].Payload["status"])
	s.NotContains(s.auditor.events[0].Payload, "reason_text")
}

func (s *EncounterServiceSuite) TestListByPatient() {
	patientID := domain.NewPatientID()
	_, err := s.service.Create(s.ctx, s.mint(s.tenantA), CreateInput{
		PatientID:      patientID,
		PractitionerID: domain.NewPractitionerID(),
	})
	s.Require().NoError(err)
	s.create(s.tenantA)

	list, err := s.reads.ListByPatient(s.ctx, s.tenantA, patientID)
	s.Require().NoError(err)
	s.Len(list, 1)

	other, err := s.reads.ListByPatient(s.ctx, s.tenantB, patientID)
	s.Require().NoError(err)
	s.Empty(other)
}
