package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"clinicore/internal/audit"
	"clinicore/internal/authority"
	"clinicore/internal/patient/models"
	"clinicore/internal/patient/store"
	"clinicore/pkg/domain"
	dErrors "clinicore/pkg/domain-errors"
	"clinicore/pkg/requestcontext"
)

// trackingStore wraps the in-memory store and counts accesses so tests can
// prove that fail-closed paths never touch the repository.
type trackingStore struct {
	*store.InMemory
	reads  int
	writes int
}

func (s *trackingStore) FindByID(ctx context.Context, tenantID domain.TenantID, id domain.PatientID) (models.Patient, error) {
	s.reads++
	return s.InMemory.FindByID(ctx, tenantID, id)
}

func (s *trackingStore) FindByMRN(ctx context.Context, tenantID domain.TenantID, mrn string) (models.Patient, error) {
	s.reads++
	return s.InMemory.FindByMRN(ctx, tenantID, mrn)
}

func (s *trackingStore) Save(ctx context.Context, patient models.Patient) error {
	s.writes++
	return s.InMemory.Save(ctx, patient)
}

type capturingAuditor struct {
	events []audit.Event
}

func (a *capturingAuditor) Emit(_ context.Context, event audit.Event) {
	a.events = append(a.events, event)
}

type PatientServiceSuite struct {
	suite.Suite
	store   *trackingStore
	auditor *capturingAuditor
	service *Service
	reads   *ReadModel

	factory   *authority.Factory
	tenantA   domain.TenantID
	tenantB   domain.TenantID
	clinician domain.ClinicianID
	now       time.Time
	ctx       context.Context
}

func TestPatientServiceSuite(t *testing.T) {
	suite.Run(t, new(PatientServiceSuite))
}

func (s *PatientServiceSuite) SetupTest() {
	s.store = &trackingStore{InMemory: store.NewInMemory()}
	s.auditor = &capturingAuditor{}

	var err error
	s.service, err = New(s.store, WithAuditEmitter(s.auditor))
	s.Require().NoError(err)
	s.reads = NewReadModel(s.store)

	s.factory = authority.NewFactory()
	s.tenantA = domain.NewTenantID()
	s.tenantB = domain.NewTenantID()
	s.clinician = domain.NewClinicianID()
	s.now = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *PatientServiceSuite) mint(tenantID domain.TenantID) *authority.Context {
	authz, err := s.factory.Mint(s.ctx, authority.Input{
		ClinicianID:   s.clinician,
		TenantID:      tenantID,
		CorrelationID: "corr-test",
	})
	s.Require().NoError(err)
	return &authz
}

func (s *PatientServiceSuite) validInput() CreateInput {
	return CreateInput{MRN: "MRN-001", GivenName: "Ada", FamilyName: "Lovelace", BirthDate: "1990-12-10"}
}

// =============================================================================
// Authority gating
// =============================================================================

func (s *PatientServiceSuite) TestNilAuthorityFailsClosed() {
	_, err := s.service.Create(s.ctx, nil, s.validInput())
	s.True(dErrors.HasCode(err, dErrors.CodeAuthorityMissing))

	_, err = s.service.UpdateDemographics(s.ctx, nil, domain.NewPatientID(), models.DemographicsUpdate{})
	s.True(dErrors.HasCode(err, dErrors.CodeAuthorityMissing))

	s.Zero(s.store.reads, "no repository access on missing authority")
	s.Zero(s.store.writes)
	s.Empty(s.auditor.events)
}

func (s *PatientServiceSuite) TestForgedAuthorityFailsClosed() {
	forged := &authority.Context{}

	_, err := s.service.Create(s.ctx, forged, s.validInput())
	s.True(dErrors.HasCode(err, dErrors.CodeAuthorityInvalid))

	_, err = s.service.UpdateDemographics(s.ctx, forged, domain.NewPatientID(), models.DemographicsUpdate{})
	s.True(dErrors.HasCode(err, dErrors.CodeAuthorityInvalid))

	s.Zero(s.store.reads, "no repository access on forged authority")
	s.Zero(s.store.writes)
}

// =============================================================================
// Create
// =============================================================================

func (s *PatientServiceSuite) TestCreate() {
	s.Run("stamps attribution and timestamps", func() {
		patient, err := s.service.Create(s.ctx, s.mint(s.tenantA), s.validInput())
		s.Require().NoError(err)

		s.Equal(s.tenantA, patient.TenantID)
		s.Equal(s.clinician, patient.LastModifiedBy)
		s.Equal(patient.CreatedAt, patient.UpdatedAt)
		s.Equal(s.now, patient.CreatedAt)
		s.Equal(1, patient.Version)
	})

	s.Run("rejects missing required fields", func() {
		_, err := s.service.Create(s.ctx, s.mint(s.tenantA), CreateInput{MRN: "MRN-X"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *PatientServiceSuite) TestCreate_MRNUniquenessPerTenant() {
	// The scenario from the platform's conformance checklist: duplicate MRN in
	// one tenant fails, the same MRN in another tenant is independent.
	_, err := s.service.Create(s.ctx, s.mint(s.tenantA), s.validInput())
	s.Require().NoError(err)

	_, err = s.service.Create(s.ctx, s.mint(s.tenantA), s.validInput())
	s.True(dErrors.HasCode(err, dErrors.CodeValidation), "duplicate mrn under the same tenant")

	patient, err := s.service.Create(s.ctx, s.mint(s.tenantB), s.validInput())
	s.Require().NoError(err, "tenants are independent namespaces")
	s.Equal(s.tenantB, patient.TenantID)
}

// =============================================================================
// UpdateDemographics
// =============================================================================

func (s *PatientServiceSuite) TestUpdateDemographics() {
	created, err := s.service.Create(s.ctx, s.mint(s.tenantA), s.validInput())
	s.Require().NoError(err)

	s.Run("merges partial input", func() {
		family := "Byron"
		updated, err := s.service.UpdateDemographics(s.ctx, s.mint(s.tenantA), created.ID, models.DemographicsUpdate{
			FamilyName: &family,
		})
		s.Require().NoError(err)
		s.Equal("Byron", updated.FamilyName)
		s.Equal("Ada", updated.GivenName, "unset fields keep their value")
		s.Equal("MRN-001", updated.MRN, "natural key never changes")
		s.Equal(created.Version+1, updated.Version)
	})

	s.Run("cross-tenant update reports not found", func() {
		family := "Byron"
		_, err := s.service.UpdateDemographics(s.ctx, s.mint(s.tenantB), created.ID, models.DemographicsUpdate{
			FamilyName: &family,
		})
		s.True(dErrors.HasCode(err, dErrors.CodePatientNotFound),
			"existence under another tenant must be indistinguishable from absence")
	})

	s.Run("blank merge value is rejected", func() {
		blank := "   "
		_, err := s.service.UpdateDemographics(s.ctx, s.mint(s.tenantA), created.ID, models.DemographicsUpdate{
			GivenName: &blank,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

// =============================================================================
// Audit
// =============================================================================

func (s *PatientServiceSuite) TestAuditAttribution() {
	patient, err := s.service.Create(s.ctx, s.mint(s.tenantA), s.validInput())
	s.Require().NoError(err)

	s.Require().Len(s.auditor.events, 1)
	event := s.auditor.events[0]
	s.Equal(audit.EventPatientCreated, event.Type)
	s.Equal(s.tenantA, event.Context.TenantID)
	s.Equal(s.clinician, event.Context.ActorID)
	s.Equal("corr-test", event.Context.TraceID)
	s.Equal(patient.ID.String(), event.Payload["patient_id"])
	s.NotContains(event.Payload, "given_name", "payload carries structure, not PHI")
	s.NotContains(event.Payload, "mrn")
}

// =============================================================================
// Read model
// =============================================================================

func (s *PatientServiceSuite) TestReadModel() {
	created, err := s.service.Create(s.ctx, s.mint(s.tenantA), s.validInput())
	s.Require().NoError(err)

	s.Run("get within tenant", func() {
		got, err := s.reads.Get(s.ctx, s.tenantA, created.ID)
		s.Require().NoError(err)
		s.Equal(created.MRN, got.MRN)
	})

	s.Run("cross-tenant get reports not found", func() {
		_, err := s.reads.Get(s.ctx, s.tenantB, created.ID)
		s.True(dErrors.HasCode(err, dErrors.CodePatientNotFound))
	})

	s.Run("get by mrn within tenant only", func() {
		got, err := s.reads.GetByMRN(s.ctx, s.tenantA, "MRN-001")
		s.Require().NoError(err)
		s.Equal(created.ID, got.ID)

		_, err = s.reads.GetByMRN(s.ctx, s.tenantB, "MRN-001")
		s.True(dErrors.HasCode(err, dErrors.CodePatientNotFound))
	})

	s.Run("list is tenant filtered", func() {
		listA, err := s.reads.List(s.ctx, s.tenantA)
		s.Require().NoError(err)
		s.Len(listA, 1)

		listB, err := s.reads.List(s.ctx, s.tenantB)
		s.Require().NoError(err)
		s.Empty(listB)
	})

	s.Run("returned records are copies", func() {
		got, err := s.reads.Get(s.ctx, s.tenantA, created.ID)
		s.Require().NoError(err)
		got.GivenName = "Mallory"

		fresh, err := s.reads.Get(s.ctx, s.tenantA, created.ID)
		s.Require().NoError(err)
		s.Equal("Ada", fresh.GivenName, "caller mutation never reaches kernel state")
	})
}

func (s *PatientServiceSuite) TestNewRequiresStore() {
	_, err := New(nil)
	s.Error(err)
	s.Contains(err.Error(), "patient store is required")
}
