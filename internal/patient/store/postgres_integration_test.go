//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"clinicore/internal/patient/models"
	"clinicore/pkg/domain"
	"clinicore/pkg/platform/sentinel"
	"clinicore/pkg/testutil/containers"
)

type PostgresPatientStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Postgres
	ctx   context.Context
}

func TestPostgresPatientStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresPatientStoreSuite))
}

func (s *PostgresPatientStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.DB)
	s.ctx = context.Background()
}

func (s *PostgresPatientStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx, "patients"))
}

func (s *PostgresPatientStoreSuite) newPatient(tenantID domain.TenantID, mrn string) models.Patient {
	patient, err := models.NewPatient(
		domain.NewPatientID(),
		tenantID,
		mrn,
		"Ada",
		"Lovelace",
		"1990-12-10",
		domain.NewClinicianID(),
		time.Now().UTC().Truncate(time.Microsecond),
	)
	s.Require().NoError(err)
	return patient
}

func (s *PostgresPatientStoreSuite) TestRoundTrip() {
	tenant := domain.NewTenantID()
	patient := s.newPatient(tenant, "MRN-001")
	s.Require().NoError(s.store.Save(s.ctx, patient))

	found, err := s.store.FindByID(s.ctx, tenant, patient.ID)
	s.Require().NoError(err)
	s.Equal(patient.MRN, found.MRN)
	s.Equal(patient.Version, found.Version)
	s.True(patient.CreatedAt.Equal(found.CreatedAt))

	byMRN, err := s.store.FindByMRN(s.ctx, tenant, "mrn-001")
	s.Require().NoError(err)
	s.Equal(patient.ID, byMRN.ID)
}

func (s *PostgresPatientStoreSuite) TestTenantScoping() {
	tenant := domain.NewTenantID()
	patient := s.newPatient(tenant, "MRN-001")
	s.Require().NoError(s.store.Save(s.ctx, patient))

	_, err := s.store.FindByID(s.ctx, domain.NewTenantID(), patient.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresPatientStoreSuite) TestUniqueConstraint() {
	tenant := domain.NewTenantID()
	s.Require().NoError(s.store.Save(s.ctx, s.newPatient(tenant, "MRN-001")))

	s.ErrorIs(s.store.Save(s.ctx, s.newPatient(tenant, "MRN-001")), sentinel.ErrDuplicateKey)
	s.ErrorIs(s.store.Save(s.ctx, s.newPatient(tenant, "mrn-001")), sentinel.ErrDuplicateKey)
	s.NoError(s.store.Save(s.ctx, s.newPatient(domain.NewTenantID(), "MRN-001")))
}

func (s *PostgresPatientStoreSuite) TestVersionGuard() {
	tenant := domain.NewTenantID()
	patient := s.newPatient(tenant, "MRN-001")
	s.Require().NoError(s.store.Save(s.ctx, patient))

	updated := patient
	updated.Version = 2
	updated.GivenName = "Augusta"
	s.Require().NoError(s.store.Save(s.ctx, updated))

	stale := patient
	stale.Version = 2
	s.ErrorIs(s.store.Save(s.ctx, stale), sentinel.ErrConflict)

	ghost := s.newPatient(tenant, "MRN-404")
	ghost.Version = 2
	s.ErrorIs(s.store.Save(s.ctx, ghost), sentinel.ErrNotFound)
}
