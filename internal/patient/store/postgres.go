package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"clinicore/internal/patient/models"
	"clinicore/pkg/domain"
	"clinicore/pkg/platform/sentinel"
)

// Postgres persists patients. Pure I/O; business rules live in the service.
// Uniqueness of (tenant_id, mrn) is a database constraint so concurrent
// creates cannot both win.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const patientColumns = "id, tenant_id, mrn, given_name, family_name, birth_date, version, created_at, updated_at, last_modified_by"

func (s *Postgres) FindByID(ctx context.Context, tenantID domain.TenantID, id domain.PatientID) (models.Patient, error) {
	query := fmt.Sprintf(`SELECT %s FROM patients WHERE tenant_id = $1 AND id = $2`, patientColumns)
	return scanPatient(s.db.QueryRowContext(ctx, query, tenantID.String(), id.String()))
}

func (s *Postgres) FindByMRN(ctx context.Context, tenantID domain.TenantID, mrn string) (models.Patient, error) {
	query := fmt.Sprintf(`SELECT %s FROM patients WHERE tenant_id = $1 AND lower(mrn) = lower($2)`, patientColumns)
	return scanPatient(s.db.QueryRowContext(ctx, query, tenantID.String(), mrn))
}

func (s *Postgres) ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]models.Patient, error) {
	query := fmt.Sprintf(`SELECT %s FROM patients WHERE tenant_id = $1 ORDER BY created_at ASC`, patientColumns)
	rows, err := s.db.QueryContext(ctx, query, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var patients []models.Patient
	for rows.Next() {
		patient, err := scanPatientRow(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, patient)
	}
	return patients, rows.Err()
}

func (s *Postgres) Save(ctx context.Context, patient models.Patient) error {
	if patient.Version == 1 {
		return s.insert(ctx, patient)
	}
	return s.update(ctx, patient)
}

func (s *Postgres) insert(ctx context.Context, patient models.Patient) error {
	query := `
		INSERT INTO patients (id, tenant_id, mrn, given_name, family_name, birth_date, version, created_at, updated_at, last_modified_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		patient.ID.String(), patient.TenantID.String(), patient.MRN,
		patient.GivenName, patient.FamilyName, nullableString(patient.BirthDate),
		patient.Version, patient.CreatedAt, patient.UpdatedAt, patient.LastModifiedBy.String(),
	)
	if isUniqueViolation(err) {
		return sentinel.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (s *Postgres) update(ctx context.Context, patient models.Patient) error {
	query := `
		UPDATE patients
		SET given_name = $1, family_name = $2, birth_date = $3, version = $4, updated_at = $5, last_modified_by = $6
		WHERE tenant_id = $7 AND id = $8 AND version = $9
	`
	res, err := s.db.ExecContext(ctx, query,
		patient.GivenName, patient.FamilyName, nullableString(patient.BirthDate),
		patient.Version, patient.UpdatedAt, patient.LastModifiedBy.String(),
		patient.TenantID.String(), patient.ID.String(), patient.Version-1,
	)
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	if affected == 0 {
		// Missing row and stale version are different facts.
		if _, findErr := s.FindByID(ctx, patient.TenantID, patient.ID); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row *sql.Row) (models.Patient, error) {
	patient, err := scanPatientRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Patient{}, sentinel.ErrNotFound
	}
	return patient, err
}

func scanPatientRow(row rowScanner) (models.Patient, error) {
	var (
		p                       models.Patient
		idRaw, tenantRaw, byRaw string
		birthDate               sql.NullString
	)
	err := row.Scan(&idRaw, &tenantRaw, &p.MRN, &p.GivenName, &p.FamilyName, &birthDate, &p.Version, &p.CreatedAt, &p.UpdatedAt, &byRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Patient{}, err
		}
		return models.Patient{}, fmt.Errorf("scan patient: %w", err)
	}
	if p.ID, err = domain.ParsePatientID(idRaw); err != nil {
		return models.Patient{}, fmt.Errorf("scan patient id: %w", err)
	}
	if p.TenantID, err = domain.ParseTenantID(tenantRaw); err != nil {
		return models.Patient{}, fmt.Errorf("scan patient tenant: %w", err)
	}
	if p.LastModifiedBy, err = domain.ParseClinicianID(byRaw); err != nil {
		return models.Patient{}, fmt.Errorf("scan patient modifier: %w", err)
	}
	p.BirthDate = birthDate.String
	return p, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: strings.TrimSpace(s) != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
