package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"clinicore/internal/encounter/models"
	"clinicore/pkg/domain"
	"clinicore/pkg/platform/sentinel"
)

// Postgres persists encounters.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const encounterColumns = "id, tenant_id, patient_id, practitioner_id, reason_text, status, version, created_at, updated_at, last_modified_by"

func (s *Postgres) FindByID(ctx context.Context, tenantID domain.TenantID, id domain.EncounterID) (models.Encounter, error) {
	query := fmt.Sprintf(`SELECT %s FROM encounters WHERE tenant_id = $1 AND id = $2`, encounterColumns)
	return scanEncounter(s.db.QueryRowContext(ctx, query, tenantID.String(), id.String()))
}

func (s *Postgres) ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]models.Encounter, error) {
	query := fmt.Sprintf(`SELECT %s FROM encounters WHERE tenant_id = $1 ORDER BY created_at ASC`, encounterColumns)
	return s.queryMany(ctx, query, tenantID.String())
}

func (s *Postgres) ListByPatient(ctx context.Context, tenantID domain.TenantID, patientID domain.PatientID) ([]models.Encounter, error) {
	query := fmt.Sprintf(`SELECT %s FROM encounters WHERE tenant_id = $1 AND patient_id = $2 ORDER BY created_at ASC`, encounterColumns)
	return s.queryMany(ctx, query, tenantID.String(), patientID.String())
}

func (s *Postgres) queryMany(ctx context.Context, query string, args ...any) ([]models.Encounter, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list encounters: %w", err)
	}
	defer rows.Close()

	var encounters []models.Encounter
	for rows.Next() {
		encounter, err := scanEncounterRow(rows)
		if err != nil {
			return nil, err
		}
		encounters = append(encounters, encounter)
	}
	return encounters, rows.Err()
}

func (s *Postgres) Save(ctx context.Context, encounter models.Encounter) error {
	if encounter.Version == 1 {
		return s.insert(ctx, encounter)
	}
	return s.update(ctx, encounter)
}

func (s *Postgres) insert(ctx context.Context, encounter models.Encounter) error {
	query := `
		INSERT INTO encounters (id, tenant_id, patient_id, practitioner_id, reason_text, status, version, created_at, updated_at, last_modified_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		encounter.ID.String(), encounter.TenantID.String(), encounter.PatientID.String(),
		encounter.PractitionerID.String(), nullableString(encounter.ReasonText), string(encounter.Status),
		encounter.Version, encounter.CreatedAt, encounter.UpdatedAt, encounter.LastModifiedBy.String(),
	)
	if isUniqueViolation(err) {
		return sentinel.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert encounter: %w", err)
	}
	return nil
}

func (s *Postgres) update(ctx context.Context, encounter models.Encounter) error {
	query := `
		UPDATE encounters
		SET status = $1, version = $2, updated_at = $3, last_modified_by = $4
		WHERE tenant_id = $5 AND id = $6 AND version = $7
	`
	res, err := s.db.ExecContext(ctx, query,
		string(encounter.Status), encounter.Version, encounter.UpdatedAt, encounter.LastModifiedBy.String(),
		encounter.TenantID.String(), encounter.ID.String(), encounter.Version-1,
	)
	if err != nil {
		return fmt.Errorf("update encounter: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update encounter: %w", err)
	}
	if affected == 0 {
		if _, findErr := s.FindByID(ctx, encounter.TenantID, encounter.ID); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEncounter(row *sql.Row) (models.Encounter, error) {
	encounter, err := scanEncounterRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Encounter{}, sentinel.ErrNotFound
	}
	return encounter, err
}

func scanEncounterRow(row rowScanner) (models.Encounter, error) {
	var (
		e                                             models.Encounter
		idRaw, tenantRaw, patientRaw, practitionerRaw string
		byRaw, statusRaw                              string
		reasonText                                    sql.NullString
	)
	err := row.Scan(&idRaw, &tenantRaw, &patientRaw, &practitionerRaw, &reasonText, &statusRaw, &e.Version, &e.CreatedAt, &e.UpdatedAt, &byRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Encounter{}, err
		}
		return models.Encounter{}, fmt.Errorf("scan encounter: %w", err)
	}
	if e.ID, err = domain.ParseEncounterID(idRaw); err != nil {
		return models.Encounter{}, fmt.Errorf("scan encounter id: %w", err)
	}
	if e.TenantID, err = domain.ParseTenantID(tenantRaw); err != nil {
		return models.Encounter{}, fmt.Errorf("scan encounter tenant: %w", err)
	}
	if e.PatientID, err = domain.ParsePatientID(patientRaw); err != nil {
		return models.Encounter{}, fmt.Errorf("scan encounter patient: %w", err)
	}
	if e.PractitionerID, err = domain.ParsePractitionerID(practitionerRaw); err != nil {
		return models.Encounter{}, fmt.Errorf("scan encounter practitioner: %w", err)
	}
	if e.LastModifiedBy, err = domain.ParseClinicianID(byRaw); err != nil {
		return models.Encounter{}, fmt.Errorf("scan encounter modifier: %w", err)
	}
	e.ReasonText = reasonText.String
	e.Status = models.Status(statusRaw)
	return e, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: strings.TrimSpace(s) != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
