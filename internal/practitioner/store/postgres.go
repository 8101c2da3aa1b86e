package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"clinicore/internal/practitioner/models"
	"clinicore/pkg/domain"
	"clinicore/pkg/platform/sentinel"
)

// Postgres persists practitioners. Uniqueness of (tenant_id, license_number)
// is a database constraint.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const practitionerColumns = "id, tenant_id, license_number, given_name, family_name, specialty, version, created_at, updated_at, last_modified_by"

func (s *Postgres) FindByID(ctx context.Context, tenantID domain.TenantID, id domain.PractitionerID) (models.Practitioner, error) {
	query := fmt.Sprintf(`SELECT %s FROM practitioners WHERE tenant_id = $1 AND id = $2`, practitionerColumns)
	return scanPractitioner(s.db.QueryRowContext(ctx, query, tenantID.String(), id.String()))
}

func (s *Postgres) FindByLicense(ctx context.Context, tenantID domain.TenantID, licenseNumber string) (models.Practitioner, error) {
	query := fmt.Sprintf(`SELECT %s FROM practitioners WHERE tenant_id = $1 AND lower(license_number) = lower($2)`, practitionerColumns)
	return scanPractitioner(s.db.QueryRowContext(ctx, query, tenantID.String(), licenseNumber))
}

func (s *Postgres) ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]models.Practitioner, error) {
	query := fmt.Sprintf(`SELECT %s FROM practitioners WHERE tenant_id = $1 ORDER BY created_at ASC`, practitionerColumns)
	rows, err := s.db.QueryContext(ctx, query, tenantID.String())
	if err != nil {
		return nil, fmt.Errorf("list practitioners: %w", err)
	}
	defer rows.Close()

	var practitioners []models.Practitioner
	for rows.Next() {
		practitioner, err := scanPractitionerRow(rows)
		if err != nil {
			return nil, err
		}
		practitioners = append(practitioners, practitioner)
	}
	return practitioners, rows.Err()
}

func (s *Postgres) Save(ctx context.Context, practitioner models.Practitioner) error {
	if practitioner.Version == 1 {
		return s.insert(ctx, practitioner)
	}
	return s.update(ctx, practitioner)
}

func (s *Postgres) insert(ctx context.Context, practitioner models.Practitioner) error {
	query := `
		INSERT INTO practitioners (id, tenant_id, license_number, given_name, family_name, specialty, version, created_at, updated_at, last_modified_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		practitioner.ID.String(), practitioner.TenantID.String(), practitioner.LicenseNumber,
		practitioner.GivenName, practitioner.FamilyName, nullableString(practitioner.Specialty),
		practitioner.Version, practitioner.CreatedAt, practitioner.UpdatedAt, practitioner.LastModifiedBy.String(),
	)
	if isUniqueViolation(err) {
		return sentinel.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert practitioner: %w", err)
	}
	return nil
}

func (s *Postgres) update(ctx context.Context, practitioner models.Practitioner) error {
	query := `
		UPDATE practitioners
		SET given_name = $1, family_name = $2, specialty = $3, version = $4, updated_at = $5, last_modified_by = $6
		WHERE tenant_id = $7 AND id = $8 AND version = $9
	`
	res, err := s.db.ExecContext(ctx, query,
		practitioner.GivenName, practitioner.FamilyName, nullableString(practitioner.Specialty),
		practitioner.Version, practitioner.UpdatedAt, practitioner.LastModifiedBy.String(),
		practitioner.TenantID.String(), practitioner.ID.String(), practitioner.Version-1,
	)
	if err != nil {
		return fmt.Errorf("update practitioner: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update practitioner: %w", err)
	}
	if affected == 0 {
		if _, findErr := s.FindByID(ctx, practitioner.TenantID, practitioner.ID); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPractitioner(row *sql.Row) (models.Practitioner, error) {
	practitioner, err := scanPractitionerRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Practitioner{}, sentinel.ErrNotFound
	}
	return practitioner, err
}

func scanPractitionerRow(row rowScanner) (models.Practitioner, error) {
	var (
		p                       models.Practitioner
		idRaw, tenantRaw, byRaw string
		specialty               sql.NullString
	)
	err := row.Scan(&idRaw, &tenantRaw, &p.LicenseNumber, &p.GivenName, &p.FamilyName, &specialty, &p.Version, &p.CreatedAt, &p.UpdatedAt, &byRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Practitioner{}, err
		}
		return models.Practitioner{}, fmt.Errorf("scan practitioner: %w", err)
	}
	if p.ID, err = domain.ParsePractitionerID(idRaw); err != nil {
		return models.Practitioner{}, fmt.Errorf("scan practitioner id: %w", err)
	}
	if p.TenantID, err = domain.ParseTenantID(tenantRaw); err != nil {
		return models.Practitioner{}, fmt.Errorf("scan practitioner tenant: %w", err)
	}
	if p.LastModifiedBy, err = domain.ParseClinicianID(byRaw); err != nil {
		return models.Practitioner{}, fmt.Errorf("scan practitioner modifier: %w", err)
	}
	p.Specialty = specialty.String
	return p, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: strings.TrimSpace(s) != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
