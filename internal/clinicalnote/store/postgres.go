package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"clinicore/internal/clinicalnote/models"
	"clinicore/pkg/domain"
	"clinicore/pkg/platform/sentinel"
)

// Postgres persists clinical notes. The update statement only matches rows
// still in DRAFT, so a finalized note is untouchable at the SQL level too.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const noteColumns = "id, tenant_id, encounter_id, content, status, version, created_at, finalized_at, updated_at, last_modified_by"

func (s *Postgres) FindByID(ctx context.Context, tenantID domain.TenantID, id domain.NoteID) (models.ClinicalNote, error) {
	query := fmt.Sprintf(`SELECT %s FROM clinical_notes WHERE tenant_id = $1 AND id = $2`, noteColumns)
	return scanNote(s.db.QueryRowContext(ctx, query, tenantID.String(), id.String()))
}

func (s *Postgres) ListByTenant(ctx context.Context, tenantID domain.TenantID) ([]models.ClinicalNote, error) {
	query := fmt.Sprintf(`SELECT %s FROM clinical_notes WHERE tenant_id = $1 ORDER BY created_at ASC`, noteColumns)
	return s.queryMany(ctx, query, tenantID.String())
}

func (s *Postgres) ListByEncounter(ctx context.Context, tenantID domain.TenantID, encounterID domain.EncounterID) ([]models.ClinicalNote, error) {
	query := fmt.Sprintf(`SELECT %s FROM clinical_notes WHERE tenant_id = $1 AND encounter_id = $2 ORDER BY created_at ASC`, noteColumns)
	return s.queryMany(ctx, query, tenantID.String(), encounterID.String())
}

func (s *Postgres) queryMany(ctx context.Context, query string, args ...any) ([]models.ClinicalNote, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []models.ClinicalNote
	for rows.Next() {
		note, err := scanNoteRow(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func (s *Postgres) Save(ctx context.Context, note models.ClinicalNote) error {
	if note.Version == 1 {
		return s.insert(ctx, note)
	}
	return s.update(ctx, note)
}

func (s *Postgres) insert(ctx context.Context, note models.ClinicalNote) error {
	query := `
		INSERT INTO clinical_notes (id, tenant_id, encounter_id, content, status, version, created_at, finalized_at, updated_at, last_modified_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		note.ID.String(), note.TenantID.String(), note.EncounterID.String(),
		note.Content, string(note.Status), note.Version,
		note.CreatedAt, nullableTime(note.FinalizedAt), note.UpdatedAt, note.LastModifiedBy.String(),
	)
	if isUniqueViolation(err) {
		return sentinel.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *Postgres) update(ctx context.Context, note models.ClinicalNote) error {
	query := `
		UPDATE clinical_notes
		SET content = $1, status = $2, version = $3, finalized_at = $4, updated_at = $5, last_modified_by = $6
		WHERE tenant_id = $7 AND id = $8 AND version = $9 AND status = 'DRAFT'
	`
	res, err := s.db.ExecContext(ctx, query,
		note.Content, string(note.Status), note.Version, nullableTime(note.FinalizedAt),
		note.UpdatedAt, note.LastModifiedBy.String(),
		note.TenantID.String(), note.ID.String(), note.Version-1,
	)
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	if affected == 0 {
		existing, findErr := s.FindByID(ctx, note.TenantID, note.ID)
		switch {
		case errors.Is(findErr, sentinel.ErrNotFound):
			return sentinel.ErrNotFound
		case findErr != nil:
			return fmt.Errorf("update note: %w", findErr)
		case existing.Status == models.StatusFinalized:
			return sentinel.ErrFinalized
		default:
			return sentinel.ErrConflict
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row *sql.Row) (models.ClinicalNote, error) {
	note, err := scanNoteRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ClinicalNote{}, sentinel.ErrNotFound
	}
	return note, err
}

func scanNoteRow(row rowScanner) (models.ClinicalNote, error) {
	var (
		n                              models.ClinicalNote
		idRaw, tenantRaw, encounterRaw string
		byRaw, statusRaw               string
		finalizedAt                    sql.NullTime
	)
	err := row.Scan(&idRaw, &tenantRaw, &encounterRaw, &n.Content, &statusRaw, &n.Version, &n.CreatedAt, &finalizedAt, &n.UpdatedAt, &byRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ClinicalNote{}, err
		}
		return models.ClinicalNote{}, fmt.Errorf("scan note: %w", err)
	}
	if n.ID, err = domain.ParseNoteID(idRaw); err != nil {
		return models.ClinicalNote{}, fmt.Errorf("scan note id: %w", err)
	}
	if n.TenantID, err = domain.ParseTenantID(tenantRaw); err != nil {
		return models.ClinicalNote{}, fmt.Errorf("scan note tenant: %w", err)
	}
	if n.EncounterID, err = domain.ParseEncounterID(encounterRaw); err != nil {
		return models.ClinicalNote{}, fmt.Errorf("scan note encounter: %w", err)
	}
	if n.LastModifiedBy, err = domain.ParseClinicianID(byRaw); err != nil {
		return models.ClinicalNote{}, fmt.Errorf("scan note modifier: %w", err)
	}
	n.Status = models.Status(statusRaw)
	n.FinalizedAt = finalizedAt.Time
	return n, nil
}

func nullableTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
