package models

import (
	"strings"
	"time"

	"clinicore/pkg/domain"
	dErrors "clinicore/pkg/domain-errors"
)

// Status is the clinical note lifecycle state. DRAFT → FINALIZED, one way;
// FINALIZED is terminal and the record becomes immutable, including through
// the repository's own update path.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusFinalized Status = "FINALIZED"
)

// ClinicalNote is the tenant-scoped note attached to an encounter. The
// content is protected health information and never leaves the record into
// audit payloads or logs.
type ClinicalNote struct {
	ID             domain.NoteID
	TenantID       domain.TenantID
	EncounterID    domain.EncounterID
	Content        string
	Status         Status
	Version        int
	CreatedAt      time.Time
	FinalizedAt    time.Time // zero until finalized
	UpdatedAt      time.Time
	LastModifiedBy domain.ClinicianID
}

// NewClinicalNote constructs version 1 of a draft note. Content is required
// from the first version; an empty draft is CONTENT_REQUIRED.
func NewClinicalNote(id domain.NoteID, tenantID domain.TenantID, encounterID domain.EncounterID, content string, by domain.ClinicianID, now time.Time) (ClinicalNote, error) {
	if encounterID.IsNil() {
		return ClinicalNote{}, dErrors.New(dErrors.CodeValidation, "encounter id is required")
	}
	if strings.TrimSpace(content) == "" {
		return ClinicalNote{}, dErrors.New(dErrors.CodeContentRequired, "note content is required")
	}

	return ClinicalNote{
		ID:             id,
		TenantID:       tenantID,
		EncounterID:    encounterID,
		Content:        content,
		Status:         StatusDraft,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastModifiedBy: by,
	}, nil
}

// WithContent replaces the content on a copy of a draft note. A finalized
// note reports ALREADY_FINALIZED and the receiver is unchanged.
func (n ClinicalNote) WithContent(content string, by domain.ClinicianID, now time.Time) (ClinicalNote, error) {
	if n.Status == StatusFinalized {
		return ClinicalNote{}, dErrors.New(dErrors.CodeAlreadyFinalized, "note is finalized and cannot be amended")
	}
	if strings.TrimSpace(content) == "" {
		return ClinicalNote{}, dErrors.New(dErrors.CodeContentRequired, "note content is required")
	}

	next := n
	next.Content = content
	next.Version = n.Version + 1
	next.UpdatedAt = now
	next.LastModifiedBy = by
	return next, nil
}

// Finalized moves a copy of a draft note to FINALIZED. Repeating the call on
// the result reports ALREADY_FINALIZED.
func (n ClinicalNote) Finalized(by domain.ClinicianID, now time.Time) (ClinicalNote, error) {
	if n.Status == StatusFinalized {
		return ClinicalNote{}, dErrors.New(dErrors.CodeAlreadyFinalized, "note is already finalized")
	}

	next := n
	next.Status = StatusFinalized
	next.FinalizedAt = now
	next.Version = n.Version + 1
	next.UpdatedAt = now
	next.LastModifiedBy = by
	return next, nil
}
