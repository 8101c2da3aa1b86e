package models

import (
	"strings"
	"time"

	"clinicore/pkg/domain"
	dErrors "clinicore/pkg/domain-errors"
)

// Status is the encounter lifecycle state. Transitions are one way:
// CREATED → ACTIVE → COMPLETED, with ABORTED reachable from CREATED or
// ACTIVE. COMPLETED and ABORTED are terminal.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusAborted   Status = "ABORTED"
)

// CanTransitionTo reports whether the state machine permits moving from the
// current status to the target.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusCreated:
		return target == StatusActive || target == StatusAborted
	case StatusActive:
		return target == StatusCompleted || target == StatusAborted
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

// Encounter is the tenant-scoped visit record linking a patient and a
// practitioner.
type Encounter struct {
	ID             domain.EncounterID
	TenantID       domain.TenantID
	PatientID      domain.PatientID
	PractitionerID domain.PractitionerID
	ReasonText     string // optional
	Status         Status
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastModifiedBy domain.ClinicianID
}

// NewEncounter constructs version 1 of an encounter in CREATED.
func NewEncounter(id domain.EncounterID, tenantID domain.TenantID, patientID domain.PatientID, practitionerID domain.PractitionerID, reasonText string, by domain.ClinicianID, now time.Time) (Encounter, error) {
	if patientID.IsNil() {
		return Encounter{}, dErrors.New(dErrors.CodeValidation, "patient id is required")
	}
	if practitionerID.IsNil() {
		return Encounter{}, dErrors.New(dErrors.CodeValidation, "practitioner id is required")
	}

	return Encounter{
		ID:             id,
		TenantID:       tenantID,
		PatientID:      patientID,
		PractitionerID: practitionerID,
		ReasonText:     strings.TrimSpace(reasonText),
		Status:         StatusCreated,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastModifiedBy: by,
	}, nil
}

// WithStatus moves a copy of the encounter to the target status. An illegal
// transition is CONFLICT and the receiver is unchanged, so status and
// UpdatedAt survive the failed attempt untouched.
func (e Encounter) WithStatus(target Status, by domain.ClinicianID, now time.Time) (Encounter, error) {
	if !e.Status.CanTransitionTo(target) {
		return Encounter{}, dErrors.Newf(dErrors.CodeConflict, "cannot transition encounter from %s to %s", e.Status, target)
	}

	next := e
	next.Status = target
	next.Version = e.Version + 1
	next.UpdatedAt = now
	next.LastModifiedBy = by
	return next, nil
}
