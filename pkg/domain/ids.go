// Package domain holds the typed identifiers shared by every kernel module.
//
// IDs are distinct uuid newtypes so tenant, clinician, and record identifiers
// can never be swapped at a call site without a compile error. Parsing is the
// trust boundary: transports hand the kernel raw strings, and every Parse
// function rejects empty, malformed, and nil UUIDs.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "clinicore/pkg/domain-errors"
)

type (
	// TenantID scopes every record and every query.
	TenantID uuid.UUID
	// ClinicianID identifies the human who authorized an action.
	ClinicianID uuid.UUID
	// PatientID identifies a patient record.
	PatientID uuid.UUID
	// PractitionerID identifies a practitioner record.
	PractitionerID uuid.UUID
	// EncounterID identifies an encounter record.
	EncounterID uuid.UUID
	// NoteID identifies a clinical note record.
	NoteID uuid.UUID
)

func parse(raw, kind string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s id is required", kind)
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s id is not a valid uuid", kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeValidation, "%s id must not be the nil uuid", kind)
	}
	return u, nil
}

// ParseTenantID validates and converts a raw tenant identifier.
func ParseTenantID(raw string) (TenantID, error) {
	u, err := parse(raw, "tenant")
	return TenantID(u), err
}

// ParseClinicianID validates and converts a raw clinician identifier.
func ParseClinicianID(raw string) (ClinicianID, error) {
	u, err := parse(raw, "clinician")
	return ClinicianID(u), err
}

// ParsePatientID validates and converts a raw patient identifier.
func ParsePatientID(raw string) (PatientID, error) {
	u, err := parse(raw, "patient")
	return PatientID(u), err
}

// ParsePractitionerID validates and converts a raw practitioner identifier.
func ParsePractitionerID(raw string) (PractitionerID, error) {
	u, err := parse(raw, "practitioner")
	return PractitionerID(u), err
}

// ParseEncounterID validates and converts a raw encounter identifier.
func ParseEncounterID(raw string) (EncounterID, error) {
	u, err := parse(raw, "encounter")
	return EncounterID(u), err
}

// ParseNoteID validates and converts a raw clinical note identifier.
func ParseNoteID(raw string) (NoteID, error) {
	u, err := parse(raw, "note")
	return NoteID(u), err
}

func (id TenantID) String() string       { return uuid.UUID(id).String() }
func (id ClinicianID) String() string    { return uuid.UUID(id).String() }
func (id PatientID) String() string      { return uuid.UUID(id).String() }
func (id PractitionerID) String() string { return uuid.UUID(id).String() }
func (id EncounterID) String() string    { return uuid.UUID(id).String() }
func (id NoteID) String() string         { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ClinicianID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id PatientID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id PractitionerID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EncounterID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id NoteID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }

// NewTenantID returns a fresh random tenant id.
func NewTenantID() TenantID { return TenantID(uuid.New()) }

// NewClinicianID returns a fresh random clinician id.
func NewClinicianID() ClinicianID { return ClinicianID(uuid.New()) }

// NewPatientID returns a fresh random patient id.
func NewPatientID() PatientID { return PatientID(uuid.New()) }

// NewPractitionerID returns a fresh random practitioner id.
func NewPractitionerID() PractitionerID { return PractitionerID(uuid.New()) }

// NewEncounterID returns a fresh random encounter id.
func NewEncounterID() EncounterID { return EncounterID(uuid.New()) }

// NewNoteID returns a fresh random note id.
func NewNoteID() NoteID { return NoteID(uuid.New()) }
