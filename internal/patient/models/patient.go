package models

import (
	"strings"
	"time"

	"clinicore/pkg/domain"
	dErrors "clinicore/pkg/domain-errors"
)

// Patient is the tenant-scoped patient record.
//
// Invariants:
//   - MRN is non-blank and unique per tenant (tenants are independent
//     namespaces; the store enforces uniqueness, the service reports it)
//   - TenantID and MRN never change after construction
//   - LastModifiedBy is always the clinician from the validated authority
//     context of the write that produced this version
//
// Records are value types with no reference fields, so every copy is a deep
// copy. Stores and services hand out copies only; a caller can scribble on
// its value without touching kernel-held state.
type Patient struct {
	ID             domain.PatientID
	TenantID       domain.TenantID
	MRN            string
	GivenName      string
	FamilyName     string
	BirthDate      string // YYYY-MM-DD, optional
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastModifiedBy domain.ClinicianID
}

// NewPatient validates required fields and constructs version 1 of a record.
// CreatedAt equals UpdatedAt on a fresh record.
func NewPatient(id domain.PatientID, tenantID domain.TenantID, mrn, givenName, familyName, birthDate string, by domain.ClinicianID, now time.Time) (Patient, error) {
	mrn = strings.TrimSpace(mrn)
	givenName = strings.TrimSpace(givenName)
	familyName = strings.TrimSpace(familyName)
	birthDate = strings.TrimSpace(birthDate)

	if mrn == "" {
		return Patient{}, dErrors.New(dErrors.CodeValidation, "mrn is required")
	}
	if givenName == "" {
		return Patient{}, dErrors.New(dErrors.CodeValidation, "given name is required")
	}
	if familyName == "" {
		return Patient{}, dErrors.New(dErrors.CodeValidation, "family name is required")
	}
	if birthDate != "" {
		if _, err := time.Parse("2006-01-02", birthDate); err != nil {
			return Patient{}, dErrors.New(dErrors.CodeValidation, "birth date must be YYYY-MM-DD")
		}
	}

	return Patient{
		ID:             id,
		TenantID:       tenantID,
		MRN:            mrn,
		GivenName:      givenName,
		FamilyName:     familyName,
		BirthDate:      birthDate,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastModifiedBy: by,
	}, nil
}

// DemographicsUpdate carries a partial demographic change. Nil fields are
// left as they are; there is no way to widen tenant scope or change the MRN
// through an update.
type DemographicsUpdate struct {
	GivenName  *string
	FamilyName *string
	BirthDate  *string
}

// WithDemographics merges the update onto a copy of the record, bumping the
// version and stamping the new modifier. The receiver is unchanged.
func (p Patient) WithDemographics(update DemographicsUpdate, by domain.ClinicianID, now time.Time) (Patient, error) {
	next := p

	if update.GivenName != nil {
		v := strings.TrimSpace(*update.GivenName)
		if v == "" {
			return Patient{}, dErrors.New(dErrors.CodeValidation, "given name must not be blank")
		}
		next.GivenName = v
	}
	if update.FamilyName != nil {
		v := strings.TrimSpace(*update.FamilyName)
		if v == "" {
			return Patient{}, dErrors.New(dErrors.CodeValidation, "family name must not be blank")
		}
		next.FamilyName = v
	}
	if update.BirthDate != nil {
		v := strings.TrimSpace(*update.BirthDate)
		if v != "" {
			if _, err := time.Parse("2006-01-02", v); err != nil {
				return Patient{}, dErrors.New(dErrors.CodeValidation, "birth date must be YYYY-MM-DD")
			}
		}
		next.BirthDate = v
	}

	next.Version = p.Version + 1
	next.UpdatedAt = now
	next.LastModifiedBy = by
	return next, nil
}
