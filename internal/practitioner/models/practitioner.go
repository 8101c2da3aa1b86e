package models

import (
	"strings"
	"time"

	"clinicore/pkg/domain"
	dErrors "clinicore/pkg/domain-errors"
)

// Practitioner is the tenant-scoped clinician registry record. License
// number is the natural key and is unique per tenant; like a patient MRN it
// never changes after construction.
type Practitioner struct {
	ID             domain.PractitionerID
	TenantID       domain.TenantID
	LicenseNumber  string
	GivenName      string
	FamilyName     string
	Specialty      string // optional
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastModifiedBy domain.ClinicianID
}

// NewPractitioner validates required fields and constructs version 1 of a
// record. CreatedAt equals UpdatedAt on a fresh record.
func NewPractitioner(id domain.PractitionerID, tenantID domain.TenantID, licenseNumber, givenName, familyName, specialty string, by domain.ClinicianID, now time.Time) (Practitioner, error) {
	licenseNumber = strings.TrimSpace(licenseNumber)
	givenName = strings.TrimSpace(givenName)
	familyName = strings.TrimSpace(familyName)
	specialty = strings.TrimSpace(specialty)

	if licenseNumber == "" {
		return Practitioner{}, dErrors.New(dErrors.CodeValidation, "license number is required")
	}
	if givenName == "" {
		return Practitioner{}, dErrors.New(dErrors.CodeValidation, "given name is required")
	}
	if familyName == "" {
		return Practitioner{}, dErrors.New(dErrors.CodeValidation, "family name is required")
	}

	return Practitioner{
		ID:             id,
		TenantID:       tenantID,
		LicenseNumber:  licenseNumber,
		GivenName:      givenName,
		FamilyName:     familyName,
		Specialty:      specialty,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastModifiedBy: by,
	}, nil
}

// ProfileUpdate carries a partial profile change. Nil fields are left as
// they are; the license number cannot change through an update.
type ProfileUpdate struct {
	GivenName  *string
	FamilyName *string
	Specialty  *string
}

// WithProfile merges the update onto a copy of the record, bumping the
// version and stamping the new modifier. The receiver is unchanged.
func (p Practitioner) WithProfile(update ProfileUpdate, by domain.ClinicianID, now time.Time) (Practitioner, error) {
	next := p

	if update.GivenName != nil {
		v := strings.TrimSpace(*update.GivenName)
		if v == "" {
			return Practitioner{}, dErrors.New(dErrors.CodeValidation, "given name must not be blank")
		}
		next.GivenName = v
	}
	if update.FamilyName != nil {
		v := strings.TrimSpace(*update.FamilyName)
		if v == "" {
			return Practitioner{}, dErrors.New(dErrors.CodeValidation, "family name must not be blank")
		}
		next.FamilyName = v
	}
	if update.Specialty != nil {
		next.Specialty = strings.TrimSpace(*update.Specialty)
	}

	next.Version = p.Version + 1
	next.UpdatedAt = now
	next.LastModifiedBy = by
	return next, nil
}
