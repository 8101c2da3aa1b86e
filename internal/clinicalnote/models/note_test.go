package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicore/pkg/domain"
	dErrors "clinicore/pkg/domain-errors"
)

func draftNote(t *testing.T) ClinicalNote {
	t.Helper()
	note, err := NewClinicalNote(
		domain.NewNoteID(),
		domain.NewTenantID(),
		domain.NewEncounterID(),
		"initial assessment",
		domain.NewClinicianID(),
		time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return note
}

func TestNewClinicalNote(t *testing.T) {
	t.Run("starts as draft", func(t *testing.T) {
		note := draftNote(t)
		assert.Equal(t, StatusDraft, note.Status)
		assert.Equal(t, 1, note.Version)
		assert.True(t, note.FinalizedAt.IsZero())
	})

	t.Run("content is required", func(t *testing.T) {
		_, err := NewClinicalNote(domain.NewNoteID(), domain.NewTenantID(), domain.NewEncounterID(), "   ", domain.NewClinicianID(), time.Now())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeContentRequired))
	})

	t.Run("encounter is required", func(t *testing.T) {
		_, err := NewClinicalNote(domain.NewNoteID(), domain.NewTenantID(), domain.EncounterID{}, "text", domain.NewClinicianID(), time.Now())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestWithContent(t *testing.T) {
	note := draftNote(t)
	editor := domain.NewClinicianID()
	later := note.UpdatedAt.Add(time.Hour)

	t.Run("amends a draft", func(t *testing.T) {
		amended, err := note.WithContent("revised assessment", editor, later)
		require.NoError(t, err)
		assert.Equal(t, "revised assessment", amended.Content)
		assert.Equal(t, note.Version+1, amended.Version)
		assert.Equal(t, editor, amended.LastModifiedBy)
		assert.Equal(t, "initial assessment", note.Content, "receiver untouched")
	})

	t.Run("empty replacement is CONTENT_REQUIRED", func(t *testing.T) {
		_, err := note.WithContent("", editor, later)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeContentRequired))
	})

	t.Run("finalized note cannot be amended", func(t *testing.T) {
		finalized, err := note.Finalized(editor, later)
		require.NoError(t, err)

		_, err = finalized.WithContent("tamper", editor, later.Add(time.Hour))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyFinalized))
	})
}

func TestFinalized(t *testing.T) {
	note := draftNote(t)
	editor := domain.NewClinicianID()
	later := note.UpdatedAt.Add(time.Hour)

	finalized, err := note.Finalized(editor, later)
	require.NoError(t, err)
	assert.Equal(t, StatusFinalized, finalized.Status)
	assert.Equal(t, later, finalized.FinalizedAt)
	assert.Equal(t, note.Version+1, finalized.Version)

	t.Run("second finalize", func(t *testing.T) {
		_, err := finalized.Finalized(editor, later.Add(time.Hour))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyFinalized))
		assert.Equal(t, later, finalized.FinalizedAt, "record identical after the failed call")
	})
}
