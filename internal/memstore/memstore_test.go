package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edufam/academics/internal/db"
	"edufam/academics/internal/model"
)

func TestWithTxDiscardsWorkOnError(t *testing.T) {
	ctx := context.Background()
	store := New()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx db.Gateway) error {
		_, err := tx.CreateEnrollment(ctx, model.Enrollment{StudentID: "s1", ClassID: "c1", IsActive: true})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, store.Enrollments())
}

func TestCreateEnrollmentRejectsActiveDuplicate(t *testing.T) {
	ctx := context.Background()
	store := New()
	e := model.Enrollment{StudentID: "s1", ClassID: "c1", AcademicYearID: "y1", TermID: "t1", IsActive: true}

	_, err := store.CreateEnrollment(ctx, e)
	require.NoError(t, err)
	_, err = store.CreateEnrollment(ctx, e)
	assert.ErrorIs(t, err, db.ErrConflict)
}

func TestMarkCurrentAcademicYearKeepsOneCurrent(t *testing.T) {
	ctx := context.Background()
	store := New()
	school := store.AddSchool(model.School{Name: "Hill"})
	old := store.AddAcademicYear(model.AcademicYear{SchoolID: school.ID, Name: "2024", IsCurrent: true})
	next := store.AddAcademicYear(model.AcademicYear{SchoolID: school.ID, Name: "2025"})

	require.NoError(t, store.MarkCurrentAcademicYear(ctx, school.ID, next.ID))

	current, err := store.GetCurrentAcademicYear(ctx, school.ID)
	require.NoError(t, err)
	assert.Equal(t, next.ID, current.ID)
	previous, err := store.GetAcademicYear(ctx, old.ID)
	require.NoError(t, err)
	assert.False(t, previous.IsCurrent)

	assert.ErrorIs(t, store.MarkCurrentAcademicYear(ctx, "other-school", next.ID), db.ErrNotFound)
}

func TestUpdateGradeStatusIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	store := New()
	grade := store.AddGrade(model.GradeRecord{Score: 40, MaxScore: 50})
	assert.Equal(t, 80.0, grade.Percentage)

	require.NoError(t, store.UpdateGradeStatus(ctx, grade.ID, model.GradeDraft, model.GradePendingApproval))
	assert.ErrorIs(t, store.UpdateGradeStatus(ctx, grade.ID, model.GradeDraft, model.GradePendingApproval), db.ErrConflict)
}
