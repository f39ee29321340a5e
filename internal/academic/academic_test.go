package academic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edufam/academics/internal/memstore"
	"edufam/academics/internal/model"
)

type fixture struct {
	store   *memstore.Store
	school  model.School
	year    model.AcademicYear
	term    model.AcademicTerm
	class   model.Class
	subject model.Subject
}

func curriculum(c model.CurriculumType) *model.CurriculumType { return &c }

func newFixture() fixture {
	store := memstore.New()
	school := store.AddSchool(model.School{Name: "Hillcrest"})
	year := store.AddAcademicYear(model.AcademicYear{SchoolID: school.ID, Name: "2025", IsCurrent: true})
	term := store.AddAcademicTerm(model.AcademicTerm{SchoolID: school.ID, AcademicYearID: year.ID, Name: "Term 1", IsCurrent: true})
	class := store.AddClass(model.Class{SchoolID: school.ID, Name: "Grade 4", CurriculumType: model.CurriculumCBC, IsActive: true})
	subject := store.AddSubject(model.Subject{SchoolID: school.ID, ClassID: class.ID, Name: "Maths"})
	return fixture{store: store, school: school, year: year, term: term, class: class, subject: subject}
}

func TestResolveFillsCurrentPeriod(t *testing.T) {
	f := newFixture()
	r := NewResolver(f.store)

	result, err := r.Resolve(context.Background(), model.AcademicContext{SchoolID: f.school.ID, ClassID: f.class.ID, SubjectID: f.subject.ID})
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Equal(t, f.year.ID, result.Context.AcademicYearID)
	assert.Equal(t, f.term.ID, result.Context.TermID)
	assert.Equal(t, model.CurriculumCBC, result.Context.CurriculumType)
}

func TestResolveRequiresSchool(t *testing.T) {
	result, err := NewResolver(memstore.New()).Resolve(context.Background(), model.AcademicContext{})
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, []string{"school id is required"}, result.Errors)
}

func TestResolveWithoutCurrentPeriodLeavesContextUnresolved(t *testing.T) {
	store := memstore.New()
	school := store.AddSchool(model.School{Name: "Newfield"})
	store.AddAcademicYear(model.AcademicYear{SchoolID: school.ID, Name: "2025"})

	in := model.AcademicContext{SchoolID: school.ID}
	result, err := NewResolver(store).Resolve(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, []string{"no current academic period set for this school"}, result.Errors)
	assert.Equal(t, in, result.Context)
}

func TestResolveReportsForeignAndMismatchedRows(t *testing.T) {
	f := newFixture()
	other := f.store.AddSchool(model.School{Name: "Elsewhere"})
	foreignYear := f.store.AddAcademicYear(model.AcademicYear{SchoolID: other.ID, Name: "2025"})
	otherYear := f.store.AddAcademicYear(model.AcademicYear{SchoolID: f.school.ID, Name: "2026"})
	foreignClass := f.store.AddClass(model.Class{SchoolID: other.ID, Name: "X", CurriculumType: model.CurriculumCBC})
	otherClass := f.store.AddClass(model.Class{SchoolID: f.school.ID, Name: "Grade 5", CurriculumType: model.CurriculumCBC})
	r := NewResolver(f.store)
	ctx := context.Background()

	result, err := r.Resolve(ctx, model.AcademicContext{SchoolID: f.school.ID, AcademicYearID: foreignYear.ID, TermID: "missing"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"invalid academic year / does not belong to school",
		"invalid term / does not belong to school",
	}, result.Errors)

	result, err = r.Resolve(ctx, model.AcademicContext{SchoolID: f.school.ID, AcademicYearID: otherYear.ID, TermID: f.term.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"term does not belong to the selected academic year"}, result.Errors)

	result, err = r.Resolve(ctx, model.AcademicContext{SchoolID: f.school.ID, ClassID: foreignClass.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"invalid class / does not belong to school"}, result.Errors)

	result, err = r.Resolve(ctx, model.AcademicContext{SchoolID: f.school.ID, ClassID: f.class.ID, CurriculumType: model.CurriculumIGCSE})
	require.NoError(t, err)
	assert.Equal(t, []string{"class curriculum type (CBC) does not match expected type (IGCSE)"}, result.Errors)

	result, err = r.Resolve(ctx, model.AcademicContext{SchoolID: f.school.ID, ClassID: otherClass.ID, SubjectID: f.subject.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"subject is not assigned to this class"}, result.Errors)

	result, err = r.Resolve(ctx, model.AcademicContext{SchoolID: f.school.ID, SubjectID: "missing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"subject not found / does not belong to school"}, result.Errors)
}

func TestCheckCurriculumClassIsAuthoritative(t *testing.T) {
	f := newFixture()
	year := f.store.AddAcademicYear(model.AcademicYear{SchoolID: f.school.ID, Name: "2024", CurriculumType: curriculum(model.CurriculumStandard)})
	subject := f.store.AddSubject(model.Subject{SchoolID: f.school.ID, ClassID: f.class.ID, Name: "Art", CurriculumType: curriculum(model.CurriculumCBC)})
	r := NewResolver(f.store)

	check, err := r.CheckCurriculum(context.Background(), model.AcademicContext{
		SchoolID:       f.school.ID,
		AcademicYearID: year.ID,
		ClassID:        f.class.ID,
		SubjectID:      subject.ID,
		CurriculumType: model.CurriculumIGCSE,
	})
	require.NoError(t, err)
	assert.False(t, check.IsConsistent)
	assert.Equal(t, model.CurriculumCBC, check.CurriculumType)
	assert.Equal(t, []string{
		"class curriculum type (CBC) does not match expected type (IGCSE)",
		"academic_year curriculum type (Standard) does not match class curriculum type (CBC)",
	}, check.Errors)
	assert.Equal(t, map[Level]model.CurriculumType{
		LevelContext:      model.CurriculumIGCSE,
		LevelAcademicYear: model.CurriculumStandard,
		LevelClass:        model.CurriculumCBC,
		LevelSubject:      model.CurriculumCBC,
	}, check.CurriculumTypes)
}

func TestCheckCurriculumConsistentAndMissingRows(t *testing.T) {
	f := newFixture()
	r := NewResolver(f.store)
	ctx := context.Background()

	check, err := r.CheckCurriculum(ctx, model.AcademicContext{SchoolID: f.school.ID, ClassID: f.class.ID, SubjectID: f.subject.ID})
	require.NoError(t, err)
	assert.True(t, check.IsConsistent)
	assert.Equal(t, model.CurriculumCBC, check.CurriculumType)

	check, err = r.CheckCurriculum(ctx, model.AcademicContext{SchoolID: f.school.ID, AcademicYearID: "nope", TermID: "nope", ClassID: "nope", SubjectID: "nope"})
	require.NoError(t, err)
	assert.False(t, check.IsConsistent)
	assert.Equal(t, []string{"academic year not found", "term not found", "class not found", "subject not found"}, check.Errors)
}

func TestCheckCurriculumWithoutClassUsesCallerType(t *testing.T) {
	f := newFixture()
	term := f.store.AddAcademicTerm(model.AcademicTerm{SchoolID: f.school.ID, AcademicYearID: f.year.ID, Name: "Term 2", CurriculumType: curriculum(model.CurriculumIGCSE)})

	check, err := NewResolver(f.store).CheckCurriculum(context.Background(), model.AcademicContext{
		SchoolID: f.school.ID, TermID: term.ID, CurriculumType: model.CurriculumStandard,
	})
	require.NoError(t, err)
	assert.Equal(t, model.CurriculumStandard, check.CurriculumType)
	assert.Equal(t, []string{"term curriculum type (IGCSE) does not match expected curriculum type (Standard)"}, check.Errors)
}

func TestSetCurrentPeriodMovesFlags(t *testing.T) {
	f := newFixture()
	nextYear := f.store.AddAcademicYear(model.AcademicYear{SchoolID: f.school.ID, Name: "2026"})
	nextTerm := f.store.AddAcademicTerm(model.AcademicTerm{SchoolID: f.school.ID, AcademicYearID: nextYear.ID, Name: "Term 1"})
	svc := NewPeriodService(f.store)
	ctx := context.Background()

	period, err := svc.SetCurrentPeriod(ctx, f.school.ID, nextYear.ID, nextTerm.ID)
	require.NoError(t, err)
	assert.True(t, period.Year.IsCurrent)

	current, err := NewResolver(f.store).CurrentPeriod(ctx, f.school.ID)
	require.NoError(t, err)
	assert.Equal(t, nextYear.ID, current.Year.ID)
	assert.Equal(t, nextTerm.ID, current.Term.ID)

	oldYear, err := f.store.GetAcademicYear(ctx, f.year.ID)
	require.NoError(t, err)
	assert.False(t, oldYear.IsCurrent)
	oldTerm, err := f.store.GetAcademicTerm(ctx, f.term.ID)
	require.NoError(t, err)
	assert.False(t, oldTerm.IsCurrent)
}

func TestSetCurrentPeriodRejectsMismatchWithoutWriting(t *testing.T) {
	f := newFixture()
	nextYear := f.store.AddAcademicYear(model.AcademicYear{SchoolID: f.school.ID, Name: "2026"})
	svc := NewPeriodService(f.store)
	ctx := context.Background()

	_, err := svc.SetCurrentPeriod(ctx, f.school.ID, nextYear.ID, f.term.ID)
	assert.ErrorIs(t, err, ErrTermYearMismatch)
	_, err = svc.SetCurrentPeriod(ctx, "other", f.year.ID, f.term.ID)
	assert.ErrorIs(t, err, ErrInvalidYear)

	current, err := NewResolver(f.store).CurrentPeriod(ctx, f.school.ID)
	require.NoError(t, err)
	assert.Equal(t, f.year.ID, current.Year.ID)
}
