package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"edufam/academics/internal/db"
	"edufam/academics/internal/memstore"
	"edufam/academics/internal/model"
	"edufam/academics/internal/relations"
)

type fixture struct {
	store   *memstore.Store
	svc     *Service
	school  model.School
	year    model.AcademicYear
	term    model.AcademicTerm
	from    model.Class
	to      model.Class
	subject model.Subject
	teacher model.Profile
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	store := memstore.New()
	school := store.AddSchool(model.School{Name: "Hillcrest"})
	year := store.AddAcademicYear(model.AcademicYear{SchoolID: school.ID, Name: "2025", IsCurrent: true})
	from := store.AddClass(model.Class{SchoolID: school.ID, Name: "Grade 4", CurriculumType: model.CurriculumCBC, IsActive: true})
	opts = append([]Option{WithClock(func() time.Time { return time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC) })}, opts...)
	return fixture{
		store:   store,
		svc:     NewService(store, relations.NewValidator(store), zap.NewNop(), opts...),
		school:  school,
		year:    year,
		term:    store.AddAcademicTerm(model.AcademicTerm{SchoolID: school.ID, AcademicYearID: year.ID, Name: "Term 1", IsCurrent: true}),
		from:    from,
		to:      store.AddClass(model.Class{SchoolID: school.ID, Name: "Grade 5", CurriculumType: model.CurriculumCBC, IsActive: true}),
		subject: store.AddSubject(model.Subject{SchoolID: school.ID, ClassID: from.ID, Name: "Maths"}),
		teacher: store.AddProfile(model.Profile{SchoolID: school.ID, Role: model.RoleTeacher}),
	}
}

func (f fixture) student(t *testing.T) model.Student {
	t.Helper()
	return f.store.AddStudent(model.Student{SchoolID: f.school.ID, FullName: "Student", IsActive: true})
}

func activeIn(store *memstore.Store, classID string) []model.Enrollment {
	var out []model.Enrollment
	for _, e := range store.Enrollments() {
		if e.IsActive && e.ClassID == classID {
			out = append(out, e)
		}
	}
	return out
}

func TestEnrollTwiceKeepsOneActiveEnrollment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := EnrollRequest{SchoolID: f.school.ID, StudentID: f.student(t).ID, ClassID: f.from.ID, AcademicYearID: f.year.ID, TermID: f.term.ID}

	enrollment, err := f.svc.Enroll(ctx, req)
	require.NoError(t, err)
	assert.True(t, enrollment.IsActive)
	assert.Equal(t, time.Date(2025, 1, 6, 8, 0, 0, 0, time.UTC), enrollment.EnrolledAt)

	_, err = f.svc.Enroll(ctx, req)
	var domain *Error
	require.ErrorAs(t, err, &domain)
	assert.Equal(t, ErrAlreadyEnrolled, domain.Code)
	assert.Equal(t, "already enrolled", domain.Message)
	assert.Len(t, activeIn(f.store, f.from.ID), 1)
}

func TestEnrollRejectsBrokenRelationships(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Enroll(context.Background(), EnrollRequest{SchoolID: f.school.ID, StudentID: "ghost", ClassID: f.from.ID, AcademicYearID: f.year.ID, TermID: "ghost"})
	var domain *Error
	require.ErrorAs(t, err, &domain)
	assert.Equal(t, ErrInvalidRelationship, domain.Code)
	assert.Equal(t, []string{"student not found", "term not found"}, domain.Details)
	assert.Empty(t, f.store.Enrollments())

	_, err = f.svc.Enroll(context.Background(), EnrollRequest{SchoolID: f.school.ID, ClassID: f.from.ID})
	assert.Equal(t, ErrInvalidRequest, Code(err))
}

func TestAssignSubjectIsIdempotentPerPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.store.AddProfile(model.Profile{SchoolID: f.school.ID, Role: model.RoleTeacher})
	req := AssignRequest{SchoolID: f.school.ID, SubjectID: f.subject.ID, ClassID: f.from.ID, TeacherID: f.teacher.UserID, AcademicYearID: f.year.ID, TermID: f.term.ID}

	assignment, err := f.svc.AssignSubject(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, f.teacher.UserID, assignment.TeacherID)

	req.TeacherID = other.UserID
	_, err = f.svc.AssignSubject(ctx, req)
	assert.Equal(t, ErrAlreadyAssigned, Code(err))
	assert.Len(t, f.store.Assignments(), 1)
}

func TestAssignSubjectRequiresTeacherRole(t *testing.T) {
	f := newFixture(t)
	principal := f.store.AddProfile(model.Profile{SchoolID: f.school.ID, Role: model.RolePrincipal})

	_, err := f.svc.AssignSubject(context.Background(), AssignRequest{
		SchoolID: f.school.ID, SubjectID: f.subject.ID, ClassID: f.from.ID, TeacherID: principal.UserID, AcademicYearID: f.year.ID, TermID: f.term.ID,
	})
	var domain *Error
	require.ErrorAs(t, err, &domain)
	assert.Equal(t, []string{"user is not a teacher"}, domain.Details)
}

func TestPromoteMovesWholeCohort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.store.AddEnrollment(model.Enrollment{StudentID: f.student(t).ID, ClassID: f.from.ID, AcademicYearID: f.year.ID, TermID: f.term.ID, IsActive: true})
	}

	result, err := f.svc.Promote(ctx, PromoteRequest{SchoolID: f.school.ID, FromClassID: f.from.ID, ToClassID: f.to.ID, AcademicYearID: f.year.ID, TermID: f.term.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Promoted)
	assert.Len(t, activeIn(f.store, f.to.ID), 3)
	assert.Empty(t, activeIn(f.store, f.from.ID))

	for _, e := range f.store.Enrollments() {
		if e.ClassID == f.from.ID {
			require.NotNil(t, e.DeactivatedAt)
		}
	}
}

func TestPromoteSelectedStudents(t *testing.T) {
	f := newFixture(t)
	moving := f.student(t)
	staying := f.student(t)
	for _, s := range []model.Student{moving, staying} {
		f.store.AddEnrollment(model.Enrollment{StudentID: s.ID, ClassID: f.from.ID, AcademicYearID: f.year.ID, TermID: f.term.ID, IsActive: true})
	}

	result, err := f.svc.Promote(context.Background(), PromoteRequest{
		SchoolID: f.school.ID, FromClassID: f.from.ID, ToClassID: f.to.ID, AcademicYearID: f.year.ID, TermID: f.term.ID, StudentIDs: []string{moving.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Promoted)
	remaining := activeIn(f.store, f.from.ID)
	require.Len(t, remaining, 1)
	assert.Equal(t, staying.ID, remaining[0].StudentID)
}

func TestPromoteRollsBackWhenTargetInsertFails(t *testing.T) {
	f := newFixture(t)
	clash := f.student(t)
	f.store.AddEnrollment(model.Enrollment{StudentID: f.student(t).ID, ClassID: f.from.ID, AcademicYearID: f.year.ID, TermID: f.term.ID, IsActive: true})
	f.store.AddEnrollment(model.Enrollment{StudentID: clash.ID, ClassID: f.from.ID, AcademicYearID: f.year.ID, TermID: f.term.ID, IsActive: true})
	f.store.AddEnrollment(model.Enrollment{StudentID: clash.ID, ClassID: f.to.ID, AcademicYearID: f.year.ID, TermID: f.term.ID, IsActive: true})

	_, err := f.svc.Promote(context.Background(), PromoteRequest{SchoolID: f.school.ID, FromClassID: f.from.ID, ToClassID: f.to.ID, AcademicYearID: f.year.ID, TermID: f.term.ID})
	assert.Equal(t, ErrAlreadyEnrolled, Code(err))
	assert.Len(t, activeIn(f.store, f.from.ID), 2)
	assert.Len(t, activeIn(f.store, f.to.ID), 1)
}

func TestPromoteDomainErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Promote(ctx, PromoteRequest{SchoolID: f.school.ID, FromClassID: f.from.ID, ToClassID: f.from.ID, AcademicYearID: f.year.ID, TermID: f.term.ID})
	assert.Equal(t, ErrSameClass, Code(err))
	assert.EqualError(t, err, "source and target class must differ")

	_, err = f.svc.Promote(ctx, PromoteRequest{SchoolID: f.school.ID, FromClassID: f.from.ID, ToClassID: f.to.ID, AcademicYearID: f.year.ID, TermID: f.term.ID})
	assert.Equal(t, ErrNoStudents, Code(err))
	assert.EqualError(t, err, "no students found to promote")

	_, err = f.svc.Promote(ctx, PromoteRequest{SchoolID: f.school.ID, FromClassID: f.from.ID, ToClassID: "ghost", AcademicYearID: f.year.ID, TermID: f.term.ID})
	assert.Equal(t, ErrInvalidRelationship, Code(err))
}

func TestPromoteCountsEachStudentOnce(t *testing.T) {
	f := newFixture(t)
	student := f.student(t)
	second := f.store.AddAcademicTerm(model.AcademicTerm{SchoolID: f.school.ID, AcademicYearID: f.year.ID, Name: "Term 2"})
	f.store.AddEnrollment(model.Enrollment{StudentID: student.ID, ClassID: f.from.ID, AcademicYearID: f.year.ID, TermID: f.term.ID, IsActive: true})
	f.store.AddEnrollment(model.Enrollment{StudentID: student.ID, ClassID: f.from.ID, AcademicYearID: f.year.ID, TermID: second.ID, IsActive: true})

	result, err := f.svc.Promote(context.Background(), PromoteRequest{
		SchoolID: f.school.ID, FromClassID: f.from.ID, ToClassID: f.to.ID, AcademicYearID: f.year.ID, TermID: second.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Promoted)
	require.Len(t, result.Enrollments, 1)
	assert.Equal(t, student.ID, result.Enrollments[0].StudentID)
	assert.Len(t, activeIn(f.store, f.to.ID), 1)
	assert.Empty(t, activeIn(f.store, f.from.ID))
}

func TestWorkflowRejectsRowsFromAnotherSchool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := f.store.AddSchool(model.School{Name: "Riverside"})
	otherYear := f.store.AddAcademicYear(model.AcademicYear{SchoolID: other.ID, Name: "2025"})
	otherTerm := f.store.AddAcademicTerm(model.AcademicTerm{SchoolID: other.ID, AcademicYearID: otherYear.ID, Name: "Term 1"})
	otherClass := f.store.AddClass(model.Class{SchoolID: other.ID, Name: "Grade 4", CurriculumType: model.CurriculumCBC, IsActive: true})
	otherStudent := f.store.AddStudent(model.Student{SchoolID: other.ID, FullName: "Visitor", IsActive: true})
	otherTeacher := f.store.AddProfile(model.Profile{SchoolID: other.ID, Role: model.RoleTeacher})

	_, err := f.svc.Enroll(ctx, EnrollRequest{
		SchoolID: f.school.ID, StudentID: otherStudent.ID, ClassID: f.from.ID, AcademicYearID: otherYear.ID, TermID: otherTerm.ID,
	})
	var domain *Error
	require.ErrorAs(t, err, &domain)
	assert.Equal(t, ErrInvalidRelationship, domain.Code)
	assert.Equal(t, []string{"student not found", "academic year not found", "term not found"}, domain.Details)

	_, err = f.svc.Enroll(ctx, EnrollRequest{
		SchoolID: f.school.ID, StudentID: f.student(t).ID, ClassID: otherClass.ID, AcademicYearID: f.year.ID, TermID: f.term.ID,
	})
	require.ErrorAs(t, err, &domain)
	assert.Equal(t, []string{"class not found"}, domain.Details)

	_, err = f.svc.AssignSubject(ctx, AssignRequest{
		SchoolID: f.school.ID, SubjectID: f.subject.ID, ClassID: f.from.ID, TeacherID: otherTeacher.UserID,
		AcademicYearID: f.year.ID, TermID: f.term.ID,
	})
	require.ErrorAs(t, err, &domain)
	assert.Equal(t, []string{"teacher not found"}, domain.Details)

	f.store.AddEnrollment(model.Enrollment{StudentID: otherStudent.ID, ClassID: otherClass.ID, AcademicYearID: otherYear.ID, TermID: otherTerm.ID, IsActive: true})
	_, err = f.svc.Promote(ctx, PromoteRequest{
		SchoolID: f.school.ID, FromClassID: otherClass.ID, ToClassID: f.to.ID, AcademicYearID: f.year.ID, TermID: f.term.ID,
	})
	assert.Equal(t, ErrInvalidRelationship, Code(err))
	assert.Len(t, activeIn(f.store, otherClass.ID), 1)

	_, err = f.svc.Enroll(ctx, EnrollRequest{StudentID: f.student(t).ID, ClassID: f.from.ID, AcademicYearID: f.year.ID, TermID: f.term.ID})
	assert.Equal(t, ErrInvalidRequest, Code(err))
	assert.Len(t, f.store.Enrollments(), 1)
	assert.Empty(t, f.store.Assignments())
}

func TestEnrollRejectsTermOfAnotherYear(t *testing.T) {
	f := newFixture(t)
	next := f.store.AddAcademicYear(model.AcademicYear{SchoolID: f.school.ID, Name: "2026"})

	_, err := f.svc.Enroll(context.Background(), EnrollRequest{
		SchoolID: f.school.ID, StudentID: f.student(t).ID, ClassID: f.from.ID, AcademicYearID: next.ID, TermID: f.term.ID,
	})
	var domain *Error
	require.ErrorAs(t, err, &domain)
	assert.Equal(t, []string{"term does not belong to this academic year"}, domain.Details)
}

type countingInvalidator struct {
	schools []string
}

func (c *countingInvalidator) Invalidate(_ context.Context, schoolID string) error {
	c.schools = append(c.schools, schoolID)
	return nil
}

func TestTransitionGradeStatus(t *testing.T) {
	cache := &countingInvalidator{}
	f := newFixture(t, WithInvalidator(cache))
	ctx := context.Background()
	grade := f.store.AddGrade(model.GradeRecord{SchoolID: f.school.ID, Score: 30, MaxScore: 40})

	steps := []model.GradeStatus{model.GradePendingApproval, model.GradeRejected, model.GradeDraft, model.GradePendingApproval, model.GradeApproved, model.GradeReleased}
	for _, to := range steps {
		updated, err := f.svc.TransitionGradeStatus(ctx, grade.ID, to)
		require.NoError(t, err, "transition to %s", to)
		assert.Equal(t, to, updated.Status)
	}
	assert.Len(t, cache.schools, len(steps))

	_, err := f.svc.TransitionGradeStatus(ctx, grade.ID, model.GradeDraft)
	assert.EqualError(t, err, "invalid status transition from released to draft")
}

func TestTransitionGradeStatusRejectsSkips(t *testing.T) {
	f := newFixture(t)
	grade := f.store.AddGrade(model.GradeRecord{SchoolID: f.school.ID, Score: 30, MaxScore: 40})

	_, err := f.svc.TransitionGradeStatus(context.Background(), grade.ID, model.GradeReleased)
	assert.Equal(t, ErrInvalidTransition, Code(err))
	assert.EqualError(t, err, "invalid status transition from draft to released")

	_, err = f.svc.TransitionGradeStatus(context.Background(), "ghost", model.GradeApproved)
	assert.Equal(t, ErrGradeNotFound, Code(err))
}

type failingStore struct {
	db.TxGateway
}

func (failingStore) GetGradeRecord(context.Context, string) (model.GradeRecord, error) {
	return model.GradeRecord{}, errors.New("connection reset")
}

func TestTransitionGradeStatusWrapsStoreErrors(t *testing.T) {
	svc := NewService(failingStore{TxGateway: memstore.New()}, nil, nil)

	_, err := svc.TransitionGradeStatus(context.Background(), "g1", model.GradeApproved)
	require.Error(t, err)
	assert.Empty(t, Code(err))
	assert.Contains(t, err.Error(), "get grade: connection reset")
}
