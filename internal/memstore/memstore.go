// Package memstore is an in-memory db.TxGateway used by tests and local runs without PostgreSQL.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"edufam/academics/internal/db"
	"edufam/academics/internal/model"
)

var _ db.TxGateway = (*Store)(nil)

// Store guards a single data snapshot. WithTx runs against a copy and swaps it in on success,
// so a failed callback leaves no trace.
type Store struct {
	mu   sync.Mutex
	data *data
}

func New() *Store {
	return &Store{data: newData()}
}

func (s *Store) WithTx(ctx context.Context, fn func(db.Gateway) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.data.clone()
	if err := fn(work); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func locked[T any](s *Store, fn func(*data) (T, error)) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *Store) GetSchool(ctx context.Context, id string) (model.School, error) {
	return locked(s, func(d *data) (model.School, error) { return d.GetSchool(ctx, id) })
}

func (s *Store) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	return locked(s, func(d *data) (model.Profile, error) { return d.GetProfile(ctx, userID) })
}

func (s *Store) GetStudent(ctx context.Context, id string) (model.Student, error) {
	return locked(s, func(d *data) (model.Student, error) { return d.GetStudent(ctx, id) })
}

func (s *Store) GetAcademicYear(ctx context.Context, id string) (model.AcademicYear, error) {
	return locked(s, func(d *data) (model.AcademicYear, error) { return d.GetAcademicYear(ctx, id) })
}

func (s *Store) GetCurrentAcademicYear(ctx context.Context, schoolID string) (model.AcademicYear, error) {
	return locked(s, func(d *data) (model.AcademicYear, error) { return d.GetCurrentAcademicYear(ctx, schoolID) })
}

func (s *Store) GetAcademicTerm(ctx context.Context, id string) (model.AcademicTerm, error) {
	return locked(s, func(d *data) (model.AcademicTerm, error) { return d.GetAcademicTerm(ctx, id) })
}

func (s *Store) GetCurrentAcademicTerm(ctx context.Context, schoolID string) (model.AcademicTerm, error) {
	return locked(s, func(d *data) (model.AcademicTerm, error) { return d.GetCurrentAcademicTerm(ctx, schoolID) })
}

func (s *Store) MarkCurrentAcademicYear(ctx context.Context, schoolID, yearID string) error {
	_, err := locked(s, func(d *data) (struct{}, error) {
		return struct{}{}, d.MarkCurrentAcademicYear(ctx, schoolID, yearID)
	})
	return err
}

func (s *Store) MarkCurrentAcademicTerm(ctx context.Context, schoolID, termID string) error {
	_, err := locked(s, func(d *data) (struct{}, error) {
		return struct{}{}, d.MarkCurrentAcademicTerm(ctx, schoolID, termID)
	})
	return err
}

func (s *Store) GetClass(ctx context.Context, id string) (model.Class, error) {
	return locked(s, func(d *data) (model.Class, error) { return d.GetClass(ctx, id) })
}

func (s *Store) ListClassesByIDs(ctx context.Context, ids []string) ([]model.Class, error) {
	return locked(s, func(d *data) ([]model.Class, error) { return d.ListClassesByIDs(ctx, ids) })
}

func (s *Store) GetSubject(ctx context.Context, id string) (model.Subject, error) {
	return locked(s, func(d *data) (model.Subject, error) { return d.GetSubject(ctx, id) })
}

func (s *Store) HasActiveTeacherAssignment(ctx context.Context, key db.AssignmentKey) (bool, error) {
	return locked(s, func(d *data) (bool, error) { return d.HasActiveTeacherAssignment(ctx, key) })
}

func (s *Store) FindActiveSubjectAssignment(ctx context.Context, subjectID, classID, yearID, termID string) (model.TeacherAssignment, error) {
	return locked(s, func(d *data) (model.TeacherAssignment, error) {
		return d.FindActiveSubjectAssignment(ctx, subjectID, classID, yearID, termID)
	})
}

func (s *Store) CreateTeacherAssignment(ctx context.Context, a model.TeacherAssignment) (model.TeacherAssignment, error) {
	return locked(s, func(d *data) (model.TeacherAssignment, error) { return d.CreateTeacherAssignment(ctx, a) })
}

func (s *Store) FindActiveEnrollment(ctx context.Context, key db.EnrollmentKey) (model.Enrollment, error) {
	return locked(s, func(d *data) (model.Enrollment, error) { return d.FindActiveEnrollment(ctx, key) })
}

func (s *Store) CreateEnrollment(ctx context.Context, e model.Enrollment) (model.Enrollment, error) {
	return locked(s, func(d *data) (model.Enrollment, error) { return d.CreateEnrollment(ctx, e) })
}

func (s *Store) LockActiveEnrollments(ctx context.Context, classID string, studentIDs []string) ([]model.Enrollment, error) {
	return locked(s, func(d *data) ([]model.Enrollment, error) { return d.LockActiveEnrollments(ctx, classID, studentIDs) })
}

func (s *Store) DeactivateEnrollments(ctx context.Context, ids []string, at time.Time) error {
	_, err := locked(s, func(d *data) (struct{}, error) {
		return struct{}{}, d.DeactivateEnrollments(ctx, ids, at)
	})
	return err
}

func (s *Store) ListGradeRecords(ctx context.Context, query model.GradeQuery) ([]model.GradeRecord, error) {
	return locked(s, func(d *data) ([]model.GradeRecord, error) { return d.ListGradeRecords(ctx, query) })
}

func (s *Store) GetGradeRecord(ctx context.Context, id string) (model.GradeRecord, error) {
	return locked(s, func(d *data) (model.GradeRecord, error) { return d.GetGradeRecord(ctx, id) })
}

func (s *Store) UpdateGradeStatus(ctx context.Context, id string, from, to model.GradeStatus) error {
	_, err := locked(s, func(d *data) (struct{}, error) {
		return struct{}{}, d.UpdateGradeStatus(ctx, id, from, to)
	})
	return err
}

func (s *Store) ListAttendanceRecords(ctx context.Context, query model.AttendanceQuery) ([]model.AttendanceRecord, error) {
	return locked(s, func(d *data) ([]model.AttendanceRecord, error) { return d.ListAttendanceRecords(ctx, query) })
}

// Enrollments returns every enrollment row, active or not, in insertion order.
func (s *Store) Enrollments() []model.Enrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Enrollment(nil), s.data.enrollments...)
}

func (s *Store) Assignments() []model.TeacherAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.TeacherAssignment(nil), s.data.assignments...)
}

type data struct {
	schools     map[string]model.School
	profiles    map[string]model.Profile
	students    map[string]model.Student
	years       map[string]model.AcademicYear
	terms       map[string]model.AcademicTerm
	classes     map[string]model.Class
	subjects    map[string]model.Subject
	assignments []model.TeacherAssignment
	enrollments []model.Enrollment
	grades      []model.GradeRecord
	attendance  []model.AttendanceRecord
}

func newData() *data {
	return &data{
		schools:  map[string]model.School{},
		profiles: map[string]model.Profile{},
		students: map[string]model.Student{},
		years:    map[string]model.AcademicYear{},
		terms:    map[string]model.AcademicTerm{},
		classes:  map[string]model.Class{},
		subjects: map[string]model.Subject{},
	}
}

func (d *data) clone() *data {
	out := newData()
	for k, v := range d.schools {
		out.schools[k] = v
	}
	for k, v := range d.profiles {
		out.profiles[k] = v
	}
	for k, v := range d.students {
		out.students[k] = v
	}
	for k, v := range d.years {
		out.years[k] = v
	}
	for k, v := range d.terms {
		out.terms[k] = v
	}
	for k, v := range d.classes {
		out.classes[k] = v
	}
	for k, v := range d.subjects {
		out.subjects[k] = v
	}
	out.assignments = append(out.assignments, d.assignments...)
	out.enrollments = append(out.enrollments, d.enrollments...)
	out.grades = append(out.grades, d.grades...)
	out.attendance = append(out.attendance, d.attendance...)
	return out
}

func lookup[T any](m map[string]T, id string) (T, error) {
	v, ok := m[id]
	if !ok {
		var zero T
		return zero, db.ErrNotFound
	}
	return v, nil
}

func (d *data) GetSchool(_ context.Context, id string) (model.School, error) {
	return lookup(d.schools, id)
}

func (d *data) GetProfile(_ context.Context, userID string) (model.Profile, error) {
	return lookup(d.profiles, userID)
}

func (d *data) GetStudent(_ context.Context, id string) (model.Student, error) {
	return lookup(d.students, id)
}

func (d *data) GetAcademicYear(_ context.Context, id string) (model.AcademicYear, error) {
	return lookup(d.years, id)
}

func (d *data) GetCurrentAcademicYear(_ context.Context, schoolID string) (model.AcademicYear, error) {
	for _, year := range d.years {
		if year.SchoolID == schoolID && year.IsCurrent {
			return year, nil
		}
	}
	return model.AcademicYear{}, db.ErrNotFound
}

func (d *data) GetAcademicTerm(_ context.Context, id string) (model.AcademicTerm, error) {
	return lookup(d.terms, id)
}

func (d *data) GetCurrentAcademicTerm(_ context.Context, schoolID string) (model.AcademicTerm, error) {
	for _, term := range d.terms {
		if term.SchoolID == schoolID && term.IsCurrent {
			return term, nil
		}
	}
	return model.AcademicTerm{}, db.ErrNotFound
}

func (d *data) MarkCurrentAcademicYear(_ context.Context, schoolID, yearID string) error {
	target, ok := d.years[yearID]
	if !ok || target.SchoolID != schoolID {
		return db.ErrNotFound
	}
	for id, year := range d.years {
		if year.SchoolID == schoolID {
			year.IsCurrent = id == yearID
			d.years[id] = year
		}
	}
	return nil
}

func (d *data) MarkCurrentAcademicTerm(_ context.Context, schoolID, termID string) error {
	target, ok := d.terms[termID]
	if !ok || target.SchoolID != schoolID {
		return db.ErrNotFound
	}
	for id, term := range d.terms {
		if term.SchoolID == schoolID {
			term.IsCurrent = id == termID
			d.terms[id] = term
		}
	}
	return nil
}

func (d *data) GetClass(_ context.Context, id string) (model.Class, error) {
	return lookup(d.classes, id)
}

func (d *data) ListClassesByIDs(_ context.Context, ids []string) ([]model.Class, error) {
	out := make([]model.Class, 0, len(ids))
	for _, id := range ids {
		if class, ok := d.classes[id]; ok {
			out = append(out, class)
		}
	}
	return out, nil
}

func (d *data) GetSubject(_ context.Context, id string) (model.Subject, error) {
	return lookup(d.subjects, id)
}

func (d *data) HasActiveTeacherAssignment(_ context.Context, key db.AssignmentKey) (bool, error) {
	for _, a := range d.assignments {
		if a.IsActive && a.TeacherID == key.TeacherID && a.ClassID == key.ClassID && a.SubjectID == key.SubjectID &&
			a.AcademicYearID == key.AcademicYearID && a.TermID == key.TermID {
			return true, nil
		}
	}
	return false, nil
}

func (d *data) FindActiveSubjectAssignment(_ context.Context, subjectID, classID, yearID, termID string) (model.TeacherAssignment, error) {
	for _, a := range d.assignments {
		if a.IsActive && a.SubjectID == subjectID && a.ClassID == classID && a.AcademicYearID == yearID && a.TermID == termID {
			return a, nil
		}
	}
	return model.TeacherAssignment{}, db.ErrNotFound
}

func (d *data) CreateTeacherAssignment(ctx context.Context, a model.TeacherAssignment) (model.TeacherAssignment, error) {
	if a.IsActive {
		if _, err := d.FindActiveSubjectAssignment(ctx, a.SubjectID, a.ClassID, a.AcademicYearID, a.TermID); err == nil {
			return model.TeacherAssignment{}, db.ErrConflict
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	d.assignments = append(d.assignments, a)
	return a, nil
}

func (d *data) FindActiveEnrollment(_ context.Context, key db.EnrollmentKey) (model.Enrollment, error) {
	for _, e := range d.enrollments {
		if e.IsActive && e.StudentID == key.StudentID && e.ClassID == key.ClassID &&
			e.AcademicYearID == key.AcademicYearID && e.TermID == key.TermID {
			return e, nil
		}
	}
	return model.Enrollment{}, db.ErrNotFound
}

func (d *data) CreateEnrollment(ctx context.Context, e model.Enrollment) (model.Enrollment, error) {
	if e.IsActive {
		key := db.EnrollmentKey{StudentID: e.StudentID, ClassID: e.ClassID, AcademicYearID: e.AcademicYearID, TermID: e.TermID}
		if _, err := d.FindActiveEnrollment(ctx, key); err == nil {
			return model.Enrollment{}, db.ErrConflict
		}
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	d.enrollments = append(d.enrollments, e)
	return e, nil
}

func (d *data) LockActiveEnrollments(_ context.Context, classID string, studentIDs []string) ([]model.Enrollment, error) {
	wanted := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = true
	}
	var out []model.Enrollment
	for _, e := range d.enrollments {
		if !e.IsActive || e.ClassID != classID {
			continue
		}
		if len(wanted) > 0 && !wanted[e.StudentID] {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (d *data) DeactivateEnrollments(_ context.Context, ids []string, at time.Time) error {
	targets := make(map[string]bool, len(ids))
	for _, id := range ids {
		targets[id] = true
	}
	at = at.UTC()
	for i, e := range d.enrollments {
		if e.IsActive && targets[e.ID] {
			e.IsActive = false
			e.DeactivatedAt = &at
			d.enrollments[i] = e
		}
	}
	return nil
}

func matches(filter, value string) bool {
	return filter == "" || filter == value
}

func (d *data) ListGradeRecords(_ context.Context, q model.GradeQuery) ([]model.GradeRecord, error) {
	var out []model.GradeRecord
	for _, g := range d.grades {
		if matches(q.SchoolID, g.SchoolID) && matches(q.AcademicYear, g.AcademicYear) && matches(q.Term, g.Term) &&
			matches(q.ClassID, g.ClassID) && matches(q.SubjectID, g.SubjectID) && matches(q.StudentID, g.StudentID) {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (d *data) GetGradeRecord(_ context.Context, id string) (model.GradeRecord, error) {
	for _, g := range d.grades {
		if g.ID == id {
			return g, nil
		}
	}
	return model.GradeRecord{}, db.ErrNotFound
}

func (d *data) UpdateGradeStatus(_ context.Context, id string, from, to model.GradeStatus) error {
	for i, g := range d.grades {
		if g.ID != id {
			continue
		}
		if g.Status != from {
			return db.ErrConflict
		}
		g.Status = to
		d.grades[i] = g
		return nil
	}
	return db.ErrConflict
}

func (d *data) ListAttendanceRecords(_ context.Context, q model.AttendanceQuery) ([]model.AttendanceRecord, error) {
	var out []model.AttendanceRecord
	for _, a := range d.attendance {
		if !matches(q.SchoolID, a.SchoolID) || !matches(q.AcademicYear, a.AcademicYear) ||
			!matches(q.Term, a.Term) || !matches(q.ClassID, a.ClassID) {
			continue
		}
		if q.From != nil && a.Date.Before(*q.From) {
			continue
		}
		if q.To != nil && a.Date.After(*q.To) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
