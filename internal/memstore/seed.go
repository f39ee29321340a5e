package memstore

import (
	"time"

	"github.com/google/uuid"

	"edufam/academics/internal/model"
)

// The Add* helpers insert rows directly, bypassing validation. Empty ids are generated.

func (s *Store) AddSchool(school model.School) model.School {
	s.mu.Lock()
	defer s.mu.Unlock()
	school.ID = ensureID(school.ID)
	s.data.schools[school.ID] = school
	return school
}

func (s *Store) AddProfile(profile model.Profile) model.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile.UserID = ensureID(profile.UserID)
	s.data.profiles[profile.UserID] = profile
	return profile
}

func (s *Store) AddStudent(student model.Student) model.Student {
	s.mu.Lock()
	defer s.mu.Unlock()
	student.ID = ensureID(student.ID)
	s.data.students[student.ID] = student
	return student
}

func (s *Store) AddAcademicYear(year model.AcademicYear) model.AcademicYear {
	s.mu.Lock()
	defer s.mu.Unlock()
	year.ID = ensureID(year.ID)
	s.data.years[year.ID] = year
	return year
}

func (s *Store) AddAcademicTerm(term model.AcademicTerm) model.AcademicTerm {
	s.mu.Lock()
	defer s.mu.Unlock()
	term.ID = ensureID(term.ID)
	s.data.terms[term.ID] = term
	return term
}

func (s *Store) AddClass(class model.Class) model.Class {
	s.mu.Lock()
	defer s.mu.Unlock()
	class.ID = ensureID(class.ID)
	s.data.classes[class.ID] = class
	return class
}

func (s *Store) AddSubject(subject model.Subject) model.Subject {
	s.mu.Lock()
	defer s.mu.Unlock()
	subject.ID = ensureID(subject.ID)
	s.data.subjects[subject.ID] = subject
	return subject
}

func (s *Store) AddTeacherAssignment(a model.TeacherAssignment) model.TeacherAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = ensureID(a.ID)
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now().UTC()
	}
	s.data.assignments = append(s.data.assignments, a)
	return a
}

func (s *Store) AddEnrollment(e model.Enrollment) model.Enrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = ensureID(e.ID)
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now().UTC()
	}
	s.data.enrollments = append(s.data.enrollments, e)
	return e
}

// AddGrade derives Percentage from Score and MaxScore the way the grades table does.
func (s *Store) AddGrade(g model.GradeRecord) model.GradeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = ensureID(g.ID)
	g.Percentage = model.Percentage(g.Score, g.MaxScore)
	if g.Status == "" {
		g.Status = model.GradeDraft
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	s.data.grades = append(s.data.grades, g)
	return g
}

func (s *Store) AddAttendance(a model.AttendanceRecord) model.AttendanceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = ensureID(a.ID)
	s.data.attendance = append(s.data.attendance, a)
	return a
}

func ensureID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
