package db

import (
	"context"
	"errors"
	"time"

	"edufam/academics/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict covers unique violations and lost compare-and-set updates.
	ErrConflict = errors.New("conflict")
)

// Gateway is the entity store contract the engine reads and writes through.
// Both the PostgreSQL Queries and memstore implement it.
type Gateway interface {
	GetSchool(ctx context.Context, id string) (model.School, error)
	GetProfile(ctx context.Context, userID string) (model.Profile, error)
	GetStudent(ctx context.Context, id string) (model.Student, error)

	GetAcademicYear(ctx context.Context, id string) (model.AcademicYear, error)
	GetCurrentAcademicYear(ctx context.Context, schoolID string) (model.AcademicYear, error)
	GetAcademicTerm(ctx context.Context, id string) (model.AcademicTerm, error)
	GetCurrentAcademicTerm(ctx context.Context, schoolID string) (model.AcademicTerm, error)
	MarkCurrentAcademicYear(ctx context.Context, schoolID, yearID string) error
	MarkCurrentAcademicTerm(ctx context.Context, schoolID, termID string) error

	GetClass(ctx context.Context, id string) (model.Class, error)
	ListClassesByIDs(ctx context.Context, ids []string) ([]model.Class, error)
	GetSubject(ctx context.Context, id string) (model.Subject, error)

	HasActiveTeacherAssignment(ctx context.Context, key AssignmentKey) (bool, error)
	FindActiveSubjectAssignment(ctx context.Context, subjectID, classID, yearID, termID string) (model.TeacherAssignment, error)
	CreateTeacherAssignment(ctx context.Context, assignment model.TeacherAssignment) (model.TeacherAssignment, error)

	FindActiveEnrollment(ctx context.Context, key EnrollmentKey) (model.Enrollment, error)
	CreateEnrollment(ctx context.Context, enrollment model.Enrollment) (model.Enrollment, error)
	LockActiveEnrollments(ctx context.Context, classID string, studentIDs []string) ([]model.Enrollment, error)
	DeactivateEnrollments(ctx context.Context, ids []string, at time.Time) error

	ListGradeRecords(ctx context.Context, query model.GradeQuery) ([]model.GradeRecord, error)
	GetGradeRecord(ctx context.Context, id string) (model.GradeRecord, error)
	UpdateGradeStatus(ctx context.Context, id string, from, to model.GradeStatus) error
	ListAttendanceRecords(ctx context.Context, query model.AttendanceQuery) ([]model.AttendanceRecord, error)
}

// TxGateway is a Gateway that can also run fn atomically.
type TxGateway interface {
	Gateway
	WithTx(ctx context.Context, fn func(Gateway) error) error
}

type AssignmentKey struct {
	TeacherID      string
	ClassID        string
	SubjectID      string
	AcademicYearID string
	TermID         string
}

type EnrollmentKey struct {
	StudentID      string
	ClassID        string
	AcademicYearID string
	TermID         string
}
