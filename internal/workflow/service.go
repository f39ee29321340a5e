package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"edufam/academics/internal/db"
	"edufam/academics/internal/metrics"
	"edufam/academics/internal/model"
	"edufam/academics/internal/relations"
)

// SummaryInvalidator drops cached analytics for a school after its grades change.
type SummaryInvalidator interface {
	Invalidate(ctx context.Context, schoolID string) error
}

type Service struct {
	store     db.TxGateway
	relations *relations.Validator
	logger    *zap.Logger
	cache     SummaryInvalidator
	now       func() time.Time
}

type Option func(*Service)

func WithInvalidator(cache SummaryInvalidator) Option {
	return func(s *Service) { s.cache = cache }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store db.TxGateway, validator *relations.Validator, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:     store,
		relations: validator,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnrollRequest and the other request types carry SchoolID, the acting user's school. It is set
// by the server, never decoded, and scopes every referenced row.
type EnrollRequest struct {
	SchoolID       string `json:"-"`
	StudentID      string `json:"studentId"`
	ClassID        string `json:"classId"`
	AcademicYearID string `json:"academicYearId"`
	TermID         string `json:"termId"`
}

// Enroll creates an active enrollment. A second call with the same tuple fails with
// ErrAlreadyEnrolled and writes nothing.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (enrollment model.Enrollment, err error) {
	defer func() { record("enroll", err) }()

	if req.StudentID == "" {
		return model.Enrollment{}, &Error{Code: ErrInvalidRequest, Message: "studentId is required"}
	}
	if missing := missingFields(map[string]string{"schoolId": req.SchoolID}); missing != nil {
		return model.Enrollment{}, missing
	}
	if err := s.checkRelationships(ctx, relations.StudentEnrollment{
		SchoolID:       req.SchoolID,
		StudentID:      req.StudentID,
		ClassID:        req.ClassID,
		AcademicYearID: req.AcademicYearID,
		TermID:         req.TermID,
	}); err != nil {
		return model.Enrollment{}, err
	}

	err = s.store.WithTx(ctx, func(tx db.Gateway) error {
		key := db.EnrollmentKey{StudentID: req.StudentID, ClassID: req.ClassID, AcademicYearID: req.AcademicYearID, TermID: req.TermID}
		_, err := tx.FindActiveEnrollment(ctx, key)
		if err == nil {
			return alreadyEnrolled()
		}
		if !errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("find enrollment: %w", err)
		}
		enrollment, err = tx.CreateEnrollment(ctx, model.Enrollment{
			StudentID:      req.StudentID,
			ClassID:        req.ClassID,
			AcademicYearID: req.AcademicYearID,
			TermID:         req.TermID,
			IsActive:       true,
			EnrolledAt:     s.now(),
		})
		if errors.Is(err, db.ErrConflict) {
			return alreadyEnrolled()
		}
		if err != nil {
			return fmt.Errorf("create enrollment: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Enrollment{}, err
	}
	s.logger.Info("student enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", req.StudentID),
		zap.String("class_id", req.ClassID))
	return enrollment, nil
}

type AssignRequest struct {
	SchoolID       string `json:"-"`
	SubjectID      string `json:"subjectId"`
	ClassID        string `json:"classId"`
	TeacherID      string `json:"teacherId"`
	AcademicYearID string `json:"academicYearId"`
	TermID         string `json:"termId"`
}

// AssignSubject gives a subject in a class and period to one teacher. Only one active
// assignment may exist per (subject, class, year, term).
func (s *Service) AssignSubject(ctx context.Context, req AssignRequest) (assignment model.TeacherAssignment, err error) {
	defer func() { record("assign_subject", err) }()

	if missing := missingFields(map[string]string{
		"schoolId":       req.SchoolID,
		"classId":        req.ClassID,
		"academicYearId": req.AcademicYearID,
		"termId":         req.TermID,
	}); missing != nil {
		return model.TeacherAssignment{}, missing
	}
	if err := s.checkRelationships(ctx, relations.SubjectAssignment{
		SchoolID:  req.SchoolID,
		SubjectID: req.SubjectID,
		TeacherID: req.TeacherID,
		ClassID:   req.ClassID,
	}); err != nil {
		return model.TeacherAssignment{}, err
	}

	err = s.store.WithTx(ctx, func(tx db.Gateway) error {
		_, err := tx.FindActiveSubjectAssignment(ctx, req.SubjectID, req.ClassID, req.AcademicYearID, req.TermID)
		if err == nil {
			return alreadyAssigned()
		}
		if !errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("find assignment: %w", err)
		}
		assignment, err = tx.CreateTeacherAssignment(ctx, model.TeacherAssignment{
			TeacherID:      req.TeacherID,
			ClassID:        req.ClassID,
			SubjectID:      req.SubjectID,
			AcademicYearID: req.AcademicYearID,
			TermID:         req.TermID,
			IsActive:       true,
			AssignedAt:     s.now(),
		})
		if errors.Is(err, db.ErrConflict) {
			return alreadyAssigned()
		}
		if err != nil {
			return fmt.Errorf("create assignment: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.TeacherAssignment{}, err
	}
	s.logger.Info("subject assigned",
		zap.String("assignment_id", assignment.ID),
		zap.String("subject_id", req.SubjectID),
		zap.String("teacher_id", req.TeacherID))
	return assignment, nil
}

type PromoteRequest struct {
	SchoolID       string   `json:"-"`
	FromClassID    string   `json:"fromClassId"`
	ToClassID      string   `json:"toClassId"`
	AcademicYearID string   `json:"academicYearId"`
	TermID         string   `json:"termId"`
	StudentIDs     []string `json:"studentIds,omitempty"`
}

// PromoteResult counts distinct students moved.
type PromoteResult struct {
	Promoted    int                `json:"promoted"`
	Enrollments []model.Enrollment `json:"enrollments"`
}

// Promote moves the active enrollments of FromClassID (optionally only StudentIDs) into
// ToClassID for the given period. The source rows are locked and the move is all or nothing.
func (s *Service) Promote(ctx context.Context, req PromoteRequest) (result PromoteResult, err error) {
	defer func() { record("promote", err) }()

	if missing := missingFields(map[string]string{"schoolId": req.SchoolID, "fromClassId": req.FromClassID}); missing != nil {
		return PromoteResult{}, missing
	}
	if req.FromClassID == req.ToClassID {
		return PromoteResult{}, &Error{Code: ErrSameClass, Message: "source and target class must differ"}
	}
	if err := s.checkSourceClass(ctx, req.SchoolID, req.FromClassID); err != nil {
		return PromoteResult{}, err
	}
	if err := s.checkRelationships(ctx, relations.StudentEnrollment{
		SchoolID:       req.SchoolID,
		ClassID:        req.ToClassID,
		AcademicYearID: req.AcademicYearID,
		TermID:         req.TermID,
	}); err != nil {
		return PromoteResult{}, err
	}

	err = s.store.WithTx(ctx, func(tx db.Gateway) error {
		current, err := tx.LockActiveEnrollments(ctx, req.FromClassID, req.StudentIDs)
		if err != nil {
			return fmt.Errorf("lock enrollments: %w", err)
		}
		if len(current) == 0 {
			return &Error{Code: ErrNoStudents, Message: "no students found to promote"}
		}

		now := s.now()
		ids := make([]string, len(current))
		for i, e := range current {
			ids[i] = e.ID
		}
		if err := tx.DeactivateEnrollments(ctx, ids, now); err != nil {
			return fmt.Errorf("deactivate enrollments: %w", err)
		}

		students := distinctStudents(current)
		created := make([]model.Enrollment, 0, len(students))
		for _, studentID := range students {
			next, err := tx.CreateEnrollment(ctx, model.Enrollment{
				StudentID:      studentID,
				ClassID:        req.ToClassID,
				AcademicYearID: req.AcademicYearID,
				TermID:         req.TermID,
				IsActive:       true,
				EnrolledAt:     now,
			})
			if errors.Is(err, db.ErrConflict) {
				return &Error{
					Code:    ErrAlreadyEnrolled,
					Message: fmt.Sprintf("student %s is already enrolled in the target class", studentID),
				}
			}
			if err != nil {
				return fmt.Errorf("create enrollment: %w", err)
			}
			created = append(created, next)
		}
		result = PromoteResult{Promoted: len(created), Enrollments: created}
		return nil
	})
	if err != nil {
		return PromoteResult{}, err
	}
	s.logger.Info("students promoted",
		zap.String("from_class_id", req.FromClassID),
		zap.String("to_class_id", req.ToClassID),
		zap.Int("count", result.Promoted))
	return result, nil
}

var gradeTransitions = map[model.GradeStatus][]model.GradeStatus{
	model.GradeDraft:           {model.GradePendingApproval},
	model.GradePendingApproval: {model.GradeApproved, model.GradeRejected},
	model.GradeRejected:        {model.GradeDraft},
	model.GradeApproved:        {model.GradeReleased},
}

func CanTransition(from, to model.GradeStatus) bool {
	for _, next := range gradeTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionGradeStatus moves a grade one step through its lifecycle. The write only lands if
// the status is still the one that was read.
func (s *Service) TransitionGradeStatus(ctx context.Context, gradeID string, to model.GradeStatus) (grade model.GradeRecord, err error) {
	defer func() { record("grade_status", err) }()

	grade, err = s.store.GetGradeRecord(ctx, gradeID)
	if errors.Is(err, db.ErrNotFound) {
		return model.GradeRecord{}, &Error{Code: ErrGradeNotFound, Message: "grade not found"}
	}
	if err != nil {
		return model.GradeRecord{}, fmt.Errorf("get grade: %w", err)
	}

	from := grade.Status
	if !CanTransition(from, to) {
		return model.GradeRecord{}, invalidTransition(from, to)
	}
	if err := s.store.UpdateGradeStatus(ctx, gradeID, from, to); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return model.GradeRecord{}, &Error{Code: ErrStatusConflict, Message: "grade status changed concurrently"}
		}
		return model.GradeRecord{}, fmt.Errorf("update grade status: %w", err)
	}
	grade.Status = to

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, grade.SchoolID); err != nil {
			s.logger.Warn("summary cache invalidation failed", zap.String("school_id", grade.SchoolID), zap.Error(err))
		}
	}
	s.logger.Info("grade status changed",
		zap.String("grade_id", gradeID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return grade, nil
}

func (s *Service) checkRelationships(ctx context.Context, req relations.Request) error {
	result, err := s.relations.Validate(ctx, req)
	if err != nil {
		return err
	}
	metrics.Validation("relationship", result.Valid)
	if !result.Valid {
		return &Error{Code: ErrInvalidRelationship, Message: strings.Join(result.Errors, "; "), Details: result.Errors}
	}
	return nil
}

// checkSourceClass rejects a source class that is missing or belongs to another school.
func (s *Service) checkSourceClass(ctx context.Context, schoolID, classID string) error {
	class, err := s.store.GetClass(ctx, classID)
	if errors.Is(err, db.ErrNotFound) || (err == nil && class.SchoolID != schoolID) {
		msg := "source class not found"
		return &Error{Code: ErrInvalidRelationship, Message: msg, Details: []string{msg}}
	}
	if err != nil {
		return fmt.Errorf("get source class: %w", err)
	}
	return nil
}

// distinctStudents keeps the first occurrence of each student. A student can hold active rows
// for several periods in the same class.
func distinctStudents(enrollments []model.Enrollment) []string {
	seen := make(map[string]struct{}, len(enrollments))
	out := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		if _, ok := seen[e.StudentID]; ok {
			continue
		}
		seen[e.StudentID] = struct{}{}
		out = append(out, e.StudentID)
	}
	return out
}

func missingFields(fields map[string]string) *Error {
	var missing []string
	for _, name := range []string{"schoolId", "fromClassId", "classId", "academicYearId", "termId"} {
		if value, ok := fields[name]; ok && value == "" {
			missing = append(missing, name+" is required")
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &Error{Code: ErrInvalidRequest, Message: strings.Join(missing, "; "), Details: missing}
}

func alreadyEnrolled() *Error {
	return &Error{Code: ErrAlreadyEnrolled, Message: "already enrolled"}
}

func alreadyAssigned() *Error {
	return &Error{Code: ErrAlreadyAssigned, Message: "subject already assigned"}
}

func record(operation string, err error) {
	switch {
	case err == nil:
		metrics.Workflow(operation, "ok")
	case Code(err) != "":
		metrics.Workflow(operation, Code(err))
	default:
		metrics.Workflow(operation, "error")
	}
}
