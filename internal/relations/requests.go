package relations

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Operation string

const (
	OpStudentEnrollment   Operation = "student_enrollment"
	OpSubjectAssignment   Operation = "subject_assignment"
	OpExaminationSchedule Operation = "examination_schedule"
)

var ErrUnknownOperation = errors.New("unknown relationship operation")

// Request is one of StudentEnrollment, SubjectAssignment or ExaminationSchedule.
// The unexported method keeps the set closed.
type Request interface {
	Operation() Operation
	checks() []check
}

// SchoolID, when set, scopes every referenced row to that school. Rows from another school are
// reported as not found.
type StudentEnrollment struct {
	SchoolID       string `json:"schoolId,omitempty"`
	StudentID      string `json:"studentId,omitempty"`
	ClassID        string `json:"classId" validate:"required"`
	AcademicYearID string `json:"academicYearId" validate:"required"`
	TermID         string `json:"termId" validate:"required"`
}

func (StudentEnrollment) Operation() Operation { return OpStudentEnrollment }

type SubjectAssignment struct {
	SchoolID  string `json:"schoolId,omitempty"`
	SubjectID string `json:"subjectId" validate:"required"`
	TeacherID string `json:"teacherId" validate:"required"`
	ClassID   string `json:"classId,omitempty"`
}

func (SubjectAssignment) Operation() Operation { return OpSubjectAssignment }

type ExaminationSchedule struct {
	ClassIDs []string `json:"classIds" validate:"min=1,dive,required"`
}

func (ExaminationSchedule) Operation() Operation { return OpExaminationSchedule }

// Decode maps an {operation, payload} pair from the wire onto its request variant.
func Decode(operation string, payload json.RawMessage) (Request, error) {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	switch Operation(operation) {
	case OpStudentEnrollment:
		var req StudentEnrollment
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode %s: %w", operation, err)
		}
		return req, nil
	case OpSubjectAssignment:
		var req SubjectAssignment
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode %s: %w", operation, err)
		}
		return req, nil
	case OpExaminationSchedule:
		var req ExaminationSchedule
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("decode %s: %w", operation, err)
		}
		return req, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, operation)
}
