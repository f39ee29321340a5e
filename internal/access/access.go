package access

import (
	"context"
	"errors"
	"fmt"

	"edufam/academics/internal/db"
	"edufam/academics/internal/model"
)

type Operation string

const (
	CreateExamination    Operation = "create_examination"
	RecordAttendance     Operation = "record_attendance"
	EnterGrades          Operation = "enter_grades"
	ApproveGrades        Operation = "approve_grades"
	GenerateReports      Operation = "generate_reports"
	ViewAnalytics        Operation = "view_analytics"
	ManageEnrollment     Operation = "manage_enrollment"
	ManageAcademicPeriod Operation = "manage_academic_period"
)

var AllOperations = []Operation{
	CreateExamination, RecordAttendance, EnterGrades, ApproveGrades,
	GenerateReports, ViewAnalytics, ManageEnrollment, ManageAcademicPeriod,
}

func ParseOperation(value string) (Operation, error) {
	for _, op := range AllOperations {
		if string(op) == value {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation %q", value)
}

const (
	msgProfileNotFound = "user profile not found"
	msgSchoolDenied    = "access denied to this school"
	msgNotAssigned     = "you are not assigned to this class/subject for the current academic period"
	msgForeignClass    = "invalid class or class does not belong to your school"
)

// Permitted is the operation gate. It switches over every role so adding a role forces a
// decision here; unknown roles are denied.
func Permitted(role model.Role, op Operation) bool {
	switch role {
	case model.RoleTeacher:
		switch op {
		case RecordAttendance, EnterGrades, ViewAnalytics:
			return true
		}
	case model.RolePrincipal:
		switch op {
		case CreateExamination, RecordAttendance, EnterGrades, ApproveGrades,
			GenerateReports, ViewAnalytics, ManageEnrollment, ManageAcademicPeriod:
			return true
		}
	case model.RoleSchoolOwner, model.RoleAdmin:
		switch op {
		case GenerateReports, ViewAnalytics, ManageEnrollment, ManageAcademicPeriod:
			return true
		}
	case model.RoleFinanceOfficer:
		return op == ViewAnalytics
	}
	return false
}

type ScopeResult struct {
	IsValid bool   `json:"isValid"`
	Error   string `json:"error,omitempty"`
}

func allow() ScopeResult { return ScopeResult{IsValid: true} }

func deny(message string) ScopeResult { return ScopeResult{Error: message} }

type Validator struct {
	store db.Gateway
}

func NewValidator(store db.Gateway) *Validator {
	return &Validator{store: store}
}

// ValidateScope decides whether userID may run op inside the resolved context. Checks run in a
// fixed order and the first failure wins. The error return is reserved for store failures.
func (v *Validator) ValidateScope(ctx context.Context, userID string, in model.AcademicContext, op Operation) (ScopeResult, error) {
	profile, err := v.store.GetProfile(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return deny(msgProfileNotFound), nil
	}
	if err != nil {
		return ScopeResult{}, fmt.Errorf("get profile: %w", err)
	}

	if profile.SchoolID != in.SchoolID {
		return deny(msgSchoolDenied), nil
	}

	if !Permitted(profile.Role, op) {
		return deny(fmt.Sprintf("your role (%s) is not permitted to %s", profile.Role, op)), nil
	}

	switch profile.Role {
	case model.RoleTeacher:
		if in.ClassID == "" || in.SubjectID == "" {
			return allow(), nil
		}
		assigned, err := v.store.HasActiveTeacherAssignment(ctx, db.AssignmentKey{
			TeacherID:      userID,
			ClassID:        in.ClassID,
			SubjectID:      in.SubjectID,
			AcademicYearID: in.AcademicYearID,
			TermID:         in.TermID,
		})
		if err != nil {
			return ScopeResult{}, fmt.Errorf("check teacher assignment: %w", err)
		}
		if !assigned {
			return deny(msgNotAssigned), nil
		}
	default:
		if in.ClassID == "" {
			return allow(), nil
		}
		class, err := v.store.GetClass(ctx, in.ClassID)
		if errors.Is(err, db.ErrNotFound) || (err == nil && class.SchoolID != profile.SchoolID) {
			return deny(msgForeignClass), nil
		}
		if err != nil {
			return ScopeResult{}, fmt.Errorf("get class: %w", err)
		}
	}
	return allow(), nil
}
