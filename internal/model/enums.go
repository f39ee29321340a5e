package model

import (
	"fmt"
	"strings"
)

type CurriculumType string

const (
	CurriculumStandard CurriculumType = "standard"
	CurriculumCBC      CurriculumType = "cbc"
	CurriculumIGCSE    CurriculumType = "igcse"
)

// ParseCurriculumType accepts any casing of the three curriculum families.
func ParseCurriculumType(value string) (CurriculumType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "standard":
		return CurriculumStandard, nil
	case "cbc":
		return CurriculumCBC, nil
	case "igcse":
		return CurriculumIGCSE, nil
	}
	return "", fmt.Errorf("unknown curriculum type %q", value)
}

// Label is the display form used in user-facing messages.
func (c CurriculumType) Label() string {
	switch c {
	case CurriculumStandard:
		return "Standard"
	case CurriculumCBC:
		return "CBC"
	case CurriculumIGCSE:
		return "IGCSE"
	}
	return string(c)
}

// Role is the closed set of user roles. Permission tables switch over it, see access.
type Role string

const (
	RoleTeacher        Role = "teacher"
	RolePrincipal      Role = "principal"
	RoleSchoolOwner    Role = "school_owner"
	RoleFinanceOfficer Role = "finance_officer"
	RoleAdmin          Role = "edufam_admin"
)

var AllRoles = []Role{RoleTeacher, RolePrincipal, RoleSchoolOwner, RoleFinanceOfficer, RoleAdmin}

func ParseRole(value string) (Role, error) {
	for _, role := range AllRoles {
		if string(role) == value {
			return role, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", value)
}

type GradeStatus string

const (
	GradeDraft           GradeStatus = "draft"
	GradePendingApproval GradeStatus = "pending_approval"
	GradeApproved        GradeStatus = "approved"
	GradeRejected        GradeStatus = "rejected"
	GradeReleased        GradeStatus = "released"
)

// Normalize maps anything outside the known lifecycle to draft.
func (s GradeStatus) Normalize() GradeStatus {
	switch s {
	case GradePendingApproval, GradeApproved, GradeRejected, GradeReleased:
		return s
	}
	return GradeDraft
}

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)
