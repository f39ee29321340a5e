package model

import "time"

type School struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AcademicYear struct {
	ID             string          `json:"id"`
	SchoolID       string          `json:"schoolId"`
	Name           string          `json:"name"`
	StartDate      time.Time       `json:"startDate"`
	EndDate        time.Time       `json:"endDate"`
	IsCurrent      bool            `json:"isCurrent"`
	CurriculumType *CurriculumType `json:"curriculumType,omitempty"`
}

type AcademicTerm struct {
	ID             string          `json:"id"`
	SchoolID       string          `json:"schoolId"`
	AcademicYearID string          `json:"academicYearId"`
	Name           string          `json:"name"`
	StartDate      time.Time       `json:"startDate"`
	EndDate        time.Time       `json:"endDate"`
	IsCurrent      bool            `json:"isCurrent"`
	CurriculumType *CurriculumType `json:"curriculumType,omitempty"`
}

type Class struct {
	ID             string         `json:"id"`
	SchoolID       string         `json:"schoolId"`
	Name           string         `json:"name"`
	CurriculumType CurriculumType `json:"curriculumType"`
	IsActive       bool           `json:"isActive"`
}

// Subject belongs to exactly one class.
type Subject struct {
	ID             string          `json:"id"`
	SchoolID       string          `json:"schoolId"`
	ClassID        string          `json:"classId"`
	Name           string          `json:"name"`
	CurriculumType *CurriculumType `json:"curriculumType,omitempty"`
}

// Profile is the acting user's profile row; role and school are read from here.
type Profile struct {
	UserID   string `json:"userId"`
	SchoolID string `json:"schoolId"`
	Role     Role   `json:"role"`
	FullName string `json:"fullName"`
}

type Student struct {
	ID       string `json:"id"`
	SchoolID string `json:"schoolId"`
	FullName string `json:"fullName"`
	IsActive bool   `json:"isActive"`
}

type TeacherAssignment struct {
	ID             string    `json:"id"`
	TeacherID      string    `json:"teacherId"`
	ClassID        string    `json:"classId"`
	SubjectID      string    `json:"subjectId"`
	AcademicYearID string    `json:"academicYearId"`
	TermID         string    `json:"termId"`
	IsActive       bool      `json:"isActive"`
	AssignedAt     time.Time `json:"assignedAt"`
}

type Enrollment struct {
	ID             string     `json:"id"`
	StudentID      string     `json:"studentId"`
	ClassID        string     `json:"classId"`
	AcademicYearID string     `json:"academicYearId"`
	TermID         string     `json:"termId"`
	IsActive       bool       `json:"isActive"`
	EnrolledAt     time.Time  `json:"enrolledAt"`
	DeactivatedAt  *time.Time `json:"deactivatedAt,omitempty"`
}

type GradeRecord struct {
	ID           string      `json:"id"`
	StudentID    string      `json:"studentId"`
	SubjectID    string      `json:"subjectId"`
	ClassID      string      `json:"classId"`
	SchoolID     string      `json:"schoolId"`
	Score        float64     `json:"score"`
	MaxScore     float64     `json:"maxScore"`
	Percentage   float64     `json:"percentage"`
	LetterGrade  string      `json:"letterGrade"`
	Status       GradeStatus `json:"status"`
	Term         string      `json:"term"`
	ExamType     string      `json:"examType"`
	AcademicYear string      `json:"academicYear"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Percentage derives the analytics unit from a raw score.
func Percentage(score, maxScore float64) float64 {
	if maxScore <= 0 {
		return 0
	}
	return score / maxScore * 100
}

type AttendanceRecord struct {
	ID           string           `json:"id"`
	StudentID    string           `json:"studentId"`
	ClassID      string           `json:"classId"`
	SchoolID     string           `json:"schoolId"`
	Date         time.Time        `json:"date"`
	Status       AttendanceStatus `json:"status"`
	AcademicYear string           `json:"academicYear"`
	Term         string           `json:"term"`
}

// AcademicContext scopes an academic operation. It is built per request and never stored.
type AcademicContext struct {
	SchoolID       string         `json:"schoolId"`
	AcademicYearID string         `json:"academicYearId,omitempty"`
	TermID         string         `json:"termId,omitempty"`
	ClassID        string         `json:"classId,omitempty"`
	SubjectID      string         `json:"subjectId,omitempty"`
	CurriculumType CurriculumType `json:"curriculumType,omitempty"`
}

// GradeQuery selects grade rows at the store. Empty fields do not filter.
type GradeQuery struct {
	SchoolID     string
	AcademicYear string
	Term         string
	ClassID      string
	SubjectID    string
	StudentID    string
}

type AttendanceQuery struct {
	SchoolID     string
	AcademicYear string
	Term         string
	ClassID      string
	From         *time.Time
	To           *time.Time
}
