package academic

import (
	"context"
	"errors"
	"fmt"

	"edufam/academics/internal/db"
	"edufam/academics/internal/model"
)

// Level names a place a curriculum type can be observed.
type Level string

const (
	LevelContext      Level = "context"
	LevelAcademicYear Level = "academic_year"
	LevelTerm         Level = "term"
	LevelClass        Level = "class"
	LevelSubject      Level = "subject"
)

var levelOrder = []Level{LevelContext, LevelAcademicYear, LevelTerm, LevelClass, LevelSubject}

type CurriculumCheck struct {
	IsConsistent    bool                           `json:"isConsistent"`
	CurriculumType  model.CurriculumType           `json:"curriculumType,omitempty"`
	Errors          []string                       `json:"errors"`
	CurriculumTypes map[Level]model.CurriculumType `json:"curriculumTypes"`
}

// CheckCurriculum compares the curriculum type observed at every level of the context.
// The class is authoritative; without a class the caller's type is, and failing that the first
// level that implies one. Rows that do not exist, or belong to another school, are errors.
func (r *Resolver) CheckCurriculum(ctx context.Context, in model.AcademicContext) (CurriculumCheck, error) {
	check := CurriculumCheck{Errors: []string{}, CurriculumTypes: map[Level]model.CurriculumType{}}
	if in.SchoolID == "" {
		check.Errors = append(check.Errors, ErrSchoolRequired.Error())
		return check, nil
	}
	if in.CurriculumType != "" {
		check.CurriculumTypes[LevelContext] = in.CurriculumType
	}

	if in.AcademicYearID != "" {
		year, err := r.store.GetAcademicYear(ctx, in.AcademicYearID)
		switch {
		case errors.Is(err, db.ErrNotFound) || (err == nil && year.SchoolID != in.SchoolID):
			check.Errors = append(check.Errors, "academic year not found")
		case err != nil:
			return check, fmt.Errorf("get academic year: %w", err)
		case year.CurriculumType != nil:
			check.CurriculumTypes[LevelAcademicYear] = *year.CurriculumType
		}
	}

	if in.TermID != "" {
		term, err := r.store.GetAcademicTerm(ctx, in.TermID)
		switch {
		case errors.Is(err, db.ErrNotFound) || (err == nil && term.SchoolID != in.SchoolID):
			check.Errors = append(check.Errors, "term not found")
		case err != nil:
			return check, fmt.Errorf("get academic term: %w", err)
		case term.CurriculumType != nil:
			check.CurriculumTypes[LevelTerm] = *term.CurriculumType
		}
	}

	if in.ClassID != "" {
		class, err := r.store.GetClass(ctx, in.ClassID)
		switch {
		case errors.Is(err, db.ErrNotFound) || (err == nil && class.SchoolID != in.SchoolID):
			check.Errors = append(check.Errors, "class not found")
		case err != nil:
			return check, fmt.Errorf("get class: %w", err)
		default:
			check.CurriculumTypes[LevelClass] = class.CurriculumType
		}
	}

	if in.SubjectID != "" {
		subject, err := r.store.GetSubject(ctx, in.SubjectID)
		switch {
		case errors.Is(err, db.ErrNotFound) || (err == nil && subject.SchoolID != in.SchoolID):
			check.Errors = append(check.Errors, "subject not found")
		case err != nil:
			return check, fmt.Errorf("get subject: %w", err)
		case subject.CurriculumType != nil:
			check.CurriculumTypes[LevelSubject] = *subject.CurriculumType
		}
	}

	authority, expected, ok := authoritative(check.CurriculumTypes)
	if ok {
		check.CurriculumType = expected
		for _, level := range levelOrder {
			observed, present := check.CurriculumTypes[level]
			if !present || level == authority || observed == expected {
				continue
			}
			check.Errors = append(check.Errors, mismatchMessage(level, observed, authority, expected))
		}
	}

	check.IsConsistent = len(check.Errors) == 0
	return check, nil
}

func authoritative(types map[Level]model.CurriculumType) (Level, model.CurriculumType, bool) {
	if value, ok := types[LevelClass]; ok {
		return LevelClass, value, true
	}
	for _, level := range levelOrder {
		if value, ok := types[level]; ok {
			return level, value, true
		}
	}
	return "", "", false
}

func mismatchMessage(level Level, observed model.CurriculumType, authority Level, expected model.CurriculumType) string {
	if authority != LevelClass {
		return fmt.Sprintf("%s curriculum type (%s) does not match expected curriculum type (%s)",
			level, observed.Label(), expected.Label())
	}
	if level == LevelContext {
		return fmt.Sprintf("class curriculum type (%s) does not match expected type (%s)", expected.Label(), observed.Label())
	}
	return fmt.Sprintf("%s curriculum type (%s) does not match class curriculum type (%s)", level, observed.Label(), expected.Label())
}
