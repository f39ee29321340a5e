package academic

import (
	"context"
	"errors"
	"fmt"

	"edufam/academics/internal/db"
	"edufam/academics/internal/model"
)

var (
	ErrSchoolRequired    = errors.New("school id is required")
	ErrNoCurrentPeriod   = errors.New("no current academic period set for this school")
	ErrInvalidYear       = errors.New("invalid academic year / does not belong to school")
	ErrInvalidTerm       = errors.New("invalid term / does not belong to school")
	ErrTermYearMismatch  = errors.New("term does not belong to the selected academic year")
	ErrInvalidClass      = errors.New("invalid class / does not belong to school")
	ErrInvalidSubject    = errors.New("subject not found / does not belong to school")
	ErrSubjectNotInClass = errors.New("subject is not assigned to this class")
)

// Resolver turns a partial AcademicContext into a fully qualified one. It never writes.
type Resolver struct {
	store db.Gateway
}

func NewResolver(store db.Gateway) *Resolver {
	return &Resolver{store: store}
}

type ResolveResult struct {
	Context model.AcademicContext `json:"context"`
	IsValid bool                  `json:"isValid"`
	Errors  []string              `json:"errors"`
}

func (r *ResolveResult) fail(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// Resolve fills a missing year or term from the school's current period and checks that every
// referenced row exists and belongs to the school. Invalid input is reported in the result;
// the error return is reserved for store failures.
func (r *Resolver) Resolve(ctx context.Context, in model.AcademicContext) (ResolveResult, error) {
	result := ResolveResult{Context: in, Errors: []string{}}
	if in.SchoolID == "" {
		result.fail(ErrSchoolRequired)
		return result, nil
	}

	resolved := in
	if resolved.AcademicYearID == "" || resolved.TermID == "" {
		period, err := r.CurrentPeriod(ctx, in.SchoolID)
		if errors.Is(err, ErrNoCurrentPeriod) {
			result.fail(err)
			return result, nil
		}
		if err != nil {
			return result, err
		}
		if resolved.AcademicYearID == "" {
			resolved.AcademicYearID = period.Year.ID
		}
		if resolved.TermID == "" {
			resolved.TermID = period.Term.ID
		}
	}

	year, yearOK, err := r.ownedYear(ctx, in.SchoolID, resolved.AcademicYearID)
	if err != nil {
		return result, err
	}
	if !yearOK {
		result.fail(ErrInvalidYear)
	}

	term, termOK, err := r.ownedTerm(ctx, in.SchoolID, resolved.TermID)
	if err != nil {
		return result, err
	}
	switch {
	case !termOK:
		result.fail(ErrInvalidTerm)
	case yearOK && term.AcademicYearID != year.ID:
		result.fail(ErrTermYearMismatch)
	}

	if resolved.ClassID != "" {
		class, err := r.store.GetClass(ctx, resolved.ClassID)
		switch {
		case errors.Is(err, db.ErrNotFound) || (err == nil && class.SchoolID != in.SchoolID):
			result.fail(ErrInvalidClass)
		case err != nil:
			return result, fmt.Errorf("get class: %w", err)
		case resolved.CurriculumType == "":
			resolved.CurriculumType = class.CurriculumType
		case resolved.CurriculumType != class.CurriculumType:
			result.Errors = append(result.Errors, fmt.Sprintf("class curriculum type (%s) does not match expected type (%s)",
				class.CurriculumType.Label(), resolved.CurriculumType.Label()))
		}
	}

	if resolved.SubjectID != "" {
		subject, err := r.store.GetSubject(ctx, resolved.SubjectID)
		switch {
		case errors.Is(err, db.ErrNotFound) || (err == nil && subject.SchoolID != in.SchoolID):
			result.fail(ErrInvalidSubject)
		case err != nil:
			return result, fmt.Errorf("get subject: %w", err)
		case resolved.ClassID != "" && subject.ClassID != resolved.ClassID:
			result.fail(ErrSubjectNotInClass)
		}
	}

	result.Context = resolved
	result.IsValid = len(result.Errors) == 0
	return result, nil
}

func (r *Resolver) ownedYear(ctx context.Context, schoolID, id string) (model.AcademicYear, bool, error) {
	year, err := r.store.GetAcademicYear(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return year, false, nil
	}
	if err != nil {
		return year, false, fmt.Errorf("get academic year: %w", err)
	}
	return year, year.SchoolID == schoolID, nil
}

func (r *Resolver) ownedTerm(ctx context.Context, schoolID, id string) (model.AcademicTerm, bool, error) {
	term, err := r.store.GetAcademicTerm(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return term, false, nil
	}
	if err != nil {
		return term, false, fmt.Errorf("get academic term: %w", err)
	}
	return term, term.SchoolID == schoolID, nil
}
