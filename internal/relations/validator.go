package relations

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"edufam/academics/internal/db"
	"edufam/academics/internal/model"
)

type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// check looks one relationship up. An empty message means the relationship holds.
type check func(ctx context.Context, store db.Gateway) (string, error)

type Validator struct {
	store    db.Gateway
	validate *validator.Validate
}

func NewValidator(store db.Gateway) *Validator {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{store: store, validate: validate}
}

// Validate runs every check for req concurrently. Messages come back in the order the checks
// are declared, whatever order they finish in.
func (v *Validator) Validate(ctx context.Context, req Request) (Result, error) {
	if req == nil {
		return Result{Errors: []string{ErrUnknownOperation.Error()}}, nil
	}
	if fieldErrors := v.fieldErrors(req); len(fieldErrors) > 0 {
		return Result{Errors: fieldErrors}, nil
	}

	checks := req.checks()
	messages := make([]string, len(checks))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, c := range checks {
		i, c := i, c
		eg.Go(func() error {
			msg, err := c(egCtx, v.store)
			if err != nil {
				return err
			}
			messages[i] = msg
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Result{}, fmt.Errorf("validate %s: %w", req.Operation(), err)
	}

	result := Result{Errors: []string{}}
	for _, msg := range messages {
		if msg != "" {
			result.Errors = append(result.Errors, msg)
		}
	}
	result.Valid = len(result.Errors) == 0
	return result, nil
}

func (v *Validator) fieldErrors(req Request) []string {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(invalid))
	for _, fe := range invalid {
		switch {
		case fe.Field() == "classIds" && fe.Tag() == "min":
			out = append(out, "at least one class is required")
		case fe.Tag() == "required":
			out = append(out, fe.Field()+" is required")
		default:
			out = append(out, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return out
}

func (r StudentEnrollment) checks() []check {
	var checks []check
	if r.StudentID != "" {
		checks = append(checks, func(ctx context.Context, store db.Gateway) (string, error) {
			student, err := store.GetStudent(ctx, r.StudentID)
			if msg, err := notFound(err, "student not found"); msg != "" || err != nil {
				return msg, err
			}
			if foreign(r.SchoolID, student.SchoolID) {
				return "student not found", nil
			}
			return "", nil
		})
	}
	return append(checks,
		func(ctx context.Context, store db.Gateway) (string, error) {
			class, err := store.GetClass(ctx, r.ClassID)
			if msg, err := notFound(err, "class not found"); msg != "" || err != nil {
				return msg, err
			}
			if foreign(r.SchoolID, class.SchoolID) {
				return "class not found", nil
			}
			if !class.IsActive {
				return "class is not active", nil
			}
			return "", nil
		},
		func(ctx context.Context, store db.Gateway) (string, error) {
			year, err := store.GetAcademicYear(ctx, r.AcademicYearID)
			if msg, err := notFound(err, "academic year not found"); msg != "" || err != nil {
				return msg, err
			}
			if foreign(r.SchoolID, year.SchoolID) {
				return "academic year not found", nil
			}
			return "", nil
		},
		func(ctx context.Context, store db.Gateway) (string, error) {
			term, err := store.GetAcademicTerm(ctx, r.TermID)
			if msg, err := notFound(err, "term not found"); msg != "" || err != nil {
				return msg, err
			}
			if foreign(r.SchoolID, term.SchoolID) {
				return "term not found", nil
			}
			if term.AcademicYearID != r.AcademicYearID {
				return "term does not belong to this academic year", nil
			}
			return "", nil
		},
	)
}

func (r SubjectAssignment) checks() []check {
	return []check{
		func(ctx context.Context, store db.Gateway) (string, error) {
			subject, err := store.GetSubject(ctx, r.SubjectID)
			if msg, err := notFound(err, "subject not found"); msg != "" || err != nil {
				return msg, err
			}
			if foreign(r.SchoolID, subject.SchoolID) {
				return "subject not found", nil
			}
			if r.ClassID != "" && subject.ClassID != r.ClassID {
				return "subject does not belong to this class", nil
			}
			return "", nil
		},
		func(ctx context.Context, store db.Gateway) (string, error) {
			profile, err := store.GetProfile(ctx, r.TeacherID)
			if msg, err := notFound(err, "teacher not found"); msg != "" || err != nil {
				return msg, err
			}
			if foreign(r.SchoolID, profile.SchoolID) {
				return "teacher not found", nil
			}
			if profile.Role != model.RoleTeacher {
				return "user is not a teacher", nil
			}
			return "", nil
		},
	}
}

func (r ExaminationSchedule) checks() []check {
	checks := make([]check, 0, len(r.ClassIDs))
	for _, id := range r.ClassIDs {
		id := id
		checks = append(checks, func(ctx context.Context, store db.Gateway) (string, error) {
			_, err := store.GetClass(ctx, id)
			return notFound(err, fmt.Sprintf("class %s not found", id))
		})
	}
	return checks
}

func foreign(schoolID, owner string) bool {
	return schoolID != "" && owner != schoolID
}

func notFound(err error, msg string) (string, error) {
	if errors.Is(err, db.ErrNotFound) {
		return msg, nil
	}
	return "", err
}
