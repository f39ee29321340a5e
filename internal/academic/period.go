package academic

import (
	"context"
	"errors"
	"fmt"

	"edufam/academics/internal/db"
	"edufam/academics/internal/model"
)

// Period is a school's current academic year and term.
type Period struct {
	Year model.AcademicYear `json:"academicYear"`
	Term model.AcademicTerm `json:"term"`
}

// CurrentPeriod reads the school's current year and term. Exactly one of each is current per
// school; only PeriodService.SetCurrentPeriod moves the flags.
func (r *Resolver) CurrentPeriod(ctx context.Context, schoolID string) (Period, error) {
	return currentPeriod(ctx, r.store, schoolID)
}

func currentPeriod(ctx context.Context, store db.Gateway, schoolID string) (Period, error) {
	year, err := store.GetCurrentAcademicYear(ctx, schoolID)
	if errors.Is(err, db.ErrNotFound) {
		return Period{}, ErrNoCurrentPeriod
	}
	if err != nil {
		return Period{}, fmt.Errorf("get current academic year: %w", err)
	}
	term, err := store.GetCurrentAcademicTerm(ctx, schoolID)
	if errors.Is(err, db.ErrNotFound) {
		return Period{}, ErrNoCurrentPeriod
	}
	if err != nil {
		return Period{}, fmt.Errorf("get current academic term: %w", err)
	}
	return Period{Year: year, Term: term}, nil
}

type PeriodService struct {
	store db.TxGateway
}

func NewPeriodService(store db.TxGateway) *PeriodService {
	return &PeriodService{store: store}
}

// SetCurrentPeriod makes yearID and termID the school's current period in one transaction.
// The term must belong to the year and both must belong to the school.
func (p *PeriodService) SetCurrentPeriod(ctx context.Context, schoolID, yearID, termID string) (Period, error) {
	if schoolID == "" {
		return Period{}, ErrSchoolRequired
	}
	var period Period
	err := p.store.WithTx(ctx, func(tx db.Gateway) error {
		year, err := tx.GetAcademicYear(ctx, yearID)
		if errors.Is(err, db.ErrNotFound) || (err == nil && year.SchoolID != schoolID) {
			return ErrInvalidYear
		}
		if err != nil {
			return fmt.Errorf("get academic year: %w", err)
		}
		term, err := tx.GetAcademicTerm(ctx, termID)
		if errors.Is(err, db.ErrNotFound) || (err == nil && term.SchoolID != schoolID) {
			return ErrInvalidTerm
		}
		if err != nil {
			return fmt.Errorf("get academic term: %w", err)
		}
		if term.AcademicYearID != year.ID {
			return ErrTermYearMismatch
		}

		if err := tx.MarkCurrentAcademicYear(ctx, schoolID, year.ID); err != nil {
			return fmt.Errorf("mark current academic year: %w", err)
		}
		if err := tx.MarkCurrentAcademicTerm(ctx, schoolID, term.ID); err != nil {
			return fmt.Errorf("mark current academic term: %w", err)
		}
		year.IsCurrent = true
		term.IsCurrent = true
		period = Period{Year: year, Term: term}
		return nil
	})
	if err != nil {
		return Period{}, err
	}
	return period, nil
}
