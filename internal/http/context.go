package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"edufam/academics/internal/academic"
	"edufam/academics/internal/access"
	"edufam/academics/internal/metrics"
	"edufam/academics/internal/model"
	"edufam/academics/internal/relations"
)

type contextRequest struct {
	SchoolID       string `json:"schoolId"`
	AcademicYearID string `json:"academicYearId"`
	TermID         string `json:"termId"`
	ClassID        string `json:"classId"`
	SubjectID      string `json:"subjectId"`
	CurriculumType string `json:"curriculumType"`
}

// toContext normalizes the curriculum type. Ids are passed through so unknown ones are reported
// by the resolver rather than rejected here.
func (c contextRequest) toContext() (model.AcademicContext, error) {
	out := model.AcademicContext{
		SchoolID:       strings.TrimSpace(c.SchoolID),
		AcademicYearID: strings.TrimSpace(c.AcademicYearID),
		TermID:         strings.TrimSpace(c.TermID),
		ClassID:        strings.TrimSpace(c.ClassID),
		SubjectID:      strings.TrimSpace(c.SubjectID),
	}
	if c.CurriculumType != "" {
		curriculum, err := model.ParseCurriculumType(c.CurriculumType)
		if err != nil {
			return out, err
		}
		out.CurriculumType = curriculum
	}
	return out, nil
}

func (s *Server) handleResolveContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	in, err := req.toContext()
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_curriculum_type", err.Error())
		return
	}
	result, err := s.resolver.Resolve(r.Context(), in)
	if err != nil {
		s.serverError(w, "resolve context", err)
		return
	}
	metrics.Validation("context", result.IsValid)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCheckCurriculum(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	in, err := req.toContext()
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_curriculum_type", err.Error())
		return
	}
	check, err := s.resolver.CheckCurriculum(r.Context(), in)
	if err != nil {
		s.serverError(w, "check curriculum", err)
		return
	}
	metrics.Validation("curriculum", check.IsConsistent)
	writeJSON(w, http.StatusOK, check)
}

type scopeRequest struct {
	Context   contextRequest `json:"context"`
	Operation string         `json:"operation"`
}

type scopeResponse struct {
	access.ScopeResult
	Context model.AcademicContext `json:"context"`
}

// handleValidateScope resolves the context first so a teacher's assignment is checked against
// the current period when the caller left it out.
func (s *Server) handleValidateScope(w http.ResponseWriter, r *http.Request) {
	var req scopeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	op, err := access.ParseOperation(req.Operation)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_operation", err.Error())
		return
	}
	in, err := req.Context.toContext()
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_curriculum_type", err.Error())
		return
	}

	resolved, err := s.resolver.Resolve(r.Context(), in)
	if err != nil {
		s.serverError(w, "resolve context", err)
		return
	}
	if !resolved.IsValid {
		metrics.Validation("scope", false)
		writeJSON(w, http.StatusOK, scopeResponse{
			ScopeResult: access.ScopeResult{Error: strings.Join(resolved.Errors, "; ")},
			Context:     resolved.Context,
		})
		return
	}

	result, err := s.access.ValidateScope(r.Context(), userIDFromRequest(r), resolved.Context, op)
	if err != nil {
		s.serverError(w, "validate scope", err)
		return
	}
	metrics.Validation("scope", result.IsValid)
	writeJSON(w, http.StatusOK, scopeResponse{ScopeResult: result, Context: resolved.Context})
}

type relationshipRequest struct {
	Operation string          `json:"operation"`
	Payload   json.RawMessage `json:"payload"`
}

func (s *Server) handleValidateRelationships(w http.ResponseWriter, r *http.Request) {
	var req relationshipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	request, err := relations.Decode(req.Operation, req.Payload)
	if errors.Is(err, relations.ErrUnknownOperation) {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_operation", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	result, err := s.relations.Validate(r.Context(), request)
	if err != nil {
		s.serverError(w, "validate relationships", err)
		return
	}
	metrics.Validation("relationship", result.Valid)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetCurrentPeriod(w http.ResponseWriter, r *http.Request) {
	schoolID, err := requireUUID(chi.URLParam(r, "schoolId"), "school_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_school_id")
		return
	}
	if !s.authorize(w, r, model.AcademicContext{SchoolID: schoolID}, access.ViewAnalytics) {
		return
	}
	period, err := s.resolver.CurrentPeriod(r.Context(), schoolID)
	if errors.Is(err, academic.ErrNoCurrentPeriod) {
		writeErrorMessage(w, http.StatusNotFound, "no_current_period", err.Error())
		return
	}
	if err != nil {
		s.serverError(w, "get current period", err)
		return
	}
	writeJSON(w, http.StatusOK, period)
}

type setPeriodRequest struct {
	AcademicYearID string `json:"academicYearId"`
	TermID         string `json:"termId"`
}

func (s *Server) handleSetCurrentPeriod(w http.ResponseWriter, r *http.Request) {
	schoolID, err := requireUUID(chi.URLParam(r, "schoolId"), "school_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_school_id")
		return
	}
	var req setPeriodRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if !s.authorize(w, r, model.AcademicContext{SchoolID: schoolID}, access.ManageAcademicPeriod) {
		return
	}

	period, err := s.periods.SetCurrentPeriod(r.Context(), schoolID, req.AcademicYearID, req.TermID)
	switch {
	case errors.Is(err, academic.ErrInvalidYear), errors.Is(err, academic.ErrInvalidTerm),
		errors.Is(err, academic.ErrTermYearMismatch), errors.Is(err, academic.ErrSchoolRequired):
		writeErrorMessage(w, http.StatusBadRequest, "invalid_period", err.Error())
		return
	case err != nil:
		s.serverError(w, "set current period", err)
		return
	}
	s.logger.Info("current period changed",
		zap.String("school_id", schoolID),
		zap.String("academic_year_id", period.Year.ID),
		zap.String("term_id", period.Term.ID))
	writeJSON(w, http.StatusOK, period)
}
