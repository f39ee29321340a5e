package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"edufam/academics/internal/access"
	"edufam/academics/internal/db"
	"edufam/academics/internal/model"
	"edufam/academics/internal/workflow"
)

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req workflow.EnrollRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	schoolID, ok := s.authorizeClasses(w, r, access.ManageEnrollment, req.ClassID)
	if !ok {
		return
	}
	req.SchoolID = schoolID
	enrollment, err := s.workflow.Enroll(r.Context(), req)
	if err != nil {
		s.workflowError(w, "enroll", err)
		return
	}
	writeJSON(w, http.StatusCreated, enrollment)
}

func (s *Server) handleAssignSubject(w http.ResponseWriter, r *http.Request) {
	var req workflow.AssignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	schoolID, ok := s.authorizeClasses(w, r, access.ManageEnrollment, req.ClassID)
	if !ok {
		return
	}
	req.SchoolID = schoolID
	assignment, err := s.workflow.AssignSubject(r.Context(), req)
	if err != nil {
		s.workflowError(w, "assign subject", err)
		return
	}
	writeJSON(w, http.StatusCreated, assignment)
}

func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request) {
	var req workflow.PromoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	schoolID, ok := s.authorizeClasses(w, r, access.ManageEnrollment, req.FromClassID, req.ToClassID)
	if !ok {
		return
	}
	req.SchoolID = schoolID
	result, err := s.workflow.Promote(r.Context(), req)
	if err != nil {
		s.workflowError(w, "promote", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type gradeStatusRequest struct {
	Status string `json:"status"`
}

// handleGradeStatus gates submissions (draft, pending_approval) as enter_grades and every
// approval step as approve_grades.
func (s *Server) handleGradeStatus(w http.ResponseWriter, r *http.Request) {
	gradeID, err := requireUUID(chi.URLParam(r, "gradeId"), "grade_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_grade_id")
		return
	}
	var req gradeStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	to := model.GradeStatus(req.Status)
	if to.Normalize() != to {
		writeError(w, http.StatusBadRequest, "invalid_status")
		return
	}

	grade, err := s.store.GetGradeRecord(r.Context(), gradeID)
	if errors.Is(err, db.ErrNotFound) {
		writeErrorMessage(w, http.StatusNotFound, workflow.ErrGradeNotFound, "grade not found")
		return
	}
	if err != nil {
		s.serverError(w, "get grade", err)
		return
	}

	op := access.ApproveGrades
	if to == model.GradeDraft || to == model.GradePendingApproval {
		op = access.EnterGrades
	}
	resolved, err := s.resolver.Resolve(r.Context(), model.AcademicContext{
		SchoolID:  grade.SchoolID,
		ClassID:   grade.ClassID,
		SubjectID: grade.SubjectID,
	})
	if err != nil {
		s.serverError(w, "resolve context", err)
		return
	}
	if !s.authorize(w, r, resolved.Context, op) {
		return
	}

	updated, err := s.workflow.TransitionGradeStatus(r.Context(), gradeID, to)
	if err != nil {
		s.workflowError(w, "grade status", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// authorizeClasses scopes a workflow call to the caller's own school and each named class, and
// returns that school for the workflow to check every other referenced row against.
func (s *Server) authorizeClasses(w http.ResponseWriter, r *http.Request, op access.Operation, classIDs ...string) (string, bool) {
	schoolID, ok := s.callerSchool(w, r)
	if !ok {
		return "", false
	}
	for _, classID := range classIDs {
		if !s.authorize(w, r, model.AcademicContext{SchoolID: schoolID, ClassID: classID}, op) {
			return "", false
		}
	}
	return schoolID, true
}

func (s *Server) workflowError(w http.ResponseWriter, action string, err error) {
	var domain *workflow.Error
	if !errors.As(err, &domain) {
		s.serverError(w, action, err)
		return
	}
	status := http.StatusBadRequest
	switch domain.Code {
	case workflow.ErrAlreadyEnrolled, workflow.ErrAlreadyAssigned, workflow.ErrStatusConflict, workflow.ErrInvalidTransition:
		status = http.StatusConflict
	case workflow.ErrGradeNotFound, workflow.ErrNoStudents:
		status = http.StatusNotFound
	}
	writeJSON(w, status, domain)
}
