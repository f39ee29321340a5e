package http

import (
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"edufam/academics/internal/access"
	"edufam/academics/internal/analytics"
	"edufam/academics/internal/metrics"
	"edufam/academics/internal/model"
)

const dateLayout = "2006-01-02"

func (s *Server) handleGradeAnalytics(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	q := r.URL.Query()
	query, ok := gradeQueryFromValues(w, q)
	if !ok {
		return
	}
	if !s.authorize(w, r, model.AcademicContext{SchoolID: query.SchoolID, ClassID: query.ClassID}, access.ViewAnalytics) {
		return
	}

	params := q.Encode()
	var summary analytics.GradesSummary
	hit, err := s.summaries.Get(r.Context(), query.SchoolID, "grades", params, &summary)
	if err != nil {
		s.logger.Warn("summary cache read failed", zap.Error(err))
	}
	if s.summaries.Enabled() {
		metrics.CacheLookup(hit)
	}
	if hit {
		writeJSON(w, http.StatusOK, summary)
		return
	}

	records, err := s.store.ListGradeRecords(r.Context(), query)
	if err != nil {
		s.serverError(w, "list grades", err)
		return
	}
	var filter *analytics.GradeFilter
	if examType := q.Get("examType"); examType != "" {
		filter = &analytics.GradeFilter{ExamType: examType}
	}
	summary = analytics.SummarizeGrades(records, filter, s.policy)
	if err := s.summaries.Set(r.Context(), query.SchoolID, "grades", params, summary); err != nil {
		s.logger.Warn("summary cache write failed", zap.Error(err))
	}
	metrics.SummaryDuration("grades", started)
	writeJSON(w, http.StatusOK, summary)
}

func gradeQueryFromValues(w http.ResponseWriter, q url.Values) (model.GradeQuery, bool) {
	schoolID, err := requireUUID(q.Get("schoolId"), "school_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_school_id")
		return model.GradeQuery{}, false
	}
	classID, err := optionalUUID(q.Get("classId"), "class_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_class_id")
		return model.GradeQuery{}, false
	}
	subjectID, err := optionalUUID(q.Get("subjectId"), "subject_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_subject_id")
		return model.GradeQuery{}, false
	}
	studentID, err := optionalUUID(q.Get("studentId"), "student_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_student_id")
		return model.GradeQuery{}, false
	}
	return model.GradeQuery{
		SchoolID:     schoolID,
		AcademicYear: q.Get("academicYear"),
		Term:         q.Get("term"),
		ClassID:      classID,
		SubjectID:    subjectID,
		StudentID:    studentID,
	}, true
}

func (s *Server) handleAttendanceAnalytics(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	q := r.URL.Query()
	schoolID, err := requireUUID(q.Get("schoolId"), "school_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_school_id")
		return
	}
	classID, err := optionalUUID(q.Get("classId"), "class_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_class_id")
		return
	}
	from, err := parseDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_from")
		return
	}
	to, err := parseDate(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_to")
		return
	}
	if !s.authorize(w, r, model.AcademicContext{SchoolID: schoolID, ClassID: classID}, access.ViewAnalytics) {
		return
	}

	records, err := s.store.ListAttendanceRecords(r.Context(), model.AttendanceQuery{
		SchoolID:     schoolID,
		AcademicYear: q.Get("academicYear"),
		Term:         q.Get("term"),
		ClassID:      classID,
		From:         from,
		To:           to,
	})
	if err != nil {
		s.serverError(w, "list attendance", err)
		return
	}
	summary := analytics.SummarizeAttendance(records)
	metrics.SummaryDuration("attendance", started)
	writeJSON(w, http.StatusOK, summary)
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
