package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"edufam/academics/internal/model"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

func (q *Queries) GetSchool(ctx context.Context, id string) (model.School, error) {
	var school model.School
	err := q.db.QueryRow(ctx, `
    SELECT id::text, name FROM schools WHERE id = $1
  `, pgUUIDFromString(id)).Scan(&school.ID, &school.Name)
	return school, mapErr(err)
}

func (q *Queries) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	var (
		profile  model.Profile
		schoolID *string
		role     string
	)
	err := q.db.QueryRow(ctx, `
    SELECT user_id::text, school_id::text, role, full_name
    FROM profiles
    WHERE user_id = $1
  `, pgUUIDFromString(userID)).Scan(&profile.UserID, &schoolID, &role, &profile.FullName)
	if err != nil {
		return profile, mapErr(err)
	}
	if schoolID != nil {
		profile.SchoolID = *schoolID
	}
	profile.Role, err = model.ParseRole(role)
	return profile, err
}

func (q *Queries) GetStudent(ctx context.Context, id string) (model.Student, error) {
	var student model.Student
	err := q.db.QueryRow(ctx, `
    SELECT id::text, school_id::text, full_name, is_active FROM students WHERE id = $1
  `, pgUUIDFromString(id)).Scan(&student.ID, &student.SchoolID, &student.FullName, &student.IsActive)
	return student, mapErr(err)
}

const academicYearColumns = `id::text, school_id::text, name, start_date, end_date, is_current, curriculum_type`

func scanAcademicYear(row pgx.Row) (model.AcademicYear, error) {
	var (
		year       model.AcademicYear
		curriculum *string
	)
	err := row.Scan(&year.ID, &year.SchoolID, &year.Name, &year.StartDate, &year.EndDate, &year.IsCurrent, &curriculum)
	if err != nil {
		return year, mapErr(err)
	}
	year.CurriculumType = curriculumPtr(curriculum)
	return year, nil
}

func (q *Queries) GetAcademicYear(ctx context.Context, id string) (model.AcademicYear, error) {
	return scanAcademicYear(q.db.QueryRow(ctx,
		`SELECT `+academicYearColumns+` FROM academic_years WHERE id = $1`, pgUUIDFromString(id)))
}

func (q *Queries) GetCurrentAcademicYear(ctx context.Context, schoolID string) (model.AcademicYear, error) {
	return scanAcademicYear(q.db.QueryRow(ctx, `
    SELECT `+academicYearColumns+`
    FROM academic_years
    WHERE school_id = $1 AND is_current
    ORDER BY start_date DESC
    LIMIT 1
  `, pgUUIDFromString(schoolID)))
}

const academicTermColumns = `id::text, school_id::text, academic_year_id::text, name, start_date, end_date, is_current, curriculum_type`

func scanAcademicTerm(row pgx.Row) (model.AcademicTerm, error) {
	var (
		term       model.AcademicTerm
		curriculum *string
	)
	err := row.Scan(&term.ID, &term.SchoolID, &term.AcademicYearID, &term.Name, &term.StartDate, &term.EndDate, &term.IsCurrent, &curriculum)
	if err != nil {
		return term, mapErr(err)
	}
	term.CurriculumType = curriculumPtr(curriculum)
	return term, nil
}

func (q *Queries) GetAcademicTerm(ctx context.Context, id string) (model.AcademicTerm, error) {
	return scanAcademicTerm(q.db.QueryRow(ctx,
		`SELECT `+academicTermColumns+` FROM academic_terms WHERE id = $1`, pgUUIDFromString(id)))
}

func (q *Queries) GetCurrentAcademicTerm(ctx context.Context, schoolID string) (model.AcademicTerm, error) {
	return scanAcademicTerm(q.db.QueryRow(ctx, `
    SELECT `+academicTermColumns+`
    FROM academic_terms
    WHERE school_id = $1 AND is_current
    ORDER BY start_date DESC
    LIMIT 1
  `, pgUUIDFromString(schoolID)))
}

// MarkCurrentAcademicYear clears the flag on every other year of the school before setting it,
// so the one-current-per-school index is never violated mid-statement.
func (q *Queries) MarkCurrentAcademicYear(ctx context.Context, schoolID, yearID string) error {
	if _, err := q.db.Exec(ctx, `
    UPDATE academic_years SET is_current = false
    WHERE school_id = $1 AND is_current AND id <> $2
  `, pgUUIDFromString(schoolID), pgUUIDFromString(yearID)); err != nil {
		return mapErr(err)
	}
	tag, err := q.db.Exec(ctx, `
    UPDATE academic_years SET is_current = true WHERE school_id = $1 AND id = $2
  `, pgUUIDFromString(schoolID), pgUUIDFromString(yearID))
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Queries) MarkCurrentAcademicTerm(ctx context.Context, schoolID, termID string) error {
	if _, err := q.db.Exec(ctx, `
    UPDATE academic_terms SET is_current = false
    WHERE school_id = $1 AND is_current AND id <> $2
  `, pgUUIDFromString(schoolID), pgUUIDFromString(termID)); err != nil {
		return mapErr(err)
	}
	tag, err := q.db.Exec(ctx, `
    UPDATE academic_terms SET is_current = true WHERE school_id = $1 AND id = $2
  `, pgUUIDFromString(schoolID), pgUUIDFromString(termID))
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const classColumns = `id::text, school_id::text, name, curriculum_type, is_active`

func scanClass(row pgx.Row) (model.Class, error) {
	var (
		class      model.Class
		curriculum string
	)
	if err := row.Scan(&class.ID, &class.SchoolID, &class.Name, &curriculum, &class.IsActive); err != nil {
		return class, mapErr(err)
	}
	class.CurriculumType = model.CurriculumType(curriculum)
	return class, nil
}

func (q *Queries) GetClass(ctx context.Context, id string) (model.Class, error) {
	return scanClass(q.db.QueryRow(ctx, `SELECT `+classColumns+` FROM classes WHERE id = $1`, pgUUIDFromString(id)))
}

func (q *Queries) ListClassesByIDs(ctx context.Context, ids []string) ([]model.Class, error) {
	rows, err := q.db.Query(ctx, `SELECT `+classColumns+` FROM classes WHERE id = ANY($1)`, pgUUIDs(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	classes := make([]model.Class, 0, len(ids))
	for rows.Next() {
		class, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, class)
	}
	return classes, rows.Err()
}

func (q *Queries) GetSubject(ctx context.Context, id string) (model.Subject, error) {
	var (
		subject    model.Subject
		curriculum *string
	)
	err := q.db.QueryRow(ctx, `
    SELECT id::text, school_id::text, class_id::text, name, curriculum_type
    FROM subjects
    WHERE id = $1
  `, pgUUIDFromString(id)).Scan(&subject.ID, &subject.SchoolID, &subject.ClassID, &subject.Name, &curriculum)
	if err != nil {
		return subject, mapErr(err)
	}
	subject.CurriculumType = curriculumPtr(curriculum)
	return subject, nil
}

func (q *Queries) HasActiveTeacherAssignment(ctx context.Context, key AssignmentKey) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM teacher_assignments
      WHERE teacher_id = $1 AND class_id = $2 AND subject_id = $3
        AND academic_year_id = $4 AND term_id = $5 AND is_active
    )
  `, pgUUIDFromString(key.TeacherID), pgUUIDFromString(key.ClassID), pgUUIDFromString(key.SubjectID),
		pgUUIDFromString(key.AcademicYearID), pgUUIDFromString(key.TermID)).Scan(&exists)
	return exists, err
}

const assignmentColumns = `id::text, teacher_id::text, class_id::text, subject_id::text, academic_year_id::text, term_id::text, is_active, assigned_at`

func (q *Queries) FindActiveSubjectAssignment(ctx context.Context, subjectID, classID, yearID, termID string) (model.TeacherAssignment, error) {
	var a model.TeacherAssignment
	err := q.db.QueryRow(ctx, `
    SELECT `+assignmentColumns+`
    FROM teacher_assignments
    WHERE subject_id = $1 AND class_id = $2 AND academic_year_id = $3 AND term_id = $4 AND is_active
    LIMIT 1
  `, pgUUIDFromString(subjectID), pgUUIDFromString(classID), pgUUIDFromString(yearID), pgUUIDFromString(termID)).
		Scan(&a.ID, &a.TeacherID, &a.ClassID, &a.SubjectID, &a.AcademicYearID, &a.TermID, &a.IsActive, &a.AssignedAt)
	return a, mapErr(err)
}

func (q *Queries) CreateTeacherAssignment(ctx context.Context, a model.TeacherAssignment) (model.TeacherAssignment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := q.db.Exec(ctx, `
    INSERT INTO teacher_assignments (id, teacher_id, class_id, subject_id, academic_year_id, term_id, is_active, assigned_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
  `, pgUUIDFromString(a.ID), pgUUIDFromString(a.TeacherID), pgUUIDFromString(a.ClassID), pgUUIDFromString(a.SubjectID),
		pgUUIDFromString(a.AcademicYearID), pgUUIDFromString(a.TermID), a.IsActive, a.AssignedAt)
	return a, mapErr(err)
}

const enrollmentColumns = `id::text, student_id::text, class_id::text, academic_year_id::text, term_id::text, is_active, enrolled_at, deactivated_at`

func scanEnrollment(row pgx.Row) (model.Enrollment, error) {
	var e model.Enrollment
	err := row.Scan(&e.ID, &e.StudentID, &e.ClassID, &e.AcademicYearID, &e.TermID, &e.IsActive, &e.EnrolledAt, &e.DeactivatedAt)
	return e, mapErr(err)
}

func (q *Queries) FindActiveEnrollment(ctx context.Context, key EnrollmentKey) (model.Enrollment, error) {
	return scanEnrollment(q.db.QueryRow(ctx, `
    SELECT `+enrollmentColumns+`
    FROM enrollments
    WHERE student_id = $1 AND class_id = $2 AND academic_year_id = $3 AND term_id = $4 AND is_active
    LIMIT 1
  `, pgUUIDFromString(key.StudentID), pgUUIDFromString(key.ClassID), pgUUIDFromString(key.AcademicYearID), pgUUIDFromString(key.TermID)))
}

func (q *Queries) CreateEnrollment(ctx context.Context, e model.Enrollment) (model.Enrollment, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := q.db.Exec(ctx, `
    INSERT INTO enrollments (id, student_id, class_id, academic_year_id, term_id, is_active, enrolled_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
  `, pgUUIDFromString(e.ID), pgUUIDFromString(e.StudentID), pgUUIDFromString(e.ClassID),
		pgUUIDFromString(e.AcademicYearID), pgUUIDFromString(e.TermID), e.IsActive, e.EnrolledAt)
	return e, mapErr(err)
}

// LockActiveEnrollments selects the active enrollments of a class FOR UPDATE.
// An empty studentIDs slice selects the whole class.
func (q *Queries) LockActiveEnrollments(ctx context.Context, classID string, studentIDs []string) ([]model.Enrollment, error) {
	sql := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE class_id = $1 AND is_active`
	args := []interface{}{pgUUIDFromString(classID)}
	if len(studentIDs) > 0 {
		sql += ` AND student_id = ANY($2)`
		args = append(args, pgUUIDs(studentIDs))
	}
	sql += ` ORDER BY enrolled_at, id FOR UPDATE`

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *Queries) DeactivateEnrollments(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.db.Exec(ctx, `
    UPDATE enrollments SET is_active = false, deactivated_at = $2
    WHERE id = ANY($1) AND is_active
  `, pgUUIDs(ids), at.UTC())
	return mapErr(err)
}

const gradeColumns = `id::text, student_id::text, subject_id::text, class_id::text, school_id::text,
  score, max_score, percentage, letter_grade, status, term, exam_type, academic_year, created_at`

func scanGrade(row pgx.Row) (model.GradeRecord, error) {
	var (
		g      model.GradeRecord
		status string
	)
	err := row.Scan(&g.ID, &g.StudentID, &g.SubjectID, &g.ClassID, &g.SchoolID, &g.Score, &g.MaxScore, &g.Percentage,
		&g.LetterGrade, &status, &g.Term, &g.ExamType, &g.AcademicYear, &g.CreatedAt)
	g.Status = model.GradeStatus(status)
	return g, mapErr(err)
}

// ListGradeRecords returns rows oldest first; the trend heuristics depend on that order.
func (q *Queries) ListGradeRecords(ctx context.Context, query model.GradeQuery) ([]model.GradeRecord, error) {
	where := newFilter()
	where.uuid("school_id", query.SchoolID)
	where.text("academic_year", query.AcademicYear)
	where.text("term", query.Term)
	where.uuid("class_id", query.ClassID)
	where.uuid("subject_id", query.SubjectID)
	where.uuid("student_id", query.StudentID)

	rows, err := q.db.Query(ctx, `SELECT `+gradeColumns+` FROM grades`+where.sql()+` ORDER BY created_at, id`, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.GradeRecord
	for rows.Next() {
		g, err := scanGrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (q *Queries) GetGradeRecord(ctx context.Context, id string) (model.GradeRecord, error) {
	return scanGrade(q.db.QueryRow(ctx, `SELECT `+gradeColumns+` FROM grades WHERE id = $1`, pgUUIDFromString(id)))
}

// UpdateGradeStatus is a compare-and-set on the current status.
func (q *Queries) UpdateGradeStatus(ctx context.Context, id string, from, to model.GradeStatus) error {
	tag, err := q.db.Exec(ctx, `
    UPDATE grades SET status = $3, updated_at = now()
    WHERE id = $1 AND status = $2
  `, pgUUIDFromString(id), string(from), string(to))
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (q *Queries) ListAttendanceRecords(ctx context.Context, query model.AttendanceQuery) ([]model.AttendanceRecord, error) {
	where := newFilter()
	where.uuid("school_id", query.SchoolID)
	where.text("academic_year", query.AcademicYear)
	where.text("term", query.Term)
	where.uuid("class_id", query.ClassID)
	if query.From != nil {
		where.add("date >= ", *query.From)
	}
	if query.To != nil {
		where.add("date <= ", *query.To)
	}

	rows, err := q.db.Query(ctx, `
    SELECT id::text, student_id::text, class_id::text, school_id::text, date, status, academic_year, term
    FROM attendance`+where.sql()+` ORDER BY date, id`, where.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AttendanceRecord
	for rows.Next() {
		var (
			a      model.AttendanceRecord
			status string
		)
		if err := rows.Scan(&a.ID, &a.StudentID, &a.ClassID, &a.SchoolID, &a.Date, &status, &a.AcademicYear, &a.Term); err != nil {
			return nil, err
		}
		a.Status = model.AttendanceStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

type filter struct {
	clauses []string
	args    []interface{}
}

func newFilter() *filter { return &filter{} }

func (f *filter) add(clause string, value interface{}) {
	f.args = append(f.args, value)
	f.clauses = append(f.clauses, fmt.Sprintf("%s$%d", clause, len(f.args)))
}

func (f *filter) uuid(column, value string) {
	if value != "" {
		f.add(column+" = ", pgUUIDFromString(value))
	}
}

func (f *filter) text(column, value string) {
	if value != "" {
		f.add(column+" = ", value)
	}
}

func (f *filter) sql() string {
	if len(f.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}

func curriculumPtr(value *string) *model.CurriculumType {
	if value == nil || *value == "" {
		return nil
	}
	c := model.CurriculumType(*value)
	return &c
}

// pgUUIDFromString yields an invalid (NULL) UUID for malformed input, which matches no rows.
func pgUUIDFromString(id string) pgtype.UUID {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

func pgUUIDs(ids []string) []pgtype.UUID {
	out := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		out = append(out, pgUUIDFromString(id))
	}
	return out
}
