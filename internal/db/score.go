package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Spok95/school-erp/internal/apperr"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/scope"
)

// UpsertSubjectResult writes one (student, subject, term) row, replacing the components
// of an existing one.
func UpsertSubjectResult(ctx context.Context, q Queryer, r models.SubjectResult) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO subject_results (student_id, subject_id, term_id, class_id, first_ca, second_ca, exam_marks, remarks, teacher_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (student_id, subject_id, term_id) DO UPDATE SET
			class_id   = EXCLUDED.class_id,
			first_ca   = EXCLUDED.first_ca,
			second_ca  = EXCLUDED.second_ca,
			exam_marks = EXCLUDED.exam_marks,
			remarks    = EXCLUDED.remarks,
			teacher_id = EXCLUDED.teacher_id,
			updated_at = now()
		RETURNING id
	`, r.StudentID, r.SubjectID, r.TermID, r.ClassID, r.FirstCA, r.SecondCA, r.Exam, r.Remarks, nullID(r.TeacherID)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert subject result: %w", err)
	}
	return id, nil
}

func ListSubjectResults(ctx context.Context, q Queryer, studentID, termID int64) ([]models.SubjectResult, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, student_id, subject_id, term_id, class_id, first_ca, second_ca, exam_marks, remarks,
		       COALESCE(teacher_id, 0), updated_at
		FROM subject_results
		WHERE student_id = $1 AND term_id = $2
		ORDER BY subject_id
	`, studentID, termID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.SubjectResult
	for rows.Next() {
		var r models.SubjectResult
		if err := rows.Scan(&r.ID, &r.StudentID, &r.SubjectID, &r.TermID, &r.ClassID,
			&r.FirstCA, &r.SecondCA, &r.Exam, &r.Remarks, &r.TeacherID, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListResultStudentIDs returns the students with at least one result in (term, class).
func ListResultStudentIDs(ctx context.Context, q Queryer, sc scope.Scope, termID, classID int64) ([]int64, error) {
	pred, args := sc.StudentPredicate("st", 3)
	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT sr.student_id
		FROM subject_results sr JOIN students st ON st.id = sr.student_id
		WHERE sr.term_id = $1 AND sr.class_id = $2 AND `+pred+`
		ORDER BY sr.student_id
	`, append([]any{termID, classID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

const summaryColumns = `ts.id, ts.student_id, ts.term_id, ts.class_id, ts.total_subjects, ts.total_score,
	ts.average_score, ts.gpa, ts.position, ts.is_published, ts.published_at`

func scanSummary(r rowScanner, s *models.TermSummary, extra ...any) error {
	dest := []any{&s.ID, &s.StudentID, &s.TermID, &s.ClassID, &s.TotalSubjects, &s.TotalScore,
		&s.AverageScore, &s.GPA, &s.Position, &s.IsPublished, &s.PublishedAt}
	return r.Scan(append(dest, extra...)...)
}

// UpsertSummary stores the aggregate of an unpublished summary. A published row is left
// untouched and reported as a conflict.
func UpsertSummary(ctx context.Context, q Queryer, s models.TermSummary) (*models.TermSummary, error) {
	var out models.TermSummary
	err := scanSummary(q.QueryRowContext(ctx, `
		INSERT INTO term_summaries AS ts (student_id, term_id, class_id, total_subjects, total_score, average_score, gpa)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, term_id) DO UPDATE SET
			class_id       = EXCLUDED.class_id,
			total_subjects = EXCLUDED.total_subjects,
			total_score    = EXCLUDED.total_score,
			average_score  = EXCLUDED.average_score,
			gpa            = EXCLUDED.gpa,
			updated_at     = now()
		WHERE NOT ts.is_published
		RETURNING `+summaryColumns,
		s.StudentID, s.TermID, s.ClassID, s.TotalSubjects, s.TotalScore, s.AverageScore, s.GPA), &out)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Conflict(fmt.Sprintf("summary for student %d term %d is published", s.StudentID, s.TermID))
	}
	if err != nil {
		return nil, fmt.Errorf("upsert summary: %w", err)
	}
	return &out, nil
}

func GetSummary(ctx context.Context, q Queryer, studentID, termID int64) (*models.TermSummary, error) {
	var s models.TermSummary
	err := scanSummary(q.QueryRowContext(ctx, `
		SELECT `+summaryColumns+`
		FROM term_summaries ts
		WHERE ts.student_id = $1 AND ts.term_id = $2
	`, studentID, termID), &s)
	if err != nil {
		return nil, notFound(err, "summary for student", studentID)
	}
	return &s, nil
}

// ListClassSummaries returns every summary of (term, class), published or not.
func ListClassSummaries(ctx context.Context, q Queryer, termID, classID int64) ([]models.TermSummary, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+summaryColumns+`
		FROM term_summaries ts
		WHERE ts.term_id = $1 AND ts.class_id = $2
		ORDER BY ts.student_id
	`, termID, classID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.TermSummary
	for rows.Next() {
		var s models.TermSummary
		if err := scanSummary(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SetPositions writes ranked positions in one statement. Published rows keep theirs.
func SetPositions(ctx context.Context, q Queryer, ranked []models.TermSummary) error {
	if len(ranked) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(ranked))
	positions := make([]int64, 0, len(ranked))
	for _, s := range ranked {
		if s.Position == nil {
			continue
		}
		ids = append(ids, s.ID)
		positions = append(positions, int64(*s.Position))
	}
	_, err := q.ExecContext(ctx, `
		UPDATE term_summaries ts SET position = v.pos, updated_at = now()
		FROM unnest($1::bigint[], $2::bigint[]) AS v(id, pos)
		WHERE ts.id = v.id AND NOT ts.is_published
	`, pq.Array(ids), pq.Array(positions))
	if err != nil {
		return fmt.Errorf("set positions: %w", err)
	}
	return nil
}

type PublishFilter struct {
	TermID     int64
	ClassID    *int64
	SummaryIDs []int64
}

// PublishSummaries flips the matching unpublished summaries and returns their ids.
// Rows that were already published are not touched and not returned.
func PublishSummaries(ctx context.Context, q Queryer, sc scope.Scope, f PublishFilter) ([]int64, error) {
	var ids any
	if len(f.SummaryIDs) > 0 {
		ids = pq.Array(f.SummaryIDs)
	}
	pred, args := sc.StudentPredicate("st", 4)
	rows, err := q.QueryContext(ctx, `
		UPDATE term_summaries ts
		SET is_published = TRUE, published_at = now(), updated_at = now()
		FROM students st
		WHERE st.id = ts.student_id
		  AND ts.term_id = $1
		  AND NOT ts.is_published
		  AND ($2::bigint IS NULL OR ts.class_id = $2)
		  AND ($3::bigint[] IS NULL OR ts.id = ANY($3::bigint[]))
		  AND `+pred+`
		RETURNING ts.id
	`, append([]any{f.TermID, f.ClassID, ids}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("publish summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type SummaryFilter struct {
	TermID        *int64
	ClassID       *int64
	StudentID     *int64
	PublishedOnly bool
}

func ListSummaries(ctx context.Context, q Queryer, sc scope.Scope, f SummaryFilter) ([]models.SummaryRow, error) {
	pred, args := sc.StudentPredicate("st", 5)
	rows, err := q.QueryContext(ctx, `
		SELECT `+summaryColumns+`, st.full_name, st.admission_no
		FROM term_summaries ts JOIN students st ON st.id = ts.student_id
		WHERE ($1::bigint IS NULL OR ts.term_id = $1)
		  AND ($2::bigint IS NULL OR ts.class_id = $2)
		  AND ($3::bigint IS NULL OR ts.student_id = $3)
		  AND (NOT $4::boolean OR ts.is_published)
		  AND `+pred+`
		ORDER BY ts.term_id, ts.class_id, ts.position NULLS LAST, ts.student_id
	`, append([]any{f.TermID, f.ClassID, f.StudentID, f.PublishedOnly}, args...)...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.SummaryRow
	for rows.Next() {
		var r models.SummaryRow
		if err := scanSummary(rows, &r.TermSummary, &r.StudentName, &r.AdmissionNo); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// BroadsheetCell is one subject result of one student, with display names.
type BroadsheetCell struct {
	StudentID   int64
	SubjectID   int64
	SubjectName string
	Result      models.SubjectResult
}

func ListClassResults(ctx context.Context, q Queryer, sc scope.Scope, termID, classID int64) ([]BroadsheetCell, error) {
	pred, args := sc.StudentPredicate("st", 3)
	rows, err := q.QueryContext(ctx, `
		SELECT sr.student_id, sr.subject_id, sub.name, sr.first_ca, sr.second_ca, sr.exam_marks, sr.remarks
		FROM subject_results sr
		JOIN students st ON st.id = sr.student_id
		JOIN subjects sub ON sub.id = sr.subject_id
		WHERE sr.term_id = $1 AND sr.class_id = $2 AND `+pred+`
		ORDER BY sub.name, sr.student_id
	`, append([]any{termID, classID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []BroadsheetCell
	for rows.Next() {
		var c BroadsheetCell
		if err := rows.Scan(&c.StudentID, &c.SubjectID, &c.SubjectName,
			&c.Result.FirstCA, &c.Result.SecondCA, &c.Result.Exam, &c.Result.Remarks); err != nil {
			return nil, err
		}
		c.Result.StudentID, c.Result.SubjectID = c.StudentID, c.SubjectID
		c.Result.TermID, c.Result.ClassID = termID, classID
		out = append(out, c)
	}
	return out, rows.Err()
}
