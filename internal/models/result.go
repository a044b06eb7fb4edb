package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubjectResult holds the assessment components of one subject for one term.
// A nil component was not taken.
type SubjectResult struct {
	ID        int64            `db:"id" json:"id"`
	StudentID int64            `db:"student_id" json:"student_id"`
	SubjectID int64            `db:"subject_id" json:"subject_id"`
	TermID    int64            `db:"term_id" json:"term_id"`
	ClassID   int64            `db:"class_id" json:"class_id"`
	FirstCA   *decimal.Decimal `db:"first_ca" json:"first_ca"`
	SecondCA  *decimal.Decimal `db:"second_ca" json:"second_ca"`
	Exam      *decimal.Decimal `db:"exam_marks" json:"exam_marks"`
	Remarks   string           `db:"remarks" json:"remarks"`
	TeacherID int64            `db:"teacher_id" json:"teacher_id"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// Components returns the assessment scores that are present.
func (r SubjectResult) Components() []decimal.Decimal {
	out := make([]decimal.Decimal, 0, 3)
	for _, c := range []*decimal.Decimal{r.FirstCA, r.SecondCA, r.Exam} {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}

type TermSummary struct {
	ID            int64           `db:"id" json:"id"`
	StudentID     int64           `db:"student_id" json:"student_id"`
	TermID        int64           `db:"term_id" json:"term_id"`
	ClassID       int64           `db:"class_id" json:"class_id"`
	TotalSubjects int             `db:"total_subjects" json:"total_subjects"`
	TotalScore    decimal.Decimal `db:"total_score" json:"total_score"`
	AverageScore  decimal.Decimal `db:"average_score" json:"average_score"`
	GPA           decimal.Decimal `db:"gpa" json:"gpa"`
	Position      *int            `db:"position" json:"position"`
	IsPublished   bool            `db:"is_published" json:"is_published"`
	PublishedAt   *time.Time      `db:"published_at" json:"published_at"`
}

// SummaryRow is a TermSummary joined with the student's display fields.
type SummaryRow struct {
	TermSummary
	StudentName string `db:"full_name" json:"student_name"`
	AdmissionNo string `db:"admission_no" json:"admission_no"`
}
