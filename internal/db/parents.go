package db

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Spok95/school-erp/internal/ctxutil"
)

// Recipient is who hears about a student: the student's parent and, when linked, the
// student's own account.
type Recipient struct {
	StudentID     int64
	StudentName   string
	ParentChatID  *int64
	StudentChatID *int64
}

// ChatIDs lists the known telegram chats, parent first.
func (r Recipient) ChatIDs() []int64 {
	var out []int64
	if r.ParentChatID != nil {
		out = append(out, *r.ParentChatID)
	}
	if r.StudentChatID != nil {
		out = append(out, *r.StudentChatID)
	}
	return out
}

type PublishedSummary struct {
	Recipient
	TermName     string
	AverageScore decimal.Decimal
	Position     *int
	ClassSize    int
}

func GetStudentRecipient(ctx context.Context, q Queryer, studentID int64) (*Recipient, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var r Recipient
	err := q.QueryRowContext(ctx, `
		SELECT st.id, st.full_name, p.telegram_id, u.telegram_id
		FROM students st
		LEFT JOIN users p ON p.id = st.parent_id AND p.is_active
		LEFT JOIN users u ON u.id = st.user_id AND u.is_active
		WHERE st.id = $1
	`, studentID).Scan(&r.StudentID, &r.StudentName, &r.ParentChatID, &r.StudentChatID)
	if err != nil {
		return nil, notFound(err, "student", studentID)
	}
	return &r, nil
}

func GetPublishedSummary(ctx context.Context, q Queryer, summaryID int64) (*PublishedSummary, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var s PublishedSummary
	err := q.QueryRowContext(ctx, `
		SELECT st.id, st.full_name, p.telegram_id, u.telegram_id,
		       t.name, ts.average_score, ts.position,
		       (SELECT count(*) FROM term_summaries x WHERE x.term_id = ts.term_id AND x.class_id = ts.class_id)
		FROM term_summaries ts
		JOIN students st ON st.id = ts.student_id
		JOIN terms t ON t.id = ts.term_id
		LEFT JOIN users p ON p.id = st.parent_id AND p.is_active
		LEFT JOIN users u ON u.id = st.user_id AND u.is_active
		WHERE ts.id = $1 AND ts.is_published
	`, summaryID).Scan(&s.StudentID, &s.StudentName, &s.ParentChatID, &s.StudentChatID,
		&s.TermName, &s.AverageScore, &s.Position, &s.ClassSize)
	if err != nil {
		return nil, notFound(err, "published summary", summaryID)
	}
	return &s, nil
}
