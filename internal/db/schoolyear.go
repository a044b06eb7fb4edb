package db

import (
	"context"
	"fmt"
	"time"

	"github.com/Spok95/school-erp/internal/apperr"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/scope"
)

// SessionStartMonth is the month an academic session begins in.
const SessionStartMonth = time.September

// SessionBoundsByStartYear returns the default bounds of the session starting in startYear:
// 1 September startYear to 31 July of the following year.
func SessionBoundsByStartYear(startYear int, loc *time.Location) (time.Time, time.Time) {
	from := time.Date(startYear, SessionStartMonth, 1, 0, 0, 0, 0, loc)
	to := time.Date(startYear+1, time.July, 31, 0, 0, 0, 0, loc)
	return from, to
}

// SessionStartYear is the start year of the session containing t.
func SessionStartYear(t time.Time) int {
	if t.Month() < SessionStartMonth {
		return t.Year() - 1
	}
	return t.Year()
}

// SessionLabel formats a session name such as "2024/2025".
func SessionLabel(startYear int) string {
	return fmt.Sprintf("%d/%d", startYear, startYear+1)
}

func CreateSession(ctx context.Context, q Queryer, s models.AcademicSession) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO academic_sessions (school_id, name, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING id
	`, s.SchoolID, s.Name, s.StartDate, s.EndDate).Scan(&id)
	if err != nil {
		if uniqueViolation(err) {
			return 0, fmt.Errorf("session %q already exists: %w", s.Name, apperr.ErrConflict)
		}
		return 0, fmt.Errorf("insert session: %w", err)
	}
	return id, nil
}

func GetSession(ctx context.Context, q Queryer, sc scope.Scope, id int64) (*models.AcademicSession, error) {
	pred, args := sc.SchoolPredicate("a.school_id", 2)
	var s models.AcademicSession
	err := q.QueryRowContext(ctx, `
		SELECT a.id, a.school_id, a.name, a.start_date, a.end_date, a.is_active
		FROM academic_sessions a
		WHERE a.id = $1 AND `+pred, append([]any{id}, args...)...).
		Scan(&s.ID, &s.SchoolID, &s.Name, &s.StartDate, &s.EndDate, &s.IsActive)
	if err != nil {
		return nil, notFound(err, "session", id)
	}
	return &s, nil
}

func ListSessions(ctx context.Context, q Queryer, sc scope.Scope, schoolID int64) ([]models.AcademicSession, error) {
	pred, args := sc.SchoolPredicate("a.school_id", 2)
	rows, err := q.QueryContext(ctx, `
		SELECT a.id, a.school_id, a.name, a.start_date, a.end_date, a.is_active
		FROM academic_sessions a
		WHERE a.school_id = $1 AND `+pred+`
		ORDER BY a.start_date
	`, append([]any{schoolID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.AcademicSession
	for rows.Next() {
		var s models.AcademicSession
		if err := rows.Scan(&s.ID, &s.SchoolID, &s.Name, &s.StartDate, &s.EndDate, &s.IsActive); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ActivateSession must run inside a transaction. Siblings are cleared first so the
// one-active-per-school index never sees two active rows.
func ActivateSession(ctx context.Context, q Queryer, schoolID, sessionID int64) error {
	if _, err := q.ExecContext(ctx, `
		UPDATE academic_sessions SET is_active = FALSE
		WHERE school_id = $1 AND id <> $2 AND is_active
	`, schoolID, sessionID); err != nil {
		return fmt.Errorf("deactivate sessions: %w", err)
	}
	if _, err := q.ExecContext(ctx, `
		UPDATE academic_sessions SET is_active = TRUE WHERE id = $1
	`, sessionID); err != nil {
		return fmt.Errorf("activate session: %w", err)
	}
	return nil
}
