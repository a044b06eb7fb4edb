package db

import (
	"context"
	"fmt"

	"github.com/Spok95/school-erp/internal/apperr"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/scope"
)

const termColumns = `t.id, t.session_id, a.school_id, t.name, t.start_date, t.end_date, t.is_active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTerm(r rowScanner) (models.Term, error) {
	var t models.Term
	err := r.Scan(&t.ID, &t.SessionID, &t.SchoolID, &t.Name, &t.StartDate, &t.EndDate, &t.IsActive)
	return t, err
}

func CreateTerm(ctx context.Context, q Queryer, t models.Term) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO terms (session_id, name, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING id
	`, t.SessionID, t.Name, t.StartDate, t.EndDate).Scan(&id)
	if err != nil {
		if uniqueViolation(err) {
			return 0, fmt.Errorf("term %q already exists: %w", t.Name, apperr.ErrConflict)
		}
		return 0, fmt.Errorf("insert term: %w", err)
	}
	return id, nil
}

func GetTerm(ctx context.Context, q Queryer, sc scope.Scope, id int64) (*models.Term, error) {
	pred, args := sc.SchoolPredicate("a.school_id", 2)
	t, err := scanTerm(q.QueryRowContext(ctx, `
		SELECT `+termColumns+`
		FROM terms t JOIN academic_sessions a ON a.id = t.session_id
		WHERE t.id = $1 AND `+pred, append([]any{id}, args...)...))
	if err != nil {
		return nil, notFound(err, "term", id)
	}
	return &t, nil
}

func ListTerms(ctx context.Context, q Queryer, sessionID int64) ([]models.Term, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+termColumns+`
		FROM terms t JOIN academic_sessions a ON a.id = t.session_id
		WHERE t.session_id = $1
		ORDER BY t.start_date
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Term
	for rows.Next() {
		t, err := scanTerm(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetActiveTerm returns the active term of the school's active session.
func GetActiveTerm(ctx context.Context, q Queryer, schoolID int64) (*models.Term, error) {
	t, err := scanTerm(q.QueryRowContext(ctx, `
		SELECT `+termColumns+`
		FROM terms t JOIN academic_sessions a ON a.id = t.session_id
		WHERE a.school_id = $1 AND a.is_active AND t.is_active
	`, schoolID))
	if err != nil {
		return nil, notFound(err, "active term for school", schoolID)
	}
	return &t, nil
}

// ActivateTerm must run inside a transaction.
func ActivateTerm(ctx context.Context, q Queryer, sessionID, termID int64) error {
	if _, err := q.ExecContext(ctx, `
		UPDATE terms SET is_active = FALSE
		WHERE session_id = $1 AND id <> $2 AND is_active
	`, sessionID, termID); err != nil {
		return fmt.Errorf("deactivate terms: %w", err)
	}
	if _, err := q.ExecContext(ctx, `
		UPDATE terms SET is_active = TRUE WHERE id = $1
	`, termID); err != nil {
		return fmt.Errorf("activate term: %w", err)
	}
	return nil
}
