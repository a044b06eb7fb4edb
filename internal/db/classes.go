package db

import (
	"context"
	"fmt"

	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/scope"
)

func CreateClass(ctx context.Context, q Queryer, c models.Class) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO classes (school_id, session_id, name, level)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, c.SchoolID, c.SessionID, c.Name, c.Level).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert class: %w", err)
	}
	return id, nil
}

func GetClass(ctx context.Context, q Queryer, sc scope.Scope, id int64) (*models.Class, error) {
	pred, args := sc.SchoolPredicate("c.school_id", 2)
	var c models.Class
	err := q.QueryRowContext(ctx, `
		SELECT c.id, c.school_id, c.session_id, c.name, c.level
		FROM classes c
		WHERE c.id = $1 AND `+pred, append([]any{id}, args...)...).
		Scan(&c.ID, &c.SchoolID, &c.SessionID, &c.Name, &c.Level)
	if err != nil {
		return nil, notFound(err, "class", id)
	}
	return &c, nil
}

func CreateSubject(ctx context.Context, q Queryer, s models.Subject) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO subjects (school_id, name, code)
		VALUES ($1, $2, $3)
		RETURNING id
	`, s.SchoolID, s.Name, s.Code).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert subject: %w", err)
	}
	return id, nil
}

func GetSubject(ctx context.Context, q Queryer, sc scope.Scope, id int64) (*models.Subject, error) {
	pred, args := sc.SchoolPredicate("s.school_id", 2)
	var s models.Subject
	err := q.QueryRowContext(ctx, `
		SELECT s.id, s.school_id, s.name, s.code
		FROM subjects s
		WHERE s.id = $1 AND `+pred, append([]any{id}, args...)...).
		Scan(&s.ID, &s.SchoolID, &s.Name, &s.Code)
	if err != nil {
		return nil, notFound(err, "subject", id)
	}
	return &s, nil
}
