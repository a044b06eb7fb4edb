package db

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/scope"
)

func CreateUser(ctx context.Context, q Queryer, u models.User) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO users (name, role, school_id, telegram_id, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, u.Name, string(u.Role), u.SchoolID, u.TelegramID, u.IsActive).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return id, nil
}

func GetUser(ctx context.Context, q Queryer, id int64) (*models.User, error) {
	var u models.User
	err := q.QueryRowContext(ctx, `
		SELECT id, name, role, school_id, telegram_id, is_active
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Role, &u.SchoolID, &u.TelegramID, &u.IsActive)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return &u, nil
}

func CreateSchool(ctx context.Context, q Queryer, s models.School) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO schools (name, owner_id) VALUES ($1, $2) RETURNING id
	`, s.Name, s.OwnerID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert school: %w", err)
	}
	return id, nil
}

func CreateStudent(ctx context.Context, q Queryer, s models.StudentProfile) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO students (school_id, user_id, parent_id, class_id, admission_no, full_name, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, s.SchoolID, s.UserID, s.ParentID, s.ClassID, s.AdmissionNo, s.FullName, s.IsActive).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert student: %w", err)
	}
	return id, nil
}

// GetStudent returns the student only when it is visible to sc.
func GetStudent(ctx context.Context, q Queryer, sc scope.Scope, id int64) (*models.StudentProfile, error) {
	pred, args := sc.StudentPredicate("st", 2)
	var s models.StudentProfile
	err := q.QueryRowContext(ctx, `
		SELECT st.id, st.school_id, st.user_id, st.parent_id, st.class_id, st.admission_no, st.full_name, st.is_active
		FROM students st
		WHERE st.id = $1 AND `+pred, append([]any{id}, args...)...).
		Scan(&s.ID, &s.SchoolID, &s.UserID, &s.ParentID, &s.ClassID, &s.AdmissionNo, &s.FullName, &s.IsActive)
	if err != nil {
		return nil, notFound(err, "student", id)
	}
	return &s, nil
}

// VisibleStudentIDs filters ids down to those visible to sc.
func VisibleStudentIDs(ctx context.Context, q Queryer, sc scope.Scope, ids []int64) (map[int64]bool, error) {
	pred, args := sc.StudentPredicate("st", 2)
	rows, err := q.QueryContext(ctx, `
		SELECT st.id FROM students st
		WHERE st.id = ANY($1) AND `+pred, append([]any{pq.Array(ids)}, args...)...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// ListActiveStudentIDs returns the active students of a school, optionally of one class.
func ListActiveStudentIDs(ctx context.Context, q Queryer, sc scope.Scope, schoolID int64, classID *int64) ([]int64, error) {
	pred, args := sc.StudentPredicate("st", 3)
	rows, err := q.QueryContext(ctx, `
		SELECT st.id FROM students st
		WHERE st.is_active AND st.school_id = $1
		  AND ($2::bigint IS NULL OR st.class_id = $2)
		  AND `+pred+`
		ORDER BY st.id
	`, append([]any{schoolID, classID}, args...)...)
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

func GetSchool(ctx context.Context, q Queryer, sc scope.Scope, id int64) (*models.School, error) {
	pred, args := sc.SchoolPredicate("s.id", 2)
	var s models.School
	err := q.QueryRowContext(ctx, `
		SELECT s.id, s.name, COALESCE(s.owner_id, 0)
		FROM schools s
		WHERE s.id = $1 AND `+pred, append([]any{id}, args...)...).Scan(&s.ID, &s.Name, &s.OwnerID)
	if err != nil {
		return nil, notFound(err, "school", id)
	}
	return &s, nil
}
