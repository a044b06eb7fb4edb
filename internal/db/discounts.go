package db

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/Spok95/school-erp/internal/apperr"
	"github.com/Spok95/school-erp/internal/ctxutil"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/scope"
)

func CreateDiscountScheme(ctx context.Context, q Queryer, d models.DiscountScheme) (int64, error) {
	ids := d.FeeStructureIDs
	if ids == nil {
		ids = []int64{}
	}
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO discount_schemes (school_id, name, description, discount_type, discount_value, applies_to,
		                              fee_structure_ids, start_date, end_date, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, d.SchoolID, d.Name, d.Description, string(d.Type), d.Value, string(d.AppliesTo),
		pq.Array(ids), d.StartDate, d.EndDate, d.IsActive).Scan(&id)
	if err != nil {
		if uniqueViolation(err) {
			return 0, apperr.Conflict(fmt.Sprintf("discount scheme %q already exists", d.Name))
		}
		return 0, fmt.Errorf("insert discount scheme: %w", err)
	}
	return id, nil
}

const schemeColumns = `ds.id, ds.school_id, ds.name, ds.description, ds.discount_type, ds.discount_value, ds.applies_to,
	ds.fee_structure_ids, ds.start_date, ds.end_date, ds.is_active`

func scanScheme(r rowScanner, d *models.DiscountScheme, extra ...any) error {
	dest := []any{&d.ID, &d.SchoolID, &d.Name, &d.Description, &d.Type, &d.Value, &d.AppliesTo,
		pq.Array(&d.FeeStructureIDs), &d.StartDate, &d.EndDate, &d.IsActive}
	return r.Scan(append(dest, extra...)...)
}

func GetDiscountScheme(ctx context.Context, q Queryer, sc scope.Scope, id int64) (*models.DiscountScheme, error) {
	pred, args := sc.SchoolPredicate("ds.school_id", 2)
	var d models.DiscountScheme
	err := scanScheme(q.QueryRowContext(ctx, `
		SELECT `+schemeColumns+` FROM discount_schemes ds WHERE ds.id = $1 AND `+pred,
		append([]any{id}, args...)...), &d)
	if err != nil {
		return nil, notFound(err, "discount scheme", id)
	}
	return &d, nil
}

func ListDiscountSchemes(ctx context.Context, q Queryer, sc scope.Scope, schoolID *int64) ([]models.DiscountScheme, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	pred, args := sc.SchoolPredicate("ds.school_id", 2)
	rows, err := q.QueryContext(ctx, `
		SELECT `+schemeColumns+`
		FROM discount_schemes ds
		WHERE ($1::bigint IS NULL OR ds.school_id = $1) AND `+pred+`
		ORDER BY ds.school_id, ds.name
	`, append([]any{schoolID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.DiscountScheme
	for rows.Next() {
		var d models.DiscountScheme
		if err := scanScheme(rows, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func CreateStudentDiscount(ctx context.Context, q Queryer, sd models.StudentDiscount) (*models.StudentDiscount, error) {
	out := sd
	err := q.QueryRowContext(ctx, `
		INSERT INTO student_discounts (student_id, scheme_id, session_id, applied_by, reason, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, sd.StudentID, sd.SchemeID, sd.SessionID, sd.AppliedBy, sd.Reason, sd.IsActive).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return nil, apperr.Conflict(fmt.Sprintf("student %d already has this discount for the session", sd.StudentID))
		}
		return nil, fmt.Errorf("insert student discount: %w", err)
	}
	return &out, nil
}

func ListStudentDiscounts(ctx context.Context, q Queryer, sc scope.Scope, studentID *int64) ([]models.StudentDiscount, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	pred, args := sc.StudentPredicate("st", 2)
	rows, err := q.QueryContext(ctx, `
		SELECT sd.id, sd.student_id, sd.scheme_id, sd.session_id, sd.applied_by, sd.reason, sd.is_active,
		       sd.created_at, ds.name
		FROM student_discounts sd
		JOIN students st ON st.id = sd.student_id
		JOIN discount_schemes ds ON ds.id = sd.scheme_id
		WHERE ($1::bigint IS NULL OR sd.student_id = $1) AND `+pred+`
		ORDER BY sd.student_id, sd.id
	`, append([]any{studentID}, args...)...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.StudentDiscount
	for rows.Next() {
		var sd models.StudentDiscount
		if err := rows.Scan(&sd.ID, &sd.StudentID, &sd.SchemeID, &sd.SessionID, &sd.AppliedBy, &sd.Reason,
			&sd.IsActive, &sd.CreatedAt, &sd.SchemeName); err != nil {
			return nil, err
		}
		out = append(out, sd)
	}
	return out, rows.Err()
}

// SessionDiscounts returns, per student, the schemes granted for the session through an
// active grant. Scheme activity and validity dates are left to the caller.
func SessionDiscounts(ctx context.Context, q Queryer, sessionID int64, studentIDs []int64) (map[int64][]models.DiscountScheme, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+schemeColumns+`, sd.student_id
		FROM student_discounts sd
		JOIN discount_schemes ds ON ds.id = sd.scheme_id
		WHERE sd.session_id = $1 AND sd.is_active AND sd.student_id = ANY($2)
		ORDER BY sd.student_id, ds.id
	`, sessionID, pq.Array(studentIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := map[int64][]models.DiscountScheme{}
	for rows.Next() {
		var (
			d         models.DiscountScheme
			studentID int64
		)
		if err := scanScheme(rows, &d, &studentID); err != nil {
			return nil, err
		}
		out[studentID] = append(out[studentID], d)
	}
	return out, rows.Err()
}
