package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Spok95/school-erp/internal/apperr"
	"github.com/Spok95/school-erp/internal/ctxutil"
	"github.com/Spok95/school-erp/internal/ledger"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/scope"
)

func CreateFeeStructure(ctx context.Context, q Queryer, fs models.FeeStructure) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO fee_structures (school_id, session_id, class_id, name, amount, frequency, is_mandatory, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, fs.SchoolID, fs.SessionID, fs.ClassID, fs.Name, fs.Amount, string(fs.Frequency), fs.IsMandatory, fs.IsActive).Scan(&id)
	if err != nil {
		if uniqueViolation(err) {
			return 0, apperr.Conflict(fmt.Sprintf("fee structure %q already exists for this session and class", fs.Name))
		}
		return 0, fmt.Errorf("insert fee structure: %w", err)
	}
	return id, nil
}

const feeStructureColumns = `fs.id, fs.school_id, fs.session_id, fs.class_id, fs.name, fs.amount, fs.frequency, fs.is_mandatory, fs.is_active`

func scanFeeStructures(rows *sql.Rows) ([]models.FeeStructure, error) {
	defer func() { _ = rows.Close() }()

	var out []models.FeeStructure
	for rows.Next() {
		var fs models.FeeStructure
		if err := rows.Scan(&fs.ID, &fs.SchoolID, &fs.SessionID, &fs.ClassID, &fs.Name, &fs.Amount,
			&fs.Frequency, &fs.IsMandatory, &fs.IsActive); err != nil {
			return nil, err
		}
		out = append(out, fs)
	}
	return out, rows.Err()
}

// ListFeeStructures returns the active structures among ids that sc can see.
func ListFeeStructures(ctx context.Context, q Queryer, sc scope.Scope, ids []int64) ([]models.FeeStructure, error) {
	pred, args := sc.SchoolPredicate("fs.school_id", 2)
	rows, err := q.QueryContext(ctx, `
		SELECT `+feeStructureColumns+`
		FROM fee_structures fs
		WHERE fs.id = ANY($1) AND fs.is_active AND `+pred+`
		ORDER BY fs.id
	`, append([]any{pq.Array(ids)}, args...)...)
	if err != nil {
		return nil, err
	}
	return scanFeeStructures(rows)
}

type FeeStructureFilter struct {
	SchoolID   *int64
	SessionID  *int64
	ClassID    *int64
	ActiveOnly bool
}

// FindFeeStructures lists the structures sc can see. A class filter also matches
// school-wide structures, which have no class.
func FindFeeStructures(ctx context.Context, q Queryer, sc scope.Scope, f FeeStructureFilter) ([]models.FeeStructure, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	pred, args := sc.SchoolPredicate("fs.school_id", 5)
	rows, err := q.QueryContext(ctx, `
		SELECT `+feeStructureColumns+`
		FROM fee_structures fs
		WHERE ($1::bigint IS NULL OR fs.school_id = $1)
		  AND ($2::bigint IS NULL OR fs.session_id = $2)
		  AND ($3::bigint IS NULL OR fs.class_id = $3 OR fs.class_id IS NULL)
		  AND (NOT $4 OR fs.is_active)
		  AND `+pred+`
		ORDER BY fs.session_id, fs.class_id NULLS FIRST, fs.name
	`, append([]any{f.SchoolID, f.SessionID, f.ClassID, f.ActiveOnly}, args...)...)
	if err != nil {
		return nil, err
	}
	return scanFeeStructures(rows)
}

// ExistingRecordKeys returns the (student, structure, term) triples already recorded for a term.
func ExistingRecordKeys(ctx context.Context, q Queryer, termID int64, structureIDs []int64) (map[ledger.Key]bool, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT student_id, fee_structure_id, term_id
		FROM fee_records
		WHERE term_id = $1 AND fee_structure_id = ANY($2)
	`, termID, pq.Array(structureIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := map[ledger.Key]bool{}
	for rows.Next() {
		var k ledger.Key
		if err := rows.Scan(&k.StudentID, &k.FeeStructureID, &k.TermID); err != nil {
			return nil, err
		}
		out[k] = true
	}
	return out, rows.Err()
}

// InsertFeeRecords inserts new records, silently skipping triples that already exist.
// It returns the number of rows actually created.
func InsertFeeRecords(ctx context.Context, q Queryer, recs []models.FeeRecord) (int, error) {
	created := 0
	for _, r := range recs {
		res, err := q.ExecContext(ctx, `
			INSERT INTO fee_records (student_id, fee_structure_id, term_id, amount_due, discount_amount, amount_paid, status, due_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (student_id, fee_structure_id, term_id) DO NOTHING
		`, r.StudentID, r.FeeStructureID, r.TermID, r.AmountDue, r.DiscountAmount, r.AmountPaid, string(r.Status), r.DueDate)
		if err != nil {
			return 0, fmt.Errorf("insert fee record: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		created += int(n)
	}
	return created, nil
}

const feeRecordColumns = `fr.id, fr.student_id, fr.fee_structure_id, fr.term_id, fr.amount_due, fr.discount_amount, fr.amount_paid,
	fr.status, fr.due_date, fr.payment_date, fr.payment_method, fr.payment_reference, fr.recorded_by, fr.updated_at`

func scanFeeRecord(r rowScanner, rec *models.FeeRecord, extra ...any) error {
	dest := []any{&rec.ID, &rec.StudentID, &rec.FeeStructureID, &rec.TermID, &rec.AmountDue, &rec.DiscountAmount, &rec.AmountPaid,
		&rec.Status, &rec.DueDate, &rec.PaymentDate, &rec.PaymentMethod, &rec.PaymentReference, &rec.RecordedBy, &rec.UpdatedAt}
	return r.Scan(append(dest, extra...)...)
}

// GetFeeRecord reads a record visible to sc. With forUpdate the row stays locked until
// the surrounding transaction ends.
func GetFeeRecord(ctx context.Context, q Queryer, sc scope.Scope, id int64, forUpdate bool) (*models.FeeRecord, error) {
	pred, args := sc.StudentPredicate("st", 2)
	query := `
		SELECT ` + feeRecordColumns + `
		FROM fee_records fr JOIN students st ON st.id = fr.student_id
		WHERE fr.id = $1 AND ` + pred
	if forUpdate {
		query += ` FOR UPDATE OF fr`
	}
	var rec models.FeeRecord
	if err := scanFeeRecord(q.QueryRowContext(ctx, query, append([]any{id}, args...)...), &rec); err != nil {
		return nil, notFound(err, "fee record", id)
	}
	return &rec, nil
}

// SaveFeePayment persists the ledger state of a record after a payment was applied.
func SaveFeePayment(ctx context.Context, q Queryer, rec models.FeeRecord) error {
	var method any
	if rec.PaymentMethod != nil {
		method = string(*rec.PaymentMethod)
	}
	_, err := q.ExecContext(ctx, `
		UPDATE fee_records SET
			amount_paid = $2, status = $3, payment_date = $4, payment_method = $5,
			payment_reference = $6, recorded_by = $7, updated_at = now()
		WHERE id = $1
	`, rec.ID, rec.AmountPaid, string(rec.Status), rec.PaymentDate, method, rec.PaymentReference, rec.RecordedBy)
	if err != nil {
		return fmt.Errorf("update fee record %d: %w", rec.ID, err)
	}
	return nil
}

func InsertPayment(ctx context.Context, q Queryer, h models.PaymentHistory) (*models.PaymentHistory, error) {
	out := h
	err := q.QueryRowContext(ctx, `
		INSERT INTO payment_history (fee_record_id, amount, payment_date, payment_method, payment_reference, remarks, recorded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, h.FeeRecordID, h.Amount, h.PaymentDate, string(h.Method), h.Reference, h.Remarks, h.RecordedBy).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	return &out, nil
}

func ListPayments(ctx context.Context, q Queryer, recordID int64) ([]models.PaymentHistory, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := q.QueryContext(ctx, `
		SELECT id, fee_record_id, amount, payment_date, payment_method, payment_reference, remarks, recorded_by, created_at
		FROM payment_history
		WHERE fee_record_id = $1
		ORDER BY created_at, id
	`, recordID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.PaymentHistory
	for rows.Next() {
		var h models.PaymentHistory
		if err := rows.Scan(&h.ID, &h.FeeRecordID, &h.Amount, &h.PaymentDate, &h.Method, &h.Reference,
			&h.Remarks, &h.RecordedBy, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func SetFeeStatus(ctx context.Context, q Queryer, id int64, status models.FeeStatus) error {
	_, err := q.ExecContext(ctx, `
		UPDATE fee_records SET status = $2, updated_at = now() WHERE id = $1
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("set fee status %d: %w", id, err)
	}
	return nil
}

type FeeFilter struct {
	TermID    *int64
	ClassID   *int64
	StudentID *int64
	Status    *models.FeeStatus
}

// ListFeeRecords returns records visible to sc joined with display fields.
func ListFeeRecords(ctx context.Context, q Queryer, sc scope.Scope, f FeeFilter) ([]models.FeeRecordRow, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var status any
	if f.Status != nil {
		status = string(*f.Status)
	}
	pred, args := sc.StudentPredicate("st", 5)
	rows, err := q.QueryContext(ctx, `
		SELECT `+feeRecordColumns+`, st.full_name, st.admission_no, fs.name, t.name
		FROM fee_records fr
		JOIN students st ON st.id = fr.student_id
		JOIN fee_structures fs ON fs.id = fr.fee_structure_id
		JOIN terms t ON t.id = fr.term_id
		WHERE ($1::bigint IS NULL OR fr.term_id = $1)
		  AND ($2::bigint IS NULL OR st.class_id = $2)
		  AND ($3::bigint IS NULL OR fr.student_id = $3)
		  AND ($4::text IS NULL OR fr.status = $4)
		  AND `+pred+`
		ORDER BY st.full_name, fr.id
	`, append([]any{f.TermID, f.ClassID, f.StudentID, status}, args...)...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.FeeRecordRow
	for rows.Next() {
		var r models.FeeRecordRow
		if err := scanFeeRecord(rows, &r.FeeRecord, &r.StudentName, &r.AdmissionNo, &r.FeeName, &r.TermName); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListOpenRecordsDueBefore returns records with a positive balance whose status is not
// cleared or waived and whose due date is before day.
func ListOpenRecordsDueBefore(ctx context.Context, q Queryer, day time.Time) ([]models.FeeRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+feeRecordColumns+`
		FROM fee_records fr
		JOIN students st ON st.id = fr.student_id
		WHERE fr.status IN ('pending', 'partial', 'overdue')
		  AND fr.amount_paid < fr.amount_due
		  AND fr.due_date < $1
		  AND st.is_active
		ORDER BY fr.student_id, fr.id
	`, day)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.FeeRecord
	for rows.Next() {
		var rec models.FeeRecord
		if err := scanFeeRecord(rows, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkOverdue flags ids as overdue unless a payment re-derived their status meanwhile.
func MarkOverdue(ctx context.Context, q Queryer, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := q.ExecContext(ctx, `
		UPDATE fee_records SET status = 'overdue', updated_at = now()
		WHERE id = ANY($1) AND status IN ('pending', 'partial') AND amount_paid < amount_due
	`, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	return res.RowsAffected()
}
