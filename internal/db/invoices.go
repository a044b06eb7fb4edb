package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/Spok95/school-erp/internal/apperr"
	"github.com/Spok95/school-erp/internal/ctxutil"
	"github.com/Spok95/school-erp/internal/ledger"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/scope"
)

// LockInvoiceSequence serialises invoice numbering for (school, year) until the
// surrounding transaction ends.
func LockInvoiceSequence(ctx context.Context, tx *sql.Tx, schoolID int64, year int) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1::int, $2::int)`, int32(schoolID), int32(year)); err != nil {
		return fmt.Errorf("lock invoice sequence: %w", err)
	}
	return nil
}

// LastInvoiceNumber returns the greatest invoice number issued by the school for year,
// or "" when there is none.
func LastInvoiceNumber(ctx context.Context, q Queryer, schoolID int64, year int) (string, error) {
	var last string
	err := q.QueryRowContext(ctx, `
		SELECT invoice_number FROM invoices
		WHERE school_id = $1 AND invoice_number LIKE $2
		ORDER BY invoice_number DESC
		LIMIT 1
	`, schoolID, ledger.InvoicePrefix(year)+"%").Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("last invoice number: %w", err)
	}
	return last, nil
}

// InsertInvoice stores the invoice with its items and fills in the generated ids.
func InsertInvoice(ctx context.Context, q Queryer, inv *models.Invoice) error {
	err := q.QueryRowContext(ctx, `
		INSERT INTO invoices (school_id, student_id, session_id, term_id, invoice_number, issue_date, due_date,
		                      total_amount, amount_paid, status, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, inv.SchoolID, inv.StudentID, inv.SessionID, inv.TermID, inv.InvoiceNumber, inv.IssueDate, inv.DueDate,
		inv.TotalAmount, inv.AmountPaid, string(inv.Status), inv.Notes, inv.CreatedBy).Scan(&inv.ID)
	if err != nil {
		if uniqueViolation(err) {
			return apperr.Conflict("invoice number " + inv.InvoiceNumber + " already issued")
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	for i := range inv.Items {
		it := &inv.Items[i]
		it.InvoiceID = inv.ID
		err := q.QueryRowContext(ctx, `
			INSERT INTO invoice_items (invoice_id, fee_structure_id, description, quantity, unit_amount, total_amount)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, it.InvoiceID, it.FeeStructureID, it.Description, it.Quantity, it.UnitAmount, it.TotalAmount).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert invoice item: %w", err)
		}
	}
	return nil
}

const invoiceColumns = `i.id, i.school_id, i.student_id, i.session_id, i.term_id, i.invoice_number, i.issue_date,
	i.due_date, i.total_amount, i.amount_paid, i.status, i.notes, i.created_by`

func scanInvoice(r rowScanner, inv *models.Invoice) error {
	return r.Scan(&inv.ID, &inv.SchoolID, &inv.StudentID, &inv.SessionID, &inv.TermID, &inv.InvoiceNumber,
		&inv.IssueDate, &inv.DueDate, &inv.TotalAmount, &inv.AmountPaid, &inv.Status, &inv.Notes, &inv.CreatedBy)
}

// GetInvoice reads an invoice of a student visible to sc, with its items.
func GetInvoice(ctx context.Context, q Queryer, sc scope.Scope, id int64) (*models.Invoice, error) {
	pred, args := sc.StudentPredicate("st", 2)
	var inv models.Invoice
	err := scanInvoice(q.QueryRowContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices i JOIN students st ON st.id = i.student_id
		WHERE i.id = $1 AND `+pred,
		append([]any{id}, args...)...), &inv)
	if err != nil {
		return nil, notFound(err, "invoice", id)
	}
	items, err := invoiceItems(ctx, q, []int64{inv.ID})
	if err != nil {
		return nil, err
	}
	inv.Items = items[inv.ID]
	return &inv, nil
}

type InvoiceFilter struct {
	StudentID *int64
	Status    *models.InvoiceStatus
}

// ListInvoices returns the invoices visible to sc, newest first, items included.
func ListInvoices(ctx context.Context, q Queryer, sc scope.Scope, f InvoiceFilter) ([]models.Invoice, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var status any
	if f.Status != nil {
		status = string(*f.Status)
	}
	pred, args := sc.StudentPredicate("st", 3)
	rows, err := q.QueryContext(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices i JOIN students st ON st.id = i.student_id
		WHERE ($1::bigint IS NULL OR i.student_id = $1)
		  AND ($2::text IS NULL OR i.status = $2)
		  AND `+pred+`
		ORDER BY i.issue_date DESC, i.id DESC
	`, append([]any{f.StudentID, status}, args...)...)
	if err != nil {
		return nil, err
	}
	out, err := scanInvoices(rows)
	if err != nil || len(out) == 0 {
		return out, err
	}

	ids := make([]int64, 0, len(out))
	for _, inv := range out {
		ids = append(ids, inv.ID)
	}
	items, err := invoiceItems(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

// scanInvoices drains and closes rows so the items can be read on the same connection.
func scanInvoices(rows *sql.Rows) ([]models.Invoice, error) {
	defer func() { _ = rows.Close() }()

	var out []models.Invoice
	for rows.Next() {
		var inv models.Invoice
		if err := scanInvoice(rows, &inv); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func invoiceItems(ctx context.Context, q Queryer, invoiceIDs []int64) (map[int64][]models.InvoiceItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, invoice_id, fee_structure_id, description, quantity, unit_amount, total_amount
		FROM invoice_items
		WHERE invoice_id = ANY($1)
		ORDER BY invoice_id, id
	`, pq.Array(invoiceIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := map[int64][]models.InvoiceItem{}
	for rows.Next() {
		var it models.InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.FeeStructureID, &it.Description, &it.Quantity,
			&it.UnitAmount, &it.TotalAmount); err != nil {
			return nil, err
		}
		out[it.InvoiceID] = append(out[it.InvoiceID], it)
	}
	return out, rows.Err()
}
