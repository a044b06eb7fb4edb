package fees

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Spok95/school-erp/internal/apperr"
	"github.com/Spok95/school-erp/internal/db"
	"github.com/Spok95/school-erp/internal/ledger"
	"github.com/Spok95/school-erp/internal/logging"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/scope"
	"github.com/Spok95/school-erp/internal/validate"
)

type InvoiceItemInput struct {
	FeeStructureID int64            `json:"fee_structure_id" validate:"required"`
	Description    string           `json:"description" validate:"max=200"`
	Quantity       int              `json:"quantity" validate:"omitempty,min=1"`
	UnitAmount     *decimal.Decimal `json:"unit_amount" validate:"omitempty,gte=0"`
}

type NewInvoice struct {
	StudentID int64              `json:"student_id" validate:"required"`
	SessionID int64              `json:"session_id" validate:"required"`
	TermID    *int64             `json:"term_id"`
	IssueDate time.Time          `json:"issue_date"`
	DueDate   time.Time          `json:"due_date" validate:"required"`
	Notes     string             `json:"notes" validate:"max=1000"`
	Items     []InvoiceItemInput `json:"items" validate:"required,min=1,dive"`
}

// CreateInvoice prices the items and stores the invoice under the next number of the
// school's sequence for the issue year.
func (s *Service) CreateInvoice(ctx context.Context, sc scope.Scope, in NewInvoice, createdBy int64) (*models.Invoice, error) {
	if !sc.CanManage() {
		return nil, apperr.Forbidden("create invoice")
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if in.IssueDate.IsZero() {
		in.IssueDate = s.today()
	}
	if in.DueDate.Before(in.IssueDate) {
		return nil, apperr.Validation("invalid invoice dates",
			apperr.FieldError{Field: "due_date", Error: "due date cannot be before issue date"})
	}

	var inv *models.Invoice
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		student, err := db.GetStudent(ctx, tx, sc, in.StudentID)
		if err != nil {
			return err
		}
		session, err := db.GetSession(ctx, tx, sc, in.SessionID)
		if err != nil {
			return err
		}
		if session.SchoolID != student.SchoolID {
			return apperr.Validation("session belongs to another school",
				apperr.FieldError{Field: "session_id", Error: "session is not of the student's school"})
		}
		items, err := s.buildItems(ctx, tx, sc, student.SchoolID, in.Items)
		if err != nil {
			return err
		}
		inv = &models.Invoice{
			SchoolID:    student.SchoolID,
			StudentID:   student.ID,
			SessionID:   session.ID,
			TermID:      in.TermID,
			IssueDate:   in.IssueDate,
			DueDate:     in.DueDate,
			TotalAmount: ledger.PriceItems(items),
			AmountPaid:  decimal.Zero,
			Status:      models.InvoiceDraft,
			Notes:       strings.TrimSpace(in.Notes),
			CreatedBy:   createdBy,
			Items:       items,
		}

		year := in.IssueDate.Year()
		if err := db.LockInvoiceSequence(ctx, tx, student.SchoolID, year); err != nil {
			return err
		}
		last, err := db.LastInvoiceNumber(ctx, tx, student.SchoolID, year)
		if err != nil {
			return err
		}
		if inv.InvoiceNumber, err = ledger.NextInvoiceNumber(year, last); err != nil {
			return err
		}
		return db.InsertInvoice(ctx, tx, inv)
	})
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx, s.log).Info("invoice created",
		zap.String("invoice_number", inv.InvoiceNumber), zap.Int64("student_id", inv.StudentID),
		zap.String("total", inv.TotalAmount.String()))
	return inv, nil
}

func (s *Service) buildItems(ctx context.Context, q db.Queryer, sc scope.Scope, schoolID int64, in []InvoiceItemInput) ([]models.InvoiceItem, error) {
	ids := make([]int64, 0, len(in))
	for _, it := range in {
		ids = append(ids, it.FeeStructureID)
	}
	structures, err := db.ListFeeStructures(ctx, q, sc, ids)
	if err != nil {
		return nil, err
	}
	if err := checkStructures(ids, structures, schoolID); err != nil {
		return nil, err
	}
	byID := make(map[int64]models.FeeStructure, len(structures))
	for _, fs := range structures {
		byID[fs.ID] = fs
	}
	out := make([]models.InvoiceItem, 0, len(in))
	for _, it := range in {
		fs := byID[it.FeeStructureID]
		item := models.InvoiceItem{
			FeeStructureID: fs.ID,
			Description:    strings.TrimSpace(it.Description),
			Quantity:       it.Quantity,
			UnitAmount:     fs.Amount,
		}
		if item.Description == "" {
			item.Description = fs.Name
		}
		if item.Quantity == 0 {
			item.Quantity = 1
		}
		if it.UnitAmount != nil {
			item.UnitAmount = *it.UnitAmount
		}
		out = append(out, item)
	}
	return out, nil
}

// NextInvoiceNumber previews the number the next invoice of the school would get.
// It reserves nothing.
func (s *Service) NextInvoiceNumber(ctx context.Context, sc scope.Scope, schoolID int64, year int) (string, error) {
	if !sc.CanManage() {
		return "", apperr.Forbidden("invoice numbers")
	}
	if year <= 0 {
		year = s.today().Year()
	}
	if _, err := db.GetSchool(ctx, s.db, sc, schoolID); err != nil {
		return "", err
	}
	last, err := db.LastInvoiceNumber(ctx, s.db, schoolID, year)
	if err != nil {
		return "", err
	}
	next, err := ledger.NextInvoiceNumber(year, last)
	if err != nil {
		return "", fmt.Errorf("school %d: %w", schoolID, err)
	}
	return next, nil
}

type InvoiceFilter struct {
	StudentID *int64
	Status    *models.InvoiceStatus
}

// ListInvoices returns the invoices sc can see. Students and parents only ever match
// their own.
func (s *Service) ListInvoices(ctx context.Context, sc scope.Scope, f InvoiceFilter) ([]models.Invoice, error) {
	return db.ListInvoices(ctx, s.db, sc, db.InvoiceFilter{StudentID: f.StudentID, Status: f.Status})
}

func (s *Service) GetInvoice(ctx context.Context, sc scope.Scope, id int64) (*models.Invoice, error) {
	return db.GetInvoice(ctx, s.db, sc, id)
}
