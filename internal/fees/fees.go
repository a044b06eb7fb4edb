// Package fees is the fee ledger: record generation, payments, overrides, analytics and
// invoicing.
package fees

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Spok95/school-erp/internal/apperr"
	"github.com/Spok95/school-erp/internal/db"
	"github.com/Spok95/school-erp/internal/export"
	"github.com/Spok95/school-erp/internal/ledger"
	"github.com/Spok95/school-erp/internal/logging"
	"github.com/Spok95/school-erp/internal/metrics"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/scope"
	"github.com/Spok95/school-erp/internal/validate"
)

// Reminder is told which open records to remind a student's family about. It must not block.
type Reminder interface {
	FeeReminder(studentID int64, recordIDs []int64) bool
}

type Service struct {
	db     *sql.DB
	log    *zap.Logger
	loc    *time.Location
	remind Reminder
	now    func() time.Time
}

func New(database *sql.DB, log *zap.Logger, loc *time.Location, remind Reminder) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{db: database, log: log, loc: loc, remind: remind, now: time.Now}
}

func (s *Service) today() time.Time {
	y, m, d := s.now().In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

type GenerateRequest struct {
	TermID          int64   `json:"term_id" validate:"required"`
	FeeStructureIDs []int64 `json:"fee_structure_ids" validate:"required,min=1,dive,required"`
	ClassID         *int64  `json:"class_id"`
}

// GenerateRecords creates one record per active student and structure for the term.
// Existing (student, structure, term) records are left alone, so reruns are no-ops.
// Discounts granted to a student for the term's session reduce the amount due.
func (s *Service) GenerateRecords(ctx context.Context, sc scope.Scope, req GenerateRequest) (int, error) {
	if !sc.CanManage() {
		return 0, apperr.Forbidden("generate fee records")
	}
	if err := validate.Struct(req); err != nil {
		return 0, err
	}
	var created int
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		term, err := db.GetTerm(ctx, tx, sc, req.TermID)
		if err != nil {
			return err
		}
		structures, err := db.ListFeeStructures(ctx, tx, sc, req.FeeStructureIDs)
		if err != nil {
			return err
		}
		if err := checkStructures(req.FeeStructureIDs, structures, term.SchoolID); err != nil {
			return err
		}
		students, err := db.ListActiveStudentIDs(ctx, tx, sc, term.SchoolID, req.ClassID)
		if err != nil {
			return err
		}
		existing, err := db.ExistingRecordKeys(ctx, tx, term.ID, req.FeeStructureIDs)
		if err != nil {
			return err
		}
		discounts, err := db.SessionDiscounts(ctx, tx, term.SessionID, students)
		if err != nil {
			return err
		}
		created, err = db.InsertFeeRecords(ctx, tx, ledger.Plan(*term, structures, students, existing, discounts))
		return err
	})
	if err != nil {
		return 0, err
	}
	metrics.FeeRecordsGenerated.Add(float64(created))
	logging.FromContext(ctx, s.log).Info("fee records generated", zap.Int64("term_id", req.TermID), zap.Int("count", created))
	return created, nil
}

func checkStructures(ids []int64, found []models.FeeStructure, schoolID int64) error {
	have := make(map[int64]models.FeeStructure, len(found))
	for _, fs := range found {
		have[fs.ID] = fs
	}
	for _, id := range ids {
		fs, ok := have[id]
		if !ok {
			return apperr.NotFound("fee structure", id)
		}
		if fs.SchoolID != schoolID {
			return apperr.Validation("fee structure belongs to another school",
				apperr.FieldError{Field: "fee_structure_ids", Error: fmt.Sprintf("fee structure %d is not offered by the term's school", id)})
		}
	}
	return nil
}

type PaymentInput struct {
	Amount      decimal.Decimal      `json:"amount" validate:"gt=0"`
	PaymentDate time.Time            `json:"payment_date"`
	Method      models.PaymentMethod `json:"payment_method" validate:"required,oneof=cash bank_transfer online cheque pos"`
	Reference   string               `json:"payment_reference" validate:"max=100"`
	Remarks     string               `json:"remarks" validate:"max=500"`
}

type Receipt struct {
	ReceiptNumber string                `json:"receipt_number"`
	Record        models.FeeRecord      `json:"fee_record"`
	Payment       models.PaymentHistory `json:"payment"`
}

// PostPayment applies an additive payment to a record under a row lock.
func (s *Service) PostPayment(ctx context.Context, sc scope.Scope, recordID int64, in PaymentInput, recordedBy int64) (*Receipt, error) {
	if !sc.CanManage() {
		return nil, apperr.Forbidden("post payment")
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	var out *Receipt
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		out, err = s.post(ctx, tx, sc, recordID, in, recordedBy)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.ObservePayment(in.Amount)
	logging.FromContext(ctx, s.log).Info("payment posted",
		zap.Int64("fee_record_id", recordID), zap.String("amount", in.Amount.String()),
		zap.String("status", string(out.Record.Status)))
	return out, nil
}

func (s *Service) post(ctx context.Context, tx *sql.Tx, sc scope.Scope, recordID int64, in PaymentInput, recordedBy int64) (*Receipt, error) {
	rec, err := db.GetFeeRecord(ctx, tx, sc, recordID, true)
	if err != nil {
		return nil, err
	}
	if rec.Status == models.FeeWaived {
		return nil, apperr.Conflict(fmt.Sprintf("fee record %d is waived", recordID))
	}
	p := ledger.Payment{
		Amount:    in.Amount,
		Date:      in.PaymentDate,
		Method:    in.Method,
		Reference: strings.TrimSpace(in.Reference),
		Remarks:   in.Remarks,
	}
	if p.Date.IsZero() {
		p.Date = s.today()
	}
	if p.Reference == "" {
		p.Reference = "PAY-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
	}
	h := ledger.Apply(rec, p, recordedBy)
	if err := db.SaveFeePayment(ctx, tx, *rec); err != nil {
		return nil, err
	}
	saved, err := db.InsertPayment(ctx, tx, h)
	if err != nil {
		return nil, err
	}
	return &Receipt{
		ReceiptNumber: ledger.ReceiptNumber(p.Date.Year(), saved.ID),
		Record:        *rec,
		Payment:       *saved,
	}, nil
}

type BulkPaymentItem struct {
	FeeRecordID int64 `json:"fee_record_id" validate:"required"`
	PaymentInput
}

type BulkPayment struct {
	Payments []BulkPaymentItem `json:"payments" validate:"required,min=1,dive"`
}

// BulkPostPayments posts every payment or none of them.
func (s *Service) BulkPostPayments(ctx context.Context, sc scope.Scope, in BulkPayment, recordedBy int64) ([]Receipt, error) {
	if !sc.CanManage() {
		return nil, apperr.Forbidden("post payments")
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	out := make([]Receipt, 0, len(in.Payments))
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for i, p := range in.Payments {
			r, err := s.post(ctx, tx, sc, p.FeeRecordID, p.PaymentInput, recordedBy)
			if err != nil {
				return fmt.Errorf("payments[%d]: %w", i, err)
			}
			out = append(out, *r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, p := range in.Payments {
		metrics.ObservePayment(p.Amount)
		total = total.Add(p.Amount)
	}
	logging.FromContext(ctx, s.log).Info("bulk payments posted", zap.Int("count", len(out)), zap.String("amount", total.String()))
	return out, nil
}

// SetStatus applies an external override. Only overdue and waived can be set by hand.
func (s *Service) SetStatus(ctx context.Context, sc scope.Scope, recordID int64, status models.FeeStatus) (*models.FeeRecord, error) {
	if !sc.CanManage() {
		return nil, apperr.Forbidden("set fee status")
	}
	if status != models.FeeOverdue && status != models.FeeWaived {
		return nil, apperr.Validation("invalid status override",
			apperr.FieldError{Field: "status", Error: "status must be one of [overdue waived]"})
	}
	var out *models.FeeRecord
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		rec, err := db.GetFeeRecord(ctx, tx, sc, recordID, true)
		if err != nil {
			return err
		}
		if err := db.SetFeeStatus(ctx, tx, rec.ID, status); err != nil {
			return err
		}
		rec.Status = status
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx, s.log).Info("fee status overridden", zap.Int64("fee_record_id", recordID), zap.String("status", string(status)))
	return out, nil
}

// MarkOverdue flags open records whose due date has passed. A later payment re-derives
// their status.
func (s *Service) MarkOverdue(ctx context.Context) (int64, error) {
	now := s.now().In(s.loc)
	candidates, err := db.ListOpenRecordsDueBefore(ctx, s.db, s.today())
	if err != nil {
		return 0, err
	}
	ids := make([]int64, 0, len(candidates))
	for _, r := range candidates {
		if ledger.IsOverdue(r, now) {
			ids = append(ids, r.ID)
		}
	}
	n, err := db.MarkOverdue(ctx, s.db, ids)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("fee records marked overdue", zap.Int64("count", n))
	}
	return n, nil
}

// reminderLead also reminds about records falling due within the coming week.
const reminderLead = 7 * 24 * time.Hour

// SendReminders queues one reminder per student with open records that are overdue or
// fall due soon. It returns the number of students reminded.
func (s *Service) SendReminders(ctx context.Context) (int, error) {
	if s.remind == nil {
		return 0, nil
	}
	recs, err := db.ListOpenRecordsDueBefore(ctx, s.db, s.today().Add(reminderLead))
	if err != nil {
		return 0, err
	}
	groups := groupByStudent(recs)
	sent := 0
	for _, g := range groups {
		if s.remind.FeeReminder(g.studentID, g.recordIDs) {
			sent++
		}
	}
	s.log.Info("fee reminders queued", zap.Int("count", sent), zap.Int("students", len(groups)))
	return sent, nil
}

type studentGroup struct {
	studentID int64
	recordIDs []int64
}

func groupByStudent(recs []models.FeeRecord) []studentGroup {
	var out []studentGroup
	idx := map[int64]int{}
	for _, r := range recs {
		i, ok := idx[r.StudentID]
		if !ok {
			i = len(out)
			idx[r.StudentID] = i
			out = append(out, studentGroup{studentID: r.StudentID})
		}
		out[i].recordIDs = append(out[i].recordIDs, r.ID)
	}
	return out
}

type Filter struct {
	TermID    *int64
	ClassID   *int64
	StudentID *int64
	Status    *models.FeeStatus
}

func (f Filter) toDB() db.FeeFilter {
	return db.FeeFilter{TermID: f.TermID, ClassID: f.ClassID, StudentID: f.StudentID, Status: f.Status}
}

func (s *Service) ListRecords(ctx context.Context, sc scope.Scope, f Filter) ([]models.FeeRecordRow, error) {
	return db.ListFeeRecords(ctx, s.db, sc, f.toDB())
}

func (s *Service) PaymentHistory(ctx context.Context, sc scope.Scope, recordID int64) ([]models.PaymentHistory, error) {
	if _, err := db.GetFeeRecord(ctx, s.db, sc, recordID, false); err != nil {
		return nil, err
	}
	return db.ListPayments(ctx, s.db, recordID)
}

// Analytics summarises the records visible to sc, narrowed by term and class.
func (s *Service) Analytics(ctx context.Context, sc scope.Scope, f Filter) (*ledger.Summary, error) {
	if !sc.CanManage() {
		return nil, apperr.Forbidden("fee analytics")
	}
	rows, err := db.ListFeeRecords(ctx, s.db, sc, db.FeeFilter{TermID: f.TermID, ClassID: f.ClassID})
	if err != nil {
		return nil, err
	}
	sum := ledger.Analyze(plain(rows))
	return &sum, nil
}

func (s *Service) StudentStatus(ctx context.Context, sc scope.Scope, studentID int64) (*ledger.StudentStatus, error) {
	if _, err := db.GetStudent(ctx, s.db, sc, studentID); err != nil {
		return nil, err
	}
	rows, err := db.ListFeeRecords(ctx, s.db, sc, db.FeeFilter{StudentID: &studentID})
	if err != nil {
		return nil, err
	}
	st := ledger.Overall(studentID, plain(rows))
	return &st, nil
}

func plain(rows []models.FeeRecordRow) []models.FeeRecord {
	out := make([]models.FeeRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.FeeRecord)
	}
	return out
}

// LedgerExport renders the records visible to sc together with their analytics.
func (s *Service) LedgerExport(ctx context.Context, sc scope.Scope, f Filter) (*export.Workbook, error) {
	if !sc.CanManage() {
		return nil, apperr.Forbidden("fee ledger export")
	}
	rows, err := db.ListFeeRecords(ctx, s.db, sc, f.toDB())
	if err != nil {
		return nil, err
	}
	return export.FeeLedger(rows, ledger.Analyze(plain(rows)))
}
