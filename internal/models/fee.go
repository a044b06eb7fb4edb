package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type FeeFrequency string

const (
	Termly  FeeFrequency = "termly"
	Annual  FeeFrequency = "annual"
	Monthly FeeFrequency = "monthly"
	OneTime FeeFrequency = "one_time"
)

type FeeStatus string

const (
	FeePending FeeStatus = "pending"
	FeePartial FeeStatus = "partial"
	FeeCleared FeeStatus = "cleared"
	FeeOverdue FeeStatus = "overdue"
	FeeWaived  FeeStatus = "waived"
)

func (s FeeStatus) Valid() bool {
	switch s {
	case FeePending, FeePartial, FeeCleared, FeeOverdue, FeeWaived:
		return true
	}
	return false
}

type PaymentMethod string

const (
	Cash         PaymentMethod = "cash"
	BankTransfer PaymentMethod = "bank_transfer"
	Online       PaymentMethod = "online"
	Cheque       PaymentMethod = "cheque"
	POS          PaymentMethod = "pos"
)

// FeeStructure is a billing template; it carries no ledger state.
type FeeStructure struct {
	ID          int64           `db:"id" json:"id"`
	SchoolID    int64           `db:"school_id" json:"school_id"`
	SessionID   int64           `db:"session_id" json:"session_id"`
	ClassID     *int64          `db:"class_id" json:"class_id,omitempty"`
	Name        string          `db:"name" json:"name"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Frequency   FeeFrequency    `db:"frequency" json:"frequency"`
	IsMandatory bool            `db:"is_mandatory" json:"is_mandatory"`
	IsActive    bool            `db:"is_active" json:"is_active"`
}

type FeeRecord struct {
	ID               int64           `db:"id" json:"id"`
	StudentID        int64           `db:"student_id" json:"student_id"`
	FeeStructureID   int64           `db:"fee_structure_id" json:"fee_structure_id"`
	TermID           int64           `db:"term_id" json:"term_id"`
	AmountDue        decimal.Decimal `db:"amount_due" json:"amount_due"`
	DiscountAmount   decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	AmountPaid       decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	Status           FeeStatus       `db:"status" json:"status"`
	DueDate          time.Time       `db:"due_date" json:"due_date"`
	PaymentDate      *time.Time      `db:"payment_date" json:"payment_date,omitempty"`
	PaymentMethod    *PaymentMethod  `db:"payment_method" json:"payment_method,omitempty"`
	PaymentReference string          `db:"payment_reference" json:"payment_reference"`
	RecordedBy       *int64          `db:"recorded_by" json:"recorded_by,omitempty"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// Balance is not clamped; overpayment yields a negative value.
func (r FeeRecord) Balance() decimal.Decimal {
	return r.AmountDue.Sub(r.AmountPaid)
}

// FeeRecordRow is a FeeRecord joined with display fields for listings and exports.
type FeeRecordRow struct {
	FeeRecord
	StudentName string `db:"full_name" json:"student_name"`
	AdmissionNo string `db:"admission_no" json:"admission_no"`
	FeeName     string `db:"fee_name" json:"fee_name"`
	TermName    string `db:"term_name" json:"term_name"`
}

// PaymentHistory is append-only; one row per posted payment.
type PaymentHistory struct {
	ID          int64           `db:"id" json:"id"`
	FeeRecordID int64           `db:"fee_record_id" json:"fee_record_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	PaymentDate time.Time       `db:"payment_date" json:"payment_date"`
	Method      PaymentMethod   `db:"payment_method" json:"payment_method"`
	Reference   string          `db:"payment_reference" json:"payment_reference"`
	Remarks     string          `db:"remarks" json:"remarks"`
	RecordedBy  int64           `db:"recorded_by" json:"recorded_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
