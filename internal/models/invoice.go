package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePartial   InvoiceStatus = "partial"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoicePartial, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

type Invoice struct {
	ID            int64           `db:"id" json:"id"`
	SchoolID      int64           `db:"school_id" json:"school_id"`
	StudentID     int64           `db:"student_id" json:"student_id"`
	SessionID     int64           `db:"session_id" json:"session_id"`
	TermID        *int64          `db:"term_id" json:"term_id,omitempty"`
	InvoiceNumber string          `db:"invoice_number" json:"invoice_number"`
	IssueDate     time.Time       `db:"issue_date" json:"issue_date"`
	DueDate       time.Time       `db:"due_date" json:"due_date"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	AmountPaid    decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	Status        InvoiceStatus   `db:"status" json:"status"`
	Notes         string          `db:"notes" json:"notes"`
	CreatedBy     int64           `db:"created_by" json:"created_by"`
	Items         []InvoiceItem   `json:"items"`
}

func (i Invoice) Balance() decimal.Decimal {
	return i.TotalAmount.Sub(i.AmountPaid)
}

type InvoiceItem struct {
	ID             int64           `db:"id" json:"id"`
	InvoiceID      int64           `db:"invoice_id" json:"invoice_id"`
	FeeStructureID int64           `db:"fee_structure_id" json:"fee_structure_id"`
	Description    string          `db:"description" json:"description"`
	Quantity       int             `db:"quantity" json:"quantity"`
	UnitAmount     decimal.Decimal `db:"unit_amount" json:"unit_amount"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
}
