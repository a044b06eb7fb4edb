// Package ledger holds the pure fee-ledger arithmetic: status derivation, payment
// application, record generation planning and collection analytics.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/school-erp/internal/models"
)

// DueAfterTermStart is the offset from term start to a generated record's due date.
const DueAfterTermStart = 30 * 24 * time.Hour

// Status derives a record's status from what was paid against what is due.
// overdue and waived are never derived; they are set by explicit overrides.
func Status(paid, due decimal.Decimal) models.FeeStatus {
	switch {
	case paid.GreaterThanOrEqual(due):
		return models.FeeCleared
	case paid.IsPositive():
		return models.FeePartial
	default:
		return models.FeePending
	}
}

type Payment struct {
	Amount    decimal.Decimal
	Date      time.Time
	Method    models.PaymentMethod
	Reference string
	Remarks   string
}

// Apply posts p onto rec and returns the history row for the delta. Amount positivity
// is the caller's check.
func Apply(rec *models.FeeRecord, p Payment, recordedBy int64) models.PaymentHistory {
	rec.AmountPaid = rec.AmountPaid.Add(p.Amount)
	rec.Status = Status(rec.AmountPaid, rec.AmountDue)
	date := p.Date
	method := p.Method
	rec.PaymentDate = &date
	rec.PaymentMethod = &method
	rec.PaymentReference = p.Reference
	rec.RecordedBy = &recordedBy
	return models.PaymentHistory{
		FeeRecordID: rec.ID,
		Amount:      p.Amount,
		PaymentDate: p.Date,
		Method:      p.Method,
		Reference:   p.Reference,
		Remarks:     p.Remarks,
		RecordedBy:  recordedBy,
	}
}

// IsOverdue reports whether a record should be flagged overdue at now: its derived
// status is still open, something is owed and the due date has passed.
func IsOverdue(rec models.FeeRecord, now time.Time) bool {
	if rec.Status != models.FeePending && rec.Status != models.FeePartial {
		return false
	}
	if !rec.Balance().IsPositive() {
		return false
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return rec.DueDate.Before(today)
}

type Key struct {
	StudentID      int64
	FeeStructureID int64
	TermID         int64
}

func KeyOf(r models.FeeRecord) Key {
	return Key{StudentID: r.StudentID, FeeStructureID: r.FeeStructureID, TermID: r.TermID}
}

// Plan returns the records to create for every student × structure pair that is not
// already in existing. Duplicate inputs are collapsed. discounts holds each student's
// granted schemes; the ones valid at term start reduce the amount due.
func Plan(term models.Term, structures []models.FeeStructure, studentIDs []int64, existing map[Key]bool, discounts map[int64][]models.DiscountScheme) []models.FeeRecord {
	due := term.StartDate.Add(DueAfterTermStart)
	seen := make(map[Key]bool, len(existing))
	for k, v := range existing {
		seen[k] = v
	}
	out := make([]models.FeeRecord, 0, len(structures)*len(studentIDs))
	for _, sid := range studentIDs {
		for _, fs := range structures {
			k := Key{StudentID: sid, FeeStructureID: fs.ID, TermID: term.ID}
			if seen[k] {
				continue
			}
			seen[k] = true
			off := Discount(discounts[sid], fs, term.StartDate)
			amount := fs.Amount.Sub(off)
			out = append(out, models.FeeRecord{
				StudentID:      sid,
				FeeStructureID: fs.ID,
				TermID:         term.ID,
				AmountDue:      amount,
				DiscountAmount: off,
				AmountPaid:     decimal.Zero,
				Status:         Status(decimal.Zero, amount),
				DueDate:        due,
			})
		}
	}
	return out
}
