package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/school-erp/internal/models"
)

var hundred = decimal.NewFromInt(100)

type Summary struct {
	TotalStudents   int             `json:"total_students"`
	TotalDue        decimal.Decimal `json:"total_fees_due"`
	TotalCollected  decimal.Decimal `json:"total_collected"`
	Outstanding     decimal.Decimal `json:"outstanding_amount"`
	CollectionRate  decimal.Decimal `json:"collection_rate"`
	StudentsCleared int             `json:"students_cleared"`
	StudentsPending int             `json:"students_pending"`
	StudentsPartial int             `json:"students_partial"`
	StudentsOverdue int             `json:"students_overdue"`
}

// CollectionRate is paid/due as a percentage rounded to two places, zero when nothing is due.
func CollectionRate(paid, due decimal.Decimal) decimal.Decimal {
	if !due.IsPositive() {
		return decimal.Zero
	}
	return paid.Div(due).Mul(hundred).Round(2)
}

// Analyze folds a filtered record set. Status counts are distinct students per status
// group, so one student with records in two statuses is counted in both groups.
func Analyze(records []models.FeeRecord) Summary {
	s := Summary{TotalDue: decimal.Zero, TotalCollected: decimal.Zero}
	students := map[int64]struct{}{}
	byStatus := map[models.FeeStatus]map[int64]struct{}{}
	for _, r := range records {
		s.TotalDue = s.TotalDue.Add(r.AmountDue)
		s.TotalCollected = s.TotalCollected.Add(r.AmountPaid)
		students[r.StudentID] = struct{}{}
		g, ok := byStatus[r.Status]
		if !ok {
			g = map[int64]struct{}{}
			byStatus[r.Status] = g
		}
		g[r.StudentID] = struct{}{}
	}
	s.TotalStudents = len(students)
	s.Outstanding = s.TotalDue.Sub(s.TotalCollected)
	s.CollectionRate = CollectionRate(s.TotalCollected, s.TotalDue)
	s.StudentsCleared = len(byStatus[models.FeeCleared])
	s.StudentsPending = len(byStatus[models.FeePending])
	s.StudentsPartial = len(byStatus[models.FeePartial])
	s.StudentsOverdue = len(byStatus[models.FeeOverdue])
	return s
}

type StudentStatus struct {
	StudentID       int64            `json:"student_id"`
	TotalDue        decimal.Decimal  `json:"total_fees_due"`
	TotalPaid       decimal.Decimal  `json:"total_paid"`
	Outstanding     decimal.Decimal  `json:"outstanding_balance"`
	OverallStatus   models.FeeStatus `json:"overall_status"`
	LastPaymentDate *time.Time       `json:"last_payment_date"`
}

// Overall folds every record of one student into a single standing. A student with no
// records at all is pending: nothing has been billed, so nothing is cleared yet.
func Overall(studentID int64, records []models.FeeRecord) StudentStatus {
	st := StudentStatus{StudentID: studentID, TotalDue: decimal.Zero, TotalPaid: decimal.Zero}
	for _, r := range records {
		st.TotalDue = st.TotalDue.Add(r.AmountDue)
		st.TotalPaid = st.TotalPaid.Add(r.AmountPaid)
		if r.PaymentDate != nil && r.AmountPaid.IsPositive() {
			if st.LastPaymentDate == nil || r.PaymentDate.After(*st.LastPaymentDate) {
				d := *r.PaymentDate
				st.LastPaymentDate = &d
			}
		}
	}
	st.Outstanding = st.TotalDue.Sub(st.TotalPaid)
	switch {
	case len(records) == 0:
		st.OverallStatus = models.FeePending
	case !st.Outstanding.IsPositive():
		st.OverallStatus = models.FeeCleared
	case st.TotalPaid.IsPositive():
		st.OverallStatus = models.FeePartial
	default:
		st.OverallStatus = models.FeePending
	}
	return st
}
