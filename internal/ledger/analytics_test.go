package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/school-erp/internal/models"
)

func TestAnalyze(t *testing.T) {
	records := []models.FeeRecord{
		{StudentID: 1, AmountDue: dec("50000"), AmountPaid: dec("50000"), Status: models.FeeCleared},
		{StudentID: 1, AmountDue: dec("5000"), AmountPaid: decimal.Zero, Status: models.FeePending},
		{StudentID: 2, AmountDue: dec("50000"), AmountPaid: dec("20000"), Status: models.FeePartial},
		{StudentID: 3, AmountDue: dec("50000"), AmountPaid: decimal.Zero, Status: models.FeeOverdue},
	}
	s := Analyze(records)
	if s.TotalStudents != 3 {
		t.Fatalf("TotalStudents = %d", s.TotalStudents)
	}
	if !s.TotalDue.Equal(dec("155000")) || !s.TotalCollected.Equal(dec("70000")) || !s.Outstanding.Equal(dec("85000")) {
		t.Fatalf("totals = %s / %s / %s", s.TotalDue, s.TotalCollected, s.Outstanding)
	}
	if !s.CollectionRate.Equal(dec("45.16")) {
		t.Fatalf("CollectionRate = %s, want 45.16", s.CollectionRate)
	}
	if s.StudentsCleared != 1 || s.StudentsPending != 1 || s.StudentsPartial != 1 || s.StudentsOverdue != 1 {
		t.Fatalf("status counts = %+v", s)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	s := Analyze(nil)
	if s.TotalStudents != 0 || !s.CollectionRate.IsZero() || !s.Outstanding.IsZero() {
		t.Fatalf("empty summary = %+v", s)
	}
}

func TestOverall(t *testing.T) {
	d1 := time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 5)
	recs := []models.FeeRecord{
		{AmountDue: dec("100"), AmountPaid: dec("100"), PaymentDate: &d1},
		{AmountDue: dec("50"), AmountPaid: dec("20"), PaymentDate: &d2},
	}
	st := Overall(9, recs)
	if st.OverallStatus != models.FeePartial || !st.Outstanding.Equal(dec("30")) {
		t.Fatalf("overall = %+v", st)
	}
	if st.LastPaymentDate == nil || !st.LastPaymentDate.Equal(d2) {
		t.Fatalf("last payment = %v, want %v", st.LastPaymentDate, d2)
	}

	if st := Overall(9, nil); st.OverallStatus != models.FeePending {
		t.Fatalf("no records: status = %s", st.OverallStatus)
	}
	if st := Overall(9, []models.FeeRecord{{AmountDue: dec("10"), AmountPaid: decimal.Zero}}); st.OverallStatus != models.FeePending {
		t.Fatalf("unpaid: status = %s", st.OverallStatus)
	}
	if st := Overall(9, []models.FeeRecord{{AmountDue: decimal.Zero, AmountPaid: decimal.Zero}}); st.OverallStatus != models.FeeCleared {
		t.Fatalf("nothing due: status = %s", st.OverallStatus)
	}
}
