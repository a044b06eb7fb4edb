package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/school-erp/internal/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestStatus(t *testing.T) {
	cases := []struct {
		paid, due string
		want      models.FeeStatus
	}{
		{"0", "50000", models.FeePending},
		{"0.01", "50000", models.FeePartial},
		{"49999.99", "50000", models.FeePartial},
		{"50000", "50000", models.FeeCleared},
		{"60000", "50000", models.FeeCleared},
		{"0", "0", models.FeeCleared},
	}
	for _, c := range cases {
		if got := Status(dec(c.paid), dec(c.due)); got != c.want {
			t.Fatalf("Status(%s, %s) = %s, want %s", c.paid, c.due, got, c.want)
		}
	}
}

func TestApplyIsAdditive(t *testing.T) {
	rec := models.FeeRecord{ID: 11, AmountDue: dec("50000"), AmountPaid: decimal.Zero, Status: models.FeePending}
	day := time.Date(2024, 9, 20, 0, 0, 0, 0, time.UTC)

	h := Apply(&rec, Payment{Amount: dec("20000"), Date: day, Method: models.Cash, Reference: "R1"}, 7)
	if rec.Status != models.FeePartial || !rec.Balance().Equal(dec("30000")) {
		t.Fatalf("after first payment: status=%s balance=%s", rec.Status, rec.Balance())
	}
	if h.FeeRecordID != 11 || !h.Amount.Equal(dec("20000")) || h.RecordedBy != 7 {
		t.Fatalf("history row = %#v", h)
	}

	Apply(&rec, Payment{Amount: dec("30000"), Date: day.AddDate(0, 0, 1), Method: models.BankTransfer, Reference: "R2"}, 7)
	if rec.Status != models.FeeCleared || !rec.Balance().IsZero() {
		t.Fatalf("after second payment: status=%s balance=%s", rec.Status, rec.Balance())
	}
	if rec.PaymentReference != "R2" || *rec.PaymentMethod != models.BankTransfer {
		t.Fatalf("latest payment metadata not kept: %#v", rec)
	}
}

func TestApplyOverpaymentLeavesNegativeBalance(t *testing.T) {
	rec := models.FeeRecord{AmountDue: dec("100"), AmountPaid: decimal.Zero}
	Apply(&rec, Payment{Amount: dec("150"), Date: time.Now()}, 1)
	if rec.Status != models.FeeCleared {
		t.Fatalf("status = %s", rec.Status)
	}
	if !rec.Balance().Equal(dec("-50")) {
		t.Fatalf("balance = %s, want -50", rec.Balance())
	}
}

func TestApplyRederivesOverdue(t *testing.T) {
	rec := models.FeeRecord{AmountDue: dec("100"), AmountPaid: dec("10"), Status: models.FeeOverdue}
	Apply(&rec, Payment{Amount: dec("10"), Date: time.Now()}, 1)
	if rec.Status != models.FeePartial {
		t.Fatalf("status = %s, want partial", rec.Status)
	}
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2024, 10, 15, 9, 0, 0, 0, time.UTC)
	base := models.FeeRecord{AmountDue: dec("100"), AmountPaid: decimal.Zero, Status: models.FeePending, DueDate: now.AddDate(0, 0, -1)}
	if !IsOverdue(base, now) {
		t.Fatal("pending record past due should be overdue")
	}
	today := base
	today.DueDate = time.Date(2024, 10, 15, 0, 0, 0, 0, time.UTC)
	if IsOverdue(today, now) {
		t.Fatal("record due today is not overdue yet")
	}
	waived := base
	waived.Status = models.FeeWaived
	if IsOverdue(waived, now) {
		t.Fatal("waived record must not be flagged")
	}
	paid := base
	paid.AmountPaid = dec("100")
	paid.Status = models.FeeCleared
	if IsOverdue(paid, now) {
		t.Fatal("cleared record must not be flagged")
	}
}

func TestPlanSkipsExistingAndDuplicates(t *testing.T) {
	term := models.Term{ID: 3, StartDate: time.Date(2024, 9, 9, 0, 0, 0, 0, time.UTC)}
	structures := []models.FeeStructure{{ID: 1, Amount: dec("50000")}, {ID: 2, Amount: dec("5000")}}
	existing := map[Key]bool{{StudentID: 10, FeeStructureID: 1, TermID: 3}: true}

	got := Plan(term, structures, []int64{10, 11, 11}, existing, nil)
	if len(got) != 3 {
		t.Fatalf("planned %d records, want 3", len(got))
	}
	wantDue := time.Date(2024, 10, 9, 0, 0, 0, 0, time.UTC)
	for _, r := range got {
		if KeyOf(r) == (Key{StudentID: 10, FeeStructureID: 1, TermID: 3}) {
			t.Fatal("existing record planned again")
		}
		if !r.DueDate.Equal(wantDue) {
			t.Fatalf("due date = %s, want %s", r.DueDate, wantDue)
		}
		if r.Status != models.FeePending || !r.AmountPaid.IsZero() {
			t.Fatalf("new record not pending: %#v", r)
		}
	}

	// Re-planning with everything existing yields nothing.
	all := map[Key]bool{}
	for _, r := range got {
		all[KeyOf(r)] = true
	}
	for k := range existing {
		all[k] = true
	}
	if again := Plan(term, structures, []int64{10, 11}, all, nil); len(again) != 0 {
		t.Fatalf("second plan produced %d records", len(again))
	}
}
