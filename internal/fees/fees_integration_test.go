//go:build testutil
// +build testutil

package fees_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Spok95/school-erp/internal/apperr"
	"github.com/Spok95/school-erp/internal/fees"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/testutil/testdb"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func recordOf(t *testing.T, svc *fees.Service, fx testdb.Fixture, studentID int64) models.FeeRecord {
	t.Helper()
	rows, err := svc.ListRecords(context.Background(), fx.Office(), fees.Filter{StudentID: &studentID})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("student %d: %d records", studentID, len(rows))
	}
	return rows[0].FeeRecord
}

func TestFeeLedger(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	fx := testdb.Seed(t, h.DB, "fees", 3)
	tuition := fx.FeeStructure(t, h.DB, "Tuition", "50000")
	svc := fees.New(h.DB, zap.NewNop(), time.UTC, nil)
	office := fx.Office()

	t.Run("generate is idempotent", func(t *testing.T) {
		req := fees.GenerateRequest{TermID: fx.TermID, FeeStructureIDs: []int64{tuition}}
		n, err := svc.GenerateRecords(ctx, office, req)
		if err != nil {
			t.Fatal(err)
		}
		if n != 3 {
			t.Fatalf("created = %d, want 3", n)
		}
		if n, err = svc.GenerateRecords(ctx, office, req); err != nil || n != 0 {
			t.Fatalf("rerun created %d, err %v", n, err)
		}
		rec := recordOf(t, svc, fx, fx.Students[0])
		if !rec.AmountDue.Equal(dec("50000")) || rec.Status != models.FeePending {
			t.Fatalf("record = %+v", rec)
		}
		if want := time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC); !rec.DueDate.Equal(want) {
			t.Fatalf("due = %s, want %s", rec.DueDate, want)
		}
	})

	t.Run("teacher cannot generate", func(t *testing.T) {
		_, err := svc.GenerateRecords(ctx, fx.Teacher(), fees.GenerateRequest{TermID: fx.TermID, FeeStructureIDs: []int64{tuition}})
		if !errors.Is(err, apperr.ErrForbidden) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("payments are additive", func(t *testing.T) {
		rec := recordOf(t, svc, fx, fx.Students[0])
		r1, err := svc.PostPayment(ctx, office, rec.ID, fees.PaymentInput{Amount: dec("20000"), Method: models.Cash}, fx.OfficeID)
		if err != nil {
			t.Fatal(err)
		}
		if r1.Record.Status != models.FeePartial || !r1.Record.AmountPaid.Equal(dec("20000")) {
			t.Fatalf("after first payment: %+v", r1.Record)
		}
		if r1.Payment.Reference == "" || r1.ReceiptNumber == "" {
			t.Fatalf("receipt = %+v", r1)
		}
		r2, err := svc.PostPayment(ctx, office, rec.ID, fees.PaymentInput{Amount: dec("30000"), Method: models.BankTransfer, Reference: "TRF-1"}, fx.OfficeID)
		if err != nil {
			t.Fatal(err)
		}
		if r2.Record.Status != models.FeeCleared || !r2.Record.AmountPaid.Equal(dec("50000")) {
			t.Fatalf("after second payment: %+v", r2.Record)
		}
		hist, err := svc.PaymentHistory(ctx, office, rec.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(hist) != 2 {
			t.Fatalf("history = %d rows", len(hist))
		}
	})

	t.Run("bulk payments roll back together", func(t *testing.T) {
		rec := recordOf(t, svc, fx, fx.Students[1])
		_, err := svc.BulkPostPayments(ctx, office, fees.BulkPayment{Payments: []fees.BulkPaymentItem{
			{FeeRecordID: rec.ID, PaymentInput: fees.PaymentInput{Amount: dec("10000"), Method: models.Cash}},
			{FeeRecordID: 987654, PaymentInput: fees.PaymentInput{Amount: dec("10000"), Method: models.Cash}},
		}}, fx.OfficeID)
		if !apperr.IsNotFound(err) {
			t.Fatalf("err = %v", err)
		}
		if after := recordOf(t, svc, fx, fx.Students[1]); !after.AmountPaid.IsZero() {
			t.Fatalf("first payment survived rollback: %s", after.AmountPaid)
		}
	})

	t.Run("overdue then payment re-derives status", func(t *testing.T) {
		n, err := svc.MarkOverdue(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Fatalf("marked = %d, want 2", n)
		}
		rec := recordOf(t, svc, fx, fx.Students[1])
		if rec.Status != models.FeeOverdue {
			t.Fatalf("status = %s", rec.Status)
		}
		r, err := svc.PostPayment(ctx, office, rec.ID, fees.PaymentInput{Amount: dec("100"), Method: models.POS}, fx.OfficeID)
		if err != nil {
			t.Fatal(err)
		}
		if r.Record.Status != models.FeePartial {
			t.Fatalf("status after payment = %s", r.Record.Status)
		}
	})

	t.Run("waived records refuse payments", func(t *testing.T) {
		rec := recordOf(t, svc, fx, fx.Students[2])
		if _, err := svc.SetStatus(ctx, office, rec.ID, models.FeeWaived); err != nil {
			t.Fatal(err)
		}
		_, err := svc.PostPayment(ctx, office, rec.ID, fees.PaymentInput{Amount: dec("1"), Method: models.Cash}, fx.OfficeID)
		if !errors.Is(err, apperr.ErrConflict) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("analytics", func(t *testing.T) {
		sum, err := svc.Analytics(ctx, office, fees.Filter{TermID: &fx.TermID})
		if err != nil {
			t.Fatal(err)
		}
		if sum.TotalStudents != 3 || !sum.TotalCollected.Equal(dec("50100")) {
			t.Fatalf("summary = %+v", sum)
		}
	})
}

func TestInvoiceNumbersAreSequentialUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	fx := testdb.Seed(t, h.DB, "inv", 1)
	other := testdb.Seed(t, h.DB, "inv2", 1)
	tuition := fx.FeeStructure(t, h.DB, "Tuition", "50000")
	otherTuition := other.FeeStructure(t, h.DB, "Tuition", "40000")
	svc := fees.New(h.DB, zap.NewNop(), time.UTC, nil)

	issue := time.Date(2024, time.September, 2, 0, 0, 0, 0, time.UTC)
	newInvoice := func(f testdb.Fixture, structure int64) fees.NewInvoice {
		return fees.NewInvoice{
			StudentID: f.Students[0],
			SessionID: f.SessionID,
			IssueDate: issue,
			DueDate:   issue.AddDate(0, 1, 0),
			Items:     []fees.InvoiceItemInput{{FeeStructureID: structure, Quantity: 2}},
		}
	}

	const n = 5
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []string
		errs    []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, err := svc.CreateInvoice(ctx, fx.Office(), newInvoice(fx, tuition), fx.OfficeID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers = append(numbers, inv.InvoiceNumber)
			if !inv.TotalAmount.Equal(dec("100000")) {
				errs = append(errs, errors.New("total = "+inv.TotalAmount.String()))
			}
		}()
	}
	wg.Wait()
	if len(errs) > 0 {
		t.Fatal(errs)
	}
	sort.Strings(numbers)
	want := []string{"INV2024000001", "INV2024000002", "INV2024000003", "INV2024000004", "INV2024000005"}
	for i := range want {
		if numbers[i] != want[i] {
			t.Fatalf("numbers = %v", numbers)
		}
	}

	next, err := svc.NextInvoiceNumber(ctx, fx.Office(), fx.SchoolID, 2024)
	if err != nil || next != "INV2024000006" {
		t.Fatalf("next = %q, %v", next, err)
	}

	inv, err := svc.CreateInvoice(ctx, other.Office(), newInvoice(other, otherTuition), other.OfficeID)
	if err != nil {
		t.Fatal(err)
	}
	if inv.InvoiceNumber != "INV2024000001" {
		t.Fatalf("second school starts at %s", inv.InvoiceNumber)
	}

	if _, err := svc.CreateInvoice(ctx, other.Office(), newInvoice(fx, tuition), other.OfficeID); !apperr.IsNotFound(err) {
		t.Fatalf("cross-school invoice: %v", err)
	}
}
