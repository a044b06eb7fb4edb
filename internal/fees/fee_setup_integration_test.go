//go:build testutil
// +build testutil

package fees_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/school-erp/internal/apperr"
	"github.com/Spok95/school-erp/internal/fees"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/scope"
	"github.com/Spok95/school-erp/internal/testutil/testdb"
)

func TestStructuresAndDiscounts(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	fx := testdb.Seed(t, h.DB, "setup", 2)
	svc := fees.New(h.DB, zap.NewNop(), time.UTC, nil)
	office := fx.Office()

	newTuition := fees.NewFeeStructure{SessionID: fx.SessionID, ClassID: &fx.ClassID, Name: " Tuition ", Amount: dec("50000")}
	tuition, err := svc.CreateFeeStructure(ctx, office, newTuition)
	if err != nil {
		t.Fatal(err)
	}
	if tuition.SchoolID != fx.SchoolID || tuition.Name != "Tuition" || tuition.Frequency != models.Termly || !tuition.IsMandatory {
		t.Fatalf("structure = %+v", tuition)
	}
	if _, err := svc.CreateFeeStructure(ctx, office, newTuition); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("duplicate structure: %v", err)
	}
	if _, err := svc.CreateFeeStructure(ctx, fx.Teacher(), newTuition); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("teacher: %v", err)
	}
	listed, err := svc.ListFeeStructures(ctx, office, fees.StructureFilter{ClassID: &fx.ClassID, ActiveOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].ID != tuition.ID {
		t.Fatalf("listed = %+v", listed)
	}

	start := time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC)
	scheme, err := svc.CreateDiscountScheme(ctx, office, fees.NewDiscountScheme{
		Name:      "Sibling",
		Type:      models.DiscountPercentage,
		Value:     dec("20"),
		StartDate: start,
		EndDate:   start.AddDate(1, 0, -1),
	})
	if err != nil {
		t.Fatal(err)
	}
	if scheme.SchoolID != fx.SchoolID || scheme.AppliesTo != models.AllFees {
		t.Fatalf("scheme = %+v", scheme)
	}
	_, err = svc.CreateDiscountScheme(ctx, office, fees.NewDiscountScheme{
		Name: "Too much", Type: models.DiscountPercentage, Value: dec("120"), StartDate: start, EndDate: start,
	})
	if v, ok := apperr.AsValidation(err); !ok || v.Fields[0].Field != "discount_value" {
		t.Fatalf("120%%: %v", err)
	}

	grant := fees.NewStudentDiscount{StudentID: fx.Students[0], SchemeID: scheme.ID, SessionID: fx.SessionID, Reason: "second child"}
	sd, err := svc.GrantDiscount(ctx, office, grant, fx.OfficeID)
	if err != nil {
		t.Fatal(err)
	}
	if sd.SchemeName != "Sibling" || sd.AppliedBy != fx.OfficeID {
		t.Fatalf("grant = %+v", sd)
	}
	if _, err := svc.GrantDiscount(ctx, office, grant, fx.OfficeID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("duplicate grant: %v", err)
	}
	grants, err := svc.ListStudentDiscounts(ctx, office, &fx.Students[0])
	if err != nil || len(grants) != 1 {
		t.Fatalf("grants = %+v, %v", grants, err)
	}

	if _, err := svc.GenerateRecords(ctx, office, fees.GenerateRequest{TermID: fx.TermID, FeeStructureIDs: []int64{tuition.ID}}); err != nil {
		t.Fatal(err)
	}
	discounted := recordOf(t, svc, fx, fx.Students[0])
	if !discounted.AmountDue.Equal(dec("40000")) || !discounted.DiscountAmount.Equal(dec("10000")) {
		t.Fatalf("discounted record = %+v", discounted)
	}
	full := recordOf(t, svc, fx, fx.Students[1])
	if !full.AmountDue.Equal(dec("50000")) || !full.DiscountAmount.IsZero() {
		t.Fatalf("full record = %+v", full)
	}
}

func TestInvoiceReads(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	fx := testdb.Seed(t, h.DB, "invread", 2)
	tuition := fx.FeeStructure(t, h.DB, "Tuition", "30000")
	svc := fees.New(h.DB, zap.NewNop(), time.UTC, nil)
	office := fx.Office()

	issue := time.Date(2024, time.September, 2, 0, 0, 0, 0, time.UTC)
	inv, err := svc.CreateInvoice(ctx, office, fees.NewInvoice{
		StudentID: fx.Students[0],
		SessionID: fx.SessionID,
		IssueDate: issue,
		DueDate:   issue.AddDate(0, 1, 0),
		Items:     []fees.InvoiceItemInput{{FeeStructureID: tuition, Quantity: 1}},
	}, fx.OfficeID)
	if err != nil {
		t.Fatal(err)
	}

	list, err := svc.ListInvoices(ctx, office, fees.InvoiceFilter{StudentID: &fx.Students[0]})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].InvoiceNumber != inv.InvoiceNumber || len(list[0].Items) != 1 {
		t.Fatalf("list = %+v", list)
	}
	paid := models.InvoicePaid
	if list, err = svc.ListInvoices(ctx, office, fees.InvoiceFilter{Status: &paid}); err != nil || len(list) != 0 {
		t.Fatalf("paid invoices = %+v, %v", list, err)
	}

	got, err := svc.GetInvoice(ctx, office, inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.TotalAmount.Equal(dec("30000")) || len(got.Items) != 1 {
		t.Fatalf("invoice = %+v", got)
	}

	var userID int64
	if err := h.DB.QueryRowContext(ctx, `
		INSERT INTO users (name, role, is_active) VALUES ('Other pupil', 'student', TRUE) RETURNING id
	`).Scan(&userID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.DB.ExecContext(ctx, `UPDATE students SET user_id = $1 WHERE id = $2`, userID, fx.Students[1]); err != nil {
		t.Fatal(err)
	}
	other := scope.Resolve(scope.Principal{UserID: userID, Role: models.Student})
	if _, err := svc.GetInvoice(ctx, other, inv.ID); !apperr.IsNotFound(err) {
		t.Fatalf("other student's invoice: %v", err)
	}
	if list, err := svc.ListInvoices(ctx, other, fees.InvoiceFilter{}); err != nil || len(list) != 0 {
		t.Fatalf("other student sees %+v, %v", list, err)
	}
}
