package fees

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Spok95/school-erp/internal/apperr"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/scope"
)

func i64(v int64) *int64 { return &v }

var office = scope.Resolve(scope.Principal{UserID: 2, Role: models.OfficeAccount, SchoolID: i64(1)})

func TestPostPaymentValidation(t *testing.T) {
	svc := New(nil, zap.NewNop(), nil, nil)
	cases := []struct {
		name  string
		in    PaymentInput
		field string
	}{
		{"zero amount", PaymentInput{Amount: decimal.Zero, Method: models.Cash}, "amount"},
		{"negative amount", PaymentInput{Amount: decimal.NewFromInt(-5), Method: models.Cash}, "amount"},
		{"unknown method", PaymentInput{Amount: decimal.NewFromInt(5), Method: "barter"}, "payment_method"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := svc.PostPayment(context.Background(), office, 1, c.in, 2)
			v, ok := apperr.AsValidation(err)
			if !ok || v.Fields[0].Field != c.field {
				t.Fatalf("got %v", err)
			}
		})
	}
}

func TestBulkPaymentValidationNamesTheRow(t *testing.T) {
	svc := New(nil, zap.NewNop(), nil, nil)
	_, err := svc.BulkPostPayments(context.Background(), office, BulkPayment{Payments: []BulkPaymentItem{
		{FeeRecordID: 1, PaymentInput: PaymentInput{Amount: decimal.NewFromInt(10), Method: models.Cash}},
		{FeeRecordID: 2, PaymentInput: PaymentInput{Amount: decimal.Zero, Method: models.Cash}},
	}}, 2)
	v, ok := apperr.AsValidation(err)
	if !ok || !strings.HasPrefix(v.Fields[0].Field, "payments[1].") || !strings.HasSuffix(v.Fields[0].Field, "amount") {
		t.Fatalf("got %v", err)
	}
}

func TestMutationsNeedManager(t *testing.T) {
	svc := New(nil, zap.NewNop(), nil, nil)
	teacher := scope.Resolve(scope.Principal{UserID: 3, Role: models.Teacher, SchoolID: i64(1)})
	ctx := context.Background()

	if _, err := svc.GenerateRecords(ctx, teacher, GenerateRequest{}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.PostPayment(ctx, teacher, 1, PaymentInput{}, 3); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("post: %v", err)
	}
	if _, err := svc.SetStatus(ctx, teacher, 1, models.FeeWaived); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("set status: %v", err)
	}
	if _, err := svc.CreateInvoice(ctx, teacher, NewInvoice{}, 3); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("invoice: %v", err)
	}
}

func TestSetStatusOnlyAllowsOverrides(t *testing.T) {
	svc := New(nil, zap.NewNop(), nil, nil)
	for _, st := range []models.FeeStatus{models.FeeCleared, models.FeePartial, models.FeePending, "bogus"} {
		if _, err := svc.SetStatus(context.Background(), office, 1, st); err == nil {
			t.Fatalf("status %q accepted", st)
		} else if _, ok := apperr.AsValidation(err); !ok {
			t.Fatalf("status %q: %v", st, err)
		}
	}
}

func TestCheckStructures(t *testing.T) {
	found := []models.FeeStructure{{ID: 1, SchoolID: 7}, {ID: 2, SchoolID: 8}}
	if err := checkStructures([]int64{1}, found, 7); err != nil {
		t.Fatal(err)
	}
	if err := checkStructures([]int64{1, 3}, found, 7); !apperr.IsNotFound(err) {
		t.Fatalf("missing structure: %v", err)
	}
	if _, ok := apperr.AsValidation(checkStructures([]int64{2}, found, 7)); !ok {
		t.Fatal("structure of another school accepted")
	}
}

func TestGroupByStudentKeepsOrder(t *testing.T) {
	recs := []models.FeeRecord{
		{ID: 10, StudentID: 2}, {ID: 11, StudentID: 1}, {ID: 12, StudentID: 2},
	}
	g := groupByStudent(recs)
	if len(g) != 2 || g[0].studentID != 2 || len(g[0].recordIDs) != 2 || g[1].recordIDs[0] != 11 {
		t.Fatalf("groups = %+v", g)
	}
}
