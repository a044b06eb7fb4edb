//go:build testutil
// +build testutil

package fees_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/school-erp/internal/fees"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/testutil/testdb"
)

func TestPostPayment_Parallel(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	fx := testdb.Seed(t, h.DB, "par", 1)
	structure := fx.FeeStructure(t, h.DB, "Tuition", "10000")
	svc := fees.New(h.DB, zap.NewNop(), time.UTC, nil)
	if _, err := svc.GenerateRecords(ctx, fx.Office(), fees.GenerateRequest{TermID: fx.TermID, FeeStructureIDs: []int64{structure}}); err != nil {
		t.Fatal(err)
	}
	rec := recordOf(t, svc, fx, fx.Students[0])

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PostPayment(ctx, fx.Office(), rec.ID, fees.PaymentInput{Amount: dec("1000"), Method: models.Cash}, fx.OfficeID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	after := recordOf(t, svc, fx, fx.Students[0])
	if !after.AmountPaid.Equal(dec("10000")) || after.Status != models.FeeCleared {
		t.Fatalf("paid = %s status = %s", after.AmountPaid, after.Status)
	}
	hist, err := svc.PaymentHistory(ctx, fx.Office(), rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != workers {
		t.Fatalf("history = %d rows", len(hist))
	}
}

func BenchmarkPostPayment(b *testing.B) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		b.Fatal(err)
	}
	defer h.Close()

	fx := testdb.Seed(b, h.DB, "bench", 1)
	structure := fx.FeeStructure(b, h.DB, "Tuition", "9999999999")
	svc := fees.New(h.DB, zap.NewNop(), time.UTC, nil)
	if _, err := svc.GenerateRecords(ctx, fx.Office(), fees.GenerateRequest{TermID: fx.TermID, FeeStructureIDs: []int64{structure}}); err != nil {
		b.Fatal(err)
	}
	rows, err := svc.ListRecords(ctx, fx.Office(), fees.Filter{StudentID: &fx.Students[0]})
	if err != nil || len(rows) != 1 {
		b.Fatalf("records: %v %v", rows, err)
	}
	id := rows[0].ID

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = svc.PostPayment(ctx, fx.Office(), id, fees.PaymentInput{Amount: dec("1"), Method: models.Cash}, fx.OfficeID)
		}
	})
}
