package ledger

import (
	"testing"
	"time"

	"github.com/Spok95/school-erp/internal/models"
)

func scheme(typ models.DiscountType, value string, target models.DiscountTarget) models.DiscountScheme {
	return models.DiscountScheme{
		Type:      typ,
		Value:     dec(value),
		AppliesTo: target,
		StartDate: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
	}
}

func TestCovers(t *testing.T) {
	day := time.Date(2024, 9, 9, 0, 0, 0, 0, time.UTC)
	tuition := models.FeeStructure{ID: 1, Name: "Tuition Fee", Amount: dec("50000")}
	levy := models.FeeStructure{ID: 2, Name: "Development Levy", Amount: dec("5000")}

	all := scheme(models.DiscountPercentage, "10", models.AllFees)
	onlyTuition := scheme(models.DiscountPercentage, "10", models.TuitionOnly)
	specific := scheme(models.DiscountFixed, "1000", models.SpecificFees)
	specific.FeeStructureIDs = []int64{2}
	inactive := all
	inactive.IsActive = false
	expired := all
	expired.EndDate = day.AddDate(0, 0, -1)

	cases := []struct {
		name   string
		scheme models.DiscountScheme
		fs     models.FeeStructure
		want   bool
	}{
		{"all fees", all, levy, true},
		{"tuition on tuition", onlyTuition, tuition, true},
		{"tuition on levy", onlyTuition, levy, false},
		{"specific listed", specific, levy, true},
		{"specific unlisted", specific, tuition, false},
		{"inactive", inactive, tuition, false},
		{"expired", expired, tuition, false},
	}
	for _, c := range cases {
		if got := Covers(c.scheme, c.fs, day); got != c.want {
			t.Errorf("%s: covers = %v, want %v", c.name, got, c.want)
		}
	}
	if !Covers(all, tuition, all.EndDate) {
		t.Error("end date must be inclusive")
	}
}

func TestDiscountIsCappedAtAmount(t *testing.T) {
	day := time.Date(2024, 9, 9, 0, 0, 0, 0, time.UTC)
	fs := models.FeeStructure{ID: 1, Name: "Tuition", Amount: dec("50000")}

	got := Discount([]models.DiscountScheme{
		scheme(models.DiscountPercentage, "12.5", models.AllFees),
		scheme(models.DiscountFixed, "2000", models.TuitionOnly),
	}, fs, day)
	if !got.Equal(dec("8250")) {
		t.Fatalf("discount = %s, want 8250", got)
	}

	got = Discount([]models.DiscountScheme{
		scheme(models.DiscountPercentage, "100", models.AllFees),
		scheme(models.DiscountFixed, "5000", models.AllFees),
	}, fs, day)
	if !got.Equal(fs.Amount) {
		t.Fatalf("discount = %s, want the full amount", got)
	}
}

func TestPlanAppliesDiscounts(t *testing.T) {
	term := models.Term{ID: 3, StartDate: time.Date(2024, 9, 9, 0, 0, 0, 0, time.UTC)}
	structures := []models.FeeStructure{{ID: 1, Name: "Tuition", Amount: dec("50000")}}
	discounts := map[int64][]models.DiscountScheme{
		10: {scheme(models.DiscountPercentage, "20", models.AllFees)},
		11: {scheme(models.DiscountPercentage, "100", models.AllFees)},
	}
	got := Plan(term, structures, []int64{10, 11, 12}, nil, discounts)
	by := map[int64]models.FeeRecord{}
	for _, r := range got {
		by[r.StudentID] = r
	}
	if r := by[10]; !r.AmountDue.Equal(dec("40000")) || !r.DiscountAmount.Equal(dec("10000")) || r.Status != models.FeePending {
		t.Fatalf("student 10 = %+v", r)
	}
	if r := by[11]; !r.AmountDue.IsZero() || r.Status != models.FeeCleared {
		t.Fatalf("fully discounted record = %+v", r)
	}
	if r := by[12]; !r.AmountDue.Equal(dec("50000")) || !r.DiscountAmount.IsZero() {
		t.Fatalf("undiscounted record = %+v", r)
	}
}
