package ledger

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Spok95/school-erp/internal/models"
)

// Covers reports whether scheme reduces fs on day. Validity dates are inclusive and
// tuition is recognised by the structure name.
func Covers(scheme models.DiscountScheme, fs models.FeeStructure, day time.Time) bool {
	if !scheme.IsActive || day.Before(scheme.StartDate) || day.After(scheme.EndDate) {
		return false
	}
	switch scheme.AppliesTo {
	case models.AllFees:
		return true
	case models.TuitionOnly:
		return strings.Contains(strings.ToLower(fs.Name), "tuition")
	case models.SpecificFees:
		return slices.Contains(scheme.FeeStructureIDs, fs.ID)
	}
	return false
}

// Reduction is what one scheme takes off amount, rounded to kobo and never more than amount.
func Reduction(scheme models.DiscountScheme, amount decimal.Decimal) decimal.Decimal {
	var r decimal.Decimal
	switch scheme.Type {
	case models.DiscountPercentage:
		r = amount.Mul(scheme.Value).Div(hundred).Round(2)
	case models.DiscountFixed:
		r = scheme.Value
	default:
		return decimal.Zero
	}
	return decimal.Min(r, amount)
}

// Discount totals the reductions of every covering scheme, each taken on the full
// amount, capped at amount.
func Discount(schemes []models.DiscountScheme, fs models.FeeStructure, day time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, s := range schemes {
		if Covers(s, fs, day) {
			total = total.Add(Reduction(s, fs.Amount))
		}
	}
	return decimal.Min(total, fs.Amount)
}
