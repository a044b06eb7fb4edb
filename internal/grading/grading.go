// Package grading derives per-subject grades and folds them into term summaries.
package grading

import (
	"github.com/shopspring/decimal"

	"github.com/Spok95/school-erp/internal/models"
)

type Letter string

const (
	A Letter = "A"
	B Letter = "B"
	C Letter = "C"
	D Letter = "D"
	E Letter = "E"
	F Letter = "F"
)

type band struct {
	min    decimal.Decimal
	letter Letter
	point  decimal.Decimal
}

// bands are checked top-down; lower bounds are inclusive.
var bands = []band{
	{decimal.NewFromInt(80), A, decimal.NewFromInt(5)},
	{decimal.NewFromInt(70), B, decimal.NewFromInt(4)},
	{decimal.NewFromInt(60), C, decimal.NewFromInt(3)},
	{decimal.NewFromInt(50), D, decimal.NewFromInt(2)},
	{decimal.NewFromInt(40), E, decimal.NewFromInt(1)},
}

var (
	maxComponent = decimal.NewFromInt(100)
)

// Grade maps an average score to its letter.
func Grade(avg decimal.Decimal) Letter {
	for _, b := range bands {
		if avg.GreaterThanOrEqual(b.min) {
			return b.letter
		}
	}
	return F
}

// GradePoint maps a letter to its point value; unknown letters score zero.
func GradePoint(l Letter) decimal.Decimal {
	for _, b := range bands {
		if b.letter == l {
			return b.point
		}
	}
	return decimal.Zero
}

// ValidComponent reports whether an assessment score is absent or within 0..100.
func ValidComponent(c *decimal.Decimal) bool {
	if c == nil {
		return true
	}
	return !c.IsNegative() && c.LessThanOrEqual(maxComponent)
}

// Total is the sum of the present components.
func Total(r models.SubjectResult) decimal.Decimal {
	return decimal.Sum(decimal.Zero, r.Components()...)
}

// Average is the mean of the present components, zero when none were taken.
func Average(r models.SubjectResult) decimal.Decimal {
	cs := r.Components()
	if len(cs) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(decimal.Zero, cs...).Div(decimal.NewFromInt(int64(len(cs))))
}

type Derived struct {
	Total      decimal.Decimal `json:"total_score"`
	Average    decimal.Decimal `json:"average_score"`
	Grade      Letter          `json:"grade"`
	GradePoint decimal.Decimal `json:"grade_point"`
}

func Derive(r models.SubjectResult) Derived {
	avg := Average(r)
	g := Grade(avg)
	return Derived{
		Total:      Total(r),
		Average:    avg,
		Grade:      g,
		GradePoint: GradePoint(g),
	}
}
