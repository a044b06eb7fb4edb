package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed_amount"
)

// DiscountTarget selects which fee structures a scheme reduces.
type DiscountTarget string

const (
	AllFees      DiscountTarget = "all_fees"
	TuitionOnly  DiscountTarget = "tuition_only"
	SpecificFees DiscountTarget = "specific_fees"
)

// DiscountScheme is a school-wide reduction such as a scholarship or sibling discount.
type DiscountScheme struct {
	ID              int64           `db:"id" json:"id"`
	SchoolID        int64           `db:"school_id" json:"school_id"`
	Name            string          `db:"name" json:"name"`
	Description     string          `db:"description" json:"description"`
	Type            DiscountType    `db:"discount_type" json:"discount_type"`
	Value           decimal.Decimal `db:"discount_value" json:"discount_value"`
	AppliesTo       DiscountTarget  `db:"applies_to" json:"applies_to"`
	FeeStructureIDs []int64         `db:"fee_structure_ids" json:"fee_structure_ids"`
	StartDate       time.Time       `db:"start_date" json:"start_date"`
	EndDate         time.Time       `db:"end_date" json:"end_date"`
	IsActive        bool            `db:"is_active" json:"is_active"`
}

// StudentDiscount grants a scheme to one student for one academic session.
type StudentDiscount struct {
	ID         int64     `db:"id" json:"id"`
	StudentID  int64     `db:"student_id" json:"student_id"`
	SchemeID   int64     `db:"scheme_id" json:"discount_scheme_id"`
	SessionID  int64     `db:"session_id" json:"session_id"`
	AppliedBy  int64     `db:"applied_by" json:"applied_by"`
	Reason     string    `db:"reason" json:"reason"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	SchemeName string    `db:"scheme_name" json:"discount_name"`
}
