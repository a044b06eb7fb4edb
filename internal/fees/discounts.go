package fees

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Spok95/school-erp/internal/apperr"
	"github.com/Spok95/school-erp/internal/db"
	"github.com/Spok95/school-erp/internal/logging"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/scope"
	"github.com/Spok95/school-erp/internal/validate"
)

var hundredPercent = decimal.NewFromInt(100)

type NewDiscountScheme struct {
	SchoolID        int64                 `json:"school_id"`
	Name            string                `json:"name" validate:"required,max=100"`
	Description     string                `json:"description" validate:"max=1000"`
	Type            models.DiscountType   `json:"discount_type" validate:"required,oneof=percentage fixed_amount"`
	Value           decimal.Decimal       `json:"discount_value" validate:"gte=0"`
	AppliesTo       models.DiscountTarget `json:"applies_to" validate:"omitempty,oneof=all_fees tuition_only specific_fees"`
	FeeStructureIDs []int64               `json:"fee_structure_ids" validate:"dive,required"`
	StartDate       time.Time             `json:"start_date" validate:"required"`
	EndDate         time.Time             `json:"end_date" validate:"required"`
}

// CreateDiscountScheme stores a school's discount. Office accounts may omit school_id.
// Percentages above 100 are rejected, and specific_fees needs at least one of the
// school's active fee structures.
func (s *Service) CreateDiscountScheme(ctx context.Context, sc scope.Scope, in NewDiscountScheme) (*models.DiscountScheme, error) {
	if !sc.CanManage() {
		return nil, apperr.Forbidden("create discount scheme")
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if in.SchoolID == 0 {
		id, ok := sc.SchoolID()
		if !ok {
			return nil, apperr.Validation("school is required",
				apperr.FieldError{Field: "school_id", Error: "school_id is required"})
		}
		in.SchoolID = id
	}
	if in.AppliesTo == "" {
		in.AppliesTo = models.AllFees
	}
	var fields []apperr.FieldError
	if in.Type == models.DiscountPercentage && in.Value.GreaterThan(hundredPercent) {
		fields = append(fields, apperr.FieldError{Field: "discount_value", Error: "percentage cannot exceed 100"})
	}
	if in.EndDate.Before(in.StartDate) {
		fields = append(fields, apperr.FieldError{Field: "end_date", Error: "end date cannot be before start date"})
	}
	switch {
	case in.AppliesTo == models.SpecificFees && len(in.FeeStructureIDs) == 0:
		fields = append(fields, apperr.FieldError{Field: "fee_structure_ids", Error: "specific_fees needs at least one fee structure"})
	case in.AppliesTo != models.SpecificFees && len(in.FeeStructureIDs) > 0:
		fields = append(fields, apperr.FieldError{Field: "fee_structure_ids", Error: "only specific_fees lists fee structures"})
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid discount scheme", fields...)
	}

	d := models.DiscountScheme{
		SchoolID:        in.SchoolID,
		Name:            in.Name,
		Description:     strings.TrimSpace(in.Description),
		Type:            in.Type,
		Value:           in.Value.Round(2),
		AppliesTo:       in.AppliesTo,
		FeeStructureIDs: in.FeeStructureIDs,
		StartDate:       in.StartDate,
		EndDate:         in.EndDate,
		IsActive:        true,
	}
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := db.GetSchool(ctx, tx, sc, d.SchoolID); err != nil {
			return err
		}
		if len(d.FeeStructureIDs) > 0 {
			found, err := db.ListFeeStructures(ctx, tx, sc, d.FeeStructureIDs)
			if err != nil {
				return err
			}
			if err := checkStructures(d.FeeStructureIDs, found, d.SchoolID); err != nil {
				return err
			}
		}
		var err error
		d.ID, err = db.CreateDiscountScheme(ctx, tx, d)
		return err
	})
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx, s.log).Info("discount scheme created",
		zap.Int64("discount_scheme_id", d.ID), zap.Int64("school_id", d.SchoolID), zap.String("type", string(d.Type)))
	return &d, nil
}

func (s *Service) ListDiscountSchemes(ctx context.Context, sc scope.Scope, schoolID *int64) ([]models.DiscountScheme, error) {
	if !sc.CanManage() {
		return nil, apperr.Forbidden("list discount schemes")
	}
	return db.ListDiscountSchemes(ctx, s.db, sc, schoolID)
}

type NewStudentDiscount struct {
	StudentID int64  `json:"student_id" validate:"required"`
	SchemeID  int64  `json:"discount_scheme_id" validate:"required"`
	SessionID int64  `json:"session_id" validate:"required"`
	Reason    string `json:"reason" validate:"max=1000"`
}

// GrantDiscount gives a student a scheme for one session. It affects records generated
// afterwards; existing records keep their amounts.
func (s *Service) GrantDiscount(ctx context.Context, sc scope.Scope, in NewStudentDiscount, appliedBy int64) (*models.StudentDiscount, error) {
	if !sc.CanManage() {
		return nil, apperr.Forbidden("grant discount")
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	var out *models.StudentDiscount
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		student, err := db.GetStudent(ctx, tx, sc, in.StudentID)
		if err != nil {
			return err
		}
		scheme, err := db.GetDiscountScheme(ctx, tx, sc, in.SchemeID)
		if err != nil {
			return err
		}
		session, err := db.GetSession(ctx, tx, sc, in.SessionID)
		if err != nil {
			return err
		}
		if scheme.SchoolID != student.SchoolID || session.SchoolID != student.SchoolID {
			return apperr.Validation("discount belongs to another school",
				apperr.FieldError{Field: "discount_scheme_id", Error: "scheme and session must be of the student's school"})
		}
		out, err = db.CreateStudentDiscount(ctx, tx, models.StudentDiscount{
			StudentID: student.ID,
			SchemeID:  scheme.ID,
			SessionID: session.ID,
			AppliedBy: appliedBy,
			Reason:    strings.TrimSpace(in.Reason),
			IsActive:  true,
		})
		if err != nil {
			return err
		}
		out.SchemeName = scheme.Name
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx, s.log).Info("discount granted",
		zap.Int64("student_id", out.StudentID), zap.Int64("discount_scheme_id", out.SchemeID), zap.Int64("session_id", out.SessionID))
	return out, nil
}

func (s *Service) ListStudentDiscounts(ctx context.Context, sc scope.Scope, studentID *int64) ([]models.StudentDiscount, error) {
	if !sc.CanManage() {
		return nil, apperr.Forbidden("list student discounts")
	}
	return db.ListStudentDiscounts(ctx, s.db, sc, studentID)
}
