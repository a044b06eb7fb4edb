package fees

import (
	"context"
	"database/sql"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Spok95/school-erp/internal/apperr"
	"github.com/Spok95/school-erp/internal/db"
	"github.com/Spok95/school-erp/internal/logging"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/scope"
	"github.com/Spok95/school-erp/internal/validate"
)

type NewFeeStructure struct {
	SessionID   int64               `json:"session_id" validate:"required"`
	ClassID     *int64              `json:"class_id"`
	Name        string              `json:"name" validate:"required,max=100"`
	Amount      decimal.Decimal     `json:"amount" validate:"gte=0"`
	Frequency   models.FeeFrequency `json:"payment_frequency" validate:"omitempty,oneof=termly annual monthly one_time"`
	IsMandatory *bool               `json:"is_mandatory"`
}

// CreateFeeStructure adds a billing template to the session's school. Without a class
// it applies to the whole school. Names are unique per (session, class).
func (s *Service) CreateFeeStructure(ctx context.Context, sc scope.Scope, in NewFeeStructure) (*models.FeeStructure, error) {
	if !sc.CanManage() {
		return nil, apperr.Forbidden("create fee structure")
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	fs := models.FeeStructure{
		SessionID:   in.SessionID,
		ClassID:     in.ClassID,
		Name:        in.Name,
		Amount:      in.Amount.Round(2),
		Frequency:   in.Frequency,
		IsMandatory: true,
		IsActive:    true,
	}
	if fs.Frequency == "" {
		fs.Frequency = models.Termly
	}
	if in.IsMandatory != nil {
		fs.IsMandatory = *in.IsMandatory
	}

	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		session, err := db.GetSession(ctx, tx, sc, in.SessionID)
		if err != nil {
			return err
		}
		fs.SchoolID = session.SchoolID
		if in.ClassID != nil {
			class, err := db.GetClass(ctx, tx, sc, *in.ClassID)
			if err != nil {
				return err
			}
			if class.SchoolID != session.SchoolID {
				return apperr.Validation("class belongs to another school",
					apperr.FieldError{Field: "class_id", Error: "class is not of the session's school"})
			}
		}
		fs.ID, err = db.CreateFeeStructure(ctx, tx, fs)
		return err
	})
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx, s.log).Info("fee structure created",
		zap.Int64("fee_structure_id", fs.ID), zap.Int64("school_id", fs.SchoolID), zap.String("amount", fs.Amount.String()))
	return &fs, nil
}

type StructureFilter struct {
	SchoolID   *int64
	SessionID  *int64
	ClassID    *int64
	ActiveOnly bool
}

func (s *Service) ListFeeStructures(ctx context.Context, sc scope.Scope, f StructureFilter) ([]models.FeeStructure, error) {
	if !sc.CanManage() {
		return nil, apperr.Forbidden("list fee structures")
	}
	return db.FindFeeStructures(ctx, s.db, sc, db.FeeStructureFilter{
		SchoolID: f.SchoolID, SessionID: f.SessionID, ClassID: f.ClassID, ActiveOnly: f.ActiveOnly,
	})
}
