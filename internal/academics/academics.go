// Package academics manages sessions and terms, including the one-active invariants.
package academics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/school-erp/internal/apperr"
	"github.com/Spok95/school-erp/internal/db"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/scope"
)

type Service struct {
	db  *sql.DB
	log *zap.Logger
	loc *time.Location
}

func New(database *sql.DB, log *zap.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{db: database, log: log, loc: loc}
}

type NewSession struct {
	SchoolID  int64
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// CreateSession stores an inactive session. An empty name and zero dates default to the
// session containing today.
func (s *Service) CreateSession(ctx context.Context, sc scope.Scope, in NewSession) (*models.AcademicSession, error) {
	if !sc.CanManage() {
		return nil, apperr.Forbidden("create session")
	}
	if _, err := db.GetSchool(ctx, s.db, sc, in.SchoolID); err != nil {
		return nil, err
	}
	if in.StartDate.IsZero() && in.EndDate.IsZero() {
		year := db.SessionStartYear(time.Now().In(s.loc))
		in.StartDate, in.EndDate = db.SessionBoundsByStartYear(year, s.loc)
		if in.Name == "" {
			in.Name = db.SessionLabel(year)
		}
	}
	if err := checkRange(strings.TrimSpace(in.Name), in.StartDate, in.EndDate); err != nil {
		return nil, err
	}
	sess := models.AcademicSession{SchoolID: in.SchoolID, Name: strings.TrimSpace(in.Name), StartDate: in.StartDate, EndDate: in.EndDate}
	id, err := db.CreateSession(ctx, s.db, sess)
	if err != nil {
		return nil, err
	}
	sess.ID = id
	return &sess, nil
}

func (s *Service) CreateTerm(ctx context.Context, sc scope.Scope, sessionID int64, name string, start, end time.Time) (*models.Term, error) {
	if !sc.CanManage() {
		return nil, apperr.Forbidden("create term")
	}
	sess, err := db.GetSession(ctx, s.db, sc, sessionID)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := checkRange(name, start, end); err != nil {
		return nil, err
	}
	t := models.Term{SessionID: sess.ID, SchoolID: sess.SchoolID, Name: name, StartDate: start, EndDate: end}
	id, err := db.CreateTerm(ctx, s.db, t)
	if err != nil {
		return nil, err
	}
	t.ID = id
	return &t, nil
}

func (s *Service) ListSessions(ctx context.Context, sc scope.Scope, schoolID int64) ([]models.AcademicSession, error) {
	return db.ListSessions(ctx, s.db, sc, schoolID)
}

func (s *Service) ListTerms(ctx context.Context, sc scope.Scope, sessionID int64) ([]models.Term, error) {
	if _, err := db.GetSession(ctx, s.db, sc, sessionID); err != nil {
		return nil, err
	}
	return db.ListTerms(ctx, s.db, sessionID)
}

func (s *Service) ActiveTerm(ctx context.Context, sc scope.Scope, schoolID int64) (*models.Term, error) {
	t, err := db.GetActiveTerm(ctx, s.db, schoolID)
	if err != nil {
		return nil, err
	}
	// re-read through the scope so other tenants see not-found
	return db.GetTerm(ctx, s.db, sc, t.ID)
}

// ActivateSession makes sessionID the only active session of its school.
func (s *Service) ActivateSession(ctx context.Context, sc scope.Scope, sessionID int64) (*models.AcademicSession, error) {
	if !sc.CanManage() {
		return nil, apperr.Forbidden("activate session")
	}
	var out *models.AcademicSession
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		sess, err := db.GetSession(ctx, tx, sc, sessionID)
		if err != nil {
			return err
		}
		if err := db.ActivateSession(ctx, tx, sess.SchoolID, sess.ID); err != nil {
			return err
		}
		sess.IsActive = true
		out = sess
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("activate session %d: %w", sessionID, err)
	}
	s.log.Info("session activated", zap.Int64("session_id", out.ID), zap.Int64("school_id", out.SchoolID))
	return out, nil
}

// ActivateTerm makes termID the only active term of its session.
func (s *Service) ActivateTerm(ctx context.Context, sc scope.Scope, termID int64) (*models.Term, error) {
	if !sc.CanManage() {
		return nil, apperr.Forbidden("activate term")
	}
	var out *models.Term
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := db.GetTerm(ctx, tx, sc, termID)
		if err != nil {
			return err
		}
		if err := db.ActivateTerm(ctx, tx, t.SessionID, t.ID); err != nil {
			return err
		}
		t.IsActive = true
		out = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("activate term %d: %w", termID, err)
	}
	s.log.Info("term activated", zap.Int64("term_id", out.ID), zap.Int64("session_id", out.SessionID))
	return out, nil
}

func checkRange(name string, start, end time.Time) error {
	var fields []apperr.FieldError
	if name == "" {
		fields = append(fields, apperr.FieldError{Field: "name", Error: "this field is required"})
	}
	if start.IsZero() || end.IsZero() {
		fields = append(fields, apperr.FieldError{Field: "start_date", Error: "start and end dates are required"})
	} else if start.After(end) {
		fields = append(fields, apperr.FieldError{Field: "end_date", Error: "end date cannot be before start date"})
	}
	if len(fields) > 0 {
		return apperr.Validation("invalid date range", fields...)
	}
	return nil
}

