// Package results aggregates subject results into ranked, publishable term summaries.
package results

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Spok95/school-erp/internal/apperr"
	"github.com/Spok95/school-erp/internal/db"
	"github.com/Spok95/school-erp/internal/grading"
	"github.com/Spok95/school-erp/internal/ledger"
	"github.com/Spok95/school-erp/internal/logging"
	"github.com/Spok95/school-erp/internal/metrics"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/scope"
	"github.com/Spok95/school-erp/internal/validate"
)

// Publisher is told about every summary that became published. It must not block.
type Publisher interface {
	ResultPublished(summaryID int64) bool
}

type Service struct {
	db     *sql.DB
	log    *zap.Logger
	notify Publisher
}

func New(database *sql.DB, log *zap.Logger, notify Publisher) *Service {
	return &Service{db: database, log: log, notify: notify}
}

type ResultRow struct {
	StudentID int64            `json:"student_id" validate:"required"`
	FirstCA   *decimal.Decimal `json:"first_ca" validate:"omitempty,score"`
	SecondCA  *decimal.Decimal `json:"second_ca" validate:"omitempty,score"`
	Exam      *decimal.Decimal `json:"exam_marks" validate:"omitempty,score"`
	Remarks   string           `json:"remarks" validate:"max=500"`
}

type BulkInput struct {
	TermID    int64       `json:"term_id" validate:"required"`
	ClassID   int64       `json:"class_id" validate:"required"`
	SubjectID int64       `json:"subject_id" validate:"required"`
	Results   []ResultRow `json:"results" validate:"required,min=1,dive"`
}

// BulkInput upserts a class's results for one subject. Any student outside the caller's
// scope aborts the whole batch.
func (s *Service) BulkInput(ctx context.Context, sc scope.Scope, in BulkInput, teacherID int64) (int, error) {
	if !sc.CanSubmitResults() {
		return 0, apperr.Forbidden("submit results")
	}
	if err := validate.Struct(in); err != nil {
		return 0, err
	}
	if _, err := db.GetTerm(ctx, s.db, sc, in.TermID); err != nil {
		return 0, err
	}
	if _, err := db.GetClass(ctx, s.db, sc, in.ClassID); err != nil {
		return 0, err
	}
	if _, err := db.GetSubject(ctx, s.db, sc, in.SubjectID); err != nil {
		return 0, err
	}

	ids := make([]int64, 0, len(in.Results))
	for _, r := range in.Results {
		ids = append(ids, r.StudentID)
	}

	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		visible, err := db.VisibleStudentIDs(ctx, tx, sc, ids)
		if err != nil {
			return err
		}
		for _, r := range in.Results {
			if !visible[r.StudentID] {
				return apperr.NotFound("student", r.StudentID)
			}
			if _, err := db.UpsertSubjectResult(ctx, tx, models.SubjectResult{
				StudentID: r.StudentID,
				SubjectID: in.SubjectID,
				TermID:    in.TermID,
				ClassID:   in.ClassID,
				FirstCA:   r.FirstCA,
				SecondCA:  r.SecondCA,
				Exam:      r.Exam,
				Remarks:   r.Remarks,
				TeacherID: teacherID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	logging.FromContext(ctx, s.log).Info("results saved",
		zap.Int64("term_id", in.TermID), zap.Int64("class_id", in.ClassID),
		zap.Int64("subject_id", in.SubjectID), zap.Int("count", len(in.Results)))
	return len(in.Results), nil
}

// Recompute refreshes one student's summary for a term. ok is false when the student has
// no results in the term, in which case nothing is written.
func (s *Service) Recompute(ctx context.Context, sc scope.Scope, studentID, termID int64) (*models.TermSummary, bool, error) {
	if !sc.CanSubmitResults() {
		return nil, false, apperr.Forbidden("recompute summary")
	}
	if _, err := db.GetStudent(ctx, s.db, sc, studentID); err != nil {
		return nil, false, err
	}
	var (
		out *models.TermSummary
		ok  bool
	)
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		out, ok, err = recompute(ctx, tx, studentID, termID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return out, ok, nil
}

func recompute(ctx context.Context, q db.Queryer, studentID, termID int64) (*models.TermSummary, bool, error) {
	rows, err := db.ListSubjectResults(ctx, q, studentID, termID)
	if err != nil {
		return nil, false, err
	}
	agg, ok := grading.Fold(rows)
	if !ok {
		return nil, false, nil
	}
	sum := models.TermSummary{StudentID: studentID, TermID: termID, ClassID: latestClass(rows)}
	agg.Apply(&sum)
	saved, err := db.UpsertSummary(ctx, q, sum)
	if err != nil {
		return nil, false, err
	}
	return saved, true, nil
}

// latestClass picks the class of the most recently written result.
func latestClass(rows []models.SubjectResult) int64 {
	last := rows[0]
	for _, r := range rows[1:] {
		if r.UpdatedAt.After(last.UpdatedAt) {
			last = r
		}
	}
	return last.ClassID
}

type ClassOutcome struct {
	Recomputed int                  `json:"recomputed"`
	Skipped    []int64              `json:"skipped_published"`
	Summaries  []models.TermSummary `json:"summaries"`
}

// RecomputeClass refreshes every student of the class with results in the term and then
// ranks the class. Published summaries are left as they are.
func (s *Service) RecomputeClass(ctx context.Context, sc scope.Scope, termID, classID int64) (*ClassOutcome, error) {
	if !sc.CanSubmitResults() {
		return nil, apperr.Forbidden("recompute class")
	}
	if _, err := db.GetClass(ctx, s.db, sc, classID); err != nil {
		return nil, err
	}
	out := &ClassOutcome{}
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		students, err := db.ListResultStudentIDs(ctx, tx, sc, termID, classID)
		if err != nil {
			return err
		}
		existing, err := db.ListClassSummaries(ctx, tx, termID, classID)
		if err != nil {
			return err
		}
		published := map[int64]bool{}
		for _, e := range existing {
			if e.IsPublished {
				published[e.StudentID] = true
			}
		}
		for _, sid := range students {
			if published[sid] {
				out.Skipped = append(out.Skipped, sid)
				continue
			}
			if _, ok, err := recompute(ctx, tx, sid, termID); err != nil {
				return fmt.Errorf("student %d: %w", sid, err)
			} else if ok {
				out.Recomputed++
			}
		}
		ranked, err := assignPositions(ctx, tx, termID, classID)
		if err != nil {
			return err
		}
		out.Summaries = ranked
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx, s.log).Info("class recomputed",
		zap.Int64("term_id", termID), zap.Int64("class_id", classID),
		zap.Int("count", out.Recomputed), zap.Int("skipped", len(out.Skipped)))
	return out, nil
}

// AssignPositions ranks all summaries of (term, class) by average, ties going to the
// lower student id. Published summaries keep their positions.
func (s *Service) AssignPositions(ctx context.Context, sc scope.Scope, termID, classID int64) ([]models.TermSummary, error) {
	if !sc.CanSubmitResults() {
		return nil, apperr.Forbidden("assign positions")
	}
	if _, err := db.GetClass(ctx, s.db, sc, classID); err != nil {
		return nil, err
	}
	var out []models.TermSummary
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		out, err = assignPositions(ctx, tx, termID, classID)
		return err
	})
	return out, err
}

func assignPositions(ctx context.Context, q db.Queryer, termID, classID int64) ([]models.TermSummary, error) {
	all, err := db.ListClassSummaries(ctx, q, termID, classID)
	if err != nil {
		return nil, err
	}
	ranked := grading.Rank(all)
	if err := db.SetPositions(ctx, q, ranked); err != nil {
		return nil, err
	}
	return ranked, nil
}

type PublishRequest struct {
	TermID     int64   `json:"term_id" validate:"required"`
	ClassID    *int64  `json:"class_id"`
	SummaryIDs []int64 `json:"summary_ids"`
}

// Publish flips the matching unpublished summaries in one transaction and, after commit,
// queues one notification per newly published summary.
func (s *Service) Publish(ctx context.Context, sc scope.Scope, req PublishRequest) ([]int64, error) {
	if !sc.CanManage() {
		return nil, apperr.Forbidden("publish results")
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if _, err := db.GetTerm(ctx, s.db, sc, req.TermID); err != nil {
		return nil, err
	}
	var ids []int64
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		ids, err = db.PublishSummaries(ctx, tx, sc, db.PublishFilter{
			TermID: req.TermID, ClassID: req.ClassID, SummaryIDs: req.SummaryIDs,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.ResultsPublished.Add(float64(len(ids)))
	logging.FromContext(ctx, s.log).Info("results published", zap.Int64("term_id", req.TermID), zap.Int("count", len(ids)))

	if s.notify != nil {
		for _, id := range ids {
			s.notify.ResultPublished(id)
		}
	}
	return ids, nil
}

type Filter struct {
	TermID        *int64
	ClassID       *int64
	StudentID     *int64
	PublishedOnly bool
}

// List returns summaries visible to sc. Students and parents only ever see published rows.
func (s *Service) List(ctx context.Context, sc scope.Scope, f Filter) ([]models.SummaryRow, error) {
	if !sc.CanSubmitResults() {
		f.PublishedOnly = true
	}
	return db.ListSummaries(ctx, s.db, sc, db.SummaryFilter{
		TermID: f.TermID, ClassID: f.ClassID, StudentID: f.StudentID, PublishedOnly: f.PublishedOnly,
	})
}

// StudentResults returns a student's published summaries. Students and parents see them
// only once the student's fees are cleared.
func (s *Service) StudentResults(ctx context.Context, sc scope.Scope, studentID int64) ([]models.SummaryRow, error) {
	if _, err := db.GetStudent(ctx, s.db, sc, studentID); err != nil {
		return nil, err
	}
	if !sc.CanSubmitResults() {
		recs, err := db.ListFeeRecords(ctx, s.db, sc, db.FeeFilter{StudentID: &studentID})
		if err != nil {
			return nil, err
		}
		plain := make([]models.FeeRecord, 0, len(recs))
		for _, r := range recs {
			plain = append(plain, r.FeeRecord)
		}
		if st := ledger.Overall(studentID, plain); st.OverallStatus != models.FeeCleared {
			return nil, apperr.Forbidden(fmt.Sprintf("results of student %d withheld until fees are cleared", studentID))
		}
	}
	return db.ListSummaries(ctx, s.db, sc, db.SummaryFilter{StudentID: &studentID, PublishedOnly: true})
}

// Sheet is a class broadsheet: one row per student with a cell per subject.
type Sheet struct {
	TermID   int64
	ClassID  int64
	Subjects []string
	Rows     []SheetRow
}

type SheetRow struct {
	Summary models.SummaryRow
	Scores  map[string]grading.Derived
}

func (s *Service) Broadsheet(ctx context.Context, sc scope.Scope, termID, classID int64) (*Sheet, error) {
	if !sc.CanSubmitResults() {
		return nil, apperr.Forbidden("broadsheet")
	}
	if _, err := db.GetClass(ctx, s.db, sc, classID); err != nil {
		return nil, err
	}
	cells, err := db.ListClassResults(ctx, s.db, sc, termID, classID)
	if err != nil {
		return nil, err
	}
	sums, err := db.ListSummaries(ctx, s.db, sc, db.SummaryFilter{TermID: &termID, ClassID: &classID})
	if err != nil {
		return nil, err
	}
	return buildSheet(termID, classID, cells, sums), nil
}

func buildSheet(termID, classID int64, cells []db.BroadsheetCell, sums []models.SummaryRow) *Sheet {
	sheet := &Sheet{TermID: termID, ClassID: classID}
	seen := map[string]bool{}
	byStudent := map[int64]map[string]grading.Derived{}
	for _, c := range cells {
		if !seen[c.SubjectName] {
			seen[c.SubjectName] = true
			sheet.Subjects = append(sheet.Subjects, c.SubjectName)
		}
		m, ok := byStudent[c.StudentID]
		if !ok {
			m = map[string]grading.Derived{}
			byStudent[c.StudentID] = m
		}
		m[c.SubjectName] = grading.Derive(c.Result)
	}
	sort.Strings(sheet.Subjects)
	for _, sum := range sums {
		sheet.Rows = append(sheet.Rows, SheetRow{Summary: sum, Scores: byStudent[sum.StudentID]})
	}
	return sheet
}
