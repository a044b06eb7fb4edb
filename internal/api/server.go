// Package api exposes the academic, result and fee services over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Spok95/school-erp/internal/academics"
	"github.com/Spok95/school-erp/internal/export"
	"github.com/Spok95/school-erp/internal/fees"
	"github.com/Spok95/school-erp/internal/ledger"
	"github.com/Spok95/school-erp/internal/metrics"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/results"
	"github.com/Spok95/school-erp/internal/scope"
)

type Academics interface {
	CreateSession(ctx context.Context, sc scope.Scope, in academics.NewSession) (*models.AcademicSession, error)
	ListSessions(ctx context.Context, sc scope.Scope, schoolID int64) ([]models.AcademicSession, error)
	ActivateSession(ctx context.Context, sc scope.Scope, sessionID int64) (*models.AcademicSession, error)
	CreateTerm(ctx context.Context, sc scope.Scope, sessionID int64, name string, start, end time.Time) (*models.Term, error)
	ListTerms(ctx context.Context, sc scope.Scope, sessionID int64) ([]models.Term, error)
	ActivateTerm(ctx context.Context, sc scope.Scope, termID int64) (*models.Term, error)
	ActiveTerm(ctx context.Context, sc scope.Scope, schoolID int64) (*models.Term, error)
}

type Results interface {
	BulkInput(ctx context.Context, sc scope.Scope, in results.BulkInput, teacherID int64) (int, error)
	Recompute(ctx context.Context, sc scope.Scope, studentID, termID int64) (*models.TermSummary, bool, error)
	RecomputeClass(ctx context.Context, sc scope.Scope, termID, classID int64) (*results.ClassOutcome, error)
	AssignPositions(ctx context.Context, sc scope.Scope, termID, classID int64) ([]models.TermSummary, error)
	Publish(ctx context.Context, sc scope.Scope, req results.PublishRequest) ([]int64, error)
	List(ctx context.Context, sc scope.Scope, f results.Filter) ([]models.SummaryRow, error)
	StudentResults(ctx context.Context, sc scope.Scope, studentID int64) ([]models.SummaryRow, error)
	Broadsheet(ctx context.Context, sc scope.Scope, termID, classID int64) (*results.Sheet, error)
}

type Fees interface {
	GenerateRecords(ctx context.Context, sc scope.Scope, req fees.GenerateRequest) (int, error)
	ListRecords(ctx context.Context, sc scope.Scope, f fees.Filter) ([]models.FeeRecordRow, error)
	PostPayment(ctx context.Context, sc scope.Scope, recordID int64, in fees.PaymentInput, recordedBy int64) (*fees.Receipt, error)
	BulkPostPayments(ctx context.Context, sc scope.Scope, in fees.BulkPayment, recordedBy int64) ([]fees.Receipt, error)
	PaymentHistory(ctx context.Context, sc scope.Scope, recordID int64) ([]models.PaymentHistory, error)
	SetStatus(ctx context.Context, sc scope.Scope, recordID int64, status models.FeeStatus) (*models.FeeRecord, error)
	Analytics(ctx context.Context, sc scope.Scope, f fees.Filter) (*ledger.Summary, error)
	StudentStatus(ctx context.Context, sc scope.Scope, studentID int64) (*ledger.StudentStatus, error)
	LedgerExport(ctx context.Context, sc scope.Scope, f fees.Filter) (*export.Workbook, error)
	CreateInvoice(ctx context.Context, sc scope.Scope, in fees.NewInvoice, createdBy int64) (*models.Invoice, error)
	NextInvoiceNumber(ctx context.Context, sc scope.Scope, schoolID int64, year int) (string, error)
	ListInvoices(ctx context.Context, sc scope.Scope, f fees.InvoiceFilter) ([]models.Invoice, error)
	GetInvoice(ctx context.Context, sc scope.Scope, id int64) (*models.Invoice, error)

	CreateFeeStructure(ctx context.Context, sc scope.Scope, in fees.NewFeeStructure) (*models.FeeStructure, error)
	ListFeeStructures(ctx context.Context, sc scope.Scope, f fees.StructureFilter) ([]models.FeeStructure, error)
	CreateDiscountScheme(ctx context.Context, sc scope.Scope, in fees.NewDiscountScheme) (*models.DiscountScheme, error)
	ListDiscountSchemes(ctx context.Context, sc scope.Scope, schoolID *int64) ([]models.DiscountScheme, error)
	GrantDiscount(ctx context.Context, sc scope.Scope, in fees.NewStudentDiscount, appliedBy int64) (*models.StudentDiscount, error)
	ListStudentDiscounts(ctx context.Context, sc scope.Scope, studentID *int64) ([]models.StudentDiscount, error)
}

// Pinger reports database health for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Deps struct {
	Log       *zap.Logger
	Secret    []byte
	DB        Pinger
	Academics Academics
	Results   Results
	Fees      Fees
	Now       func() time.Time
}

type Server struct {
	log       *zap.Logger
	secret    []byte
	db        Pinger
	academics Academics
	results   Results
	fees      Fees
	now       func() time.Time
}

func NewServer(d Deps) *Server {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &Server{
		log:       d.Log,
		secret:    d.Secret,
		db:        d.DB,
		academics: d.Academics,
		results:   d.Results,
		fees:      d.Fees,
		now:       d.Now,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, instrument, s.recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions", s.handleCreateSession)
		r.Post("/sessions/{id}/activate", s.handleActivateSession)
		r.Get("/sessions/{id}/terms", s.handleListTerms)
		r.Post("/sessions/{id}/terms", s.handleCreateTerm)
		r.Post("/terms/{id}/activate", s.handleActivateTerm)
		r.Get("/schools/{id}/active-term", s.handleActiveTerm)

		r.Post("/results/bulk", s.handleBulkResults)
		r.Post("/term-summaries/recompute", s.handleRecompute)
		r.Post("/term-summaries/positions", s.handleAssignPositions)
		r.Post("/term-summaries/publish", s.handlePublish)
		r.Get("/term-summaries", s.handleListSummaries)
		r.Get("/term-summaries/broadsheet.xlsx", s.handleBroadsheet)
		r.Get("/students/{id}/results", s.handleStudentResults)

		r.Get("/fees/structures", s.handleListFeeStructures)
		r.Post("/fees/structures", s.handleCreateFeeStructure)
		r.Get("/fees/discount-schemes", s.handleListDiscountSchemes)
		r.Post("/fees/discount-schemes", s.handleCreateDiscountScheme)
		r.Get("/fees/student-discounts", s.handleListStudentDiscounts)
		r.Post("/fees/student-discounts", s.handleGrantDiscount)

		r.Post("/fees/records/generate", s.handleGenerateRecords)
		r.Get("/fees/records", s.handleListRecords)
		r.Get("/fees/records/export.xlsx", s.handleLedgerExport)
		r.Post("/fees/records/{id}/payments", s.handlePostPayment)
		r.Get("/fees/records/{id}/payments", s.handlePaymentHistory)
		r.Patch("/fees/records/{id}/status", s.handleSetStatus)
		r.Post("/fees/payments/bulk", s.handleBulkPayments)
		r.Get("/fees/analytics", s.handleAnalytics)
		r.Get("/students/{id}/fee-status", s.handleFeeStatus)

		r.Get("/invoices", s.handleListInvoices)
		r.Post("/invoices", s.handleCreateInvoice)
		r.Get("/invoices/next-number", s.handleNextInvoiceNumber)
		r.Get("/invoices/{id}", s.handleGetInvoice)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db not ok"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
