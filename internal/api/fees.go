package api

import (
	"net/http"

	"github.com/Spok95/school-erp/internal/export"
	"github.com/Spok95/school-erp/internal/fees"
	"github.com/Spok95/school-erp/internal/models"
)

type statusRequest struct {
	Status models.FeeStatus `json:"status"`
}

func feeFilter(r *http.Request) (fees.Filter, error) {
	var (
		f   fees.Filter
		err error
	)
	if f.TermID, err = queryID(r, "term"); err != nil {
		return f, err
	}
	if f.ClassID, err = queryID(r, "class"); err != nil {
		return f, err
	}
	if f.StudentID, err = queryID(r, "student"); err != nil {
		return f, err
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := models.FeeStatus(raw)
		if !st.Valid() {
			return f, badRequest("invalid status")
		}
		f.Status = &st
	}
	return f, nil
}

func (s *Server) handleGenerateRecords(w http.ResponseWriter, r *http.Request) {
	var req fees.GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	n, err := s.fees.GenerateRecords(r.Context(), ScopeFrom(r.Context()), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"created": n})
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	f, err := feeFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.fees.ListRecords(r.Context(), ScopeFrom(r.Context()), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLedgerExport(w http.ResponseWriter, r *http.Request) {
	f, err := feeFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	wb, err := s.fees.LedgerExport(r.Context(), ScopeFrom(r.Context()), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	title := "all"
	if f.Status != nil {
		title = string(*f.Status)
	}
	s.writeWorkbook(w, r, wb, export.BuildFeeLedgerFilename(title))
}

func (s *Server) handlePostPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in fees.PaymentInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	sc := ScopeFrom(r.Context())
	rec, err := s.fees.PostPayment(r.Context(), sc, id, in, sc.UserID())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleBulkPayments(w http.ResponseWriter, r *http.Request) {
	var in fees.BulkPayment
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	sc := ScopeFrom(r.Context())
	out, err := s.fees.BulkPostPayments(r.Context(), sc, in, sc.UserID())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"receipts": out, "count": len(out)})
}

func (s *Server) handlePaymentHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.fees.PaymentHistory(r.Context(), ScopeFrom(r.Context()), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.fees.SetStatus(r.Context(), ScopeFrom(r.Context()), id, req.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	f, err := feeFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.fees.Analytics(r.Context(), ScopeFrom(r.Context()), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFeeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.fees.StudentStatus(r.Context(), ScopeFrom(r.Context()), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var in fees.NewInvoice
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	sc := ScopeFrom(r.Context())
	out, err := s.fees.CreateInvoice(r.Context(), sc, in, sc.UserID())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleNextInvoiceNumber(w http.ResponseWriter, r *http.Request) {
	schoolID, err := requiredQueryID(r, "school_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	year, err := queryYear(r, s.now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	n, err := s.fees.NextInvoiceNumber(r.Context(), ScopeFrom(r.Context()), schoolID, year)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice_number": n, "year": year})
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	var (
		f   fees.InvoiceFilter
		err error
	)
	if f.StudentID, err = queryID(r, "student"); err != nil {
		s.fail(w, r, err)
		return
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := models.InvoiceStatus(raw)
		if !st.Valid() {
			s.fail(w, r, badRequest("invalid status"))
			return
		}
		f.Status = &st
	}
	out, err := s.fees.ListInvoices(r.Context(), ScopeFrom(r.Context()), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.fees.GetInvoice(r.Context(), ScopeFrom(r.Context()), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
