package api

import (
	"net/http"

	"github.com/Spok95/school-erp/internal/fees"
)

func (s *Server) handleCreateFeeStructure(w http.ResponseWriter, r *http.Request) {
	var in fees.NewFeeStructure
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.fees.CreateFeeStructure(r.Context(), ScopeFrom(r.Context()), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// handleListFeeStructures filters by school, session and class; active=true hides
// retired structures.
func (s *Server) handleListFeeStructures(w http.ResponseWriter, r *http.Request) {
	var (
		f   fees.StructureFilter
		err error
	)
	if f.SchoolID, err = queryID(r, "school"); err != nil {
		s.fail(w, r, err)
		return
	}
	if f.SessionID, err = queryID(r, "session"); err != nil {
		s.fail(w, r, err)
		return
	}
	if f.ClassID, err = queryID(r, "class"); err != nil {
		s.fail(w, r, err)
		return
	}
	if f.ActiveOnly, err = queryBool(r, "active"); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.fees.ListFeeStructures(r.Context(), ScopeFrom(r.Context()), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateDiscountScheme(w http.ResponseWriter, r *http.Request) {
	var in fees.NewDiscountScheme
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.fees.CreateDiscountScheme(r.Context(), ScopeFrom(r.Context()), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleListDiscountSchemes(w http.ResponseWriter, r *http.Request) {
	schoolID, err := queryID(r, "school")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.fees.ListDiscountSchemes(r.Context(), ScopeFrom(r.Context()), schoolID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGrantDiscount(w http.ResponseWriter, r *http.Request) {
	var in fees.NewStudentDiscount
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	sc := ScopeFrom(r.Context())
	out, err := s.fees.GrantDiscount(r.Context(), sc, in, sc.UserID())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleListStudentDiscounts(w http.ResponseWriter, r *http.Request) {
	studentID, err := queryID(r, "student")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.fees.ListStudentDiscounts(r.Context(), ScopeFrom(r.Context()), studentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
