package api

import (
	"fmt"
	"net/http"

	"github.com/Spok95/school-erp/internal/export"
	"github.com/Spok95/school-erp/internal/models"
	"github.com/Spok95/school-erp/internal/results"
)

type recomputeRequest struct {
	TermID    int64  `json:"term_id"`
	ClassID   int64  `json:"class_id"`
	StudentID *int64 `json:"student_id"`
}

func (s *Server) handleBulkResults(w http.ResponseWriter, r *http.Request) {
	var in results.BulkInput
	if err := decodeJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	sc := ScopeFrom(r.Context())
	n, err := s.results.BulkInput(r.Context(), sc, in, sc.UserID())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"saved": n})
}

// handleRecompute refreshes a single student when student_id is given and the whole
// class otherwise.
func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	var req recomputeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.TermID <= 0 {
		s.fail(w, r, badRequest("term_id is required"))
		return
	}
	sc := ScopeFrom(r.Context())
	if req.StudentID != nil {
		sum, ok, err := s.results.Recompute(r.Context(), sc, *req.StudentID, req.TermID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"summary": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"summary": sum})
		return
	}
	if req.ClassID <= 0 {
		s.fail(w, r, badRequest("class_id or student_id is required"))
		return
	}
	out, err := s.results.RecomputeClass(r.Context(), sc, req.TermID, req.ClassID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleAssignPositions re-ranks a class without recomputing any summary.
func (s *Server) handleAssignPositions(w http.ResponseWriter, r *http.Request) {
	var req recomputeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.TermID <= 0 || req.ClassID <= 0 {
		s.fail(w, r, badRequest("term_id and class_id are required"))
		return
	}
	out, err := s.results.AssignPositions(r.Context(), ScopeFrom(r.Context()), req.TermID, req.ClassID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if out == nil {
		out = []models.TermSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"summaries": out})
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req results.PublishRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ids, err := s.results.Publish(r.Context(), ScopeFrom(r.Context()), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"published": ids, "count": len(ids)})
}

func (s *Server) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	var (
		f   results.Filter
		err error
	)
	if f.TermID, err = queryID(r, "term"); err != nil {
		s.fail(w, r, err)
		return
	}
	if f.ClassID, err = queryID(r, "class"); err != nil {
		s.fail(w, r, err)
		return
	}
	if f.StudentID, err = queryID(r, "student"); err != nil {
		s.fail(w, r, err)
		return
	}
	if f.PublishedOnly, err = queryBool(r, "published"); err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.results.List(r.Context(), ScopeFrom(r.Context()), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStudentResults(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out, err := s.results.StudentResults(r.Context(), ScopeFrom(r.Context()), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBroadsheet(w http.ResponseWriter, r *http.Request) {
	termID, err := requiredQueryID(r, "term")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	classID, err := requiredQueryID(r, "class")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sheet, err := s.results.Broadsheet(r.Context(), ScopeFrom(r.Context()), termID, classID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	wb, err := export.Broadsheet(sheet)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	name := export.BuildBroadsheetFilename(fmt.Sprintf("class %d", classID), fmt.Sprintf("term %d", termID))
	s.writeWorkbook(w, r, wb, name)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) writeWorkbook(w http.ResponseWriter, r *http.Request, wb *export.Workbook, name string) {
	defer func() { _ = wb.File.Close() }()
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := wb.File.WriteTo(w); err != nil {
		s.log.Warn("write workbook: " + err.Error())
	}
}
