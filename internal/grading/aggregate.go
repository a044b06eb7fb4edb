package grading

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Spok95/school-erp/internal/models"
)

// scale matches the NUMERIC(.,2) columns the summary is stored in.
const scale = 2

type Aggregate struct {
	TotalSubjects int
	TotalScore    decimal.Decimal
	AverageScore  decimal.Decimal
	GPA           decimal.Decimal
}

// Fold aggregates a student's subject results for one term. The total is the sum of
// per-subject averages, not of raw totals. ok is false when rows is empty.
func Fold(rows []models.SubjectResult) (agg Aggregate, ok bool) {
	if len(rows) == 0 {
		return Aggregate{TotalScore: decimal.Zero, AverageScore: decimal.Zero, GPA: decimal.Zero}, false
	}
	total := decimal.Zero
	points := decimal.Zero
	for _, r := range rows {
		d := Derive(r)
		total = total.Add(d.Average)
		points = points.Add(d.GradePoint)
	}
	n := decimal.NewFromInt(int64(len(rows)))
	return Aggregate{
		TotalSubjects: len(rows),
		TotalScore:    total.Round(scale),
		AverageScore:  total.Div(n).Round(scale),
		GPA:           points.Div(n).Round(scale),
	}, true
}

// Apply copies the aggregate into s, leaving identity, position and publish state alone.
func (a Aggregate) Apply(s *models.TermSummary) {
	s.TotalSubjects = a.TotalSubjects
	s.TotalScore = a.TotalScore
	s.AverageScore = a.AverageScore
	s.GPA = a.GPA
}

// Rank orders summaries of one (term, class) by descending average score and assigns
// positions 1..N. Equal averages are ordered by ascending student id so the outcome
// does not depend on row order.
//
// Published summaries keep the position they were published with. The remaining
// summaries take the free positions in ranking order, so no two rows share one.
// A published summary that never had a position stays unranked at the end.
func Rank(summaries []models.TermSummary) []models.TermSummary {
	taken := map[int]bool{}
	var fixed, open, unranked []models.TermSummary
	for _, s := range summaries {
		switch {
		case s.IsPublished && s.Position != nil:
			p := *s.Position
			s.Position = &p
			taken[p] = true
			fixed = append(fixed, s)
		case s.IsPublished:
			unranked = append(unranked, s)
		default:
			open = append(open, s)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		if c := open[i].AverageScore.Cmp(open[j].AverageScore); c != 0 {
			return c > 0
		}
		return open[i].StudentID < open[j].StudentID
	})
	next := 1
	for i := range open {
		for taken[next] {
			next++
		}
		p := next
		open[i].Position = &p
		next++
	}

	out := append(fixed, open...)
	sort.SliceStable(out, func(i, j int) bool { return *out[i].Position < *out[j].Position })
	return append(out, unranked...)
}
