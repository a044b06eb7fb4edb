package grading

import (
	"testing"

	"github.com/Spok95/school-erp/internal/models"
)

func TestFold(t *testing.T) {
	rows := []models.SubjectResult{
		{FirstCA: ptr("80"), SecondCA: ptr("90"), Exam: ptr("100")}, // avg 90, A
		{FirstCA: ptr("70"), Exam: ptr("70")},                       // avg 70, B
		{Exam: ptr("30")},                                           // avg 30, F
	}
	agg, ok := Fold(rows)
	if !ok {
		t.Fatal("expected aggregate")
	}
	if agg.TotalSubjects != 3 {
		t.Fatalf("total subjects = %d", agg.TotalSubjects)
	}
	if !agg.TotalScore.Equal(dec("190")) {
		t.Fatalf("total score = %s, want 190", agg.TotalScore)
	}
	if !agg.AverageScore.Equal(dec("63.33")) {
		t.Fatalf("average = %s, want 63.33", agg.AverageScore)
	}
	// (5 + 4 + 0) / 3
	if !agg.GPA.Equal(dec("3")) {
		t.Fatalf("gpa = %s, want 3", agg.GPA)
	}
}

func TestFoldEmpty(t *testing.T) {
	agg, ok := Fold(nil)
	if ok {
		t.Fatal("empty fold must report ok=false")
	}
	if agg.TotalSubjects != 0 || !agg.AverageScore.IsZero() || !agg.GPA.IsZero() {
		t.Fatalf("empty aggregate not zero: %#v", agg)
	}
}

func TestRankTieBreakByStudentID(t *testing.T) {
	in := []models.TermSummary{
		{StudentID: 9, AverageScore: dec("71.50")},
		{StudentID: 3, AverageScore: dec("88")},
		{StudentID: 7, AverageScore: dec("71.5")},
		{StudentID: 2, AverageScore: dec("40")},
	}
	out := Rank(in)
	want := []int64{3, 7, 9, 2}
	for i, s := range out {
		if s.StudentID != want[i] {
			t.Fatalf("position %d: student %d, want %d", i+1, s.StudentID, want[i])
		}
		if s.Position == nil || *s.Position != i+1 {
			t.Fatalf("student %d position %v, want %d", s.StudentID, s.Position, i+1)
		}
	}
	if in[0].Position != nil {
		t.Fatal("Rank must not mutate its input")
	}
}

func TestRankKeepsPublishedPositions(t *testing.T) {
	one, two := 1, 2
	in := []models.TermSummary{
		{StudentID: 1, AverageScore: dec("90"), IsPublished: true, Position: &one},
		{StudentID: 2, AverageScore: dec("70"), IsPublished: true, Position: &two},
		{StudentID: 3, AverageScore: dec("85")},
		{StudentID: 4, AverageScore: dec("95")},
	}
	out := Rank(in)
	got := map[int64]int{}
	seen := map[int]int64{}
	for _, s := range out {
		if s.Position == nil {
			t.Fatalf("student %d unranked", s.StudentID)
		}
		if prev, dup := seen[*s.Position]; dup {
			t.Fatalf("students %d and %d share position %d", prev, s.StudentID, *s.Position)
		}
		seen[*s.Position] = s.StudentID
		got[s.StudentID] = *s.Position
	}
	want := map[int64]int{1: 1, 2: 2, 4: 3, 3: 4}
	for id, p := range want {
		if got[id] != p {
			t.Fatalf("positions = %v, want %v", got, want)
		}
	}
	if *in[0].Position != 1 || in[2].Position != nil {
		t.Fatal("Rank must not mutate its input")
	}
}

func TestRankLeavesUnpositionedPublishedRowsOut(t *testing.T) {
	in := []models.TermSummary{
		{StudentID: 1, AverageScore: dec("90"), IsPublished: true},
		{StudentID: 2, AverageScore: dec("60")},
	}
	out := Rank(in)
	if len(out) != 2 || out[0].StudentID != 2 || *out[0].Position != 1 {
		t.Fatalf("out = %+v", out)
	}
	if out[1].StudentID != 1 || out[1].Position != nil {
		t.Fatalf("published row = %+v", out[1])
	}
}
