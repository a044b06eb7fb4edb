package grading

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Spok95/school-erp/internal/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestGradeBoundaries(t *testing.T) {
	cases := []struct {
		avg   string
		want  Letter
		point string
	}{
		{"100", A, "5"},
		{"80.0", A, "5"},
		{"79.99", B, "4"},
		{"70", B, "4"},
		{"69.99", C, "3"},
		{"60", C, "3"},
		{"50", D, "2"},
		{"40.0", E, "1"},
		{"39.99", F, "0"},
		{"0", F, "0"},
	}
	for _, c := range cases {
		t.Run(c.avg, func(t *testing.T) {
			got := Grade(dec(c.avg))
			if got != c.want {
				t.Fatalf("Grade(%s) = %s, want %s", c.avg, got, c.want)
			}
			if p := GradePoint(got); !p.Equal(dec(c.point)) {
				t.Fatalf("GradePoint(%s) = %s, want %s", got, p, c.point)
			}
		})
	}
}

func TestDeriveUsesPresentComponentsOnly(t *testing.T) {
	r := models.SubjectResult{FirstCA: ptr("60"), Exam: ptr("90")}
	d := Derive(r)
	if !d.Total.Equal(dec("150")) {
		t.Fatalf("total = %s, want 150", d.Total)
	}
	if !d.Average.Equal(dec("75")) {
		t.Fatalf("average = %s, want 75", d.Average)
	}
	if d.Grade != B {
		t.Fatalf("grade = %s, want B", d.Grade)
	}

	empty := Derive(models.SubjectResult{})
	if !empty.Total.IsZero() || !empty.Average.IsZero() || empty.Grade != F {
		t.Fatalf("empty result derived %#v", empty)
	}
}

func TestValidComponent(t *testing.T) {
	if !ValidComponent(nil) {
		t.Fatal("absent component must be valid")
	}
	for _, s := range []string{"0", "55.5", "100"} {
		if !ValidComponent(ptr(s)) {
			t.Fatalf("%s must be valid", s)
		}
	}
	for _, s := range []string{"-0.01", "100.01"} {
		if ValidComponent(ptr(s)) {
			t.Fatalf("%s must be invalid", s)
		}
	}
}
