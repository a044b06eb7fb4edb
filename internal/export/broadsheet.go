package export

import (
	"github.com/shopspring/decimal"

	"github.com/Spok95/school-erp/internal/results"
)

// Broadsheet renders a class broadsheet: per-subject average and grade for each student,
// followed by the term aggregate and position.
func Broadsheet(sheet *results.Sheet) (*Workbook, error) {
	header := []string{"Position", "Admission No", "Student"}
	for _, subj := range sheet.Subjects {
		header = append(header, subj, subj+" grade")
	}
	header = append(header, "Subjects", "Total", "Average", "GPA", "Published")

	rows := make([][]any, 0, len(sheet.Rows))
	for _, r := range sheet.Rows {
		s := r.Summary
		row := []any{position(s.Position), s.AdmissionNo, s.StudentName}
		for _, subj := range sheet.Subjects {
			d, ok := r.Scores[subj]
			if !ok {
				row = append(row, "", "")
				continue
			}
			row = append(row, num(d.Average.Round(2)), string(d.Grade))
		}
		published := "no"
		if s.IsPublished {
			published = "yes"
		}
		row = append(row, s.TotalSubjects, num(s.TotalScore), num(s.AverageScore), num(s.GPA), published)
		rows = append(rows, row)
	}
	return NewWorkbook([]SheetSpec{{Title: "Broadsheet", Header: header, Rows: rows}})
}

func position(p *int) any {
	if p == nil {
		return ""
	}
	return *p
}

func num(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
