package export

import (
	"github.com/Spok95/school-erp/internal/ledger"
	"github.com/Spok95/school-erp/internal/models"
)

// FeeLedger renders the filtered records on one sheet and their analytics on a second.
func FeeLedger(rows []models.FeeRecordRow, sum ledger.Summary) (*Workbook, error) {
	header := []string{"Admission No", "Student", "Term", "Fee", "Discount", "Due", "Paid", "Balance", "Status", "Due date", "Last payment", "Reference"}
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		last := ""
		if r.PaymentDate != nil {
			last = r.PaymentDate.Format("2006-01-02")
		}
		data = append(data, []any{
			r.AdmissionNo, r.StudentName, r.TermName, r.FeeName,
			num(r.DiscountAmount), num(r.AmountDue), num(r.AmountPaid), num(r.Balance()),
			string(r.Status), r.DueDate.Format("2006-01-02"), last, r.PaymentReference,
		})
	}
	summary := [][]any{
		{"Students", sum.TotalStudents},
		{"Total due", num(sum.TotalDue)},
		{"Total collected", num(sum.TotalCollected)},
		{"Outstanding", num(sum.Outstanding)},
		{"Collection rate %", num(sum.CollectionRate)},
		{"Students cleared", sum.StudentsCleared},
		{"Students partial", sum.StudentsPartial},
		{"Students pending", sum.StudentsPending},
		{"Students overdue", sum.StudentsOverdue},
	}
	return NewWorkbook([]SheetSpec{
		{Title: "Records", Header: header, Rows: data},
		{Title: "Summary", Header: []string{"Metric", "Value"}, Rows: summary},
	})
}
