package academics

import (
	"testing"
	"time"

	"github.com/Spok95/school-erp/internal/apperr"
)

func TestCheckRange(t *testing.T) {
	d := func(s string) time.Time {
		v, err := time.Parse("2006-01-02", s)
		if err != nil {
			t.Fatal(err)
		}
		return v
	}
	if err := checkRange("First Term", d("2024-09-09"), d("2024-12-13")); err != nil {
		t.Fatalf("valid range rejected: %v", err)
	}
	if err := checkRange("Single day", d("2024-09-09"), d("2024-09-09")); err != nil {
		t.Fatalf("start == end rejected: %v", err)
	}

	err := checkRange("", d("2024-12-13"), d("2024-09-09"))
	v, ok := apperr.AsValidation(err)
	if !ok || len(v.Fields) != 2 {
		t.Fatalf("got %v", err)
	}
	if v.Fields[1].Field != "end_date" {
		t.Fatalf("fields = %+v", v.Fields)
	}
}
