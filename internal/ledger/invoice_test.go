package ledger

import (
	"errors"
	"testing"

	"github.com/Spok95/school-erp/internal/models"
)

func TestNextInvoiceNumber(t *testing.T) {
	cases := []struct {
		last string
		want string
	}{
		{"", "INV2024000001"},
		{"INV2024000001", "INV2024000002"},
		{"INV2024000099", "INV2024000100"},
	}
	for _, c := range cases {
		got, err := NextInvoiceNumber(2024, c.last)
		if err != nil {
			t.Fatalf("NextInvoiceNumber(%q): %v", c.last, err)
		}
		if got != c.want {
			t.Fatalf("NextInvoiceNumber(%q) = %s, want %s", c.last, got, c.want)
		}
	}
}

func TestNextInvoiceNumberErrors(t *testing.T) {
	if _, err := NextInvoiceNumber(2024, "INV2023000005"); err == nil {
		t.Fatal("expected error for number from another year")
	}
	if _, err := NextInvoiceNumber(2024, "INV2024abcdef"); err == nil {
		t.Fatal("expected error for non-numeric suffix")
	}
	if _, err := NextInvoiceNumber(2024, "INV2024999999"); !errors.Is(err, ErrSequenceExhausted) {
		t.Fatalf("err = %v, want ErrSequenceExhausted", err)
	}
}

func TestPriceItems(t *testing.T) {
	items := []models.InvoiceItem{
		{Quantity: 1, UnitAmount: dec("50000")},
		{Quantity: 3, UnitAmount: dec("1500.50")},
	}
	total := PriceItems(items)
	if !items[1].TotalAmount.Equal(dec("4501.50")) {
		t.Fatalf("item total = %s", items[1].TotalAmount)
	}
	if !total.Equal(dec("54501.50")) {
		t.Fatalf("invoice total = %s", total)
	}
}

func TestReceiptNumber(t *testing.T) {
	if got := ReceiptNumber(2024, 42); got != "RCT202400000042" {
		t.Fatalf("ReceiptNumber = %s", got)
	}
}
