package ledger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Spok95/school-erp/internal/models"
)

const (
	invoicePrefix = "INV"
	seqDigits     = 6
	maxSeq        = 999999
)

var ErrSequenceExhausted = errors.New("invoice sequence exhausted for year")

// InvoicePrefix is the prefix shared by every invoice number of a year.
func InvoicePrefix(year int) string {
	return fmt.Sprintf("%s%d", invoicePrefix, year)
}

// NextInvoiceNumber increments the trailing sequence of last, the lexicographically
// greatest number already issued for the year, or starts at 1 when last is empty.
func NextInvoiceNumber(year int, last string) (string, error) {
	next := 1
	if last != "" {
		prefix := InvoicePrefix(year)
		if !strings.HasPrefix(last, prefix) || len(last) < len(prefix)+seqDigits {
			return "", fmt.Errorf("invoice number %q does not match %s", last, prefix)
		}
		n, err := strconv.Atoi(last[len(last)-seqDigits:])
		if err != nil {
			return "", fmt.Errorf("invoice number %q: %w", last, err)
		}
		next = n + 1
	}
	if next > maxSeq {
		return "", fmt.Errorf("%d: %w", year, ErrSequenceExhausted)
	}
	return fmt.Sprintf("%s%0*d", InvoicePrefix(year), seqDigits, next), nil
}

// PriceItems sets each item's total to quantity × unit amount and returns the invoice total.
func PriceItems(items []models.InvoiceItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		items[i].TotalAmount = items[i].UnitAmount.Mul(decimal.NewFromInt(int64(items[i].Quantity)))
		total = total.Add(items[i].TotalAmount)
	}
	return total
}

// ReceiptNumber labels a payment history row.
func ReceiptNumber(year int, historyID int64) string {
	return fmt.Sprintf("RCT%d%08d", year, historyID)
}
