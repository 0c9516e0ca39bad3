package pipeline

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/invoicelens/invoicelens/internal/entity"
)

// Verdict is the user-facing result for one submission.
type Verdict struct {
	InvoiceNumber   string                  `json:"invoice_number"`
	VendorName      string                  `json:"vendor_name"`
	VendorTaxID     string                  `json:"vendor_gstin"`
	Amount          string                  `json:"amount"`
	InvoiceDate     string                  `json:"invoice_date"`
	FraudScore      int                     `json:"fraud_score"`
	RiskLevel       string                  `json:"risk_level"`
	RiskIcon        string                  `json:"risk_icon"`
	RiskFactors     []string                `json:"risk_factors"`
	Recommendations []string                `json:"recommendations"`
	Duplicate       entity.DuplicateVerdict `json:"duplicate"`
	Reconciliation  string                  `json:"gstr2b_status,omitempty"`
	EInvoiceIRN     string                  `json:"einvoice_irn_status,omitempty"`
	StorageKey      string                  `json:"storage_key,omitempty"`
	ProcessedAt     time.Time               `json:"processed_at"`
}

var currencyPrinter = message.NewPrinter(language.MustParse("en-IN"))

// FormatCurrency renders an extracted amount with rupee symbol and
// Indian digit grouping ("₹3,42,200.00"). Unparseable or empty amounts
// come back as "N/A".
func FormatCurrency(amount string) string {
	clean := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, amount)
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil || v == 0 {
		return "N/A"
	}
	return currencyPrinter.Sprintf("₹%v", number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}
