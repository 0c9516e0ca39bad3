package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/invoicelens/invoicelens/constants"
	"github.com/invoicelens/invoicelens/internal/common"
)

// ReturnSummary is one filed return as reported by the registry.
type ReturnSummary struct {
	ReturnType string `json:"return_type"`
	Period     string `json:"period"`
	Status     string `json:"status"`
	FiledOn    string `json:"filed_on"`
}

// FilingHistory is the outcome of a return-filing lookup for the
// financial year an invoice falls in.
type FilingHistory struct {
	FilingExists  bool
	FinancialYear string
	Returns       []ReturnSummary
}

// ParseInvoiceDate tries each accepted layout against an extracted
// date string.
func ParseInvoiceDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, common.InvalidFormatError("empty invoice date")
	}
	for _, layout := range constants.InvoiceDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, common.InvalidFormatError(fmt.Sprintf("unrecognized invoice date %q", s))
}

// FinancialYear labels the Indian financial year (April to March) a
// date falls in, e.g. "2025-26" for January 2026.
func FinancialYear(t time.Time) string {
	start := t.Year()
	if t.Month() < time.April {
		start--
	}
	return fmt.Sprintf("%d-%02d", start, (start+1)%100)
}

// FilingPeriod is the registry's YYYYMM period key for a date.
func FilingPeriod(t time.Time) string {
	return fmt.Sprintf("%04d%02d", t.Year(), int(t.Month()))
}

type trackPayload struct {
	Data struct {
		Data struct {
			EFiledList []struct {
				ReturnType string `json:"rtntype"`
				Period     string `json:"ret_prd"`
				Status     string `json:"status"`
				FiledOn    string `json:"dof"`
			} `json:"EFiledlist"`
		} `json:"data"`
	} `json:"data"`
}

// ReturnHistory looks up the filed returns for the financial year the
// invoice date falls in.
func (c *Client) ReturnHistory(ctx context.Context, taxID, invoiceDate string) (FilingHistory, error) {
	dt, err := ParseInvoiceDate(invoiceDate)
	if err != nil {
		return FilingHistory{}, err
	}
	fy := FinancialYear(dt)

	path := "/gst/compliance/public/gstrs/track?financial_year=" + fy
	raw, status, err := c.doJSON(ctx, http.MethodPost, path, map[string]string{"gstin": taxID})
	if err != nil {
		return FilingHistory{FinancialYear: fy}, err
	}
	if status != http.StatusOK {
		return FilingHistory{FinancialYear: fy}, common.APIError("return-filing lookup failed", errors.New(http.StatusText(status)))
	}

	var body trackPayload
	if err := json.Unmarshal(raw, &body); err != nil {
		return FilingHistory{FinancialYear: fy}, common.APIError("malformed return-filing response", err)
	}

	hist := FilingHistory{FinancialYear: fy}
	for _, r := range body.Data.Data.EFiledList {
		hist.Returns = append(hist.Returns, ReturnSummary{
			ReturnType: r.ReturnType,
			Period:     r.Period,
			Status:     r.Status,
			FiledOn:    r.FiledOn,
		})
		if strings.EqualFold(r.Status, "Filed") {
			hist.FilingExists = true
		}
	}

	c.logger.Info("compliance.filings.checked",
		"tax_id", taxID,
		"financial_year", fy,
		"filing_exists", hist.FilingExists,
		"returns", len(hist.Returns))
	return hist, nil
}
