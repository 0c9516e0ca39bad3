package compliance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/invoicelens/invoicelens/constants"
	"github.com/invoicelens/invoicelens/internal/common"
	"github.com/invoicelens/invoicelens/internal/entity"
)

// amountTolerance is the largest difference still treated as equal
// when comparing extracted and filed amounts.
var amountTolerance = decimal.NewFromFloat(0.01)

var nonAmountChars = regexp.MustCompile(`[^\d.]`)

func parseDecimalAmount(s string) (decimal.Decimal, error) {
	clean := nonAmountChars.ReplaceAllString(s, "")
	if clean == "" {
		return decimal.Zero, common.InvalidFormatError("empty amount")
	}
	return decimal.NewFromString(clean)
}

// ReconResult is the GSTR-2B reconciliation outcome for one invoice.
type ReconResult struct {
	Status string
	// FiledAmount is populated on AMOUNT_MISMATCH with the value the
	// supplier actually filed.
	FiledAmount string
}

type gstr2bPayload struct {
	Data struct {
		B2B []struct {
			CTIN     string `json:"ctin"`
			Invoices []struct {
				Number string          `json:"inum"`
				Value  json.RawMessage `json:"val"`
			} `json:"inv"`
		} `json:"b2b"`
	} `json:"data"`
}

// ReconcileGSTR2B checks whether the supplier filed this invoice in its
// GSTR-2B for the invoice month, and whether the filed amount agrees
// with the extracted one.
func (c *Client) ReconcileGSTR2B(ctx context.Context, rec entity.InvoiceRecord) (ReconResult, error) {
	dt, err := ParseInvoiceDate(rec.InvoiceDate)
	if err != nil {
		return ReconResult{Status: constants.ReconDateError}, err
	}
	invAmt, err := parseDecimalAmount(rec.TotalAmount)
	if err != nil {
		return ReconResult{Status: constants.ReconDateError}, common.InvalidFormatError("unparseable invoice amount")
	}

	path := fmt.Sprintf("/gst/compliance/tax-payer/gstrs/gstr-2b/%04d/%02d", dt.Year(), int(dt.Month()))
	raw, status, err := c.doJSON(ctx, http.MethodGet, path, nil)
	if err != nil {
		return ReconResult{}, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return ReconResult{Status: constants.ReconMissing}, nil
	default:
		return ReconResult{}, common.APIError("gstr-2b fetch failed", fmt.Errorf("status %d", status))
	}

	var body gstr2bPayload
	if err := json.Unmarshal(raw, &body); err != nil {
		return ReconResult{}, common.APIError("malformed gstr-2b response", err)
	}

	for _, entry := range body.Data.B2B {
		if !strings.EqualFold(entry.CTIN, rec.VendorTaxID) {
			continue
		}
		for _, inv := range entry.Invoices {
			if inv.Number != rec.InvoiceNumber {
				continue
			}
			filed, err := parseDecimalAmount(strings.Trim(string(inv.Value), `"`))
			if err != nil {
				continue
			}
			if filed.Sub(invAmt).Abs().LessThan(amountTolerance) {
				return ReconResult{Status: constants.ReconMatched}, nil
			}
			return ReconResult{
				Status:      constants.ReconAmountMismatch,
				FiledAmount: filed.StringFixed(2),
			}, nil
		}
	}
	return ReconResult{Status: constants.ReconMissing}, nil
}

type irnPayload struct {
	Status string `json:"status"`
	Data   struct {
		IRN string `json:"irn"`
	} `json:"data"`
}

// IRNResult is the e-invoice registry outcome for one invoice.
type IRNResult struct {
	Status string
	IRN    string
}

// CheckEInvoiceIRN asks the e-invoice registry whether a reference
// number was ever generated for this invoice.
func (c *Client) CheckEInvoiceIRN(ctx context.Context, rec entity.InvoiceRecord) (IRNResult, error) {
	dt, err := ParseInvoiceDate(rec.InvoiceDate)
	if err != nil {
		return IRNResult{}, err
	}
	amt, err := parseDecimalAmount(rec.TotalAmount)
	if err != nil {
		return IRNResult{}, common.InvalidFormatError("unparseable invoice amount")
	}
	amtF, _ := amt.Float64()

	payload := map[string]any{
		"gstin":      rec.VendorTaxID,
		"doc_num":    rec.InvoiceNumber,
		"doc_date":   dt.Format("02/01/2006"),
		"doc_amount": amtF,
	}
	raw, status, err := c.doJSON(ctx, http.MethodPost, "/gst/compliance/einvoice/irn", payload)
	if err != nil {
		return IRNResult{}, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return IRNResult{Status: constants.IRNNotFound}, nil
	default:
		return IRNResult{}, common.APIError("irn lookup failed", fmt.Errorf("status %d", status))
	}

	var body irnPayload
	if err := json.Unmarshal(raw, &body); err != nil {
		return IRNResult{}, common.APIError("malformed irn response", err)
	}
	if body.Status != "success" {
		return IRNResult{Status: constants.IRNNotFound}, nil
	}
	if body.Data.IRN == "" {
		return IRNResult{Status: constants.IRNNotGenerated}, nil
	}
	return IRNResult{Status: constants.IRNFound, IRN: body.Data.IRN}, nil
}
