package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/invoicelens/invoicelens/constants"
	"github.com/invoicelens/invoicelens/internal/common"
	"github.com/invoicelens/invoicelens/internal/entity"
)

const testTaxID = "27AAPFU0939F1ZV"

// fakeRegistry serves the authenticate handshake plus one configurable
// operation endpoint.
func fakeRegistry(t *testing.T, path string, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/authenticate", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") == "" || r.Header.Get("x-api-secret") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	})
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		handler(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewClient(common.ComplianceConfig{
		BaseURL:    srv.URL,
		APIKey:     "key",
		APISecret:  "secret",
		APIVersion: "1.0",
		Timeout:    5 * time.Second,
	}, srv.Client(), nil)
	return client, srv
}

func TestValidTaxIDFormat(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{testTaxID, true},
		{"29AAGCB7383J1Z4", true},
		{"", false},
		{"27AAPFU0939F1Z", false},
		{"27aapfu0939f1zv", true},
		{"ZZAAPFU0939F1ZV", false},
	}
	for _, tc := range tests {
		if got := ValidTaxIDFormat(tc.in); got != tc.want {
			t.Errorf("ValidTaxIDFormat(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestVerifyTaxIDActive(t *testing.T) {
	client, _ := fakeRegistry(t, "/gst/compliance/taxpayer/gstin", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["gstin"] != testTaxID {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"data": map[string]any{
				"status":    "Active",
				"legalName": "United Technolink Pvt Ltd",
			},
		})
	})

	details, err := client.VerifyTaxID(context.Background(), testTaxID)
	if err != nil {
		t.Fatalf("VerifyTaxID: %v", err)
	}
	if !details.Valid {
		t.Error("expected active tax ID to be valid")
	}
	if details.Name != "United Technolink Pvt Ltd" {
		t.Errorf("name = %q", details.Name)
	}
}

func TestVerifyTaxIDMalformedFailsFast(t *testing.T) {
	client := NewClient(common.ComplianceConfig{BaseURL: "http://registry.invalid"}, nil, nil)
	_, err := client.VerifyTaxID(context.Background(), "NOT-A-TAX-ID")
	if err == nil {
		t.Fatal("expected error for malformed tax ID")
	}
	if common.CodeOf(err) != constants.CodeInvalidFormat {
		t.Errorf("code = %s, want INVALID_FORMAT", common.CodeOf(err))
	}
}

func TestVerifyTaxIDRestrictedPlan(t *testing.T) {
	client, _ := fakeRegistry(t, "/gst/compliance/taxpayer/gstin", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err := client.VerifyTaxID(context.Background(), testTaxID)
	if !errors.Is(err, ErrRestricted) {
		t.Errorf("err = %v, want ErrRestricted", err)
	}
}

func TestReturnHistory(t *testing.T) {
	client, _ := fakeRegistry(t, "/gst/compliance/public/gstrs/track", func(w http.ResponseWriter, r *http.Request) {
		if fy := r.URL.Query().Get("financial_year"); fy != "2025-26" {
			t.Errorf("financial_year = %q, want 2025-26", fy)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"data": map[string]any{
					"EFiledlist": []map[string]string{
						{"rtntype": "GSTR1", "ret_prd": "012026", "status": "Filed", "dof": "10-02-2026"},
						{"rtntype": "GSTR3B", "ret_prd": "012026", "status": "Filed", "dof": "20-02-2026"},
					},
				},
			},
		})
	})

	hist, err := client.ReturnHistory(context.Background(), testTaxID, "15-01-2026")
	if err != nil {
		t.Fatalf("ReturnHistory: %v", err)
	}
	if !hist.FilingExists {
		t.Error("expected filing_exists = true")
	}
	if hist.FinancialYear != "2025-26" {
		t.Errorf("financial year = %q", hist.FinancialYear)
	}
	if len(hist.Returns) != 2 {
		t.Errorf("returns = %d, want 2", len(hist.Returns))
	}
}

func TestFinancialYear(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"15-01-2026", "2025-26"},
		{"01-04-2025", "2025-26"},
		{"31-03-2025", "2024-25"},
		{"2024-12-05", "2024-25"},
	}
	for _, tc := range tests {
		dt, err := ParseInvoiceDate(tc.date)
		if err != nil {
			t.Fatalf("ParseInvoiceDate(%q): %v", tc.date, err)
		}
		if got := FinancialYear(dt); got != tc.want {
			t.Errorf("FinancialYear(%s) = %q, want %q", tc.date, got, tc.want)
		}
	}
}

func TestReconcileGSTR2B(t *testing.T) {
	record := func(amount string) entity.InvoiceRecord {
		return entity.InvoiceRecord{
			InvoiceNumber: "UTL/PI0239",
			InvoiceDate:   "20/02/2025",
			TotalAmount:   amount,
			VendorTaxID:   testTaxID,
		}
	}
	payload := map[string]any{
		"data": map[string]any{
			"b2b": []map[string]any{{
				"ctin": testTaxID,
				"inv": []map[string]any{
					{"inum": "UTL/PI0239", "val": "342200.00"},
				},
			}},
		},
	}

	t.Run("matched", func(t *testing.T) {
		client, _ := fakeRegistry(t, "/gst/compliance/tax-payer/gstrs/gstr-2b/2025/02", func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(payload)
		})
		res, err := client.ReconcileGSTR2B(context.Background(), record("342,200.00"))
		if err != nil {
			t.Fatalf("ReconcileGSTR2B: %v", err)
		}
		if res.Status != constants.ReconMatched {
			t.Errorf("status = %q, want MATCHED", res.Status)
		}
	})

	t.Run("amount mismatch", func(t *testing.T) {
		client, _ := fakeRegistry(t, "/gst/compliance/tax-payer/gstrs/gstr-2b/2025/02", func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(payload)
		})
		res, err := client.ReconcileGSTR2B(context.Background(), record("350000"))
		if err != nil {
			t.Fatalf("ReconcileGSTR2B: %v", err)
		}
		if res.Status != constants.ReconAmountMismatch {
			t.Errorf("status = %q, want AMOUNT_MISMATCH", res.Status)
		}
		if res.FiledAmount != "342200.00" {
			t.Errorf("filed amount = %q", res.FiledAmount)
		}
	})

	t.Run("missing period", func(t *testing.T) {
		client, _ := fakeRegistry(t, "/gst/compliance/tax-payer/gstrs/gstr-2b/2025/02", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		res, err := client.ReconcileGSTR2B(context.Background(), record("342200"))
		if err != nil {
			t.Fatalf("ReconcileGSTR2B: %v", err)
		}
		if res.Status != constants.ReconMissing {
			t.Errorf("status = %q, want MISSING", res.Status)
		}
	})
}

func TestCheckEInvoiceIRN(t *testing.T) {
	rec := entity.InvoiceRecord{
		InvoiceNumber: "UTL/PI0239",
		InvoiceDate:   "20-02-2025",
		TotalAmount:   "342200.00",
		VendorTaxID:   testTaxID,
	}

	t.Run("found", func(t *testing.T) {
		client, _ := fakeRegistry(t, "/gst/compliance/einvoice/irn", func(w http.ResponseWriter, r *http.Request) {
			var req map[string]any
			json.NewDecoder(r.Body).Decode(&req)
			if req["doc_date"] != "20/02/2025" {
				t.Errorf("doc_date = %v", req["doc_date"])
			}
			json.NewEncoder(w).Encode(map[string]any{
				"status": "success",
				"data":   map[string]string{"irn": "a1b2c3d4e5f6a7b8c9d0"},
			})
		})
		res, err := client.CheckEInvoiceIRN(context.Background(), rec)
		if err != nil {
			t.Fatalf("CheckEInvoiceIRN: %v", err)
		}
		if res.Status != constants.IRNFound || res.IRN == "" {
			t.Errorf("result = %+v, want FOUND with IRN", res)
		}
	})

	t.Run("not generated", func(t *testing.T) {
		client, _ := fakeRegistry(t, "/gst/compliance/einvoice/irn", func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"status": "success", "data": map[string]string{}})
		})
		res, err := client.CheckEInvoiceIRN(context.Background(), rec)
		if err != nil {
			t.Fatalf("CheckEInvoiceIRN: %v", err)
		}
		if res.Status != constants.IRNNotGenerated {
			t.Errorf("status = %q, want NOT_GENERATED", res.Status)
		}
	})
}
