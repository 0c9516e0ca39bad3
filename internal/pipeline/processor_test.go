package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/invoicelens/invoicelens/internal/archive"
	"github.com/invoicelens/invoicelens/internal/common"
	"github.com/invoicelens/invoicelens/internal/compliance"
	"github.com/invoicelens/invoicelens/internal/entity"
	"github.com/invoicelens/invoicelens/internal/risk"
)

type fakeExtractor struct {
	rec entity.InvoiceRecord
}

func (f *fakeExtractor) Extract(_ context.Context, _ []byte) entity.InvoiceRecord {
	return f.rec
}

type fakeRegistry struct {
	details    compliance.TaxIDDetails
	detailsErr error
	history    compliance.FilingHistory
	historyErr error
	recon      compliance.ReconResult
	irn        compliance.IRNResult
}

func (f *fakeRegistry) VerifyTaxID(_ context.Context, _ string) (compliance.TaxIDDetails, error) {
	return f.details, f.detailsErr
}

func (f *fakeRegistry) ReturnHistory(_ context.Context, _, _ string) (compliance.FilingHistory, error) {
	return f.history, f.historyErr
}

func (f *fakeRegistry) ReconcileGSTR2B(_ context.Context, _ entity.InvoiceRecord) (compliance.ReconResult, error) {
	return f.recon, nil
}

func (f *fakeRegistry) CheckEInvoiceIRN(_ context.Context, _ entity.InvoiceRecord) (compliance.IRNResult, error) {
	return f.irn, nil
}

type fakeDetector struct {
	verdict     entity.DuplicateVerdict
	err         error
	invalidated int
}

func (f *fakeDetector) Check(_ context.Context, _ entity.InvoiceRecord) (entity.DuplicateVerdict, error) {
	return f.verdict, f.err
}

func (f *fakeDetector) Invalidate() { f.invalidated++ }

type captureSink struct {
	alerts []Verdict
}

func (c *captureSink) HighRiskAlert(v Verdict) { c.alerts = append(c.alerts, v) }

func cleanInvoice() entity.InvoiceRecord {
	return entity.InvoiceRecord{
		InvoiceNumber: "UTL-2024-0042",
		InvoiceDate:   "15-01-2026",
		TotalAmount:   "342200.00",
		VendorName:    "United Technolink Pvt Ltd",
		VendorTaxID:   "27AAPFU0939F1ZV",
	}
}

func TestProcessCleanInvoice(t *testing.T) {
	store := archive.NewMemoryStore()
	detector := &fakeDetector{}
	p := NewProcessor(
		&fakeExtractor{rec: cleanInvoice()},
		&fakeRegistry{
			details: compliance.TaxIDDetails{Valid: true, Name: "United Technolink Pvt Ltd"},
			history: compliance.FilingHistory{FilingExists: true, FinancialYear: "2025-26"},
		},
		detector,
		store,
		risk.CanonicalThresholds,
		nil,
	)

	v, err := p.Process(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if v.FraudScore != 0 {
		t.Errorf("score = %d, want 0", v.FraudScore)
	}
	if v.RiskLevel != "LOW RISK" {
		t.Errorf("risk level = %q", v.RiskLevel)
	}
	if v.Amount != "₹3,42,200.00" {
		t.Errorf("amount = %q, want Indian grouping", v.Amount)
	}
	if store.Len() != 1 {
		t.Errorf("archived %d records, want 1", store.Len())
	}
	if detector.invalidated != 1 {
		t.Errorf("detector invalidated %d times, want 1", detector.invalidated)
	}
	if v.StorageKey == "" || !strings.HasPrefix(v.StorageKey, "invoice-analysis/") {
		t.Errorf("storage key = %q", v.StorageKey)
	}
}

func TestProcessEmptyExtractionIsHighRisk(t *testing.T) {
	sink := &captureSink{}
	p := NewProcessor(
		&fakeExtractor{rec: entity.InvoiceRecord{}},
		&fakeRegistry{},
		&fakeDetector{},
		archive.NewMemoryStore(),
		risk.CanonicalThresholds,
		nil,
	)
	p.SetAlertSink(sink)

	v, err := p.Process(context.Background(), nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	// 30 + 15 + 15 + 10 = 70
	if v.FraudScore != 70 {
		t.Errorf("score = %d, want 70", v.FraudScore)
	}
	if v.RiskLevel != "HIGH RISK" {
		t.Errorf("risk level = %q, want HIGH RISK", v.RiskLevel)
	}
	if v.Amount != "N/A" {
		t.Errorf("amount = %q, want N/A", v.Amount)
	}
	if len(sink.alerts) != 1 {
		t.Errorf("alert sink received %d verdicts, want 1", len(sink.alerts))
	}
}

func TestProcessDegradesCollaboratorFailures(t *testing.T) {
	p := NewProcessor(
		&fakeExtractor{rec: cleanInvoice()},
		&fakeRegistry{
			detailsErr: common.APIError("registry down", nil),
			historyErr: common.APIError("registry down", nil),
		},
		&fakeDetector{err: common.APIError("index corrupt", nil)},
		archive.NewMemoryStore(),
		risk.CanonicalThresholds,
		nil,
	)

	v, err := p.Process(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Process must not fail on collaborator errors: %v", err)
	}
	// 5 (format-only) + 15 (filing unverified) + 10 (dup check incomplete) = 30
	if v.FraudScore != 30 {
		t.Errorf("score = %d, want 30", v.FraudScore)
	}
	found := false
	for _, r := range v.RiskFactors {
		if r == "Duplicate check incomplete" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing degraded duplicate-check reason in %v", v.RiskFactors)
	}
}

func TestProcessBackfillsVendorName(t *testing.T) {
	rec := cleanInvoice()
	rec.VendorName = ""
	p := NewProcessor(
		&fakeExtractor{rec: rec},
		&fakeRegistry{
			details: compliance.TaxIDDetails{Valid: true, Name: "United Technolink Pvt Ltd"},
			history: compliance.FilingHistory{FilingExists: true, FinancialYear: "2025-26"},
		},
		&fakeDetector{},
		archive.NewMemoryStore(),
		risk.CanonicalThresholds,
		nil,
	)

	v, err := p.Process(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if v.VendorName != "United Technolink Pvt Ltd" {
		t.Errorf("vendor name = %q, want registry backfill", v.VendorName)
	}
}

func TestProcessDuplicateRaisesScore(t *testing.T) {
	p := NewProcessor(
		&fakeExtractor{rec: cleanInvoice()},
		&fakeRegistry{
			details: compliance.TaxIDDetails{Valid: true},
			history: compliance.FilingHistory{FilingExists: true, FinancialYear: "2025-26"},
		},
		&fakeDetector{verdict: entity.DuplicateVerdict{IsDuplicate: true, SimilarityScore: 98.2}},
		archive.NewMemoryStore(),
		risk.CanonicalThresholds,
		nil,
	)

	v, err := p.Process(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if v.FraudScore != 35 {
		t.Errorf("score = %d, want 35", v.FraudScore)
	}
	if v.RiskLevel != "MEDIUM RISK" {
		t.Errorf("risk level = %q, want MEDIUM RISK", v.RiskLevel)
	}
}

func TestFormatCurrency(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"342200.00", "₹3,42,200.00"},
		{"1000", "₹1,000.00"},
		{"12345678.90", "₹1,23,45,678.90"},
		{"", "N/A"},
		{"0", "N/A"},
		{"not-a-number", "N/A"},
	}
	for _, tc := range tests {
		if got := FormatCurrency(tc.in); got != tc.want {
			t.Errorf("FormatCurrency(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
