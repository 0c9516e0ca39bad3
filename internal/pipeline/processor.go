// Package pipeline runs one invoice submission end to end: extraction,
// parallel compliance and duplicate checks, scoring, and archiving.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/invoicelens/invoicelens/constants"
	"github.com/invoicelens/invoicelens/internal/archive"
	"github.com/invoicelens/invoicelens/internal/common"
	"github.com/invoicelens/invoicelens/internal/compliance"
	"github.com/invoicelens/invoicelens/internal/entity"
	"github.com/invoicelens/invoicelens/internal/risk"
)

// Extractor turns raw document bytes into a structured record.
type Extractor interface {
	Extract(ctx context.Context, docBytes []byte) entity.InvoiceRecord
}

// ComplianceChecker is the registry surface the pipeline consumes.
type ComplianceChecker interface {
	VerifyTaxID(ctx context.Context, taxID string) (compliance.TaxIDDetails, error)
	ReturnHistory(ctx context.Context, taxID, invoiceDate string) (compliance.FilingHistory, error)
	ReconcileGSTR2B(ctx context.Context, rec entity.InvoiceRecord) (compliance.ReconResult, error)
	CheckEInvoiceIRN(ctx context.Context, rec entity.InvoiceRecord) (compliance.IRNResult, error)
}

// DuplicateChecker flags resubmitted payments.
type DuplicateChecker interface {
	Check(ctx context.Context, rec entity.InvoiceRecord) (entity.DuplicateVerdict, error)
	Invalidate()
}

// AlertSink receives verdicts that crossed the high-risk threshold.
// Delivery is fire-and-forget; the pipeline never waits on it.
type AlertSink interface {
	HighRiskAlert(v Verdict)
}

// Processor orchestrates one submission.
type Processor struct {
	extractor  Extractor
	registry   ComplianceChecker
	detector   DuplicateChecker
	store      archive.Store
	alerts     AlertSink
	thresholds risk.Thresholds
	logger     *slog.Logger
	now        func() time.Time
}

func NewProcessor(
	extractor Extractor,
	registry ComplianceChecker,
	detector DuplicateChecker,
	store archive.Store,
	thresholds risk.Thresholds,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		extractor:  extractor,
		registry:   registry,
		detector:   detector,
		store:      store,
		thresholds: thresholds,
		logger:     logger,
		now:        time.Now,
	}
}

// SetAlertSink attaches the high-risk delivery hook.
func (p *Processor) SetAlertSink(sink AlertSink) { p.alerts = sink }

// complianceOutcome is everything the registry checks produced for one
// record, already degraded into scorer inputs.
type complianceOutcome struct {
	results        risk.ComplianceResults
	details        compliance.TaxIDDetails
	reconciliation compliance.ReconResult
	irn            compliance.IRNResult
}

// Process runs the full pipeline. It always returns a verdict; every
// collaborator failure degrades into a reason and a penalty instead of
// aborting.
func (p *Processor) Process(ctx context.Context, docBytes []byte) (Verdict, error) {
	reqID := uuid.New().String()
	ctx = common.WithRequestID(ctx, reqID)
	start := p.now()

	rec := p.extractor.Extract(ctx, docBytes)
	if rec.IsEmpty() {
		// Scored anyway; every missing field carries its own penalty.
		p.logger.Warn("pipeline.extraction_empty",
			"req_id", reqID,
			"error", common.ExtractionFailure("no fields detected in document", nil))
	}
	p.logger.Info("pipeline.extracted",
		"req_id", reqID,
		"invoice_number", rec.InvoiceNumber,
		"tax_id", rec.VendorTaxID,
		"amount", rec.TotalAmount)

	var (
		wg      sync.WaitGroup
		outcome complianceOutcome
		dup     entity.DuplicateVerdict
		dupErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		outcome = p.runComplianceChecks(ctx, rec)
	}()
	go func() {
		defer wg.Done()
		dup, dupErr = p.detector.Check(ctx, rec)
	}()
	wg.Wait()

	if dupErr != nil {
		p.logger.Error("pipeline.duplicate_check_failed", "req_id", reqID, "error", dupErr)
		outcome.results.DuplicateError = true
		dup = entity.DuplicateVerdict{}
	}
	if rec.VendorName == "" && outcome.details.Name != "" {
		rec.VendorName = outcome.details.Name
	}

	scored := risk.Score(rec, dup, outcome.results, p.thresholds)
	reasons := append(scored.Reasons, supplementalReasons(outcome)...)

	processedAt := p.now().UTC()
	stored := entity.AnalysisRecord{
		InvoiceNumber: rec.InvoiceNumber,
		VendorName:    rec.VendorName,
		VendorTaxID:   rec.VendorTaxID,
		Amount:        rec.TotalAmount,
		InvoiceDate:   rec.InvoiceDate,
		FraudScore:    scored.FraudScore,
		FraudReasons:  reasons,
		ProcessedAt:   processedAt,
		RiskLevel:     scored.RiskTier,
	}
	key, err := p.store.Put(ctx, stored)
	if err != nil {
		// The verdict still goes out; only history accumulation is lost.
		p.logger.Error("pipeline.archive_failed", "req_id", reqID, "error", err)
	} else {
		p.detector.Invalidate()
	}

	verdict := Verdict{
		InvoiceNumber:   rec.InvoiceNumber,
		VendorName:      rec.VendorName,
		VendorTaxID:     rec.VendorTaxID,
		Amount:          FormatCurrency(rec.TotalAmount),
		InvoiceDate:     rec.InvoiceDate,
		FraudScore:      scored.FraudScore,
		RiskLevel:       scored.RiskTier.Label(),
		RiskIcon:        scored.RiskTier.Icon(),
		RiskFactors:     reasons,
		Recommendations: scored.Recommendations,
		Duplicate:       dup,
		Reconciliation:  outcome.reconciliation.Status,
		EInvoiceIRN:     outcome.irn.Status,
		StorageKey:      key,
		ProcessedAt:     processedAt,
	}

	p.logger.Info("pipeline.scored",
		"req_id", reqID,
		"fraud_score", scored.FraudScore,
		"risk_tier", scored.RiskTier,
		"elapsed_ms", p.now().Sub(start).Milliseconds())

	if scored.RiskTier == constants.RiskHigh && p.alerts != nil {
		p.alerts.HighRiskAlert(verdict)
	}
	return verdict, nil
}

// runComplianceChecks executes the registry calls for one record and
// maps every outcome, including failures, onto scorer inputs.
func (p *Processor) runComplianceChecks(ctx context.Context, rec entity.InvoiceRecord) complianceOutcome {
	out := complianceOutcome{
		results: risk.ComplianceResults{Filing: risk.FilingSkipped},
	}
	if rec.VendorTaxID == "" {
		return out
	}

	details, err := p.registry.VerifyTaxID(ctx, rec.VendorTaxID)
	switch {
	case err == nil && details.Valid:
		out.results.TaxID = risk.TaxIDVerified
		out.details = details
	case errors.Is(err, compliance.ErrRestricted):
		out.results.TaxID = risk.TaxIDFormatValid
	case err != nil && compliance.ValidTaxIDFormat(rec.VendorTaxID):
		p.logger.Warn("pipeline.taxid_degraded", "error", err)
		out.results.TaxID = risk.TaxIDFormatValid
	default:
		out.results.TaxID = risk.TaxIDUnverified
	}

	if rec.InvoiceDate == "" {
		return out
	}

	hist, err := p.registry.ReturnHistory(ctx, rec.VendorTaxID, rec.InvoiceDate)
	out.results.FinancialYear = hist.FinancialYear
	switch {
	case err == nil && hist.FilingExists:
		out.results.Filing = risk.FilingFiled
	case err == nil:
		out.results.Filing = risk.FilingAbsent
	case errors.Is(err, compliance.ErrRestricted):
		out.results.Filing = risk.FilingRestricted
	case common.CodeOf(err) == constants.CodeAPIError:
		out.results.Filing = risk.FilingUnverified
	default:
		out.results.Filing = risk.FilingFailed
	}

	// Reconciliation and IRN lookups inform the verdict but do not move
	// the score.
	if rec.InvoiceNumber != "" && rec.TotalAmount != "" {
		if recon, err := p.registry.ReconcileGSTR2B(ctx, rec); err == nil {
			out.reconciliation = recon
		} else if !errors.Is(err, compliance.ErrRestricted) {
			p.logger.Warn("pipeline.reconcile_failed", "error", err)
		}
		if irn, err := p.registry.CheckEInvoiceIRN(ctx, rec); err == nil {
			out.irn = irn
		} else if !errors.Is(err, compliance.ErrRestricted) {
			p.logger.Warn("pipeline.irn_check_failed", "error", err)
		}
	}
	return out
}

func supplementalReasons(out complianceOutcome) []string {
	var reasons []string
	switch out.reconciliation.Status {
	case constants.ReconMatched:
		reasons = append(reasons, "Invoice matched in supplier GSTR-2B")
	case constants.ReconMissing:
		reasons = append(reasons, "Invoice not found in supplier GSTR-2B")
	case constants.ReconAmountMismatch:
		reasons = append(reasons, fmt.Sprintf("GSTR-2B amount mismatch (filed %s)", out.reconciliation.FiledAmount))
	}
	switch out.irn.Status {
	case constants.IRNFound:
		reasons = append(reasons, "E-invoice IRN on record")
	case constants.IRNNotGenerated:
		reasons = append(reasons, "E-invoice IRN never generated")
	}
	return reasons
}
