package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/invoicelens/invoicelens/internal/entity"
	"github.com/invoicelens/invoicelens/internal/ocr"
)

// VendorLookup resolves a registered vendor name for a tax ID. It is the
// only compliance call made during extraction; failures leave the vendor
// name to the textual heuristics.
type VendorLookup interface {
	VendorName(ctx context.Context, taxID string) (string, error)
}

// Extractor turns raw invoice bytes into a structured record: upload the
// document, run text detection, walk the field cascade, clean up.
type Extractor struct {
	store    ocr.DocumentStore
	detector ocr.TextDetector
	lookup   VendorLookup
	logger   *slog.Logger
}

func NewExtractor(store ocr.DocumentStore, detector ocr.TextDetector, lookup VendorLookup, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{store: store, detector: detector, lookup: lookup, logger: logger}
}

// Extract never fails hard: on any collaborator error it returns a record
// with every field empty. Exactly one upload and one cleanup deletion
// happen per call, the deletion even when detection fails.
func (e *Extractor) Extract(ctx context.Context, docBytes []byte) entity.InvoiceRecord {
	start := time.Now()
	key := fmt.Sprintf("raw_invoices/%s.pdf", uuid.New())

	if err := e.store.Put(ctx, key, docBytes); err != nil {
		e.logger.Error("extract.upload_failed", "key", key, "error", err)
		return entity.InvoiceRecord{}
	}
	defer func() {
		if err := e.store.Delete(ctx, key); err != nil {
			e.logger.Warn("extract.cleanup_failed", "key", key, "error", err)
		}
	}()

	lines, err := e.detector.DetectText(ctx, key)
	if err != nil {
		e.logger.Error("extract.ocr_failed", "key", key, "error", err)
		return entity.InvoiceRecord{}
	}

	rec := e.extractFields(ctx, strings.Join(lines, "\n"))
	e.logger.Info("extract.ok",
		"invoice_number", rec.InvoiceNumber,
		"vendor_gstin", rec.VendorTaxID,
		"amount", rec.TotalAmount,
		"date", rec.InvoiceDate,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec
}

// FromText runs the pure field cascade over already-detected text. It is
// deterministic: the same text always yields the same record.
func (e *Extractor) FromText(ctx context.Context, text string) entity.InvoiceRecord {
	return e.extractFields(ctx, text)
}

func (e *Extractor) extractFields(ctx context.Context, text string) entity.InvoiceRecord {
	var rec entity.InvoiceRecord

	textUpper := strings.ToUpper(text)
	lines := splitLines(text)

	// 1. Tax ID: first match of the fixed pattern in reading order.
	if m := taxIDPattern.FindString(textUpper); m != "" {
		rec.VendorTaxID = m

		// Prefer the registered name over anything on the page.
		if e.lookup != nil {
			if name, err := e.lookup.VendorName(ctx, rec.VendorTaxID); err == nil && name != "" {
				rec.VendorName = name
			} else if err != nil {
				e.logger.Warn("extract.vendor_lookup_failed", "gstin", rec.VendorTaxID, "error", err)
			}
		}
	}

	// 2. Invoice number.
	rec.InvoiceNumber = extractInvoiceNumber(textUpper, lines)

	// 3. Date.
	for _, p := range datePatterns {
		if m := p.FindStringSubmatch(textUpper); m != nil {
			rec.InvoiceDate = m[1]
			break
		}
	}

	// 4. Amount.
	rec.TotalAmount = extractAmount(text)

	// 5. Vendor name, when the lookup produced nothing.
	if rec.VendorName == "" {
		rec.VendorName = extractVendorName(textUpper, lines)
	}

	rec.InvoiceNumber = strings.TrimSpace(rec.InvoiceNumber)
	rec.InvoiceDate = strings.TrimSpace(rec.InvoiceDate)
	rec.TotalAmount = strings.TrimSpace(rec.TotalAmount)
	rec.VendorName = strings.TrimSpace(rec.VendorName)
	rec.VendorTaxID = strings.TrimSpace(rec.VendorTaxID)
	return rec
}

// extractInvoiceNumber walks the organization-specific formats over the
// top of the page first, then the generic patterns with candidate
// filtering, preferring structured letter+digit+separator tokens.
func extractInvoiceNumber(textUpper string, lines []string) string {
	limit := len(lines)
	if limit > 30 {
		limit = 30
	}
	for _, line := range lines[:limit] {
		if m := orgInvoicePattern.FindStringSubmatch(strings.ToUpper(line)); m != nil {
			return m[1]
		}
	}

	for _, p := range invoicePatterns {
		matches := p.FindAllStringSubmatch(textUpper, -1)
		if len(matches) == 0 {
			continue
		}
		var valid []string
		for _, m := range matches {
			c := strings.TrimSpace(m[1])
			if len(c) < 4 ||
				invoiceStoplist.MatchString(c) ||
				phoneShaped.MatchString(c) ||
				postalShaped.MatchString(c) ||
				addressFragment.MatchString(c) {
				continue
			}
			valid = append(valid, c)
		}
		if len(valid) == 0 {
			continue
		}

		for _, c := range valid {
			if orgInvoicePrefix.MatchString(c) {
				return c
			}
		}
		for _, c := range valid {
			if structuredToken.MatchString(c) && (strings.Contains(c, "/") || strings.Contains(c, "-")) {
				return c
			}
		}
		return valid[0]
	}
	return ""
}

// extractVendorName tries literal known vendors, then structural
// heuristics over the first lines of the page.
func extractVendorName(textUpper string, lines []string) string {
	for _, kv := range knownVendors {
		if strings.Contains(textUpper, kv.Marker) {
			return kv.Name
		}
	}

	limit := len(lines)
	if limit > 15 {
		limit = 15
	}
	for _, line := range lines[:limit] {
		line = strings.TrimSpace(line)
		if len(line) < 5 ||
			vendorBoilerplate.MatchString(line) ||
			digitsOnlyLine.MatchString(line) ||
			dateLikeLine.MatchString(line) {
			continue
		}
		for _, p := range vendorPatterns {
			if m := p.FindStringSubmatch(line); m != nil {
				return strings.TrimSpace(m[1])
			}
		}
	}
	return ""
}

func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if t := strings.TrimSpace(l); t != "" {
			lines = append(lines, t)
		}
	}
	return lines
}
