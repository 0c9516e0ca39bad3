package risk

import (
	"fmt"

	"github.com/invoicelens/invoicelens/constants"
	"github.com/invoicelens/invoicelens/internal/entity"
)

// TaxIDStatus is the outcome of the tax ID verification check as seen
// by the scorer. Callers map collaborator failures into these values so
// the scorer stays a pure function.
type TaxIDStatus string

const (
	// TaxIDVerified means the registry confirmed the ID.
	TaxIDVerified TaxIDStatus = "VERIFIED"
	// TaxIDFormatValid means only the 15-char shape could be confirmed,
	// typically because the registry was unreachable or restricted.
	TaxIDFormatValid TaxIDStatus = "FORMAT_VALID"
	// TaxIDUnverified means verification ran and could not confirm the ID.
	TaxIDUnverified TaxIDStatus = "UNVERIFIED"
)

// FilingStatus is the outcome of the return-filing history check.
type FilingStatus string

const (
	FilingFiled      FilingStatus = "FILED"
	FilingAbsent     FilingStatus = "ABSENT"
	FilingRestricted FilingStatus = "RESTRICTED"
	FilingUnverified FilingStatus = "UNVERIFIED"
	FilingFailed     FilingStatus = "FAILED"
	// FilingSkipped means the check never ran, because the tax ID or
	// the invoice date was missing.
	FilingSkipped FilingStatus = "SKIPPED"
)

// ComplianceResults carries the external check outcomes into Score.
type ComplianceResults struct {
	TaxID          TaxIDStatus
	Filing         FilingStatus
	FinancialYear  string
	DuplicateError bool
}

// Thresholds are the inclusive lower bounds for the HIGH and MEDIUM
// tiers.
type Thresholds struct {
	High   int
	Medium int
}

// CanonicalThresholds is the production tier mapping. LegacyThresholds
// reproduces an earlier variant and stays available as configuration.
var (
	CanonicalThresholds = Thresholds{High: 60, Medium: 30}
	LegacyThresholds    = Thresholds{High: 50, Medium: 25}
)

func (t Thresholds) normalize() Thresholds {
	if t.High <= 0 || t.Medium <= 0 || t.Medium >= t.High {
		return CanonicalThresholds
	}
	return t
}

// Tier maps a score to its risk tier. The lower bound of each band is
// inclusive.
func (t Thresholds) Tier(score int) constants.RiskTier {
	t = t.normalize()
	switch {
	case score >= t.High:
		return constants.RiskHigh
	case score >= t.Medium:
		return constants.RiskMedium
	default:
		return constants.RiskLow
	}
}

var recommendationsByTier = map[constants.RiskTier][]string{
	constants.RiskHigh: {
		"Manual verification required",
		"Contact vendor directly",
		"Verify supporting documents",
		"Exercise extreme caution",
	},
	constants.RiskMedium: {
		"Additional verification recommended",
		"Cross-reference with purchase orders",
		"Verify vendor credentials",
	},
	constants.RiskLow: {
		"Invoice appears legitimate",
		"Standard processing approved",
		"Proceed with normal workflow",
	},
}

// Recommendations returns the fixed guidance set for a tier.
func Recommendations(tier constants.RiskTier) []string {
	recs := recommendationsByTier[tier]
	out := make([]string, len(recs))
	copy(out, recs)
	return out
}

// Score combines the extracted record, the duplicate verdict, and the
// compliance outcomes into a single additive risk score. Reasons appear
// in check order. The score never goes below zero.
func Score(rec entity.InvoiceRecord, dup entity.DuplicateVerdict, comp ComplianceResults, th Thresholds) entity.RiskVerdict {
	var score int
	var reasons []string

	if rec.VendorTaxID == "" {
		reasons = append(reasons, "Missing GSTIN")
		score += 30
	} else {
		switch comp.TaxID {
		case TaxIDVerified:
			reasons = append(reasons, "GSTIN verification complete")
		case TaxIDFormatValid:
			reasons = append(reasons, "GSTIN format valid")
			score += 5
		default:
			reasons = append(reasons, "GSTIN verification failed")
			score += 20
		}
	}

	switch comp.Filing {
	case FilingFiled:
		reasons = append(reasons, fmt.Sprintf("GST returns filed for FY %s", comp.FinancialYear))
		if score >= 10 {
			score -= 10
		}
	case FilingAbsent:
		reasons = append(reasons, fmt.Sprintf("No GST returns filed for FY %s", comp.FinancialYear))
		score += 30
	case FilingRestricted:
		reasons = append(reasons, "GST filing history check requires API upgrade")
		score += 5
	case FilingUnverified:
		reasons = append(reasons, "Unable to verify GST filing history")
		score += 15
	case FilingFailed:
		reasons = append(reasons, "GST filing history check failed")
		score += 10
	case FilingSkipped:
		if rec.VendorTaxID == "" {
			reasons = append(reasons, "Cannot check GST filing history - GSTIN missing")
		} else if rec.InvoiceDate == "" {
			reasons = append(reasons, "Cannot check GST filing history - Invoice date missing")
		}
	}

	switch {
	case comp.DuplicateError:
		reasons = append(reasons, "Duplicate check incomplete")
		score += 10
	case dup.IsDuplicate:
		reasons = append(reasons, fmt.Sprintf("Potential duplicate detected (similarity: %.1f%%)", dup.SimilarityScore))
		score += 35
	}

	if rec.InvoiceNumber == "" {
		reasons = append(reasons, "Invoice number missing")
		score += 15
	}
	if rec.TotalAmount == "" || rec.TotalAmount == "0" {
		reasons = append(reasons, "Amount not detected or zero")
		score += 15
	}
	if rec.InvoiceDate == "" {
		reasons = append(reasons, "Invoice date missing")
		score += 10
	}

	if score < 0 {
		score = 0
	}

	tier := th.Tier(score)
	return entity.RiskVerdict{
		FraudScore:      score,
		RiskTier:        tier,
		Reasons:         reasons,
		Recommendations: Recommendations(tier),
	}
}
