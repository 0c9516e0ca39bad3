package entity

import (
	"time"

	"github.com/invoicelens/invoicelens/constants"
)

// RiskVerdict is the scored output for one submission. It is created once
// by the risk aggregator and never mutated afterwards.
type RiskVerdict struct {
	FraudScore      int                `json:"fraud_score"`
	RiskTier        constants.RiskTier `json:"risk_tier"`
	Reasons         []string           `json:"reasons"`
	Recommendations []string           `json:"recommendations"`
}

// Neighbor is a historical record annotated with its standardized feature
// distance to the record under analysis.
type Neighbor struct {
	Record   AnalysisRecord `json:"record"`
	Distance float64        `json:"distance"`
}

// DuplicateVerdict is the duplicate detector's output for one submission.
type DuplicateVerdict struct {
	IsDuplicate     bool       `json:"is_duplicate"`
	SimilarityScore float64    `json:"similarity_score"`
	Neighbors       []Neighbor `json:"neighbors,omitempty"`
}

// AnalysisRecord is the persisted shape: the extracted record plus the
// scoring outcome. One JSON object per submission is written to the
// archive under a date-partitioned key.
type AnalysisRecord struct {
	InvoiceNumber string             `json:"invoice_number"`
	VendorName    string             `json:"vendor_name"`
	VendorTaxID   string             `json:"vendor_gstin"`
	Amount        string             `json:"amount"`
	InvoiceDate   string             `json:"invoice_date"`
	FraudScore    int                `json:"fraud_score"`
	FraudReasons  []string           `json:"fraud_reasons"`
	ProcessedAt   time.Time          `json:"processed_at"`
	RiskLevel     constants.RiskTier `json:"risk_level"`
}

// Invoice returns the InvoiceRecord view of a stored analysis record.
func (a AnalysisRecord) Invoice() InvoiceRecord {
	return InvoiceRecord{
		InvoiceNumber: a.InvoiceNumber,
		InvoiceDate:   a.InvoiceDate,
		TotalAmount:   a.Amount,
		VendorName:    a.VendorName,
		VendorTaxID:   a.VendorTaxID,
	}
}
