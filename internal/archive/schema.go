package archive

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/invoicelens/invoicelens/internal/entity"
)

// recordSchema guards loads from the SQL stores: rows written by older
// builds or touched out-of-band are skipped instead of poisoning the
// detector's feature index.
const recordSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["invoice_number", "vendor_name", "amount", "processed_at", "fraud_score", "risk_level"],
  "properties": {
    "invoice_number": {"type": "string"},
    "vendor_name": {"type": "string"},
    "vendor_gstin": {"type": "string"},
    "amount": {"type": "string"},
    "invoice_date": {"type": "string"},
    "fraud_score": {"type": "integer", "minimum": 0},
    "fraud_reasons": {"type": "array", "items": {"type": "string"}},
    "processed_at": {"type": "string"},
    "risk_level": {"enum": ["LOW", "MEDIUM", "HIGH"]}
  }
}`

var compiledSchema = jsonschema.MustCompileString("analysis-record.schema.json", recordSchema)

// decodeRecord validates a raw JSON row against the record schema and
// unmarshals it. Invalid rows return an error for the caller to log
// and skip.
func decodeRecord(raw []byte) (entity.AnalysisRecord, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return entity.AnalysisRecord{}, err
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return entity.AnalysisRecord{}, err
	}
	var rec entity.AnalysisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return entity.AnalysisRecord{}, err
	}
	return rec, nil
}
