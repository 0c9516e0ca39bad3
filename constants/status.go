package constants

// ErrorCode classifies collaborator and pipeline failures.
type ErrorCode string

// Stable values (surface these exact strings in reason messages and logs).
const (
	CodeAuthError         ErrorCode = "AUTH_ERROR"         // collaborator credential failure
	CodeTimeout           ErrorCode = "TIMEOUT"            // network deadline exceeded
	CodeInvalidFormat     ErrorCode = "INVALID_FORMAT"     // malformed tax ID / account identifier
	CodeNotFound          ErrorCode = "NOT_FOUND"          // collaborator has no record
	CodeAPIError          ErrorCode = "API_ERROR"          // unexpected collaborator response
	CodeExtractionFailure ErrorCode = "EXTRACTION_FAILURE" // OCR or parsing produced no usable fields
)

// Reconciliation outcomes for GSTR-2B matching.
const (
	ReconMatched        = "MATCHED"
	ReconMissing        = "MISSING"
	ReconAmountMismatch = "AMOUNT_MISMATCH"
	ReconDateError      = "DATE_ERROR"
)

// E-invoice IRN lookup outcomes.
const (
	IRNFound        = "FOUND"
	IRNNotFound     = "NOT_FOUND"
	IRNNotGenerated = "NOT_GENERATED"
)

// Bank account verification outcomes.
const (
	BankVerified        = "VERIFIED"
	BankAccountNotFound = "ACCOUNT_NOT_FOUND"
	BankInvalidDetails  = "INVALID_DETAILS"
)
