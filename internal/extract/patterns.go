package extract

import "regexp"

// taxIDPattern is the 15-character registration code: 2 digits, 5 letters,
// 4 digits, 1 letter, 1 alphanumeric, a literal Z, 1 alphanumeric. This is
// the most constrained pattern on the page, so it is matched first.
var taxIDPattern = regexp.MustCompile(`\b\d{2}[A-Z]{5}\d{4}[A-Z][0-9A-Z]Z[0-9A-Z]\b`)

// Organization-specific invoice number formats seen on supplier paper.
// These carry the highest confidence and are tried before anything generic.
var orgInvoicePattern = regexp.MustCompile(`\b(UTL/PI\d+|AIN\d{10,}|ININMH\d{10,})\b`)

var orgInvoicePrefix = regexp.MustCompile(`^(UTL/|AIN|ININMH)`)

// Generic invoice number patterns, keyword-adjacent first.
var invoicePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)(?:INVOICE|INV|BILL)\s*(?:NO|NUMBER|#)?\s*[:.-]?\s*([A-Z0-9][-A-Z0-9/\\]{4,})`),
	regexp.MustCompile(`(?m)(?:INVOICE NUMBER|INV NO|BILL NO)\s*[:.-]?\s*([A-Z0-9][-A-Z0-9/\\]{4,})`),
	regexp.MustCompile(`(?m)(?:INVOICE|PROFORMA INVOICE)\s+([A-Z0-9][-A-Z0-9/\\]{4,})\s+(?:DATED|DATE)`),
	regexp.MustCompile(`\b([A-Z]{2,5}/[A-Z0-9]+/?\d+)\b`),
	regexp.MustCompile(`\b([A-Z]{2,5}-\d{4,})\b`),
	regexp.MustCompile(`\b(INV-?\d{4,})\b`),
}

// Candidate rejection: boilerplate tokens, phone numbers, postal codes and
// street-address fragments all regex-match the generic shapes above.
var (
	invoiceStoplist = regexp.MustCompile(`^(DATE|DATED|TIME|GSTIN|GST|PAN|CIN|UNITED|NAME|EMAIL|PHONE|MOBILE|ADDRESS|TOTAL|AMOUNT|CUSTOMER|INVENTORY)$`)
	phoneShaped     = regexp.MustCompile(`^\d{10}$`)
	postalShaped    = regexp.MustCompile(`^\d{6}$`)
	addressFragment = regexp.MustCompile(`(ROAD|STREET|FLOOR|BUILDING|BANGALORE|DELHI|MUMBAI|CHENNAI|KOLKATA)`)
	structuredToken = regexp.MustCompile(`[A-Z].*\d|\d.*[A-Z]`)
)

// Date-shaped expressions, most specific first. The first match anywhere in
// the text wins; no calendar validation is applied.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:DATE|DATED|INVOICE DATE|BILL DATE)\s*[:.-]?\s*(\d{1,2}[-/]\d{1,2}[-/]\d{4})`),
	regexp.MustCompile(`(?i)(\d{1,2}[-/](?:JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)[-/]\d{4})`),
	regexp.MustCompile(`(?i)((?:JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)[A-Z]*\s+\d{1,2},?\s+\d{4})`),
	regexp.MustCompile(`(?i)(?:DATE|DATED)\s*[:.-]?\s*(\d{4}[-/]\d{1,2}[-/]\d{1,2})`),
	regexp.MustCompile(`\b(\d{1,2}[-/]\d{1,2}[-/]\d{4})\b`),
	regexp.MustCompile(`\b(\d{4}[-/]\d{1,2}[-/]\d{1,2})\b`),
}

// Amount extraction. Stage one looks only at high-confidence keywords;
// stage two collects every plausible currency token and keeps the maximum.
var (
	amountPriorityPattern = regexp.MustCompile(`(?i)(?:GRAND TOTAL|FINAL AMOUNT|TOTAL AMOUNT IN INR)\s*(?:₹|RS\.?|INR)?\s*([0-9,]+(?:\.[0-9]{2})?)`)

	amountPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:TOTAL|SUBTOTAL|TOTAL AMOUNT|NET AMOUNT)\s*(?:₹|RS\.?|INR)?\s*([0-9,]+(?:\.[0-9]{2})?)`),
		regexp.MustCompile(`₹\s*([0-9,]+(?:\.[0-9]{2})?)`),
		regexp.MustCompile(`(?i)Rs\.?\s*([0-9,]+(?:\.[0-9]{2})?)`),
		regexp.MustCompile(`\b([0-9]{1,3}(?:,[0-9]{3})+(?:\.[0-9]{2})?)\b`),
	}

	amountInWordsPattern = regexp.MustCompile(`(?i)Amount in words[:\-\s]*:?\s*([A-Za-z\s\-]+?)(?:\n|$|Rs|Rupees)`)
	wordFillerPattern    = regexp.MustCompile(`(?i)(?:rupees?|only|and|paise|rs\.?)`)

	nonNumeric = regexp.MustCompile(`[^\d.]`)
)

// Vendor name heuristics over the top of the page.
var (
	vendorPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^([A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+)*\s+(?:PVT\.?\s*)?(?:LTD|LIMITED)\.?)$`),
		regexp.MustCompile(`(?i)^([A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+)*\s+(?:PRIVATE\s+)?LIMITED)$`),
		regexp.MustCompile(`(?i)^([A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+)*\s+(?:TECHNOLOGIES|SOLUTIONS|SERVICES|ENTERPRISES|INDUSTRIES))$`),
		regexp.MustCompile(`(?i)(?:FROM|SOLD BY|SUPPLIER|VENDOR)\s*[:.-]\s*([A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+)*)`),
	}

	vendorBoilerplate = regexp.MustCompile(`(?i)(?:INVOICE|BILL|GST|GSTIN|DATE|ORIGINAL|TAX|PROFORMA|SIGNATURE)`)
	digitsOnlyLine    = regexp.MustCompile(`^\d+$`)
	dateLikeLine      = regexp.MustCompile(`\d{2}[-/]\d{2}[-/]\d{4}`)
)

// Known vendors matched by literal substring before structural heuristics.
var knownVendors = []struct {
	Marker string
	Name   string
}{
	{"AMAZON WEB SERVICES", "Amazon Web Services India Private Limited"},
	{"ATLYS", "Atlys India Private Limited"},
	{"UNITED TECHNOLINK", "United Technolink Pvt Ltd"},
}
