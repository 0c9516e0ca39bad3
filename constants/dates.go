package constants

// InvoiceDateLayouts are the date shapes accepted on extracted invoices,
// most specific first. Extraction does not cross-validate against a
// calendar; these are only used when a real time.Time is needed
// (compliance periods, similarity features).
var InvoiceDateLayouts = []string{
	"02-01-2006",
	"02/01/2006",
	"2006-01-02",
	"2006/01/02",
	"02-01-06",
	"02/01/06",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
}
