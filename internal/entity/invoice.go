package entity

// InvoiceRecord is the canonical structured result of extraction. Every
// field defaults to the empty string rather than an absent key; no field is
// ever null. A record is not mutated after extraction except that an empty
// vendor name may be filled once from a compliance lookup.
type InvoiceRecord struct {
	InvoiceNumber string `json:"invoice_number"`
	InvoiceDate   string `json:"invoice_date"`
	TotalAmount   string `json:"total_amount"`
	VendorName    string `json:"vendor_name"`
	VendorTaxID   string `json:"vendor_gstin"`
}

// IsEmpty reports whether extraction produced no usable fields at all.
func (r InvoiceRecord) IsEmpty() bool {
	return r.InvoiceNumber == "" &&
		r.InvoiceDate == "" &&
		r.TotalAmount == "" &&
		r.VendorName == "" &&
		r.VendorTaxID == ""
}
