package dupdetect

import (
	"crypto/sha256"
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/invoicelens/invoicelens/constants"
	"github.com/invoicelens/invoicelens/internal/entity"
)

// featureDim is the width of a feature vector:
// [amount, vendor fingerprint, days since epoch].
const featureDim = 3

// fingerprintRange bounds the vendor fingerprint so it lives on a scale
// comparable to the other features after standardization.
const fingerprintRange = 1_000_000

type featureVector [featureDim]float64

// vendorFingerprint reduces a vendor identity (tax ID + name) into a
// bounded numeric value via a stable digest. It is an identity proxy
// only; collisions are possible and nothing may rely on uniqueness.
func vendorFingerprint(taxID, vendorName string) float64 {
	sum := sha256.Sum256([]byte(taxID + "_" + vendorName))
	v := binary.BigEndian.Uint64(sum[:8])
	return float64(v % fingerprintRange)
}

// parseAmount reads a stored decimal string, defaulting to 0 when the
// field is empty or unparseable.
func parseAmount(s string) float64 {
	clean := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, s)
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseInvoiceDate tries each accepted layout; ok is false when none fit.
func parseInvoiceDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range constants.InvoiceDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func daysSinceEpoch(t time.Time) float64 {
	return float64(t.Unix() / 86400)
}

// queryFeatures derives the vector for the record under analysis. The
// parsed invoice date is preferred; absent that, the current time stands
// in so the temporal dimension stays populated.
func queryFeatures(rec entity.InvoiceRecord, now time.Time) featureVector {
	var f featureVector
	f[0] = parseAmount(rec.TotalAmount)
	f[1] = vendorFingerprint(rec.VendorTaxID, rec.VendorName)
	if t, ok := parseInvoiceDate(rec.InvoiceDate); ok {
		f[2] = daysSinceEpoch(t)
	} else {
		f[2] = daysSinceEpoch(now)
	}
	return f
}

// historyFeatures derives the vector for a stored record, preferring its
// processing timestamp, then its invoice date.
func historyFeatures(rec entity.AnalysisRecord, now time.Time) featureVector {
	var f featureVector
	f[0] = parseAmount(rec.Amount)
	f[1] = vendorFingerprint(rec.VendorTaxID, rec.VendorName)
	switch {
	case !rec.ProcessedAt.IsZero():
		f[2] = daysSinceEpoch(rec.ProcessedAt)
	default:
		if t, ok := parseInvoiceDate(rec.InvoiceDate); ok {
			f[2] = daysSinceEpoch(t)
		} else {
			f[2] = daysSinceEpoch(now)
		}
	}
	return f
}
