package constants

// RiskTier is the canonical tier for a scored invoice.
type RiskTier string

// Stable values (store these exact strings in the archive).
const (
	RiskLow    RiskTier = "LOW"
	RiskMedium RiskTier = "MEDIUM"
	RiskHigh   RiskTier = "HIGH"
)

// Display labels and icons used by the HTTP and chat surfaces.
var (
	TierLabels = map[RiskTier]string{
		RiskLow:    "LOW RISK",
		RiskMedium: "MEDIUM RISK",
		RiskHigh:   "HIGH RISK",
	}
	TierIcons = map[RiskTier]string{
		RiskLow:    "🟢",
		RiskMedium: "🟡",
		RiskHigh:   "🔴",
	}
)

// Label returns the display label for a tier, falling back to the raw value.
func (t RiskTier) Label() string {
	if l, ok := TierLabels[t]; ok {
		return l
	}
	return string(t)
}

// Icon returns the display icon for a tier.
func (t RiskTier) Icon() string {
	if i, ok := TierIcons[t]; ok {
		return i
	}
	return ""
}
