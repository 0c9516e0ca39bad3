package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/invoicelens/invoicelens/internal/pipeline"
)

func highRiskVerdict() pipeline.Verdict {
	return pipeline.Verdict{
		InvoiceNumber:   "UTL-2024-0042",
		VendorName:      "United Technolink Pvt Ltd",
		VendorTaxID:     "27AAPFU0939F1ZV",
		Amount:          "₹3,42,200.00",
		InvoiceDate:     "15-01-2026",
		FraudScore:      75,
		RiskLevel:       "HIGH RISK",
		RiskIcon:        "🔴",
		RiskFactors:     []string{"Missing GSTIN", "Potential duplicate detected (similarity: 98.2%)"},
		Recommendations: []string{"Manual verification required", "Contact vendor directly"},
		ProcessedAt:     time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestSendMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottok-abc/sendMessage" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewTelegramClient("tok-abc", srv.Client(), nil)
	c.SetAPIBase(srv.URL)

	if err := c.SendMessage(context.Background(), "chat-9", "hello", "Markdown"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if got["chat_id"] != "chat-9" || got["text"] != "hello" || got["parse_mode"] != "Markdown" {
		t.Errorf("payload = %v", got)
	}
}

func TestSendMessageNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewTelegramClient("tok", srv.Client(), nil)
	c.SetAPIBase(srv.URL)
	if err := c.SendMessage(context.Background(), "chat", "x", ""); err == nil {
		t.Error("expected error on non-200")
	}
}

func TestVerdictMessage(t *testing.T) {
	msg := VerdictMessage(highRiskVerdict())

	for _, want := range []string{
		"📄 *Invoice #UTL-2024-0042*",
		"💰 Amount: ₹3,42,200.00",
		"🆔 GSTIN: `27AAPFU0939F1ZV`",
		"🔴 *Fraud Risk: HIGH RISK*",
		"📈 Risk Score: 75/100",
		"  • Missing GSTIN",
		"  • Manual verification required",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestVerdictMessageWithoutTaxID(t *testing.T) {
	v := highRiskVerdict()
	v.VendorTaxID = ""
	msg := VerdictMessage(v)
	if !strings.Contains(msg, "❌ No GSTIN found") {
		t.Errorf("message missing no-GSTIN marker:\n%s", msg)
	}
}

func TestFraudReportMessage(t *testing.T) {
	if got := FraudReportMessage(FraudReport{}); got != "📊 No invoices processed today." {
		t.Errorf("empty report = %q", got)
	}
	msg := FraudReportMessage(FraudReport{Total: 7, HighRisk: 2, MediumRisk: 1, LowRisk: 4, TotalAmount: 342200})
	for _, want := range []string{"Total invoices: 7", "💰 Total amount: ₹3,42,200.00", "🔴 High risk: 2", "🟢 Low risk: 4"} {
		if !strings.Contains(msg, want) {
			t.Errorf("report missing %q:\n%s", want, msg)
		}
	}
}
