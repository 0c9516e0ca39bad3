// Package notify delivers verdicts and fraud reports over the chat
// platform.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/invoicelens/invoicelens/internal/common"
	"github.com/invoicelens/invoicelens/internal/pipeline"
)

const defaultAPIBase = "https://api.telegram.org"

// TelegramClient posts messages through the bot API.
type TelegramClient struct {
	apiBase string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

func NewTelegramClient(token string, httpClient *http.Client, logger *slog.Logger) *TelegramClient {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TelegramClient{
		apiBase: defaultAPIBase,
		token:   token,
		http:    httpClient,
		logger:  logger,
	}
}

// SetAPIBase overrides the bot API host. Tests point this at a fake.
func (c *TelegramClient) SetAPIBase(base string) { c.apiBase = base }

// SendMessage posts one message to a chat. parseMode may be empty.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID, text, parseMode string) error {
	payload := map[string]string{"chat_id": chatID, "text": text}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	bs, err := json.Marshal(payload)
	if err != nil {
		return common.WrapError(err, "encoding message")
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		return common.WrapError(err, "building sendMessage request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return common.APIError("sendMessage failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return common.APIError(fmt.Sprintf("sendMessage returned %d", resp.StatusCode), nil)
	}
	c.logger.Debug("notify.sent", "chat_id", chatID, "bytes", len(text))
	return nil
}

// DownloadFile resolves a file ID to its path and fetches the bytes.
func (c *TelegramClient) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url := fmt.Sprintf("%s/bot%s/getFile?file_id=%s", c.apiBase, c.token, fileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, common.WrapError(err, "building getFile request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, common.APIError("getFile failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, common.APIError(fmt.Sprintf("getFile returned %d", resp.StatusCode), nil)
	}

	var meta struct {
		Result struct {
			FilePath string `json:"file_path"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, common.WrapError(err, "decoding getFile response")
	}
	if meta.Result.FilePath == "" {
		return nil, common.APIError("getFile returned no file path", nil)
	}

	fileURL := fmt.Sprintf("%s/file/bot%s/%s", c.apiBase, c.token, meta.Result.FilePath)
	fileReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, common.WrapError(err, "building file download request")
	}
	fileResp, err := c.http.Do(fileReq)
	if err != nil {
		return nil, common.APIError("file download failed", err)
	}
	defer fileResp.Body.Close()
	if fileResp.StatusCode != http.StatusOK {
		return nil, common.APIError(fmt.Sprintf("file download returned %d", fileResp.StatusCode), nil)
	}
	return io.ReadAll(fileResp.Body)
}

// VerdictMessage renders a scored verdict for chat delivery.
func VerdictMessage(v pipeline.Verdict) string {
	orNA := func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	}

	lines := []string{
		fmt.Sprintf("📄 *Invoice #%s*", orNA(v.InvoiceNumber)),
		fmt.Sprintf("🏢 Vendor: %s", orNA(v.VendorName)),
		fmt.Sprintf("💰 Amount: %s", v.Amount),
	}
	if v.InvoiceDate != "" {
		lines = append(lines, fmt.Sprintf("📅 Date: %s", v.InvoiceDate))
	}
	if v.VendorTaxID != "" {
		lines = append(lines, fmt.Sprintf("🆔 GSTIN: `%s`", v.VendorTaxID))
	} else {
		lines = append(lines, "❌ No GSTIN found")
	}

	lines = append(lines,
		fmt.Sprintf("\n%s *Fraud Risk: %s*", v.RiskIcon, v.RiskLevel),
		fmt.Sprintf("📈 Risk Score: %d/100", v.FraudScore))

	if len(v.RiskFactors) > 0 {
		lines = append(lines, "\n🚩 *Risk Factors:*")
		for _, reason := range v.RiskFactors {
			lines = append(lines, "  • "+reason)
		}
	}

	lines = append(lines, "\n💡 *Recommendations:*")
	for _, rec := range v.Recommendations {
		lines = append(lines, "  • "+rec)
	}
	return strings.Join(lines, "\n")
}

// HighRiskAlertMessage renders the alert-channel broadcast for a
// high-risk verdict.
func HighRiskAlertMessage(v pipeline.Verdict) string {
	orNA := func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	}
	var b strings.Builder
	b.WriteString("🚨 *HIGH RISK INVOICE DETECTED*\n\n")
	fmt.Fprintf(&b, "Invoice: %s\n", orNA(v.InvoiceNumber))
	fmt.Fprintf(&b, "Vendor: %s\n", orNA(v.VendorName))
	fmt.Fprintf(&b, "Amount: %s\n", v.Amount)
	fmt.Fprintf(&b, "Risk Score: %d/100\n\n", v.FraudScore)
	b.WriteString("⚠️ Immediate investigation required!")
	return b.String()
}

// FraudReport summarizes the current day's processed invoices.
type FraudReport struct {
	Total       int
	HighRisk    int
	MediumRisk  int
	LowRisk     int
	TotalAmount float64
}

// FraudReportMessage renders the daily summary.
func FraudReportMessage(r FraudReport) string {
	if r.Total == 0 {
		return "📊 No invoices processed today."
	}
	var b strings.Builder
	b.WriteString("📊 *Daily Fraud Report:*\n\n")
	fmt.Fprintf(&b, "Total invoices: %d\n", r.Total)
	fmt.Fprintf(&b, "💰 Total amount: %s\n", pipeline.FormatCurrency(strconv.FormatFloat(r.TotalAmount, 'f', 2, 64)))
	fmt.Fprintf(&b, "🔴 High risk: %d\n", r.HighRisk)
	fmt.Fprintf(&b, "🟡 Medium risk: %d\n", r.MediumRisk)
	fmt.Fprintf(&b, "🟢 Low risk: %d", r.LowRisk)
	return b.String()
}
