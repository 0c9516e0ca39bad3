package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/invoicelens/invoicelens/constants"
	"github.com/invoicelens/invoicelens/internal/archive"
	"github.com/invoicelens/invoicelens/internal/common"
	"github.com/invoicelens/invoicelens/internal/async"
	"github.com/invoicelens/invoicelens/internal/notify"
)

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

// DocumentFetcher downloads a chat attachment by its platform file ID.
type DocumentFetcher interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// WebhookHandler serves bot updates: PDF documents enter the pipeline,
// /fraud_report replies with the day's summary.
type WebhookHandler struct {
	processor InvoiceProcessor
	store     archive.Store
	fetcher   DocumentFetcher
	queue     *async.DeliveryQueue
	logger    *slog.Logger
	now       func() time.Time
}

func NewWebhookHandler(
	processor InvoiceProcessor,
	store archive.Store,
	fetcher DocumentFetcher,
	queue *async.DeliveryQueue,
	logger *slog.Logger,
) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		processor: processor,
		store:     store,
		fetcher:   fetcher,
		queue:     queue,
		logger:    logger,
		now:       time.Now,
	}
}

type update struct {
	Message struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text     string `json:"text"`
		Document *struct {
			FileID   string `json:"file_id"`
			MimeType string `json:"mime_type"`
		} `json:"document"`
	} `json:"message"`
}

// Handle always answers 200; the platform retries non-2xx responses
// and a retry storm helps nobody.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var u update
	if err := decodeJSON(r, &u); err != nil {
		h.logger.Warn("webhook.decode_failed", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	chatID := strconv.FormatInt(u.Message.Chat.ID, 10)
	if u.Message.Chat.ID == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	switch {
	case strings.HasPrefix(u.Message.Text, "/fraud_report"):
		h.sendFraudReport(r.Context(), chatID)
	case u.Message.Document != nil:
		if u.Message.Document.MimeType != "application/pdf" {
			h.reply(chatID, "Please send a PDF invoice.", "")
			break
		}
		fileID := u.Message.Document.FileID
		h.reply(chatID, "🔄 Processing invoice... Please wait.", "")
		go h.processDocument(fileID, chatID)
	default:
		h.reply(chatID, "Send a PDF invoice to process or /fraud_report to view today's flagged invoices.", "")
	}
	w.WriteHeader(http.StatusOK)
}

// processDocument runs off the webhook request path; the platform has
// already been answered.
func (h *WebhookHandler) processDocument(fileID, chatID string) {
	ctx, cancel := common.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	docBytes, err := h.fetcher.DownloadFile(ctx, fileID)
	if err != nil {
		h.logger.Error("webhook.download_failed", "file_id", fileID, "error", err)
		h.reply(chatID, "❌ Error processing invoice.\n\nCould not download the document.", "")
		return
	}

	verdict, err := h.processor.Process(ctx, docBytes)
	if err != nil {
		h.logger.Error("webhook.process_failed", "file_id", fileID, "error", err)
		h.reply(chatID, "❌ Error processing invoice.", "")
		return
	}
	h.reply(chatID, notify.VerdictMessage(verdict), "Markdown")
}

func (h *WebhookHandler) sendFraudReport(ctx context.Context, chatID string) {
	now := h.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	recs, err := h.store.ListRecent(ctx, midnight, 0)
	if err != nil {
		h.logger.Error("webhook.report_failed", "error", err)
		h.reply(chatID, "❌ Could not load today's report.", "")
		return
	}

	report := notify.FraudReport{Total: len(recs)}
	for _, rec := range recs {
		switch rec.RiskLevel {
		case constants.RiskHigh:
			report.HighRisk++
		case constants.RiskMedium:
			report.MediumRisk++
		default:
			report.LowRisk++
		}
		if v, err := strconv.ParseFloat(rec.Amount, 64); err == nil {
			report.TotalAmount += v
		}
	}
	h.reply(chatID, notify.FraudReportMessage(report), "Markdown")
}

func (h *WebhookHandler) reply(chatID, text, parseMode string) {
	_ = h.queue.Enqueue(context.Background(), async.Delivery{
		ChatID:    chatID,
		Text:      text,
		ParseMode: parseMode,
	})
}
