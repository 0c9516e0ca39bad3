package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/invoicelens/invoicelens/constants"
	"github.com/invoicelens/invoicelens/internal/archive"
	"github.com/invoicelens/invoicelens/internal/async"
	"github.com/invoicelens/invoicelens/internal/entity"
	"github.com/invoicelens/invoicelens/internal/pipeline"
)

type captureSender struct {
	mu   sync.Mutex
	sent []async.Delivery
}

func (c *captureSender) SendMessage(_ context.Context, chatID, text, parseMode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, async.Delivery{ChatID: chatID, Text: text, ParseMode: parseMode})
	return nil
}

func (c *captureSender) deliveries() []async.Delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]async.Delivery, len(c.sent))
	copy(out, c.sent)
	return out
}

type fakeFetcher struct {
	data []byte
}

func (f *fakeFetcher) DownloadFile(_ context.Context, _ string) ([]byte, error) {
	return f.data, nil
}

func drainQueue(t *testing.T, q *async.DeliveryQueue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q.Shutdown(ctx)
}

func postUpdate(t *testing.T, h *WebhookHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestWebhookFraudReport(t *testing.T) {
	store := archive.NewMemoryStore()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	records := []entity.AnalysisRecord{
		{InvoiceNumber: "INV-1", Amount: "300000.00", RiskLevel: constants.RiskHigh, ProcessedAt: now.Add(-time.Hour)},
		{InvoiceNumber: "INV-2", Amount: "42200.00", RiskLevel: constants.RiskLow, ProcessedAt: now.Add(-2 * time.Hour)},
		// Yesterday evening: inside a trailing-24h window but not today.
		{InvoiceNumber: "INV-STALE", Amount: "9999.00", RiskLevel: constants.RiskLow, ProcessedAt: now.Add(-13 * time.Hour)},
	}
	for _, rec := range records {
		if _, err := store.Put(context.Background(), rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	sender := &captureSender{}
	queue := async.NewDeliveryQueue(sender, nil, async.WithWorkers(1))
	h := NewWebhookHandler(&fakeProcessor{}, store, &fakeFetcher{}, queue, nil)
	h.now = func() time.Time { return now }

	rec := postUpdate(t, h, `{"message":{"chat":{"id":42},"text":"/fraud_report"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	drainQueue(t, queue)

	sent := sender.deliveries()
	if len(sent) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(sent))
	}
	if sent[0].ChatID != "42" {
		t.Errorf("chat id = %q", sent[0].ChatID)
	}
	for _, want := range []string{"Total invoices: 2", "High risk: 1", "Total amount: ₹3,42,200.00"} {
		if !strings.Contains(sent[0].Text, want) {
			t.Errorf("report missing %q:\n%s", want, sent[0].Text)
		}
	}
	if strings.Contains(sent[0].Text, "Total invoices: 3") {
		t.Errorf("yesterday's record leaked into today's report:\n%s", sent[0].Text)
	}
}

func TestWebhookRejectsNonPDFDocument(t *testing.T) {
	sender := &captureSender{}
	queue := async.NewDeliveryQueue(sender, nil, async.WithWorkers(1))
	h := NewWebhookHandler(&fakeProcessor{}, archive.NewMemoryStore(), &fakeFetcher{}, queue, nil)

	rec := postUpdate(t, h, `{"message":{"chat":{"id":7},"document":{"file_id":"f1","mime_type":"image/png"}}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	drainQueue(t, queue)

	sent := sender.deliveries()
	if len(sent) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(sent))
	}
	if !strings.Contains(sent[0].Text, "Please send a PDF invoice") {
		t.Errorf("reply = %q", sent[0].Text)
	}
}

func TestWebhookProcessesPDFDocument(t *testing.T) {
	proc := &fakeProcessor{verdict: pipeline.Verdict{
		InvoiceNumber:   "UTL-0042",
		Amount:          "₹3,42,200.00",
		RiskLevel:       "LOW RISK",
		RiskIcon:        "✅",
		Recommendations: []string{"Invoice appears legitimate"},
	}}
	sender := &captureSender{}
	queue := async.NewDeliveryQueue(sender, nil, async.WithWorkers(1))
	h := NewWebhookHandler(proc, archive.NewMemoryStore(), &fakeFetcher{data: []byte("%PDF-1.4")}, queue, nil)

	rec := postUpdate(t, h, `{"message":{"chat":{"id":9},"document":{"file_id":"f2","mime_type":"application/pdf"}}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	// Processing runs off the request path; wait for both the ack and
	// the verdict message to land.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(sender.deliveries()) >= 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	drainQueue(t, queue)

	sent := sender.deliveries()
	if len(sent) < 2 {
		t.Fatalf("deliveries = %d, want ack + verdict", len(sent))
	}
	last := sent[len(sent)-1]
	if !strings.Contains(last.Text, "UTL-0042") {
		t.Errorf("verdict message = %q", last.Text)
	}
	if string(proc.gotDoc) != "%PDF-1.4" {
		t.Errorf("processor received %q", proc.gotDoc)
	}
}

func TestWebhookIgnoresMalformedUpdate(t *testing.T) {
	queue := async.NewDeliveryQueue(&captureSender{}, nil, async.WithWorkers(1))
	h := NewWebhookHandler(&fakeProcessor{}, archive.NewMemoryStore(), &fakeFetcher{}, queue, nil)

	rec := postUpdate(t, h, `{not json`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even for garbage", rec.Code)
	}
	drainQueue(t, queue)
}
