package notify

import (
	"context"
	"log/slog"

	"github.com/invoicelens/invoicelens/internal/async"
	"github.com/invoicelens/invoicelens/internal/pipeline"
)

// AlertDispatcher bridges the pipeline's alert hook onto the delivery
// queue. It satisfies pipeline.AlertSink.
type AlertDispatcher struct {
	queue        *async.DeliveryQueue
	alertChannel string
	logger       *slog.Logger
}

func NewAlertDispatcher(queue *async.DeliveryQueue, alertChannel string, logger *slog.Logger) *AlertDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertDispatcher{queue: queue, alertChannel: alertChannel, logger: logger}
}

// HighRiskAlert queues the alert-channel broadcast for a high-risk
// verdict. Without a configured channel it logs and drops.
func (d *AlertDispatcher) HighRiskAlert(v pipeline.Verdict) {
	if d.alertChannel == "" {
		d.logger.Warn("notify.alert.no_channel", "invoice_number", v.InvoiceNumber)
		return
	}
	_ = d.queue.Enqueue(context.Background(), async.Delivery{
		ChatID:    d.alertChannel,
		Text:      HighRiskAlertMessage(v),
		ParseMode: "Markdown",
	})
}
