package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/invoicelens/invoicelens/internal/archive"
	"github.com/invoicelens/invoicelens/internal/async"
	"github.com/invoicelens/invoicelens/internal/bankverify"
	"github.com/invoicelens/invoicelens/internal/common"
	"github.com/invoicelens/invoicelens/internal/compliance"
	"github.com/invoicelens/invoicelens/internal/dupdetect"
	"github.com/invoicelens/invoicelens/internal/export"
	"github.com/invoicelens/invoicelens/internal/extract"
	"github.com/invoicelens/invoicelens/internal/notify"
	"github.com/invoicelens/invoicelens/internal/ocr"
	"github.com/invoicelens/invoicelens/internal/pipeline"
	"github.com/invoicelens/invoicelens/internal/risk"
	"github.com/invoicelens/invoicelens/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("main.config_invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := archive.Open(ctx, cfg.Archive, logger)
	if err != nil {
		logger.Error("main.archive_open_failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("main.archive_ready", "driver", cfg.Archive.Driver)

	registry := compliance.NewClient(cfg.Compliance, nil, logger)
	verifier := bankverify.NewVerifier(cfg.Compliance, nil, logger)

	docStore := ocr.NewHTTPStore(cfg.OCR.StoreBaseURL, cfg.OCR.APIKey, nil, logger)
	detector := ocr.NewClient(ocr.Config{
		BaseURL:      cfg.OCR.BaseURL,
		APIKey:       cfg.OCR.APIKey,
		PollInterval: cfg.OCR.PollInterval,
		MaxWait:      cfg.OCR.MaxWait,
	}, nil, logger)
	extractor := extract.NewExtractor(docStore, detector, registry, logger)

	dupes := dupdetect.NewDetector(dupdetect.Config{
		Threshold:  cfg.Detector.Threshold,
		WindowDays: cfg.Detector.WindowDays,
	}, store, logger)

	thresholds := risk.Thresholds{High: cfg.Risk.HighThreshold, Medium: cfg.Risk.MediumThreshold}
	processor := pipeline.NewProcessor(extractor, registry, dupes, store, thresholds, logger)

	exporter := export.NewService(store, logger)
	srv := server.NewServer(processor, store, verifier, exporter, cfg.Server, logger)

	var queue *async.DeliveryQueue
	if cfg.Notify.BotToken != "" {
		bot := notify.NewTelegramClient(cfg.Notify.BotToken, nil, logger)
		queue = async.NewDeliveryQueue(bot, logger,
			async.WithWorkers(cfg.Notify.Workers),
			async.WithQueueSize(cfg.Notify.QueueSize),
			async.WithSendTimeout(cfg.Notify.SendTimeout))
		processor.SetAlertSink(notify.NewAlertDispatcher(queue, cfg.Notify.AlertChannel, logger))
		srv.SetWebhookHandler(server.NewWebhookHandler(processor, store, bot, queue, logger))
		logger.Info("main.notify_ready", "workers", cfg.Notify.Workers)
	} else {
		logger.Warn("main.notify_disabled", "reason", "TELEGRAM_TOKEN not set")
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("main.listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("main.serve_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("main.shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("main.http_shutdown_failed", "error", err)
	}
	if queue != nil {
		queue.Shutdown(shutdownCtx)
	}
	logger.Info("main.stopped")
}
