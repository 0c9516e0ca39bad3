// Package server exposes the HTTP surface: invoice submission, recent
// scans, bank verification, export, and the chat webhook.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/invoicelens/invoicelens/internal/archive"
	"github.com/invoicelens/invoicelens/internal/bankverify"
	"github.com/invoicelens/invoicelens/internal/common"
	"github.com/invoicelens/invoicelens/internal/pipeline"
)

// InvoiceProcessor runs one submission through the pipeline.
type InvoiceProcessor interface {
	Process(ctx context.Context, docBytes []byte) (pipeline.Verdict, error)
}

// AccountVerifier runs penny-less bank account checks and branch lookups.
type AccountVerifier interface {
	VerifyAccount(ctx context.Context, accountNumber, ifsc, expectedName string) (bankverify.Result, error)
	LookupIFSC(ctx context.Context, ifsc string) (bankverify.IFSCDetails, error)
}

// Exporter renders archived analyses as a workbook.
type Exporter interface {
	ExportAnalysesXLSX(ctx context.Context, since time.Time, limit int) ([]byte, error)
}

// Server wires the handlers to their collaborators.
type Server struct {
	processor InvoiceProcessor
	store     archive.Store
	verifier  AccountVerifier
	exporter  Exporter
	webhook   *WebhookHandler
	cfg       common.ServerConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewServer(
	processor InvoiceProcessor,
	store archive.Store,
	verifier AccountVerifier,
	exporter Exporter,
	cfg common.ServerConfig,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		processor: processor,
		store:     store,
		verifier:  verifier,
		exporter:  exporter,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// SetWebhookHandler attaches the chat webhook route.
func (s *Server) SetWebhookHandler(h *WebhookHandler) { s.webhook = h }

// Router builds the chi router for the API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/process-invoice", s.handleProcessInvoice)
	r.Get("/api/recent-scans", s.handleRecentScans)
	r.Post("/api/verify-bank-account", s.handleVerifyBankAccount)
	r.Get("/api/ifsc/{code}", s.handleLookupIFSC)
	r.Get("/api/export", s.handleExport)
	if s.webhook != nil {
		r.Post("/webhook/telegram", s.webhook.Handle)
	}
	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("server.encode_response_failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
