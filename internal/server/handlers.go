package server

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/invoicelens/invoicelens/constants"
	"github.com/invoicelens/invoicelens/internal/common"
	"github.com/invoicelens/invoicelens/internal/pipeline"
)

const (
	recentScanWindowDays = 7
	recentScanMaxLimit   = 50
	recentScanDefault    = 10
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   s.now().UTC().Format(time.RFC3339),
	})
}

// handleProcessInvoice accepts a multipart PDF upload under the "file"
// field and returns the scored verdict. Malformed input rejects before
// the pipeline runs.
func (s *Server) handleProcessInvoice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "expected multipart upload with a file field")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	ext := constants.NormalizeExt(filepath.Ext(header.Filename))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		s.writeError(w, http.StatusBadRequest, "only PDF invoices are accepted")
		return
	}

	docBytes, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}
	if len(docBytes) == 0 {
		s.writeError(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	verdict, err := s.processor.Process(r.Context(), docBytes)
	if err != nil {
		s.logger.Error("server.process_failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "invoice processing failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": verdict})
}

// scanView is the dashboard row shape.
type scanView struct {
	ID            string   `json:"id"`
	InvoiceNumber string   `json:"invoiceNumber"`
	VendorName    string   `json:"vendorName"`
	Amount        string   `json:"amount"`
	Date          string   `json:"date"`
	FraudScore    int      `json:"fraudScore"`
	RiskLevel     string   `json:"riskLevel"`
	ProcessedAt   string   `json:"processedAt"`
	FraudReasons  []string `json:"fraudReasons"`
}

func (s *Server) handleRecentScans(w http.ResponseWriter, r *http.Request) {
	limit := recentScanDefault
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > recentScanMaxLimit {
		limit = recentScanMaxLimit
	}

	since := s.now().AddDate(0, 0, -recentScanWindowDays)
	recs, err := s.store.ListRecent(r.Context(), since, limit)
	if err != nil {
		s.logger.Error("server.recent_scans_failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not load recent scans")
		return
	}

	scans := make([]scanView, 0, len(recs))
	var high, medium, low int
	for _, rec := range recs {
		switch rec.RiskLevel {
		case constants.RiskHigh:
			high++
		case constants.RiskMedium:
			medium++
		default:
			low++
		}
		orNA := func(v string) string {
			if v == "" {
				return "N/A"
			}
			return v
		}
		scans = append(scans, scanView{
			ID:            scanID(rec.InvoiceNumber, rec.ProcessedAt),
			InvoiceNumber: orNA(rec.InvoiceNumber),
			VendorName:    orNA(rec.VendorName),
			Amount:        pipeline.FormatCurrency(rec.Amount),
			Date:          orNA(rec.InvoiceDate),
			FraudScore:    rec.FraudScore,
			RiskLevel:     string(rec.RiskLevel),
			ProcessedAt:   rec.ProcessedAt.UTC().Format(time.RFC3339),
			FraudReasons:  rec.FraudReasons,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"scans": scans,
			"summary": map[string]int{
				"total":      len(scans),
				"highRisk":   high,
				"mediumRisk": medium,
				"lowRisk":    low,
			},
		},
	})
}

func scanID(invoiceNumber string, processedAt time.Time) string {
	num := invoiceNumber
	if num == "" {
		num = "unknown"
	}
	return num + "_" + strconv.FormatInt(processedAt.Unix(), 10)
}

type bankVerifyRequest struct {
	AccountNumber     string `json:"account_number"`
	IFSCCode          string `json:"ifsc_code"`
	AccountHolderName string `json:"account_holder_name"`
}

func (s *Server) handleVerifyBankAccount(w http.ResponseWriter, r *http.Request) {
	var req bankVerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.AccountNumber = strings.TrimSpace(req.AccountNumber)
	req.IFSCCode = strings.ToUpper(strings.TrimSpace(req.IFSCCode))
	if req.AccountNumber == "" || req.IFSCCode == "" {
		s.writeError(w, http.StatusBadRequest, "account_number and ifsc_code are required")
		return
	}

	res, err := s.verifier.VerifyAccount(r.Context(), req.AccountNumber, req.IFSCCode, strings.TrimSpace(req.AccountHolderName))
	if err != nil {
		if res.Status == constants.BankInvalidDetails {
			s.writeError(w, http.StatusBadRequest, "invalid account details or IFSC code")
			return
		}
		s.logger.Error("server.bank_verify_failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "bank verification unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": res})
}

func (s *Server) handleLookupIFSC(w http.ResponseWriter, r *http.Request) {
	details, err := s.verifier.LookupIFSC(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		switch common.CodeOf(err) {
		case constants.CodeInvalidFormat:
			s.writeError(w, http.StatusBadRequest, "malformed IFSC code")
		case constants.CodeNotFound:
			s.writeError(w, http.StatusNotFound, "IFSC code not found")
		default:
			s.logger.Error("server.ifsc_lookup_failed", "error", err)
			s.writeError(w, http.StatusBadGateway, "IFSC lookup unavailable")
		}
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": details})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	since := s.now().AddDate(0, 0, -recentScanWindowDays)
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		since = s.now().AddDate(0, 0, -n)
	}

	data, err := s.exporter.ExportAnalysesXLSX(r.Context(), since, 0)
	if err != nil {
		s.logger.Error("server.export_failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	filename := "invoice-analyses-" + s.now().UTC().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("server.export_write_failed", "error", err)
	}
}
