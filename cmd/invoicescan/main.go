package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/invoicelens/invoicelens/internal/archive"
	"github.com/invoicelens/invoicelens/internal/common"
	"github.com/invoicelens/invoicelens/internal/compliance"
	"github.com/invoicelens/invoicelens/internal/dupdetect"
	"github.com/invoicelens/invoicelens/internal/export"
	"github.com/invoicelens/invoicelens/internal/extract"
	"github.com/invoicelens/invoicelens/internal/ocr"
	"github.com/invoicelens/invoicelens/internal/pipeline"
	"github.com/invoicelens/invoicelens/internal/risk"
)

// invoicescan runs one PDF through the full pipeline from the command
// line and prints the verdict, without the HTTP server or the bot.
func main() {
	var (
		inmem      = flag.Bool("inmem", false, "use an in-memory archive instead of the configured one")
		asJSON     = flag.Bool("json", false, "print the raw verdict JSON")
		exportPath = flag.String("export", "", "also write recent analyses to this XLSX file")
		timeout    = flag.Duration("timeout", 3*time.Minute, "overall processing deadline")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: invoicescan [-inmem] [-json] <invoice.pdf>")
		os.Exit(2)
	}
	docBytes, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	if cfg.Compliance.APIKey == "" || cfg.Compliance.APISecret == "" {
		fmt.Fprintln(os.Stderr, "SANDBOX_API_KEY and SANDBOX_API_SECRET are required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	archiveCfg := cfg.Archive
	if *inmem {
		archiveCfg.Driver = "sqlite"
		archiveCfg.DSN = ":memory:"
	}
	store, err := archive.Open(ctx, archiveCfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open archive: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	registry := compliance.NewClient(cfg.Compliance, nil, logger)
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

	verdict, err := processor.Process(ctx, docBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "process: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(verdict); err != nil {
			fmt.Fprintf(os.Stderr, "encode verdict: %v\n", err)
			os.Exit(1)
		}
	} else {
		printVerdict(verdict)
	}

	if *exportPath != "" {
		svc := export.NewService(store, logger)
		data, err := svc.ExportAnalysesXLSX(ctx, time.Now().AddDate(0, 0, -7), 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "export: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*exportPath, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", *exportPath, err)
			os.Exit(1)
		}
		fmt.Printf("Exported recent analyses to %s\n", *exportPath)
	}
}

func printVerdict(v pipeline.Verdict) {
	orNA := func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	}
	fmt.Printf("Invoice:    %s\n", orNA(v.InvoiceNumber))
	fmt.Printf("Vendor:     %s\n", orNA(v.VendorName))
	fmt.Printf("GSTIN:      %s\n", orNA(v.VendorTaxID))
	fmt.Printf("Amount:     %s\n", v.Amount)
	fmt.Printf("Date:       %s\n", orNA(v.InvoiceDate))
	fmt.Printf("Risk:       %s %s (score %d/100)\n", v.RiskIcon, v.RiskLevel, v.FraudScore)
	if v.Duplicate.IsDuplicate {
		fmt.Printf("Duplicate:  %.1f%% similar to a recent invoice\n", v.Duplicate.SimilarityScore)
	}
	if len(v.RiskFactors) > 0 {
		fmt.Println("Risk factors:")
		for _, reason := range v.RiskFactors {
			fmt.Printf("  - %s\n", reason)
		}
	}
	fmt.Println("Recommendations:")
	for _, rec := range v.Recommendations {
		fmt.Printf("  - %s\n", rec)
	}
}
