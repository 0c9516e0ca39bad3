// Package archive persists one analysis record per processed invoice
// and serves the history windows the duplicate detector and the
// recent-scans surface read from.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/invoicelens/invoicelens/internal/common"
	"github.com/invoicelens/invoicelens/internal/entity"
)

// keyPrefix partitions records by processing date.
const keyPrefix = "invoice-analysis"

// Store is the persistence contract for analysis records.
type Store interface {
	// Put writes one record and returns its storage key.
	Put(ctx context.Context, rec entity.AnalysisRecord) (string, error)
	// ListSince returns every record processed at or after since, in no
	// particular order.
	ListSince(ctx context.Context, since time.Time) ([]entity.AnalysisRecord, error)
	// ListRecent returns up to limit records processed at or after
	// since, newest first.
	ListRecent(ctx context.Context, since time.Time, limit int) ([]entity.AnalysisRecord, error)
	Close() error
}

// Open selects a driver from configuration.
func Open(ctx context.Context, cfg common.ArchiveConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return OpenPostgres(ctx, cfg, logger)
	case "sqlite":
		return OpenSQLite(ctx, cfg.DSN, logger)
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown archive driver %q", cfg.Driver), common.ErrInvalidInput)
	}
}

// RecordKey builds the date-partitioned key for a record:
// invoice-analysis/YYYY/MM/DD/<invoice_number>_<unix>.json. Records
// without an invoice number file under "unknown".
func RecordKey(rec entity.AnalysisRecord) string {
	ts := rec.ProcessedAt.UTC()
	num := rec.InvoiceNumber
	if num == "" {
		num = "unknown"
	}
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s_%d.json",
		keyPrefix, ts.Year(), int(ts.Month()), ts.Day(), num, ts.Unix())
}
