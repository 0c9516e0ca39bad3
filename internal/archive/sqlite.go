package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/invoicelens/invoicelens/internal/common"
	"github.com/invoicelens/invoicelens/internal/entity"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS invoice_analysis (
	record_key   TEXT PRIMARY KEY,
	processed_at TEXT NOT NULL,
	record       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invoice_analysis_processed_at
	ON invoice_analysis (processed_at);
`

// sqliteTimeLayout keeps fractional seconds fixed-width so lexicographic
// comparison and ORDER BY stay monotonic. RFC3339Nano trims trailing
// zeros and breaks both.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore persists records in a single-file database. DSN
// ":memory:" gives an ephemeral store.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func OpenSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, common.WrapError(err, "opening sqlite archive")
	}
	// A single writer avoids SQLITE_BUSY under concurrent submissions.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, common.WrapError(err, "initializing sqlite archive schema")
	}
	logger.Info("archive.sqlite.open", "dsn", dsn)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, rec entity.AnalysisRecord) (string, error) {
	key := RecordKey(rec)
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", common.WrapError(err, "encoding analysis record")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO invoice_analysis (record_key, processed_at, record) VALUES (?, ?, ?)
		 ON CONFLICT(record_key) DO UPDATE SET record = excluded.record`,
		key, rec.ProcessedAt.UTC().Format(sqliteTimeLayout), string(raw))
	if err != nil {
		return "", common.WrapError(err, "writing analysis record")
	}
	return key, nil
}

func (s *SQLiteStore) ListSince(ctx context.Context, since time.Time) ([]entity.AnalysisRecord, error) {
	return s.list(ctx, since, 0, false)
}

func (s *SQLiteStore) ListRecent(ctx context.Context, since time.Time, limit int) ([]entity.AnalysisRecord, error) {
	return s.list(ctx, since, limit, true)
}

func (s *SQLiteStore) list(ctx context.Context, since time.Time, limit int, newestFirst bool) ([]entity.AnalysisRecord, error) {
	q := `SELECT record_key, record FROM invoice_analysis WHERE processed_at >= ?`
	if newestFirst {
		q += ` ORDER BY processed_at DESC`
	}
	args := []any{since.UTC().Format(sqliteTimeLayout)}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, common.WrapError(err, "listing analysis records")
	}
	defer rows.Close()

	var out []entity.AnalysisRecord
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, common.WrapError(err, "scanning analysis record")
		}
		rec, err := decodeRecord([]byte(raw))
		if err != nil {
			s.logger.Warn("archive.record.invalid", "key", key, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
