package archive

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/invoicelens/invoicelens/internal/common"
	"github.com/invoicelens/invoicelens/internal/entity"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS invoice_analysis (
	record_key   TEXT PRIMARY KEY,
	processed_at TIMESTAMPTZ NOT NULL,
	record       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_invoice_analysis_processed_at
	ON invoice_analysis (processed_at);
`

// PostgresStore persists records in a jsonb column behind a pgx pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func OpenPostgres(ctx context.Context, cfg common.ArchiveConfig, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("archive.postgres.connect", "dsn", cfg.DSN)

	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, common.WrapError(err, "parsing archive DSN")
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "invoicelens"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
	}

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, common.WrapError(err, "connecting to archive database")
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, common.WrapError(err, "initializing archive schema")
	}

	logger.Info("archive.postgres.connected")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

func (p *PostgresStore) Put(ctx context.Context, rec entity.AnalysisRecord) (string, error) {
	key := RecordKey(rec)
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", common.WrapError(err, "encoding analysis record")
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO invoice_analysis (record_key, processed_at, record) VALUES ($1, $2, $3)
		 ON CONFLICT (record_key) DO UPDATE SET record = EXCLUDED.record`,
		key, rec.ProcessedAt.UTC(), raw)
	if err != nil {
		return "", common.WrapError(err, "writing analysis record")
	}
	return key, nil
}

func (p *PostgresStore) ListSince(ctx context.Context, since time.Time) ([]entity.AnalysisRecord, error) {
	return p.list(ctx, since, 0, false)
}

func (p *PostgresStore) ListRecent(ctx context.Context, since time.Time, limit int) ([]entity.AnalysisRecord, error) {
	return p.list(ctx, since, limit, true)
}

func (p *PostgresStore) list(ctx context.Context, since time.Time, limit int, newestFirst bool) ([]entity.AnalysisRecord, error) {
	q := `SELECT record_key, record FROM invoice_analysis WHERE processed_at >= $1`
	if newestFirst {
		q += ` ORDER BY processed_at DESC`
	}
	args := []any{since.UTC()}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, common.WrapError(err, "listing analysis records")
	}
	defer rows.Close()

	var out []entity.AnalysisRecord
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, common.WrapError(err, "scanning analysis record")
		}
		rec, err := decodeRecord(raw)
		if err != nil {
			p.logger.Warn("archive.record.invalid", "key", key, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
