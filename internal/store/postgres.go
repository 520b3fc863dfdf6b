package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/permit-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wires an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	external_id  TEXT NOT NULL,
	source       TEXT NOT NULL,
	contact_name TEXT NOT NULL DEFAULT '',
	trade        TEXT NOT NULL DEFAULT 'General',
	address      TEXT NOT NULL DEFAULT '',
	zip          TEXT NOT NULL DEFAULT '',
	county       TEXT NOT NULL DEFAULT '',
	value        BIGINT NOT NULL DEFAULT 0,
	score        INTEGER NOT NULL DEFAULT 0,
	label        TEXT NOT NULL DEFAULT 'cold',
	status       TEXT NOT NULL DEFAULT 'new',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (source, external_id)
);

CREATE INDEX IF NOT EXISTS idx_leads_trade ON leads(trade);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score DESC);

CREATE TABLE IF NOT EXISTS source_health (
	id                TEXT PRIMARY KEY,
	source            TEXT NOT NULL,
	status            TEXT NOT NULL,
	checked_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	latency_ms        BIGINT,
	error             TEXT,
	records_available BIGINT,
	metadata          JSONB
);

CREATE INDEX IF NOT EXISTS idx_source_health_source ON source_health(source, checked_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// wrapTableErr converts an undefined-table failure into ErrMissingTable so
// callers can surface migration guidance.
func wrapTableErr(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P01" {
		return eris.Wrap(ErrMissingTable, op)
	}
	return eris.Wrap(err, op)
}

const leadColumns = `external_id, source, contact_name, trade, address, zip, county, value, score, label, status, created_at, updated_at`

// UpsertLeads writes the batch in one atomic multi-row statement keyed on
// (source, external_id). Conflicts overwrite the mutable fields and
// updated_at while preserving created_at.
func (s *PostgresStore) UpsertLeads(ctx context.Context, leads []model.Lead) (*UpsertResult, error) {
	if len(leads) == 0 {
		return &UpsertResult{}, nil
	}

	now := time.Now().UTC()
	var (
		placeholders []string
		args         []any
	)
	for i, l := range leads {
		base := i * 13
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
			base+8, base+9, base+10, base+11, base+12, base+13,
		))
		args = append(args,
			l.ExternalID, l.Source, l.ContactName, string(l.Trade), l.Address,
			l.Zip, l.County, l.Value, l.Score, string(l.Label), string(l.Status),
			now, now,
		)
	}

	query := fmt.Sprintf(`INSERT INTO leads (%s) VALUES %s
		ON CONFLICT (source, external_id) DO UPDATE SET
			contact_name = EXCLUDED.contact_name,
			trade        = EXCLUDED.trade,
			address      = EXCLUDED.address,
			zip          = EXCLUDED.zip,
			county       = EXCLUDED.county,
			value        = EXCLUDED.value,
			score        = EXCLUDED.score,
			label        = EXCLUDED.label,
			status       = EXCLUDED.status,
			updated_at   = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS inserted`,
		leadColumns, strings.Join(placeholders, ", "),
	)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapTableErr(err, "postgres: upsert leads")
	}
	defer rows.Close()

	result := &UpsertResult{}
	for rows.Next() {
		var inserted bool
		if err := rows.Scan(&inserted); err != nil {
			return nil, eris.Wrap(err, "postgres: scan upsert result")
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}
	return result, wrapTableErr(rows.Err(), "postgres: upsert leads iterate")
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error) {
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE true`, leadColumns)
	args := []any{}
	argIdx := 1

	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, filter.Source)
		argIdx++
	}
	if filter.Trade != "" {
		query += fmt.Sprintf(` AND trade = $%d`, argIdx)
		args = append(args, string(filter.Trade))
		argIdx++
	}
	if filter.MinScore > 0 {
		query += fmt.Sprintf(` AND score >= $%d`, argIdx)
		args = append(args, filter.MinScore)
		argIdx++
	}
	query += ` ORDER BY score DESC, updated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapTableErr(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		if err := rows.Scan(&l.ExternalID, &l.Source, &l.ContactName, &l.Trade,
			&l.Address, &l.Zip, &l.County, &l.Value, &l.Score, &l.Label,
			&l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) CountLeads(ctx context.Context, sourceKey string) (int, error) {
	var count int
	var err error
	if sourceKey == "" {
		err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads`).Scan(&count)
	} else {
		err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads WHERE source = $1`, sourceKey).Scan(&count)
	}
	if err != nil {
		return 0, wrapTableErr(err, "postgres: count leads")
	}
	return count, nil
}

func (s *PostgresStore) InsertHealthRecords(ctx context.Context, records []model.SourceHealthRecord) error {
	if len(records) == 0 {
		return nil
	}

	var (
		placeholders []string
		args         []any
	)
	for i, r := range records {
		id := r.ID
		if id == "" {
			id = uuid.New().String()
		}
		var metadata []byte
		if len(r.Metadata) > 0 {
			m, err := json.Marshal(r.Metadata)
			if err != nil {
				return eris.Wrap(err, "postgres: marshal health metadata")
			}
			metadata = m
		}
		base := i * 8
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args,
			id, r.Source, string(r.Status), r.CheckedAt,
			r.LatencyMs, r.Error, r.RecordsAvailable, metadata,
		)
	}

	query := fmt.Sprintf(`INSERT INTO source_health
		(id, source, status, checked_at, latency_ms, error, records_available, metadata)
		VALUES %s`, strings.Join(placeholders, ", "))

	_, err := s.pool.Exec(ctx, query, args...)
	return wrapTableErr(err, "postgres: insert health records")
}

func (s *PostgresStore) ListHealthRecords(ctx context.Context, sourceKey string, limit int) ([]model.SourceHealthRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, source, status, checked_at, latency_ms, error, records_available, metadata
	          FROM source_health`
	args := []any{}
	if sourceKey != "" {
		query += ` WHERE source = $1 ORDER BY checked_at DESC LIMIT $2`
		args = append(args, sourceKey, limit)
	} else {
		query += ` ORDER BY checked_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapTableErr(err, "postgres: list health records")
	}
	defer rows.Close()

	var records []model.SourceHealthRecord
	for rows.Next() {
		var r model.SourceHealthRecord
		var metadata []byte
		if err := rows.Scan(&r.ID, &r.Source, &r.Status, &r.CheckedAt,
			&r.LatencyMs, &r.Error, &r.RecordsAvailable, &metadata); err != nil {
			return nil, eris.Wrap(err, "postgres: scan health record")
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal health metadata")
			}
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list health records iterate")
}
