package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/permit-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local runs
// and tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	external_id  TEXT NOT NULL,
	source       TEXT NOT NULL,
	contact_name TEXT NOT NULL DEFAULT '',
	trade        TEXT NOT NULL DEFAULT 'General',
	address      TEXT NOT NULL DEFAULT '',
	zip          TEXT NOT NULL DEFAULT '',
	county       TEXT NOT NULL DEFAULT '',
	value        INTEGER NOT NULL DEFAULT 0,
	score        INTEGER NOT NULL DEFAULT 0,
	label        TEXT NOT NULL DEFAULT 'cold',
	status       TEXT NOT NULL DEFAULT 'new',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL,
	PRIMARY KEY (source, external_id)
);

CREATE INDEX IF NOT EXISTS idx_leads_trade ON leads(trade);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score DESC);

CREATE TABLE IF NOT EXISTS source_health (
	id                TEXT PRIMARY KEY,
	source            TEXT NOT NULL,
	status            TEXT NOT NULL,
	checked_at        DATETIME NOT NULL,
	latency_ms        INTEGER,
	error             TEXT,
	records_available INTEGER,
	metadata          TEXT
);

CREATE INDEX IF NOT EXISTS idx_source_health_source ON source_health(source, checked_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqliteTableErr(err error, op string) error {
	if err != nil && strings.Contains(err.Error(), "no such table") {
		return eris.Wrap(ErrMissingTable, op)
	}
	return eris.Wrap(err, op)
}

// UpsertLeads writes the batch inside one transaction; the insert/update
// split is derived from the row count before and after.
func (s *SQLiteStore) UpsertLeads(ctx context.Context, leads []model.Lead) (*UpsertResult, error) {
	if len(leads) == 0 {
		return &UpsertResult{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	var before int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&before); err != nil {
		return nil, sqliteTableErr(err, "sqlite: count before upsert")
	}

	now := time.Now().UTC()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO leads
		(external_id, source, contact_name, trade, address, zip, county, value, score, label, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source, external_id) DO UPDATE SET
			contact_name = excluded.contact_name,
			trade        = excluded.trade,
			address      = excluded.address,
			zip          = excluded.zip,
			county       = excluded.county,
			value        = excluded.value,
			score        = excluded.score,
			label        = excluded.label,
			status       = excluded.status,
			updated_at   = excluded.updated_at`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, l := range leads {
		if _, err := stmt.ExecContext(ctx,
			l.ExternalID, l.Source, l.ContactName, string(l.Trade), l.Address,
			l.Zip, l.County, l.Value, l.Score, string(l.Label), string(l.Status),
			now, now,
		); err != nil {
			return nil, eris.Wrapf(err, "sqlite: upsert lead %s/%s", l.Source, l.ExternalID)
		}
	}

	var after int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&after); err != nil {
		return nil, eris.Wrap(err, "sqlite: count after upsert")
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit upsert")
	}

	inserted := after - before
	return &UpsertResult{Inserted: inserted, Updated: len(leads) - inserted}, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error) {
	query := `SELECT external_id, source, contact_name, trade, address, zip, county, value, score, label, status, created_at, updated_at
	          FROM leads WHERE 1=1`
	args := []any{}

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	if filter.Trade != "" {
		query += ` AND trade = ?`
		args = append(args, string(filter.Trade))
	}
	if filter.MinScore > 0 {
		query += ` AND score >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY score DESC, updated_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqliteTableErr(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		if err := rows.Scan(&l.ExternalID, &l.Source, &l.ContactName, &l.Trade,
			&l.Address, &l.Zip, &l.County, &l.Value, &l.Score, &l.Label,
			&l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) CountLeads(ctx context.Context, sourceKey string) (int, error) {
	var count int
	var err error
	if sourceKey == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads WHERE source = ?`, sourceKey).Scan(&count)
	}
	if err != nil {
		return 0, sqliteTableErr(err, "sqlite: count leads")
	}
	return count, nil
}

func (s *SQLiteStore) InsertHealthRecords(ctx context.Context, records []model.SourceHealthRecord) error {
	if len(records) == 0 {
		return nil
	}

	var (
		placeholders []string
		args         []any
	)
	for _, r := range records {
		id := r.ID
		if id == "" {
			id = uuid.New().String()
		}
		var metadata any
		if len(r.Metadata) > 0 {
			m, err := json.Marshal(r.Metadata)
			if err != nil {
				return eris.Wrap(err, "sqlite: marshal health metadata")
			}
			metadata = string(m)
		}
		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			id, r.Source, string(r.Status), r.CheckedAt,
			r.LatencyMs, r.Error, r.RecordsAvailable, metadata,
		)
	}

	query := fmt.Sprintf(`INSERT INTO source_health
		(id, source, status, checked_at, latency_ms, error, records_available, metadata)
		VALUES %s`, strings.Join(placeholders, ", "))

	_, err := s.db.ExecContext(ctx, query, args...)
	return sqliteTableErr(err, "sqlite: insert health records")
}

func (s *SQLiteStore) ListHealthRecords(ctx context.Context, sourceKey string, limit int) ([]model.SourceHealthRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, source, status, checked_at, latency_ms, error, records_available, metadata
	          FROM source_health`
	args := []any{}
	if sourceKey != "" {
		query += ` WHERE source = ?`
		args = append(args, sourceKey)
	}
	query += ` ORDER BY checked_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqliteTableErr(err, "sqlite: list health records")
	}
	defer rows.Close() //nolint:errcheck

	var records []model.SourceHealthRecord
	for rows.Next() {
		var r model.SourceHealthRecord
		var metadata sql.NullString
		if err := rows.Scan(&r.ID, &r.Source, &r.Status, &r.CheckedAt,
			&r.LatencyMs, &r.Error, &r.RecordsAvailable, &metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan health record")
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &r.Metadata); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal health metadata")
			}
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list health records iterate")
}
