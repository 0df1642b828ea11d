// Package store persists fetched mail records in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tomarrell/mailsift/internal/gmail"
)

// SQLiteStore is the record store backing both the fetcher and the engine.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at the given path and runs
// migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS mail_records (
	id           TEXT PRIMARY KEY,
	sender       TEXT NOT NULL DEFAULT '',
	recipient    TEXT NOT NULL DEFAULT '',
	subject      TEXT NOT NULL DEFAULT '',
	body_snippet TEXT NOT NULL DEFAULT '',
	received_at  TEXT NOT NULL DEFAULT '',
	is_read      INTEGER NOT NULL DEFAULT 0,
	labels       TEXT NOT NULL DEFAULT '[]'
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertRecords inserts or overwrites records by ID. A re-fetch replaces
// the stored copy wholesale.
func (s *SQLiteStore) UpsertRecords(ctx context.Context, recs []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mail_records (id, sender, recipient, subject, body_snippet, received_at, is_read, labels)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			sender       = excluded.sender,
			recipient    = excluded.recipient,
			subject      = excluded.subject,
			body_snippet = excluded.body_snippet,
			received_at  = excluded.received_at,
			is_read      = excluded.is_read,
			labels       = excluded.labels
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range recs {
		labels, err := json.Marshal(nonNil(r.Labels))
		if err != nil {
			return fmt.Errorf("marshal labels for %s: %w", r.ID, err)
		}
		var received string
		if !r.ReceivedAt.IsZero() {
			received = r.ReceivedAt.UTC().Format(time.RFC3339)
		}
		_, err = stmt.ExecContext(ctx,
			string(r.ID), r.Sender, r.Recipient, r.Subject, r.BodySnippet,
			received, boolToInt(r.IsRead), string(labels),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListRecords returns every stored record in insertion-stable order.
func (s *SQLiteStore) ListRecords(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender, recipient, subject, body_snippet, received_at, is_read, labels
		FROM mail_records ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r          Record
			id         string
			received   string
			isRead     int
			labelsJSON string
		)
		if err := rows.Scan(&id, &r.Sender, &r.Recipient, &r.Subject,
			&r.BodySnippet, &received, &isRead, &labelsJSON); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.ID = gmail.MessageID(id)
		r.IsRead = isRead != 0
		if received != "" {
			if ts, parseErr := time.Parse(time.RFC3339, received); parseErr == nil {
				r.ReceivedAt = ts
			}
		}
		if labelsJSON != "" {
			if err := json.Unmarshal([]byte(labelsJSON), &r.Labels); err != nil {
				return nil, fmt.Errorf("decode labels for %s: %w", id, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRecord writes back the fields the engine mutates after a successful
// action, so a re-run of the same pass is a no-op.
func (s *SQLiteStore) UpdateRecord(
	ctx context.Context,
	id gmail.MessageID,
	isRead bool,
	labels []string,
) error {
	labelsJSON, err := json.Marshal(nonNil(labels))
	if err != nil {
		return fmt.Errorf("marshal labels for %s: %w", id, err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE mail_records SET is_read = ?, labels = ? WHERE id = ?`,
		boolToInt(isRead), string(labelsJSON), string(id),
	)
	if err != nil {
		return fmt.Errorf("update record %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update record %s: not found", id)
	}
	return nil
}

// DeleteRecord removes a record, used after a message is trashed remotely.
func (s *SQLiteStore) DeleteRecord(ctx context.Context, id gmail.MessageID) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM mail_records WHERE id = ?`, string(id)); err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mail_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Clear drops all records. The fetcher refreshes the table on each run.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM mail_records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nonNil(labels []string) []string {
	if labels == nil {
		return []string{}
	}
	return labels
}
