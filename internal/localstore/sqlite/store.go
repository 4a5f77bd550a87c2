package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"libreserve/realtime-core/internal/localstore"
	"libreserve/realtime-core/internal/models"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS notifications (
	user_id      TEXT NOT NULL,
	position     INTEGER NOT NULL,
	id           TEXT NOT NULL,
	type         TEXT NOT NULL,
	title        TEXT NOT NULL,
	message      TEXT NOT NULL,
	timestamp    TEXT NOT NULL,
	read         INTEGER NOT NULL,
	action_url   TEXT NOT NULL DEFAULT '',
	action_text  TEXT NOT NULL DEFAULT '',
	related_kind TEXT NOT NULL DEFAULT '',
	related_id   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (user_id, id)
);
CREATE TABLE IF NOT EXISTS pending_actions (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	type       TEXT NOT NULL,
	action     TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at TEXT NOT NULL,
	attempts   INTEGER NOT NULL DEFAULT 0,
	status     TEXT NOT NULL DEFAULT 'pending'
);
CREATE TABLE IF NOT EXISTS cache_entries (
	type       TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       BLOB NOT NULL,
	cached_at  TEXT NOT NULL,
	expires_at TEXT NOT NULL,
	PRIMARY KEY (type, id)
);
`

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure local store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create local store schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, title, message, timestamp, read, action_url, action_text, related_kind, related_id
		FROM notifications
		WHERE user_id = ?
		ORDER BY position ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var log []models.Notification
	for rows.Next() {
		var n models.Notification
		var ts string
		var read int
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &ts, &read, &n.ActionURL, &n.ActionText, &n.RelatedKind, &n.RelatedID); err != nil {
			return nil, err
		}
		n.Timestamp = parseTime(ts)
		n.Read = read != 0
		log = append(log, n)
	}
	return log, rows.Err()
}

func (s *Store) SaveNotifications(ctx context.Context, userID string, log []models.Notification) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE user_id = ?`, userID); err != nil {
		return err
	}
	for position, n := range log {
		read := 0
		if n.Read {
			read = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notifications (user_id, position, id, type, title, message, timestamp, read, action_url, action_text, related_kind, related_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, userID, position, n.ID, n.Type, n.Title, n.Message, formatTime(n.Timestamp), read, n.ActionURL, n.ActionText, n.RelatedKind, n.RelatedID)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) InsertAction(ctx context.Context, action models.PendingAction) error {
	data, err := json.Marshal(action.Data)
	if err != nil {
		return err
	}
	status := action.Status
	if status == "" {
		status = models.ActionStatusPending
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pending_actions (id, type, action, data, created_at, attempts, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, action.ID, action.Type, action.Action, string(data), formatTime(action.CreatedAt), action.Attempts, status)
	return err
}

func (s *Store) ListActions(ctx context.Context, status string) ([]models.PendingAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, action, data, created_at, attempts, status
		FROM pending_actions
		WHERE status = ?
		ORDER BY seq ASC
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []models.PendingAction
	for rows.Next() {
		var action models.PendingAction
		var data, createdAt string
		if err := rows.Scan(&action.ID, &action.Type, &action.Action, &data, &createdAt, &action.Attempts, &action.Status); err != nil {
			return nil, err
		}
		if data != "" {
			if err := json.Unmarshal([]byte(data), &action.Data); err != nil {
				return nil, err
			}
		}
		action.CreatedAt = parseTime(createdAt)
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

func (s *Store) CountActions(ctx context.Context, status string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_actions WHERE status = ?`, status).Scan(&count)
	return count, err
}

func (s *Store) UpdateAction(ctx context.Context, id string, attempts int, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE pending_actions SET attempts = ?, status = ? WHERE id = ?
	`, attempts, status, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return localstore.ErrActionNotFound
	}
	return nil
}

func (s *Store) DeleteAction(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_actions WHERE id = ?`, id)
	return err
}

func (s *Store) PutCacheEntry(ctx context.Context, entry models.CacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (type, id, data, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (type, id) DO UPDATE SET data = excluded.data, cached_at = excluded.cached_at, expires_at = excluded.expires_at
	`, entry.Type, entry.ID, entry.Data, formatTime(entry.CachedAt), formatTime(entry.ExpiresAt))
	return err
}

func (s *Store) ListCacheEntries(ctx context.Context, entryType string) ([]models.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, id, data, cached_at, expires_at
		FROM cache_entries
		WHERE type = ?
		ORDER BY cached_at DESC
	`, entryType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.CacheEntry
	for rows.Next() {
		var entry models.CacheEntry
		var cachedAt, expiresAt string
		if err := rows.Scan(&entry.Type, &entry.ID, &entry.Data, &cachedAt, &expiresAt); err != nil {
			return nil, err
		}
		entry.CachedAt = parseTime(cachedAt)
		entry.ExpiresAt = parseTime(expiresAt)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) DeleteExpiredEntries(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
