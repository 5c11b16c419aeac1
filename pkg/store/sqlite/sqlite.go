// Package sqlite implements the history store on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"concierge/pkg/store"
)

// Store handles SQLite-backed identity and history persistence.
type Store struct {
	db           *sql.DB
	historyLimit int
	log          *slog.Logger
}

var _ store.Store = (*Store)(nil)

// New opens (creating if needed) the database at dbPath and bootstraps
// the schema. An empty dbPath defaults to ./data/concierge.db.
func New(ctx context.Context, dbPath string, historyLimit int, log *slog.Logger) (*Store, error) {
	if dbPath == "" {
		dbPath = "./data/concierge.db"
	}
	if historyLimit <= 0 {
		return nil, fmt.Errorf("history limit must be positive, got %d", historyLimit)
	}
	if log == nil {
		log = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	s := &Store{
		db:           db,
		historyLimit: historyLimit,
		log:          log.With("component", "store.sqlite"),
	}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		phone_number TEXT PRIMARY KEY,
		pinecone_namespace TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversation_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_phone_number TEXT NOT NULL,
		sender TEXT NOT NULL CHECK (sender IN ('user', 'bot')),
		message TEXT NOT NULL,
		timestamp TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_history_phone_time
		ON conversation_history (user_phone_number, timestamp);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// LookupNamespace returns the namespace provisioned for a phone number.
func (s *Store) LookupNamespace(ctx context.Context, phoneNumber string) (string, error) {
	var namespace string
	err := s.db.QueryRowContext(ctx,
		`SELECT pinecone_namespace FROM users WHERE phone_number = ?`,
		phoneNumber,
	).Scan(&namespace)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("lookup namespace: %w", err)
	}

	return namespace, nil
}

// RecentHistory returns the newest entries oldest-first. The underlying
// query fetches newest-first with a limit, then reverses for presentation.
func (s *Store) RecentHistory(ctx context.Context, phoneNumber string, limit int) ([]store.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sender, message FROM conversation_history
		 WHERE user_phone_number = ?
		 ORDER BY timestamp DESC, id DESC
		 LIMIT ?`,
		phoneNumber, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer rows.Close()

	var newestFirst []store.Entry
	for rows.Next() {
		var entry store.Entry
		if err := rows.Scan(&entry.Sender, &entry.Message); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		newestFirst = append(newestFirst, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	oldestFirst := make([]store.Entry, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		oldestFirst = append(oldestFirst, newestFirst[i])
	}

	return oldestFirst, nil
}

// AppendHistory inserts one turn and trims the sender's transcript to the
// configured limit, deleting only the oldest excess rows.
func (s *Store) AppendHistory(ctx context.Context, phoneNumber string, sender store.Role, message string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_history (user_phone_number, sender, message) VALUES (?, ?, ?)`,
		phoneNumber, sender, message,
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversation_history WHERE user_phone_number = ?`,
		phoneNumber,
	).Scan(&count); err != nil {
		return fmt.Errorf("count history entries: %w", err)
	}

	excess := count - s.historyLimit
	if excess <= 0 {
		return nil
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_history WHERE id IN (
			SELECT id FROM conversation_history
			WHERE user_phone_number = ?
			ORDER BY timestamp ASC, id ASC
			LIMIT ?
		)`,
		phoneNumber, excess,
	)
	if err != nil {
		return fmt.Errorf("trim history entries: %w", err)
	}

	if deleted, err := result.RowsAffected(); err == nil {
		s.log.Debug("Trimmed conversation history", "phone_number", phoneNumber, "deleted", deleted)
	}

	return nil
}

// SeedUser provisions (or reassigns) the namespace for a phone number.
// Provisioning is an out-of-band operation for the pipeline; this exists
// for local chat mode and tests.
func (s *Store) SeedUser(ctx context.Context, phoneNumber string, namespace string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (phone_number, pinecone_namespace) VALUES (?, ?)
		 ON CONFLICT (phone_number) DO UPDATE SET pinecone_namespace = excluded.pinecone_namespace`,
		phoneNumber, namespace,
	)
	if err != nil {
		return fmt.Errorf("seed user: %w", err)
	}

	return nil
}

// Ping verifies the database file is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
