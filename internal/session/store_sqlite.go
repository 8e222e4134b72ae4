package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/llanen/nl.eneco.toon/pkg/model"
)

// SQLiteStore implements Store using SQLite
// This provides persistent sessions across restarts so users do not have
// to re-authorize after every deploy
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based session store
// The dbPath parameter specifies the path to the SQLite database file
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return store, nil
}

// initSchema creates the necessary tables if they don't exist
func (s *SQLiteStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			config_id TEXT NOT NULL,
			title TEXT,
			access_token TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			token_expiry TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	return nil
}

// List returns all persisted sessions
func (s *SQLiteStore) List(ctx context.Context) ([]model.Session, error) {
	query := `SELECT session_id, config_id, title, access_token, refresh_token, token_expiry FROM sessions`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var sess model.Session
		var title sql.NullString
		var expiryStr string
		if err := rows.Scan(&sess.ID, &sess.ConfigID, &title, &sess.Token.AccessToken, &sess.Token.RefreshToken, &expiryStr); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sess.Title = title.String

		expiry, err := time.Parse(time.RFC3339, expiryStr)
		if err != nil {
			return nil, fmt.Errorf("parsing token expiry: %w", err)
		}
		sess.Token.Expiry = expiry

		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading session rows: %w", err)
	}

	return sessions, nil
}

// Save inserts or replaces a session by its id
func (s *SQLiteStore) Save(ctx context.Context, session model.Session) error {
	query := `
		INSERT INTO sessions (session_id, config_id, title, access_token, refresh_token, token_expiry, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			config_id = excluded.config_id,
			title = excluded.title,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_expiry = excluded.token_expiry,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		session.ID,
		session.ConfigID,
		session.Title,
		session.Token.AccessToken,
		session.Token.RefreshToken,
		session.Token.Expiry.Format(time.RFC3339),
		time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	return nil
}

// Delete removes a session. Deleting a missing session is not an error
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	query := `DELETE FROM sessions WHERE session_id = ?`

	_, err := s.db.ExecContext(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	return nil
}

// Close closes the underlying database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
