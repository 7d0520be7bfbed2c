package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"sports-analytics/internal/logger"
)

const (
	keyAccess       = "access"
	keyRefresh      = "refresh"
	keySubscription = "subscription"
	keyWriter       = "writer"

	minPollInterval = 10 * time.Millisecond
)

// SQLiteStore keeps tokens in a session_tokens key/value table so several
// processes on one machine share a session. Changes committed by other
// connections are picked up by polling PRAGMA data_version.
type SQLiteStore struct {
	db   *sql.DB
	poll time.Duration
	w    watchers

	mu       sync.Mutex
	last     Tokens
	cancel   context.CancelFunc
	done     chan struct{}
	watching int
}

// NewSQLiteStore opens (creating if needed) the store at dbPath.
func NewSQLiteStore(dbPath string, poll time.Duration) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := createTokenTable(db); err != nil {
		db.Close()
		return nil, err
	}

	if poll < minPollInterval {
		poll = minPollInterval
	}
	return &SQLiteStore{db: db, poll: poll}, nil
}

func createTokenTable(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_tokens (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

// Close stops the watcher and closes the database connection
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context) (Tokens, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM session_tokens`)
	if err != nil {
		return Tokens{}, fmt.Errorf("querying tokens: %w", err)
	}
	defer rows.Close()

	var t Tokens
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Tokens{}, fmt.Errorf("scanning token: %w", err)
		}
		switch key {
		case keyAccess:
			t.Access = value
		case keyRefresh:
			t.Refresh = value
		case keySubscription:
			t.Subscription = Subscription(value)
		case keyWriter:
			t.Writer = value
		}
	}
	return t, rows.Err()
}

func (s *SQLiteStore) Save(ctx context.Context, t Tokens) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	values := map[string]string{
		keyAccess:       t.Access,
		keyRefresh:      t.Refresh,
		keySubscription: string(t.Subscription),
		keyWriter:       t.Writer,
	}
	for key, value := range values {
		if value == "" {
			if _, err := tx.ExecContext(ctx, `DELETE FROM session_tokens WHERE key = ?`, key); err != nil {
				return fmt.Errorf("deleting %s: %w", key, err)
			}
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session_tokens (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, value)
		if err != nil {
			return fmt.Errorf("writing %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tokens: %w", err)
	}
	s.changed(t)
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_tokens`); err != nil {
		return fmt.Errorf("clearing tokens: %w", err)
	}
	s.changed(Tokens{})
	return nil
}

// changed notifies watchers unless t is what they last saw.
func (s *SQLiteStore) changed(t Tokens) {
	s.mu.Lock()
	if t == s.last {
		s.mu.Unlock()
		return
	}
	s.last = t
	s.mu.Unlock()
	s.w.notify(t)
}

// Watch reports every change. The first watcher starts the data_version poller.
func (s *SQLiteStore) Watch(fn func(Tokens)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		ctx, cancel := context.WithCancel(context.Background())
		conn, err := s.db.Conn(ctx)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("opening watch connection: %w", err)
		}
		last, err := s.Load(ctx)
		if err != nil {
			conn.Close()
			cancel()
			return nil, err
		}
		s.last = last
		s.cancel = cancel
		s.done = make(chan struct{})
		go s.pollDataVersion(ctx, conn, s.done)
	}
	return s.w.add(fn), nil
}

func dataVersion(ctx context.Context, conn *sql.Conn) (int64, error) {
	var v int64
	err := conn.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v)
	return v, err
}

// pollDataVersion runs on its own connection: data_version only moves for
// commits made through other connections.
func (s *SQLiteStore) pollDataVersion(ctx context.Context, conn *sql.Conn, done chan struct{}) {
	defer close(done)
	defer conn.Close()

	version, err := dataVersion(ctx, conn)
	if err != nil {
		logger.Warn("session: reading data_version: %v", err)
	}

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		v, err := dataVersion(ctx, conn)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("session: reading data_version: %v", err)
			}
			continue
		}
		if v == version {
			continue
		}
		version = v

		t, err := s.Load(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("session: reloading tokens: %v", err)
			}
			continue
		}
		s.changed(t)
	}
}
