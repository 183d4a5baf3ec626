package identity

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// CachedToken is a previously issued token and its expiry.
type CachedToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenStore caches issued tokens per user. Implementations must be safe for
// concurrent use.
type TokenStore interface {
	Load(userID string) (CachedToken, bool, error)
	Save(userID string, tok CachedToken) error
	Delete(userID string) error
}

// MemoryStore keeps tokens for the life of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]CachedToken
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]CachedToken)}
}

func (s *MemoryStore) Load(userID string) (CachedToken, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[userID]
	return tok, ok, nil
}

func (s *MemoryStore) Save(userID string, tok CachedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = tok
	return nil
}

func (s *MemoryStore) Delete(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, userID)
	return nil
}

// SQLiteStore persists tokens across runs.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the token cache at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create token store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS tokens (
		user_id TEXT PRIMARY KEY,
		token TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tokens table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(userID string) (CachedToken, bool, error) {
	var tok CachedToken
	var expires int64
	err := s.db.QueryRow(`SELECT token, expires_at FROM tokens WHERE user_id = ?`, userID).Scan(&tok.Token, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return CachedToken{}, false, nil
	}
	if err != nil {
		return CachedToken{}, false, fmt.Errorf("failed to load token: %w", err)
	}
	tok.ExpiresAt = time.Unix(0, expires)
	return tok, true, nil
}

func (s *SQLiteStore) Save(userID string, tok CachedToken) error {
	_, err := s.db.Exec(`INSERT INTO tokens (user_id, token, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			token = excluded.token,
			expires_at = excluded.expires_at,
			updated_at = CURRENT_TIMESTAMP`,
		userID, tok.Token, tok.ExpiresAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(userID string) error {
	if _, err := s.db.Exec(`DELETE FROM tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
