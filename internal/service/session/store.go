package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/specforge/specforge/internal/model/chat"
	"github.com/specforge/specforge/internal/service/storage"
)

// ErrNotFound signals a valid new-session state, distinct from a
// storage failure.
var ErrNotFound = errors.New("session not found")

// Store persists one session per user identity.
type Store interface {
	Load(ctx context.Context, userID string) (*chat.Session, error)
	Save(ctx context.Context, sess *chat.Session) error
}

// SQLiteStore keeps sessions in a local sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database under dataDir and
// runs migrations.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "specforge.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		user_id TEXT PRIMARY KEY,
		messages_json TEXT NOT NULL,
		phase TEXT NOT NULL,
		question_count INTEGER NOT NULL DEFAULT 0,
		final_spec TEXT NOT NULL DEFAULT '',
		modification_mode INTEGER NOT NULL DEFAULT 0,
		messages_at_last_spec INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load fetches the persisted session for a user; ErrNotFound marks a
// fresh user.
func (s *SQLiteStore) Load(ctx context.Context, userID string) (*chat.Session, error) {
	var (
		sess         chat.Session
		messagesJSON string
		modification int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, messages_json, phase, question_count, final_spec,
		       modification_mode, messages_at_last_spec, created_at, updated_at
		FROM sessions WHERE user_id = ?
	`, userID).Scan(&sess.UserID, &messagesJSON, &sess.Phase, &sess.QuestionCount,
		&sess.FinalSpec, &modification, &sess.MessagesAtLastSpec,
		&sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	if err := json.Unmarshal([]byte(messagesJSON), &sess.Messages); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	sess.ModificationMode = modification != 0
	return &sess, nil
}

// Save upserts the session. Inline-encoded image parts are filtered
// out before the write: only text and storage-backed references are
// persisted.
func (s *SQLiteStore) Save(ctx context.Context, sess *chat.Session) error {
	messagesJSON, err := json.Marshal(persistableMessages(sess.Messages))
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}

	modification := 0
	if sess.ModificationMode {
		modification = 1
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (user_id, messages_json, phase, question_count, final_spec,
		                      modification_mode, messages_at_last_spec, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			messages_json = excluded.messages_json,
			phase = excluded.phase,
			question_count = excluded.question_count,
			final_spec = excluded.final_spec,
			modification_mode = excluded.modification_mode,
			messages_at_last_spec = excluded.messages_at_last_spec,
			updated_at = excluded.updated_at
	`, sess.UserID, string(messagesJSON), string(sess.Phase), sess.QuestionCount,
		sess.FinalSpec, modification, sess.MessagesAtLastSpec,
		sess.CreatedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func persistableMessages(messages []chat.Message) []chat.Message {
	out := make([]chat.Message, 0, len(messages))
	for _, m := range messages {
		if len(m.Parts) == 0 {
			out = append(out, m)
			continue
		}
		clone := m.Clone()
		parts := clone.Parts[:0]
		for _, p := range clone.Parts {
			if p.Type == chat.PartImageURL && storage.IsInlineData(p.ImageURL) {
				continue
			}
			parts = append(parts, p)
		}
		clone.Parts = parts
		out = append(out, clone)
	}
	return out
}

// MemoryStore is the in-memory Store used in tests and when no data
// directory is configured. Saves arrive from debounce-timer goroutines
// while requests load, so access is guarded.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*chat.Session
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*chat.Session)}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, userID string) (*chat.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return sess.Clone(), nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, sess *chat.Session) error {
	clone := sess.Clone()
	clone.Messages = persistableMessages(clone.Messages)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = clone
	return nil
}
