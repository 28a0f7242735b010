package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/specforge/specforge/internal/model/chat"
	"github.com/specforge/specforge/internal/service/storage"
)

// BlobDeleter releases remotely stored attachment blobs. Satisfied by
// the object store; nil when object storage is not configured.
type BlobDeleter interface {
	Delete(ctx context.Context, url string) error
}

// Service owns the single in-memory session per user identity and its
// persistence lifecycle.
type Service struct {
	store Store
	saver *Saver
	blobs BlobDeleter

	mu       sync.Mutex
	sessions map[string]*chat.Session
}

// NewService builds the session service around a store.
func NewService(store Store, blobs BlobDeleter, saveDelay time.Duration) *Service {
	return &Service{
		store:    store,
		saver:    NewSaver(store, saveDelay),
		blobs:    blobs,
		sessions: make(map[string]*chat.Session),
	}
}

// LoadOrCreate returns the active session for a user, restoring it
// from storage or creating the welcome state when none is persisted.
func (s *Service) LoadOrCreate(ctx context.Context, userID string) (*chat.Session, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	s.mu.Lock()
	if sess, ok := s.sessions[userID]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	sess, err := s.store.Load(ctx, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		sess = chat.NewSession(userID)
		s.saver.Schedule(sess)
	case err != nil:
		return nil, fmt.Errorf("restore session: %w", err)
	}

	s.mu.Lock()
	// Another request may have raced us; keep the first instance so
	// exactly one session exists per user.
	if existing, ok := s.sessions[userID]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.sessions[userID] = sess
	s.mu.Unlock()
	return sess, nil
}

// ScheduleSave records a state change for debounced persistence.
func (s *Service) ScheduleSave(sess *chat.Session) {
	s.saver.Schedule(sess)
}

// FlushNow persists immediately, cancelling any pending debounce.
// Used for final-spec writes and resets, whose loss is unacceptable.
func (s *Service) FlushNow(ctx context.Context, sess *chat.Session) error {
	return s.saver.Flush(ctx, sess)
}

// Reset releases every storage-backed blob referenced by the session,
// then replaces it with the welcome state and flushes. Individual
// delete failures are tolerated.
func (s *Service) Reset(ctx context.Context, userID string) (*chat.Session, error) {
	s.mu.Lock()
	old := s.sessions[userID]
	s.mu.Unlock()

	if old != nil && s.blobs != nil {
		for _, url := range ExtractStorageImageURLs(old.Messages) {
			if err := s.blobs.Delete(ctx, url); err != nil {
				log.Printf("[session] blob release failed during reset for user=%s: %v", userID, err)
			}
		}
	}

	fresh := chat.NewSession(userID)
	s.mu.Lock()
	s.sessions[userID] = fresh
	s.mu.Unlock()

	if err := s.saver.Flush(ctx, fresh); err != nil {
		return nil, fmt.Errorf("persist reset: %w", err)
	}
	return fresh, nil
}

// Close stops the write-behind machinery.
func (s *Service) Close() {
	s.saver.Close()
}

// ExtractStorageImageURLs returns the storage-backed image references
// in a message list, skipping inline-encoded fallbacks.
func ExtractStorageImageURLs(messages []chat.Message) []string {
	var urls []string
	for _, m := range messages {
		for _, p := range m.Parts {
			if p.Type != chat.PartImageURL {
				continue
			}
			if storage.IsStorageURL(p.ImageURL) {
				urls = append(urls, p.ImageURL)
			}
		}
	}
	return urls
}
