package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/specforge/specforge/internal/model/chat"
)

type countingStore struct {
	mu    sync.Mutex
	saves int
	last  *chat.Session
}

func (s *countingStore) Load(_ context.Context, _ string) (*chat.Session, error) {
	return nil, ErrNotFound
}

func (s *countingStore) Save(_ context.Context, sess *chat.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.last = sess.Clone()
	return nil
}

func (s *countingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

type recordingDeleter struct {
	deleted []string
}

func (d *recordingDeleter) Delete(_ context.Context, url string) error {
	d.deleted = append(d.deleted, url)
	return nil
}

func TestLoadOrCreateWelcomeState(t *testing.T) {
	svc := NewService(&countingStore{}, nil, time.Hour)
	defer svc.Close()

	sess, err := svc.LoadOrCreate(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("LoadOrCreate err: %v", err)
	}
	if len(sess.Messages) != 1 {
		t.Fatalf("expected exactly one welcome message, got %d", len(sess.Messages))
	}
	if sess.Messages[0].Role != chat.RoleAssistant {
		t.Fatalf("welcome message must be from the assistant, got %q", sess.Messages[0].Role)
	}
	if sess.Phase != chat.PhaseInterview {
		t.Fatalf("expected interview phase, got %q", sess.Phase)
	}
	if sess.QuestionCount != 0 {
		t.Fatalf("expected question count 0, got %d", sess.QuestionCount)
	}
}

func TestLoadOrCreateReturnsSameInstance(t *testing.T) {
	svc := NewService(&countingStore{}, nil, time.Hour)
	defer svc.Close()

	a, _ := svc.LoadOrCreate(context.Background(), "user-1")
	b, _ := svc.LoadOrCreate(context.Background(), "user-1")
	if a != b {
		t.Fatal("exactly one session must exist per user identity")
	}
}

func TestFlushSkipsUnchangedState(t *testing.T) {
	store := &countingStore{}
	svc := NewService(store, nil, time.Hour)
	defer svc.Close()

	sess, _ := svc.LoadOrCreate(context.Background(), "user-1")
	if err := svc.FlushNow(context.Background(), sess); err != nil {
		t.Fatalf("FlushNow err: %v", err)
	}
	first := store.count()

	// Re-saving identical state must be a no-op.
	if err := svc.FlushNow(context.Background(), sess); err != nil {
		t.Fatalf("FlushNow err: %v", err)
	}
	if store.count() != first {
		t.Fatalf("identical state saved again: %d -> %d", first, store.count())
	}

	sess.QuestionCount++
	if err := svc.FlushNow(context.Background(), sess); err != nil {
		t.Fatalf("FlushNow err: %v", err)
	}
	if store.count() != first+1 {
		t.Fatalf("changed state not saved: %d", store.count())
	}
}

func TestFlushCancelsPendingDebounce(t *testing.T) {
	store := &countingStore{}
	svc := NewService(store, nil, 30*time.Millisecond)
	defer svc.Close()

	sess, _ := svc.LoadOrCreate(context.Background(), "user-1")

	// Stale snapshot is scheduled, then newer state flushes
	// immediately; the stale debounce must not fire afterwards.
	svc.ScheduleSave(sess)
	sess.FinalSpec = "# Spec"
	if err := svc.FlushNow(context.Background(), sess); err != nil {
		t.Fatalf("FlushNow err: %v", err)
	}
	after := store.count()

	time.Sleep(80 * time.Millisecond)
	if store.count() != after {
		t.Fatalf("stale debounced save fired after immediate flush: %d -> %d", after, store.count())
	}
	store.mu.Lock()
	final := store.last.FinalSpec
	store.mu.Unlock()
	if final != "# Spec" {
		t.Fatalf("expected final spec to be persisted, got %q", final)
	}
}

func TestExtractStorageImageURLs(t *testing.T) {
	storageURL := "https://blobs.example.com/spec-attachments/a.png"
	otherURL := "https://blobs.example.com/spec-attachments/b.jpg"
	inline := "data:image/png;base64,iVBOR="

	cases := []struct {
		name     string
		messages []chat.Message
		want     int
	}{
		{"no messages", nil, 0},
		{"no images", []chat.Message{{DisplayContent: "texte"}}, 0},
		{"one storage image", []chat.Message{{Parts: []chat.ContentPart{
			{Type: chat.PartText, Text: "t"},
			{Type: chat.PartImageURL, ImageURL: storageURL},
		}}}, 1},
		{"mixed inline and storage", []chat.Message{
			{Parts: []chat.ContentPart{{Type: chat.PartImageURL, ImageURL: storageURL}}},
			{Parts: []chat.ContentPart{{Type: chat.PartImageURL, ImageURL: inline}}},
			{Parts: []chat.ContentPart{{Type: chat.PartImageURL, ImageURL: otherURL}}},
		}, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractStorageImageURLs(tc.messages)
			if len(got) != tc.want {
				t.Fatalf("expected %d urls, got %d (%v)", tc.want, len(got), got)
			}
		})
	}
}

func TestResetReleasesOnlyStorageBlobs(t *testing.T) {
	store := &countingStore{}
	deleter := &recordingDeleter{}
	svc := NewService(store, deleter, time.Hour)
	defer svc.Close()

	sess, _ := svc.LoadOrCreate(context.Background(), "user-1")
	sess.Append(chat.Message{
		Role: chat.RoleUser,
		Parts: []chat.ContentPart{
			{Type: chat.PartImageURL, ImageURL: "https://blobs.example.com/spec-attachments/keepme.png"},
		},
	})
	sess.Append(chat.Message{
		Role: chat.RoleUser,
		Parts: []chat.ContentPart{
			{Type: chat.PartImageURL, ImageURL: "data:image/png;base64,AAAA"},
		},
	})

	fresh, err := svc.Reset(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Reset err: %v", err)
	}
	if len(deleter.deleted) != 1 {
		t.Fatalf("expected exactly one blob delete, got %d (%v)", len(deleter.deleted), deleter.deleted)
	}
	if deleter.deleted[0] != "https://blobs.example.com/spec-attachments/keepme.png" {
		t.Fatalf("deleted the wrong blob: %s", deleter.deleted[0])
	}
	if len(fresh.Messages) != 1 || fresh.Phase != chat.PhaseInterview {
		t.Fatal("reset must return the welcome state")
	}
}
