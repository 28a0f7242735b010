package session

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/specforge/specforge/internal/model/chat"
)

// defaultSaveDelay coalesces bursts of state changes into one write.
const defaultSaveDelay = 2 * time.Second

// Saver is a write-behind cache front for the Store. Ordinary
// mutations schedule a debounced save; critical writes (final spec,
// reset) flush immediately and cancel any pending debounce. Each
// snapshot carries a per-user generation and saves are serialized, so
// a debounced write whose timer already fired can never land on top
// of a newer immediate write. Identical state is never re-written.
// The timer lives on the instance, not in a package-level map.
type Saver struct {
	store Store
	delay time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	gen    map[string]uint64

	saveMu    sync.Mutex
	lastSaved map[string]string
	savedGen  map[string]uint64
}

// NewSaver wraps a store with debounced persistence.
func NewSaver(store Store, delay time.Duration) *Saver {
	if delay <= 0 {
		delay = defaultSaveDelay
	}
	return &Saver{
		store:     store,
		delay:     delay,
		timers:    make(map[string]*time.Timer),
		gen:       make(map[string]uint64),
		lastSaved: make(map[string]string),
		savedGen:  make(map[string]uint64),
	}
}

// Schedule snapshots the session now and arranges a save after the
// debounce delay. Later calls for the same user supersede earlier
// pending ones.
func (s *Saver) Schedule(sess *chat.Session) {
	snapshot := sess.Clone()
	userID := snapshot.UserID

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[userID]; ok {
		t.Stop()
	}
	s.gen[userID]++
	gen := s.gen[userID]
	s.timers[userID] = time.AfterFunc(s.delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.saveIfNewer(ctx, snapshot, gen); err != nil {
			log.Printf("[session] debounced save failed for user=%s: %v", userID, err)
		}
	})
}

// Flush cancels any pending debounced save and writes immediately when
// the state actually changed.
func (s *Saver) Flush(ctx context.Context, sess *chat.Session) error {
	snapshot := sess.Clone()

	s.mu.Lock()
	if t, ok := s.timers[snapshot.UserID]; ok {
		t.Stop()
		delete(s.timers, snapshot.UserID)
	}
	s.gen[snapshot.UserID]++
	gen := s.gen[snapshot.UserID]
	s.mu.Unlock()

	return s.saveIfNewer(ctx, snapshot, gen)
}

// Close stops all pending timers without saving.
func (s *Saver) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// saveIfNewer writes a snapshot unless a newer generation already
// landed or the state is unchanged. Holding saveMu across the whole
// compare-and-save keeps an in-flight stale write from finishing
// after a newer one.
func (s *Saver) saveIfNewer(ctx context.Context, snapshot *chat.Session, gen uint64) error {
	fingerprint, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	userID := snapshot.UserID
	if gen <= s.savedGen[userID] {
		return nil
	}
	if s.lastSaved[userID] == string(fingerprint) {
		s.savedGen[userID] = gen
		return nil
	}

	if err := s.store.Save(ctx, snapshot); err != nil {
		return err
	}
	s.lastSaved[userID] = string(fingerprint)
	s.savedGen[userID] = gen
	return nil
}
