// Package draft persists a resumable snapshot of an in-progress questionnaire
// to a local key-value store, debouncing writes so rapid typing coalesces
// into a single save.
package draft

import (
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/casewell/intake/form"
	"github.com/casewell/intake/log"
)

// Snapshot is the persisted shape: the whole answer map plus the step index.
// It is an open map, so drafts written by an older field table still load.
type Snapshot struct {
	Answers map[string]string `json:"answers"`
	Step    int               `json:"currentStep"`
}

// Store is the single-key durable store a draft lives in.
type Store interface {
	Load() (data []byte, ok bool, err error)
	Save(data []byte) error
	Delete() error
}

// FileStore keeps the draft in one JSON file.
type FileStore struct {
	Path string
}

func (st FileStore) Load() ([]byte, bool, error) {
	data, err := os.ReadFile(st.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (st FileStore) Save(data []byte) error {
	return os.WriteFile(st.Path, data, 0o600)
}

func (st FileStore) Delete() error {
	err := os.Remove(st.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Peek reports an existing draft without applying it, so the caller can ask
// the user whether to resume or discard instead of silently restoring.
func Peek(store Store) (*Snapshot, error) {
	data, ok, err := store.Load()
	if err != nil || !ok {
		return nil, err
	}
	snap := &Snapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, err
	}
	if snap.Answers == nil {
		snap.Answers = map[string]string{}
	}
	return snap, nil
}

// Restore applies a previously peeked snapshot to the session.
func Restore(session *form.Session, snap *Snapshot) {
	session.Replace(snap.Answers, snap.Step)
}

// Saver debounce-saves a session. Each mutation cancels any pending timer and
// reschedules with the latest snapshot, so only the newest state is ever
// written. Save errors are logged and swallowed: a full or broken store must
// never block data entry.
type Saver struct {
	store Store
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending *Snapshot
}

const DefaultDelay = time.Second

func NewSaver(store Store, delay time.Duration) *Saver {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Saver{store: store, delay: delay}
}

// Attach hooks the saver into the session's change events.
func (s *Saver) Attach(session *form.Session) {
	session.OnChange(func() {
		s.Schedule(&Snapshot{Answers: session.Answers(), Step: session.Step()})
	})
}

// Schedule records snap as the state to persist once the idle delay elapses.
func (s *Saver) Schedule(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = snap
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.flush)
}

// Flush writes any pending snapshot immediately.
func (s *Saver) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.flush()
}

// Clear cancels any pending save and deletes the persisted draft. Called on
// successful submission and on explicit discard; cancelling first ensures a
// queued save cannot resurrect the draft afterwards.
func (s *Saver) Clear() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
	s.mu.Unlock()

	if err := s.store.Delete(); err != nil {
		log.Warnf("draft.delete: %v", err)
	}
}

func (s *Saver) flush() {
	s.mu.Lock()
	snap := s.pending
	s.pending = nil
	s.mu.Unlock()
	if snap == nil {
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		log.Warnf("draft.encode: %v", err)
		return
	}
	if err := s.store.Save(data); err != nil {
		log.Warnf("draft.save: %v", err)
	}
}
