// Package session хранит состояние мастера анкеты между сообщениями.
// Ядро никогда не видит черновик: наружу отдаётся только заполненная анкета.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL - сколько живёт незавершённый мастер.
const DefaultTTL = 30 * time.Minute

// ErrNoSession is returned when the user has no active wizard.
var ErrNoSession = errors.New("no active session")

// ══════════════════════════════════════════════════════════════════════════════
// WIZARD
// ══════════════════════════════════════════════════════════════════════════════

// Step - шаг мастера.
type Step string

const (
	StepName      Step = "name"
	StepRegion    Step = "region"
	StepPlatform  Step = "platform"
	StepAge       Step = "age"
	StepAbout     Step = "about"
	StepInterests Step = "interests"

	// StepPhotos - ожидание фото после «📸 Фото».
	StepPhotos Step = "photos"
)

// Draft - частично заполненная анкета.
type Draft struct {
	Name      string   `json:"name,omitempty"`
	Region    string   `json:"region,omitempty"`
	Platform  string   `json:"platform,omitempty"`
	Age       int      `json:"age,omitempty"`
	About     string   `json:"about,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

// HasInterest reports whether tag is already selected.
func (d Draft) HasInterest(tag string) bool {
	for _, t := range d.Interests {
		if t == tag {
			return true
		}
	}
	return false
}

// ToggleInterest adds tag or removes it if present. Returns true when added.
func (d *Draft) ToggleInterest(tag string) bool {
	for i, t := range d.Interests {
		if t == tag {
			d.Interests = append(d.Interests[:i], d.Interests[i+1:]...)
			return false
		}
	}
	d.Interests = append(d.Interests, tag)
	return true
}

// Wizard - активная сессия мастера одного пользователя.
type Wizard struct {
	ID     string `json:"id"`
	UserID int64  `json:"user_id"`
	Step   Step   `json:"step"`
	Draft  Draft  `json:"draft"`

	// Editing - мастер запущен для существующей анкеты.
	Editing bool `json:"editing,omitempty"`

	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWizard starts a wizard at the first step.
func NewWizard(userID int64, step Step, now time.Time) *Wizard {
	return &Wizard{
		ID:        uuid.NewString(),
		UserID:    userID,
		Step:      step,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Advance moves the wizard to the next step.
func (w *Wizard) Advance(step Step, now time.Time) {
	w.Step = step
	w.UpdatedAt = now
}

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Backend stores opaque session payloads with a TTL.
// Implemented by the Redis session store and by MemoryBackend.
type Backend interface {
	Load(ctx context.Context, userID int64) ([]byte, error)
	Save(ctx context.Context, userID int64, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, userID int64) error
	IsMiss(err error) bool
}

// Store reads and writes typed wizards on top of a Backend.
type Store struct {
	backend Backend
	ttl     time.Duration
}

// NewStore creates a Store. ttl <= 0 means DefaultTTL.
func NewStore(backend Backend, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{backend: backend, ttl: ttl}
}

// Get returns the user's wizard or ErrNoSession.
func (s *Store) Get(ctx context.Context, userID int64) (*Wizard, error) {
	raw, err := s.backend.Load(ctx, userID)
	if err != nil {
		if s.backend.IsMiss(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var w Wizard
	if err := json.Unmarshal(raw, &w); err != nil {
		// Битую сессию проще начать заново.
		_ = s.backend.Delete(ctx, userID)
		return nil, ErrNoSession
	}
	return &w, nil
}

// Put stores the wizard and resets its TTL.
func (s *Store) Put(ctx context.Context, w *Wizard) error {
	raw, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.backend.Save(ctx, w.UserID, raw, s.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Drop removes the user's wizard. Missing sessions are not an error.
func (s *Store) Drop(ctx context.Context, userID int64) error {
	if err := s.backend.Delete(ctx, userID); err != nil && !s.backend.IsMiss(err) {
		return fmt.Errorf("drop session: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MEMORY BACKEND
// Для разработки без Redis. Сессии теряются при перезапуске.
// ══════════════════════════════════════════════════════════════════════════════

var errMemoryMiss = errors.New("session: miss")

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryBackend keeps payloads in process memory with lazy expiry.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[int64]memoryEntry
	now     func() time.Time
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[int64]memoryEntry), now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (m *MemoryBackend) WithClock(now func() time.Time) *MemoryBackend {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
	return m
}

// Load implements Backend.
func (m *MemoryBackend) Load(_ context.Context, userID int64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[userID]
	if !ok {
		return nil, errMemoryMiss
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, userID)
		return nil, errMemoryMiss
	}
	return append([]byte(nil), e.payload...), nil
}

// Save implements Backend.
func (m *MemoryBackend) Save(_ context.Context, userID int64, payload []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[userID] = memoryEntry{
		payload:   append([]byte(nil), payload...),
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	delete(m.entries, userID)
	m.mu.Unlock()
	return nil
}

// IsMiss implements Backend.
func (m *MemoryBackend) IsMiss(err error) bool {
	return errors.Is(err, errMemoryMiss)
}

// Sweep drops expired entries and returns how many were removed.
func (m *MemoryBackend) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
