package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"towing-contact/api/services/contact"
)

var (
	// ErrNotFound is returned for unknown or expired session IDs.
	ErrNotFound = errors.New("session not found")
	// ErrFull is returned when the store already holds MaxSessions.
	ErrFull = errors.New("session store is full")
)

// Storage defines the interface for per-visitor form sessions.
// The HTTP layer depends on this rather than the in-memory implementation.
type Storage interface {
	CreateSession(ctx context.Context) (*Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
}

// Config holds session store limits.
// Sensible defaults are applied by DefaultConfig().
type Config struct {
	TTL           time.Duration
	SweepInterval time.Duration
	MaxSessions   int
}

// DefaultConfig returns production-ready store settings.
func DefaultConfig() Config {
	return Config{
		TTL:           30 * time.Minute,
		SweepInterval: time.Minute,
		MaxSessions:   10000,
	}
}

// MemoryStorage implements Storage with a mutex-guarded map.
type MemoryStorage struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	forms    *contact.Factory
	cfg      Config
	now      func() time.Time
}

// NewInstance creates an in-memory Storage that builds forms with forms.
func NewInstance(forms *contact.Factory, cfg Config) (*MemoryStorage, error) {
	if forms == nil {
		return nil, fmt.Errorf("storage: form factory cannot be nil")
	}
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = def.MaxSessions
	}
	return &MemoryStorage{
		sessions: make(map[uuid.UUID]*Session),
		forms:    forms,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

func (s *MemoryStorage) CreateSession(_ context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) >= s.cfg.MaxSessions {
		return nil, ErrFull
	}
	now := s.now()
	sess := &Session{
		ID:        uuid.New(),
		Form:      s.forms.New(),
		CreatedAt: now,
		LastSeen:  now,
	}
	s.sessions[sess.ID] = sess
	return sess, nil
}

// GetSession returns a live session and refreshes its idle clock.
func (s *MemoryStorage) GetSession(_ context.Context, id uuid.UUID) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := s.now()
	if now.Sub(sess.LastSeen) > s.cfg.TTL {
		delete(s.sessions, id)
		return nil, ErrNotFound
	}
	sess.LastSeen = now
	return sess, nil
}

func (s *MemoryStorage) DeleteSession(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of stored sessions, expired or not.
func (s *MemoryStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops every session idle for longer than the TTL and returns how
// many were removed.
func (s *MemoryStorage) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastSeen) > s.cfg.TTL {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps expired sessions every SweepInterval until ctx is done.
func (s *MemoryStorage) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Debug("expired form sessions removed", "count", n)
			}
		}
	}
}
