// Package session holds the signed-in user's token and profile and keeps them
// durable across restarts.
package session

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/readpilot/readpilot/internal/api"
)

// Durable storage keys.
const (
	KeyAccessToken = "access_token"
	KeyUser        = "user"
)

// Store is the auth state container. Every mutation writes through to the
// backing Storage; storage failures are logged and never surface to callers.
type Store struct {
	mu sync.RWMutex
	// writeMu orders mutations so memory and storage end in the same state.
	writeMu sync.Mutex
	storage Storage
	logger  *slog.Logger
	now     func() time.Time

	token   string
	user    *api.User
	loading bool
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger used for storage failures. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the clock used to check stored token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Snapshot is a consistent read of the store.
type Snapshot struct {
	Token         string
	User          *api.User
	Authenticated bool
	Loading       bool
}

// New builds a Store and rehydrates it from storage. A stored session whose
// JWT has expired is discarded.
func New(storage Storage, opts ...Option) *Store {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	s := &Store{
		storage: storage,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.rehydrate()
	return s
}

func (s *Store) rehydrate() {
	token, ok, err := s.storage.Get(KeyAccessToken)
	if err != nil {
		s.logger.Warn("session: read token", "err", err)
		return
	}
	if !ok || token == "" {
		return
	}
	rawUser, ok, err := s.storage.Get(KeyUser)
	if err != nil {
		s.logger.Warn("session: read user", "err", err)
		return
	}
	if !ok || rawUser == "" {
		return
	}
	var user api.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		s.logger.Warn("session: decode stored user", "err", err)
		return
	}
	if tokenExpired(token, s.now()) {
		s.logger.Info("session: stored token expired, discarding")
		s.erase()
		return
	}
	s.token = token
	s.user = &user
	s.logger.Info("session: restored", "user_id", user.ID)
}

// SetAuth records a fresh session.
func (s *Store) SetAuth(token string, user api.User) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	s.token = token
	s.user = &user
	s.mu.Unlock()

	if err := s.storage.Set(KeyAccessToken, token); err != nil {
		s.logger.Error("session: persist token", "err", err)
	}
	s.persistUser(user)
}

// ClearAuth forgets the session in memory and on disk.
func (s *Store) ClearAuth() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()
	s.erase()
}

// SetUser replaces the profile and leaves the token alone.
func (s *Store) SetUser(user api.User) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	s.persistUser(user)
}

// SetLoading flags an in-flight auth operation. It is not persisted.
func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}

// Token returns the access token, or "" when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the profile, or nil.
func (s *Store) User() *api.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	user := *s.user
	return &user
}

// IsAuthenticated is true iff both token and user are present.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Token:         s.token,
		Authenticated: s.token != "" && s.user != nil,
		Loading:       s.loading,
	}
	if s.user != nil {
		user := *s.user
		snap.User = &user
	}
	return snap
}

func (s *Store) persistUser(user api.User) {
	data, err := json.Marshal(user)
	if err != nil {
		s.logger.Error("session: encode user", "err", err)
		return
	}
	if err := s.storage.Set(KeyUser, string(data)); err != nil {
		s.logger.Error("session: persist user", "err", err)
	}
}

func (s *Store) erase() {
	if err := s.storage.Delete(KeyAccessToken, KeyUser); err != nil {
		s.logger.Error("session: erase", "err", err)
	}
}
