// Package session tracks who is signed in. There is one session per process,
// passed explicitly to whatever needs it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/loqalabs/loqa-books/internal/profile"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrClosed           = errors.New("session closed")
)

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	IsPremium bool   `json:"isPremium"`
}

// Store is the subset of the profile store a session needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type Session struct {
	store Store
	key   string
	log   *slog.Logger
	clock func() time.Time

	mu     sync.RWMutex
	user   *User
	closed bool
}

// Open reads the stored record once. A missing or unreadable record leaves
// the session signed out.
func Open(ctx context.Context, store Store, key string, logger *slog.Logger) (*Session, error) {
	s := &Session{
		store: store,
		key:   key,
		log:   logger.With(slog.String("component", "session")),
		clock: time.Now,
	}
	data, err := store.Get(ctx, key)
	switch {
	case errors.Is(err, profile.ErrNotFound):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read profile record: %w", err)
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil || u.ID == "" {
		if err == nil {
			err = errors.New("record has no id")
		}
		s.log.Warn("ignoring unreadable profile record", slog.String("error", err.Error()))
		return s, nil
	}
	s.user = &u
	s.log.Info("restored session", slog.String("user_id", u.ID))
	return s, nil
}

// Login replaces any current user. An empty name defaults to the local part
// of the email.
func (s *Session) Login(ctx context.Context, email, name string) (User, error) {
	email = strings.TrimSpace(email)
	local, _, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return User{}, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	if name = strings.TrimSpace(name); name == "" {
		name = local
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return User{}, ErrClosed
	}
	u := User{
		ID:    strconv.FormatInt(s.clock().UnixMilli(), 10),
		Name:  name,
		Email: email,
	}
	if err := s.persistLocked(ctx, u); err != nil {
		return User{}, err
	}
	s.user = &u
	s.log.Info("user logged in", slog.String("user_id", u.ID))
	return u, nil
}

// Logout clears the user and the stored record.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.store.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("clear profile record: %w", err)
	}
	s.user = nil
	return nil
}

// Current returns the signed-in user, if any.
func (s *Session) Current() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// SetPremium upgrades the current user.
func (s *Session) SetPremium(ctx context.Context) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return User{}, ErrClosed
	}
	if s.user == nil {
		return User{}, ErrNotAuthenticated
	}
	u := *s.user
	u.IsPremium = true
	if err := s.persistLocked(ctx, u); err != nil {
		return User{}, err
	}
	s.user = &u
	return u, nil
}

// Close detaches the session from its store. The record stays on disk.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.user = nil
}

func (s *Session) persistLocked(ctx context.Context, u User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, s.key, data); err != nil {
		return fmt.Errorf("save profile record: %w", err)
	}
	return nil
}
