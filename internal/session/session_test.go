package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/loqalabs/loqa-books/internal/config"
	"github.com/loqalabs/loqa-books/internal/profile"
)

const key = "booksummary_user"

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newStore(t *testing.T) *profile.Store {
	t.Helper()
	ps, err := profile.Open(context.Background(), config.ProfileConfig{Mode: "ephemeral"}, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = ps.Close() })
	return ps
}

func TestLoginDefaultsName(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	s, err := Open(ctx, store, key, newLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := s.Current(); ok {
		t.Fatal("expected signed out")
	}

	s.clock = func() time.Time { return time.UnixMilli(1700000000123) }
	u, err := s.Login(ctx, "amina@example.dz", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.Name != "amina" || u.ID != "1700000000123" || u.IsPremium {
		t.Fatalf("unexpected user %+v", u)
	}
	if cur, ok := s.Current(); !ok || cur != u {
		t.Fatalf("current = %+v", cur)
	}
}

func TestLoginRejectsBadEmail(t *testing.T) {
	s, err := Open(context.Background(), newStore(t), key, newLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, email := range []string{"", "no-at-sign", "@example.com"} {
		if _, err := s.Login(context.Background(), email, "x"); !errors.Is(err, ErrInvalidEmail) {
			t.Fatalf("email %q: expected ErrInvalidEmail, got %v", email, err)
		}
	}
}

func TestRestoreAndLogout(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	first, _ := Open(ctx, store, key, newLogger())
	u, err := first.Login(ctx, "omar@example.dz", "Omar")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := first.SetPremium(ctx); err != nil {
		t.Fatalf("set premium: %v", err)
	}

	second, err := Open(ctx, store, key, newLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	restored, ok := second.Current()
	if !ok || restored.ID != u.ID || !restored.IsPremium {
		t.Fatalf("expected restored premium user, got %+v", restored)
	}

	if err := second.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := store.Get(ctx, key); !errors.Is(err, profile.ErrNotFound) {
		t.Fatalf("expected record removed, got %v", err)
	}
	if _, err := second.SetPremium(ctx); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestCorruptRecordIsSignedOut(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	if err := store.Put(ctx, key, []byte("{not json")); err != nil {
		t.Fatalf("put: %v", err)
	}
	s, err := Open(ctx, store, key, newLogger())
	if err != nil {
		t.Fatalf("open should tolerate corrupt record: %v", err)
	}
	if _, ok := s.Current(); ok {
		t.Fatal("expected signed out")
	}
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	s, _ := Open(ctx, store, key, newLogger())
	if _, err := s.Login(ctx, "a@b.c", ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	s.Close()
	if _, ok := s.Current(); ok {
		t.Fatal("closed session should have no user")
	}
	if _, err := s.Login(ctx, "a@b.c", ""); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, err := store.Get(ctx, key); err != nil {
		t.Fatalf("record should survive close: %v", err)
	}
}
