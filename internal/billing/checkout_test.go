package billing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/loqalabs/loqa-books/internal/catalog"
	"github.com/loqalabs/loqa-books/internal/config"
	"github.com/loqalabs/loqa-books/internal/profile"
	"github.com/loqalabs/loqa-books/internal/session"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setup(t *testing.T, processingMS int, login bool) (*Checkout, *session.Session) {
	t.Helper()
	ctx := context.Background()
	store, err := profile.Open(ctx, config.ProfileConfig{Mode: "ephemeral"}, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	sess, err := session.Open(ctx, store, "user", newLogger())
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if login {
		if _, err := sess.Login(ctx, "yasmine@example.dz", ""); err != nil {
			t.Fatalf("login: %v", err)
		}
	}
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	cfg := config.Default().Billing
	cfg.ProcessingMS = processingMS
	c, err := NewCheckout(cfg, cat, sess, newLogger())
	if err != nil {
		t.Fatalf("new checkout: %v", err)
	}
	return c, sess
}

var card = &Card{Number: "6280 0000 0000 0000", Expiry: "12/27", CVC: "123", Holder: "YASMINE B"}

func TestPayUpgradesUser(t *testing.T) {
	c, sess := setup(t, 1, true)
	r, err := c.Pay(context.Background(), Order{PlanID: "monthly", Method: Edahabia, Card: card})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if r.Amount != 900 || r.Currency != "DA" || r.Reference == "" || !r.User.IsPremium {
		t.Fatalf("unexpected receipt %+v", r)
	}
	if u, _ := sess.Current(); !u.IsPremium {
		t.Fatal("session user should be premium")
	}
}

func TestPayWithTransfer(t *testing.T) {
	c, _ := setup(t, 0, true)
	r, err := c.Pay(context.Background(), Order{PlanID: "yearly", Method: CCP})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if r.Amount != 9000 || r.Method != CCP {
		t.Fatalf("unexpected receipt %+v", r)
	}
}

func TestPayRequiresLogin(t *testing.T) {
	c, _ := setup(t, 0, false)
	if _, err := c.Pay(context.Background(), Order{PlanID: "monthly", Method: CCP}); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestPayRejectsBadOrders(t *testing.T) {
	c, sess := setup(t, 0, true)
	cases := []struct {
		order Order
		want  error
	}{
		{Order{PlanID: "lifetime", Method: CCP}, ErrUnknownPlan},
		{Order{PlanID: "free", Method: CCP}, ErrFreePlan},
		{Order{PlanID: "monthly", Method: "paypal"}, ErrUnknownMethod},
		{Order{PlanID: "monthly", Method: Edahabia}, ErrMissingDetails},
		{Order{PlanID: "monthly", Method: Edahabia, Card: &Card{Number: "1"}}, ErrMissingDetails},
	}
	for _, tc := range cases {
		if _, err := c.Pay(context.Background(), tc.order); !errors.Is(err, tc.want) {
			t.Fatalf("order %+v: expected %v, got %v", tc.order, tc.want, err)
		}
	}
	if u, _ := sess.Current(); u.IsPremium {
		t.Fatal("rejected orders must not upgrade the user")
	}
}

func TestPayHonoursCancellation(t *testing.T) {
	c, sess := setup(t, 5000, true)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := c.Pay(ctx, Order{PlanID: "monthly", Method: CCP}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if u, _ := sess.Current(); u.IsPremium {
		t.Fatal("cancelled checkout must not upgrade the user")
	}
}
