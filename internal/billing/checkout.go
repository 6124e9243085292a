// Package billing simulates subscription checkout. No money moves.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/loqa-books/internal/catalog"
	"github.com/loqalabs/loqa-books/internal/config"
	"github.com/loqalabs/loqa-books/internal/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Method string

const (
	Edahabia Method = "edahabia"
	CCP      Method = "ccp"
)

var (
	ErrUnknownPlan    = errors.New("unknown plan")
	ErrFreePlan       = errors.New("plan does not require payment")
	ErrUnknownMethod  = errors.New("unknown payment method")
	ErrMissingDetails = errors.New("missing payment details")
)

// Card is an Edahabia card as typed by the user.
type Card struct {
	Number string `json:"number"`
	Expiry string `json:"expiry"`
	CVC    string `json:"cvc"`
	Holder string `json:"holder"`
}

// Transfer is a CCP transfer. Both fields are optional.
type Transfer struct {
	TransactionID string `json:"transactionId,omitempty"`
	Proof         []byte `json:"proof,omitempty"`
}

type Order struct {
	PlanID   string    `json:"planId"`
	Method   Method    `json:"method"`
	Card     *Card     `json:"card,omitempty"`
	Transfer *Transfer `json:"transfer,omitempty"`
}

type Receipt struct {
	Reference string       `json:"reference"`
	PlanID    string       `json:"planId"`
	PlanName  string       `json:"planName"`
	Amount    int          `json:"amount"`
	Currency  string       `json:"currency"`
	Method    Method       `json:"method"`
	PaidAt    time.Time    `json:"paidAt"`
	User      session.User `json:"user"`
}

// Plans looks up subscription plans by id.
type Plans interface {
	Plan(id string) (catalog.Plan, bool)
}

type Checkout struct {
	plans      Plans
	sess       *session.Session
	currency   string
	processing time.Duration
	log        *slog.Logger
	completed  metric.Int64Counter
}

func NewCheckout(cfg config.BillingConfig, plans Plans, sess *session.Session, logger *slog.Logger) (*Checkout, error) {
	completed, err := otel.Meter("github.com/loqalabs/loqa-books/internal/billing").Int64Counter("books.checkout.completed",
		metric.WithDescription("Completed mock checkouts"))
	if err != nil {
		return nil, fmt.Errorf("create checkout counter: %w", err)
	}
	return &Checkout{
		plans:      plans,
		sess:       sess,
		currency:   cfg.Currency,
		processing: time.Duration(cfg.ProcessingMS) * time.Millisecond,
		log:        logger.With(slog.String("component", "billing")),
		completed:  completed,
	}, nil
}

// Pay simulates processing the order and upgrades the signed-in user.
func (c *Checkout) Pay(ctx context.Context, o Order) (Receipt, error) {
	if _, ok := c.sess.Current(); !ok {
		return Receipt{}, session.ErrNotAuthenticated
	}
	plan, ok := c.plans.Plan(o.PlanID)
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %q", ErrUnknownPlan, o.PlanID)
	}
	if !plan.Paid() {
		return Receipt{}, fmt.Errorf("%w: %s", ErrFreePlan, plan.ID)
	}
	if err := validate(o); err != nil {
		return Receipt{}, err
	}

	if c.processing > 0 {
		timer := time.NewTimer(c.processing)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Receipt{}, ctx.Err()
		case <-timer.C:
		}
	}

	user, err := c.sess.SetPremium(ctx)
	if err != nil {
		return Receipt{}, err
	}
	r := Receipt{
		Reference: uuid.NewString(),
		PlanID:    plan.ID,
		PlanName:  plan.Name,
		Amount:    plan.Price,
		Currency:  c.currency,
		Method:    o.Method,
		PaidAt:    time.Now().UTC(),
		User:      user,
	}
	c.completed.Add(ctx, 1, metric.WithAttributes(attribute.String("plan", plan.ID), attribute.String("method", string(o.Method))))
	c.log.Info("checkout completed",
		slog.String("reference", r.Reference),
		slog.String("plan", plan.ID),
		slog.String("method", string(o.Method)),
		slog.Int("amount", r.Amount))
	return r, nil
}

func validate(o Order) error {
	switch o.Method {
	case Edahabia:
		c := o.Card
		if c == nil || blank(c.Number) || blank(c.Expiry) || blank(c.CVC) || blank(c.Holder) {
			return fmt.Errorf("%w: card number, expiry, cvc and holder are required", ErrMissingDetails)
		}
	case CCP:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMethod, o.Method)
	}
	return nil
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
