package payment

import (
	"context"
	"errors"
	"time"
)

var (
	ErrSessionNotFound = errors.New("payment: session not found")
	ErrTokenBound      = errors.New("payment: token already bound to another order")
)

// Session binds an opaque, unguessable token to exactly one order. The token
// is what the external gateway echoes back; it replaces any scheme where
// order ids could be derived or substituted by the caller.
type Session struct {
	Token     string
	OrderID   string
	CreatedAt time.Time
}

func NewSession(token, orderID string) *Session {
	return &Session{
		Token:     token,
		OrderID:   orderID,
		CreatedAt: time.Now().UTC(),
	}
}

// SessionStore persists token bindings. Bindings are immutable: a token can
// never be rebound to a different order.
type SessionStore interface {
	// Bind records the token→order binding. ErrTokenBound when the token
	// already maps to a different order.
	Bind(ctx context.Context, session *Session) error

	// Resolve returns the session for a token, or ErrSessionNotFound.
	Resolve(ctx context.Context, token string) (*Session, error)
}
