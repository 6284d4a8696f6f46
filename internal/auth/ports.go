// Package auth defines the identity provider boundary and the session
// guard that decides whether protected views may be served.
package auth

import (
	"context"
	"errors"
)

type (
	// Session is an authenticated identity context. Everything that
	// touches user data takes one explicitly; there is no ambient
	// current user.
	Session struct {
		Token  string
		UserID string
		Email  string
	}

	// Presence is the three-valued auth-state result pushed on the
	// provider's event stream.
	Presence int

	// State is one event on the auth-state stream. Session is set only
	// when Presence is Present.
	State struct {
		Presence Presence
		Session  *Session
	}

	// Subscriber is the event-stream half of a provider, split out so
	// the guard can be driven by a fake stream in tests.
	Subscriber interface {
		// Subscribe registers fn for presence changes and returns an
		// unsubscribe function. The current state is delivered
		// immediately on registration.
		Subscribe(fn func(State)) (unsubscribe func())
	}

	// Provider is the identity provider consumed by the credential
	// flows and the session middleware.
	Provider interface {
		Subscriber

		SignIn(ctx context.Context, email, password string) (Session, error)
		SignUp(ctx context.Context, email, password, displayName string) (Session, error)
		SignOut(ctx context.Context, token string) error
		// Lookup resolves a session token, failing with ErrNoSession
		// for unknown or expired tokens.
		Lookup(ctx context.Context, token string) (Session, error)
	}
)

const (
	Indeterminate Presence = iota
	Present
	Absent
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailInUse         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrNoSession          = errors.New("no active session")
)

func (p Presence) String() string {
	switch p {
	case Present:
		return "present"
	case Absent:
		return "absent"
	}
	return "indeterminate"
}
