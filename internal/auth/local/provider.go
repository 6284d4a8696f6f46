// Package local implements the identity provider over the docstore
// users collection: bcrypt password hashes, uuid session tokens held in
// memory, and presence notifications pushed to subscribers on every
// sign-in and sign-out.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"budgetplanner/internal/auth"
	"budgetplanner/internal/docstore"
)

const usersCollection = "users"

const minPasswordLength = 6

type Provider struct {
	store      docstore.Store
	bcryptCost int
	sessionTTL time.Duration
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]record
	subs     map[int]func(auth.State)
	nextSub  int
	last     auth.State
}

type record struct {
	session auth.Session
	expires time.Time
}

var _ auth.Provider = (*Provider)(nil)

type Options struct {
	BcryptCost int
	SessionTTL time.Duration
}

func NewProvider(store docstore.Store, opts Options) *Provider {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.SessionTTL == 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	return &Provider{
		store:      store,
		bcryptCost: opts.BcryptCost,
		sessionTTL: opts.SessionTTL,
		now:        time.Now,
		sessions:   make(map[string]record),
		subs:       make(map[int]func(auth.State)),
		last:       auth.State{Presence: auth.Absent},
	}
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (auth.Session, error) {
	email = normalizeEmail(email)

	user, err := p.findUser(ctx, email)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return auth.Session{}, auth.ErrInvalidCredentials
		}
		return auth.Session{}, fmt.Errorf("look up user: %w", err)
	}

	hash, _ := user.Fields["passwordHash"].(string)
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return auth.Session{}, auth.ErrInvalidCredentials
	}

	sess := p.openSession(user.ID, email)
	slog.InfoContext(ctx, "user signed in", "user_id", sess.UserID)
	return sess, nil
}

func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (auth.Session, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") || strings.ContainsAny(email, " \t") || len(email) < 3 {
		return auth.Session{}, auth.ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return auth.Session{}, auth.ErrWeakPassword
	}

	if _, err := p.findUser(ctx, email); err == nil {
		return auth.Session{}, auth.ErrEmailInUse
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return auth.Session{}, fmt.Errorf("look up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.bcryptCost)
	if err != nil {
		return auth.Session{}, fmt.Errorf("hash password: %w", err)
	}

	id, err := p.store.Insert(ctx, usersCollection, docstore.Fields{
		"email":        email,
		"displayName":  strings.TrimSpace(displayName),
		"passwordHash": string(hash),
		"createdAt":    docstore.ServerTimestamp(),
	})
	if err != nil {
		return auth.Session{}, fmt.Errorf("create user: %w", err)
	}

	sess := p.openSession(id, email)
	slog.InfoContext(ctx, "user registered", "user_id", sess.UserID)
	return sess, nil
}

func (p *Provider) SignOut(ctx context.Context, token string) error {
	p.mu.Lock()
	_, ok := p.sessions[token]
	delete(p.sessions, token)
	p.mu.Unlock()
	if !ok {
		return auth.ErrNoSession
	}

	p.notify(auth.State{Presence: auth.Absent})
	slog.InfoContext(ctx, "user signed out")
	return nil
}

func (p *Provider) Lookup(_ context.Context, token string) (auth.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.sessions[token]
	if !ok {
		return auth.Session{}, auth.ErrNoSession
	}
	if p.now().After(rec.expires) {
		delete(p.sessions, token)
		return auth.Session{}, auth.ErrNoSession
	}
	return rec.session, nil
}

// Subscribe registers fn for presence changes. The current state is
// delivered synchronously before Subscribe returns, so guards observe
// an existing session without waiting for the next event.
func (p *Provider) Subscribe(fn func(auth.State)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	current := p.last
	p.mu.Unlock()

	fn(current)

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *Provider) openSession(userID, email string) auth.Session {
	sess := auth.Session{
		Token:  uuid.NewString(),
		UserID: userID,
		Email:  email,
	}
	p.mu.Lock()
	p.sessions[sess.Token] = record{session: sess, expires: p.now().Add(p.sessionTTL)}
	p.mu.Unlock()

	p.notify(auth.State{Presence: auth.Present, Session: &sess})
	return sess
}

func (p *Provider) notify(s auth.State) {
	p.mu.Lock()
	p.last = s
	fns := make([]func(auth.State), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

func (p *Provider) findUser(ctx context.Context, email string) (docstore.Document, error) {
	docs, err := p.store.Query(ctx, usersCollection, []docstore.Where{
		{Field: "email", Op: docstore.OpEqual, Value: email},
	})
	if err != nil {
		return docstore.Document{}, err
	}
	if len(docs) == 0 {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return docs[0], nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
