package auth

import (
	"sync"
)

// Decision is the guard's answer for a protected view.
type Decision int

const (
	// RenderPending means no presence event has arrived yet: show a
	// placeholder, neither the protected content nor a login redirect.
	RenderPending Decision = iota
	// RenderProtected means a session is present.
	RenderProtected
	// RedirectToLogin means the stream reported no session.
	RedirectToLogin
)

// Guard subscribes to an auth-state stream and tracks whether protected
// content may render. It starts Indeterminate and moves to Authorized or
// Unauthorized on every event; the subscription is released exactly once
// by Close, so no listener dangles after the guard is done.
type Guard struct {
	mu      sync.Mutex
	state   State
	unsub   func()
	closers sync.Once
}

// NewGuard subscribes the guard to the stream. The provider delivers
// the current state on subscription, so an already-signed-in user never
// sees a login redirect flash.
func NewGuard(stream Subscriber) *Guard {
	g := &Guard{state: State{Presence: Indeterminate}}
	g.unsub = stream.Subscribe(g.onEvent)
	return g
}

func (g *Guard) onEvent(s State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = s
}

// Decide maps the last observed stream state to a render decision.
func (g *Guard) Decide() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.state.Presence {
	case Present:
		return RenderProtected
	case Absent:
		return RedirectToLogin
	}
	return RenderPending
}

// Session returns the session from the last Present event, or nil.
func (g *Guard) Session() *Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state.Presence != Present {
		return nil
	}
	return g.state.Session
}

// Close releases the subscription. Safe to call more than once; only
// the first call unsubscribes.
func (g *Guard) Close() {
	g.closers.Do(func() {
		if g.unsub != nil {
			g.unsub()
		}
	})
}
