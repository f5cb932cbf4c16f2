// Package auth implements the login gate and the logout handler.
package auth

import (
	"context"
	"errors"
	"log"

	"github.com/Dicklesworthstone/opsdash/internal/api"
	"github.com/Dicklesworthstone/opsdash/internal/model"
	"github.com/Dicklesworthstone/opsdash/internal/session"
)

const (
	DefaultRejectMessage  = "Invalid username or password. Please try again."
	ConnectFailureMessage = "Failed to connect to the server. Please try again later."
)

// Backend is the part of the API the gate and logout handler need.
type Backend interface {
	Login(ctx context.Context, creds model.Credentials) error
	Logout(ctx context.Context, username string) error
}

// SessionStore persists the local session.
type SessionStore interface {
	Load() (session.Session, bool, error)
	Save(session.Session) error
	Clear() error
}

// Kind says what the caller should do after a submission.
type Kind int

const (
	DisplayError Kind = iota
	NavigateDashboard
)

func (k Kind) String() string {
	if k == NavigateDashboard {
		return "navigate-dashboard"
	}
	return "display-error"
}

// Outcome is the single result of a login submission.
type Outcome struct {
	Kind    Kind
	Message string
}

// Gate handles login submissions.
type Gate struct {
	backend Backend
	store   SessionStore
}

func NewGate(backend Backend, store SessionStore) *Gate {
	return &Gate{backend: backend, store: store}
}

// Submit sends creds to the backend. It either writes the session and returns
// NavigateDashboard, or returns DisplayError; never both.
func (g *Gate) Submit(ctx context.Context, creds model.Credentials) Outcome {
	err := g.backend.Login(ctx, creds)
	if err != nil {
		var se *api.StatusError
		if errors.As(err, &se) {
			msg := se.Message
			if msg == "" {
				msg = DefaultRejectMessage
			}
			return Outcome{Kind: DisplayError, Message: msg}
		}
		log.Printf("[auth] login request failed: %v", err)
		return Outcome{Kind: DisplayError, Message: ConnectFailureMessage}
	}

	if err := g.store.Save(session.Session{Authenticated: true, Username: creds.Username}); err != nil {
		log.Printf("[auth] saving session for %q failed: %v", creds.Username, err)
		return Outcome{Kind: DisplayError, Message: ConnectFailureMessage}
	}
	return Outcome{Kind: NavigateDashboard}
}
