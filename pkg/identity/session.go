package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNoSession is returned when no session has been persisted locally.
	// The user must authenticate before any chat component may proceed.
	ErrNoSession = errors.New("no session")
	// ErrInvalidSession is returned when the persisted session blob cannot
	// be decoded or does not identify a user.
	ErrInvalidSession = errors.New("invalid session")
)

// Session is the resolved local session: the canonical current user plus the
// bearer credential used for every backend call.
type Session struct {
	User  User
	Token string
}

// sessionBlob is the persisted wire form of a session.
type sessionBlob struct {
	User  Profile `json:"user"`
	Token string  `json:"token"`
}

// Store persists the raw session blob and exposes the adjacent profile
// records used to repair sessions that predate the email field.
type Store interface {
	// LoadSession returns the persisted session blob.
	// If no session has been persisted it returns ErrNoSession.
	LoadSession(ctx context.Context) ([]byte, error)

	// SaveSession persists the session blob, replacing any previous one.
	SaveSession(ctx context.Context, blob []byte) error

	// ClearSession removes the persisted session. It is a no-op when no
	// session exists.
	ClearSession(ctx context.Context) error

	// LookupEmail returns the email recorded for a user in the fallback
	// profile store, or "" when none is known.
	LookupEmail(ctx context.Context, userID int) (string, error)
}

// Resolver derives the current user from the persisted session.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve loads and canonicalizes the current session. A session missing its
// email is repaired from the fallback profile store and persisted back.
func (r *Resolver) Resolve(ctx context.Context) (*Session, error) {
	raw, err := r.store.LoadSession(ctx)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	var blob sessionBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return nil, ErrInvalidSession
	}
	if blob.User.ID <= 0 || blob.Token == "" {
		return nil, ErrInvalidSession
	}

	if blob.User.Email == "" {
		email, err := r.store.LookupEmail(ctx, blob.User.ID)
		if err != nil {
			return nil, fmt.Errorf("lookup email: %w", err)
		}
		if email != "" {
			blob.User.Email = email
			if repaired, err := json.Marshal(blob); err == nil {
				// Best effort; the in-memory session is already repaired.
				_ = r.store.SaveSession(ctx, repaired)
			}
		}
	}

	return &Session{User: blob.User.Canonical(), Token: blob.Token}, nil
}

// Save persists a freshly authenticated session wholesale.
func (r *Resolver) Save(ctx context.Context, user Profile, token string) error {
	raw, err := json.Marshal(sessionBlob{User: user, Token: token})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.store.SaveSession(ctx, raw); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
