// Package session holds the admin bearer token for the lifetime of a login.
//
// A Session is created once and injected into everything that talks to the
// admin API. It is written at login, read by every outgoing request, and
// cleared at logout or when the upstream rejects the token.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"magicpic_admin/internal/domain"
	"magicpic_admin/internal/logger"

	"github.com/golang-jwt/jwt/v5"
)

// Storage keys shared by every Store implementation.
const (
	TokenKey = "admin_token"
	AdminKey = "admin_user"
)

// ErrNoSession is returned when no usable token is stored.
var ErrNoSession = errors.New("no active admin session")

// State is what a Store persists.
type State struct {
	Token     string        `json:"token"`
	Admin     *domain.Admin `json:"admin,omitempty"`
	ExpiresAt time.Time     `json:"expires_at,omitempty"`
}

// Store persists the session state. Load returns ErrNoSession when empty.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, st State) error
	Clear(ctx context.Context) error
}

// Session is the process-wide admin session context.
type Session struct {
	store Store
	now   func() time.Time

	mu        sync.Mutex
	onExpired []func(reason string)
}

// New wraps store.
func New(store Store) *Session {
	return &Session{store: store, now: time.Now}
}

// OnExpired registers fn to run when the session is cleared because the
// token expired or was rejected.
func (s *Session) OnExpired(fn func(reason string)) {
	s.mu.Lock()
	s.onExpired = append(s.onExpired, fn)
	s.mu.Unlock()
}

// Begin stores a freshly issued token. expiresIn is the login's expires_in.
func (s *Session) Begin(ctx context.Context, token string, admin *domain.Admin, expiresIn time.Duration) error {
	if token == "" {
		return errors.New("empty access token")
	}
	st := State{Token: token, Admin: admin}
	if exp, ok := tokenExpiry(token); ok {
		st.ExpiresAt = exp
	} else if expiresIn > 0 {
		st.ExpiresAt = s.now().Add(expiresIn)
	}
	return s.store.Save(ctx, st)
}

// Token returns the stored bearer token if there is one that has not expired.
func (s *Session) Token(ctx context.Context) (string, bool) {
	st, err := s.store.Load(ctx)
	if err != nil || st.Token == "" {
		return "", false
	}
	if !st.ExpiresAt.IsZero() && !s.now().Before(st.ExpiresAt) {
		s.Expire(ctx, "token expired")
		return "", false
	}
	return st.Token, true
}

// Admin returns the stored admin profile.
func (s *Session) Admin(ctx context.Context) (*domain.Admin, error) {
	st, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if st.Admin == nil {
		return nil, ErrNoSession
	}
	return st.Admin, nil
}

// UpdateAdmin refreshes the stored profile without touching the token.
func (s *Session) UpdateAdmin(ctx context.Context, admin *domain.Admin) error {
	st, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	st.Admin = admin
	return s.store.Save(ctx, st)
}

// End clears the session after an explicit logout.
func (s *Session) End(ctx context.Context) error {
	return s.store.Clear(ctx)
}

// Expire clears the session after the token was rejected or ran out, and
// notifies the OnExpired observers.
func (s *Session) Expire(ctx context.Context, reason string) {
	if err := s.store.Clear(ctx); err != nil {
		logger.Component("session").Error("failed to clear session", "error", err)
	}

	s.mu.Lock()
	hooks := append([]func(string){}, s.onExpired...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn(reason)
	}
}

// Subject returns the "sub" claim of token without verifying the signature.
// The upstream verifies tokens; the console only uses the claim as a key.
func Subject(token string) (string, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", false
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}

func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
