package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quizdesk/quizdesk/internal/api"
	"github.com/quizdesk/quizdesk/internal/logging"
)

// Session is the process-wide credential state, explicitly constructed
// and injected rather than reached through a global. It mirrors the
// durable store in memory so reads never touch disk.
type Session struct {
	mu    sync.RWMutex
	store *Store
	cred  Credential
	log   *logging.Logger
	now   func() time.Time
}

func New(store *Store, log *logging.Logger) *Session {
	if log == nil {
		log = logging.Nop()
	}
	return &Session{store: store, log: log, now: time.Now}
}

// Token is what the API client's token source reads. Empty when logged
// out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.Token
}

func (s *Session) Credential() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.IsAuthenticated()
}

func (s *Session) HasRole(role string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.HasRole(role)
}

// Role returns the stored role tag, empty when logged out.
func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.Role
}

// Establish records a fresh login: durable first, then memory, so a
// write failure never leaves the two views disagreeing.
func (s *Session) Establish(c Credential) error {
	if err := s.store.Set(c); err != nil {
		return err
	}
	s.mu.Lock()
	s.cred = c
	s.mu.Unlock()
	s.log.Debug("session established", "role", c.Role, "user", c.Profile.Username)
	return nil
}

// Invalidate clears both views. It is the API client's auth-failure hook
// and the logout path; a failed file removal is logged, not returned,
// since the in-memory clear already logs the user out for this process.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.cred = Credential{}
	s.mu.Unlock()
	if err := s.store.Clear(); err != nil {
		s.log.Warn("clearing stored credential failed", "err", err)
	}
}

// Restore loads the persisted credential and validates it: a token whose
// claims show it already expired is discarded locally, anything else is
// confirmed against the backend via validate (the current-user lookup).
// Any validation failure clears storage; the process starts logged out.
func (s *Session) Restore(ctx context.Context, validate func(context.Context) (api.User, error)) error {
	cred, ok, err := s.store.Load()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if expired, exp := tokenExpired(cred.Token, s.now()); expired {
		s.log.Debug("stored token expired, clearing", "expired_at", exp)
		s.Invalidate()
		return nil
	}
	// The credential goes into memory before validation so that validate,
	// which calls the backend through the shared token source, sends it.
	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()
	user, err := validate(ctx)
	if err != nil {
		s.log.Debug("stored credential rejected", "err", err)
		s.Invalidate()
		return nil
	}
	s.mu.Lock()
	s.cred.Profile = user
	s.cred.Role = user.Role
	s.mu.Unlock()
	s.log.Debug("session restored", "role", cred.Role, "user", user.Username)
	return nil
}

// tokenExpired peeks at the token's registered claims without verifying
// the signature; verification is the backend's job. Opaque or claimless
// tokens pass through to backend validation.
func tokenExpired(token string, now time.Time) (bool, time.Time) {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return false, time.Time{}
	}
	if claims.ExpiresAt == nil {
		return false, time.Time{}
	}
	return claims.ExpiresAt.Time.Before(now), claims.ExpiresAt.Time
}
