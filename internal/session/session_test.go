package session_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/quizdesk/quizdesk/internal/api"
	"github.com/quizdesk/quizdesk/internal/logging"
	"github.com/quizdesk/quizdesk/internal/session"
)

func newStore(t *testing.T) *session.Store {
	t.Helper()
	return session.NewStore(filepath.Join(t.TempDir(), "credentials.json"))
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	st := session.NewStore(path)

	cred := session.Credential{
		Token:   "tok",
		Role:    api.RoleStudent,
		Profile: api.User{Username: "alice", Role: api.RoleStudent},
	}
	if err := st.Set(cred); err != nil {
		t.Fatalf("set: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("credential file mode = %v, want 0600", perm)
	}
	got, ok, err := st.Load()
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Token != "tok" || got.Role != api.RoleStudent || got.Profile.Username != "alice" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestStoreRejectsEmptyToken(t *testing.T) {
	st := newStore(t)
	if err := st.Set(session.Credential{Role: api.RoleAdmin}); err == nil {
		t.Fatal("empty token accepted")
	}
}

func TestStoreCorruptFileTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, ok, err := session.NewStore(path).Load()
	if err != nil || ok {
		t.Fatalf("corrupt load: ok=%v err=%v", ok, err)
	}
}

func TestClearRemovesEverythingAtOnce(t *testing.T) {
	st := newStore(t)
	sess := session.New(st, logging.Nop())
	cred := session.Credential{Token: "tok", Role: api.RoleAdmin, Profile: api.User{Username: "boss"}}
	if err := sess.Establish(cred); err != nil {
		t.Fatalf("establish: %v", err)
	}
	if !sess.IsAuthenticated() || !sess.HasRole(api.RoleAdmin) {
		t.Fatal("session not established")
	}

	sess.Invalidate()

	if sess.IsAuthenticated() {
		t.Fatal("IsAuthenticated true after clear")
	}
	if got := sess.Credential(); got.Token != "" || got.Role != "" || got.Profile.Username != "" {
		t.Fatalf("partial credential survived clear: %+v", got)
	}
	if _, ok, _ := st.Load(); ok {
		t.Fatal("durable credential survived clear")
	}
}

func TestRestoreNoStoredCredential(t *testing.T) {
	sess := session.New(newStore(t), logging.Nop())
	called := false
	err := sess.Restore(context.Background(), func(context.Context) (api.User, error) {
		called = true
		return api.User{}, nil
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if called {
		t.Fatal("validate called with nothing stored")
	}
	if sess.IsAuthenticated() {
		t.Fatal("authenticated after empty restore")
	}
}

func TestRestoreExpiredTokenClearsLocally(t *testing.T) {
	st := newStore(t)
	expired := signedToken(t, time.Now().Add(-time.Hour))
	if err := st.Set(session.Credential{Token: expired, Role: api.RoleStudent}); err != nil {
		t.Fatal(err)
	}
	sess := session.New(st, logging.Nop())
	called := false
	_ = sess.Restore(context.Background(), func(context.Context) (api.User, error) {
		called = true
		return api.User{}, nil
	})
	if called {
		t.Fatal("backend consulted for a locally expired token")
	}
	if sess.IsAuthenticated() {
		t.Fatal("expired credential restored")
	}
	if _, ok, _ := st.Load(); ok {
		t.Fatal("expired credential still on disk")
	}
}

func TestRestoreBackendRejectionClears(t *testing.T) {
	st := newStore(t)
	valid := signedToken(t, time.Now().Add(time.Hour))
	if err := st.Set(session.Credential{Token: valid, Role: api.RoleStudent}); err != nil {
		t.Fatal(err)
	}
	sess := session.New(st, logging.Nop())
	_ = sess.Restore(context.Background(), func(context.Context) (api.User, error) {
		return api.User{}, errors.New("401")
	})
	if sess.IsAuthenticated() {
		t.Fatal("rejected credential restored")
	}
	if _, ok, _ := st.Load(); ok {
		t.Fatal("rejected credential still on disk")
	}
}

func TestRestoreSuccessRefreshesProfile(t *testing.T) {
	st := newStore(t)
	valid := signedToken(t, time.Now().Add(time.Hour))
	if err := st.Set(session.Credential{Token: valid, Role: api.RoleStudent, Profile: api.User{Username: "old"}}); err != nil {
		t.Fatal(err)
	}
	sess := session.New(st, logging.Nop())
	err := sess.Restore(context.Background(), func(context.Context) (api.User, error) {
		return api.User{Username: "fresh", Role: api.RoleStudent}, nil
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !sess.HasRole(api.RoleStudent) {
		t.Fatal("role not restored")
	}
	if got := sess.Credential().Profile.Username; got != "fresh" {
		t.Fatalf("profile not refreshed: %q", got)
	}
	if sess.Token() != valid {
		t.Fatal("token changed during restore")
	}
}

func TestRestoreSendsStoredToken(t *testing.T) {
	st := newStore(t)
	valid := signedToken(t, time.Now().Add(time.Hour))
	if err := st.Set(session.Credential{Token: valid, Role: api.RoleStudent}); err != nil {
		t.Fatal(err)
	}
	sess := session.New(st, logging.Nop())
	var seen string
	_ = sess.Restore(context.Background(), func(context.Context) (api.User, error) {
		seen = sess.Token()
		return api.User{Username: "s", Role: api.RoleStudent}, nil
	})
	if seen != valid {
		t.Fatalf("validate ran without the stored token: %q", seen)
	}
}

func TestOpaqueTokenGoesToBackend(t *testing.T) {
	st := newStore(t)
	if err := st.Set(session.Credential{Token: "opaque-not-a-jwt", Role: api.RoleAdmin}); err != nil {
		t.Fatal(err)
	}
	sess := session.New(st, logging.Nop())
	called := false
	_ = sess.Restore(context.Background(), func(context.Context) (api.User, error) {
		called = true
		return api.User{Username: "boss", Role: api.RoleAdmin}, nil
	})
	if !called {
		t.Fatal("opaque token skipped backend validation")
	}
	if !sess.IsAuthenticated() {
		t.Fatal("valid opaque token not restored")
	}
}
