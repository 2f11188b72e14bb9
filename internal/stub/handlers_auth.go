package stub

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quizdesk/quizdesk/internal/api"
	"github.com/quizdesk/quizdesk/internal/rbac"
)

func loginHandler(store Store, auth *AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		if req.Username == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "username and password required")
			return
		}
		u, err := store.GetUserByUsername(req.Username)
		if err != nil || !CheckPassword(u.PasswordHash, req.Password) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		issueSession(w, auth, u)
	}
}

func registerHandler(store Store, auth *AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
		if msg := validateRegistration(req); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		u := User{
			User: api.User{
				ID:        uuid.NewString(),
				Username:  req.Username,
				Email:     req.Email,
				FullName:  req.FullName,
				Role:      api.RoleStudent,
				CreatedAt: time.Now().UTC(),
			},
		}
		hash, err := HashPassword(req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "hash password")
			return
		}
		u.PasswordHash = hash
		if _, err := store.CreateUser(u); err != nil {
			if errors.Is(err, ErrExists) {
				writeError(w, http.StatusConflict, "username already taken")
				return
			}
			writeError(w, http.StatusInternalServerError, "create user")
			return
		}
		issueSession(w, auth, u)
	}
}

func issueSession(w http.ResponseWriter, auth *AuthService, u User) {
	tok, err := auth.IssueJWT(u.ID, u.Role)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "issue token")
		return
	}
	writeJSON(w, http.StatusOK, api.LoginResponse{
		AccessToken: tok,
		TokenType:   "bearer",
		User:        u.User,
	})
}

func meHandler(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := store.GetUser(rbac.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unknown user")
			return
		}
		writeJSON(w, http.StatusOK, u.User)
	}
}

// logoutHandler only acknowledges; tokens are stateless and the client
// clears its own credential storage.
func logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func validateRegistration(req api.RegisterRequest) string {
	switch {
	case len(strings.TrimSpace(req.Username)) < 3:
		return "username must be at least 3 characters"
	case len(req.Password) < 6:
		return "password must be at least 6 characters"
	case !strings.Contains(req.Email, "@"):
		return "invalid email"
	}
	return ""
}
