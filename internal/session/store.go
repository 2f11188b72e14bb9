// Package session owns the credential lifecycle: durable storage on
// disk, the in-memory copy the rest of the program reads, and restore
// validation at startup. Only login, logout, and the auth-failure hook
// write; everything else reads.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/quizdesk/quizdesk/internal/api"
)

// Credential is what survives between invocations: the bearer token, the
// role tag, and the cached profile. Role and Profile are never populated
// without a token.
type Credential struct {
	Token   string   `json:"token"`
	Role    string   `json:"role"`
	Profile api.User `json:"profile"`
}

func (c Credential) IsAuthenticated() bool { return c.Token != "" }

func (c Credential) HasRole(role string) bool {
	return c.IsAuthenticated() && c.Role == role
}

// Store persists one credential to a single JSON file. Set and Clear are
// atomic: the file is replaced via rename or removed whole, so a crash
// can never leave a token without its role or vice versa.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath places the credential file under the user config
// directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "quizdesk", "credentials.json"), nil
}

func (s *Store) Set(c Credential) error {
	if c.Token == "" {
		return errors.New("credential store: refusing to persist empty token")
	}
	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("credential store: encode: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("credential store: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("credential store: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("credential store: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("credential store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credential store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("credential store: %w", err)
	}
	return nil
}

func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("credential store: clear: %w", err)
	}
	return nil
}

// Load reads the persisted credential. ok is false when none is stored
// or the stored record violates the token invariant.
func (s *Store) Load() (Credential, bool, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Credential{}, false, nil
	}
	if err != nil {
		return Credential{}, false, fmt.Errorf("credential store: %w", err)
	}
	var c Credential
	if err := json.Unmarshal(raw, &c); err != nil {
		// Corrupt file: treat as absent rather than wedging every start.
		return Credential{}, false, nil
	}
	if c.Token == "" {
		return Credential{}, false, nil
	}
	return c, true, nil
}
