package stub

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/quizdesk/quizdesk/internal/api"
)

// SeedUsers creates the development accounts if they are not present.
// Dev only; real deployments provision users elsewhere.
func SeedUsers(store Store) error {
	seeds := []struct {
		username, password, fullName, role string
	}{
		{"admin", "admin123", "Default Admin", api.RoleAdmin},
		{"student", "student123", "Demo Student", api.RoleStudent},
	}
	for _, s := range seeds {
		if _, err := store.GetUserByUsername(s.username); err == nil {
			continue
		}
		hash, err := HashPassword(s.password)
		if err != nil {
			return err
		}
		u := User{
			User: api.User{
				ID:        uuid.NewString(),
				Username:  s.username,
				Email:     s.username + "@quizdesk.local",
				FullName:  s.fullName,
				Role:      s.role,
				CreatedAt: time.Now().UTC(),
			},
			PasswordHash: hash,
		}
		if _, err := store.CreateUser(u); err != nil && !errors.Is(err, ErrExists) {
			return err
		}
	}
	return nil
}
