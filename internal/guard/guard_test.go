package guard_test

import (
	"testing"

	"github.com/quizdesk/quizdesk/internal/api"
	"github.com/quizdesk/quizdesk/internal/guard"
)

type fakeCreds struct {
	authed bool
	role   string
}

func (f fakeCreds) IsAuthenticated() bool { return f.authed }
func (f fakeCreds) Role() string          { return f.role }

func TestResolveMatrix(t *testing.T) {
	anon := fakeCreds{}
	admin := fakeCreds{authed: true, role: api.RoleAdmin}
	student := fakeCreds{authed: true, role: api.RoleStudent}

	cases := []struct {
		name     string
		creds    fakeCreds
		req      guard.Requirement
		state    guard.State
		redirect string
	}{
		{"anon to public", anon, guard.Public, guard.Admitted, ""},
		{"anon to authenticated", anon, guard.Authenticated, guard.Denied, guard.ViewLogin},
		{"anon to admin view", anon, guard.RoleAdmin, guard.Denied, guard.ViewLogin},
		{"anon to student view", anon, guard.RoleStudent, guard.Denied, guard.ViewLogin},
		{"admin to admin view", admin, guard.RoleAdmin, guard.Admitted, ""},
		{"admin to student view", admin, guard.RoleStudent, guard.Denied, guard.ViewAdminHome},
		{"student to admin view", student, guard.RoleAdmin, guard.Denied, guard.ViewStudentHome},
		{"student to student view", student, guard.RoleStudent, guard.Admitted, ""},
		{"student to authenticated", student, guard.Authenticated, guard.Admitted, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := guard.New(tc.creds).Resolve(tc.req)
			if d.State != tc.state {
				t.Fatalf("state = %v, want %v", d.State, tc.state)
			}
			if d.RedirectTo != tc.redirect {
				t.Fatalf("redirect = %q, want %q", d.RedirectTo, tc.redirect)
			}
		})
	}
}

func TestDenialAlwaysHasRedirect(t *testing.T) {
	g := guard.New(fakeCreds{authed: true, role: "unknown"})
	d := g.Resolve(guard.RoleAdmin)
	if d.State != guard.Denied || d.RedirectTo == "" {
		t.Fatalf("denial without redirect: %+v", d)
	}
}
