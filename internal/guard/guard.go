// Package guard decides whether the current credential state admits a
// view. Resolution runs Loading -> Admitted | Denied; a denial always
// names the view to land on instead, so callers redirect rather than
// error.
package guard

import "github.com/quizdesk/quizdesk/internal/api"

// Requirement is the access level a view declares.
type Requirement int

const (
	Public Requirement = iota
	Authenticated
	RoleAdmin
	RoleStudent
)

func (r Requirement) String() string {
	switch r {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case RoleAdmin:
		return "admin-only"
	case RoleStudent:
		return "student-only"
	}
	return "unknown"
}

// State of one resolution.
type State int

const (
	Loading State = iota
	Admitted
	Denied
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Admitted:
		return "admitted"
	case Denied:
		return "denied"
	}
	return "unknown"
}

// Landing views for redirects.
const (
	ViewLogin       = "login"
	ViewAdminHome   = "admin"
	ViewStudentHome = "student"
)

// Decision is the outcome of resolving one view entry. RedirectTo is set
// only when State is Denied.
type Decision struct {
	State      State
	RedirectTo string
}

// CredentialReader is the slice of the session the guard consults.
type CredentialReader interface {
	IsAuthenticated() bool
	Role() string
}

type Guard struct {
	creds CredentialReader
}

func New(creds CredentialReader) *Guard {
	return &Guard{creds: creds}
}

// Resolve assumes credential restore has finished; the portal holds
// views in Loading until then.
func (g *Guard) Resolve(req Requirement) Decision {
	switch req {
	case Public:
		return Decision{State: Admitted}
	case Authenticated:
		if g.creds.IsAuthenticated() {
			return Decision{State: Admitted}
		}
		return Decision{State: Denied, RedirectTo: ViewLogin}
	case RoleAdmin:
		return g.resolveRole(api.RoleAdmin)
	case RoleStudent:
		return g.resolveRole(api.RoleStudent)
	}
	return Decision{State: Denied, RedirectTo: ViewLogin}
}

func (g *Guard) resolveRole(role string) Decision {
	if !g.creds.IsAuthenticated() {
		return Decision{State: Denied, RedirectTo: ViewLogin}
	}
	if g.creds.Role() == role {
		return Decision{State: Admitted}
	}
	return Decision{State: Denied, RedirectTo: HomeFor(g.creds.Role())}
}

// HomeFor maps a role to its landing view. Unknown roles land on login.
func HomeFor(role string) string {
	switch role {
	case api.RoleAdmin:
		return ViewAdminHome
	case api.RoleStudent:
		return ViewStudentHome
	}
	return ViewLogin
}
