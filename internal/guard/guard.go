// AngelaMos | 2026
// guard.go

package guard

import (
	"context"
	"net/url"
)

type Decision int

const (
	Allow Decision = iota
	RedirectHome
	RedirectLogin
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectHome:
		return "redirect-home"
	case RedirectLogin:
		return "redirect-login"
	}
	return "unknown"
}

// Route describes access requirements for a command or view.
type Route struct {
	Path         string
	GuestOnly    bool
	RequiresAuth bool
	Roles        []string
}

// Auth is the session surface a guard needs.
type Auth interface {
	WaitReady(ctx context.Context) error
	IsAuthenticated() bool
	IsAuthorized(allowed ...string) bool
}

// Check waits for the session to resolve, then decides. Guest-only routes
// send signed-in users home, protected routes send anonymous users to
// login, and role-restricted routes send unauthorized users home.
func Check(ctx context.Context, auth Auth, r Route) (Decision, error) {
	if err := auth.WaitReady(ctx); err != nil {
		return RedirectLogin, err
	}

	switch {
	case r.GuestOnly && auth.IsAuthenticated():
		return RedirectHome, nil
	case r.RequiresAuth && !auth.IsAuthenticated():
		return RedirectLogin, nil
	case len(r.Roles) > 0 && !auth.IsAuthorized(r.Roles...):
		return RedirectHome, nil
	}
	return Allow, nil
}

// LoginTarget is the login location that returns to r afterwards.
func LoginTarget(r Route) string {
	if r.Path == "" {
		return "/login"
	}
	return "/login?" + url.Values{"redirect": {r.Path}}.Encode()
}
