package auth

import "github.com/spec-kit/pod-console/internal/domain"

// Decision is the outcome of a route guard.
type Decision struct {
	Allow    bool
	Redirect string
}

// Guard decides whether a navigation target may be shown.
type Guard func(hasToken bool, role domain.Role) Decision

// Policy holds the redirect targets shared by every guard.
type Policy struct {
	LoginPath        string
	UnauthorizedPath string
}

// Elevated admits only Admin with a token.
func (p Policy) Elevated() Guard {
	return p.requireRoles(domain.RoleAdmin)
}

// Standard admits Admin and Manager with a token.
func (p Policy) Standard() Guard {
	return p.requireRoles(domain.RoleAdmin, domain.RoleManager)
}

// AnyRole only checks that a role is set; the token is not consulted.
func (p Policy) AnyRole() Guard {
	return func(_ bool, role domain.Role) Decision {
		if !role.IsSet() {
			return Decision{Redirect: p.LoginPath}
		}
		return Decision{Allow: true}
	}
}

func (p Policy) requireRoles(allowed ...domain.Role) Guard {
	return func(hasToken bool, role domain.Role) Decision {
		if !hasToken {
			return Decision{Redirect: p.LoginPath}
		}
		if !role.In(allowed...) {
			return Decision{Redirect: p.UnauthorizedPath}
		}
		return Decision{Allow: true}
	}
}
