// Package access decides which principals may search and which entities they
// may read.
package access

import (
	"context"
	"slices"
	"strings"

	"github.com/alfredjeanlab/kquery/internal/model"
)

// Well-known roles.
const (
	RoleAdmin      = "admin"
	RoleRestricted = "restricted"
)

// Principal is the caller a search runs on behalf of.
type Principal struct {
	User  string
	Roles []string
}

// HasRole reports whether p carries role.
func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// ParseRoles splits a comma-separated role list, dropping blanks.
func ParseRoles(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal carried by ctx.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Checker gates searches and filters their rows.
type Checker interface {
	// CanSelect reports whether the caller may search entityType at all.
	CanSelect(ctx context.Context, entityType string) bool
	// CanRead reports whether the caller may see e.
	CanRead(ctx context.Context, e model.Entity) bool
}

// Policy is the server's checker. Searching needs a principal; restricted
// principals get nothing; admins read everything; everyone else reads what
// the entity makes visible to them.
type Policy struct{}

func (Policy) CanSelect(ctx context.Context, _ string) bool {
	p, ok := FromContext(ctx)
	return ok && !p.HasRole(RoleRestricted)
}

func (Policy) CanRead(ctx context.Context, e model.Entity) bool {
	p, ok := FromContext(ctx)
	if !ok {
		return false
	}
	if p.HasRole(RoleAdmin) {
		return true
	}
	if v, ok := e.(model.Visible); ok {
		return v.VisibleTo(p.User)
	}
	return true
}

// AllowAll permits everything. It backs local CLI searches.
type AllowAll struct{}

func (AllowAll) CanSelect(context.Context, string) bool     { return true }
func (AllowAll) CanRead(context.Context, model.Entity) bool { return true }
