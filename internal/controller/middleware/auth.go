// Package middleware contains HTTP middleware for the controller.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"agentplane/internal/auth"
	"agentplane/internal/store"
)

// orgKey is the context key for the authenticated organization.
type orgKey struct{}

// AuthMiddleware validates the Bearer API key on incoming requests and puts
// the owning organization into the request context. Every operation below
// this middleware is scoped by org ID.
func AuthMiddleware(orgs store.OrgStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
				return
			}

			hash := auth.HashKey(parts[1])
			org, err := orgs.GetOrgByAPIKeyHash(r.Context(), hash)
			if err != nil {
				if err == store.ErrNotFound {
					http.Error(w, "Invalid API key", http.StatusUnauthorized)
					return
				}
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			if org == nil {
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
				return
			}

			ctx := NewContextWithOrg(r.Context(), org)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewContextWithOrg returns a new context carrying the organization.
func NewContextWithOrg(ctx context.Context, org *store.Org) context.Context {
	return context.WithValue(ctx, orgKey{}, org)
}

// OrgFromContext extracts the authenticated organization from the context.
func OrgFromContext(ctx context.Context) (*store.Org, bool) {
	org, ok := ctx.Value(orgKey{}).(*store.Org)
	return org, ok
}
