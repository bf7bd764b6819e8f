package middleware

import (
	"context"
	"net/http"
)

type ctxKey struct{}

// Identifier resolves the username of a request.
type Identifier interface {
	Identify(r *http.Request) (string, bool)
}

// Identity stores the caller's username in the request context. Anonymous
// requests pass through unchanged.
func Identity(ident Identifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if username, ok := ident.Identify(r); ok {
				r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, username))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Username returns the identity stored by Identity.
func Username(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(ctxKey{}).(string)
	return username, ok && username != ""
}
