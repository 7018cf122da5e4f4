package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const (
	tokenHeader              = "Authorization"
	tokenPrefix              = "Bearer "
	AccountIDKey  contextKey = "account_id"
	ClaimsKey     contextKey = "claims"
)

// Middleware validates the bearer token and injects the caller's account
// identifier into the request context. Requests without a valid token are
// rejected before they reach the engine.
func Middleware(signer *Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get(tokenHeader)
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			if !strings.HasPrefix(authHeader, tokenPrefix) {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			token := strings.TrimPrefix(authHeader, tokenPrefix)
			claims, err := signer.ValidateToken(token)
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			account, err := claims.AccountID()
			if err != nil {
				http.Error(w, "invalid account in token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			ctx = context.WithValue(ctx, AccountIDKey, account)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountFromContext retrieves the caller's account identifier from the context.
func AccountFromContext(ctx context.Context) (uuid.UUID, bool) {
	account, ok := ctx.Value(AccountIDKey).(uuid.UUID)
	return account, ok
}

// ClaimsFromContext retrieves the full claims from the context.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}
