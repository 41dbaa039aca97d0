package httpapi

import (
	"context"
	"net/http"

	"github.com/mwhited/typerace-backend/internal/types"
)

type ctxKey int

const identityKey ctxKey = 0

// RequireIdentity trusts the upstream auth layer: requests arrive with
// an already-authenticated user in X-User-ID / X-Username. No identity,
// no access.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		username := r.Header.Get("X-Username")
		if userID == "" || username == "" {
			http.Error(w, "missing identity", http.StatusUnauthorized)
			return
		}
		user := types.UserRef{UserID: userID, Username: username}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, user)))
	})
}

func identity(r *http.Request) types.UserRef {
	user, _ := r.Context().Value(identityKey).(types.UserRef)
	return user
}
