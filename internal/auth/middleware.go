package auth

import (
	"context"
	"net/http"
	"strings"

	"service-note-backend/internal/analytics"
)

type ctxKey string

const helperKey ctxKey = "helper_email"

type Middleware struct {
	secret []byte
}

func New(secret []byte) Middleware {
	return Middleware{secret: secret}
}

func (m Middleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		email, err := ParseToken(m.secret, strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), helperKey, email)
		ctx = analytics.WithHelper(ctx, email)

		next(w, r.WithContext(ctx))
	}
}

func HelperFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(helperKey).(string)
	return email, ok && email != ""
}
