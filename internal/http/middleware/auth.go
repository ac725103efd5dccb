package middleware

import (
	"io"
	"net/http"

	"github.com/rufatasadov/sober-driver-backend/internal/authz"
	"github.com/rufatasadov/sober-driver-backend/internal/domain"
	"github.com/rufatasadov/sober-driver-backend/internal/logx"
)

// TokenVerifier turns a bearer token into an actor.
type TokenVerifier interface {
	Verify(raw string) (domain.Actor, error)
}

// Auth rejects requests without a valid bearer token and stores the actor
// in the request context.
func Auth(verifier TokenVerifier, logger logx.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logx.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := verifier.Verify(r.Header.Get("Authorization"))
			if err != nil {
				logger.Debug("unauthenticated request",
					logx.String("path", r.URL.Path),
					logx.Err(err),
				)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="dispatch"`)
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"error":"unauthenticated"}`)
				return
			}
			next.ServeHTTP(w, r.WithContext(authz.WithActor(r.Context(), actor)))
		})
	}
}
