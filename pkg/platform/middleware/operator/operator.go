// Package operator guards the treasury administration endpoints. Callers
// present an HS256 bearer token carrying role=operator; everything else is
// rejected before the handler runs.
package operator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"mintgate/pkg/platform/httputil"
)

type contextKeySubject struct{}

// GetSubject returns the authenticated operator subject from the context.
func GetSubject(ctx context.Context) string {
	subject, ok := ctx.Value(contextKeySubject{}).(string)
	if !ok {
		return ""
	}
	return subject
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RequireOperator validates the bearer token and requires the operator role.
func RequireOperator(secret []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(r.Context(), "operator access without bearer token")
				httputil.WriteErrorCode(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			var c claims
			parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !parsed.Valid {
				logger.WarnContext(r.Context(), "operator token rejected", "error", err)
				httputil.WriteErrorCode(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}
			if c.Role != "operator" {
				logger.WarnContext(r.Context(), "operator role missing", "subject", c.Subject)
				httputil.WriteErrorCode(w, http.StatusForbidden, "forbidden", "Operator role required")
				return
			}

			ctx := context.WithValue(r.Context(), contextKeySubject{}, c.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
