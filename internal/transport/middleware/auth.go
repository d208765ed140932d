package middleware

import (
	"net/http"
	"strings"

	"github.com/freightops/settlements/internal"
	"github.com/freightops/settlements/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
)

// OperatorClaims is the JWT payload for a back-office operator.
type OperatorClaims struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Authenticator validates the Bearer token on protected routes and puts
// the operator into the request context.
func Authenticator(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			claims := &OperatorClaims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !parsed.Valid {
				unauthorized(w, "invalid token")
				return
			}

			op := &internal.Operator{
				ID:          claims.Subject,
				Name:        claims.Name,
				Permissions: claims.Permissions,
			}
			ctx := internal.ContextWithOperator(r.Context(), op)
			ctx = logger.With(ctx, "operator_id", op.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission guards a route group behind one permission; "admin"
// passes everything.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op, ok := internal.OperatorFromContext(r.Context())
			if !ok {
				unauthorized(w, "missing operator")
				return
			}
			if !op.HasPermission(perm) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"code":403,"message":"permission denied"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(header, "Bearer ")
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"code":401,"message":"` + message + `"}`))
}
