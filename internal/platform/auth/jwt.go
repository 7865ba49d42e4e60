package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/example/trig-gallery/internal/platform/api"
	"github.com/example/trig-gallery/internal/platform/httpserver"
)

// AnonymousVisitor owns the viewed history of requests that carry no identity.
const AnonymousVisitor = "anonymous"

// VisitorHeader lets unauthenticated clients pick a stable history key.
const VisitorHeader = "X-Visitor-Id"

type ctxKeyVisitorID struct{}
type ctxKeyRole struct{}
type ctxKeyBearer struct{}

func VisitorIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyVisitorID{}).(string)
	return v, ok
}

// WithVisitorID injects visitor_id into context. Useful for testing.
func WithVisitorID(ctx context.Context, vid string) context.Context {
	return context.WithValue(ctx, ctxKeyVisitorID{}, vid)
}

func RoleFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyRole{}).(string)
	return v, ok
}

// BearerTokenFromContext returns the raw bearer token of the request, if any.
func BearerTokenFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyBearer{}).(string)
	return v, ok && v != ""
}

type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// JWTVerifier checks HS256 tokens issued for gallery visitors.
type JWTVerifier struct {
	Secret []byte
	// Leeway tolerates clock skew on exp/nbf.
	Leeway time.Duration
}

func (v JWTVerifier) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return v.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(v.Leeway))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// bearer extracts the token from an "Authorization: Bearer" header.
func bearer(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		return "", false
	}
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	return tok, tok != ""
}

// RequireVisitor validates the Bearer token and injects the subject as visitor_id.
func RequireVisitor(verifier JWTVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := bearer(r)
			if !ok {
				api.Unauthorized(w, "UNAUTHENTICATED", "Bearer token required", httpserver.RequestIDFromContext(r.Context()))
				return
			}
			claims, err := verifier.Parse(tok)
			if err != nil || strings.TrimSpace(claims.Subject) == "" {
				api.Unauthorized(w, "INVALID_TOKEN", "Bearer token rejected", httpserver.RequestIDFromContext(r.Context()))
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims, tok)))
		})
	}
}

// IdentifyVisitor resolves the visitor without requiring authentication:
// a verified JWT subject wins, then the X-Visitor-Id header, then
// AnonymousVisitor. With a nil verifier bearer tokens are forwarded but not
// used for identity. An invalid token is rejected with 401 rather than
// silently downgraded to anonymous.
func IdentifyVisitor(verifier *JWTVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			tok, hasTok := bearer(r)
			if hasTok {
				ctx = context.WithValue(ctx, ctxKeyBearer{}, tok)
			}
			if hasTok && verifier != nil {
				claims, err := verifier.Parse(tok)
				if err != nil || strings.TrimSpace(claims.Subject) == "" {
					api.Unauthorized(w, "INVALID_TOKEN", "Bearer token rejected", httpserver.RequestIDFromContext(r.Context()))
					return
				}
				next.ServeHTTP(w, r.WithContext(withClaims(ctx, claims, tok)))
				return
			}
			vid := strings.TrimSpace(r.Header.Get(VisitorHeader))
			if vid == "" {
				vid = AnonymousVisitor
			}
			next.ServeHTTP(w, r.WithContext(WithVisitorID(ctx, vid)))
		})
	}
}

func withClaims(ctx context.Context, claims *Claims, tok string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyVisitorID{}, claims.Subject)
	ctx = context.WithValue(ctx, ctxKeyBearer{}, tok)
	if strings.TrimSpace(claims.Role) != "" {
		ctx = context.WithValue(ctx, ctxKeyRole{}, claims.Role)
	}
	return ctx
}
