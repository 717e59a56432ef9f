package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of this type, so nothing else can
// read or overwrite the identity stored in a request context.
type contextKey string

const identityKey contextKey = "identity"

// Identity is what the gates attach to an authenticated request.
type Identity struct {
	UserID  string
	IsAdmin bool
}

// Decoder is the part of TokenService the gates need.
type Decoder interface {
	Decode(token string) (*Claims, error)
}

// RequireAuth is the identity gate for protected routes.
//
// It reads "Authorization: Bearer <token>", decodes it and stores the
// caller's Identity in the request context. A missing header or any decode
// failure (bad signature, malformed, expired) stops the chain with 401 and
// the same body, so the client cannot tell which check failed.
//
// CORS pre-flight (OPTIONS) requests pass straight through without an
// identity. Routes must not mutate state on OPTIONS.
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireAuth(tokens Decoder, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthenticated(w)
				return
			}

			claims, err := tokens.Decode(raw)
			if err != nil {
				logger.Debug("token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				unauthenticated(w)
				return
			}

			ctx := ContextWithIdentity(r.Context(), Identity{
				UserID:  claims.UserID,
				IsAdmin: claims.IsAdmin,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin is the role gate. It must be mounted after RequireAuth.
//
// The role comes from the token claim only; storage is never consulted. An
// admin demoted after login keeps admin rights until the token expires.
//
// Unlike RequireAuth it has no pre-flight exemption: every method, OPTIONS
// included, needs an admin identity. Pre-flight is answered by the CORS
// middleware before the gates run.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			unauthenticated(w)
			return
		}
		if !id.IsAdmin {
			writeGateError(w, http.StatusForbidden, `{"error":"forbidden","message":"admin access required"}`)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ContextWithIdentity returns a copy of ctx carrying id.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the caller set by RequireAuth.
// Returns false on routes that are not behind the gate.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.UserID != ""
}

// bearerToken extracts the token from an Authorization header value.
// The scheme is matched case-insensitively.
func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func unauthenticated(w http.ResponseWriter) {
	writeGateError(w, http.StatusUnauthorized, `{"error":"unauthenticated","message":"valid authentication required"}`)
}

func writeGateError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body + "\n"))
}
