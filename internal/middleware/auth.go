package middleware

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/radif/mediaservice/internal/apperror"
	"github.com/radif/mediaservice/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// identityKey is the context key for the authenticated caller.
const identityKey contextKey = "identity"

// Anonymous is recorded as uploader when no identity is available.
const Anonymous = "anonymous"

// Claims are the bearer token claims the service reads. The identity is taken
// from "sub", falling back to "id".
type Claims struct {
	jwt.RegisteredClaims
	UserID      string   `json:"id,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Identity is the caller exposed to downstream handlers.
type Identity struct {
	ID          string
	Permissions []string
}

// Has reports whether the identity was granted permission.
func (i *Identity) Has(permission string) bool {
	return slices.Contains(i.Permissions, permission)
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok && id != nil
}

// CallerID returns the caller's id, or Anonymous.
func CallerID(ctx context.Context) string {
	if id, ok := IdentityFromContext(ctx); ok && id.ID != "" {
		return id.ID
	}
	return Anonymous
}

// Authenticator verifies bearer tokens either with a shared HMAC secret or
// against a JWKS endpoint.
type Authenticator struct {
	keyfunc jwt.Keyfunc
	methods []string
	log     zerolog.Logger
}

// NewHMACAuthenticator verifies HS256/384/512 tokens signed with secret.
func NewHMACAuthenticator(secret string, log zerolog.Logger) *Authenticator {
	key := []byte(secret)
	return &Authenticator{
		keyfunc: func(*jwt.Token) (interface{}, error) { return key, nil },
		methods: []string{"HS256", "HS384", "HS512"},
		log:     log.With().Str("component", "auth").Logger(),
	}
}

// NewJWKSAuthenticator verifies RS256/ES256 tokens with keys fetched (and
// refreshed in the background) from jwksURL.
func NewJWKSAuthenticator(ctx context.Context, jwksURL string, log zerolog.Logger) (*Authenticator, error) {
	k, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("create jwks keyfunc: %w", err)
	}
	return &Authenticator{
		keyfunc: k.Keyfunc,
		methods: []string{"RS256", "ES256"},
		log:     log.With().Str("component", "auth").Str("jwks", jwksURL).Logger(),
	}, nil
}

// Verify parses an Authorization header value and returns the caller.
func (a *Authenticator) Verify(header string) (*Identity, error) {
	if strings.TrimSpace(header) == "" {
		return nil, apperror.Auth(apperror.ReasonMissing, "authorization header required")
	}

	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return nil, apperror.Auth(apperror.ReasonMalformed, "invalid authorization header format")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), claims, a.keyfunc,
		jwt.WithValidMethods(a.methods),
	)
	if err != nil || !token.Valid {
		a.log.Debug().Err(err).Msg("token rejected")
		return nil, apperror.Auth(apperror.ReasonInvalid, "invalid or expired token")
	}

	id := claims.Subject
	if id == "" {
		id = claims.UserID
	}
	if id == "" {
		return nil, apperror.Auth(apperror.ReasonInvalid, "invalid token claims")
	}
	return &Identity{ID: id, Permissions: claims.Permissions}, nil
}

// RequireAuth returns middleware that validates a Bearer token and injects
// the caller into the request context.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.Verify(r.Header.Get("Authorization"))
		if err != nil {
			response.Fail(w, r, a.log, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequirePermission guards destructive routes. It fails closed: a request
// passes only with an identity that holds a non-empty permission.
func RequirePermission(permission string, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			switch {
			case permission == "":
				log.Error().Str("path", r.URL.Path).Msg("permission guard configured without a permission")
				response.Fail(w, r, log, apperror.Auth(apperror.ReasonForbidden, "permission denied"))
				return
			case !ok:
				response.Fail(w, r, log, apperror.Auth(apperror.ReasonForbidden, "authentication required for this operation"))
				return
			case !id.Has(permission):
				response.Fail(w, r, log, apperror.Auth(apperror.ReasonForbidden, "permission denied: requires "+permission))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
