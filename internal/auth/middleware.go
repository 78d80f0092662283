package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HanTheDev/oncoassist/internal/quota"
)

type contextKey string

const (
	IdentityContextKey contextKey = "identity"
	ClaimsContextKey   contextKey = "claims"
)

const (
	// SessionCookieName carries the signed token of a logged-in user.
	SessionCookieName = "session"
	// AnonymousCookieName carries the anonymous session token.
	AnonymousCookieName = "anon_session"
)

type Middleware struct {
	jwtSecret string
	secure    bool
	logger    *zap.Logger
}

func NewMiddleware(jwtSecret string, secureCookies bool, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{jwtSecret: jwtSecret, secure: secureCookies, logger: logger}
}

// Resolve attaches an identity to every request. It never rejects: a
// missing, malformed or expired token makes the caller anonymous.
func (m *Middleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if token := bearerOrCookie(r); token != "" {
			claims, err := ValidateToken(token, m.jwtSecret)
			if err == nil {
				ctx = context.WithValue(ctx, ClaimsContextKey, claims)
				ctx = context.WithValue(ctx, IdentityContextKey, quota.Identity(quota.Authenticated{UserID: claims.UserID}))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			m.logger.Debug("Token rejected, continuing as anonymous", zap.Error(err))
		}

		id := quota.Anonymous{SessionToken: m.anonymousToken(w, r)}
		ctx = context.WithValue(ctx, IdentityContextKey, quota.Identity(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// anonymousToken returns the caller's anonymous session token, issuing a
// new one when absent or malformed. The cookie expiry rolls forward on
// every request.
func (m *Middleware) anonymousToken(w http.ResponseWriter, r *http.Request) string {
	token := ""
	if c, err := r.Cookie(AnonymousCookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			token = c.Value
		}
	}
	if token == "" {
		token = uuid.NewString()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     AnonymousCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(quota.CounterTTL.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

func bearerOrCookie(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// SetSessionCookie stores a signed token for browser clients.
func (m *Middleware) SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Middleware) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// IdentityFromContext returns the resolved identity. A request that never
// went through Resolve is treated as anonymous.
func IdentityFromContext(ctx context.Context) quota.Identity {
	if id, ok := ctx.Value(IdentityContextKey).(quota.Identity); ok && id != nil {
		return id
	}
	return quota.Anonymous{}
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(*Claims)
	return claims, ok
}
