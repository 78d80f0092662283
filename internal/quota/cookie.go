package quota

import (
	"context"
	"net/http"
)

// CookieName holds the anonymous query counter on the client.
const CookieName = "queryCount"

// CookieStore keeps an anonymous caller's counter in a cookie. It is bound
// to a single request: Load reads the request cookie and Store sets it on
// the response with a fresh seven day expiry.
//
// Two concurrent requests from one browser both read the same value and
// both write value+1, so one increment is lost. Deployments that need an
// exact count use RedisStore.
type CookieStore struct {
	r      *http.Request
	w      http.ResponseWriter
	secure bool

	written bool
	value   int64
}

func NewCookieStore(w http.ResponseWriter, r *http.Request, secure bool) *CookieStore {
	return &CookieStore{r: r, w: w, secure: secure}
}

func (s *CookieStore) Load(ctx context.Context, id Identity) (int64, error) {
	if _, ok := id.(Anonymous); !ok {
		return 0, ErrUnsupportedIdentity
	}
	if s.written {
		return s.value, nil
	}
	if s.r == nil {
		return 0, nil
	}
	cookie, err := s.r.Cookie(CookieName)
	if err != nil {
		return 0, nil
	}
	return ParseCounter(cookie.Value), nil
}

func (s *CookieStore) Store(ctx context.Context, id Identity, n int64) error {
	if _, ok := id.(Anonymous); !ok {
		return ErrUnsupportedIdentity
	}
	if n < 0 {
		n = 0
	}
	http.SetCookie(s.w, &http.Cookie{
		Name:     CookieName,
		Value:    formatCounter(n),
		Path:     "/",
		MaxAge:   int(CounterTTL.Seconds()),
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.written = true
	s.value = n
	return nil
}
