package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HanTheDev/oncoassist/internal/quota"
)

const testSecret = "test-secret"

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken(12, "Ada", "ada@example.com", testSecret)
	require.NoError(t, err)

	claims, err := ValidateToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(12), claims.UserID)
	assert.Equal(t, "Ada", claims.Name)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "12", claims.Subject)

	_, err = ValidateToken(token, "other-secret")
	assert.Error(t, err)
}

func TestValidateToken_RejectsExpiredAndForeignAlgorithms(t *testing.T) {
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	signed, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = ValidateToken(signed, testSecret)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ValidateToken(unsigned, testSecret)
	assert.Error(t, err)
}

func TestPassword(t *testing.T) {
	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse"))
}

func resolve(t *testing.T, req *http.Request) (quota.Identity, *httptest.ResponseRecorder, *http.Request) {
	t.Helper()
	var (
		got  quota.Identity
		seen *http.Request
	)
	mw := NewMiddleware(testSecret, false, nil)
	rr := httptest.NewRecorder()
	mw.Resolve(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
		seen = r
	})).ServeHTTP(rr, req)
	return got, rr, seen
}

func anonCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == AnonymousCookieName {
			return c
		}
	}
	return nil
}

func TestResolve_BearerToken(t *testing.T) {
	token, err := GenerateToken(5, "Grace", "grace@example.com", testSecret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	id, rr, seen := resolve(t, req)

	assert.Equal(t, quota.Authenticated{UserID: 5}, id)
	assert.Nil(t, anonCookie(rr))
	claims, ok := ClaimsFromContext(seen.Context())
	require.True(t, ok)
	assert.Equal(t, "Grace", claims.Name)
}

func TestResolve_SessionCookie(t *testing.T) {
	token, err := GenerateToken(6, "Lin", "lin@example.com", testSecret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

	id, _, _ := resolve(t, req)
	assert.Equal(t, quota.Authenticated{UserID: 6}, id)
}

func TestResolve_InvalidTokenFallsBackToAnonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")

	id, rr, seen := resolve(t, req)

	anon, ok := id.(quota.Anonymous)
	require.True(t, ok)
	_, err := uuid.Parse(anon.SessionToken)
	assert.NoError(t, err)
	assert.NotNil(t, anonCookie(rr))
	_, ok = ClaimsFromContext(seen.Context())
	assert.False(t, ok)
}

func TestResolve_ReusesAnonymousToken(t *testing.T) {
	existing := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonymousCookieName, Value: existing})

	id, rr, _ := resolve(t, req)

	assert.Equal(t, quota.Anonymous{SessionToken: existing}, id)
	cookie := anonCookie(rr)
	require.NotNil(t, cookie)
	assert.Equal(t, existing, cookie.Value)
	assert.Equal(t, 604800, cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)
}

func TestResolve_ReplacesMalformedAnonymousToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AnonymousCookieName, Value: "../../etc"})

	id, _, _ := resolve(t, req)

	anon := id.(quota.Anonymous)
	assert.NotEqual(t, "../../etc", anon.SessionToken)
}

func TestIdentityFromContext_DefaultsToAnonymous(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, quota.Anonymous{}, IdentityFromContext(req.Context()))
}

func TestSessionCookies(t *testing.T) {
	mw := NewMiddleware(testSecret, true, nil)

	rr := httptest.NewRecorder()
	mw.SetSessionCookie(rr, "tok")
	set := rr.Result().Cookies()[0]
	assert.Equal(t, SessionCookieName, set.Name)
	assert.True(t, set.Secure)
	assert.True(t, set.HttpOnly)

	rr = httptest.NewRecorder()
	mw.ClearSessionCookie(rr)
	assert.Equal(t, -1, rr.Result().Cookies()[0].MaxAge)
}
