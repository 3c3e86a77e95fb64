package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultCookieName = "rolegate_session"
	DefaultHeaderName = "X-ROLEGATE-TOKEN"
	jwtIssuer         = "rolegate"
)

var (
	_ TokenTransport = (*CookieTransport)(nil)
	_ TokenTransport = (*HeaderTransport)(nil)
	_ TokenTransport = (*SignedCookieTransport)(nil)
)

// TokenTransport carries the session token between client and server.
// Extract returns "" when the request carries no usable token.
type TokenTransport interface {
	Extract(r *http.Request) string
	Attach(w http.ResponseWriter, token string)
	Clear(w http.ResponseWriter)
}

type CookieTransport struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

func NewCookieTransport(secure bool, maxAge time.Duration) *CookieTransport {
	return &CookieTransport{
		Name:   DefaultCookieName,
		Secure: secure,
		MaxAge: maxAge,
	}
}

func (t *CookieTransport) Extract(r *http.Request) string {
	cookie, err := r.Cookie(t.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (t *CookieTransport) Attach(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     t.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(t.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   t.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (t *CookieTransport) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     t.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   t.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type HeaderTransport struct {
	Name string
}

func NewHeaderTransport() *HeaderTransport {
	return &HeaderTransport{Name: DefaultHeaderName}
}

func (t *HeaderTransport) Extract(r *http.Request) string {
	return r.Header.Get(t.Name)
}

func (t *HeaderTransport) Attach(w http.ResponseWriter, token string) {
	w.Header().Set(t.Name, token)
}

func (t *HeaderTransport) Clear(w http.ResponseWriter) {
	w.Header().Del(t.Name)
}

// SignedCookieTransport wraps the session token in an HS256 JWT before it goes
// into the cookie, so forged or tampered cookies never reach the session store.
type SignedCookieTransport struct {
	cookie *CookieTransport
	secret []byte
	ttl    time.Duration
}

func NewSignedCookieTransport(secret []byte, secure bool, ttl time.Duration) (*SignedCookieTransport, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	return &SignedCookieTransport{
		cookie: NewCookieTransport(secure, ttl),
		secret: secret,
		ttl:    ttl,
	}, nil
}

func (t *SignedCookieTransport) Extract(r *http.Request) string {
	signed := t.cookie.Extract(r)
	if signed == "" {
		return ""
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(jwtIssuer),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil || !parsed.Valid {
		return ""
	}

	return claims.ID
}

func (t *SignedCookieTransport) Attach(w http.ResponseWriter, token string) {
	signed, err := t.sign(token, time.Now())
	if err != nil {
		// nothing usable to hand out; the client stays anonymous
		t.cookie.Clear(w)
		return
	}
	t.cookie.Attach(w, signed)
}

func (t *SignedCookieTransport) Clear(w http.ResponseWriter) {
	t.cookie.Clear(w)
}

func (t *SignedCookieTransport) sign(token string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:   jwtIssuer,
		ID:       token,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if t.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}
