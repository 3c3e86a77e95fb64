package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/2beens/rolegate/internal/accounts"
	"github.com/2beens/rolegate/internal/auth"
	"github.com/2beens/rolegate/internal/telemetry/metrics"
	"github.com/2beens/rolegate/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=auth_mocks_test.go -package=middleware_test

type sessionKey struct{}

type sessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Session, error)
	RequireRole(ctx context.Context, token string, role accounts.Role) (*auth.Session, error)
}

// AuthMiddlewareHandler gates handlers on a valid session.
// With a loginPath set, anonymous requests are redirected there (browser pages),
// otherwise they get a 401 (JSON api).
type AuthMiddlewareHandler struct {
	authenticator  sessionAuthenticator
	transport      auth.TokenTransport
	loginPath      string
	metricsManager *metrics.Manager
}

func NewAuthMiddlewareHandler(
	authenticator sessionAuthenticator,
	transport auth.TokenTransport,
	loginPath string,
	metricsManager *metrics.Manager,
) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		authenticator:  authenticator,
		transport:      transport,
		loginPath:      loginPath,
		metricsManager: metricsManager,
	}
}

// SessionFromContext returns the session stored by RequireLogin or RequireRole.
func SessionFromContext(ctx context.Context) (*auth.Session, bool) {
	session, ok := ctx.Value(sessionKey{}).(*auth.Session)
	return session, ok && session != nil
}

func ContextWithSession(ctx context.Context, session *auth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// RequireLogin lets through any logged in user, regardless of role.
func (h *AuthMiddlewareHandler) RequireLogin() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.requireLogin")
			defer span.End()

			token := h.transport.Extract(r)
			if token == "" {
				log.Tracef("[missing token] [auth middleware] unauthorized => %s", r.URL.Path)
				span.SetStatus(codes.Error, "missing-auth-token")
				h.unauthenticated(w, r)
				return
			}

			session, err := h.authenticator.Authenticate(ctx, token)
			if err != nil {
				h.logAuthErr(r, err)
				span.SetStatus(codes.Error, "not-logged")
				h.unauthenticated(w, r)
				return
			}

			span.SetAttributes(attribute.String("session.role", session.Role.String()))
			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
		})
	}
}

// RequireRole lets through only sessions holding exactly the given role.
// Anonymous requests are treated as in RequireLogin, wrong roles get a 403.
func (h *AuthMiddlewareHandler) RequireRole(role accounts.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.requireRole")
			defer span.End()
			span.SetAttributes(attribute.String("required.role", role.String()))

			token := h.transport.Extract(r)
			if token == "" {
				log.Tracef("[missing token] [role middleware] unauthorized => %s", r.URL.Path)
				span.SetStatus(codes.Error, "missing-auth-token")
				h.unauthenticated(w, r)
				return
			}

			session, err := h.authenticator.RequireRole(ctx, token, role)
			if errors.Is(err, auth.ErrForbidden) {
				log.Tracef("[wrong role] [role middleware] forbidden => %s", r.URL.Path)
				span.SetStatus(codes.Error, "forbidden")
				if h.metricsManager != nil {
					h.metricsManager.CounterForbidden.Inc()
				}
				http.Error(w, "Access Denied", http.StatusForbidden)
				return
			}
			if err != nil {
				h.logAuthErr(r, err)
				span.SetStatus(codes.Error, "not-logged")
				h.unauthenticated(w, r)
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
		})
	}
}

func (h *AuthMiddlewareHandler) unauthenticated(w http.ResponseWriter, r *http.Request) {
	if h.loginPath != "" {
		http.Redirect(w, r, h.loginPath, http.StatusFound)
		return
	}
	http.Error(w, "no can do", http.StatusUnauthorized)
}

func (h *AuthMiddlewareHandler) logAuthErr(r *http.Request, err error) {
	if errors.Is(err, auth.ErrUnauthenticated) {
		log.Tracef("[invalid token] [auth middleware] unauthorized => %s", r.URL.Path)
		return
	}
	log.Errorf("[failed login check] => %s: %s", r.URL.Path, err)
}
