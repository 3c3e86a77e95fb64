package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/2beens/rolegate/internal/accounts"
	"github.com/2beens/rolegate/internal/auth"
	"github.com/2beens/rolegate/internal/middleware"
	"github.com/2beens/rolegate/internal/telemetry/metrics"
	"github.com/2beens/rolegate/internal/telemetry/tracing"
	"github.com/2beens/rolegate/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

type sessionManager interface {
	Register(ctx context.Context, username, password string, role accounts.Role) error
	Login(ctx context.Context, username, password string) (*auth.Session, error)
	Logout(ctx context.Context, token string) error
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type accountResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type loginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// Handler is the JSON api under /a. The session token travels in a request header.
type Handler struct {
	manager        sessionManager
	transport      auth.TokenTransport
	metricsManager *metrics.Manager
}

func NewHandler(
	manager sessionManager,
	transport auth.TokenTransport,
	metricsManager *metrics.Manager,
) *Handler {
	return &Handler{
		manager:        manager,
		transport:      transport,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	authMiddleware *middleware.AuthMiddlewareHandler,
	rateLimiter middleware.RequestRateLimiter,
	loginAllowedPerMin int,
) {
	apiRouter := mainRouter.PathPrefix("/a/").Subrouter()
	apiRouter.HandleFunc("/register", handler.handleRegister).Methods("POST").Name("api-register")
	apiRouter.HandleFunc("/logout", handler.handleLogout).Methods("GET").Name("api-logout")

	loginRouter := apiRouter.NewRoute().Subrouter()
	loginRouter.HandleFunc("/login", handler.handleLogin).Methods("POST").Name("api-login")
	if rateLimiter != nil {
		loginRouter.Use(middleware.RateLimitPerIP(rateLimiter, "api-login", loginAllowedPerMin, handler.metricsManager))
	}

	meRouter := apiRouter.NewRoute().Subrouter()
	meRouter.HandleFunc("/me", handler.handleMe).Methods("GET").Name("api-me")
	meRouter.Use(authMiddleware.RequireLogin())

	adminRouter := apiRouter.PathPrefix("/admin").Subrouter()
	adminRouter.HandleFunc("/ping", handler.handleAdminPing).Methods("GET").Name("api-admin-ping")
	adminRouter.Use(authMiddleware.RequireRole(accounts.RoleAdmin))
}

func isJSONRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == pkg.ContentType.JSON
}

// readCredentials accepts both a JSON body and a plain form.
func readCredentials(r *http.Request) (credentialsRequest, error) {
	var req credentialsRequest
	if isJSONRequest(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, err
	}
	return credentialsRequest{
		Username: r.Form.Get("username"),
		Password: r.Form.Get("password"),
		Role:     r.Form.Get("role"),
	}, nil
}

func (handler *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "apiHandler.register")
	defer span.End()

	req, err := readCredentials(r)
	if err != nil {
		log.Errorf("register, read params: %s", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	role := accounts.ParseRole(req.Role)
	err = handler.manager.Register(ctx, req.Username, req.Password, role)
	switch {
	case errors.Is(err, accounts.ErrDuplicateUsername):
		span.SetStatus(codes.Error, "duplicate-username")
		http.Error(w, "error, username already taken", http.StatusConflict)
		return
	case errors.Is(err, accounts.ErrEmptyCredentials):
		span.SetStatus(codes.Error, "empty-credentials")
		http.Error(w, "error, username and password required", http.StatusBadRequest)
		return
	case errors.Is(err, accounts.ErrPasswordTooLong):
		span.SetStatus(codes.Error, "password-too-long")
		http.Error(w, "error, password too long", http.StatusBadRequest)
		return
	case err != nil:
		log.Errorf("register account %s: %s", req.Username, err)
		span.SetStatus(codes.Error, err.Error())
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}

	if handler.metricsManager != nil {
		handler.metricsManager.CounterRegistrations.Inc()
	}
	span.SetStatus(codes.Ok, "registered")
	handler.writeJSON(w, accountResponse{
		Username: accounts.NormalizeUsername(req.Username),
		Role:     role.String(),
	}, http.StatusCreated)
}

func (handler *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "apiHandler.login")
	defer span.End()

	req, err := readCredentials(r)
	if err != nil {
		log.Errorf("login, read params: %s", err)
		http.Error(w, "login failed", http.StatusBadRequest)
		return
	}

	session, err := handler.manager.Login(ctx, req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidLogin) {
		handler.countLogin(metrics.LoginResultFailure)
		span.SetStatus(codes.Error, "invalid-login")
		http.Error(w, "error, wrong credentials", http.StatusBadRequest)
		return
	}
	if err != nil {
		handler.countLogin(metrics.LoginResultError)
		log.Errorf("login failed: %s", err)
		span.SetStatus(codes.Error, err.Error())
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	handler.countLogin(metrics.LoginResultSuccess)
	log.Trace("new login success")
	span.SetStatus(codes.Ok, "logged-in")
	handler.writeJSON(w, loginResponse{Token: session.Token, Role: session.Role.String()}, http.StatusOK)
}

func (handler *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "apiHandler.logout")
	defer span.End()

	authToken := handler.transport.Extract(r)
	if authToken == "" {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	if err := handler.manager.Logout(ctx, authToken); err != nil {
		log.Errorf("logout failed: %s", err)
		span.SetStatus(codes.Error, err.Error())
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}

	if handler.metricsManager != nil {
		handler.metricsManager.CounterLogouts.Inc()
	}
	span.SetStatus(codes.Ok, "logged-out")
	pkg.WriteTextResponseOK(w, "logged-out")
}

func (handler *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}
	handler.writeJSON(w, accountResponse{Username: session.Username, Role: session.Role.String()}, http.StatusOK)
}

func (handler *Handler) handleAdminPing(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, "pong")
}

func (handler *Handler) writeJSON(w http.ResponseWriter, v any, status int) {
	respBytes, err := json.Marshal(v)
	if err != nil {
		log.Errorf("marshal response: %s", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	pkg.WriteJSONResponse(w, respBytes, status)
}

func (handler *Handler) countLogin(result string) {
	if handler.metricsManager != nil {
		handler.metricsManager.CounterLogins.WithLabelValues(result).Inc()
	}
}
