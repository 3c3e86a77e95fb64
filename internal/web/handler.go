package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/2beens/rolegate/internal/accounts"
	"github.com/2beens/rolegate/internal/auth"
	"github.com/2beens/rolegate/internal/middleware"
	"github.com/2beens/rolegate/internal/telemetry/metrics"
	"github.com/2beens/rolegate/internal/telemetry/tracing"
	"github.com/2beens/rolegate/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	msgUsernameTaken      = "Username already taken. Please choose another."
	msgRegistrationOK     = "Registration successful! Please log in."
	msgInvalidLogin       = "Invalid username or password"
	msgMissingCredentials = "Username and password are required."
	msgPasswordTooLong    = "Password is too long, use at most 72 bytes."
)

//go:embed templates/*.html
var templatesFS embed.FS

type sessionManager interface {
	Register(ctx context.Context, username, password string, role accounts.Role) error
	Login(ctx context.Context, username, password string) (*auth.Session, error)
	Logout(ctx context.Context, token string) error
}

type pageData struct {
	Title    string
	Flash    string
	Username string
	Role     string
	Message  string
}

// Handler serves the browser facing pages. The session token travels in a cookie.
type Handler struct {
	manager        sessionManager
	transport      auth.TokenTransport
	metricsManager *metrics.Manager
	pages          map[string]*template.Template
}

func NewHandler(
	manager sessionManager,
	transport auth.TokenTransport,
	metricsManager *metrics.Manager,
) (*Handler, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{"login", "register", "dashboard", "admin"} {
		tmpl, err := template.ParseFS(templatesFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &Handler{
		manager:        manager,
		transport:      transport,
		metricsManager: metricsManager,
		pages:          pages,
	}, nil
}

func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	authMiddleware *middleware.AuthMiddlewareHandler,
	rateLimiter middleware.RequestRateLimiter,
	loginAllowedPerMin int,
) {
	mainRouter.HandleFunc("/", handler.handleRoot).Methods("GET").Name("root")
	mainRouter.HandleFunc("/register", handler.handleRegister).Methods("GET", "POST").Name("register")

	var loginHandler http.Handler = http.HandlerFunc(handler.handleLogin)
	if rateLimiter != nil {
		// only login attempts count, rendering the form is free
		loginHandler = middleware.RateLimitPerIP(
			rateLimiter, "web-login", loginAllowedPerMin, handler.metricsManager, http.MethodPost,
		)(loginHandler)
	}
	mainRouter.Handle("/login", loginHandler).Methods("GET", "POST").Name("login")

	loggedInRouter := mainRouter.NewRoute().Subrouter()
	loggedInRouter.HandleFunc("/dashboard", handler.handleDashboard).Methods("GET").Name("dashboard")
	loggedInRouter.HandleFunc("/logout", handler.handleLogout).Methods("GET").Name("logout")
	loggedInRouter.Use(authMiddleware.RequireLogin())

	adminRouter := mainRouter.NewRoute().Subrouter()
	adminRouter.HandleFunc("/admin", handler.handleAdmin).Methods("GET").Name("admin")
	adminRouter.Use(authMiddleware.RequireRole(accounts.RoleAdmin))
}

func (handler *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (handler *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "webHandler.register")
	defer span.End()

	if r.Method == http.MethodGet {
		handler.render(w, "register", http.StatusOK, pageData{
			Title: "Register",
			Flash: popFlash(w, r),
		})
		return
	}

	if err := r.ParseForm(); err != nil {
		log.Errorf("register failed, parse form error: %s", err)
		http.Error(w, "parse form error", http.StatusBadRequest)
		return
	}

	username := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	role := accounts.ParseRole(r.PostForm.Get("role"))
	span.SetAttributes(attribute.String("account.role", role.String()))

	err := handler.manager.Register(ctx, username, password, role)
	switch {
	case err == nil:
		log.Debugf("new account registered: %s [%s]", username, role)
		if handler.metricsManager != nil {
			handler.metricsManager.CounterRegistrations.Inc()
		}
		span.SetStatus(codes.Ok, "registered")
		setFlash(w, msgRegistrationOK)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	case errors.Is(err, accounts.ErrDuplicateUsername):
		span.SetStatus(codes.Error, "duplicate-username")
		handler.render(w, "register", http.StatusConflict, pageData{
			Title: "Register",
			Flash: msgUsernameTaken,
		})
	case errors.Is(err, accounts.ErrEmptyCredentials):
		span.SetStatus(codes.Error, "empty-credentials")
		handler.render(w, "register", http.StatusBadRequest, pageData{
			Title:    "Register",
			Flash:    msgMissingCredentials,
			Username: username,
		})
	case errors.Is(err, accounts.ErrPasswordTooLong):
		span.SetStatus(codes.Error, "password-too-long")
		handler.render(w, "register", http.StatusBadRequest, pageData{
			Title:    "Register",
			Flash:    msgPasswordTooLong,
			Username: username,
		})
	default:
		log.Errorf("register account %s: %s", username, err)
		span.SetStatus(codes.Error, err.Error())
		http.Error(w, "registration failed", http.StatusInternalServerError)
	}
}

func (handler *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "webHandler.login")
	defer span.End()

	if r.Method == http.MethodGet {
		handler.render(w, "login", http.StatusOK, pageData{
			Title: "Login",
			Flash: popFlash(w, r),
		})
		return
	}

	if err := r.ParseForm(); err != nil {
		log.Errorf("login failed, parse form error: %s", err)
		http.Error(w, "parse form error", http.StatusBadRequest)
		return
	}

	username := r.PostForm.Get("username")
	session, err := handler.manager.Login(ctx, username, r.PostForm.Get("password"))
	if errors.Is(err, auth.ErrInvalidLogin) {
		handler.countLogin(metrics.LoginResultFailure)
		span.SetStatus(codes.Error, "invalid-login")
		handler.render(w, "login", http.StatusUnauthorized, pageData{
			Title:    "Login",
			Flash:    msgInvalidLogin,
			Username: username,
		})
		return
	}
	if err != nil {
		handler.countLogin(metrics.LoginResultError)
		log.Errorf("login failed for %s: %s", username, err)
		span.SetStatus(codes.Error, err.Error())
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	handler.countLogin(metrics.LoginResultSuccess)
	handler.transport.Attach(w, session.Token)
	span.SetStatus(codes.Ok, "logged-in")
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (handler *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	message := "Welcome User!"
	if session.Role == accounts.RoleAdmin {
		message = "Welcome Admin!"
	}

	handler.render(w, "dashboard", http.StatusOK, pageData{
		Title:    "Dashboard",
		Flash:    popFlash(w, r),
		Username: session.Username,
		Role:     session.Role.String(),
		Message:  message,
	})
}

func (handler *Handler) handleAdmin(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	handler.render(w, "admin", http.StatusOK, pageData{
		Title:    "Admin",
		Username: session.Username,
		Role:     session.Role.String(),
		Message:  fmt.Sprintf("Hello %s, only admins can see this page.", session.Username),
	})
}

func (handler *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "webHandler.logout")
	defer span.End()

	if err := handler.manager.Logout(ctx, handler.transport.Extract(r)); err != nil {
		log.Errorf("logout failed: %s", err)
		span.SetStatus(codes.Error, err.Error())
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}

	if handler.metricsManager != nil {
		handler.metricsManager.CounterLogouts.Inc()
	}
	handler.transport.Clear(w)
	span.SetStatus(codes.Ok, "logged-out")
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (handler *Handler) render(w http.ResponseWriter, page string, status int, data pageData) {
	var buf bytes.Buffer
	if err := handler.pages[page].ExecuteTemplate(&buf, page+".html", data); err != nil {
		log.Errorf("render page %s: %s", page, err)
		http.Error(w, "render error", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.HTML, buf.Bytes(), status)
}

func (handler *Handler) countLogin(result string) {
	if handler.metricsManager != nil {
		handler.metricsManager.CounterLogins.WithLabelValues(result).Inc()
	}
}
