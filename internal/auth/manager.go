package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/rolegate/internal/accounts"
	"github.com/2beens/rolegate/internal/telemetry/tracing"
	"github.com/2beens/rolegate/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tokenBytesLen = 35

type credentialStore interface {
	Register(ctx context.Context, username, password string, role accounts.Role) error
	Verify(ctx context.Context, username, password string) (accounts.Role, error)
}

// Manager turns verified credentials into sessions and gates access by role.
type Manager struct {
	credentials credentialStore
	sessions    SessionStore
	ttl         time.Duration

	// ability to inject random string generator func for tokens (for unit and dev testing)
	RandStringFunc func(s int) (string, error)
	NowFunc        func() time.Time
}

func NewManager(credentials credentialStore, sessions SessionStore, ttl time.Duration) *Manager {
	return &Manager{
		credentials:    credentials,
		sessions:       sessions,
		ttl:            ttl,
		RandStringFunc: pkg.GenerateRandomString,
		NowFunc:        time.Now,
	}
}

func (m *Manager) Register(ctx context.Context, username, password string, role accounts.Role) error {
	return m.credentials.Register(ctx, username, password, role)
}

// Login verifies the credentials and opens a new session.
// Unknown user and wrong password both come back as ErrInvalidLogin.
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "authManager.login")
	defer span.End()

	role, err := m.credentials.Verify(ctx, username, password)
	if err != nil {
		if errors.Is(err, accounts.ErrUnknownUser) || errors.Is(err, accounts.ErrInvalidCredentials) {
			log.Tracef("failed login attempt for user: %s", username)
			span.SetStatus(codes.Error, "invalid login")
			return nil, ErrInvalidLogin
		}
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, fmt.Errorf("verify credentials: %w", err)
	}

	token, err := m.RandStringFunc(tokenBytesLen)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("generate token: %w", err)
	}

	session := Session{
		Token:     token,
		Username:  accounts.NormalizeUsername(username),
		Role:      role,
		CreatedAt: m.NowFunc(),
	}
	if err := m.sessions.Create(ctx, session); err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, fmt.Errorf("create session: %w", err)
	}

	span.SetAttributes(attribute.String("session.role", role.String()))
	span.SetStatus(codes.Ok, "logged in")
	return &session, nil
}

// Authenticate is the generic "must be logged in" rule.
func (m *Manager) Authenticate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	session, err := m.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if session.Expired(m.ttl, m.NowFunc()) {
		if err := m.sessions.Delete(ctx, token); err != nil {
			log.Errorf("delete expired session: %s", err)
		}
		return nil, ErrUnauthenticated
	}

	return session, nil
}

// RequireRole checks that the session exists and its role equals role exactly.
func (m *Manager) RequireRole(ctx context.Context, token string, role accounts.Role) (*Session, error) {
	session, err := m.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	if session.Role != role {
		return nil, ErrForbidden
	}

	return session, nil
}

// Logout invalidates the session. Unknown and already invalidated tokens are a no-op.
func (m *Manager) Logout(ctx context.Context, token string) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "authManager.logout")
	defer span.End()

	if token == "" {
		return nil
	}

	if err := m.sessions.Delete(ctx, token); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("delete session: %w", err)
	}

	span.SetStatus(codes.Ok, "logged out")
	return nil
}

// ScanAndClean will run through all sessions, check the TTL, and clean them if old.
// Returns the number of sessions left active and the number removed.
func (m *Manager) ScanAndClean(ctx context.Context) (active, removed int) {
	sessions, err := m.sessions.List(ctx)
	if err != nil {
		log.Errorf("!!! auth manager, scan and clean, get sessions: %s", err)
		return 0, 0
	}

	if len(sessions) == 0 {
		log.Debugln("=> auth manager, scan and clean abort, no sessions")
		return 0, 0
	}

	log.Debugf("=> auth manager, scan and clean [%d sessions] start ...", len(sessions))
	now := m.NowFunc()
	for i := range sessions {
		if !sessions[i].Expired(m.ttl, now) {
			active++
			continue
		}

		if err := m.sessions.Delete(ctx, sessions[i].Token); err != nil {
			log.Errorf("=> auth manager, clean session of %s: %s", sessions[i].Username, err)
			active++
			continue
		}
		removed++
	}

	return active, removed
}
