package accounts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/2beens/rolegate/internal/telemetry/tracing"
	"github.com/2beens/rolegate/pkg"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

// CredentialStore is the authoritative account registry.
type CredentialStore struct {
	repo         Repo
	passwordCost int

	// guards the check-then-insert in Register
	registerMutex sync.Mutex

	// compared against for unknown users, so both failure paths cost one bcrypt check
	dummyHash string
}

func NewCredentialStore(repo Repo, passwordCost int) (*CredentialStore, error) {
	dummyHash, err := pkg.HashPassword("rolegate-dummy-password", passwordCost)
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}

	return &CredentialStore{
		repo:         repo,
		passwordCost: passwordCost,
		dummyHash:    dummyHash,
	}, nil
}

// Register creates a new account. The password is stored only as a bcrypt hash.
func (s *CredentialStore) Register(ctx context.Context, username, password string, role Role) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "credentialStore.register")
	defer span.End()
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "registered")
		}
	}()

	username = NormalizeUsername(username)
	if username == "" || password == "" {
		return ErrEmptyCredentials
	}
	if role != RoleAdmin && role != RoleUser {
		role = RoleUser
	}
	span.SetAttributes(
		attribute.String("account.username", username),
		attribute.String("account.role", role.String()),
	)

	// hashing is slow, keep it out of the critical section
	passwordHash, err := pkg.HashPassword(password, s.passwordCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return ErrPasswordTooLong
	}
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	s.registerMutex.Lock()
	defer s.registerMutex.Unlock()

	if _, err := s.repo.Get(ctx, username); err == nil {
		return ErrDuplicateUsername
	} else if !errors.Is(err, ErrAccountNotFound) {
		return fmt.Errorf("lookup account: %w", err)
	}

	if err := s.repo.Insert(ctx, Account{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
	}); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("insert account: %w", err)
	}

	return nil
}

// Verify checks the password and returns the account's current role.
func (s *CredentialStore) Verify(ctx context.Context, username, password string) (Role, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "credentialStore.verify")
	defer span.End()

	account, err := s.repo.Get(ctx, NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			pkg.CheckPasswordHash(password, s.dummyHash)
			span.SetStatus(codes.Error, "credentials rejected")
			return "", ErrUnknownUser
		}
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("lookup account: %w", err)
	}

	if !pkg.CheckPasswordHash(password, account.PasswordHash) {
		span.SetStatus(codes.Error, "credentials rejected")
		return "", ErrInvalidCredentials
	}

	span.SetStatus(codes.Ok, "verified")
	return account.Role, nil
}
