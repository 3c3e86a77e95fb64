package accounts

import (
	"context"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type SeedAccount struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type seedFile struct {
	Accounts []SeedAccount `yaml:"accounts"`
}

// DefaultSeedAccounts are the built-in demo accounts.
var DefaultSeedAccounts = []SeedAccount{
	{Username: "admin", Password: "Admin123", Role: RoleAdmin.String()},
	{Username: "user", Password: "User123", Role: RoleUser.String()},
}

// LoadSeedFile reads accounts from a YAML file of the form:
//
//	accounts:
//	  - username: alice
//	    password: secret
//	    role: Admin
func LoadSeedFile(path string) ([]SeedAccount, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var f seedFile
	if err := yaml.Unmarshal(content, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	return f.Accounts, nil
}

// Seed registers the given accounts. Already present usernames are skipped.
func Seed(ctx context.Context, store *CredentialStore, seedAccounts []SeedAccount) (int, error) {
	added := 0
	for _, sa := range seedAccounts {
		err := store.Register(ctx, sa.Username, sa.Password, ParseRole(sa.Role))
		switch {
		case err == nil:
			added++
		case errors.Is(err, ErrDuplicateUsername):
			log.Debugf("seed account [%s] already present, skipping", sa.Username)
		default:
			return added, fmt.Errorf("seed account [%s]: %w", sa.Username, err)
		}
	}
	return added, nil
}
