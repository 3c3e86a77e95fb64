package accounts

import "context"

//go:generate mockgen -source=$GOFILE -destination=repo_mocks_test.go -package=accounts_test

var (
	_ Repo = (*MemoryRepo)(nil)
	_ Repo = (*PsqlRepo)(nil)
)

// Repo is the persistence behind the credential store.
// Insert must fail with ErrDuplicateUsername if the username is taken,
// Get and Update with ErrAccountNotFound if it is missing.
type Repo interface {
	Get(ctx context.Context, username string) (*Account, error)
	Insert(ctx context.Context, account Account) error
	Update(ctx context.Context, account Account) error
}
