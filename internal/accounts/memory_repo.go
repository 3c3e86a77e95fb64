package accounts

import (
	"context"
	"sync"
)

type MemoryRepo struct {
	mutex    sync.RWMutex
	accounts map[string]Account
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		accounts: make(map[string]Account),
	}
}

func (r *MemoryRepo) Get(_ context.Context, username string) (*Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	account, ok := r.accounts[username]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &account, nil
}

func (r *MemoryRepo) Insert(_ context.Context, account Account) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.accounts[account.Username]; ok {
		return ErrDuplicateUsername
	}
	r.accounts[account.Username] = account
	return nil
}

func (r *MemoryRepo) Update(_ context.Context, account Account) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.accounts[account.Username]; !ok {
		return ErrAccountNotFound
	}
	r.accounts[account.Username] = account
	return nil
}

func (r *MemoryRepo) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.accounts)
}
