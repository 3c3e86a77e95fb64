package auth_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/2beens/rolegate/internal/accounts"
	"github.com/2beens/rolegate/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemorySessionStore()

	_, err := store.Get(ctx, "tkn1")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)

	session := auth.Session{
		Token:     "tkn1",
		Username:  "user",
		Role:      accounts.RoleUser,
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Create(ctx, session))

	got, err := store.Get(ctx, "tkn1")
	require.NoError(t, err)
	assert.Equal(t, session, *got)

	// returned session is a copy
	got.Role = accounts.RoleAdmin
	got, err = store.Get(ctx, "tkn1")
	require.NoError(t, err)
	assert.Equal(t, accounts.RoleUser, got.Role)

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	require.NoError(t, store.Delete(ctx, "tkn1"))
	require.NoError(t, store.Delete(ctx, "tkn1"))
	_, err = store.Get(ctx, "tkn1")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
}

func TestMemorySessionStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := auth.NewMemorySessionStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := fmt.Sprintf("tkn-%d", i)
			assert.NoError(t, store.Create(ctx, auth.Session{Token: token, Username: "user", Role: accounts.RoleUser}))
			_, err := store.Get(ctx, token)
			assert.NoError(t, err)
			if i%2 == 0 {
				assert.NoError(t, store.Delete(ctx, token))
			}
		}(i)
	}
	wg.Wait()

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 25)
}
