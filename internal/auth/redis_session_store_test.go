package auth_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/2beens/rolegate/internal/accounts"
	"github.com/2beens/rolegate/internal/auth"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSessionStore_Create(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := auth.NewRedisSessionStore(db, time.Hour)
	now := time.Now()
	session := auth.Session{
		Token:     "tkn1",
		Username:  "admin",
		Role:      accounts.RoleAdmin,
		CreatedAt: now,
	}

	mock.ExpectTxPipeline()
	mock.ExpectHSet("rolegate-session||tkn1",
		"username", "admin",
		"role", "Admin",
		"created_at", now.Unix(),
	).SetVal(3)
	mock.ExpectExpire("rolegate-session||tkn1", time.Hour).SetVal(true)
	mock.ExpectSAdd("rolegate-sessions", "tkn1").SetVal(1)
	mock.ExpectTxPipelineExec()

	require.NoError(t, store.Create(context.Background(), session))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSessionStore_CreateFails(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := auth.NewRedisSessionStore(db, 0)
	now := time.Now()

	mock.ExpectTxPipeline()
	mock.ExpectHSet("rolegate-session||tkn1",
		"username", "user",
		"role", "User",
		"created_at", now.Unix(),
	).SetErr(errors.New("connection refused"))

	err := store.Create(context.Background(), auth.Session{
		Token:     "tkn1",
		Username:  "user",
		Role:      accounts.RoleUser,
		CreatedAt: now,
	})
	assert.ErrorContains(t, err, "connection refused")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSessionStore_CreateTTLFails(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := auth.NewRedisSessionStore(db, time.Hour)
	now := time.Now()

	mock.ExpectTxPipeline()
	mock.ExpectHSet("rolegate-session||tkn2",
		"username", "user",
		"role", "User",
		"created_at", now.Unix(),
	).SetVal(3)
	mock.ExpectExpire("rolegate-session||tkn2", time.Hour).SetErr(errors.New("expire failed"))

	err := store.Create(context.Background(), auth.Session{
		Token:     "tkn2",
		Username:  "user",
		Role:      accounts.RoleUser,
		CreatedAt: now,
	})
	assert.ErrorContains(t, err, "expire failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSessionStore_Get(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := auth.NewRedisSessionStore(db, time.Hour)
	ctx := context.Background()
	createdAt := time.Unix(time.Now().Unix(), 0)

	mock.ExpectHGetAll("rolegate-session||tkn1").SetVal(map[string]string{
		"username":   "user",
		"role":       "User",
		"created_at": strconv.FormatInt(createdAt.Unix(), 10),
	})
	session, err := store.Get(ctx, "tkn1")
	require.NoError(t, err)
	assert.Equal(t, "tkn1", session.Token)
	assert.Equal(t, "user", session.Username)
	assert.Equal(t, accounts.RoleUser, session.Role)
	assert.True(t, createdAt.Equal(session.CreatedAt))

	mock.ExpectHGetAll("rolegate-session||missing").SetVal(map[string]string{})
	session, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, auth.ErrSessionNotFound)
	assert.Nil(t, session)

	mock.ExpectHGetAll("rolegate-session||broken").SetVal(map[string]string{
		"username":   "user",
		"role":       "User",
		"created_at": "yesterday",
	})
	_, err = store.Get(ctx, "broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrSessionNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSessionStore_Delete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := auth.NewRedisSessionStore(db, time.Hour)

	mock.ExpectDel("rolegate-session||tkn1").SetVal(1)
	mock.ExpectSRem("rolegate-sessions", "tkn1").SetVal(1)
	require.NoError(t, store.Delete(context.Background(), "tkn1"))

	// deleting a missing session is not an error
	mock.ExpectDel("rolegate-session||tkn1").SetVal(0)
	mock.ExpectSRem("rolegate-sessions", "tkn1").SetVal(0)
	require.NoError(t, store.Delete(context.Background(), "tkn1"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisSessionStore_List(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	store := auth.NewRedisSessionStore(db, time.Hour)
	now := time.Now()

	mock.ExpectSMembers("rolegate-sessions").SetVal([]string{"t1", "t2"})
	mock.ExpectHGetAll("rolegate-session||t1").SetVal(map[string]string{
		"username":   "admin",
		"role":       "Admin",
		"created_at": strconv.FormatInt(now.Unix(), 10),
	})
	// t2 hash already expired in redis, token gets untracked
	mock.ExpectHGetAll("rolegate-session||t2").SetVal(map[string]string{})
	mock.ExpectSRem("rolegate-sessions", "t2").SetVal(1)

	sessions, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "t1", sessions[0].Token)
	assert.Equal(t, accounts.RoleAdmin, sessions[0].Role)

	assert.NoError(t, mock.ExpectationsWereMet())
}
