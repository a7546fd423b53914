package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevokeSetsKeyWithTTL(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewTokenStore(client)

	mock.ExpectSet(revokedPrefix+"jti-1", "1", 30*time.Minute).SetVal("OK")

	require.NoError(t, store.Revoke(context.Background(), "jti-1", 30*time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeSkipsExpiredTokens(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewTokenStore(client)

	require.NoError(t, store.Revoke(context.Background(), "jti-1", 0))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRevoked(t *testing.T) {
	client, mock := redismock.NewClientMock()
	store := NewTokenStore(client)

	mock.ExpectGet(revokedPrefix + "known").SetVal("1")
	mock.ExpectGet(revokedPrefix + "unknown").RedisNil()
	mock.ExpectGet(revokedPrefix + "broken").SetErr(errors.New("connection reset"))

	revoked, err := store.IsRevoked(context.Background(), "known")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = store.IsRevoked(context.Background(), "unknown")
	require.NoError(t, err)
	assert.False(t, revoked)

	_, err = store.IsRevoked(context.Background(), "broken")
	assert.Error(t, err)
}
