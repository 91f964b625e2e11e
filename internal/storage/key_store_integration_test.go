package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/correlator-io/roster/internal/config"
)

func TestKeyStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	testDB := config.SetupTestDatabase(ctx, t)

	t.Cleanup(func() {
		_ = testDB.Connection.Close()
		_ = testcontainers.TerminateContainer(testDB.Container)
	})

	conn := &Connection{DB: testDB.Connection}

	store, err := NewKeyStore(conn, discardLogger())
	require.NoError(t, err)

	key, err := GenerateAPIKey("nightly-loader", []string{PermissionLoadsWrite, PermissionViewsRefresh}, 24*time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, key))

	var storedHash string
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT key_hash FROM api_keys WHERE id = $1`, key.ID).Scan(&storedHash))
	assert.True(t, strings.HasPrefix(storedHash, "$2a$"), "only the bcrypt hash is stored")
	assert.NotContains(t, storedHash, key.Key)

	found, ok := store.FindByKey(ctx, key.Key)
	require.True(t, ok)
	assert.Equal(t, key.ID, found.ID)
	assert.Equal(t, "nightly-loader", found.Name)
	assert.Equal(t, key.Permissions, found.Permissions)
	assert.Equal(t, MaskKey(key.Key), found.Key)
	require.NotNil(t, found.ExpiresAt)
	assert.True(t, found.Active)

	_, ok = store.FindByKey(ctx, apiKeyPrefix+strings.Repeat("0", 64))
	assert.False(t, ok)

	keys, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Empty(t, keys[0].Key)

	require.NoError(t, store.Delete(ctx, key.ID))
	require.ErrorIs(t, store.Delete(ctx, key.ID), ErrKeyNotFound)

	_, ok = store.FindByKey(ctx, key.Key)
	assert.False(t, ok, "revoked keys no longer authenticate")

	keys, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = NewKeyStore(nil, nil)
	require.ErrorIs(t, err, ErrNoDatabaseConnection)
}
