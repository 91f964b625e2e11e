package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAPIKey(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	key, err := GenerateAPIKey(" nightly loader ", []string{PermissionLoadsWrite}, 24*time.Hour)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key.Key, apiKeyPrefix))
	assert.Len(t, key.Key, apiKeyLength)
	assert.Equal(t, "nightly loader", key.Name)
	assert.NotEmpty(t, key.ID)
	assert.True(t, key.Active)
	require.NotNil(t, key.ExpiresAt)
	assert.False(t, key.Expired(time.Now()))
	assert.True(t, key.Expired(time.Now().Add(25*time.Hour)))
	assert.True(t, key.HasPermission(PermissionLoadsWrite))
	assert.False(t, key.HasPermission(PermissionViewsRefresh))

	parsed, err := ParseAPIKey(key.Key)
	require.NoError(t, err)
	assert.Equal(t, key.Key, parsed)

	other, err := GenerateAPIKey("other", nil, 0)
	require.NoError(t, err)
	assert.NotEqual(t, key.Key, other.Key)
	assert.Nil(t, other.ExpiresAt)

	_, err = GenerateAPIKey("  ", nil, 0)
	require.ErrorIs(t, err, ErrKeyNameEmpty)

	_, err = GenerateAPIKey("admin", []string{"admin:all"}, 0)
	require.ErrorIs(t, err, ErrUnknownPermission)
}

func TestParseAPIKey(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{name: "empty", key: "", wantErr: ErrKeyNil},
		{name: "foreign prefix", key: "correlator_ak_" + strings.Repeat("a", 64), wantErr: ErrInvalidKeyFormat},
		{name: "short", key: apiKeyPrefix + "abc", wantErr: ErrInvalidKeyLength},
		{name: "valid", key: apiKeyPrefix + strings.Repeat("a", 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAPIKey(tt.key)
			if tt.wantErr == nil {
				assert.NoError(t, err)

				return
			}

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMaskKey(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	key := apiKeyPrefix + "3f" + strings.Repeat("0", 58) + "beef"

	masked := MaskKey(key)
	assert.Len(t, masked, apiKeyLength)
	assert.True(t, strings.HasPrefix(masked, "roster_ak_3f*"))
	assert.True(t, strings.HasSuffix(masked, "*beef"))

	assert.Equal(t, "*****", MaskKey("short"))
	assert.Empty(t, MaskKey(""))
}

func TestHashAPIKey(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	key, err := GenerateAPIKey("hash", nil, 0)
	require.NoError(t, err)

	hash, err := HashAPIKey(key.Key)
	require.NoError(t, err)
	assert.NotContains(t, hash, key.Key)

	assert.True(t, CompareAPIKeyHash(hash, key.Key), "keys over the bcrypt limit are pre-hashed consistently")
	assert.False(t, CompareAPIKeyHash(hash, key.Key[:len(key.Key)-1]+"x"))
	assert.False(t, CompareAPIKeyHash("", key.Key))
	assert.False(t, CompareAPIKeyHash(hash, ""))

	_, err = HashAPIKey("")
	require.ErrorIs(t, err, ErrKeyNil)
}

func TestInMemoryKeyStore(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	ctx := context.Background()
	store := NewInMemoryKeyStore()

	key, err := GenerateAPIKey("loader", []string{PermissionLoadsWrite}, 0)
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, key))

	found, ok := store.FindByKey(ctx, key.Key)
	require.True(t, ok)
	assert.Equal(t, key.ID, found.ID)
	assert.Equal(t, MaskKey(key.Key), found.Key)

	_, ok = store.FindByKey(ctx, apiKeyPrefix+strings.Repeat("0", 64))
	assert.False(t, ok)

	keys, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Empty(t, keys[0].Key)

	require.NoError(t, store.Delete(ctx, key.ID))
	require.ErrorIs(t, store.Delete(ctx, key.ID), ErrKeyNotFound)

	found, ok = store.FindByKey(ctx, key.Key)
	require.True(t, ok)
	assert.False(t, found.Active)

	keys, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.ErrorIs(t, store.Add(ctx, &APIKey{}), ErrKeyNil)
}
