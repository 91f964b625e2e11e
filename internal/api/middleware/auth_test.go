package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/correlator-io/roster/internal/storage"
)

type authFixture struct {
	store    *storage.InMemoryKeyStore
	loader   string
	refresh  string
	expired  string
	inactive string
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	ctx := context.Background()
	store := storage.NewInMemoryKeyStore()

	add := func(name string, permissions []string, mutate func(*storage.APIKey)) string {
		key, err := storage.GenerateAPIKey(name, permissions, time.Hour)
		require.NoError(t, err)

		if mutate != nil {
			mutate(key)
		}

		require.NoError(t, store.Add(ctx, key))

		return key.Key
	}

	f := &authFixture{store: store}
	f.loader = add("loader", []string{storage.PermissionLoadsWrite}, nil)
	f.refresh = add("refresher", []string{storage.PermissionViewsRefresh}, nil)
	f.expired = add("expired", []string{storage.PermissionLoadsWrite}, func(k *storage.APIKey) {
		past := time.Now().Add(-time.Minute)
		k.ExpiresAt = &past
	})

	inactive, err := storage.GenerateAPIKey("inactive", []string{storage.PermissionLoadsWrite}, 0)
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, inactive))
	require.NoError(t, store.Delete(ctx, inactive.ID))

	f.inactive = inactive.Key

	return f
}

func TestRequireAPIKey(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	f := newAuthFixture(t)

	var (
		caller    Caller
		hasCaller bool
	)

	handler := RequireAPIKey(f.store, storage.PermissionLoadsWrite, slog.New(slog.DiscardHandler))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, hasCaller = GetCaller(r.Context())

			w.WriteHeader(http.StatusNoContent)
		}))

	tests := []struct {
		name   string
		header string
		value  string
		status int
	}{
		{name: "valid key", header: "X-Api-Key", value: f.loader, status: http.StatusNoContent},
		{name: "bearer token", header: "Authorization", value: "Bearer " + f.loader, status: http.StatusNoContent},
		{name: "padded key", header: "X-Api-Key", value: " " + f.loader + " ", status: http.StatusNoContent},
		{name: "missing key", status: http.StatusUnauthorized},
		{name: "basic auth ignored", header: "Authorization", value: "Basic dXNlcjpwYXNz", status: http.StatusUnauthorized},
		{name: "malformed key", header: "X-Api-Key", value: "not-a-roster-key", status: http.StatusUnauthorized},
		{
			name:   "unknown key",
			header: "X-Api-Key",
			value:  "roster_ak_" + strings.Repeat("0", 64),
			status: http.StatusUnauthorized,
		},
		{name: "expired key", header: "X-Api-Key", value: f.expired, status: http.StatusUnauthorized},
		{name: "inactive key", header: "X-Api-Key", value: f.inactive, status: http.StatusForbidden},
		{name: "missing permission", header: "X-Api-Key", value: f.refresh, status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hasCaller = false

			req := httptest.NewRequest(http.MethodPost, "/api/v1/loads", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			if tt.status == http.StatusNoContent {
				require.True(t, hasCaller)
				assert.Equal(t, "loader", caller.Name)
				assert.Contains(t, caller.Permissions, storage.PermissionLoadsWrite)
				assert.False(t, caller.AuthTime.IsZero())

				return
			}

			assert.False(t, hasCaller, "rejected requests never reach the handler")
			assert.Equal(t, contentTypeProblemJSON, rec.Header().Get("Content-Type"))
			assert.NotContains(t, rec.Body.String(), "roster_ak_", "key material is never echoed")

			var body problem
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Status)
			assert.Equal(t, "/api/v1/loads", body.Instance)

			if tt.status == http.StatusUnauthorized {
				assert.Equal(t, `Bearer realm="roster"`, rec.Header().Get("WWW-Authenticate"))
			} else {
				assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestExtractAPIKey(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name    string
		headers map[string]string
		want    string
		ok      bool
	}{
		{name: "none"},
		{name: "x-api-key", headers: map[string]string{"X-Api-Key": "abc"}, want: "abc", ok: true},
		{name: "bearer", headers: map[string]string{"Authorization": "Bearer abc"}, want: "abc", ok: true},
		{
			name:    "x-api-key wins",
			headers: map[string]string{"X-Api-Key": "first", "Authorization": "Bearer second"},
			want:    "first",
			ok:      true,
		},
		{name: "blank", headers: map[string]string{"X-Api-Key": "   "}},
		{name: "bearer without token", headers: map[string]string{"Authorization": "Bearer "}},
		{name: "line break", headers: map[string]string{"X-Api-Key": "abc\r\nX-Injected: 1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			for k, v := range tt.headers {
				req.Header[http.CanonicalHeaderKey(k)] = []string{v}
			}

			got, ok := extractAPIKey(req)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthError(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	err := &AuthError{Type: ErrPermissionDenied, Message: "API key lacks permission views:refresh"}

	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, "authentication failed: permission denied: API key lacks permission views:refresh", err.Error())
	assert.Equal(t, http.StatusForbidden, authStatus(err))
	assert.Equal(t, http.StatusUnauthorized, authStatus(&AuthError{Type: ErrAPIKeyExpired}))
	assert.Equal(t, "authentication failed: API key expired", (&AuthError{Type: ErrAPIKeyExpired}).Error())
}
