package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/correlator-io/roster/internal/storage"
)

// Authentication failures. Unknown and malformed keys share ErrInvalidAPIKey.
var (
	ErrMissingAPIKey       = errors.New("missing API key")
	ErrInvalidAPIKey       = errors.New("invalid API key")
	ErrAPIKeyExpired       = errors.New("API key expired")
	ErrAPIKeyInactive      = errors.New("API key inactive")
	ErrPermissionDenied    = errors.New("permission denied")
	errUnexpectedAuthError = errors.New("authentication failed")
)

type (
	// AuthError carries one of the authentication sentinels plus a caller-facing message.
	AuthError struct {
		Type    error
		Message string
	}

	// Caller is the authenticated key stored in the request context.
	Caller struct {
		KeyID       string
		Name        string
		Permissions []string
		AuthTime    time.Time
	}

	callerKey struct{}
)

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authentication failed: %s: %s", e.Type.Error(), e.Message)
	}

	return "authentication failed: " + e.Type.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Type
}

// GetCaller returns the caller stored by RequireAPIKey.
func GetCaller(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(Caller)

	return caller, ok
}

// extractAPIKey reads X-Api-Key, then "Authorization: Bearer". Values containing a line
// break are rejected.
func extractAPIKey(r *http.Request) (string, bool) {
	raw := r.Header.Get("X-Api-Key")

	if raw == "" {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			return "", false
		}

		raw = token
	}

	if strings.ContainsAny(raw, "\r\n") {
		return "", false
	}

	key := strings.TrimSpace(raw)

	return key, key != ""
}

func authenticate(ctx context.Context, store storage.APIKeyStore, apiKey, permission string) (*storage.APIKey, error) {
	parsed, err := storage.ParseAPIKey(apiKey)
	if err != nil {
		storage.PerformDummyComparison()

		return nil, &AuthError{Type: ErrInvalidAPIKey, Message: "Invalid or missing API key"}
	}

	found, ok := store.FindByKey(ctx, parsed)
	if !ok {
		return nil, &AuthError{Type: ErrInvalidAPIKey, Message: "Invalid or missing API key"}
	}

	if !found.Active {
		return nil, &AuthError{Type: ErrAPIKeyInactive, Message: "API key is inactive"}
	}

	if found.Expired(time.Now()) {
		return nil, &AuthError{Type: ErrAPIKeyExpired, Message: "API key has expired"}
	}

	if !found.HasPermission(permission) {
		return nil, &AuthError{Type: ErrPermissionDenied, Message: "API key lacks permission " + permission}
	}

	return found, nil
}

// RequireAPIKey rejects requests without a valid, unexpired key that grants permission.
// Missing, unknown and expired keys get 401; inactive keys and missing permissions get 403.
func RequireAPIKey(store storage.APIKeyStore, permission string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			apiKey, ok := extractAPIKey(r)
			if !ok {
				writeAuthError(w, r, logger, &AuthError{Type: ErrMissingAPIKey, Message: "Missing API key"})

				return
			}

			found, err := authenticate(r.Context(), store, apiKey, permission)
			if err != nil {
				writeAuthError(w, r, logger, err)

				return
			}

			caller := Caller{
				KeyID:       found.ID,
				Name:        found.Name,
				Permissions: found.Permissions,
				AuthTime:    time.Now(),
			}

			logger.Info("API key authenticated",
				slog.String("key_id", caller.KeyID),
				slog.String("key_name", caller.Name),
				slog.String("key", storage.MaskKey(apiKey)),
				slog.Duration("auth_latency", time.Since(start)),
				slog.String("correlation_id", GetCorrelationID(r.Context())),
				slog.String("endpoint", r.URL.Path),
			)

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
		})
	}
}

func authStatus(err error) int {
	switch {
	case errors.Is(err, ErrAPIKeyInactive), errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	default:
		return http.StatusUnauthorized
	}
}

func writeAuthError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		authErr = &AuthError{Type: errUnexpectedAuthError}
	}

	logger.Warn("Authentication failed",
		slog.String("reason", authErr.Error()),
		slog.String("correlation_id", GetCorrelationID(r.Context())),
		slog.String("endpoint", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("user_agent", r.UserAgent()),
	)

	if authStatus(authErr) == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="roster"`)
	}

	writeProblem(w, r, logger, authStatus(authErr), authErr.Error())
}
