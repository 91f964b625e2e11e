package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// APIKeyStore stores caller credentials for the write endpoints.
//
// Implemented by: KeyStore.
type APIKeyStore interface {
	// FindByKey returns the key matching the plaintext key. Stores may omit inactive keys.
	FindByKey(ctx context.Context, key string) (*APIKey, bool)
	// Add hashes apiKey.Key and stores the key.
	Add(ctx context.Context, apiKey *APIKey) error
	// Delete deactivates a key. Rows are kept for audit.
	Delete(ctx context.Context, keyID string) error
	// List returns every active key without its hash.
	List(ctx context.Context) ([]*APIKey, error)
}

// KeyStore implements APIKeyStore on the api_keys table.
//
// FindByKey compares the key against every active hash, which is fine for the handful of
// loader credentials a deployment has.
type KeyStore struct {
	conn   *Connection
	logger *slog.Logger
}

var _ APIKeyStore = (*KeyStore)(nil)

// NewKeyStore creates a key store on conn.
func NewKeyStore(conn *Connection, logger *slog.Logger) (*KeyStore, error) {
	if conn == nil || conn.DB == nil {
		return nil, ErrNoDatabaseConnection
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &KeyStore{conn: conn, logger: logger}, nil
}

func newKeyID() string {
	return uuid.NewString()
}

const selectActiveKeys = `
	SELECT id, key_hash, name, permissions, created_at, expires_at, active
	FROM api_keys
	WHERE active = TRUE`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAPIKey(rows rowScanner) (*APIKey, error) {
	var (
		key         APIKey
		permissions []byte
	)

	if err := rows.Scan(
		&key.ID,
		&key.Key,
		&key.Name,
		&permissions,
		&key.CreatedAt,
		&key.ExpiresAt,
		&key.Active,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(permissions, &key.Permissions); err != nil {
		return nil, fmt.Errorf("failed to decode permissions of key %s: %w", key.ID, err)
	}

	return &key, nil
}

// FindByKey returns the matching active key. Its Key field holds the masked presented key.
func (s *KeyStore) FindByKey(ctx context.Context, key string) (*APIKey, bool) {
	if key == "" {
		return nil, false
	}

	rows, err := s.conn.QueryContext(ctx, selectActiveKeys)
	if err != nil {
		s.logger.Error("Failed to query API keys", slog.String("error", err.Error()))

		return nil, false
	}

	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		found, err := scanAPIKey(rows)
		if err != nil {
			s.logger.Warn("Skipping unreadable API key row", slog.String("error", err.Error()))

			continue
		}

		if CompareAPIKeyHash(found.Key, key) {
			found.Key = MaskKey(key)

			return found, true
		}
	}

	if err := rows.Err(); err != nil {
		s.logger.Error("Failed to read API keys", slog.String("error", err.Error()))
	}

	return nil, false
}

// Add stores the bcrypt hash of apiKey.Key. The plaintext is never persisted.
func (s *KeyStore) Add(ctx context.Context, apiKey *APIKey) error {
	if apiKey == nil || apiKey.Key == "" {
		return ErrKeyNil
	}

	if err := ValidatePermissions(apiKey.Permissions); err != nil {
		return err
	}

	hash, err := HashAPIKey(apiKey.Key)
	if err != nil {
		return err
	}

	permissions := apiKey.Permissions
	if permissions == nil {
		permissions = []string{}
	}

	permissionsJSON, err := json.Marshal(permissions)
	if err != nil {
		return fmt.Errorf("failed to serialize permissions: %w", err)
	}

	if apiKey.ID == "" {
		apiKey.ID = newKeyID()
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO api_keys (id, key_hash, name, permissions, created_at, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		apiKey.ID, hash, apiKey.Name, permissionsJSON, apiKey.CreatedAt, apiKey.ExpiresAt, apiKey.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to insert API key: %w", err)
	}

	s.logger.Info("API key created",
		slog.String("key_id", apiKey.ID),
		slog.String("name", apiKey.Name),
		slog.String("key", MaskKey(apiKey.Key)),
	)

	return nil
}

// Delete deactivates the key with keyID.
func (s *KeyStore) Delete(ctx context.Context, keyID string) error {
	if keyID == "" {
		return ErrKeyNotFound
	}

	result, err := s.conn.ExecContext(ctx,
		`UPDATE api_keys SET active = FALSE, updated_at = NOW() WHERE id = $1 AND active = TRUE`, keyID)
	if err != nil {
		return fmt.Errorf("failed to delete API key: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return ErrKeyNotFound
	}

	s.logger.Info("API key revoked", slog.String("key_id", keyID))

	return nil
}

// List returns every active key, newest first, without hashes.
func (s *KeyStore) List(ctx context.Context) ([]*APIKey, error) {
	rows, err := s.conn.QueryContext(ctx, selectActiveKeys+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query API keys: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	keys := []*APIKey{}

	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}

		key.Key = ""
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating API keys: %w", err)
	}

	return keys, nil
}
