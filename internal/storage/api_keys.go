package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	apiKeyPrefix    = "roster_ak_"
	randomBytesSize = 32
	apiKeyLength    = len(apiKeyPrefix) + 2*randomBytesSize
	maskPrefixLen   = len(apiKeyPrefix) + 2 // "roster_ak_3f"
	maskSuffixLen   = 4

	// bcrypt cost 10 is about 60ms per comparison.
	bcryptCost  = 10
	bcryptLimit = 72
)

// Permissions an API key can carry. Each write endpoint requires one of them.
const (
	PermissionLoadsWrite   = "loads:write"
	PermissionViewsRefresh = "views:refresh"
)

var (
	// ErrKeyNil is returned when a nil or empty API key is provided.
	ErrKeyNil = errors.New("API key cannot be nil")
	// ErrKeyNotFound is returned when operating on a key id that does not exist.
	ErrKeyNotFound = errors.New("API key not found")
	// ErrKeyNameEmpty is returned when generating a key without a name.
	ErrKeyNameEmpty = errors.New("API key name cannot be empty")
	// ErrInvalidKeyFormat is returned when a key lacks the roster prefix.
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	// ErrInvalidKeyLength is returned when a key has the prefix but the wrong length.
	ErrInvalidKeyLength = errors.New("invalid API key length")
	// ErrUnknownPermission is returned for a permission no endpoint checks.
	ErrUnknownPermission = errors.New("unknown permission")
)

// APIKey is a caller credential for the write endpoints.
//
// Key holds the plaintext only between generation and Add. Keys read back from a store
// carry a masked hash instead.
type APIKey struct {
	ID          string     `json:"id"`
	Key         string     `json:"key,omitempty"`
	Name        string     `json:"name"`
	Permissions []string   `json:"permissions"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Active      bool       `json:"active"`
}

// HasPermission reports whether the key grants permission.
func (k *APIKey) HasPermission(permission string) bool {
	return slices.Contains(k.Permissions, permission)
}

// Expired reports whether the key's expiry lies before now.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// ValidatePermissions rejects permissions that no endpoint checks.
func ValidatePermissions(permissions []string) error {
	for _, p := range permissions {
		if p != PermissionLoadsWrite && p != PermissionViewsRefresh {
			return fmt.Errorf("%w: %q", ErrUnknownPermission, p)
		}
	}

	return nil
}

// GenerateAPIKey creates a new key with 256 random bits: "roster_ak_" followed by 64 hex chars.
func GenerateAPIKey(name string, permissions []string, ttl time.Duration) (*APIKey, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrKeyNameEmpty
	}

	if err := ValidatePermissions(permissions); err != nil {
		return nil, err
	}

	randomBytes := make([]byte, randomBytesSize)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	now := time.Now().UTC()
	key := &APIKey{
		ID:          newKeyID(),
		Key:         apiKeyPrefix + hex.EncodeToString(randomBytes),
		Name:        strings.TrimSpace(name),
		Permissions: permissions,
		CreatedAt:   now,
		Active:      true,
	}

	if ttl > 0 {
		expires := now.Add(ttl)
		key.ExpiresAt = &expires
	}

	return key, nil
}

// ParseAPIKey checks that keyString looks like a roster key.
func ParseAPIKey(keyString string) (string, error) {
	if keyString == "" {
		return "", ErrKeyNil
	}

	if !strings.HasPrefix(keyString, apiKeyPrefix) {
		return "", ErrInvalidKeyFormat
	}

	if len(keyString) != apiKeyLength {
		return "", ErrInvalidKeyLength
	}

	return keyString, nil
}

// MaskKey keeps the prefix and the last four characters of a roster key. Anything else is
// masked completely.
func MaskKey(key string) string {
	if len(key) != apiKeyLength {
		return strings.Repeat("*", len(key))
	}

	return key[:maskPrefixLen] + strings.Repeat("*", apiKeyLength-maskPrefixLen-maskSuffixLen) +
		key[apiKeyLength-maskSuffixLen:]
}

// bcryptInput pre-hashes keys longer than bcrypt's 72 byte limit with SHA-256.
func bcryptInput(apiKey string) []byte {
	if len(apiKey) > bcryptLimit {
		sum := sha256.Sum256([]byte(apiKey))

		return sum[:]
	}

	return []byte(apiKey)
}

// HashAPIKey returns the bcrypt hash stored in place of the key.
func HashAPIKey(apiKey string) (string, error) {
	if apiKey == "" {
		return "", ErrKeyNil
	}

	hash, err := bcrypt.GenerateFromPassword(bcryptInput(apiKey), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}

	return string(hash), nil
}

// CompareAPIKeyHash reports whether apiKey matches hash. Any error counts as a mismatch.
func CompareAPIKeyHash(hash, apiKey string) bool {
	if hash == "" || apiKey == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(apiKey)) == nil
}

// PerformDummyComparison spends one bcrypt comparison so that unknown keys take as long as
// known ones.
func PerformDummyComparison() {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte("dummy"))
}

// dummyHash is a valid cost-10 hash, so the dummy comparison runs the full key schedule.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
