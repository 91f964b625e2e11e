package storage

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// InMemoryKeyStore is a thread-safe APIKeyStore for tests and local runs without a database.
// Keys are held in plaintext.
type InMemoryKeyStore struct {
	keys  map[string]*APIKey // by plaintext key
	byID  map[string]*APIKey
	mutex sync.RWMutex
}

var _ APIKeyStore = (*InMemoryKeyStore)(nil)

// NewInMemoryKeyStore creates an empty store.
func NewInMemoryKeyStore() *InMemoryKeyStore {
	return &InMemoryKeyStore{
		keys: make(map[string]*APIKey),
		byID: make(map[string]*APIKey),
	}
}

// FindByKey returns a copy of the key, including inactive ones so callers can tell them apart.
func (s *InMemoryKeyStore) FindByKey(_ context.Context, key string) (*APIKey, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	found, ok := s.keys[key]
	if !ok {
		return nil, false
	}

	keyCopy := *found
	keyCopy.Key = MaskKey(key)

	return &keyCopy, true
}

// Add stores a copy of apiKey.
func (s *InMemoryKeyStore) Add(_ context.Context, apiKey *APIKey) error {
	if apiKey == nil || apiKey.Key == "" {
		return ErrKeyNil
	}

	if err := ValidatePermissions(apiKey.Permissions); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if apiKey.ID == "" {
		apiKey.ID = newKeyID()
	}

	keyCopy := *apiKey
	keyCopy.Permissions = slices.Clone(apiKey.Permissions)

	s.keys[keyCopy.Key] = &keyCopy
	s.byID[keyCopy.ID] = &keyCopy

	return nil
}

// Delete marks the key inactive.
func (s *InMemoryKeyStore) Delete(_ context.Context, keyID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	found, ok := s.byID[keyID]
	if !ok || !found.Active {
		return ErrKeyNotFound
	}

	found.Active = false

	return nil
}

// List returns the active keys without their plaintext, newest first.
func (s *InMemoryKeyStore) List(context.Context) ([]*APIKey, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	keys := []*APIKey{}

	for _, k := range s.byID {
		if !k.Active {
			continue
		}

		keyCopy := *k
		keyCopy.Key = ""
		keys = append(keys, &keyCopy)
	}

	slices.SortFunc(keys, func(a, b *APIKey) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID, b.ID)
	})

	return keys, nil
}
