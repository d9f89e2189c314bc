package storage

import (
	"context"
	"errors"
	"strings"
	"sync"

	"rabisk.app/cloud/models"
)

// Storage lookups return (nil, nil) when no row matches.
type Storage interface {
	FindKeyBySession(ctx context.Context, sessionID string) (*models.AccessKey, error)
	FindKeyByValue(ctx context.Context, key string) (*models.AccessKey, error)
	KeyValueExists(ctx context.Context, key string) (bool, error)
	InsertKey(ctx context.Context, key *models.AccessKey) error

	Close() error
}

// Sentinels for the two unique indexes on access_keys. InsertKey callers
// branch on these; any other insert failure is a real storage error.
var (
	ErrDuplicateKey     = errors.New("storage: access key value already exists")
	ErrDuplicateSession = errors.New("storage: checkout session already processed")
)

// Open selects a backend from the connection string: postgres:// URLs get
// the pgx pool, anything else is treated as a SQLite path.
func Open(ctx context.Context, databaseURL string) (Storage, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return NewPostgresStorage(ctx, databaseURL)
	}
	return NewSQLiteStorage(ctx, databaseURL)
}

// MemoryStorage enforces the same uniqueness contract as the SQL backends
// so tests exercise the real insert semantics, including concurrently.
type MemoryStorage struct {
	mu   sync.Mutex
	keys map[string]models.AccessKey // by ID
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{keys: make(map[string]models.AccessKey)}
}

func (m *MemoryStorage) FindKeyBySession(ctx context.Context, sessionID string) (*models.AccessKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ak := range m.keys {
		if ak.StripeSessionID == sessionID {
			found := ak
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) FindKeyByValue(ctx context.Context, key string) (*models.AccessKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ak := range m.keys {
		if ak.Key == key {
			found := ak
			return &found, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) KeyValueExists(ctx context.Context, key string) (bool, error) {
	ak, err := m.FindKeyByValue(ctx, key)
	if err != nil {
		return false, err
	}
	return ak != nil, nil
}

func (m *MemoryStorage) InsertKey(ctx context.Context, key *models.AccessKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ak := range m.keys {
		if ak.StripeSessionID == key.StripeSessionID {
			return ErrDuplicateSession
		}
		if ak.Key == key.Key {
			return ErrDuplicateKey
		}
	}

	m.keys[key.ID] = *key
	return nil
}

// Deactivate flips is_active off, for refunds handled out of band. Not part
// of the issuance or validation flow.
func (m *MemoryStorage) Deactivate(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, ak := range m.keys {
		if ak.Key == key {
			ak.IsActive = false
			m.keys[id] = ak
			return nil
		}
	}
	return nil
}

func (m *MemoryStorage) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

func (m *MemoryStorage) Close() error {
	return nil
}
