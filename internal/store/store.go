// Package store provides session persistence backends for ConsultFlow.
//
// It includes an in-memory store for tests and development, plus SQLite and
// PostgreSQL stores for real deployments. Sessions are stored whole as JSON;
// the engine only ever reads and writes complete sessions between turns.
package store

import (
	"strings"
	"sync"

	"github.com/medleaf/ConsultFlow/internal/models"
)

// Store is the session persistence abstraction.
type Store interface {
	// GetSession returns the session with the given id, or
	// models.ErrSessionNotFound.
	GetSession(id string) (*models.Session, error)

	// SaveSession inserts or updates a session.
	SaveSession(sess *models.Session) error

	// DeleteSession removes a session. Deleting a missing session is not an
	// error.
	DeleteSession(id string) error

	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration for persistent stores.
type Opts struct {
	DSN string
}

// Option configures a store.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". File paths and
// file: URLs are treated as SQLite.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a map-backed session store.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*models.Session)}
}

// GetSession returns a copy of the stored session.
func (s *InMemoryStore) GetSession(id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	copied := *sess
	return &copied, nil
}

// SaveSession stores a copy of the session.
func (s *InMemoryStore) SaveSession(sess *models.Session) error {
	if sess == nil || sess.ID == "" {
		return models.ErrEmptySessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *sess
	s.sessions[sess.ID] = &copied
	return nil
}

// DeleteSession removes a session if present.
func (s *InMemoryStore) DeleteSession(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
