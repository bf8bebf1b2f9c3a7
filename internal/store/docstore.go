package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gclef-cmu/music-arena/internal/arena"
)

// DocStore is the narrow JSON-document interface the Gateway uses for
// battle records and votes. Documents are opaque []byte (caller
// marshals/unmarshals); the store's job is existence, versioning, and
// CAS, not schema.
type DocStore interface {
	Create(ctx context.Context, collection, id string, doc []byte) error
	Get(ctx context.Context, collection, id string) (doc []byte, version int, err error)
	Update(ctx context.Context, collection, id string, patch []byte, expectedVersion int) error
}

// InMemoryDocStore is the default store for tests and for cmd/gateway
// when no DATABASE_URL is configured. Real optimistic-concurrency
// versioning, just map-backed instead of row-backed.
type InMemoryDocStore struct {
	mu   sync.Mutex
	docs map[string]*versionedDoc
}

type versionedDoc struct {
	body    []byte
	version int
}

func NewInMemoryDocStore() *InMemoryDocStore {
	return &InMemoryDocStore{docs: make(map[string]*versionedDoc)}
}

func docKey(collection, id string) string {
	return collection + "/" + id
}

func (s *InMemoryDocStore) Create(ctx context.Context, collection, id string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := docKey(collection, id)
	if _, exists := s.docs[key]; exists {
		return arena.NewConflictError("document already exists: " + key)
	}
	s.docs[key] = &versionedDoc{body: append([]byte(nil), doc...), version: 1}
	return nil
}

func (s *InMemoryDocStore) Get(ctx context.Context, collection, id string) ([]byte, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := docKey(collection, id)
	v, ok := s.docs[key]
	if !ok {
		return nil, 0, arena.NewNotFoundError("document not found: " + key)
	}
	return append([]byte(nil), v.body...), v.version, nil
}

func (s *InMemoryDocStore) Update(ctx context.Context, collection, id string, patch []byte, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := docKey(collection, id)
	v, ok := s.docs[key]
	if !ok {
		return arena.NewNotFoundError("document not found: " + key)
	}
	if v.version != expectedVersion {
		return arena.NewConflictError(fmt.Sprintf("version mismatch on %s: expected %d, have %d", key, expectedVersion, v.version))
	}
	v.body = append([]byte(nil), patch...)
	v.version++
	return nil
}

// pgxPool is the slice of *pgxpool.Pool's surface PostgresDocStore
// needs, narrowed so tests can inject pgxmock's pool fake in its place.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresDocStore is the production-shaped store: a single `documents`
// table keyed by (collection, id) with data stored as JSONB, accessed
// through a pgxpool.Pool.
type PostgresDocStore struct {
	pool pgxPool
}

func NewPostgresDocStore(pool *pgxpool.Pool) *PostgresDocStore {
	return &PostgresDocStore{pool: pool}
}

// AutoMigrate creates the documents table if it doesn't already exist,
// the same IF NOT EXISTS convention vote-service's AutoMigrate uses.
func AutoMigrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			data JSONB NOT NULL,
			version INT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		)
	`)
	return err
}

func (s *PostgresDocStore) Create(ctx context.Context, collection, id string, doc []byte) error {
	raw := json.RawMessage(doc)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (collection, id, data, version)
		VALUES ($1, $2, $3, 1)
	`, collection, id, raw)
	if err != nil {
		if isUniqueViolation(err) {
			return arena.NewConflictError("document already exists: " + docKey(collection, id))
		}
		return arena.NewInternalError("docstore create failed: " + err.Error())
	}
	return nil
}

func (s *PostgresDocStore) Get(ctx context.Context, collection, id string) ([]byte, int, error) {
	var raw json.RawMessage
	var version int
	err := s.pool.QueryRow(ctx, `
		SELECT data, version FROM documents WHERE collection=$1 AND id=$2
	`, collection, id).Scan(&raw, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, arena.NewNotFoundError("document not found: " + docKey(collection, id))
		}
		return nil, 0, arena.NewInternalError("docstore get failed: " + err.Error())
	}
	return raw, version, nil
}

func (s *PostgresDocStore) Update(ctx context.Context, collection, id string, patch []byte, expectedVersion int) error {
	raw := json.RawMessage(patch)
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET data = $3, version = version + 1, updated_at = now()
		WHERE collection = $1 AND id = $2 AND version = $4
	`, collection, id, raw, expectedVersion)
	if err != nil {
		return arena.NewInternalError("docstore update failed: " + err.Error())
	}
	if tag.RowsAffected() == 0 {
		return arena.NewConflictError(fmt.Sprintf("version mismatch on %s: expected %d", docKey(collection, id), expectedVersion))
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
