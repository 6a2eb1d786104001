package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"mintgate/internal/domain"
)

// PostgresStore persists registry entries in PostgreSQL. Metadata rides in a
// jsonb column so new attributes never need a migration.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed member store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS registry_members (
	token_id   BIGINT PRIMARY KEY,
	owner      TEXT NOT NULL UNIQUE,
	minted_at  TIMESTAMPTZ NOT NULL,
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	metadata   JSONB NOT NULL DEFAULT '{}'::jsonb
);
CREATE INDEX IF NOT EXISTS idx_registry_members_owner ON registry_members (owner);
`

// EnsureSchema creates the registry table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure registry schema: %w", err)
	}
	return nil
}

// Upsert writes an entry keyed by token id. Replayed events land on the same
// row, so applying an event twice is a no-op.
func (s *PostgresStore) Upsert(ctx context.Context, entry domain.RegistryEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal registry metadata: %w", err)
	}
	query := `
		INSERT INTO registry_members (token_id, owner, minted_at, is_active, metadata)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (token_id) DO UPDATE SET
			owner = EXCLUDED.owner,
			minted_at = EXCLUDED.minted_at,
			is_active = EXCLUDED.is_active,
			metadata = EXCLUDED.metadata
	`
	if _, err := s.db.ExecContext(ctx, query,
		int64(entry.TokenID),
		entry.Owner.String(),
		entry.MintedAt,
		entry.IsActive,
		metadata,
	); err != nil {
		return fmt.Errorf("upsert registry entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByOwner(ctx context.Context, owner domain.Address) (domain.RegistryEntry, error) {
	query := `
		SELECT token_id, owner, minted_at, is_active, metadata
		FROM registry_members
		WHERE owner = $1
	`
	return scanEntry(s.db.QueryRowContext(ctx, query, owner.String()))
}

func (s *PostgresStore) FindByToken(ctx context.Context, tokenID uint64) (domain.RegistryEntry, error) {
	query := `
		SELECT token_id, owner, minted_at, is_active, metadata
		FROM registry_members
		WHERE token_id = $1
	`
	return scanEntry(s.db.QueryRowContext(ctx, query, int64(tokenID)))
}

func (s *PostgresStore) List(ctx context.Context) ([]domain.RegistryEntry, error) {
	query := `
		SELECT token_id, owner, minted_at, is_active, metadata
		FROM registry_members
		ORDER BY token_id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list registry entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.RegistryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list registry entries: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (domain.RegistryEntry, error) {
	var (
		tokenID  int64
		owner    string
		entry    domain.RegistryEntry
		metadata []byte
	)
	if err := row.Scan(&tokenID, &owner, &entry.MintedAt, &entry.IsActive, &metadata); err != nil {
		if err == sql.ErrNoRows {
			return domain.RegistryEntry{}, ErrNotFound
		}
		return domain.RegistryEntry{}, fmt.Errorf("scan registry entry: %w", err)
	}
	entry.TokenID = uint64(tokenID)
	entry.Owner = domain.Address(owner)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
			return domain.RegistryEntry{}, fmt.Errorf("unmarshal registry metadata: %w", err)
		}
	}
	return entry, nil
}
