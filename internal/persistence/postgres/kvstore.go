// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/finsight/orchestrator/internal/store"
)

// KVStore is the durable store.Store implementation. One upsert per Set keeps
// the single-writer-per-key discipline trivially safe.
type KVStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewKVStore(pool *pgxpool.Pool, logger *slog.Logger) *KVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &KVStore{
		pool:   pool,
		logger: logger,
	}
}

func (s *KVStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `
		SELECT value
		FROM workflow_state
		WHERE namespace=$1 AND key=$2
	`, namespace, key).Scan(&value)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		s.logger.Error("kv get failed",
			"namespace", namespace,
			"key", key,
			"error", err,
		)
		return nil, err
	}

	return value, nil
}

func (s *KVStore) Set(ctx context.Context, namespace, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO workflow_state (namespace, key, value, updated_at)
		VALUES ($1, $2, $3::jsonb, NOW())
		ON CONFLICT (namespace, key)
		DO UPDATE SET value=$3::jsonb, updated_at=NOW()
	`, namespace, key, value)

	if err != nil {
		s.logger.Error("kv set failed",
			"namespace", namespace,
			"key", key,
			"error", err,
		)
	}
	return err
}

func (s *KVStore) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM workflow_state
		WHERE namespace=$1 AND key=$2
	`, namespace, key)

	if err != nil {
		s.logger.Error("kv delete failed",
			"namespace", namespace,
			"key", key,
			"error", err,
		)
	}
	return err
}
