// SPDX-License-Identifier: Apache-2.0

// Package store defines the namespace-scoped key-value contract every
// workflow mutation funnels through. Reads may be concurrent; writes for one
// key are serialized by the executor's one-step-in-flight discipline, not by
// the store.
package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("key not found")

type Store interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
}
