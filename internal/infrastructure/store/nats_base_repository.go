// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-whistle-service/internal/logging"
)

// NATS Key-Value store bucket names
const (
	KVStoreNameRooms           = "rooms"
	KVStoreNameSubscriptions   = "subscriptions"
	KVStoreNameMonthlySessions = "monthly-sessions"
)

// tracerName is the instrumentation name for the store package.
const tracerName = "github.com/linuxfoundation/lfx-v2-whistle-service/internal/infrastructure/store"

// Compare-and-swap retry bounds for read-modify-write operations.
const (
	maxCASAttempts = 10
	casBackoff     = 5 * time.Millisecond
)

// INatsKeyValue is the subset of jetstream.KeyValue used by the repositories.
type INatsKeyValue interface {
	ListKeys(context.Context, ...jetstream.WatchOpt) (jetstream.KeyLister, error)
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(context.Context, string, []byte) (uint64, error)
	Update(context.Context, string, []byte, uint64) (uint64, error)
	Delete(context.Context, string, ...jetstream.KVDeleteOpt) error
}

// NatsBaseRepository holds the KV plumbing shared by every NATS repository:
// JSON encoding, error mapping to domain errors and one client span per
// KV operation.
type NatsBaseRepository[T any] struct {
	kvStore    INatsKeyValue
	entityName string // used in error messages, e.g. "room"
}

// NewNatsBaseRepository creates a new base repository for NATS KV operations
func NewNatsBaseRepository[T any](kvStore INatsKeyValue, entityName string) *NatsBaseRepository[T] {
	return &NatsBaseRepository[T]{
		kvStore:    kvStore,
		entityName: entityName,
	}
}

// IsReady checks if the repository is ready for use
func (r *NatsBaseRepository[T]) IsReady() bool {
	return r.kvStore != nil
}

func (r *NatsBaseRepository[T]) startSpan(ctx context.Context, op, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("db.system", "nats"),
		attribute.String("db.operation", op),
		attribute.String("db.nats.entity", r.entityName),
	)
	if key != "" {
		attrs = append(attrs, attribute.String("db.nats.key", key))
	}
	return otel.Tracer(tracerName).Start(ctx, "nats.kv."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// finish records err on the span and passes it through.
func finish(span trace.Span, err error) error {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return nil
	}
	span.RecordError(err)
	switch domain.GetErrorType(err) {
	case domain.ErrorTypeNotFound:
		span.SetStatus(codes.Error, "not found")
	case domain.ErrorTypeConflict:
		span.SetStatus(codes.Error, "conflict")
	default:
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *NatsBaseRepository[T]) unavailable() error {
	return domain.NewUnavailableError(fmt.Sprintf("%s repository is not available", r.entityName))
}

// mapWriteError converts a KV write failure into a domain error.
func (r *NatsBaseRepository[T]) mapWriteError(ctx context.Context, op, key string, err error) error {
	switch {
	case errors.Is(err, jetstream.ErrKeyNotFound):
		return domain.NewNotFoundError(fmt.Sprintf("%s not found", r.entityName), err)
	case errors.Is(err, jetstream.ErrKeyExists), isWrongSequence(err):
		return domain.NewConflictError(fmt.Sprintf("%s has been modified", r.entityName), err)
	}
	slog.ErrorContext(ctx, fmt.Sprintf("error in NATS KV %s of %s", op, r.entityName),
		logging.ErrKey, err, "key", key)
	return domain.NewInternalError(fmt.Sprintf("failed to %s %s in store", op, r.entityName), err)
}

func isWrongSequence(err error) bool {
	return err != nil && strings.Contains(err.Error(), "wrong last sequence")
}

// GetRaw retrieves a raw entry from NATS KV store
func (r *NatsBaseRepository[T]) GetRaw(ctx context.Context, key string) (jetstream.KeyValueEntry, error) {
	ctx, span := r.startSpan(ctx, "get", key)
	defer span.End()

	if !r.IsReady() {
		return nil, finish(span, r.unavailable())
	}

	entry, err := r.kvStore.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, finish(span, domain.NewNotFoundError(
				fmt.Sprintf("%s with key '%s' not found", r.entityName, key), err))
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error getting %s from NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		return nil, finish(span, domain.NewInternalError(
			fmt.Sprintf("failed to retrieve %s from store", r.entityName), err))
	}
	return entry, finish(span, nil)
}

// Get retrieves and unmarshals an entity from NATS KV store
func (r *NatsBaseRepository[T]) Get(ctx context.Context, key string) (*T, error) {
	entity, _, err := r.GetWithRevision(ctx, key)
	return entity, err
}

// GetWithRevision retrieves an entity with its revision from NATS KV store
func (r *NatsBaseRepository[T]) GetWithRevision(ctx context.Context, key string) (*T, uint64, error) {
	entry, err := r.GetRaw(ctx, key)
	if err != nil {
		return nil, 0, err
	}

	var entity T
	if err := json.Unmarshal(entry.Value(), &entity); err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("error unmarshaling %s", r.entityName),
			logging.ErrKey, err, "key", key)
		return nil, 0, domain.NewInternalError(
			fmt.Sprintf("failed to unmarshal %s data", r.entityName), err)
	}
	return &entity, entry.Revision(), nil
}

// Exists checks if an entity exists in the store
func (r *NatsBaseRepository[T]) Exists(ctx context.Context, key string) (bool, error) {
	_, err := r.GetRaw(ctx, key)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *NatsBaseRepository[T]) marshal(entity *T) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, domain.NewInternalError(fmt.Sprintf("failed to marshal %s", r.entityName), err)
	}
	return data, nil
}

// Put stores the entity unconditionally.
func (r *NatsBaseRepository[T]) Put(ctx context.Context, key string, entity *T) error {
	ctx, span := r.startSpan(ctx, "put", key)
	defer span.End()

	if !r.IsReady() {
		return finish(span, r.unavailable())
	}
	data, err := r.marshal(entity)
	if err != nil {
		return finish(span, err)
	}
	if _, err := r.kvStore.Put(ctx, key, data); err != nil {
		return finish(span, r.mapWriteError(ctx, "create", key, err))
	}
	return finish(span, nil)
}

// Create stores the entity only if key is absent. An existing key yields a
// conflict error.
func (r *NatsBaseRepository[T]) Create(ctx context.Context, key string, entity *T) error {
	ctx, span := r.startSpan(ctx, "create", key)
	defer span.End()

	if !r.IsReady() {
		return finish(span, r.unavailable())
	}
	data, err := r.marshal(entity)
	if err != nil {
		return finish(span, err)
	}
	// Expected revision 0 means "key must not exist".
	if _, err := r.kvStore.Update(ctx, key, data, 0); err != nil {
		return finish(span, r.mapWriteError(ctx, "create", key, err))
	}
	return finish(span, nil)
}

// Update updates an existing entity in the store with optimistic concurrency control
func (r *NatsBaseRepository[T]) Update(ctx context.Context, key string, entity *T, revision uint64) error {
	ctx, span := r.startSpan(ctx, "update", key, attribute.Int64("db.nats.revision", int64(revision)))
	defer span.End()

	if !r.IsReady() {
		return finish(span, r.unavailable())
	}
	data, err := r.marshal(entity)
	if err != nil {
		return finish(span, err)
	}
	if _, err := r.kvStore.Update(ctx, key, data, revision); err != nil {
		return finish(span, r.mapWriteError(ctx, "update", key, err))
	}
	return finish(span, nil)
}

// Mutate applies fn to the current value of key and writes the result with
// compare-and-swap, retrying on concurrent modification. When the key is
// absent and create is non-nil, create supplies the initial value.
func (r *NatsBaseRepository[T]) Mutate(ctx context.Context, key string, create func() *T, fn func(*T) error) (*T, error) {
	var lastErr error
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		entity, revision, err := r.GetWithRevision(ctx, key)
		switch {
		case err == nil:
		case domain.GetErrorType(err) == domain.ErrorTypeNotFound && create != nil:
			entity, revision = create(), 0
		default:
			return nil, err
		}

		if err := fn(entity); err != nil {
			return nil, err
		}

		if revision == 0 {
			err = r.Create(ctx, key, entity)
		} else {
			err = r.Update(ctx, key, entity, revision)
		}
		if err == nil {
			return entity, nil
		}
		if domain.GetErrorType(err) != domain.ErrorTypeConflict {
			return nil, err
		}

		lastErr = err
		slog.DebugContext(ctx, fmt.Sprintf("%s modified concurrently, retrying", r.entityName),
			"key", key, "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * casBackoff):
		}
	}

	slog.WarnContext(ctx, fmt.Sprintf("giving up updating %s after concurrent modifications", r.entityName),
		"key", key, "attempts", maxCASAttempts)
	return nil, domain.NewConflictError(fmt.Sprintf("%s is being modified concurrently", r.entityName), lastErr)
}

// Delete removes an entity from the store with optimistic concurrency control
func (r *NatsBaseRepository[T]) Delete(ctx context.Context, key string, revision uint64) error {
	ctx, span := r.startSpan(ctx, "delete", key, attribute.Int64("db.nats.revision", int64(revision)))
	defer span.End()

	if !r.IsReady() {
		return finish(span, r.unavailable())
	}
	if err := r.kvStore.Delete(ctx, key, jetstream.LastRevision(revision)); err != nil {
		return finish(span, r.mapWriteError(ctx, "delete", key, err))
	}
	return finish(span, nil)
}

// ListKeys lists every key in the bucket.
func (r *NatsBaseRepository[T]) ListKeys(ctx context.Context) ([]string, error) {
	ctx, span := r.startSpan(ctx, "list_keys", "")
	defer span.End()

	if !r.IsReady() {
		return nil, finish(span, r.unavailable())
	}

	lister, err := r.kvStore.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, finish(span, nil)
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error listing %s keys from NATS KV", r.entityName),
			logging.ErrKey, err)
		return nil, finish(span, domain.NewInternalError(
			fmt.Sprintf("failed to list %s keys from store", r.entityName), err))
	}

	var keys []string
	for key := range lister.Keys() {
		keys = append(keys, key)
	}

	span.SetAttributes(attribute.Int("db.nats.keys_count", len(keys)))
	return keys, finish(span, nil)
}

// PutIndex writes an index entry whose value is the referenced entity key.
func (r *NatsBaseRepository[T]) PutIndex(ctx context.Context, indexKey, value string) error {
	if !r.IsReady() {
		return r.unavailable()
	}
	if _, err := r.kvStore.Put(ctx, indexKey, []byte(value)); err != nil {
		slog.ErrorContext(ctx, "error creating index",
			logging.ErrKey, err, "index_key", indexKey)
		return domain.NewInternalError("failed to create index", err)
	}
	return nil
}

// GetIndex returns the value stored under an index entry.
func (r *NatsBaseRepository[T]) GetIndex(ctx context.Context, indexKey string) (string, error) {
	entry, err := r.GetRaw(ctx, indexKey)
	if err != nil {
		return "", err
	}
	return string(entry.Value()), nil
}

// DeleteIndex removes an index entry. A missing entry is not an error.
func (r *NatsBaseRepository[T]) DeleteIndex(ctx context.Context, indexKey string) error {
	if !r.IsReady() {
		return r.unavailable()
	}
	err := r.kvStore.Delete(ctx, indexKey)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		slog.WarnContext(ctx, "error deleting index",
			logging.ErrKey, err, "index_key", indexKey)
		return domain.NewInternalError("failed to delete index", err)
	}
	return nil
}
