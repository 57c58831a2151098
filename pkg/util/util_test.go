package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRedis struct {
	keys    map[string]int64
	failing bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: map[string]int64{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) *redis.BoolCmd {
	if f.failing {
		return redis.NewBoolResult(false, errors.New("dial tcp: connection refused"))
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = 1
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			delete(f.keys, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	f.keys[key]++
	return redis.NewIntResult(f.keys[key], nil)
}

func (f *fakeRedis) Expire(_ context.Context, _ string, _ time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}

func TestDeduper_AcquireOnce(t *testing.T) {
	rdb := newFakeRedis()
	d := NewDeduper(rdb, time.Hour, zap.NewNop())
	ctx := context.Background()

	assert.True(t, d.AcquireOnce(ctx, "archive", "lifecycle.timeline.appended:1"))
	assert.False(t, d.AcquireOnce(ctx, "archive", "lifecycle.timeline.appended:1"))
	assert.True(t, d.AcquireOnce(ctx, "archive", "lifecycle.timeline.appended:2"))

	d.Release(ctx, "archive", "lifecycle.timeline.appended:1")
	assert.True(t, d.AcquireOnce(ctx, "archive", "lifecycle.timeline.appended:1"))
}

func TestDeduper_RedisDownAllowsProcessing(t *testing.T) {
	rdb := newFakeRedis()
	rdb.failing = true
	d := NewDeduper(rdb, time.Hour, nil)

	assert.True(t, d.AcquireOnce(context.Background(), "archive", "k"))
	assert.True(t, d.AcquireOnce(context.Background(), "archive", "k"))
}

func TestRetryCounter(t *testing.T) {
	rdb := newFakeRedis()
	rc := NewRetryCounter(rdb, time.Hour)
	ctx := context.Background()
	key := FormatRetryKey("archive", "lifecycle.project.deleted:4")

	assert.Equal(t, "retry:archive:lifecycle.project.deleted:4", key)
	n, err := rc.IncrementAndGet(ctx, key)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	n, _ = rc.IncrementAndGet(ctx, key)
	assert.EqualValues(t, 2, n)

	require.NoError(t, rc.Reset(ctx, key))
	n, _ = rc.IncrementAndGet(ctx, key)
	assert.EqualValues(t, 1, n)
}

func TestIsRetryableError(t *testing.T) {
	var syntaxErr error
	{
		var v map[string]any
		syntaxErr = json.Unmarshal([]byte("{"), &v)
	}

	tests := []struct {
		name      string
		err       error
		retryable bool
		kind      string
	}{
		{"nil", nil, false, ""},
		{"json", fmt.Errorf("decode: %w", syntaxErr), false, "json_decode_error"},
		{"no rows", pgx.ErrNoRows, false, "not_found"},
		{"unique", &pgconn.PgError{Code: "23505"}, false, "duplicate_key"},
		{"fk", &pgconn.PgError{Code: "23503"}, false, "constraint_violation"},
		{"conn", &pgconn.PgError{Code: "08006"}, true, "db_connection_error"},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true, "serialization_failure"},
		{"deadline", context.DeadlineExceeded, true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"text", errors.New("read: connection reset by peer"), true, "db_connection_error"},
		{"unknown", errors.New("something odd"), false, "unknown_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, kind := IsRetryableError(tt.err)
			assert.Equal(t, tt.retryable, retryable)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(1, 3, true))
	assert.True(t, ShouldRetry(3, 3, true))
	assert.False(t, ShouldRetry(4, 3, true))
	assert.False(t, ShouldRetry(1, 3, false))
}
