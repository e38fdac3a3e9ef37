package lease

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noScriptError string

func (e noScriptError) Error() string { return string(e) }
func (noScriptError) RedisError()     {}

// fakeRedis implements just enough of SET NX and script evaluation.
type fakeRedis struct {
	redis.Scripter

	mu     sync.Mutex
	data   map[string]string
	setErr error
	evals  int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) EvalSha(context.Context, string, []string, ...any) *redis.Cmd {
	return redis.NewCmdResult(nil, noScriptError("NOSCRIPT No matching script"))
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals++
	if f.data[keys[0]] == args[0].(string) {
		delete(f.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[keyPrefix+key]
	return ok
}

func newTestRedis(client redisClient) *Redis {
	r := NewRedis(client, time.Minute)
	r.poll = 5 * time.Millisecond
	return r
}

func TestRedis_AcquireRelease(t *testing.T) {
	fake := newFakeRedis()
	r := newTestRedis(fake)

	release, err := r.Acquire(context.Background(), "c-1")
	require.NoError(t, err)
	assert.True(t, fake.has("c-1"))

	release()
	release()
	assert.False(t, fake.has("c-1"))
	assert.Equal(t, 1, fake.evals)
}

func TestRedis_WaitsForHolder(t *testing.T) {
	fake := newFakeRedis()
	r := newTestRedis(fake)

	first, err := r.Acquire(context.Background(), "c-1")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		first()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	second, err := r.Acquire(ctx, "c-1")
	require.NoError(t, err)
	second()
}

func TestRedis_BusyWhenContextEnds(t *testing.T) {
	fake := newFakeRedis()
	r := newTestRedis(fake)

	_, err := r.Acquire(context.Background(), "c-1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = r.Acquire(ctx, "c-1")
	require.ErrorIs(t, err, ErrBusy)
}

func TestRedis_ReleaseKeepsForeignToken(t *testing.T) {
	fake := newFakeRedis()
	r := newTestRedis(fake)

	release, err := r.Acquire(context.Background(), "c-1")
	require.NoError(t, err)

	fake.mu.Lock()
	fake.data[keyPrefix+"c-1"] = "someone-else"
	fake.mu.Unlock()

	release()
	assert.True(t, fake.has("c-1"))
}

func TestRedis_CommandError(t *testing.T) {
	fake := newFakeRedis()
	fake.setErr = errors.New("connection refused")
	r := newTestRedis(fake)

	_, err := r.Acquire(context.Background(), "c-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBusy)
}

// TestRedis_Live runs against a real server when GOPHCHAT_TEST_REDIS_ADDR is set.
func TestRedis_Live(t *testing.T) {
	addr := os.Getenv("GOPHCHAT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GOPHCHAT_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	r := newTestRedis(client)
	key := "live-" + time.Now().Format(time.RFC3339Nano)

	release, err := r.Acquire(context.Background(), key)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = r.Acquire(ctx, key)
	require.ErrorIs(t, err, ErrBusy)

	release()
	again, err := r.Acquire(context.Background(), key)
	require.NoError(t, err)
	again()
}
