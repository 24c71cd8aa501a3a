package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeRedis implements RedisQueue over in-memory lists.
type fakeRedis struct {
	mu    sync.Mutex
	lists map[string][]string
	err   error
}

func newFakeRedis() *fakeRedis { return &fakeRedis{lists: map[string][]string{}} }

func (f *fakeRedis) LPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	for _, v := range values {
		var s string
		switch x := v.(type) {
		case []byte:
			s = string(x)
		case string:
			s = x
		}
		f.lists[key] = append([]string{s}, f.lists[key]...)
	}
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeRedis) BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	f.mu.Lock()
	for _, k := range keys {
		if l := f.lists[k]; len(l) > 0 {
			v := l[len(l)-1]
			f.lists[k] = l[:len(l)-1]
			f.mu.Unlock()
			return redis.NewStringSliceResult([]string{k, v}, nil)
		}
	}
	f.mu.Unlock()
	wait := timeout
	if wait > 5*time.Millisecond {
		wait = 5 * time.Millisecond
	}
	select {
	case <-ctx.Done():
		return redis.NewStringSliceResult(nil, ctx.Err())
	case <-time.After(wait):
	}
	return redis.NewStringSliceResult(nil, redis.Nil)
}

func (f *fakeRedis) LLen(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return redis.NewIntResult(int64(len(f.lists[key])), nil)
}

func (f *fakeRedis) list(key string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lists[key]...)
}

func (f *fakeRedis) dlq(queue string) []DLQEntry {
	var out []DLQEntry
	for _, raw := range f.list(DLQPrefix + queue) {
		var e DLQEntry
		if err := json.Unmarshal([]byte(raw), &e); err == nil {
			out = append(out, e)
		}
	}
	return out
}
