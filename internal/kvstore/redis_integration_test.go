package kvstore

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type record struct {
	Name  string    `json:"name"`
	Count int       `json:"count"`
	At    time.Time `json:"at"`
}

func newTestRedisStore(t *testing.T) *RedisStore[record] {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping Redis integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	return NewRedisStore[record](client, "test:"+uuid.New().String()+":", 0)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	in := record{Name: "a", Count: 3, At: time.Now().UTC().Truncate(time.Second)}

	if err := store.Set(ctx, "k", in, time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	out, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get = (%v, %v)", ok, err)
	}
	if out.Name != in.Name || out.Count != in.Count || !out.At.Equal(in.At) {
		t.Errorf("Get = %+v, want %+v", out, in)
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Error("Get should miss after Delete")
	}
}

func TestRedisStore_SetIfAbsent(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	ok, err := store.SetIfAbsent(ctx, "u", record{Name: "first"}, time.Time{})
	if err != nil || !ok {
		t.Fatalf("first SetIfAbsent = (%v, %v)", ok, err)
	}
	ok, err = store.SetIfAbsent(ctx, "u", record{Name: "second"}, time.Time{})
	if err != nil || ok {
		t.Fatalf("second SetIfAbsent = (%v, %v)", ok, err)
	}
	_ = store.Delete(ctx, "u")
}

func TestRedisStore_ExpiredRecordIsEvicted(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "old", record{Name: "x"}, time.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := store.Get(ctx, "old"); ok {
		t.Error("record past expiry and grace should be evicted by Redis")
	}
}

func TestRedisStore_DeleteIf(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	_ = store.Set(ctx, "c", record{Name: "current"}, time.Now().Add(time.Minute))

	removed, err := store.DeleteIf(ctx, "c", func(r record) bool { return r.Name == "stale" })
	if err != nil || removed {
		t.Fatalf("DeleteIf non-matching = (%v, %v), want (false, nil)", removed, err)
	}
	if _, ok, _ := store.Get(ctx, "c"); !ok {
		t.Fatal("non-matching DeleteIf must keep the record")
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.DeleteIf(ctx, "c", func(r record) bool { return r.Name == "current" })
			if err != nil {
				t.Errorf("DeleteIf: %v", err)
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)
	n := 0
	for ok := range results {
		if ok {
			n++
		}
	}
	if n != 1 {
		t.Errorf("%d callers removed the record, want 1", n)
	}
}
