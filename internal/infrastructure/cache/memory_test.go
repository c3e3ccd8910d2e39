package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sitelens/backend/internal/domain"
)

type snapshot struct {
	ID    string   `json:"id"`
	Score float64  `json:"score"`
	Tags  []string `json:"tags"`
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	t.Run("store and retrieve string", func(t *testing.T) {
		if err := cache.Set(ctx, "k1", "value", time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		var got string
		if err := cache.Get(ctx, "k1", &got); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != "value" {
			t.Errorf("Get() = %q, want value", got)
		}
	})

	t.Run("store and retrieve slice of structs", func(t *testing.T) {
		value := []snapshot{{ID: "a", Score: 0.5, Tags: []string{"cafe"}}, {ID: "b", Score: 1}}
		if err := cache.Set(ctx, "k2", value, time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		var got []snapshot
		if err := cache.Get(ctx, "k2", &got); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if len(got) != 2 || got[0].ID != "a" || got[0].Tags[0] != "cafe" || got[1].Score != 1 {
			t.Errorf("Get() = %+v", got)
		}
	})

	t.Run("readers get independent copies", func(t *testing.T) {
		value := []snapshot{{ID: "a", Tags: []string{"cafe"}}}
		if err := cache.Set(ctx, "k3", value, time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		value[0].ID = "mutated"

		var first []snapshot
		_ = cache.Get(ctx, "k3", &first)
		first[0].Tags[0] = "bar"

		var second []snapshot
		_ = cache.Get(ctx, "k3", &second)
		if second[0].ID != "a" || second[0].Tags[0] != "cafe" {
			t.Errorf("cached snapshot was mutated: %+v", second)
		}
	})

	t.Run("expires after TTL", func(t *testing.T) {
		if err := cache.Set(ctx, "k4", "soon", time.Millisecond); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		time.Sleep(10 * time.Millisecond)

		var got string
		if err := cache.Get(ctx, "k4", &got); !errors.Is(err, domain.ErrCacheMiss) {
			t.Errorf("expected cache miss after expiration, got error = %v", err)
		}
	})

	t.Run("rejects unserializable values", func(t *testing.T) {
		if err := cache.Set(ctx, "k5", make(chan int), time.Minute); err == nil {
			t.Error("expected error for channel value")
		}
	})

	t.Run("reports decode errors", func(t *testing.T) {
		_ = cache.Set(ctx, "k6", "not a number", time.Minute)
		var got int
		err := cache.Get(ctx, "k6", &got)
		if err == nil || errors.Is(err, domain.ErrCacheMiss) {
			t.Errorf("Get() error = %v, want decode error", err)
		}
	})
}

func TestMemoryCache_Get_CacheMiss(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()

	var dest string
	err := cache.Get(context.Background(), "non-existent-key", &dest)
	if !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	key := "delete-test"
	if err := cache.Set(ctx, key, "value", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := cache.Delete(ctx, key); err != nil {
		t.Errorf("Delete() error = %v", err)
	}

	var dest string
	if err := cache.Get(ctx, key, &dest); !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() after delete error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCache_Exists(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	key := "exists-test"

	exists, err := cache.Exists(ctx, key)
	if err != nil {
		t.Errorf("Exists() error = %v", err)
	}
	if exists {
		t.Errorf("Exists() = true, want false for non-existent key")
	}

	if err := cache.Set(ctx, key, "value", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if exists, _ = cache.Exists(ctx, key); !exists {
		t.Errorf("Exists() = false, want true after setting value")
	}

	shortKey := "short-ttl"
	if err := cache.Set(ctx, shortKey, "value", time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if exists, _ = cache.Exists(ctx, shortKey); exists {
		t.Errorf("Exists() = true, want false after expiration")
	}
}

func TestMemoryCache_Cleanup(t *testing.T) {
	cache := NewMemoryCacheWithCleanup(5 * time.Millisecond)
	defer cache.Close()
	ctx := context.Background()

	_ = cache.Set(ctx, "short", 1, time.Millisecond)
	_ = cache.Set(ctx, "long", 2, time.Minute)

	deadline := time.Now().Add(time.Second)
	for cache.Size() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if size := cache.Size(); size != 1 {
		t.Errorf("Size() = %d, want 1 after cleanup", size)
	}
}

func TestMemoryCache_Close(t *testing.T) {
	cache := NewMemoryCache()
	if err := cache.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	// second close is a no-op
	if err := cache.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestMemoryCache_Clear(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		key := string(rune('a' + i))
		if err := cache.Set(ctx, key, i, time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	if size := cache.Size(); size != 5 {
		t.Fatalf("Size() = %d, want 5 before clear", size)
	}

	cache.Clear()

	if size := cache.Size(); size != 0 {
		t.Errorf("Size() = %d, want 0 after clear", size)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Close()
	ctx := context.Background()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			key := string(rune('a' + id))
			if err := cache.Set(ctx, key, id, time.Minute); err != nil {
				t.Errorf("Concurrent Set() error = %v", err)
			}
			var got int
			if err := cache.Get(ctx, key, &got); err != nil {
				t.Errorf("Concurrent Get() error = %v", err)
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
