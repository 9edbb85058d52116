package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/syltwerk/hotelchat/internal/adapter/ristretto"
	"github.com/syltwerk/hotelchat/internal/adapter/tiered"
	"github.com/syltwerk/hotelchat/internal/port/cache"
)

// syncCache makes ristretto writes visible before Set returns.
type syncCache struct{ *ristretto.Cache }

func (c syncCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.Cache.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	c.Wait()
	return nil
}

func newSyncRistretto(t *testing.T) syncCache {
	t.Helper()
	c, err := ristretto.New(1)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return syncCache{c}
}

func TestCompliance_Ristretto(t *testing.T) {
	RunComplianceTests(t, newSyncRistretto(t))
}

func TestCompliance_TieredWithoutL2(t *testing.T) {
	RunComplianceTests(t, tiered.New(newSyncRistretto(t), nil, time.Minute))
}

func TestCompliance_TieredTwoLevels(t *testing.T) {
	RunComplianceTests(t, tiered.New(newSyncRistretto(t), newSyncRistretto(t), time.Minute))
}

// RunComplianceTests runs the standard compliance test suite against any Cache implementation.
func RunComplianceTests(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := c.Set(ctx, "tenant:aarnhoog", []byte("aarnhoog-config"), time.Minute); err != nil {
			t.Fatal(err)
		}
		val, found, err := c.Get(ctx, "tenant:aarnhoog")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after Set")
		}
		if string(val) != "aarnhoog-config" {
			t.Fatalf("expected aarnhoog-config, got %s", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, "tenant:unknown")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss for nonexistent key")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		_ = c.Set(ctx, "tenant:roth", []byte("roth-config"), time.Minute)
		if err := c.Delete(ctx, "tenant:roth"); err != nil {
			t.Fatal(err)
		}
		_, found, err := c.Get(ctx, "tenant:roth")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss after Delete")
		}
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		if err := c.Delete(ctx, "tenant:never"); err != nil {
			t.Fatal("Delete of nonexistent key should not error")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		_ = c.Set(ctx, "tenant:faehrhaus", []byte("v1"), time.Minute)
		_ = c.Set(ctx, "tenant:faehrhaus", []byte("v2"), time.Minute)
		val, found, err := c.Get(ctx, "tenant:faehrhaus")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after overwrite")
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2 after overwrite, got %s", val)
		}
	})
}
