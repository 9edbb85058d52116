package ristretto

import (
	"context"
	"testing"
	"time"
)

func TestCache_SetGetDelete(t *testing.T) {
	c, err := New(1)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "tenant.seeblick", []byte(`{"key":"seeblick"}`), time.Minute); err != nil {
		t.Fatal(err)
	}
	c.Wait()

	v, ok, err := c.Get(ctx, "tenant.seeblick")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(v) != `{"key":"seeblick"}` {
		t.Errorf("unexpected value %q", v)
	}

	if err := c.Delete(ctx, "tenant.seeblick"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, "tenant.seeblick"); ok {
		t.Error("expected miss after delete")
	}
}

func TestCache_Miss(t *testing.T) {
	c, err := New(0)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, ok, err := c.Get(context.Background(), "nope"); ok || err != nil {
		t.Errorf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}
