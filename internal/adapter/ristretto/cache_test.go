package ristretto

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/tasktimer/internal/port/cache"
)

var _ cache.Cache = (*Cache)(nil)

func newCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestSetThenGetIsImmediate(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "POST /api/v1/tasks|k1", []byte(`{"status":201}`), time.Minute); err != nil {
		t.Fatal(err)
	}
	val, ok, err := c.Get(ctx, "POST /api/v1/tasks|k1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(val) != `{"status":201}` {
		t.Fatalf("expected hit, got ok=%v val=%q", ok, val)
	}
}

func TestGetMiss(t *testing.T) {
	c := newCache(t)
	if _, ok, err := c.Get(context.Background(), "missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestDelete(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expected miss after delete")
	}
	if err := c.Delete(ctx, "never-set"); err != nil {
		t.Fatalf("delete of missing key: %v", err)
	}
}

func TestTTLExpires(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	_ = c.Set(ctx, "short", []byte("v"), 50*time.Millisecond)

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, ok, _ := c.Get(ctx, "short"); !ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("entry did not expire")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestValuesAreCopied(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	body := []byte("abc")
	_ = c.Set(ctx, "k", body, time.Minute)
	body[0] = 'x'

	got, _, _ := c.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("stored value aliased caller's slice: %q", got)
	}
	got[1] = 'y'
	again, _, _ := c.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("returned value aliased the cache: %q", again)
	}
}

func TestSetTooLarge(t *testing.T) {
	c, err := New(8)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := c.Set(context.Background(), "k", make([]byte, 9), time.Minute); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestHitRatio(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	_, _, _ = c.Get(ctx, "k")
	_, _, _ = c.Get(ctx, "missing")
	if r := c.HitRatio(); r <= 0 || r >= 1 {
		t.Fatalf("expected ratio between 0 and 1, got %v", r)
	}
}
