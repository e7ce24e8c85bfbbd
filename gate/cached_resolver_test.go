package gate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diewo77/go-archive/gate"
)

type countingResolver struct {
	values map[uint]string
	calls  int
	err    error
}

func (r *countingResolver) Resolve(_ context.Context, id uint) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return r.values[id], nil
}

func TestCachedResolver_CachesValue(t *testing.T) {
	inner := &countingResolver{values: map[uint]string{1: "basic"}}
	cached := gate.NewCachedResolver[uint, string](inner, time.Minute)

	v, err := cached.Resolve(context.Background(), 1)
	if err != nil || v != "basic" {
		t.Fatalf("got %q, %v", v, err)
	}
	inner.values[1] = "premium"

	v, _ = cached.Resolve(context.Background(), 1)
	if v != "basic" {
		t.Errorf("expected cached 'basic', got %q", v)
	}
	if inner.calls != 1 {
		t.Errorf("expected one load, got %d", inner.calls)
	}
}

func TestCachedResolver_Invalidate(t *testing.T) {
	inner := &countingResolver{values: map[uint]string{1: "basic", 2: "basic"}}
	cached := gate.NewCachedResolver[uint, string](inner, time.Minute)
	ctx := context.Background()

	_, _ = cached.Resolve(ctx, 1)
	_, _ = cached.Resolve(ctx, 2)
	inner.values[1] = "premium"
	inner.values[2] = "premium"

	cached.Invalidate(1)
	if v, _ := cached.Resolve(ctx, 1); v != "premium" {
		t.Errorf("expected 'premium' after invalidation, got %q", v)
	}
	if v, _ := cached.Resolve(ctx, 2); v != "basic" {
		t.Errorf("key 2 should still be cached, got %q", v)
	}

	cached.InvalidateAll()
	if cached.Len() != 0 {
		t.Errorf("expected empty cache, got %d", cached.Len())
	}
	if v, _ := cached.Resolve(ctx, 2); v != "premium" {
		t.Errorf("expected 'premium' after InvalidateAll, got %q", v)
	}
}

func TestCachedResolver_TTLExpiry(t *testing.T) {
	inner := &countingResolver{values: map[uint]string{1: "basic"}}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cached := gate.NewCachedResolver[uint, string](inner, time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()

	_, _ = cached.Resolve(ctx, 1)
	inner.values[1] = "premium"

	now = now.Add(59 * time.Second)
	if v, _ := cached.Resolve(ctx, 1); v != "basic" {
		t.Errorf("entry should still be fresh, got %q", v)
	}
	now = now.Add(2 * time.Second)
	if v, _ := cached.Resolve(ctx, 1); v != "premium" {
		t.Errorf("expected reload after expiry, got %q", v)
	}
}

func TestCachedResolver_ErrorsNotCached(t *testing.T) {
	boom := errors.New("db down")
	inner := &countingResolver{values: map[uint]string{1: "basic"}, err: boom}
	cached := gate.NewCachedResolver[uint, string](inner, time.Minute)

	if _, err := cached.Resolve(context.Background(), 1); !errors.Is(err, boom) {
		t.Fatalf("expected error, got %v", err)
	}
	inner.err = nil
	if v, err := cached.Resolve(context.Background(), 1); err != nil || v != "basic" {
		t.Errorf("expected recovery, got %q, %v", v, err)
	}
	if cached.Len() != 1 {
		t.Errorf("expected one entry, got %d", cached.Len())
	}
}
