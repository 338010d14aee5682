package memory

import (
	"testing"
	"time"

	"github.com/Keksclan/layercache/cache"
)

func TestTier_AddGetRemove(t *testing.T) {
	m := New[string]("mem")
	ctx := t.Context()

	// Miss returns false.
	if _, ok, err := m.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("Get on empty tier: ok=%v err=%v", ok, err)
	}

	exp := time.Now().Add(time.Minute)
	if err := m.Add(ctx, "k", cache.NewItem("v", exp)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	it, ok, err := m.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if it.Value != "v" || !it.ExpiresAt.Equal(exp) {
		t.Fatalf("got %+v", it)
	}

	if err := m.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("expected miss after Remove")
	}

	// Removing an absent key is a no-op.
	if err := m.Remove(ctx, "absent"); err != nil {
		t.Fatalf("Remove absent: %v", err)
	}
}

func TestTier_KeepsExpiredEntries(t *testing.T) {
	m := New[int]("mem")
	ctx := t.Context()

	_ = m.Add(ctx, "old", cache.NewItem(1, time.Now().Add(-time.Second)))
	it, ok, _ := m.Get(ctx, "old")
	if !ok {
		t.Fatal("expected the expired entry to still be stored")
	}
	if !it.Expired() {
		t.Fatal("expected item to report expired")
	}
}

func TestTier_Clear(t *testing.T) {
	m := New[int]("mem")
	ctx := t.Context()

	for i, k := range []string{"a", "b", "c"} {
		_ = m.Add(ctx, k, cache.NewItem(i, cache.NoExpiry))
	}
	if n := m.Len(); n != 3 {
		t.Fatalf("Len = %d, want 3", n)
	}
	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n := m.Len(); n != 0 {
		t.Fatalf("Len after Clear = %d, want 0", n)
	}
}
