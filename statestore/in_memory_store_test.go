package statestore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/erhlee-bird/vector/config"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func newTestStore(expiry time.Duration) *InMemoryStateStore {
	return NewInMemoryStateStore(config.InMemoryStateStoreConfig{
		Expiry: expiry,
	})
}

func newString() proto.Message {
	return &wrapperspb.StringValue{}
}

func valueOf(t *testing.T, msg proto.Message) string {
	t.Helper()
	s, ok := msg.(*wrapperspb.StringValue)
	if !ok {
		t.Fatalf("got %T, want *wrapperspb.StringValue", msg)
	}
	return s.GetValue()
}

func TestGetSetBasic(t *testing.T) {
	store := newTestStore(time.Hour)
	defer store.Close()

	if err := store.Set("key1", wrapperspb.String("v1"), 0); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	got, found := store.Get("key1", newString)
	if !found {
		t.Fatal("expected key1 to be found")
	}
	if v := valueOf(t, got); v != "v1" {
		t.Errorf("got %q, want %q", v, "v1")
	}
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(time.Hour)
	defer store.Close()

	got, found := store.Get("nonexistent", newString)
	if found {
		t.Error("expected found=false for missing key")
	}
	if got == nil {
		t.Error("expected non-nil default message from factory")
	}
}

func TestGetMissingWithNilFactory(t *testing.T) {
	store := newTestStore(time.Hour)
	defer store.Close()

	got, found := store.Get("nonexistent", func() proto.Message { return nil })
	if found {
		t.Error("expected found=false for missing key")
	}
	if got != nil {
		t.Error("expected nil when factory returns nil")
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(time.Hour)
	defer store.Close()

	_ = store.Set("key1", wrapperspb.String("v1"), 0)
	store.Delete("key1")

	if _, found := store.Get("key1", newString); found {
		t.Error("expected key1 to be deleted")
	}
	// Deleting a missing key is a no-op.
	store.Delete("nonexistent")
}

func TestSetOverwrite(t *testing.T) {
	store := newTestStore(time.Hour)
	defer store.Close()

	_ = store.Set("key1", wrapperspb.String("v1"), 0)
	_ = store.Set("key1", wrapperspb.String("v2"), 0)

	got, found := store.Get("key1", newString)
	if !found {
		t.Fatal("expected key1 to be found")
	}
	if v := valueOf(t, got); v != "v2" {
		t.Errorf("got %q, want %q", v, "v2")
	}
}

func TestSetIfAbsent(t *testing.T) {
	store := newTestStore(time.Hour)
	defer store.Close()

	stored, err := store.SetIfAbsent("key1", wrapperspb.String("first"), 50*time.Millisecond)
	if err != nil || !stored {
		t.Fatalf("SetIfAbsent() = %v, %v, want true, nil", stored, err)
	}
	stored, _ = store.SetIfAbsent("key1", wrapperspb.String("second"), 0)
	if stored {
		t.Error("expected live key to be kept")
	}
	got, _ := store.Get("key1", newString)
	if v := valueOf(t, got); v != "first" {
		t.Errorf("got %q, want first", v)
	}

	time.Sleep(100 * time.Millisecond)
	stored, _ = store.SetIfAbsent("key1", wrapperspb.String("third"), 0)
	if !stored {
		t.Error("expected expired key to be replaced")
	}
}

func TestTTLExpiration(t *testing.T) {
	store := newTestStore(50 * time.Millisecond)
	defer store.Close()

	_ = store.Set("key1", wrapperspb.String("v1"), 50*time.Millisecond)
	if _, found := store.Get("key1", newString); !found {
		t.Fatal("expected key1 to be found before expiration")
	}

	time.Sleep(100 * time.Millisecond)

	if _, found := store.Get("key1", newString); found {
		t.Error("expected key1 to be expired")
	}
}

func TestZeroTTLUsesDefault(t *testing.T) {
	store := newTestStore(time.Hour)
	defer store.Close()

	_ = store.Set("key1", wrapperspb.String("v1"), 0)
	time.Sleep(50 * time.Millisecond)
	if _, found := store.Get("key1", newString); !found {
		t.Error("expected key1 to still be present with default TTL")
	}
}

func TestDefaultExpiry(t *testing.T) {
	store := NewInMemoryStateStore(config.InMemoryStateStoreConfig{Expiry: 0})
	defer store.Close()

	if store.ttl != time.Hour {
		t.Errorf("expected default TTL of 1h, got %v", store.ttl)
	}
}

func TestConcurrentReadWrite(t *testing.T) {
	store := newTestStore(time.Hour)
	defer store.Close()

	var wg sync.WaitGroup
	const numGoroutines = 50

	for i := 0; i < numGoroutines; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_ = store.Set("key1", wrapperspb.String("v1"), 0)
		}()
		go func() {
			defer wg.Done()
			store.Get("key1", newString)
		}()
		go func() {
			defer wg.Done()
			_, _ = store.SetIfAbsent("key1", wrapperspb.String("v2"), 0)
			store.Delete("key1")
		}()
	}
	wg.Wait()
}

func TestCloseIsIdempotent(t *testing.T) {
	store := newTestStore(50 * time.Millisecond)
	_ = store.Set("key1", wrapperspb.String("v1"), 50*time.Millisecond)

	store.Close()
	store.Close()

	time.Sleep(100 * time.Millisecond)
	// Expiry is still enforced on read after the sweeper stopped.
	if _, found := store.Get("key1", newString); found {
		t.Error("expected key1 to be expired even after Close")
	}
}

func TestNewStateStore(t *testing.T) {
	store, err := NewStateStore(context.Background(), config.StateStoreConfig{})
	if err != nil {
		t.Fatalf("NewStateStore() error = %v", err)
	}
	defer store.Close()
	if _, ok := store.(*InMemoryStateStore); !ok {
		t.Errorf("got %T, want in-memory store by default", store)
	}

	if _, err := NewStateStore(context.Background(), config.StateStoreConfig{Type: "memcached"}); err == nil {
		t.Error("expected error for unknown store type")
	}
	if _, err := NewStateStore(context.Background(), config.StateStoreConfig{Type: config.RedisStateStoreType}); err == nil {
		t.Error("expected error for redis store without addr")
	}
}
