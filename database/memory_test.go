package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartfarmlink/smartfarm-backend-go/errs"
)

type sample struct {
	Name  string   `json:"name" bson:"name"`
	Count int      `json:"count" bson:"count"`
	Tags  []string `json:"tags" bson:"tags"`
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()

	doc, err := store.Get(context.Background(), "orders/missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Exists {
		t.Fatal("expected missing document")
	}
	if err := doc.Decode(&sample{}); err == nil {
		t.Fatal("expected decode of missing document to fail")
	}
}

func TestMemoryStoreInvalidPath(t *testing.T) {
	store := NewMemoryStore()
	for _, path := range []string{"orders", "/o1", "orders/", "orders/a/b"} {
		if _, err := store.Get(context.Background(), path); errs.KindOf(err) != errs.KindValidation {
			t.Errorf("Get(%q): expected validation error, got %v", path, err)
		}
	}
}

func TestMemoryStoreCompareAndSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	v1, err := store.CompareAndSet(ctx, "orders/o1", 0, sample{Name: "first", Count: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v1 != 1 {
		t.Fatalf("expected version 1, got %d", v1)
	}

	if _, err := store.CompareAndSet(ctx, "orders/o1", 0, sample{Name: "dup"}); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected conflict on second create, got %v", err)
	}

	v2, err := store.CompareAndSet(ctx, "orders/o1", v1, sample{Name: "second", Count: 2})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := store.CompareAndSet(ctx, "orders/o1", v1, sample{Name: "stale"}); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected conflict on stale version, got %v", err)
	}

	doc, err := store.Get(ctx, "orders/o1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var got sample
	if err := doc.Decode(&got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.Version != v2 || got.Name != "second" || got.Count != 2 {
		t.Fatalf("unexpected document: version=%d value=%+v", doc.Version, got)
	}
}

func TestMemoryStoreSetOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Set(ctx, "orders/o1", sample{Name: "a", Tags: []string{"x"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "orders/o1", sample{Name: "b"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	doc, _ := store.Get(ctx, "orders/o1")
	var got sample
	if err := doc.Decode(&got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Name != "b" || len(got.Tags) != 0 {
		t.Fatalf("expected full overwrite, got %+v", got)
	}
	if doc.Version != 2 {
		t.Fatalf("expected version 2, got %d", doc.Version)
	}
}

func TestMemoryListStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryListStore()
	path := "conversations/c1/messages"

	updates := make(chan [][]byte, 16)
	unsubscribe, err := store.Subscribe(ctx, path, func(items [][]byte) {
		updates <- items
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	// Initial delivery of the empty list.
	waitForLen(t, updates, 0)

	idx, err := store.Append(ctx, path, sample{Name: "hello"})
	if err != nil || idx != 0 {
		t.Fatalf("Append: idx=%d err=%v", idx, err)
	}
	idx, err = store.Append(ctx, path, sample{Name: "world"})
	if err != nil || idx != 1 {
		t.Fatalf("Append: idx=%d err=%v", idx, err)
	}
	waitForLen(t, updates, 2)

	if err := store.Replace(ctx, path, 5, sample{}); err == nil {
		t.Fatal("expected out of range replace to fail")
	}
	if err := store.Replace(ctx, path, 0, sample{Name: "edited"}); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	items, err := store.Range(ctx, path)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if string(items[0]) != `{"name":"edited","count":0,"tags":null}` {
		t.Fatalf("unexpected first item %s", items[0])
	}
}

func TestMemoryListStoreUnsubscribe(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryListStore()
	path := "conversations/c2/messages"

	var mu sync.Mutex
	calls := 0
	unsubscribe, _ := store.Subscribe(ctx, path, func([][]byte) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	time.Sleep(20 * time.Millisecond)
	unsubscribe()
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	before := calls
	mu.Unlock()

	store.Append(ctx, path, sample{Name: "late"})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != before {
		t.Fatalf("expected no callbacks after unsubscribe, got %d more", calls-before)
	}
}

func waitForLen(t *testing.T, updates <-chan [][]byte, want int) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case items := <-updates:
			if len(items) == want {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for list of length %d", want)
		}
	}
}
