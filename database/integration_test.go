package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/redis/go-redis/v9"
	"github.com/smartfarmlink/smartfarm-backend-go/errs"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func startContainer(t *testing.T, image, port, readyLog string) (string, func()) {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        image,
		ExposedPorts: []string{port + "/tcp"},
		WaitingFor: wait.ForLog(readyLog).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start %s container: %v", image, err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port()), cleanup
}

func TestMongoStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MongoDB integration test in short mode")
	}
	addr, cleanup := startContainer(t, "mongo:7", "27017", "Waiting for connections")
	defer cleanup()

	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://"+addr))
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	store := NewMongoStore(client.Database("smartfarm_test"))

	doc, err := store.Get(ctx, "orders/o1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Exists {
		t.Fatal("expected missing document")
	}

	v1, err := store.CompareAndSet(ctx, "orders/o1", 0, sample{Name: "tomatoes", Count: 5, Tags: []string{"kg"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CompareAndSet(ctx, "orders/o1", 0, sample{Name: "dup"}); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected duplicate create to conflict, got %v", err)
	}

	v2, err := store.CompareAndSet(ctx, "orders/o1", v1, sample{Name: "tomatoes", Count: 8})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := store.CompareAndSet(ctx, "orders/o1", v1, sample{Name: "stale"}); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected stale update to conflict, got %v", err)
	}

	doc, err = store.Get(ctx, "orders/o1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var got sample
	if err := doc.Decode(&got); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if doc.Version != v2 || got.Count != 8 {
		t.Fatalf("unexpected document version=%d value=%+v", doc.Version, got)
	}

	if err := store.Set(ctx, "orders_by_buyer/b1", sample{Tags: []string{"o1"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	doc, _ = store.Get(ctx, "orders_by_buyer/b1")
	if !doc.Exists || doc.Version != 1 {
		t.Fatalf("expected upserted index at version 1, got %+v", doc)
	}
}

func TestRedisListStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Redis integration test in short mode")
	}
	addr, cleanup := startContainer(t, "redis:7-alpine", "6379", "Ready to accept connections")
	defer cleanup()

	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	store := NewRedisListStore(rdb)
	path := "conversations/c1/messages"

	updates := make(chan [][]byte, 16)
	unsubscribe, err := store.Subscribe(ctx, path, func(items [][]byte) {
		updates <- items
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()
	waitForLen(t, updates, 0)

	if idx, err := store.Append(ctx, path, sample{Name: "hello"}); err != nil || idx != 0 {
		t.Fatalf("Append: idx=%d err=%v", idx, err)
	}
	waitForLen(t, updates, 1)

	if err := store.Replace(ctx, path, 0, sample{Name: "seen"}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	items, err := store.Range(ctx, path)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(items) != 1 || string(items[0]) != `{"name":"seen","count":0,"tags":null}` {
		t.Fatalf("unexpected list %q", items)
	}
}
