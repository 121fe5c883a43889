package database

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smartfarmlink/smartfarm-backend-go/config"
	"github.com/smartfarmlink/smartfarm-backend-go/errs"
)

func ConnectRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	log.Println("⚡ Connected to Redis!")
	return client, nil
}

// RedisListStore keeps each list under "rt:<path>" and announces every write
// on the "rt:<path>:changed" channel.
type RedisListStore struct {
	rdb *redis.Client
}

func NewRedisListStore(rdb *redis.Client) *RedisListStore {
	return &RedisListStore{rdb: rdb}
}

func listKey(path string) string { return "rt:" + path }
func changedChannel(path string) string { return "rt:" + path + ":changed" }

func (s *RedisListStore) Append(ctx context.Context, path string, value any) (int64, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return 0, errs.Storage("encode list item", err)
	}

	length, err := s.rdb.RPush(ctx, listKey(path), data).Result()
	if err != nil {
		return 0, errs.Storage("append "+path, err)
	}
	s.announce(ctx, path)
	return length - 1, nil
}

func (s *RedisListStore) Range(ctx context.Context, path string) ([][]byte, error) {
	items, err := s.rdb.LRange(ctx, listKey(path), 0, -1).Result()
	if err != nil {
		return nil, errs.Storage("range "+path, err)
	}

	out := make([][]byte, len(items))
	for i, item := range items {
		out[i] = []byte(item)
	}
	return out, nil
}

func (s *RedisListStore) Replace(ctx context.Context, path string, index int64, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errs.Storage("encode list item", err)
	}

	if err := s.rdb.LSet(ctx, listKey(path), index, data).Err(); err != nil {
		return errs.Storage("replace "+path, err)
	}
	s.announce(ctx, path)
	return nil
}

// announce is best-effort: the write already succeeded.
func (s *RedisListStore) announce(ctx context.Context, path string) {
	if err := s.rdb.Publish(ctx, changedChannel(path), "changed").Err(); err != nil {
		log.Printf("Failed to publish change for %s: %v", path, err)
	}
}

func (s *RedisListStore) Subscribe(ctx context.Context, path string, fn func([][]byte)) (func(), error) {
	sub := s.rdb.Subscribe(ctx, changedChannel(path))
	// Wait for the subscription to be confirmed so no change is missed
	// between the initial read and the first notification.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, errs.Storage("subscribe "+path, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer sub.Close()

		s.deliver(ctx, path, fn)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				s.deliver(ctx, path, fn)
			}
		}
	}()

	return cancel, nil
}

func (s *RedisListStore) deliver(ctx context.Context, path string, fn func([][]byte)) {
	items, err := s.Range(ctx, path)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Failed to read %s for subscriber: %v", path, err)
		}
		return
	}
	fn(items)
}
