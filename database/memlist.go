package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/smartfarmlink/smartfarm-backend-go/errs"
)

type memorySubscriber struct {
	notify chan struct{}
}

// MemoryListStore is an in-process ListStore. Subscribers are notified from
// their own goroutine and always re-read the full list, so bursts of writes
// may collapse into a single callback.
type MemoryListStore struct {
	mu    sync.Mutex
	lists map[string][][]byte
	subs  map[string]map[*memorySubscriber]struct{}
}

func NewMemoryListStore() *MemoryListStore {
	return &MemoryListStore{
		lists: make(map[string][][]byte),
		subs:  make(map[string]map[*memorySubscriber]struct{}),
	}
}

func (s *MemoryListStore) Append(_ context.Context, path string, value any) (int64, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return 0, errs.Storage("encode list item", err)
	}

	s.mu.Lock()
	s.lists[path] = append(s.lists[path], data)
	index := int64(len(s.lists[path]) - 1)
	s.notifyLocked(path)
	s.mu.Unlock()

	return index, nil
}

func (s *MemoryListStore) Range(_ context.Context, path string) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(path), nil
}

func (s *MemoryListStore) Replace(_ context.Context, path string, index int64, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errs.Storage("encode list item", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.lists[path]
	if index < 0 || index >= int64(len(list)) {
		return errs.Storage("replace "+path, fmt.Errorf("index %d out of range", index))
	}
	list[index] = data
	s.notifyLocked(path)
	return nil
}

func (s *MemoryListStore) Subscribe(ctx context.Context, path string, fn func([][]byte)) (func(), error) {
	sub := &memorySubscriber{notify: make(chan struct{}, 1)}
	sub.notify <- struct{}{}

	s.mu.Lock()
	if s.subs[path] == nil {
		s.subs[path] = make(map[*memorySubscriber]struct{})
	}
	s.subs[path][sub] = struct{}{}
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.subs[path], sub)
			s.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.notify:
				items, _ := s.Range(ctx, path)
				fn(items)
			}
		}
	}()

	return cancel, nil
}

func (s *MemoryListStore) snapshotLocked(path string) [][]byte {
	list := s.lists[path]
	out := make([][]byte, len(list))
	for i, item := range list {
		out[i] = append([]byte(nil), item...)
	}
	return out
}

func (s *MemoryListStore) notifyLocked(path string) {
	for sub := range s.subs[path] {
		select {
		case sub.notify <- struct{}{}:
		default:
		}
	}
}
