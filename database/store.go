package database

import (
	"context"
	"fmt"
	"strings"
)

// Document is the result of a keyed lookup. Data is only meaningful when
// Exists is true.
type Document struct {
	Exists  bool
	Version int64
	decode  func(v any) error
}

// Decode unmarshals the stored value into v.
func (d Document) Decode(v any) error {
	if !d.Exists || d.decode == nil {
		return fmt.Errorf("decode: document does not exist")
	}
	return d.decode(v)
}

// DocumentStore is a key-addressed document database with overwrite semantics.
// Paths have the form "collection/id".
type DocumentStore interface {
	Get(ctx context.Context, path string) (Document, error)
	Set(ctx context.Context, path string, value any) error
	// CompareAndSet writes value only if the stored version equals
	// expectedVersion (0 means the document must not exist yet). It returns the
	// new version, or an errs.KindConflict error on mismatch.
	CompareAndSet(ctx context.Context, path string, expectedVersion int64, value any) (int64, error)
}

// ListStore is an ordered, append-mostly list store with change subscriptions.
type ListStore interface {
	Append(ctx context.Context, path string, value any) (int64, error)
	Range(ctx context.Context, path string) ([][]byte, error)
	Replace(ctx context.Context, path string, index int64, value any) error
	// Subscribe calls fn with the current list and again after every change
	// until the returned function is called or ctx is done.
	Subscribe(ctx context.Context, path string, fn func([][]byte)) (func(), error)
}

func splitPath(path string) (collection, id string, err error) {
	collection, id, ok := strings.Cut(path, "/")
	if !ok || collection == "" || id == "" || strings.Contains(id, "/") {
		return "", "", fmt.Errorf("invalid document path %q", path)
	}
	return collection, id, nil
}
