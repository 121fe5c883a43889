package store

import (
	"context"
	"errors"

	"github.com/smartfarmlink/smartfarm-backend-go/database"
	"github.com/smartfarmlink/smartfarm-backend-go/errs"
	"github.com/smartfarmlink/smartfarm-backend-go/metrics"
	"github.com/smartfarmlink/smartfarm-backend-go/models"
)

func readIndex(ctx context.Context, ds database.DocumentStore, path string) (models.Index, int64, error) {
	doc, err := ds.Get(ctx, path)
	if err != nil {
		return models.Index{}, 0, errs.Storage("read index "+path, err)
	}
	if !doc.Exists {
		return models.Index{}, 0, nil
	}

	var ix models.Index
	if err := doc.Decode(&ix); err != nil {
		return models.Index{}, 0, errs.Storage("decode index "+path, err)
	}
	return ix, doc.Version, nil
}

// addToIndex unions id into the set stored at path. An id that is already
// present causes no write.
func addToIndex(ctx context.Context, ds database.DocumentStore, path, id string, maxRetries int) error {
	for attempt := 0; ; attempt++ {
		ix, version, err := readIndex(ctx, ds, path)
		if err != nil {
			return err
		}
		if ix.Contains(id) {
			return nil
		}

		ix.IDs = append(ix.IDs, id)
		_, err = ds.CompareAndSet(ctx, path, version, ix)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errs.ErrConflict) {
			return errs.Storage("write index "+path, err)
		}

		metrics.StoreConflicts.WithLabelValues("index").Inc()
		if attempt >= maxRetries {
			return errs.Exhausted("write index "+path, err)
		}
	}
}
