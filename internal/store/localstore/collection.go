// Package localstore is the device-local fallback store.
// It keeps each resource as one JSON array and has no vote ledger.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/SlpAus/trailhead-backend/internal/store"
	"github.com/SlpAus/trailhead-backend/pkg/keylock"
	"github.com/google/uuid"
)

// Collection implements store.Store on top of a KV table.
// Writes to one resource are serialized for the whole fetch, mutate, write cycle.
type Collection struct {
	kv     *KV
	locks  *keylock.Locker
	prefix string
}

func NewCollection(kv *KV, keyPrefix string) *Collection {
	return &Collection{kv: kv, locks: keylock.New(), prefix: keyPrefix}
}

func (c *Collection) key(resource string) string {
	return c.prefix + resource
}

func (c *Collection) List(ctx context.Context, resource string) ([]store.Record, error) {
	return c.load(ctx, c.key(resource))
}

func (c *Collection) Add(ctx context.Context, resource string, data json.RawMessage) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("cannot generate id: %w", err)
	}
	err = c.mutate(ctx, resource, func(records []store.Record) ([]store.Record, error) {
		return append(records, store.Record{ID: id.String(), Data: data}), nil
	})
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (c *Collection) Update(ctx context.Context, resource, id string, patch map[string]any) error {
	return c.mutate(ctx, resource, func(records []store.Record) ([]store.Record, error) {
		i := slices.IndexFunc(records, func(r store.Record) bool { return r.ID == id })
		if i < 0 {
			return nil, fmt.Errorf("%w: %s/%s", store.ErrNotFound, resource, id)
		}
		merged, err := store.Merge(records[i].Data, patch)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrInvalid, err)
		}
		records[i].Data = merged
		return records, nil
	})
}

func (c *Collection) Remove(ctx context.Context, resource, id string) error {
	return c.mutate(ctx, resource, func(records []store.Record) ([]store.Record, error) {
		i := slices.IndexFunc(records, func(r store.Record) bool { return r.ID == id })
		if i < 0 {
			return nil, fmt.Errorf("%w: %s/%s", store.ErrNotFound, resource, id)
		}
		return slices.Delete(records, i, i+1), nil
	})
}

// mutate holds the resource key while loading, changing and writing back its array.
// Nothing is written unless fn succeeds.
func (c *Collection) mutate(ctx context.Context, resource string, fn func([]store.Record) ([]store.Record, error)) error {
	key := c.key(resource)
	unlock, err := c.locks.Lock(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: waiting for %s: %w", store.ErrTransient, key, err)
	}
	defer unlock()

	records, err := c.load(ctx, key)
	if err != nil {
		return err
	}
	next, err := fn(records)
	if err != nil {
		return err
	}
	if next == nil {
		next = []store.Record{}
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("cannot encode %s: %w", key, err)
	}
	return c.kv.Save(ctx, key, raw)
}

func (c *Collection) load(ctx context.Context, key string) ([]store.Record, error) {
	raw, ok, err := c.kv.Load(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	var records []store.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: local data under %s is corrupt: %v", store.ErrInvalid, key, err)
	}
	return records, nil
}
