package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Record is one document of a resource collection. Data is the JSON body without the ID.
type Record struct {
	ID   string          `json:"id"`
	Data json.RawMessage `json:"data"`
}

// Store is the list-data contract every backend implements.
// A resource is a logical collection such as "tips" or "packing_items/<tripID>".
type Store interface {
	List(ctx context.Context, resource string) ([]Record, error)
	Add(ctx context.Context, resource string, data json.RawMessage) (string, error)
	// Update shallow-merges patch into the stored document.
	Update(ctx context.Context, resource, id string, patch map[string]any) error
	Remove(ctx context.Context, resource, id string) error
}

// Merge applies a shallow patch to a JSON object and returns the new body.
// A nil value in patch deletes the field.
func Merge(data json.RawMessage, patch map[string]any) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("document is not a JSON object: %w", err)
		}
	}
	for k, v := range patch {
		if v == nil {
			delete(fields, k)
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("cannot encode patch field %q: %w", k, err)
		}
		fields[k] = raw
	}
	return json.Marshal(fields)
}

// Find returns the record with the given id.
func Find(records []Record, id string) (Record, bool) {
	for _, r := range records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}
