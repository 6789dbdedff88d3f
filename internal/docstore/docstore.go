// Package docstore is a small collection/key document store with live
// collection snapshots. Documents are JSON objects; partial updates merge
// top-level fields.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a collection has no document under a key.
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned by Create when the key is already taken.
	ErrExists = errors.New("document already exists")
	// ErrUnavailable wraps backend failures (network, driver, timeouts).
	ErrUnavailable = errors.New("document store unavailable")
)

// Document is a stored JSON object together with its key.
type Document struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Snapshot is the full state of one collection at a point in time.
type Snapshot struct {
	Collection string
	Documents  []Document
	Err        error
}

// Store is implemented by the in-memory and Postgres backends.
type Store interface {
	Get(ctx context.Context, collection, key string) (Document, error)
	List(ctx context.Context, collection string) ([]Document, error)
	// Create writes a new document and fails with ErrExists if the key is taken.
	Create(ctx context.Context, collection, key string, data any) error
	// Set creates or overwrites a document.
	Set(ctx context.Context, collection, key string, data any) error
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, key string, fields map[string]any) error
	Delete(ctx context.Context, collection, key string) error
	// Subscribe streams collection snapshots until ctx is cancelled. The first
	// snapshot is sent immediately; slow readers only see the newest one.
	Subscribe(ctx context.Context, collection string) (<-chan Snapshot, error)
}

// Decode unmarshals a document into T.
func Decode[T any](doc Document) (T, error) {
	var out T
	if err := json.Unmarshal(doc.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", doc.Key, err)
	}
	return out, nil
}

// DecodeAll unmarshals every document into T, preserving order.
func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := Decode[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// GetAs fetches and decodes a single document.
func GetAs[T any](ctx context.Context, s Store, collection, key string) (T, error) {
	doc, err := s.Get(ctx, collection, key)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](doc)
}

// ListAs fetches and decodes a whole collection.
func ListAs[T any](ctx context.Context, s Store, collection string) ([]T, error) {
	docs, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	return DecodeAll[T](docs)
}

func encode(data any) (json.RawMessage, error) {
	if raw, ok := data.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, errors.New("invalid json document")
		}
		return raw, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if len(raw) == 0 || raw[0] != '{' {
		return nil, errors.New("document must be a json object")
	}
	return raw, nil
}

// merge applies top-level fields onto an encoded object.
func merge(current json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	obj := map[string]json.RawMessage{}
	if err := json.Unmarshal(current, &obj); err != nil {
		return nil, fmt.Errorf("decode stored document: %w", err)
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", k, err)
		}
		obj[k] = raw
	}
	return json.Marshal(obj)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
