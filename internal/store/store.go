// Package store defines the document-store contract the engine runs against:
// named collections of JSON documents with per-document atomic writes, simple
// field queries, a batched multi-delete, and replace-style snapshot listeners.
package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Collection names used by the engine.
const (
	Courses           = "courses"
	OccurrenceRecords = "occurrence_records"
	Reminders         = "reminders"
)

// Document is one stored JSON document
type Document struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document body into v
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", d.ID, err)
	}
	return nil
}

// CancelFunc detaches a snapshot listener
type CancelFunc func()

// SnapshotFunc receives the full current contents of a collection. Each call
// replaces the previous snapshot; deltas are never delivered.
type SnapshotFunc func(docs []Document)

// Collection is one named set of documents
type Collection interface {
	// Get returns every document in the collection.
	Get(ctx context.Context) ([]Document, error)

	// GetByID returns a single document, with found=false when absent.
	GetByID(ctx context.Context, id string) (Document, bool, error)

	// Set writes the full document under the given id, creating or replacing it.
	Set(ctx context.Context, id string, v any) error

	// Update merges the given top-level fields into an existing document.
	Update(ctx context.Context, id string, fields map[string]any) error

	// Delete removes a document. Deleting an absent id is a no-op.
	Delete(ctx context.Context, id string) error

	// DeleteMany removes a batch of documents in one all-or-nothing operation.
	DeleteMany(ctx context.Context, ids []string) error

	// Where returns the documents whose top-level field compares to value
	// under op ("==", "<", "<=", ">", ">=").
	Where(ctx context.Context, field, op string, value any) ([]Document, error)

	// OnSnapshot registers a listener that immediately receives the current
	// contents and then the full contents again after every change.
	OnSnapshot(fn SnapshotFunc) (CancelFunc, error)
}

// Store is a set of named collections
type Store interface {
	Collection(name string) Collection
}
