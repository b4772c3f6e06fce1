// Package memory provides an in-process document store with synchronous
// snapshot delivery. It backs tests and the STORE=memory development mode.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/pillmate/pillmate/internal/store"
)

// Store is an in-memory document store
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// Collection returns the named collection, creating it on first use
func (s *Store) Collection(name string) store.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		c = &collection{
			docs:      make(map[string]json.RawMessage),
			listeners: make(map[int]store.SnapshotFunc),
		}
		s.collections[name] = c
	}
	return c
}

type collection struct {
	mu         sync.Mutex
	docs       map[string]json.RawMessage
	listeners  map[int]store.SnapshotFunc
	nextListen int
}

func (c *collection) Get(ctx context.Context) ([]store.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(), nil
}

func (c *collection) GetByID(ctx context.Context, id string) (store.Document, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.docs[id]
	if !ok {
		return store.Document{}, false, nil
	}
	return store.Document{ID: id, Data: append(json.RawMessage(nil), data...)}, true, nil
}

func (c *collection) Set(ctx context.Context, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", id, err)
	}

	c.mu.Lock()
	c.docs[id] = data
	c.notifyLocked()
	c.mu.Unlock()
	return nil
}

func (c *collection) Update(ctx context.Context, id string, fields map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.docs[id]
	if !ok {
		return fmt.Errorf("document %s not found", id)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	for k, v := range fields {
		doc[k] = v
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", id, err)
	}

	c.docs[id] = merged
	c.notifyLocked()
	return nil
}

func (c *collection) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; !ok {
		return nil
	}
	delete(c.docs, id)
	c.notifyLocked()
	return nil
}

func (c *collection) DeleteMany(ctx context.Context, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	for _, id := range ids {
		if _, ok := c.docs[id]; ok {
			delete(c.docs, id)
			changed = true
		}
	}
	if changed {
		c.notifyLocked()
	}
	return nil
}

func (c *collection) Where(ctx context.Context, field, op string, value any) ([]store.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []store.Document
	for _, doc := range c.snapshotLocked() {
		var fields map[string]any
		if err := json.Unmarshal(doc.Data, &fields); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", doc.ID, err)
		}
		match, err := compare(fields[field], op, value)
		if err != nil {
			return nil, err
		}
		if match {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (c *collection) OnSnapshot(fn store.SnapshotFunc) (store.CancelFunc, error) {
	c.mu.Lock()
	id := c.nextListen
	c.nextListen++
	c.listeners[id] = fn
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	// Initial snapshot is delivered immediately, outside the lock.
	fn(snapshot)

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}, nil
}

// snapshotLocked copies the collection contents, sorted by id for stable
// snapshot ordering.
func (c *collection) snapshotLocked() []store.Document {
	docs := make([]store.Document, 0, len(c.docs))
	for id, data := range c.docs {
		docs = append(docs, store.Document{ID: id, Data: append(json.RawMessage(nil), data...)})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

func (c *collection) notifyLocked() {
	snapshot := c.snapshotLocked()
	for _, fn := range c.listeners {
		fn(snapshot)
	}
}

// compare evaluates a Where clause. Equality compares canonical string forms;
// ordering operators require both sides to parse as numbers.
func compare(fieldValue any, op string, value any) (bool, error) {
	if op == "==" {
		return fmt.Sprint(fieldValue) == fmt.Sprint(value), nil
	}

	left, err := strconv.ParseFloat(fmt.Sprint(fieldValue), 64)
	if err != nil {
		return false, nil
	}
	right, err := strconv.ParseFloat(fmt.Sprint(value), 64)
	if err != nil {
		return false, fmt.Errorf("non-numeric comparison value %v", value)
	}

	switch op {
	case "<":
		return left < right, nil
	case "<=":
		return left <= right, nil
	case ">":
		return left > right, nil
	case ">=":
		return left >= right, nil
	default:
		return false, fmt.Errorf("unsupported operator %q", op)
	}
}
