// Package postgres implements the document store on a single jsonb-backed
// table. Mutations raise a NOTIFY on a shared channel; a pq.Listener turns
// those into replace-style collection snapshots for subscribers.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/pillmate/pillmate/internal/store"
)

// notifyChannel carries the name of the collection that changed.
const notifyChannel = "pillmate_documents"

// Store is a postgres-backed document store
type Store struct {
	db     *sql.DB
	logger *logrus.Logger

	mu       sync.Mutex
	subs     map[string]map[int]store.SnapshotFunc
	nextSub  int
	listener *pq.Listener
}

// New creates a store over an existing database connection. Snapshot
// listeners only start receiving change notifications after StartListener.
func New(db *sql.DB, logger *logrus.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
		subs:   make(map[string]map[int]store.SnapshotFunc),
	}
}

// StartListener opens a dedicated LISTEN connection and begins delivering
// collection snapshots to subscribers. It blocks until the context is
// cancelled, so it should be launched in a separate goroutine.
func (s *Store) StartListener(ctx context.Context, dsn string) error {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.Errorf("Document listener event %d: %v", ev, err)
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return fmt.Errorf("failed to listen on %s: %w", notifyChannel, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("Document store listener started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Document store listener stopped")
			return listener.Close()
		case n := <-listener.Notify:
			if n == nil {
				// Connection was re-established; every collection may have
				// changed while we were away.
				s.redeliverAll(ctx)
				continue
			}
			s.deliver(ctx, n.Extra)
		case <-time.After(90 * time.Second):
			if err := listener.Ping(); err != nil {
				s.logger.Errorf("Document listener ping failed: %v", err)
			}
		}
	}
}

// Collection returns a handle on the named collection
func (s *Store) Collection(name string) store.Collection {
	return &collection{store: s, name: name}
}

// deliver reloads one collection and fans the snapshot out to its subscribers.
func (s *Store) deliver(ctx context.Context, name string) {
	s.mu.Lock()
	subs := make([]store.SnapshotFunc, 0, len(s.subs[name]))
	for _, fn := range s.subs[name] {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	if len(subs) == 0 {
		return
	}

	docs, err := s.Collection(name).Get(ctx)
	if err != nil {
		s.logger.Errorf("Failed to load snapshot of %s: %v", name, err)
		return
	}
	for _, fn := range subs {
		fn(docs)
	}
}

func (s *Store) redeliverAll(ctx context.Context) {
	s.mu.Lock()
	names := make([]string, 0, len(s.subs))
	for name := range s.subs {
		names = append(names, name)
	}
	s.mu.Unlock()

	for _, name := range names {
		s.deliver(ctx, name)
	}
}

type collection struct {
	store *Store
	name  string
}

func (c *collection) Get(ctx context.Context) ([]store.Document, error) {
	query := `
		SELECT id, data
		FROM documents
		WHERE collection = $1
		ORDER BY id`

	rows, err := c.store.db.QueryContext(ctx, query, c.name)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", c.name, err)
	}
	defer rows.Close()

	return scanDocuments(rows, c.name)
}

func (c *collection) GetByID(ctx context.Context, id string) (store.Document, bool, error) {
	query := `
		SELECT data
		FROM documents
		WHERE collection = $1 AND id = $2`

	var data []byte
	err := c.store.db.QueryRowContext(ctx, query, c.name, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return store.Document{}, false, nil
		}
		return store.Document{}, false, fmt.Errorf("failed to get document %s/%s: %w", c.name, id, err)
	}

	return store.Document{ID: id, Data: data}, true, nil
}

func (c *collection) Set(ctx context.Context, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", id, err)
	}

	query := `
		INSERT INTO documents (collection, id, data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (collection, id)
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`

	if _, err := c.store.db.ExecContext(ctx, query, c.name, id, data); err != nil {
		return fmt.Errorf("failed to set document %s/%s: %w", c.name, id, err)
	}

	return c.notify(ctx)
}

func (c *collection) Update(ctx context.Context, id string, fields map[string]any) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal update for %s: %w", id, err)
	}

	query := `
		UPDATE documents
		SET data = data || $3, updated_at = NOW()
		WHERE collection = $1 AND id = $2`

	result, err := c.store.db.ExecContext(ctx, query, c.name, id, patch)
	if err != nil {
		return fmt.Errorf("failed to update document %s/%s: %w", c.name, id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("document %s/%s not found", c.name, id)
	}

	return c.notify(ctx)
}

func (c *collection) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM documents WHERE collection = $1 AND id = $2`

	if _, err := c.store.db.ExecContext(ctx, query, c.name, id); err != nil {
		return fmt.Errorf("failed to delete document %s/%s: %w", c.name, id, err)
	}
	return c.notify(ctx)
}

func (c *collection) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	// A single statement keeps the batch all-or-nothing.
	query := `DELETE FROM documents WHERE collection = $1 AND id = ANY($2)`

	if _, err := c.store.db.ExecContext(ctx, query, c.name, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to delete %d documents from %s: %w", len(ids), c.name, err)
	}
	return c.notify(ctx)
}

var whereOps = map[string]string{
	"==": "=",
	"<":  "<",
	"<=": "<=",
	">":  ">",
	">=": ">=",
}

func (c *collection) Where(ctx context.Context, field, op string, value any) ([]store.Document, error) {
	sqlOp, ok := whereOps[op]
	if !ok {
		return nil, fmt.Errorf("unsupported operator %q", op)
	}

	query := fmt.Sprintf(`
		SELECT id, data
		FROM documents
		WHERE collection = $1 AND data->>$2 %s $3
		ORDER BY id`, sqlOp)

	rows, err := c.store.db.QueryContext(ctx, query, c.name, field, fmt.Sprint(value))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s where %s %s %v: %w", c.name, field, op, value, err)
	}
	defer rows.Close()

	return scanDocuments(rows, c.name)
}

func (c *collection) OnSnapshot(fn store.SnapshotFunc) (store.CancelFunc, error) {
	docs, err := c.Get(context.Background())
	if err != nil {
		return nil, err
	}

	s := c.store
	s.mu.Lock()
	if s.subs[c.name] == nil {
		s.subs[c.name] = make(map[int]store.SnapshotFunc)
	}
	id := s.nextSub
	s.nextSub++
	s.subs[c.name][id] = fn
	s.mu.Unlock()

	fn(docs)

	return func() {
		s.mu.Lock()
		delete(s.subs[c.name], id)
		s.mu.Unlock()
	}, nil
}

// notify wakes every listener on the shared channel with the collection name.
func (c *collection) notify(ctx context.Context) error {
	if _, err := c.store.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, c.name); err != nil {
		return fmt.Errorf("failed to notify %s change: %w", c.name, err)
	}
	return nil
}

func scanDocuments(rows *sql.Rows, name string) ([]store.Document, error) {
	var docs []store.Document
	for rows.Next() {
		var doc store.Document
		var data []byte
		if err := rows.Scan(&doc.ID, &data); err != nil {
			return nil, fmt.Errorf("failed to scan document from %s: %w", name, err)
		}
		doc.Data = data
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
