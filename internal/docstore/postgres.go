package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Schema is the DDL for the documents table.
const Schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	key TEXT NOT NULL,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (collection, key)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection_created ON documents(collection, created_at);`

// Postgres stores documents as JSONB rows keyed by (collection, key).
type Postgres struct {
	pool         *pgxpool.Pool
	notifier     Notifier
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewPostgres builds a Postgres-backed store. notifier may be nil, in which
// case subscribers poll every pollInterval.
func NewPostgres(pool *pgxpool.Pool, notifier Notifier, pollInterval time.Duration, logger *zap.Logger) *Postgres {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{
		pool:         pool,
		notifier:     notifier,
		pollInterval: pollInterval,
		logger:       logger.With(zap.String("component", "docstore")),
	}
}

func (p *Postgres) Get(ctx context.Context, collection, key string) (Document, error) {
	doc := Document{Key: key}
	row := p.pool.QueryRow(ctx, `
		SELECT data, created_at, updated_at
		FROM documents WHERE collection = $1 AND key = $2
	`, collection, key)
	if err := row.Scan(&doc.Data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, unavailable("select document", err)
	}
	return doc, nil
}

func (p *Postgres) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT key, data, created_at, updated_at
		FROM documents WHERE collection = $1
		ORDER BY created_at, key
	`, collection)
	if err != nil {
		return nil, unavailable("list documents", err)
	}
	defer rows.Close()
	docs := []Document{}
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.Key, &doc.Data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
			return nil, unavailable("scan document", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list documents", err)
	}
	return docs, nil
}

func (p *Postgres) Create(ctx context.Context, collection, key string, data any) error {
	raw, err := encode(data)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, `
		INSERT INTO documents (collection, key, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, key) DO NOTHING
	`, collection, key, []byte(raw))
	if err != nil {
		return unavailable("insert document", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrExists
	}
	p.notify(ctx, collection)
	return nil
}

func (p *Postgres) Set(ctx context.Context, collection, key string, data any) error {
	raw, err := encode(data)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO documents (collection, key, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, key) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`, collection, key, []byte(raw))
	if err != nil {
		return unavailable("upsert document", err)
	}
	p.notify(ctx, collection)
	return nil
}

func (p *Postgres) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, `
		UPDATE documents
		SET data = data || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND key = $2
	`, collection, key, patch)
	if err != nil {
		return unavailable("update document", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	p.notify(ctx, collection)
	return nil
}

func (p *Postgres) Delete(ctx context.Context, collection, key string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND key = $2`, collection, key)
	if err != nil {
		return unavailable("delete document", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	p.notify(ctx, collection)
	return nil
}

// Subscribe re-reads the collection whenever the notifier reports a change,
// or on every poll tick when there is no notifier.
func (p *Postgres) Subscribe(ctx context.Context, collection string) (<-chan Snapshot, error) {
	var changes <-chan struct{}
	if p.notifier != nil {
		ch, err := p.notifier.Watch(ctx, collection)
		if err != nil {
			return nil, unavailable("watch collection", err)
		}
		changes = ch
	}

	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()

		send := func() bool {
			docs, err := p.List(ctx, collection)
			if err != nil && ctx.Err() != nil {
				return false
			}
			snap := Snapshot{Collection: collection, Documents: docs, Err: err}
			select {
			case <-out:
			default:
			}
			select {
			case out <- snap:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					changes = nil
					continue
				}
			case <-ticker.C:
				if changes != nil {
					continue
				}
			}
			if !send() {
				return
			}
		}
	}()
	return out, nil
}

func (p *Postgres) notify(ctx context.Context, collection string) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Notify(ctx, collection); err != nil {
		p.logger.Warn("change notification failed", zap.String("collection", collection), zap.Error(err))
	}
}
