package certificate

import (
	"context"

	"printshop/internal/docstore"
)

// Collection is the document store collection holding certificates.
const Collection = "certificates"

// Repository persists certificates in a document store.
type Repository struct {
	store docstore.Store
}

// NewRepository creates a repo.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

func (r *Repository) Get(ctx context.Context, id string) (Certificate, error) {
	return docstore.GetAs[Certificate](ctx, r.store, Collection, id)
}

func (r *Repository) List(ctx context.Context) ([]Certificate, error) {
	return docstore.ListAs[Certificate](ctx, r.store, Collection)
}

// Insert writes a new certificate; it never overwrites an existing id.
func (r *Repository) Insert(ctx context.Context, c Certificate) error {
	return r.store.Create(ctx, Collection, c.ID, c)
}

func (r *Repository) Update(ctx context.Context, id string, fields map[string]any) error {
	return r.store.Update(ctx, Collection, id, fields)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, Collection, id)
}

// Snapshot is the full certificate list at a point in time.
type Snapshot struct {
	Certificates []Certificate
	Err          error
}

// Watch streams decoded snapshots until ctx is done.
func (r *Repository) Watch(ctx context.Context) (<-chan Snapshot, error) {
	raw, err := r.store.Subscribe(ctx, Collection)
	if err != nil {
		return nil, err
	}
	out := make(chan Snapshot)
	go func() {
		defer close(out)
		for snap := range raw {
			next := Snapshot{Err: snap.Err}
			if snap.Err == nil {
				next.Certificates, next.Err = docstore.DecodeAll[Certificate](snap.Documents)
			}
			select {
			case out <- next:
			case <-ctx.Done():
				// Drain so the store can close its side.
				for range raw {
				}
				return
			}
		}
	}()
	return out, nil
}
