package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

type memEntry struct {
	data      json.RawMessage
	createdAt time.Time
	updatedAt time.Time
}

// Memory is a thread-safe in-process Store used for development and tests.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]*memEntry
	subs        map[string]map[int]*memSubscriber
	lastSubID   int
	now         func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]*memEntry),
		subs:        make(map[string]map[int]*memSubscriber),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Get(ctx context.Context, collection, key string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, unavailable("get", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.collections[collection][key]
	if !ok {
		return Document{}, ErrNotFound
	}
	return e.document(key), nil
}

func (m *Memory) List(ctx context.Context, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(collection), nil
}

func (m *Memory) Create(ctx context.Context, collection, key string, data any) error {
	raw, err := encode(data)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return unavailable("create", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collection][key]; ok {
		return ErrExists
	}
	m.putLocked(collection, key, raw)
	return nil
}

func (m *Memory) Set(ctx context.Context, collection, key string, data any) error {
	raw, err := encode(data)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return unavailable("set", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(collection, key, raw)
	return nil
}

func (m *Memory) Update(ctx context.Context, collection, key string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return unavailable("update", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.collections[collection][key]
	if !ok {
		return ErrNotFound
	}
	merged, err := merge(e.data, fields)
	if err != nil {
		return err
	}
	e.data = merged
	e.updatedAt = m.now()
	m.publishLocked(collection)
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, key string) error {
	if err := ctx.Err(); err != nil {
		return unavailable("delete", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collection][key]; !ok {
		return ErrNotFound
	}
	delete(m.collections[collection], key)
	m.publishLocked(collection)
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, collection string) (<-chan Snapshot, error) {
	sub := &memSubscriber{ch: make(chan Snapshot, 1)}

	m.mu.Lock()
	m.lastSubID++
	id := m.lastSubID
	if m.subs[collection] == nil {
		m.subs[collection] = make(map[int]*memSubscriber)
	}
	m.subs[collection][id] = sub
	sub.offer(Snapshot{Collection: collection, Documents: m.snapshotLocked(collection)})
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs[collection], id)
		m.mu.Unlock()
		sub.close()
	}()
	return sub.ch, nil
}

// putLocked stores raw under key. Caller holds m.mu for writing.
func (m *Memory) putLocked(collection, key string, raw json.RawMessage) {
	now := m.now()
	if m.collections[collection] == nil {
		m.collections[collection] = make(map[string]*memEntry)
	}
	if e, ok := m.collections[collection][key]; ok {
		e.data = raw
		e.updatedAt = now
	} else {
		m.collections[collection][key] = &memEntry{data: raw, createdAt: now, updatedAt: now}
	}
	m.publishLocked(collection)
}

func (m *Memory) publishLocked(collection string) {
	subs := m.subs[collection]
	if len(subs) == 0 {
		return
	}
	snap := Snapshot{Collection: collection, Documents: m.snapshotLocked(collection)}
	for _, sub := range subs {
		sub.offer(snap)
	}
}

// snapshotLocked returns documents ordered by creation time, then key.
func (m *Memory) snapshotLocked(collection string) []Document {
	entries := m.collections[collection]
	docs := make([]Document, 0, len(entries))
	for key, e := range entries {
		docs = append(docs, e.document(key))
	}
	sortDocuments(docs)
	return docs
}

func (e *memEntry) document(key string) Document {
	data := make(json.RawMessage, len(e.data))
	copy(data, e.data)
	return Document{Key: key, Data: data, CreatedAt: e.createdAt, UpdatedAt: e.updatedAt}
}

func sortDocuments(docs []Document) {
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].Key < docs[j].Key
	})
}

// memSubscriber keeps at most one pending snapshot, replacing stale ones.
type memSubscriber struct {
	mu     sync.Mutex
	ch     chan Snapshot
	closed bool
}

func (s *memSubscriber) offer(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}

func (s *memSubscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
