package docstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type widget struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	require.NoError(t, s.Create(ctx, "widgets", "W1", widget{Name: "gear", Count: 1}))
	assert.ErrorIs(t, s.Create(ctx, "widgets", "W1", widget{Name: "dup"}), ErrExists)

	got, err := GetAs[widget](ctx, s, "widgets", "W1")
	require.NoError(t, err)
	assert.Equal(t, widget{Name: "gear", Count: 1}, got)

	require.NoError(t, s.Update(ctx, "widgets", "W1", map[string]any{"count": 5}))
	got, err = GetAs[widget](ctx, s, "widgets", "W1")
	require.NoError(t, err)
	assert.Equal(t, "gear", got.Name)
	assert.Equal(t, 5, got.Count)

	require.NoError(t, s.Set(ctx, "widgets", "W1", widget{Name: "cog"}))
	got, err = GetAs[widget](ctx, s, "widgets", "W1")
	require.NoError(t, err)
	assert.Equal(t, widget{Name: "cog"}, got)

	require.NoError(t, s.Delete(ctx, "widgets", "W1"))
	_, err = s.Get(ctx, "widgets", "W1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "widgets", "W1"), ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, "widgets", "W1", map[string]any{"count": 1}), ErrNotFound)
}

func TestMemoryRejectsNonObjects(t *testing.T) {
	s := NewMemory()
	assert.Error(t, s.Create(context.Background(), "widgets", "W1", []string{"a"}))
	assert.Error(t, s.Set(context.Background(), "widgets", "W1", json.RawMessage(`{"broken`)))
}

func TestMemoryListOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	require.NoError(t, s.Create(ctx, "widgets", "B", widget{Name: "b"}))
	require.NoError(t, s.Create(ctx, "widgets", "A", widget{Name: "a"}))

	items, err := ListAs[widget](ctx, s, "widgets")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].Name)
	assert.Equal(t, "a", items[1].Name)

	empty, err := s.List(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemory()

	_, err := s.Get(ctx, "widgets", "W1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, s.Create(ctx, "widgets", "W1", widget{}), ErrUnavailable)
}

func TestMemorySubscribe(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	s := NewMemory()
	require.NoError(t, s.Create(context.Background(), "widgets", "W1", widget{Name: "first"}))

	snaps, err := s.Subscribe(ctx, "widgets")
	require.NoError(t, err)

	initial := <-snaps
	assert.Equal(t, "widgets", initial.Collection)
	require.Len(t, initial.Documents, 1)

	require.NoError(t, s.Create(context.Background(), "widgets", "W2", widget{Name: "second"}))
	next := <-snaps
	assert.Len(t, next.Documents, 2)

	// Only the latest pending snapshot survives for a slow reader.
	require.NoError(t, s.Delete(context.Background(), "widgets", "W1"))
	require.NoError(t, s.Delete(context.Background(), "widgets", "W2"))
	latest := <-snaps
	assert.Empty(t, latest.Documents)

	cancel()
	_, ok := <-snaps
	assert.False(t, ok, "channel closes after cancel")
}
