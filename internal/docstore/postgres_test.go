package docstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPostgres(t *testing.T) *Postgres {
	t.Helper()
	url := os.Getenv("PRINTSHOP_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PRINTSHOP_TEST_DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	_, err = pool.Exec(context.Background(), Schema)
	require.NoError(t, err)
	return NewPostgres(pool, nil, 50*time.Millisecond, nil)
}

func TestPostgresCRUD(t *testing.T) {
	s := testPostgres(t)
	ctx := context.Background()
	collection := "test_" + uuid.NewString()

	require.NoError(t, s.Create(ctx, collection, "W1", widget{Name: "gear", Count: 1}))
	assert.ErrorIs(t, s.Create(ctx, collection, "W1", widget{}), ErrExists)

	require.NoError(t, s.Update(ctx, collection, "W1", map[string]any{"count": 3}))
	got, err := GetAs[widget](ctx, s, collection, "W1")
	require.NoError(t, err)
	assert.Equal(t, widget{Name: "gear", Count: 3}, got)

	require.NoError(t, s.Delete(ctx, collection, "W1"))
	_, err = s.Get(ctx, collection, "W1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresSubscribePolls(t *testing.T) {
	s := testPostgres(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	collection := "test_" + uuid.NewString()

	snaps, err := s.Subscribe(ctx, collection)
	require.NoError(t, err)
	first := <-snaps
	assert.Empty(t, first.Documents)

	require.NoError(t, s.Create(context.Background(), collection, "W1", widget{Name: "gear"}))
	require.Eventually(t, func() bool {
		select {
		case snap := <-snaps:
			return len(snap.Documents) == 1
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
}
