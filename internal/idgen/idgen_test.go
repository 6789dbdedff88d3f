package idgen

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printshop/internal/docstore"
)

type brokenCounter struct{}

func (brokenCounter) Increment(context.Context, string) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestNextFormatsPerKind(t *testing.T) {
	gen := New(NewMemoryCounter(), nil)
	ctx := context.Background()

	cases := map[Kind]string{
		Job:         "ITEKJ001",
		Internship:  "ITEKI001",
		Certificate: "ITEK001CER001",
		Product:     "PROD001",
	}
	for kind, want := range cases {
		got, err := gen.Next(ctx, kind)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	second, err := gen.Next(ctx, Certificate)
	require.NoError(t, err)
	assert.Equal(t, "ITEK001CER002", second)
}

func TestNextWidensPast999(t *testing.T) {
	counter := NewMemoryCounter()
	counter.Seed(string(Certificate), 999)
	gen := New(counter, nil)

	id, err := gen.Next(context.Background(), Certificate)
	require.NoError(t, err)
	assert.Equal(t, "ITEK001CER1000", id)
}

func TestNextConcurrentCallsAreDistinct(t *testing.T) {
	const n = 200
	gen := New(NewMemoryCounter(), nil)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[string]struct{}, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := gen.Next(context.Background(), Job)
			assert.NoError(t, err)
			mu.Lock()
			ids[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, n)
	assert.Contains(t, ids, "ITEKJ001")
	assert.Contains(t, ids, "ITEKJ200")
}

func TestNextErrors(t *testing.T) {
	_, err := New(NewMemoryCounter(), nil).Next(context.Background(), Kind("invoice"))
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = New(brokenCounter{}, nil).Next(context.Background(), Job)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestOnIssueHook(t *testing.T) {
	var issued []Kind
	gen := New(NewMemoryCounter(), func(k Kind) { issued = append(issued, k) })

	_, err := gen.Next(context.Background(), Product)
	require.NoError(t, err)
	_, _ = gen.Next(context.Background(), Kind("nope"))

	assert.Equal(t, []Kind{Product}, issued)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("internship")
	require.NoError(t, err)
	assert.Equal(t, Internship, k)

	_, err = ParseKind("ITEKJ")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestAssignSkipsTakenIdentifiers(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	for _, id := range []string{"PROD001", "PROD002", "PROD003"} {
		require.NoError(t, store.Create(ctx, "products", id, map[string]string{"name": id}))
	}

	gen := New(NewMemoryCounter(), nil)
	var tried []string
	id, err := gen.Assign(ctx, Product, func(id string) error {
		tried = append(tried, id)
		return store.Create(ctx, "products", id, map[string]string{"name": "new"})
	})
	require.NoError(t, err)
	assert.Equal(t, "PROD004", id)
	assert.Equal(t, []string{"PROD001", "PROD002", "PROD003", "PROD004"}, tried)
}

func TestAssignStopsOnOtherErrors(t *testing.T) {
	ctx := context.Background()
	gen := New(NewMemoryCounter(), nil)
	boom := errors.New("disk full")

	calls := 0
	_, err := gen.Assign(ctx, Job, func(string) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)

	_, err = New(brokenCounter{}, nil).Assign(ctx, Job, func(string) error { return nil })
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestAssignGivesUpAfterBoundedSkips(t *testing.T) {
	gen := New(NewMemoryCounter(), nil)
	calls := 0
	_, err := gen.Assign(context.Background(), Internship, func(string) error {
		calls++
		return docstore.ErrExists
	})
	assert.ErrorIs(t, err, docstore.ErrExists)
	assert.Equal(t, maxSkips, calls)
}
