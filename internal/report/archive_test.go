package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printshop/internal/apperr"
	"printshop/internal/certificate"
	"printshop/internal/queue"
)

type stubVerifier struct {
	res certificate.Result
	err error
}

func (s stubVerifier) Verify(context.Context, string) (certificate.Result, error) {
	return s.res, s.err
}

type memObjects struct {
	objects map[string][]byte
	putErr  error
}

func (m *memObjects) Put(_ context.Context, key string, data []byte) error {
	if m.putErr != nil {
		return m.putErr
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return nil
}

func (m *memObjects) URL(_ context.Context, key string) (string, error) {
	return "https://objects.local/" + key, nil
}

func TestArchiveStoresRenderedReport(t *testing.T) {
	store := &memObjects{}
	a := NewArchivist(stubVerifier{res: validResult()}, NewRenderer("InvenTek 3D"), store, nil, nil)
	a.now = func() time.Time { return generated }

	got, err := a.Archive(context.Background(), "itek001cer001")
	require.NoError(t, err)

	assert.Equal(t, "reports/ITEK001CER001/20240110T093000Z.pdf", got.Key)
	assert.Equal(t, "https://objects.local/"+got.Key, got.URL)
	require.Contains(t, store.objects, got.Key)
	assert.NotEmpty(t, store.objects[got.Key])
}

func TestArchivePropagatesFailures(t *testing.T) {
	a := NewArchivist(stubVerifier{err: apperr.ErrLookupFailed}, NewRenderer(""), &memObjects{}, nil, nil)
	_, err := a.Archive(context.Background(), "ITEK001CER001")
	assert.ErrorIs(t, err, apperr.ErrLookupFailed)

	boom := errors.New("bucket gone")
	a = NewArchivist(stubVerifier{res: validResult()}, NewRenderer(""), &memObjects{putErr: boom}, nil, nil)
	_, err = a.Archive(context.Background(), "ITEK001CER001")
	assert.ErrorIs(t, err, boom)
}

func TestHandleMessage(t *testing.T) {
	store := &memObjects{}
	a := NewArchivist(stubVerifier{res: validResult()}, NewRenderer(""), store, nil, nil)

	msg, err := queue.NewArchiveMessage("ITEK001CER001", generated)
	require.NoError(t, err)
	require.NoError(t, a.HandleMessage(context.Background(), msg))
	assert.Len(t, store.objects, 1)

	assert.Error(t, a.HandleMessage(context.Background(), queue.Message{Type: queue.TypeArchiveReport, Body: []byte(`{}`)}))
}
