package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilHandlesAreUnhealthy(t *testing.T) {
	var db *DB
	var rdb *Redis
	assert.False(t, db.Healthy(context.Background()))
	assert.False(t, rdb.Healthy(context.Background()))
	assert.NoError(t, rdb.Close())
	db.Close()
}

func TestNewDBRejectsBadDSN(t *testing.T) {
	_, err := NewDB(context.Background(), "postgres://%zz")
	assert.Error(t, err)
}
