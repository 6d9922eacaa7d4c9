package mixlib

import (
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolCoversAllIndices(t *testing.T) {
	pool := NewPool(4)
	var hits [100]int32
	require.NoError(t, pool.Each(100, func(i int) error {
		atomic.AddInt32(&hits[i], 1)
		return nil
	}))
	for i, h := range hits {
		assert.Equal(t, int32(1), h, "index %d", i)
	}
}

func TestPoolReportsError(t *testing.T) {
	pool := NewPool(3)
	err := pool.Each(10, func(i int) error {
		if i == 7 {
			return errors.New("boom")
		}
		return nil
	})
	assert.EqualError(t, err, "boom")
}

func TestPoolZeroWork(t *testing.T) {
	pool := NewPool(0)
	assert.NoError(t, pool.Each(0, func(i int) error {
		t.Fatal("should not run")
		return nil
	}))
}
