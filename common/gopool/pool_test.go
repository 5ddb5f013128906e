package gopool

import (
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreads(t *testing.T) {
	assert.Equal(t, 1, Threads(0))
	assert.Equal(t, 1, Threads(minNumberPerTask-1))
	assert.Equal(t, runtime.NumCPU(), Threads(minNumberPerTask*runtime.NumCPU()*4))
}

func TestForEach(t *testing.T) {
	for _, threads := range []int{0, 1, 4, 64} {
		var (
			seen [100]int32
			sum  int64
		)
		require.NoError(t, ForEach(len(seen), threads, func(i int) {
			atomic.AddInt32(&seen[i], 1)
			atomic.AddInt64(&sum, int64(i))
		}))
		for i := range seen {
			assert.EqualValues(t, 1, seen[i], "threads %d index %d", threads, i)
		}
		assert.EqualValues(t, 99*100/2, sum)
	}
}

func TestSubmit(t *testing.T) {
	done := make(chan struct{})
	require.NoError(t, Submit(func() { close(done) }))
	<-done
	assert.Greater(t, Cap(), 0)
	assert.GreaterOrEqual(t, Running(), 0)
}
