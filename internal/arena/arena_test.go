package arena

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConsumeReleaseLIFO(t *testing.T) {
	a := New(4)
	require.Equal(t, uint32(4), a.FreeCount())

	b0, err := a.Consume()
	require.NoError(t, err)
	require.Equal(t, uint32(3), a.FreeCount())

	require.NoError(t, a.Release(b0))
	require.Equal(t, uint32(4), a.FreeCount())

	b1, err := a.Consume()
	require.NoError(t, err)
	require.Equal(t, b0, b1, "arena reuse must be LIFO")
}

func TestConsumeExhausted(t *testing.T) {
	a := New(2)
	_, err := a.Consume()
	require.NoError(t, err)
	_, err = a.Consume()
	require.NoError(t, err)
	_, err = a.Consume()
	require.ErrorIs(t, err, ErrExhausted)
}

func TestReleaseIllegalIndex(t *testing.T) {
	a := New(2)
	require.ErrorIs(t, a.Release(99), ErrIllegalBlockIndex)
}

func TestReleaseBeyondCapacity(t *testing.T) {
	a := New(1)
	b, err := a.Consume()
	require.NoError(t, err)
	require.NoError(t, a.Release(b))                       // pool is full again
	require.ErrorIs(t, a.Release(b), ErrIllegalBlockIndex) // would over-fill
}

func TestConcurrentConsumeDistinct(t *testing.T) {
	const n = 256
	a := New(n)

	seen := make([]int32, n)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			idx, err := a.Consume()
			require.NoError(t, err)
			mu.Lock()
			seen[idx]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, uint32(0), a.FreeCount())
	for _, c := range seen {
		require.Equal(t, int32(1), c, "every block index consumed exactly once")
	}
}

func TestReset(t *testing.T) {
	a := New(4)
	_, _ = a.Consume()
	_, _ = a.Consume()
	a.Reset()
	require.Equal(t, uint32(4), a.FreeCount())
}
