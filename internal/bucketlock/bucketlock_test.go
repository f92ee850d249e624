package bucketlock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTryLockOnlyOneWinner(t *testing.T) {
	l := New(4)
	require.True(t, l.TryLock(0))
	require.False(t, l.TryLock(0), "second claim of the same bucket within a pass must fail")
	require.True(t, l.TryLock(1), "a different bucket is unaffected")
}

func TestResetAllClearsClaims(t *testing.T) {
	l := New(2)
	require.True(t, l.TryLock(0))
	l.ResetAll()
	require.True(t, l.TryLock(0), "claim must be clearable only via ResetAll")
}

func TestConcurrentTryLockExactlyOneWinner(t *testing.T) {
	const workers = 500
	l := New(1)

	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryLock(0) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}
