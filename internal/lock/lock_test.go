package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_TimesOutWhileHeld(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), time.Second)
	require.NoError(t, err)

	_, err = l.Acquire(context.Background(), 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	release()
	release2, err := l.Acquire(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	release2()
}

func TestLocalLocker_ContextCancel(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), time.Second)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLocalLocker_MutualExclusion(t *testing.T) {
	l := NewLocal()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), 5*time.Second)
			if err != nil {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}
