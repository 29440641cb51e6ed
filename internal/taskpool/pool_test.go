package taskpool

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/handiism/cog-bulk/internal/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNew_RejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		p, err := New(size)
		require.Nil(t, p)
		require.ErrorIs(t, err, ErrInvalidSize)
		require.ErrorIs(t, err, ErrInvalidConfiguration)
	}

	p, err := New(DefaultSize())
	require.NoError(t, err)
	require.Equal(t, DefaultSize(), p.Size())
	require.False(t, p.IsOpen())
}

func TestSubmit_ResultsAndErrors(t *testing.T) {
	p, err := New(2)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = p.Session(func(p *Pool) error {
		ok := Submit(p, func() (int, error) { return 42, nil })
		bad := Submit(p, func() (int, error) { return 0, boom })
		panicky := Submit(p, func() (int, error) { panic("kaboom") })

		v, err := ok.Result()
		require.NoError(t, err)
		require.Equal(t, 42, v)

		_, err = bad.Result()
		require.ErrorIs(t, err, boom)

		_, err = panicky.Result()
		require.ErrorContains(t, err, "kaboom")

		require.True(t, ok.Done())
		return nil
	})
	require.NoError(t, err)
	require.False(t, p.IsOpen())
}

func TestSubmit_BoundsConcurrency(t *testing.T) {
	const size = 3
	p, err := New(size)
	require.NoError(t, err)

	var running, peak atomic.Int32
	op := func() (struct{}, error) {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return struct{}{}, nil
	}

	err = p.Session(func(p *Pool) error {
		handles := make([]*Handle[struct{}], 0, 12)
		for i := 0; i < 12; i++ {
			handles = append(handles, Submit(p, op))
		}
		for _, h := range handles {
			_, err := h.Result()
			require.NoError(t, err)
		}
		return nil
	})
	require.NoError(t, err)
	require.LessOrEqual(t, peak.Load(), int32(size))
	require.Equal(t, int32(size), peak.Load())
}

func TestClose_WithoutWaitResolvesQueued(t *testing.T) {
	p, err := New(1)
	require.NoError(t, err)
	p.Open()

	release := make(chan struct{})
	started := make(chan struct{})
	running := Submit(p, func() (string, error) {
		close(started)
		<-release
		return "ran", nil
	})
	<-started
	queued := Submit(p, func() (string, error) { return "never", nil })

	p.Close(false)
	require.False(t, p.IsOpen())

	_, err = queued.Result()
	require.ErrorIs(t, err, ErrClosed)
	require.False(t, running.Done())

	close(release)
	v, err := running.Result()
	require.NoError(t, err)
	require.Equal(t, "ran", v)

	// drain the background goroutine before goleak checks
	p.Open()
	p.Close(true)
}

func TestOpenClose_Idempotent(t *testing.T) {
	p, err := New(1)
	require.NoError(t, err)

	p.Close(true)
	p.Open()
	p.Open()
	require.True(t, p.IsOpen())
	p.Close(true)
	p.Close(false)
	require.False(t, p.IsOpen())
}

func TestSubmit_OneShotSession(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p, err := New(2, WithLogger(&logger.ZapLogger{Logger: zap.New(core)}))
	require.NoError(t, err)

	h := Submit(p, func() (int, error) { return 7, nil })

	// the one-shot session waits for its operation before returning
	require.True(t, h.Done())
	require.False(t, p.IsOpen())
	v, err := h.Result()
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 1, logs.FilterMessageSnippet("one-shot").Len())
}

func TestSubmitTo_DeliversHandles(t *testing.T) {
	p, err := New(4)
	require.NoError(t, err)

	done := make(chan *Handle[int], 10)
	err = p.Session(func(p *Pool) error {
		for i := 0; i < 10; i++ {
			i := i
			SubmitTo(p, func() (int, error) { return i * i, nil }, done)
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, done, 10)

	sum := 0
	for i := 0; i < 10; i++ {
		h := <-done
		require.True(t, h.Done())
		v, _ := h.Result()
		sum += v
	}
	assert.Equal(t, 285, sum)
}
