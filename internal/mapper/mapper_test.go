package mapper

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/handiism/cog-bulk/internal/taskpool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newPool(t *testing.T, size int) *taskpool.Pool {
	t.Helper()
	p, err := taskpool.New(size)
	require.NoError(t, err)
	p.Open()
	t.Cleanup(func() { p.Close(true) })
	return p
}

func TestMap_AllSucceed(t *testing.T) {
	p := newPool(t, 4)
	keys := []int{1, 2, 3, 4, 5, 6, 7}

	res := Map(p, keys, func(k int) (string, error) {
		return fmt.Sprint(k * 10), nil
	})

	require.Len(t, res.Values, len(keys))
	require.Empty(t, res.Failures)
	for _, k := range keys {
		assert.Equal(t, fmt.Sprint(k*10), res.Values[k])
	}
}

func TestMap_PartitionsFailures(t *testing.T) {
	p := newPool(t, 3)
	keys := []string{"a", "b", "c", "d", "e", "f"}
	failing := map[string]bool{"b": true, "e": true}
	errBad := errors.New("bad key")

	res := Map(p, keys, func(k string) (int, error) {
		// uneven sleeps shuffle completion order
		time.Sleep(time.Duration(len(keys)-int(k[0]-'a')) * time.Millisecond)
		if failing[k] {
			return 0, errBad
		}
		return int(k[0]), nil
	})

	require.Len(t, res.Failures, len(failing))
	require.Len(t, res.Values, len(keys)-len(failing))
	for _, k := range keys {
		_, ok := res.Values[k]
		_, failed := res.Failures[k]
		require.NotEqual(t, ok, failed, "key %s must be in exactly one map", k)
		if failing[k] {
			require.ErrorIs(t, res.Failures[k], errBad)
		}
	}
}

func TestMap_CollapsesDuplicatesAndReportsProgress(t *testing.T) {
	p := newPool(t, 2)

	var events []Progress
	res := Map(p, []int{1, 1, 2, 3, 3, 3}, func(k int) (int, error) {
		if k == 2 {
			return 0, errors.New("two")
		}
		return k, nil
	}, WithLabel("Getting Things"), WithProgress(func(ev Progress) {
		events = append(events, ev)
	}))

	require.Equal(t, 3, res.Total())
	require.Len(t, events, 3)
	last := events[len(events)-1]
	assert.Equal(t, Progress{Label: "Getting Things", Done: 3, Failed: 1, Total: 3}, last)
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Done)
	}
}

func TestMap_EmptyKeys(t *testing.T) {
	p := newPool(t, 1)
	res := Map(p, nil, func(k int) (int, error) { return k, nil }, WithTiming())
	require.Zero(t, res.Total())
	require.Empty(t, res.Failures)
}

func TestMap_WaitsForEverySlotRound(t *testing.T) {
	const (
		size   = 3
		keys   = 10
		opTime = 30 * time.Millisecond
	)
	p := newPool(t, size)

	ks := make([]int, keys)
	for i := range ks {
		ks[i] = i
	}

	start := time.Now()
	res := Map(p, ks, func(k int) (int, error) {
		time.Sleep(opTime)
		return k, nil
	}, WithTiming())
	elapsed := time.Since(start)

	rounds := int(math.Ceil(float64(keys) / float64(size)))
	require.Len(t, res.Values, keys)
	require.GreaterOrEqual(t, elapsed, time.Duration(rounds)*opTime)
	require.GreaterOrEqual(t, res.Elapsed, time.Duration(rounds)*opTime)
	require.Greater(t, res.Throughput(), 0.0)
}
