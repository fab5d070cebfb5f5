package system

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC().Add(-time.Second)
	got := New().Now()

	assert.Equal(t, time.UTC, got.Location())
	assert.WithinRange(t, got, before, time.Now().UTC().Add(time.Second))
}

func TestSteppedAdvances(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	clk := NewStepped(start, time.Second)

	assert.Equal(t, start, clk.Now())
	assert.Equal(t, start.Add(time.Second), clk.Now())
}

func TestSteppedIsSafeForConcurrentUse(t *testing.T) {
	t.Parallel()

	start := time.Unix(0, 0).UTC()
	clk := NewStepped(start, time.Millisecond)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[time.Time]struct{})
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			now := clk.Now()
			mu.Lock()
			seen[now] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, 20)
	assert.Equal(t, start.Add(20*time.Millisecond), clk.Now())
}
