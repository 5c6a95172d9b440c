package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadUntilTargetAlreadyPresent(t *testing.T) {
	p := newFakePage(t, sampleOrders(5), 5, 1)
	l := NewLoader(p, compiledSchema(t).Container, fastLoader(), nil)

	n, err := l.LoadUntil(context.Background(), 3, NewToken())
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	reveals, _, scrolls := p.counts()
	assert.Zero(t, reveals)
	assert.Zero(t, scrolls, "scroll position is only restored after a reveal")
}

func TestLoadUntilGrowsToTarget(t *testing.T) {
	p := newFakePage(t, sampleOrders(10), 2, 3)
	l := NewLoader(p, compiledSchema(t).Container, fastLoader(), nil)

	n, err := l.LoadUntil(context.Background(), 7, NewToken())
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	reveals, _, scrolls := p.counts()
	assert.Equal(t, 2, reveals)
	assert.Equal(t, 1, scrolls)
}

func TestLoadUntilZeroTargetNeverReveals(t *testing.T) {
	for _, visible := range []int{0, 2} {
		p := newFakePage(t, sampleOrders(5), visible, 1)
		l := NewLoader(p, compiledSchema(t).Container, fastLoader(), nil)

		n, err := l.LoadUntil(context.Background(), 0, NewToken())
		require.NoError(t, err)
		assert.Equal(t, visible, n)

		reveals, _, scrolls := p.counts()
		assert.Zero(t, reveals, "visible %d", visible)
		assert.Zero(t, scrolls, "visible %d", visible)
	}
}

func TestLoadUntilExactStepReachesTarget(t *testing.T) {
	p := newFakePage(t, sampleOrders(7), 1, 3)
	l := NewLoader(p, compiledSchema(t).Container, fastLoader(), nil)

	start := time.Now()
	n, err := l.LoadUntil(context.Background(), 7, NewToken())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Less(t, time.Since(start), fastLoader().TriggerTimeout*time.Duration(fastLoader().StallThreshold),
		"reaching the target ends loading without waiting for a stall")

	reveals, _, scrolls := p.counts()
	assert.Equal(t, 2, reveals, "one reveal per step and none after the target")
	assert.Equal(t, 1, scrolls)
}

func TestLoadUntilStopsAfterStallThreshold(t *testing.T) {
	p := newFakePage(t, sampleOrders(4), 2, 2)
	l := NewLoader(p, compiledSchema(t).Container, fastLoader(), nil)

	n, err := l.LoadUntil(context.Background(), 10, NewToken())
	require.NoError(t, err)
	assert.Equal(t, 4, n, "a partial count is a normal outcome")

	reveals, _, _ := p.counts()
	// one productive reveal, then StallThreshold reveals without growth
	assert.Equal(t, 1+3, reveals)
}

func TestLoadUntilStallValve(t *testing.T) {
	p := newFakePage(t, sampleOrders(2), 2, 0)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	cfg := fastLoader()
	cfg.StallThreshold = 100
	cfg.TriggerTimeout = 10 * time.Millisecond
	cfg.Now = func() time.Time {
		now := start.Add(time.Duration(calls) * 600 * time.Millisecond)
		calls++
		return now
	}
	l := NewLoader(p, compiledSchema(t).Container, cfg, nil)

	n, err := l.LoadUntil(context.Background(), 5, NewToken())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// valve is 100 x 10ms = 1s; the clock moves 600ms per reading
	reveals, _, _ := p.counts()
	assert.Equal(t, 2, reveals)
}

func TestLoadUntilCancelledBeforeStart(t *testing.T) {
	p := newFakePage(t, sampleOrders(5), 1, 1)
	l := NewLoader(p, compiledSchema(t).Container, fastLoader(), nil)

	tok := NewToken()
	tok.Abort()
	n, err := l.LoadUntil(context.Background(), 5, tok)
	require.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 1, n)

	reveals, _, _ := p.counts()
	assert.Zero(t, reveals)
}

func TestLoadUntilCancelledWhileWaiting(t *testing.T) {
	p := newFakePage(t, sampleOrders(5), 1, 0)
	tok := NewToken()
	p.onReveal = func(int) { tok.Abort() }

	cfg := fastLoader()
	cfg.PollInterval = time.Hour
	cfg.TriggerTimeout = time.Hour
	l := NewLoader(p, compiledSchema(t).Container, cfg, nil)

	done := make(chan error, 1)
	go func() {
		_, err := l.LoadUntil(context.Background(), 5, tok)
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("loader did not observe the aborted token")
	}
}

func TestLoadUntilStaticDocument(t *testing.T) {
	doc := htmlDoc(t, sampleOrders(2))
	l := NewLoader(doc, compiledSchema(t).Container, fastLoader(), nil)

	n, err := l.LoadUntil(context.Background(), 10, NewToken())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestLoadUntilCountFault(t *testing.T) {
	doc := htmlDoc(t, sampleOrders(2))
	l := NewLoader(doc, "div[", fastLoader(), nil)

	_, err := l.LoadUntil(context.Background(), 10, NewToken())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCancelled)
}
