package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "cinelog/pkg/platform/audit"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) advance(d time.Duration) { c.now = c.now.Add(d) }

type capture struct{ events []audit.Event }

func (c *capture) Emit(_ context.Context, e audit.Event) { c.events = append(c.events, e) }

func TestLockout_LocksAfterMaxFailures(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	events := &capture{}
	metrics := NewMetrics(prometheus.NewRegistry())
	l := New(NewInMemoryStore(), 3, time.Minute, WithClock(clk.Now), WithAudit(events), WithMetrics(metrics))

	for range 3 {
		st, err := l.Check(ctx, "Eve", "10.0.0.1")
		require.NoError(t, err)
		require.False(t, st.Locked)
		require.NoError(t, l.RecordFailure(ctx, "Eve", "10.0.0.1"))
		clk.advance(10 * time.Second)
	}

	st, err := l.Check(ctx, "eve", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, st.Locked, "usernames compare case-insensitively")
	assert.Equal(t, 3, st.Failures)
	assert.Equal(t, 30*time.Second, st.RetryAfter, "oldest failure ages out after the window")
	require.Len(t, events.events, 1)
	assert.Equal(t, audit.ActionLoginLocked, events.events[0].Action)
	assert.Equal(t, 3.0, promtest.ToFloat64(metrics.Failures))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.Locked))

	other, err := l.Check(ctx, "eve", "10.0.0.2")
	require.NoError(t, err)
	assert.False(t, other.Locked, "other IPs are unaffected")

	clk.advance(31 * time.Second)
	st, err = l.Check(ctx, "eve", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, st.Locked)
	assert.Equal(t, 2, st.Failures)
}

func TestLockout_ResetClearsFailures(t *testing.T) {
	ctx := context.Background()
	l := New(NewInMemoryStore(), 1, time.Hour)

	require.NoError(t, l.RecordFailure(ctx, "amy", "ip"))
	st, err := l.Check(ctx, "amy", "ip")
	require.NoError(t, err)
	require.True(t, st.Locked)

	require.NoError(t, l.Reset(ctx, "amy", "ip"))
	st, err = l.Check(ctx, "amy", "ip")
	require.NoError(t, err)
	assert.False(t, st.Locked)
}

type brokenStore struct{ InMemoryStore }

func (*brokenStore) Failures(context.Context, string, time.Time) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("store down")
}

func TestLockout_StoreErrorIsReturned(t *testing.T) {
	_, err := New(&brokenStore{}, 1, time.Minute).Check(context.Background(), "x", "ip")
	assert.Error(t, err)
}

func TestKey_EscapesSeparator(t *testing.T) {
	assert.Equal(t, "login:a_b:1.2.3.4", Key(" A:b ", "1.2.3.4"))
	assert.NotEqual(t, Key("a:b", "c"), Key("a", "b:c"))
}
