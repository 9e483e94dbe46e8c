package syncagent

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"cityreport/metrics"
	"cityreport/models"
	"cityreport/remote"
	"cityreport/store"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePusher struct {
	mu       sync.Mutex
	calls    int
	failures int // fail this many calls first
	err      error
	block    chan struct{}
	pushed   []string
}

func (p *fakePusher) PushReport(ctx context.Context, r models.Report) error {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		return p.err
	}
	p.pushed = append(p.pushed, r.ID)
	return nil
}

func (p *fakePusher) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newOutboxForTest(t *testing.T, p Pusher, m *metrics.Metrics) *Outbox {
	t.Helper()
	log, _ := test.NewNullLogger()
	o := NewOutbox(store.New(store.NewMemoryBackend(), log), p, time.Second, m, log)
	o.initialInterval = time.Millisecond
	o.maxRetries = 2
	return o
}

func TestAgent_PushDoesNotBlock(t *testing.T) {
	p := &fakePusher{block: make(chan struct{})}
	log, _ := test.NewNullLogger()
	a := NewAgent(p, WithLogger(log))

	start := time.Now()
	a.Push(models.Report{ID: "r1"})
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(p.block)
	a.Wait()
	assert.Equal(t, 1, p.Calls())
}

func TestAgent_NilPusherIsNoop(t *testing.T) {
	a := NewAgent(nil)
	assert.False(t, a.Enabled())
	assert.NotPanics(t, func() {
		a.Push(models.Report{ID: "r1"})
		a.Wait()
	})
}

func TestAgent_FailureIsLoggedNotReturned(t *testing.T) {
	p := &fakePusher{failures: 1, err: errors.New("connection refused")}
	log, hook := test.NewNullLogger()
	m := metrics.New()
	a := NewAgent(p, WithLogger(log), WithMetrics(m))

	a.Push(models.Report{ID: "r1"})
	a.Wait()

	require.NotEmpty(t, hook.Entries)
	assert.Equal(t, "report sync failed", hook.LastEntry().Message)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncPushes.WithLabelValues(metrics.SyncFailed)))
}

func TestAgent_TimeoutBoundsPush(t *testing.T) {
	p := &fakePusher{block: make(chan struct{})}
	defer close(p.block)
	log, _ := test.NewNullLogger()
	m := metrics.New()
	a := NewAgent(p, WithLogger(log), WithTimeout(20*time.Millisecond), WithMetrics(m))

	a.Push(models.Report{ID: "r1"})
	a.Wait()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncPushes.WithLabelValues(metrics.SyncFailed)))
}

func TestAgent_RateLimitDrops(t *testing.T) {
	p := &fakePusher{}
	log, _ := test.NewNullLogger()
	m := metrics.New()
	a := NewAgent(p, WithLogger(log), WithMetrics(m), WithRateLimit(0.001, 1))

	a.Push(models.Report{ID: "r1"})
	a.Push(models.Report{ID: "r2"})
	a.Wait()

	assert.Equal(t, 1, p.Calls())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncPushes.WithLabelValues(metrics.SyncDropped)))
}

func TestAgent_FailedPushGoesToOutbox(t *testing.T) {
	p := &fakePusher{failures: 1, err: errors.New("503")}
	log, _ := test.NewNullLogger()
	o := newOutboxForTest(t, p, nil)
	a := NewAgent(p, WithLogger(log), WithOutbox(o))

	a.Push(models.Report{ID: "r1"})
	a.Wait()

	pending := o.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "r1", pending[0].Report.ID)
	assert.Equal(t, "503", pending[0].LastError)

	assert.Equal(t, 1, o.Flush(context.Background()))
	assert.Empty(t, o.Pending())
	assert.Equal(t, []string{"r1"}, p.pushed)
}

func TestAgent_RateLimitedPushGoesToOutbox(t *testing.T) {
	p := &fakePusher{}
	log, _ := test.NewNullLogger()
	o := newOutboxForTest(t, p, nil)
	a := NewAgent(p, WithLogger(log), WithOutbox(o), WithRateLimit(0.001, 1))

	a.Push(models.Report{ID: "r1"})
	a.Push(models.Report{ID: "r2"})
	a.Wait()

	pending := o.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "r2", pending[0].Report.ID)
}

func TestOutbox_EnqueueReplacesSameReport(t *testing.T) {
	o := newOutboxForTest(t, &fakePusher{}, nil)

	o.Enqueue(models.Report{ID: "r1", Category: "old"}, "a")
	o.Enqueue(models.Report{ID: "r1", Category: "new"}, "b")

	pending := o.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "new", pending[0].Report.Category)
	assert.Equal(t, "b", pending[0].LastError)
}

func TestOutbox_FlushRetriesWithBackoff(t *testing.T) {
	p := &fakePusher{failures: 2, err: errors.New("flaky")}
	m := metrics.New()
	o := newOutboxForTest(t, p, m)
	o.Enqueue(models.Report{ID: "r1"}, "initial")

	assert.Equal(t, 1, o.Flush(context.Background()))
	assert.Equal(t, 3, p.Calls())
	assert.Empty(t, o.Pending())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.OutboxDepth))
}

func TestOutbox_FlushKeepsUndelivered(t *testing.T) {
	p := &fakePusher{failures: 100, err: errors.New("down")}
	o := newOutboxForTest(t, p, nil)
	o.Enqueue(models.Report{ID: "r1"}, "initial")

	assert.Equal(t, 0, o.Flush(context.Background()))

	pending := o.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "down", pending[0].LastError)
}

func TestOutbox_PermanentRejectionIsDiscarded(t *testing.T) {
	p := &fakePusher{failures: 100, err: &remote.StatusError{StatusCode: http.StatusBadRequest, Body: "bad report"}}
	o := newOutboxForTest(t, p, nil)
	o.Enqueue(models.Report{ID: "r1"}, "initial")

	assert.Equal(t, 1, o.Flush(context.Background()))
	assert.Equal(t, 1, p.Calls(), "4xx must not be retried")
	assert.Empty(t, o.Pending())
}

func TestOutbox_FlushHonoursCancellation(t *testing.T) {
	p := &fakePusher{}
	o := newOutboxForTest(t, p, nil)
	o.Enqueue(models.Report{ID: "r1"}, "initial")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 0, o.Flush(ctx))
	assert.Len(t, o.Pending(), 1)
	assert.Equal(t, 0, p.Calls())
}
