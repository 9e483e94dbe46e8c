// Package syncagent uploads newly created reports to the remote service
// without ever blocking or failing the caller.
package syncagent

import (
	"context"
	"sync"
	"time"

	"cityreport/metrics"
	"cityreport/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds one outbound push.
const DefaultTimeout = 10 * time.Second

// Pusher delivers one report to the remote side.
// Implemented by remote.Client and db.FirestoreDB.
type Pusher interface {
	PushReport(ctx context.Context, report models.Report) error
}

// Agent pushes reports in the background. A nil pusher disables syncing.
type Agent struct {
	pusher  Pusher
	timeout time.Duration
	limiter *rate.Limiter
	outbox  *Outbox
	metrics *metrics.Metrics
	log     logrus.FieldLogger

	wg sync.WaitGroup
}

// Option configures an Agent.
type Option func(*Agent)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Agent) { a.timeout = d }
}

// WithRateLimit drops pushes beyond r per second with the given burst.
func WithRateLimit(r float64, burst int) Option {
	return func(a *Agent) {
		if r > 0 && burst > 0 {
			a.limiter = rate.NewLimiter(rate.Limit(r), burst)
		}
	}
}

// WithOutbox keeps failed or dropped pushes for a later Flush.
func WithOutbox(o *Outbox) Option {
	return func(a *Agent) { a.outbox = o }
}

// WithMetrics records push outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// WithLogger sets the agent logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(a *Agent) { a.log = log }
}

// NewAgent creates an Agent.
func NewAgent(pusher Pusher, opts ...Option) *Agent {
	a := &Agent{
		pusher:  pusher,
		timeout: DefaultTimeout,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.WithField("component", "sync")
	return a
}

// Enabled reports whether a remote is configured.
func (a *Agent) Enabled() bool {
	return a.pusher != nil
}

// Push schedules an upload of report and returns immediately.
func (a *Agent) Push(report models.Report) {
	if a.pusher == nil {
		return
	}

	entry := a.log.WithField("report_id", report.ID)

	if a.limiter != nil && !a.limiter.Allow() {
		if a.outbox != nil {
			a.outbox.Enqueue(report, "rate limited")
			a.metrics.Sync(metrics.SyncQueued)
			entry.Warn("sync rate exceeded, report queued")
			return
		}
		a.metrics.Sync(metrics.SyncDropped)
		entry.Warn("sync rate exceeded, push dropped")
		return
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := a.pusher.PushReport(ctx, report); err != nil {
			a.metrics.Sync(metrics.SyncFailed)
			if a.outbox != nil {
				a.outbox.Enqueue(report, err.Error())
				entry.WithError(err).Warn("report sync failed, queued for retry")
				return
			}
			entry.WithError(err).Warn("report sync failed")
			return
		}
		a.metrics.Sync(metrics.SyncSuccess)
		entry.Debug("report synced")
	}()
}

// Wait blocks until every in-flight push has finished.
func (a *Agent) Wait() {
	a.wg.Wait()
}
