// Package audit fans security events out to their sinks.
//
// Emit never blocks and never fails: each sink delivery runs on its own
// goroutine with a timeout and failures are only logged and counted.
package audit

import (
	"context"
	"sync"
	"time"

	"cityreport/metrics"
	"cityreport/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds one sink delivery.
const DefaultTimeout = 5 * time.Second

// Sink receives security events.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event models.SecurityEvent) error
}

// Emitter is what the session and auth layers depend on.
type Emitter interface {
	Emit(kind models.EventKind, subject, detail string)
}

// Auditor stamps events and dispatches them to every sink.
type Auditor struct {
	sinks   []Sink
	timeout time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
	log     logrus.FieldLogger

	wg sync.WaitGroup
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithSink adds a sink. Nil sinks are ignored.
func WithSink(s Sink) Option {
	return func(a *Auditor) {
		if s != nil {
			a.sinks = append(a.sinks, s)
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Auditor) { a.now = now }
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Auditor) { a.timeout = d }
}

// WithMetrics counts events and sink failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Auditor) { a.metrics = m }
}

// WithLogger sets the auditor logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(a *Auditor) { a.log = log }
}

// New creates an Auditor.
func New(opts ...Option) *Auditor {
	a := &Auditor{
		timeout: DefaultTimeout,
		now:     time.Now,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.WithField("component", "audit")
	return a
}

// Emit records a security event asynchronously.
func (a *Auditor) Emit(kind models.EventKind, subject, detail string) {
	event := models.SecurityEvent{
		ID:        uuid.NewString(),
		Timestamp: a.now().UTC(),
		Kind:      kind,
		Subject:   subject,
		Detail:    detail,
	}
	a.metrics.Audit(string(kind))

	for _, sink := range a.sinks {
		a.wg.Add(1)
		go func(sink Sink) {
			defer a.wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
			defer cancel()

			if err := sink.Deliver(ctx, event); err != nil {
				a.metrics.AuditFailure(sink.Name())
				a.log.WithError(err).WithFields(logrus.Fields{
					"sink": sink.Name(),
					"kind": kind,
				}).Warn("security event delivery failed")
			}
		}(sink)
	}
}

// Wait blocks until in-flight deliveries have finished.
func (a *Auditor) Wait() {
	a.wg.Wait()
}
