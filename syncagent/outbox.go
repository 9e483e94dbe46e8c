package syncagent

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"cityreport/metrics"
	"cityreport/models"
	"cityreport/remote"
	"cityreport/store"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// OutboxEntry is one report awaiting delivery.
type OutboxEntry struct {
	ID         string        `json:"id"`
	Report     models.Report `json:"report"`
	Attempts   int           `json:"attempts"`
	LastError  string        `json:"last_error,omitempty"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
}

// Outbox is the durable retry queue stored under store.KeySyncOutbox.
type Outbox struct {
	mu      sync.Mutex
	store   *store.LocalStore
	pusher  Pusher
	metrics *metrics.Metrics
	log     logrus.FieldLogger

	// per-entry retry policy
	initialInterval time.Duration
	maxElapsed      time.Duration
	maxRetries      uint64
}

// NewOutbox creates an Outbox delivering through pusher.
func NewOutbox(s *store.LocalStore, pusher Pusher, maxElapsed time.Duration, m *metrics.Metrics, log logrus.FieldLogger) *Outbox {
	return &Outbox{
		store:           s,
		pusher:          pusher,
		metrics:         m,
		log:             log.WithField("component", "outbox"),
		initialInterval: 500 * time.Millisecond,
		maxElapsed:      maxElapsed,
		maxRetries:      5,
	}
}

func (o *Outbox) load() []OutboxEntry {
	return store.Get(o.store, store.KeySyncOutbox, []OutboxEntry{})
}

func (o *Outbox) save(entries []OutboxEntry) {
	o.store.Set(store.KeySyncOutbox, entries)
	o.metrics.Outbox(len(entries))
}

// Enqueue stores report for a later Flush. A report already queued is replaced.
func (o *Outbox) Enqueue(report models.Report, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entries := o.load()
	for i := range entries {
		if entries[i].Report.ID == report.ID {
			entries[i].Report = report
			entries[i].LastError = reason
			o.save(entries)
			return
		}
	}
	o.save(append(entries, OutboxEntry{
		ID:         uuid.NewString(),
		Report:     report,
		LastError:  reason,
		EnqueuedAt: time.Now().UTC(),
	}))
}

// Pending returns the queued entries.
func (o *Outbox) Pending() []OutboxEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.load()
}

// Flush retries every queued entry with exponential backoff and removes
// the delivered ones. It returns the number delivered.
func (o *Outbox) Flush(ctx context.Context) int {
	o.mu.Lock()
	snapshot := o.load()
	o.mu.Unlock()

	if len(snapshot) == 0 {
		return 0
	}

	done := make(map[string]bool)
	failed := make(map[string]string)
	for _, entry := range snapshot {
		if ctx.Err() != nil {
			break
		}
		err := o.deliver(ctx, entry)
		switch {
		case err == nil:
			done[entry.ID] = true
			o.metrics.Sync(metrics.SyncSuccess)
		case isPermanent(err):
			done[entry.ID] = true
			o.metrics.Sync(metrics.SyncFailed)
			o.log.WithError(err).WithField("report_id", entry.Report.ID).Error("remote rejected report, discarding")
		default:
			failed[entry.ID] = err.Error()
			o.metrics.Sync(metrics.SyncFailed)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	current := o.load()
	kept := current[:0]
	for _, entry := range current {
		if done[entry.ID] {
			continue
		}
		if reason, ok := failed[entry.ID]; ok {
			entry.Attempts++
			entry.LastError = reason
		}
		kept = append(kept, entry)
	}
	o.save(kept)

	delivered := len(done)
	if delivered > 0 || len(failed) > 0 {
		o.log.WithFields(logrus.Fields{"delivered": delivered, "pending": len(kept)}).Info("outbox flushed")
	}
	return delivered
}

func (o *Outbox) deliver(ctx context.Context, entry OutboxEntry) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.initialInterval
	b.MaxElapsedTime = o.maxElapsed

	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()

		err := o.pusher.PushReport(attemptCtx, entry.Report)
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		o.log.WithError(err).WithFields(logrus.Fields{
			"report_id": entry.Report.ID,
			"retry_in":  wait.String(),
		}).Debug("outbox delivery failed")
	}

	return backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(b, o.maxRetries), ctx), notify)
}

// isPermanent reports remote rejections that retrying cannot fix.
func isPermanent(err error) bool {
	var se *remote.StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
}
