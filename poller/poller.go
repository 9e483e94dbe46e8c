// Package poller runs named periodic tasks that stop together.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Task is one tick of a periodic job. ctx is cancelled by Stop.
type Task func(ctx context.Context)

// Group owns a set of tickers.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    logrus.FieldLogger

	mu      sync.Mutex
	names   []string
	stopped bool
	wg      sync.WaitGroup
}

// New creates a Group bound to parent. Cancelling parent stops every task.
func New(parent context.Context, log logrus.FieldLogger) *Group {
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Group{ctx: ctx, cancel: cancel, log: log.WithField("component", "poller")}
}

// Every starts fn on its own ticker. The first run happens after one interval.
// A non-positive interval or a stopped group is ignored.
func (g *Group) Every(name string, interval time.Duration, fn Task) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped || interval <= 0 {
		g.log.WithField("task", name).Debug("periodic task not started")
		return
	}
	g.names = append(g.names, name)

	g.wg.Add(1)
	go g.loop(name, interval, fn)
}

func (g *Group) loop(name string, interval time.Duration, fn Task) {
	defer g.wg.Done()

	log := g.log.WithFields(logrus.Fields{"task": name, "interval": interval.String()})
	log.Debug("periodic task started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.ctx.Done():
			log.Debug("periodic task stopped")
			return
		case <-ticker.C:
			g.run(log, fn)
		}
	}
}

// run isolates a panicking task so the other loops keep going.
func (g *Group) run(log logrus.FieldLogger, fn Task) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("periodic task panicked")
		}
	}()
	fn(g.ctx)
}

// Tasks returns the names of the started tasks.
func (g *Group) Tasks() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.names...)
}

// Stop cancels every task and waits for the loops to exit. It is safe to call twice.
func (g *Group) Stop() {
	g.mu.Lock()
	g.stopped = true
	g.mu.Unlock()

	g.cancel()
	g.wg.Wait()
}
