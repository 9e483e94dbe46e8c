package main

import (
	"cityreport/audit"
	"cityreport/config"
	"cityreport/metrics"
	"cityreport/store"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// newAuditor fans security events out to the local trail, the process log and,
// when configured, a redis channel (the default one if unset) and the remote side.
func newAuditor(s *store.LocalStore, rc *redis.Client, link *remoteLink, cfg *config.Config, m *metrics.Metrics, log logrus.FieldLogger) (*audit.Auditor, *audit.LocalSink) {
	local := audit.NewLocalSink(s)

	opts := []audit.Option{
		audit.WithSink(local),
		audit.WithSink(audit.NewLogSink(log)),
		audit.WithMetrics(m),
		audit.WithLogger(log),
	}
	if rc != nil {
		opts = append(opts, audit.WithSink(audit.NewRedisPublisher(rc, cfg.Redis.Channel)))
	}
	if link.sink != nil {
		opts = append(opts, audit.WithSink(link.sink))
	}

	return audit.New(opts...), local
}
