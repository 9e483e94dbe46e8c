package main

import (
	"context"
	"fmt"

	"cityreport/audit"
	"cityreport/auth"
	"cityreport/config"
	"cityreport/db"
	"cityreport/remote"
	"cityreport/store"
	"cityreport/syncagent"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// --- Local store ---

// openStore builds the LocalStore on the configured backend. The redis client is
// returned whenever redis is configured for storage or for event publishing, and
// must be closed by the caller.
func openStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*store.LocalStore, *redis.Client, error) {
	var rc *redis.Client
	if cfg.Storage.Backend == config.StorageRedis || cfg.Redis.Channel != "" {
		client, err := store.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		rc = client
		log.WithField("addr", cfg.Redis.Addr).Info("connected to redis")
	}

	var backend store.Backend
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		log.Warn("memory storage selected, data is lost on restart")
		backend = store.NewMemoryBackend()
	case config.StorageRedis:
		backend = store.NewRedisBackend(rc, cfg.Redis.KeyPrefix)
	default:
		fb, err := store.NewFileBackend(cfg.Storage.Dir)
		if err != nil {
			if rc != nil {
				rc.Close()
			}
			return nil, nil, err
		}
		log.WithField("dir", fb.Dir()).Info("file storage ready")
		backend = fb
	}

	return store.New(backend, log), rc, nil
}

// --- Remote side ---

// remoteLink bundles the roles the configured remote plays. Every field is nil
// when no remote is configured.
type remoteLink struct {
	pusher syncagent.Pusher
	sink   audit.Sink
	mirror auth.Mirror
	closer func() error
}

func (l *remoteLink) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer()
}

// openRemote connects to the remote named by REMOTE_MODE.
func openRemote(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*remoteLink, error) {
	switch cfg.Remote.Mode {
	case config.RemoteHTTP:
		client, err := remote.New(cfg.Remote.BaseURL, cfg.Remote.APIKey, remote.WithTimeout(cfg.Remote.Timeout))
		if err != nil {
			return nil, fmt.Errorf("failed to configure remote client: %w", err)
		}
		log.WithField("base_url", cfg.Remote.BaseURL).Info("remote sync enabled")
		return &remoteLink{pusher: client, sink: client, mirror: client}, nil

	case config.RemoteFirestore:
		fs, err := db.NewFirestoreDB(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsPath, log)
		if err != nil {
			return nil, err
		}
		log.WithField("project", cfg.Firebase.ProjectID).Info("firestore sync enabled")
		return &remoteLink{pusher: fs, sink: fs, closer: fs.Close}, nil

	default:
		log.Info("no remote configured, running local-only")
		return &remoteLink{}, nil
	}
}
