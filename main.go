// main.go
// CityReport API - local-first persistence and admin sessions for citizen reports

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cityreport/auth"
	"cityreport/config"
	"cityreport/handlers"
	"cityreport/logging"
	"cityreport/metrics"
	"cityreport/middleware"
	"cityreport/models"
	"cityreport/poller"
	"cityreport/repository"
	"cityreport/seed"
	"cityreport/session"
	"cityreport/syncagent"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const serviceName = "cityreport"

var rootCmd = &cobra.Command{
	Use:   serviceName,
	Short: "CityReport API server",
	Long: `Local-first store for citizen reports, public alerts and emergency contacts,
with administrator sessions and best-effort sync to a remote service.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background tasks",
	RunE:  runServe,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill empty collections with sample data and the default admin accounts",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(serveCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *logrus.Entry, error) {
	cfg := config.Load()
	log := logging.New(serviceName, cfg.Logging.Level, cfg.Logging.Format)
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, log, nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	s, rc, err := openStore(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	if rc != nil {
		defer rc.Close()
	}

	seeder := &seed.Seeder{
		Reports:  repository.NewReportRepository(s, nil, repository.WithLogger(log)),
		Alerts:   repository.NewAlertRepository(s, repository.WithLogger(log)),
		Contacts: repository.NewContactRepository(s, repository.WithLogger(log)),
		Accounts: repository.NewAccountRepository(s, repository.WithLogger(log)),
		Hasher:   auth.NewHasher(cfg.Auth.BcryptCost),
		Log:      log,
	}
	if err := seeder.Run(); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	log.Info("database seeding completed")
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"storage":     cfg.Storage.Backend,
		"remote":      cfg.Remote.Mode,
	}).Info("starting CityReport API server")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, rc, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if rc != nil {
		defer rc.Close()
	}

	link, err := openRemote(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer link.Close()

	m := metrics.New()

	auditor, local := newAuditor(s, rc, link, cfg, m, log)
	defer auditor.Wait()

	// Sync agent, with the durable outbox when enabled
	agentOpts := []syncagent.Option{
		syncagent.WithTimeout(cfg.Remote.Timeout),
		syncagent.WithRateLimit(cfg.Sync.PushRate, cfg.Sync.PushBurst),
		syncagent.WithMetrics(m),
		syncagent.WithLogger(log),
	}
	var outbox *syncagent.Outbox
	if cfg.Sync.OutboxEnabled && link.pusher != nil {
		outbox = syncagent.NewOutbox(s, link.pusher, cfg.Sync.MaxElapsedTime, m, log)
		agentOpts = append(agentOpts, syncagent.WithOutbox(outbox))
	}
	agent := syncagent.NewAgent(link.pusher, agentOpts...)
	defer agent.Wait()

	reports := repository.NewReportRepository(s, agent, repository.WithLogger(log))
	alerts := repository.NewAlertRepository(s, repository.WithLogger(log))
	contacts := repository.NewContactRepository(s, repository.WithLogger(log))
	accounts := repository.NewAccountRepository(s, repository.WithLogger(log))
	hasher := auth.NewHasher(cfg.Auth.BcryptCost)

	if cfg.Seed {
		seeder := &seed.Seeder{
			Reports:  reports,
			Alerts:   alerts,
			Contacts: contacts,
			Accounts: accounts,
			Hasher:   hasher,
			Log:      log,
		}
		if err := seeder.Run(); err != nil {
			return fmt.Errorf("seeding failed: %w", err)
		}
	}

	sessions := session.NewManager(s,
		session.WithAuditor(auditor),
		session.WithTTL(cfg.Session.AbsoluteTTL, cfg.Session.InactivityTTL),
		session.WithMetrics(m),
		session.WithLogger(log),
	)

	gatewayOpts := []auth.GatewayOption{
		auth.WithAuditor(auditor),
		auth.WithLockout(cfg.Auth.MaxLoginAttempts, cfg.Auth.LockoutDuration),
		auth.WithMetrics(m),
		auth.WithLogger(log),
	}
	if link.mirror != nil {
		gatewayOpts = append(gatewayOpts, auth.WithMirror(link.mirror))
	}
	gateway := auth.NewGateway(accounts, sessions, hasher, gatewayOpts...)
	defer gateway.Wait()

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	log.WithFields(logrus.Fields{
		"requests": cfg.RateLimit.Requests,
		"window":   cfg.RateLimit.Window.String(),
	}).Info("rate limiter initialized")

	// Background tasks
	tasks := poller.New(ctx, log)
	tasks.Every("session-reaper", cfg.Session.ReaperInterval, func(context.Context) {
		sessions.Reap()
	})
	if outbox != nil {
		tasks.Every("outbox-flush", cfg.Sync.FlushInterval, func(ctx context.Context) {
			outbox.Flush(ctx)
		})
	}
	tasks.Every("report-gauges", cfg.Sync.GaugeRefresh, func(context.Context) {
		refreshGauges(m, reports, alerts)
	})
	tasks.Every("rate-limit-cleanup", time.Hour, func(context.Context) {
		limiter.Cleanup(time.Hour)
	})
	defer tasks.Stop()

	router := handlers.NewRouter(handlers.Deps{
		Gateway:        gateway,
		Sessions:       sessions,
		Issuer:         auth.NewTokenIssuer(cfg.JWT.Secret),
		Hasher:         hasher,
		Reports:        reports,
		Alerts:         alerts,
		Contacts:       contacts,
		Accounts:       accounts,
		Events:         local,
		Limiter:        limiter,
		Metrics:        m,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Log:            log,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", server.Addr).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

// refreshGauges publishes the report and alert gauges.
func refreshGauges(m *metrics.Metrics, reports *repository.ReportRepository, alerts *repository.AlertRepository) {
	counts := map[string]int{}
	for _, status := range []models.ReportStatus{models.StatusNew, models.StatusInProgress, models.StatusResolved} {
		counts[string(status)] = 0
	}
	for status, n := range reports.CountByStatus() {
		counts[string(status)] = n
	}
	m.Reports(counts)
	m.Alerts(len(alerts.GetActive()))
}
