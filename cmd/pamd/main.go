package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/p-blackswan/pam-core/internal/audit"
	"github.com/p-blackswan/pam-core/internal/config"
	"github.com/p-blackswan/pam-core/internal/health"
	"github.com/p-blackswan/pam-core/internal/metrics"
	"github.com/p-blackswan/pam-core/internal/notify"
	"github.com/p-blackswan/pam-core/internal/pam"
	"github.com/p-blackswan/pam-core/internal/server"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Bool("break_glass", cfg.BreakGlassEnabled).
		Bool("slack_notify", cfg.SlackEnabled()).
		Msg("starting PAM service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Role catalog
	catalog := pam.NewCatalog(logger)
	roles := config.DefaultRoles()
	if cfg.RoleCatalogPath != "" {
		roles, err = config.LoadRoles(cfg.RoleCatalogPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.RoleCatalogPath).Msg("failed to load role catalog")
		}
	}
	for _, role := range roles {
		if err := catalog.Register(role); err != nil {
			logger.Fatal().Err(err).Str("role_id", role.ID).Msg("invalid role definition")
		}
	}

	met := metrics.New()

	// Audit pipeline
	sink := audit.NewMemorySink(cfg.AuditRetention, logger)
	recorder := audit.NewRecorder(sink, cfg.AuditQueueSize, logger)
	recorder.OnDrop(met.AuditDroppedTotal.Inc)
	recorder.Start()
	defer recorder.Close()

	// Approval notifier
	var notifier pam.ApprovalNotifier = notify.NewLogNotifier(logger)
	if cfg.SlackEnabled() {
		notifier = notify.NewMultiNotifier(
			notify.NewLogNotifier(logger),
			notify.NewSlackNotifier(cfg.SlackBotToken, cfg.ApprovalsChannel, logger),
		)
		logger.Info().Str("channel", cfg.ApprovalsChannel).Msg("Slack approval notifications enabled")
	}

	mgr := pam.NewManager(cfg.PAMConfig(), catalog, notifier, recorder, met, logger)
	mgr.Start(ctx)
	defer mgr.Stop()

	checker := health.NewChecker(logger)
	checker.Register("audit_queue", func(ctx context.Context) health.Status {
		// Degrade when the queue is backed up; delivery is lossy past capacity.
		if recorder.QueueDepth() >= cfg.AuditQueueSize {
			return health.StatusDegraded
		}
		return health.StatusOK
	})

	srv := server.New(server.Config{
		ListenAddr: cfg.ListenAddr,
		Auth: server.AuthConfig{
			Mode:      cfg.AuthMode,
			APIKey:    cfg.APIKey,
			JWTSecret: cfg.JWTSecret,
		},
	}, mgr, sink, checker, met, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen()
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server error")
		}
	}

	if err := srv.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("PAM service stopped")
}
