package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/coregx/livehook"
	"github.com/coregx/livehook/adapters/discord"
	"github.com/coregx/livehook/adapters/memory"
	"github.com/coregx/livehook/adapters/relica"
	"github.com/coregx/livehook/adapters/twitch"
	"github.com/coregx/livehook/adapters/zlog"
	"github.com/coregx/livehook/cmd/livehook/internal/api"
	"github.com/coregx/livehook/cmd/livehook/internal/config"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook endpoint, chat bot and renewal scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := zlog.New(cfg.Log.Level, cfg.Log.Format, cmd.OutOrStdout())
			return serve(ctx, cfg, logger)
		},
	}
}

// store groups the repositories shared by every service.
type store struct {
	Subscriber livehook.SubscriberRepository
	Binding    livehook.ChannelBindingRepository
	Lease      livehook.LeaseRepository
	Pairs      livehook.SubscriptionStore
}

// openStore connects the configured record store. The returned close func is never nil.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger livehook.Logger) (*store, func(), error) {
	if cfg.Driver == config.DriverMemory {
		logger.Warnf("Using the in-memory store: subscriptions are lost on restart")
		repos := memory.NewRepositories()
		return &store{repos.Subscriber, repos.Binding, repos.Lease, repos.Store}, func() {}, nil
	}

	if err := runMigrate(cfg, logger); err != nil {
		return nil, func() {}, err
	}

	db, err := sql.Open(cfg.Driver, cfg.GetDSN())
	if err != nil {
		return nil, func() {}, fmt.Errorf("open database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Errorf("Failed to close database: %v", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		closeDB()
		return nil, func() {}, fmt.Errorf("connect database: %w", err)
	}
	logger.Infof("Database connection established: driver=%s", cfg.Driver)

	repos := relica.NewRepositoriesWithPrefix(db, cfg.Driver, cfg.Prefix)
	return &store{repos.Subscriber, repos.Binding, repos.Lease, repos.Store}, closeDB, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *zlog.Logger) error {
	logger.Infof("Starting livehook: addr=%s, db=%s, lease_seconds=%d, renewal_interval=%s",
		cfg.Server.Addr(), cfg.Database.Driver, cfg.Twitch.LeaseSeconds, cfg.Renewal.Interval)

	st, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// The token source outlives ctx so in-flight requests can finish during shutdown.
	httpClient := twitch.NewCredentialsHTTPClient(context.WithoutCancel(ctx),
		cfg.Twitch.ClientID, cfg.Twitch.ClientSecret, cfg.Twitch.TokenURL)
	hub, err := twitch.New(cfg.Twitch.ClientID,
		twitch.WithHTTPClient(httpClient),
		twitch.WithAPIURL(cfg.Twitch.APIURL),
		twitch.WithHubURL(cfg.Twitch.HubURL),
		twitch.WithRateLimit(cfg.Twitch.RateLimit),
		twitch.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	manager, err := livehook.NewLeaseManager(
		livehook.WithLeaseManagerRepositories(st.Subscriber, st.Lease, st.Binding, st.Pairs),
		livehook.WithLeaseManagerHub(hub),
		livehook.WithLeaseManagerCallbackBase(cfg.Webhook.BaseURL),
		livehook.WithLeaseManagerSecret(cfg.Webhook.Secret),
		livehook.WithLeaseManagerHubTimeout(cfg.Twitch.HubTimeout),
		livehook.WithLeaseManagerLogger(logger),
		livehook.WithLeaseManagerObserver(livehook.NewLoggingLeaseObserver(logger)),
	)
	if err != nil {
		return err
	}

	router, err := livehook.NewNotificationRouter(
		livehook.WithRouterRepositories(st.Subscriber, st.Binding),
		livehook.WithRouterCatalog(hub),
		livehook.WithRouterLogger(logger),
	)
	if err != nil {
		return err
	}

	scheduler, err := livehook.NewRenewalScheduler(
		livehook.WithSchedulerLeases(st.Lease),
		livehook.WithSchedulerRenewer(manager),
		livehook.WithSchedulerLogger(logger),
		livehook.WithSchedulerConcurrency(cfg.Renewal.Concurrency),
	)
	if err != nil {
		return err
	}

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}
	commands, err := discord.NewCommands(manager, cfg.Twitch.LeaseSeconds, logger)
	if err != nil {
		return err
	}
	bot := discord.NewBot(session, commands, logger)
	if err := bot.Open(); err != nil {
		return err
	}
	defer func() {
		if err := bot.Close(); err != nil {
			logger.Errorf("Failed to close discord gateway: %v", err)
		}
	}()

	handler := api.NewHandler(router, discord.NewSender(session), logger,
		api.WithSecret(cfg.Webhook.Secret),
		api.WithDeliveryTimeout(cfg.Webhook.DeliveryTimeout),
	)
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Webhook.DeliveryTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	renewals, scan, err := newRenewalCron(cfg.Renewal.Interval, func() {
		if _, err := scheduler.RunOnce(gctx); err != nil {
			logger.Errorf("Renewal scan failed: %v", err)
		}
	}, cron.PrintfLogger(logger))
	if err != nil {
		return err
	}

	renewals.Start()

	// leases that expired while the process was down
	g.Go(func() error {
		scan.Run()
		return nil
	})

	g.Go(func() error {
		logger.Infof("HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		select {
		case <-renewals.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Warnf("Renewal scan still running at shutdown deadline")
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// newRenewalCron schedules scan every interval. The returned job is the same
// guarded instance the cron runs, so an extra run (the startup scan) is
// skipped while a scheduled one is in flight and the other way round.
func newRenewalCron(interval time.Duration, scan func(), logger cron.Logger) (*cron.Cron, cron.Job, error) {
	job := cron.NewChain(cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(scan))

	c := cron.New(cron.WithLogger(logger))
	if _, err := c.AddJob("@every "+interval.String(), job); err != nil {
		return nil, nil, fmt.Errorf("schedule renewals: %w", err)
	}
	return c, job, nil
}
