// Package livehook forwards stream up/down push notifications from a WebSub
// hub to chat channels and keeps the underlying hub subscriptions alive.
//
// Chat servers register interest in a streamer; livehook subscribes to the
// streamer's topic at the hub, receives notifications on a public callback,
// resolves every server watching that streamer to its bound channel and
// delivers one rendered message per channel. Leases granted by the hub are
// renewed by a periodic scan before they lapse.
//
// Works both as a library embedded in your own process and as the standalone
// livehook server (cmd/livehook) with a Discord bot front end.
//
// # Quick Start
//
// Apply the database migrations once:
//
//	if err := relica.Migrate("sqlite3", "livehook.db", logger); err != nil {
//	    log.Fatal(err)
//	}
//
// Wire the services:
//
//	repos := relica.NewRepositories(db, "sqlite3")
//
//	manager, _ := livehook.NewLeaseManager(
//	    livehook.WithLeaseManagerRepositories(repos.Subscriber, repos.Lease, repos.Binding, repos.Store),
//	    livehook.WithLeaseManagerHub(hubClient),
//	    livehook.WithLeaseManagerCallbackBase("https://hooks.example.com"),
//	    livehook.WithLeaseManagerLogger(logger),
//	)
//
//	router, _ := livehook.NewNotificationRouter(
//	    livehook.WithRouterRepositories(repos.Subscriber, repos.Binding),
//	    livehook.WithRouterCatalog(catalog),
//	    livehook.WithRouterLogger(logger),
//	)
//
//	scheduler, _ := livehook.NewRenewalScheduler(
//	    livehook.WithSchedulerLeases(repos.Lease),
//	    livehook.WithSchedulerRenewer(manager),
//	    livehook.WithSchedulerLogger(logger),
//	)
//	go scheduler.Run(ctx, time.Hour)
//
// Subscribe a streamer on behalf of a server and bind its channel:
//
//	_, err := manager.Subscribe(ctx, livehook.SubscribeRequest{
//	    ExternalUserID: "1001",
//	    DisplayName:    "alice",
//	    ServerID:       "S1",
//	    LeaseSeconds:   864000,
//	})
//	_, err = manager.BindChannel(ctx, "S1", "C1")
//
// Route a notification posted to /webhook/1001:
//
//	results, err := router.Dispatch(ctx, sender, "1001", notification)
//
// # Renewals
//
// RenewalScheduler.RunOnce performs a single scan: every expired lease is
// renewed at the hub. Embedding programs call Run in a goroutine to scan on
// a fixed interval until their context ends, as in the Quick Start above and
// examples/basic. The livehook server instead schedules RunOnce with cron,
// skipping a scan while the previous one is still running.
//
// # Leases
//
// One lease exists per hub subject (streamer) no matter how many servers
// watch it. A lease is expired once now >= issued_at + lease_seconds.
// Unsubscribing removes local state first and only asks the hub to drop the
// subject when the last watching server goes; an upstream failure at that
// point is logged, not rolled back.
//
// # Database Schema
//
// Three tables are created by the embedded migrations:
//
//	livehook_subscriber       - (external user, server) pairs with display names
//	livehook_channel_binding  - one notification channel per server
//	livehook_lease            - hub leases keyed by subject
//
// MySQL, PostgreSQL and SQLite are supported via the relica adapter; the
// memory adapter serves tests and local runs.
package livehook
