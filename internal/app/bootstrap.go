// Package app is the composition root. Bootstrap stays orchestration-only:
// it wires the services together and owns nothing else.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"

	"fileops.io/notifyd/internal/api/handlers"
	"fileops.io/notifyd/internal/channel"
	"fileops.io/notifyd/internal/config"
	"fileops.io/notifyd/internal/eventbridge"
	"fileops.io/notifyd/internal/events"
	"fileops.io/notifyd/internal/infrastructure"
	"fileops.io/notifyd/internal/jobs"
	"fileops.io/notifyd/internal/orchestrator"
	"fileops.io/notifyd/internal/pkg/worker"
	"fileops.io/notifyd/internal/preference"
	"fileops.io/notifyd/internal/realtime"
	"fileops.io/notifyd/internal/store"
	"fileops.io/notifyd/internal/store/memory"
	"fileops.io/notifyd/internal/store/postgres"
	"fileops.io/notifyd/internal/template"
	"fileops.io/notifyd/internal/tracking"
	"fileops.io/notifyd/internal/webhook"
)

// Application holds composed application dependencies.
type Application struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *infrastructure.DatabaseClients
	Pools    *worker.Pools
	Consumer *eventbridge.Consumer
	Gateway  *realtime.Gateway
}

// Bootstrap initializes all dependencies using manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	var (
		db     *infrastructure.DatabaseClients
		stores *store.Stores
	)
	if cfg.Database.InMemory {
		stores = memory.New()
	} else {
		var err error
		db, err = infrastructure.NewDatabaseClients(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := db.AutoMigrate(ctx); err != nil {
				db.Close()
				return nil, fmt.Errorf("auto-migrate: %w", err)
			}
		}
		stores = postgres.New(db.Pool)
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize:  cfg.Worker.GeneralPoolSize,
		DeliveryPoolSize: cfg.Worker.DeliveryPoolSize,
	})
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	gateway := realtime.NewGateway(realtime.NewRegistry())
	resolver := preference.NewResolver(stores.Preferences)
	webhookSvc := webhook.NewService(stores.Webhooks, nil)

	retry := channel.RetryPolicy{
		MaxAttempts: cfg.Delivery.MaxAttempts,
		Base:        cfg.Delivery.BackoffBase,
	}

	adapters := channel.NewRegistry(
		channel.NewInAppAdapter(gateway),
		channel.NewEmailAdapter(&channel.SMTPMailer{
			Addr:     cfg.SMTP.Addr,
			From:     cfg.SMTP.From,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			Host:     cfg.SMTP.Host(),
		}),
		// The webhook adapter retries each registration itself, so it takes
		// the policy directly.
		channel.NewWebhookAdapter(webhookSvc, nil, pools.Delivery).WithRetry(retry),
	)

	bus := events.NewBus()

	// Read-state changes ride the bus so every open tab of the user stays in
	// sync; created notifications reach the gateway through the in-app
	// adapter instead.
	bus.Subscribe(events.KindIs(events.KindRead), func(ctx context.Context, ev events.Event) {
		gateway.PushEvent(ctx, ev.Notification.UserID, "notification.read", ev.Notification)
	})

	templates := template.NewRegistry()
	orch := orchestrator.New(stores, resolver, templates, adapters, retry, bus)

	if db != nil {
		if err := initRiver(db, cfg, stores, orch); err != nil {
			pools.Shutdown()
			db.Close()
			return nil, err
		}
	}

	var consumer *eventbridge.Consumer
	if cfg.Events.Enabled() {
		consumer, err = eventbridge.NewConsumer(eventbridge.Config{
			URL:      cfg.Events.URL,
			Exchange: cfg.Events.Exchange,
			Queue:    cfg.Events.Queue,
			Workers:  cfg.Events.Workers,
			Prefetch: cfg.Events.Prefetch,
		}, orch)
		if err != nil {
			pools.Shutdown()
			if db != nil {
				db.Close()
			}
			return nil, fmt.Errorf("init event bridge: %w", err)
		}
	}

	server := handlers.NewServer(handlers.ServerDeps{
		Orchestrator: orch,
		Preferences:  preference.NewService(stores.Preferences, resolver),
		Webhooks:     webhookSvc,
		Tracking:     tracking.NewService(stores),
		Gateway:      gateway,
		Templates:    templates,
		Pool:         poolOrNil(db),
	})

	return &Application{
		Config:   cfg,
		Router:   newRouter(cfg, server),
		DB:       db,
		Pools:    pools,
		Consumer: consumer,
		Gateway:  gateway,
	}, nil
}

// initRiver registers the sweep workers and their periodic schedules.
func initRiver(db *infrastructure.DatabaseClients, cfg *config.Config, stores *store.Stores, orch *orchestrator.Orchestrator) error {
	workers := river.NewWorkers()
	river.AddWorker(workers, jobs.NewExpirySweepWorker(stores.Notifications, cfg.Delivery.Retention))
	river.AddWorker(workers, jobs.NewRetrySweepWorker(stores.Deliveries, orch))

	periodic := []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(cfg.River.RetrySweepInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return jobs.RetrySweepArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
		river.NewPeriodicJob(
			river.PeriodicInterval(cfg.River.ExpirySweepInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return jobs.ExpirySweepArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	}

	if err := db.InitRiverClient(workers, periodic, cfg.River); err != nil {
		return fmt.Errorf("init river: %w", err)
	}
	return nil
}

func poolOrNil(db *infrastructure.DatabaseClients) *pgxpool.Pool {
	if db == nil {
		return nil
	}
	return db.Pool
}

// Serve builds the HTTP server for the composed router.
func (a *Application) Serve() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
}
