package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"fileops.io/notifyd/internal/pkg/logger"
)

// Start starts the background services: River workers and the platform
// event consumer.
func (a *Application) Start(ctx context.Context) error {
	if a.DB != nil && a.DB.RiverClient != nil {
		if err := a.DB.RiverClient.Start(ctx); err != nil {
			return fmt.Errorf("start river client: %w", err)
		}
		logger.Info("river client started, sweep jobs scheduled")
	}
	if a.Consumer != nil {
		if err := a.Consumer.Start(); err != nil {
			return fmt.Errorf("start event consumer: %w", err)
		}
		logger.Info("platform event consumer started",
			zap.String("exchange", a.Config.Events.Exchange),
			zap.String("queue", a.Config.Events.Queue),
		)
	}
	return nil
}

// Shutdown gracefully shuts down all application components in reverse
// dependency order.
func (a *Application) Shutdown() {
	shutdownCtx := context.Background()

	if a.Consumer != nil {
		if err := a.Consumer.Close(); err != nil {
			logger.Warn("event consumer close returned error", zap.Error(err))
		}
	}

	if a.DB != nil && a.DB.RiverClient != nil {
		if err := a.DB.RiverClient.Stop(shutdownCtx); err != nil {
			logger.Error("failed to stop river client", zap.Error(err))
		}
	}

	if a.Pools != nil {
		a.Pools.Shutdown()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
