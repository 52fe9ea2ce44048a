// Package main seeds demo data for local development.
//
// The server needs no seeding to run; this exists so a fresh database has a
// few notifications and a preference record to poke at.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fileops.io/notifyd/internal/config"
	"fileops.io/notifyd/internal/core"
	"fileops.io/notifyd/internal/infrastructure"
	"fileops.io/notifyd/internal/pkg/logger"
	"fileops.io/notifyd/internal/store"
	"fileops.io/notifyd/internal/store/postgres"
)

const demoUser = "demo-user"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.InMemory {
		return fmt.Errorf("seeding requires a postgres database")
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	stores := postgres.New(db.Pool)

	if err := seedPreferences(ctx, stores); err != nil {
		return err
	}
	if err := seedNotifications(ctx, stores); err != nil {
		return err
	}

	logger.Info("seeding complete", zap.String("user", demoUser))
	return nil
}

// seedPreferences writes a preference record with quiet hours enabled, the
// shape a real user ends up with after touching the settings page.
func seedPreferences(ctx context.Context, stores *store.Stores) error {
	if _, err := stores.Preferences.Get(ctx, demoUser); err == nil {
		logger.Info("preferences already seeded, skipping")
		return nil
	}

	prefs := core.DefaultPreferences(demoUser)
	prefs.Channels[core.ChannelEmail] = core.ChannelPreference{
		Enabled: true,
		Address: "demo@fileops.io",
	}
	prefs.Quiet = &core.QuietHours{
		Enabled:             true,
		Start:               "22:00",
		End:                 "07:00",
		Timezone:            "UTC",
		AllowUrgentOverride: true,
	}
	if err := stores.Preferences.Put(ctx, prefs); err != nil {
		return fmt.Errorf("seed preferences: %w", err)
	}
	return nil
}

func seedNotifications(ctx context.Context, stores *store.Stores) error {
	samples := []struct {
		typ      core.Type
		priority core.Priority
		title    string
		message  string
	}{
		{core.TypeFileUploaded, core.PriorityLow, "report.pdf uploaded", "Your upload finished."},
		{core.TypeFileShared, core.PriorityMedium, "quarterly.xlsx shared with you", "alice shared a file with you."},
		{core.TypeSecurityAlert, core.PriorityUrgent, "New sign-in from unknown device", "Review recent account activity."},
	}

	now := time.Now().UTC()
	for i, s := range samples {
		id, _ := uuid.NewV7()
		n := &core.Notification{
			ID:        id.String(),
			UserID:    demoUser,
			Type:      s.typ,
			Title:     s.title,
			Message:   s.message,
			Priority:  s.priority,
			Channels:  []core.Channel{core.ChannelInApp},
			CreatedAt: now.Add(time.Duration(-i) * time.Hour),
			UpdatedAt: now.Add(time.Duration(-i) * time.Hour),
		}
		if err := stores.Notifications.Create(ctx, n); err != nil {
			return fmt.Errorf("seed notification %q: %w", s.title, err)
		}
	}
	logger.Info("seeded notifications", zap.Int("count", len(samples)))
	return nil
}
