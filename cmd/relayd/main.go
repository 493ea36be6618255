package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"candid-decisions/internal/config"
	"candid-decisions/internal/db"
	"candid-decisions/internal/feed"
	"candid-decisions/internal/store"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if cfg.DatabaseURL != "" {
		if err := startJanitor(cfg, sugar); err != nil {
			sugar.Fatalw("janitor setup failed", "error", err)
		}
	} else {
		sugar.Infow("no database configured, janitor disabled")
	}

	relay := feed.NewRelay(sugar)
	addr := ":" + cfg.Port
	sugar.Infow("relay listening", "addr", addr)
	if err := http.ListenAndServe(addr, relay.Handler()); err != nil {
		sugar.Fatalw("relay stopped", "error", err)
	}
}

// startJanitor schedules the hourly sweep of day-old matches and
// sessions that nobody will come back for.
func startJanitor(cfg config.Config, sugar *zap.SugaredLogger) error {
	conn, err := db.Open(cfg.DatabaseURL, db.Pool{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetimeSeconds) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTimeSeconds) * time.Second,
	})
	if err != nil {
		return err
	}
	st := store.New(conn, feed.NewBroker(), sugar)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			removed, err := st.CleanupStale(ctx, time.Now().UTC().Add(-24*time.Hour))
			if err != nil {
				sugar.Infow("janitor sweep failed", "error", err)
				return
			}
			if removed > 0 {
				sugar.Infow("janitor sweep complete", "removed", removed)
			}
		}),
	)
	if err != nil {
		return err
	}
	scheduler.Start()
	return nil
}
