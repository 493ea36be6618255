package game

import (
	"testing"
	"time"

	"candid-decisions/internal/db"
	"candid-decisions/internal/feed"
	"candid-decisions/internal/store"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPollInterval = 25 * time.Millisecond

func newTestStore(t *testing.T, broker *feed.Broker) *store.Store {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(conn, broker, zap.NewNop().Sugar())
}

// newTestDeps wires a store and broker the way production does: every
// store write is published on the same broker the engines subscribe to.
func newTestDeps(t *testing.T) Deps {
	t.Helper()
	broker := feed.NewBroker()
	return Deps{
		Store:        newTestStore(t, broker),
		Broker:       broker,
		PollInterval: testPollInterval,
		Log:          zap.NewNop().Sugar(),
	}
}

// newSplitDeps simulates a dead change feed: the store publishes into a
// broker nobody listens to, so only the poller can carry the session.
func newSplitDeps(t *testing.T) Deps {
	t.Helper()
	return Deps{
		Store:        newTestStore(t, feed.NewBroker()),
		Broker:       feed.NewBroker(),
		PollInterval: testPollInterval,
		Log:          zap.NewNop().Sugar(),
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func strptr(s string) *string { return &s }
