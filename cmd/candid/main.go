package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"candid-decisions/internal/config"
	"candid-decisions/internal/db"
	"candid-decisions/internal/dice"
	"candid-decisions/internal/feed"
	"candid-decisions/internal/game"
	"candid-decisions/internal/store"

	"go.uber.org/zap"
)

type app struct {
	cfg    config.Config
	store  *store.Store
	broker *feed.Broker
	remote game.RemoteFeed
	log    *zap.SugaredLogger
	in     *bufio.Scanner
}

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	conn, err := db.Open(cfg.DatabaseURL, db.Pool{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetimeSeconds) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTimeSeconds) * time.Second,
	})
	if err != nil {
		sugar.Fatalw("database connection failed", "error", err)
	}
	if err := db.Migrate(conn); err != nil {
		sugar.Fatalw("database migration failed", "error", err)
	}

	broker := feed.NewBroker()
	var pub feed.Publisher = broker
	var remote game.RemoteFeed
	if cfg.RelayURL != "" {
		client, err := feed.Dial(cfg.RelayURL, broker, sugar)
		if err != nil {
			// The feed is best-effort anyway; polling alone still
			// converges, just slower.
			sugar.Infow("relay unreachable, continuing with polling only", "error", err)
		} else {
			defer client.Close()
			pub = feed.MultiPublisher(broker, client)
			remote = client
		}
	}

	a := &app{
		cfg:    cfg,
		store:  store.New(conn, pub, sugar),
		broker: broker,
		remote: remote,
		log:    sugar,
		in:     bufio.NewScanner(os.Stdin),
	}
	a.run()
}

func (a *app) run() {
	for {
		fmt.Println()
		fmt.Println("Candid Decisions")
		fmt.Println("  1) Roll the dice")
		fmt.Println("  2) Rock-Paper-Scissors: create game")
		fmt.Println("  3) Rock-Paper-Scissors: join game")
		fmt.Println("  4) The Verdict: create session")
		fmt.Println("  5) The Verdict: join session")
		fmt.Println("  q) Quit")
		switch a.prompt("Choose") {
		case "1":
			fmt.Printf("You rolled a %d!\n", dice.Roll(dice.DefaultSides))
		case "2":
			a.runRPS(true)
		case "3":
			a.runRPS(false)
		case "4":
			a.runVerdict(true)
		case "5":
			a.runVerdict(false)
		case "q", "quit", "exit":
			return
		}
	}
}

func (a *app) prompt(label string) string {
	fmt.Printf("%s: ", label)
	if !a.in.Scan() {
		return ""
	}
	return strings.TrimSpace(a.in.Text())
}

func (a *app) deps() game.Deps {
	return game.Deps{
		Store:        a.store,
		Broker:       a.broker,
		Remote:       a.remote,
		PollInterval: time.Duration(a.cfg.PollIntervalSeconds) * time.Second,
		Log:          a.log,
	}
}
