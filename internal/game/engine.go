package game

import (
	"time"

	"candid-decisions/internal/feed"
	"candid-decisions/internal/store"

	"go.uber.org/zap"
)

// RemoteFeed is the upstream half of the change feed: asking the relay
// to forward another session's changes into the local broker. It may
// be absent entirely, in which case the poller carries the session.
type RemoteFeed interface {
	Subscribe(table, key string)
}

// Deps are the injected collaborators shared by both engines. Nothing
// here is global: tests construct engines against an in-memory store
// and a local broker.
type Deps struct {
	Store        *store.Store
	Broker       *feed.Broker
	Remote       RemoteFeed
	PollInterval time.Duration
	Log          *zap.SugaredLogger
}

const defaultPollInterval = 3 * time.Second

func (d Deps) pollInterval() time.Duration {
	if d.PollInterval > 0 {
		return d.PollInterval
	}
	return defaultPollInterval
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
