package game

import (
	"sync"
	"time"
)

// poller is the reconciliation backstop: a fixed-interval re-read of
// authoritative rows fed through the same transition function as the
// change feed. With a dead feed, worst-case propagation of any remote
// change is one interval plus a round trip.
type poller struct {
	stop chan struct{}
	once sync.Once
}

func startPoller(interval time.Duration, tick func()) *poller {
	p := &poller{stop: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				tick()
			}
		}
	}()
	return p
}

func (p *poller) Stop() {
	p.once.Do(func() {
		close(p.stop)
	})
}
