package game

import (
	"sync"
	"time"
)

// countdown is the client-local writing timer: one tick per second,
// one expiry. Stop is idempotent and wins any race with a pending
// tick, so a stale timer can never fire an auto-submit after the
// session has moved on.
type countdown struct {
	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

func startCountdown(seconds int, onTick func(left int), onExpire func()) *countdown {
	c := &countdown{done: make(chan struct{})}
	go c.run(seconds, onTick, onExpire)
	return c
}

func (c *countdown) run(seconds int, onTick func(left int), onExpire func()) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	left := seconds
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			left--
			if left > 0 {
				if !c.isStopped() && onTick != nil {
					onTick(left)
				}
				continue
			}
			// Expiry only fires if nobody stopped us first.
			c.mu.Lock()
			expired := !c.stopped
			c.stopped = true
			c.mu.Unlock()
			if expired && onExpire != nil {
				onExpire()
			}
			return
		}
	}
}

func (c *countdown) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *countdown) Stop() {
	c.mu.Lock()
	already := c.stopped
	c.stopped = true
	c.mu.Unlock()
	if !already {
		close(c.done)
	}
}
