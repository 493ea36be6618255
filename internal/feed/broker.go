package feed

import "sync"

const subscriptionBuffer = 16

// Broker is an in-process change-event hub. Subscriptions filter by
// table, actions, and the session key. A subscriber that falls behind
// has events dropped rather than blocking the publisher.
type Broker struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

type Subscription struct {
	broker  *Broker
	table   string
	key     string
	actions map[string]struct{}
	ch      chan Event
	once    sync.Once
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[*Subscription]struct{}),
	}
}

// Subscribe registers for changes on table filtered by key. An empty
// key matches every row; no actions means all actions.
func (b *Broker) Subscribe(table, key string, actions ...string) *Subscription {
	sub := &Subscription{
		broker: b,
		table:  table,
		key:    key,
		ch:     make(chan Event, subscriptionBuffer),
	}
	if len(actions) > 0 {
		sub.actions = make(map[string]struct{}, len(actions))
		for _, action := range actions {
			sub.actions[action] = struct{}{}
		}
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Publish delivers ev to every matching subscription. The send happens
// under the broker lock so it cannot race a concurrent Close into a
// closed channel; the send is non-blocking, so holding the lock is
// cheap.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if !sub.matches(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

func (s *Subscription) matches(ev Event) bool {
	if s.table != "" && s.table != ev.Table {
		return false
	}
	if s.key != "" && s.key != ev.Key {
		return false
	}
	if s.actions != nil {
		if _, ok := s.actions[ev.Action]; !ok {
			return false
		}
	}
	return true
}

// Events returns the delivery channel. It is closed when the
// subscription is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close unregisters the subscription and ends its stream. Removal and
// the channel close share the broker lock with Publish, so in-flight
// publishes finish before the channel goes away.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s)
		close(s.ch)
		s.broker.mu.Unlock()
	})
}
