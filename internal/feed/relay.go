package feed

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Relay is the websocket fan-out hub run by relayd. Clients send
// subscribe frames naming a table and session key, and publish frames
// carrying events from their local store writes. Each published event
// is forwarded to every other connection with a matching filter.
type Relay struct {
	log   *zap.SugaredLogger
	mu    sync.Mutex
	conns map[*relayConn]struct{}
}

type relayConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	mu      sync.Mutex
	filters []relayFilter
}

type relayFilter struct {
	table string
	key   string
}

type frame struct {
	Type  string `json:"type"`
	Table string `json:"table,omitempty"`
	Key   string `json:"key,omitempty"`
	Event *Event `json:"event,omitempty"`
}

const (
	frameSubscribe = "subscribe"
	framePublish   = "publish"
	frameEvent     = "event"
)

func NewRelay(log *zap.SugaredLogger) *Relay {
	return &Relay{
		log:   log,
		conns: make(map[*relayConn]struct{}),
	}
}

func (r *Relay) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/feed", r.handleFeed)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (r *Relay) handleFeed(w http.ResponseWriter, req *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(req *http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	rc := &relayConn{conn: conn}
	r.mu.Lock()
	r.conns[rc] = struct{}{}
	r.mu.Unlock()
	r.log.Infow("feed connected", "remote", req.RemoteAddr)
	go r.readLoop(rc)
}

func (r *Relay) readLoop(rc *relayConn) {
	defer r.remove(rc)
	for {
		var f frame
		if err := rc.conn.ReadJSON(&f); err != nil {
			r.log.Infow("feed disconnected", "error", err)
			return
		}
		switch f.Type {
		case frameSubscribe:
			rc.mu.Lock()
			rc.filters = append(rc.filters, relayFilter{table: f.Table, key: f.Key})
			rc.mu.Unlock()
		case framePublish:
			if f.Event != nil {
				r.broadcast(rc, *f.Event)
			}
		}
	}
}

func (r *Relay) broadcast(from *relayConn, ev Event) {
	r.mu.Lock()
	conns := make([]*relayConn, 0, len(r.conns))
	for rc := range r.conns {
		conns = append(conns, rc)
	}
	r.mu.Unlock()

	out := frame{Type: frameEvent, Event: &ev}
	for _, rc := range conns {
		if rc == from || !rc.wants(ev) {
			continue
		}
		rc.writeMu.Lock()
		err := rc.conn.WriteJSON(out)
		rc.writeMu.Unlock()
		if err != nil {
			r.remove(rc)
		}
	}
}

func (rc *relayConn) wants(ev Event) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for _, f := range rc.filters {
		if f.table != "" && f.table != ev.Table {
			continue
		}
		if f.key != "" && f.key != ev.Key {
			continue
		}
		return true
	}
	return false
}

func (r *Relay) remove(rc *relayConn) {
	r.mu.Lock()
	_, ok := r.conns[rc]
	delete(r.conns, rc)
	r.mu.Unlock()
	if ok {
		_ = rc.conn.Close()
	}
}
