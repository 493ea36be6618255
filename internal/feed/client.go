package feed

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client connects a process to the relay. Local store writes are
// forwarded up with Publish; remote events are republished into the
// local broker, so engines consume a single event source. The
// connection is best-effort by contract: if it dies the client goes
// quiet and the reconciliation poller carries the session.
type Client struct {
	log     *zap.SugaredLogger
	broker  *Broker
	conn    *websocket.Conn
	writeMu sync.Mutex
	closed  chan struct{}
	once    sync.Once
}

// Dial connects to the relay websocket endpoint, e.g.
// ws://localhost:8080/ws/feed.
func Dial(url string, broker *Broker, log *zap.SugaredLogger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		log:    log,
		broker: broker,
		conn:   conn,
		closed: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Subscribe asks the relay to forward changes on table filtered by key.
func (c *Client) Subscribe(table, key string) {
	c.write(frame{Type: frameSubscribe, Table: table, Key: key})
}

// Publish forwards a locally produced event to the relay.
func (c *Client) Publish(ev Event) {
	c.write(frame{Type: framePublish, Event: &ev})
}

func (c *Client) write(f frame) {
	select {
	case <-c.closed:
		return
	default:
	}
	c.writeMu.Lock()
	err := c.conn.WriteJSON(f)
	c.writeMu.Unlock()
	if err != nil {
		c.log.Infow("feed write failed", "error", err)
	}
}

func (c *Client) readLoop() {
	for {
		var f frame
		if err := c.conn.ReadJSON(&f); err != nil {
			select {
			case <-c.closed:
			default:
				c.log.Infow("feed connection lost", "error", err)
			}
			return
		}
		if f.Type == frameEvent && f.Event != nil {
			c.broker.Publish(*f.Event)
		}
	}
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}
