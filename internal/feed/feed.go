package feed

import "encoding/json"

const (
	ActionInsert = "insert"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

const (
	TableMatches  = "matches"
	TableSessions = "verdict_sessions"
	TablePlayers  = "verdict_players"
)

// Event describes one row change. Key is the match or session id the
// row belongs to, so subscribers can filter on their own session.
type Event struct {
	Table   string          `json:"table"`
	Action  string          `json:"action"`
	Key     string          `json:"key"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Publisher accepts change events. Delivery is best-effort: a publish
// may be dropped or arrive out of order, and callers must not rely on
// it for correctness.
type Publisher interface {
	Publish(ev Event)
}

type multiPublisher []Publisher

func (m multiPublisher) Publish(ev Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ev)
		}
	}
}

// MultiPublisher fans a publish out to every given publisher.
func MultiPublisher(pubs ...Publisher) Publisher {
	return multiPublisher(pubs)
}
