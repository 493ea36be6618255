package game

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"candid-decisions/internal/db"
	"candid-decisions/internal/feed"
	"candid-decisions/internal/store"
)

// RPSEngine drives one client through a Rock-Paper-Scissors duel. Both
// the change-feed subscription and the reconciliation poller deliver
// fresh match rows into Apply, the single transition function; the
// stage guard makes duplicate deliveries harmless.
type RPSEngine struct {
	deps   Deps
	events Events

	mu      sync.Mutex
	stage   Stage
	role    string
	matchID string
	match   *db.Match
	moved   bool
	sub     *feed.Subscription
	poll    *poller
}

func NewRPS(deps Deps, events Events) *RPSEngine {
	return &RPSEngine{
		deps:   deps,
		events: events,
		stage:  StageMenu,
	}
}

func (e *RPSEngine) Stage() Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stage
}

func (e *RPSEngine) Match() *db.Match {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.match
}

// Create hosts a new match and moves the client to waiting.
func (e *RPSEngine) Create(ctx context.Context, name, food string) (*db.Match, error) {
	e.mu.Lock()
	if e.matchID != "" {
		e.mu.Unlock()
		return nil, errors.New("already in a match")
	}
	e.mu.Unlock()

	match, err := e.deps.Store.CreateMatch(ctx, name, food)
	if err != nil {
		fire([]func(){e.events.alert("Error", "Could not create game.")})
		return nil, err
	}

	e.mu.Lock()
	e.role = store.RoleHost
	e.matchID = match.ID
	e.match = match
	e.stage = StageWaiting
	e.listenLocked()
	e.mu.Unlock()

	e.deps.Log.Infow("rps hosting", "match_id", match.ID)
	fire([]func(){e.events.stage(StageWaiting), e.events.match(*match)})
	return match, nil
}

// Join takes the guest seat. The code is case-insensitive; a missing
// or already-full match is surfaced before any state mutation.
func (e *RPSEngine) Join(ctx context.Context, code, name, food string) (*db.Match, error) {
	e.mu.Lock()
	if e.matchID != "" {
		e.mu.Unlock()
		return nil, errors.New("already in a match")
	}
	e.mu.Unlock()

	match, err := e.deps.Store.JoinMatch(ctx, code, name, food)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			fire([]func(){e.events.alert("Not Found", "Game not found.")})
		case errors.Is(err, store.ErrMatchFull):
			fire([]func(){e.events.alert("Full", "Game is already in progress.")})
		default:
			fire([]func(){e.events.alert("Error", "Could not join.")})
		}
		return nil, err
	}

	e.mu.Lock()
	e.role = store.RoleGuest
	e.matchID = match.ID
	e.match = match
	e.stage = StagePlaying
	e.listenLocked()
	e.mu.Unlock()

	e.deps.Log.Infow("rps joined", "match_id", match.ID)
	fire([]func(){e.events.stage(StagePlaying), e.events.match(*match)})
	return match, nil
}

// SubmitMove records this player's hand. Once a move is in flight the
// call is a no-op, so a double tap cannot double-submit.
func (e *RPSEngine) SubmitMove(ctx context.Context, move Move) error {
	if !ValidMove(move) {
		return errors.New("invalid move")
	}
	e.mu.Lock()
	if e.stage != StagePlaying || e.moved {
		e.mu.Unlock()
		return nil
	}
	e.moved = true
	id, role := e.matchID, e.role
	e.mu.Unlock()

	match, err := e.deps.Store.SetMove(ctx, id, role, string(move))
	if err != nil {
		e.mu.Lock()
		e.moved = false
		e.mu.Unlock()
		fire([]func(){e.events.alert("Error", "Could not submit move.")})
		return err
	}
	e.Apply(match)
	return nil
}

// Apply is the transition function. Feed callbacks and poller cycles
// both land here with a freshly read row; every stage change is
// guarded on the current client-local stage, so applying the same row
// N times mutates state and fires side effects exactly once.
func (e *RPSEngine) Apply(match *db.Match) {
	if match == nil {
		return
	}
	e.mu.Lock()
	if e.matchID == "" || match.ID != e.matchID || e.stage == StageRevealed || e.stage == StageMenu {
		e.mu.Unlock()
		return
	}

	var effects []func()
	e.match = match
	effects = append(effects, e.events.match(*match))

	if e.role == store.RoleHost && match.Status == db.MatchStatusPlaying && e.stage == StageWaiting {
		e.stage = StagePlaying
		effects = append(effects, e.events.stage(StagePlaying))
		e.deps.Log.Infow("rps guest joined", "match_id", match.ID, "guest", deref(match.GuestName))
	}

	if match.HostMove != nil && match.GuestMove != nil {
		e.stage = StageRevealed
		result := resolveMatch(match)
		effects = append(effects, e.events.stage(StageRevealed), e.events.result(result))
		e.stopListenersLocked()
		id := e.matchID
		e.mu.Unlock()
		// Terminal status is recorded store-side too; the guarded
		// update means only the first observer's write lands.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := e.deps.Store.MarkMatchRevealed(ctx, id); err != nil {
				e.deps.Log.Infow("mark revealed failed", "match_id", id, "error", err)
			}
		}()
		fire(effects)
		return
	}

	e.mu.Unlock()
	fire(effects)
}

// Leave deletes the match and returns the client to the menu. Either
// party may do this; the row may already be gone.
func (e *RPSEngine) Leave(ctx context.Context) {
	e.mu.Lock()
	id := e.matchID
	e.stopListenersLocked()
	e.resetLocked()
	e.mu.Unlock()

	if id == "" {
		return
	}
	if err := e.deps.Store.DeleteMatch(ctx, id); err != nil {
		e.deps.Log.Infow("match cleanup failed", "match_id", id, "error", err)
	}
}

// Close tears down listeners without touching the store.
func (e *RPSEngine) Close() {
	e.mu.Lock()
	e.stopListenersLocked()
	e.mu.Unlock()
}

func (e *RPSEngine) listenLocked() {
	sub := e.deps.Broker.Subscribe(feed.TableMatches, e.matchID)
	e.sub = sub
	go e.consume(sub)
	if e.deps.Remote != nil {
		e.deps.Remote.Subscribe(feed.TableMatches, e.matchID)
	}
	e.poll = startPoller(e.deps.pollInterval(), e.refresh)
}

func (e *RPSEngine) consume(sub *feed.Subscription) {
	for ev := range sub.Events() {
		if ev.Action == feed.ActionDelete {
			e.sessionVanished()
			continue
		}
		var match db.Match
		if len(ev.Payload) == 0 || json.Unmarshal(ev.Payload, &match) != nil {
			e.refresh()
			continue
		}
		e.Apply(&match)
	}
}

// refresh is the poller cycle: re-read the authoritative row and run
// it through the same transition function as the feed.
func (e *RPSEngine) refresh() {
	e.mu.Lock()
	id, stage := e.matchID, e.stage
	e.mu.Unlock()
	if id == "" || (stage != StageWaiting && stage != StagePlaying) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	match, err := e.deps.Store.GetMatch(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		e.sessionVanished()
		return
	}
	if err != nil {
		// Transient failure: the next cycle retries.
		return
	}
	e.Apply(match)
}

func (e *RPSEngine) sessionVanished() {
	e.mu.Lock()
	if e.matchID == "" || e.stage == StageRevealed || e.stage == StageMenu {
		e.mu.Unlock()
		return
	}
	id := e.matchID
	e.stopListenersLocked()
	e.resetLocked()
	e.mu.Unlock()

	e.deps.Log.Infow("rps match vanished", "match_id", id)
	fire([]func(){
		e.events.alert("Session Ended", "The host has cancelled the session."),
		e.events.stage(StageMenu),
	})
}

func (e *RPSEngine) stopListenersLocked() {
	if e.sub != nil {
		e.sub.Close()
		e.sub = nil
	}
	if e.poll != nil {
		e.poll.Stop()
		e.poll = nil
	}
}

func (e *RPSEngine) resetLocked() {
	e.stage = StageMenu
	e.role = ""
	e.matchID = ""
	e.match = nil
	e.moved = false
}

func resolveMatch(match *db.Match) MatchResult {
	outcome := Winner(Move(deref(match.HostMove)), Move(deref(match.GuestMove)))
	result := MatchResult{Outcome: outcome}
	switch outcome {
	case OutcomeHost:
		result.WinnerName = match.HostName
		result.Food = match.HostFood
	case OutcomeGuest:
		result.WinnerName = deref(match.GuestName)
		result.Food = deref(match.GuestFood)
	}
	return result
}
