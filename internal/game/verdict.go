package game

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"candid-decisions/internal/db"
	"candid-decisions/internal/feed"
	"candid-decisions/internal/judge"
	"candid-decisions/internal/store"
)

const (
	submissionPlaceholder    = "No Option Provided"
	justificationPlaceholder = "No Justification"
)

// VerdictConfig carries the two fixed windows of the writing phase.
type VerdictConfig struct {
	WritingSeconds int
	GraceSeconds   int
}

func (c VerdictConfig) writing() int {
	if c.WritingSeconds > 0 {
		return c.WritingSeconds
	}
	return 60
}

func (c VerdictConfig) grace() time.Duration {
	if c.GraceSeconds > 0 {
		return time.Duration(c.GraceSeconds) * time.Second
	}
	return 5 * time.Second
}

// VerdictEngine drives one client through an AI Verdict session. The
// store is authoritative for the winner: unlike RPS, no client ever
// recomputes it, and only the host's judgment trigger writes it.
type VerdictEngine struct {
	deps   Deps
	cfg    VerdictConfig
	judge  judge.Judge
	events Events
	rng    *rand.Rand

	mu         sync.Mutex
	stage      Stage
	sessionID  string
	myPlayerID string
	isHost     bool
	session    *db.VerdictSession
	players    []db.VerdictPlayer
	clock      *countdown
	sessionSub *feed.Subscription
	playerSub  *feed.Subscription
	poll       *poller
}

func NewVerdict(deps Deps, cfg VerdictConfig, j judge.Judge, events Events) *VerdictEngine {
	return &VerdictEngine{
		deps:   deps,
		cfg:    cfg,
		judge:  j,
		events: events,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		stage:  StageMenu,
	}
}

func (e *VerdictEngine) Stage() Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stage
}

func (e *VerdictEngine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

func (e *VerdictEngine) Players() []db.VerdictPlayer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.players
}

// Create opens a session with this client as host and enters the
// lobby.
func (e *VerdictEngine) Create(ctx context.Context, name string, avatar *string) error {
	e.mu.Lock()
	if e.sessionID != "" {
		e.mu.Unlock()
		return errors.New("already in a session")
	}
	e.mu.Unlock()

	session, host, err := e.deps.Store.CreateSession(ctx, name, avatar)
	if err != nil {
		fire([]func(){e.events.alert("Error", "Could not create session.")})
		return err
	}

	e.mu.Lock()
	e.sessionID = session.ID
	e.myPlayerID = host.ID
	e.isHost = true
	e.session = session
	e.players = []db.VerdictPlayer{*host}
	e.stage = StageLobby
	e.listenLocked()
	players := e.players
	e.mu.Unlock()

	e.deps.Log.Infow("verdict hosting", "session_id", session.ID)
	fire([]func(){e.events.stage(StageLobby), e.events.players(players)})
	return nil
}

// Join adds this client to an existing session. A missing session is
// surfaced immediately; nothing is written.
func (e *VerdictEngine) Join(ctx context.Context, code, name string, avatar *string) error {
	e.mu.Lock()
	if e.sessionID != "" {
		e.mu.Unlock()
		return errors.New("already in a session")
	}
	e.mu.Unlock()

	player, err := e.deps.Store.AddPlayer(ctx, code, name, avatar)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fire([]func(){e.events.alert("Error", "Session not found")})
		} else {
			fire([]func(){e.events.alert("Error", "Could not join.")})
		}
		return err
	}

	e.mu.Lock()
	e.sessionID = player.SessionID
	e.myPlayerID = player.ID
	e.isHost = false
	e.stage = StageLobby
	e.listenLocked()
	e.mu.Unlock()

	e.deps.Log.Infow("verdict joined", "session_id", player.SessionID, "player_id", player.ID)
	fire([]func(){e.events.stage(StageLobby)})
	e.refresh()
	return nil
}

// Start is the host-only kick-off: at least two players, session still
// waiting. The stage flip itself arrives through the feed or poller
// like every other remote transition, for the host included.
func (e *VerdictEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	if !e.isHost || e.stage != StageLobby {
		e.mu.Unlock()
		return errors.New("only the host can start from the lobby")
	}
	if len(e.players) < 2 {
		e.mu.Unlock()
		return errors.New("need at least two players")
	}
	id := e.sessionID
	e.mu.Unlock()
	return e.deps.Store.StartWriting(ctx, id)
}

// Submit records this player's option and justification. Empty input
// gets the placeholder sentinels, exactly as the timeout auto-submit
// does; once the client is judging, further submits no-op.
func (e *VerdictEngine) Submit(ctx context.Context, option, justification string) error {
	return e.submit(ctx, option, justification)
}

func (e *VerdictEngine) submit(ctx context.Context, option, justification string) error {
	e.mu.Lock()
	// Stop the countdown before anything else so a stale tick cannot
	// fire a second submit.
	if e.clock != nil {
		e.clock.Stop()
		e.clock = nil
	}
	if e.stage != StageWriting {
		e.mu.Unlock()
		return nil
	}
	e.stage = StageJudging
	playerID := e.myPlayerID
	isHost := e.isHost
	e.mu.Unlock()

	if option == "" {
		option = submissionPlaceholder
	}
	if justification == "" {
		justification = justificationPlaceholder
	}

	if err := e.deps.Store.SubmitEntry(ctx, playerID, option, justification); err != nil {
		fire([]func(){e.events.alert("Error", "Could not submit.")})
		return err
	}

	fire([]func(){e.events.stage(StageJudging)})
	if isHost {
		e.scheduleJudgment()
	}
	return nil
}

// Apply is the transition function shared by the feed and the poller.
// Either argument may be nil when only the other table changed.
func (e *VerdictEngine) Apply(session *db.VerdictSession, players []db.VerdictPlayer) {
	e.mu.Lock()
	if e.sessionID == "" || e.stage == StageMenu {
		e.mu.Unlock()
		return
	}

	var effects []func()
	if players != nil && e.stage != StageRevealed {
		e.players = players
		effects = append(effects, e.events.players(players))
	}

	if session != nil && session.ID == e.sessionID {
		e.session = session

		if session.Status == db.SessionStatusWriting && e.stage == StageLobby {
			e.stage = StageWriting
			e.startClockLocked()
			effects = append(effects, e.events.stage(StageWriting))
			e.deps.Log.Infow("verdict writing started", "session_id", session.ID)
		}

		if session.Status == db.SessionStatusRevealed && e.stage != StageRevealed {
			e.stage = StageRevealed
			if e.clock != nil {
				e.clock.Stop()
				e.clock = nil
			}
			result := e.resolveVerdictLocked(session)
			e.stopListenersLocked()
			effects = append(effects, e.events.stage(StageRevealed), e.events.verdict(result))
			e.deps.Log.Infow("verdict observed", "session_id", session.ID, "winner_id", result.WinnerID)
		}
	}

	e.mu.Unlock()
	fire(effects)
}

// Leave removes this player; a leaving host tears the whole session
// down. Listeners and the countdown die with the session scope.
func (e *VerdictEngine) Leave(ctx context.Context) {
	e.mu.Lock()
	id, playerID, isHost := e.sessionID, e.myPlayerID, e.isHost
	e.stopListenersLocked()
	if e.clock != nil {
		e.clock.Stop()
		e.clock = nil
	}
	e.resetLocked()
	e.mu.Unlock()

	if id == "" {
		return
	}
	if err := e.deps.Store.RemovePlayer(ctx, playerID); err != nil {
		e.deps.Log.Infow("player cleanup failed", "player_id", playerID, "error", err)
	}
	if isHost {
		if err := e.deps.Store.DeleteSession(ctx, id); err != nil {
			e.deps.Log.Infow("session cleanup failed", "session_id", id, "error", err)
		}
	}
}

func (e *VerdictEngine) Close() {
	e.mu.Lock()
	e.stopListenersLocked()
	if e.clock != nil {
		e.clock.Stop()
		e.clock = nil
	}
	e.mu.Unlock()
}

func (e *VerdictEngine) listenLocked() {
	e.sessionSub = e.deps.Broker.Subscribe(feed.TableSessions, e.sessionID)
	e.playerSub = e.deps.Broker.Subscribe(feed.TablePlayers, e.sessionID)
	go e.consumeSessions(e.sessionSub)
	go e.consumePlayers(e.playerSub)
	if e.deps.Remote != nil {
		e.deps.Remote.Subscribe(feed.TableSessions, e.sessionID)
		e.deps.Remote.Subscribe(feed.TablePlayers, e.sessionID)
	}
	e.poll = startPoller(e.deps.pollInterval(), e.refresh)
}

func (e *VerdictEngine) consumeSessions(sub *feed.Subscription) {
	for ev := range sub.Events() {
		if ev.Action == feed.ActionDelete {
			e.sessionVanished()
			continue
		}
		var session db.VerdictSession
		if len(ev.Payload) == 0 || json.Unmarshal(ev.Payload, &session) != nil {
			e.refresh()
			continue
		}
		e.Apply(&session, nil)
	}
}

func (e *VerdictEngine) consumePlayers(sub *feed.Subscription) {
	for range sub.Events() {
		// Any player change triggers a full re-read; individual rows
		// are not worth merging client-side.
		players := e.fetchPlayers()
		if players != nil {
			e.Apply(nil, players)
		}
	}
}

// refresh is the reconciliation cycle: re-read session and players and
// run both through the transition function.
func (e *VerdictEngine) refresh() {
	e.mu.Lock()
	id, stage := e.sessionID, e.stage
	e.mu.Unlock()
	if id == "" || stage == StageMenu || stage == StageRevealed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	session, err := e.deps.Store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		e.sessionVanished()
		return
	}
	if err != nil {
		return
	}
	e.Apply(session, e.fetchPlayers())
}

func (e *VerdictEngine) fetchPlayers() []db.VerdictPlayer {
	e.mu.Lock()
	id, stage := e.sessionID, e.stage
	e.mu.Unlock()
	// Once revealed, stop re-reading players so the result does not
	// disappear when the winner leaves.
	if id == "" || stage == StageRevealed {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	players, err := e.deps.Store.ListPlayers(ctx, id)
	if err != nil {
		return nil
	}
	return players
}

func (e *VerdictEngine) sessionVanished() {
	e.mu.Lock()
	if e.sessionID == "" || e.stage == StageMenu || e.stage == StageRevealed {
		e.mu.Unlock()
		return
	}
	id := e.sessionID
	e.stopListenersLocked()
	if e.clock != nil {
		e.clock.Stop()
		e.clock = nil
	}
	e.resetLocked()
	e.mu.Unlock()

	e.deps.Log.Infow("verdict session vanished", "session_id", id)
	fire([]func(){
		e.events.alert("Session Ended", "The host has cancelled the session."),
		e.events.stage(StageMenu),
	})
}

func (e *VerdictEngine) startClockLocked() {
	if e.clock != nil {
		return
	}
	e.clock = startCountdown(e.cfg.writing(),
		func(left int) {
			fire([]func(){e.tick(left)})
		},
		func() {
			// Timeout auto-submit: placeholders stand in for the
			// missing input, then the flow is identical to a manual
			// submit.
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = e.submit(ctx, "", "")
		},
	)
}

func (e *VerdictEngine) tick(left int) func() {
	if e.events.OnTick == nil {
		return nil
	}
	return func() { e.events.OnTick(left) }
}

func (e *VerdictEngine) resolveVerdictLocked(session *db.VerdictSession) VerdictResult {
	result := VerdictResult{
		WinnerID: deref(session.WinnerID),
		Reason:   deref(session.AIReason),
	}
	for _, p := range e.players {
		if p.ID == result.WinnerID {
			result.WinnerName = p.Name
			result.Submission = deref(p.Submission)
			break
		}
	}
	return result
}

func (e *VerdictEngine) stopListenersLocked() {
	if e.sessionSub != nil {
		e.sessionSub.Close()
		e.sessionSub = nil
	}
	if e.playerSub != nil {
		e.playerSub.Close()
		e.playerSub = nil
	}
	if e.poll != nil {
		e.poll.Stop()
		e.poll = nil
	}
}

func (e *VerdictEngine) resetLocked() {
	e.stage = StageMenu
	e.sessionID = ""
	e.myPlayerID = ""
	e.isHost = false
	e.session = nil
	e.players = nil
}
