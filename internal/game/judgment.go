package game

import (
	"context"
	"errors"
	"time"

	"candid-decisions/internal/judge"
)

// scheduleJudgment arms the host-only grace delay: a short buffer past
// the writing deadline so late auto-submits land in the store before
// the judge reads them. The timer is a one-shot and deliberately
// survives a host leave; if the session is gone by the time it fires,
// the guarded reveal update touches nothing.
func (e *VerdictEngine) scheduleJudgment() {
	time.AfterFunc(e.cfg.grace(), e.performJudgment)
	e.deps.Log.Infow("judgment scheduled", "session_id", e.SessionID(), "grace", e.cfg.grace())
}

// performJudgment is the single authoritative terminal transition:
// read every submission, ask the judge once, and write status, winner,
// and reason in one update. Every judge failure except a missing
// credential falls back to the local heuristic so the session always
// terminates once judgment is triggered.
func (e *VerdictEngine) performJudgment() {
	e.mu.Lock()
	id := e.sessionID
	e.mu.Unlock()
	if id == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	players, err := e.deps.Store.ListPlayers(ctx, id)
	if err != nil || len(players) == 0 {
		e.deps.Log.Infow("judgment skipped", "session_id", id, "error", err)
		return
	}

	contenders := make([]judge.Contender, 0, len(players))
	known := make(map[string]struct{}, len(players))
	for _, p := range players {
		contenders = append(contenders, judge.Contender{
			ID:            p.ID,
			Name:          p.Name,
			Submission:    deref(p.Submission),
			Justification: deref(p.Justification),
		})
		known[p.ID] = struct{}{}
	}

	ruling, err := e.judge.Decide(ctx, contenders)
	if errors.Is(err, judge.ErrNoAPIKey) {
		// Fail closed: no judge identity is safe to fabricate. The
		// session stays in writing until the host aborts.
		e.deps.Log.Infow("judgment blocked", "session_id", id, "error", err)
		fire([]func(){e.events.alert("Configuration Error", "Judge API key is missing.")})
		return
	}
	if err != nil {
		e.deps.Log.Infow("judge failed, using fallback", "session_id", id, "error", err)
		ruling = judge.Fallback(contenders, e.rng)
	} else if _, ok := known[ruling.WinnerID]; !ok {
		e.deps.Log.Infow("judge picked unknown winner, using fallback", "session_id", id, "winner_id", ruling.WinnerID)
		ruling = judge.Fallback(contenders, e.rng)
	}

	if err := e.deps.Store.RevealSession(ctx, id, ruling.WinnerID, ruling.Reason); err != nil {
		e.deps.Log.Infow("reveal write failed", "session_id", id, "error", err)
	}
}
