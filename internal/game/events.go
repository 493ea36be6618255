package game

import "candid-decisions/internal/db"

// MatchResult is the locally derived outcome of an RPS duel.
type MatchResult struct {
	Outcome    Outcome
	WinnerName string
	// Food is the winning player's submitted choice; empty on a tie.
	Food string
}

// VerdictResult mirrors the store-authoritative terminal row of a
// verdict session.
type VerdictResult struct {
	WinnerID   string
	WinnerName string
	Submission string
	Reason     string
}

// Events is the sink the UI observes. Every field is optional; the
// engines fire each callback at most once per transition, outside
// their internal lock.
type Events struct {
	OnStage   func(stage Stage)
	OnAlert   func(title, message string)
	OnTick    func(secondsLeft int)
	OnMatch   func(match db.Match)
	OnPlayers func(players []db.VerdictPlayer)
	OnResult  func(result MatchResult)
	OnVerdict func(result VerdictResult)
}

func (e Events) stage(stage Stage) func() {
	if e.OnStage == nil {
		return nil
	}
	return func() { e.OnStage(stage) }
}

func (e Events) alert(title, message string) func() {
	if e.OnAlert == nil {
		return nil
	}
	return func() { e.OnAlert(title, message) }
}

func (e Events) match(match db.Match) func() {
	if e.OnMatch == nil {
		return nil
	}
	return func() { e.OnMatch(match) }
}

func (e Events) players(players []db.VerdictPlayer) func() {
	if e.OnPlayers == nil {
		return nil
	}
	return func() { e.OnPlayers(players) }
}

func (e Events) result(result MatchResult) func() {
	if e.OnResult == nil {
		return nil
	}
	return func() { e.OnResult(result) }
}

func (e Events) verdict(result VerdictResult) func() {
	if e.OnVerdict == nil {
		return nil
	}
	return func() { e.OnVerdict(result) }
}

// fire runs queued side effects after the engine lock is released.
func fire(effects []func()) {
	for _, effect := range effects {
		if effect != nil {
			effect()
		}
	}
}
