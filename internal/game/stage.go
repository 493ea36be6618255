// Package game holds the per-client state machines for both
// multiplayer modes. Every remote observation, whether it arrived over
// the change feed or from the reconciliation poller, funnels into one
// transition function per engine; the client-local stage guard is what
// keeps duplicate deliveries from re-firing side effects.
package game

// Stage is the client-local state. It never regresses except by an
// explicit return to the menu.
type Stage string

const (
	StageMenu      Stage = "menu"
	StageHostSetup Stage = "host-setup"
	StageJoinSetup Stage = "join-setup"
	StageWaiting   Stage = "waiting"
	StageLobby     Stage = "lobby"
	StagePlaying   Stage = "playing"
	StageWriting   Stage = "writing"
	StageJudging   Stage = "judging"
	StageRevealed  Stage = "revealed"
)

type Move string

const (
	MoveRock     Move = "rock"
	MovePaper    Move = "paper"
	MoveScissors Move = "scissors"
)

func ValidMove(move Move) bool {
	switch move {
	case MoveRock, MovePaper, MoveScissors:
		return true
	}
	return false
}

type Outcome string

const (
	OutcomeHost  Outcome = "host"
	OutcomeGuest Outcome = "guest"
	OutcomeTie   Outcome = "tie"
)

// Winner applies the fixed hand-beats-hand rule. Both clients run this
// on the same two persisted moves; no winner is ever stored.
func Winner(hostMove, guestMove Move) Outcome {
	if hostMove == guestMove {
		return OutcomeTie
	}
	switch {
	case hostMove == MoveRock && guestMove == MoveScissors,
		hostMove == MoveScissors && guestMove == MovePaper,
		hostMove == MovePaper && guestMove == MoveRock:
		return OutcomeHost
	}
	return OutcomeGuest
}
