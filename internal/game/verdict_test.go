package game

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"candid-decisions/internal/db"
	"candid-decisions/internal/judge"
)

// namedJudge rules for the contender with the given name.
type namedJudge struct{ name string }

func (j namedJudge) Decide(_ context.Context, contenders []judge.Contender) (judge.Ruling, error) {
	for _, c := range contenders {
		if c.Name == j.name {
			return judge.Ruling{WinnerID: c.ID, Reason: "The court favors " + c.Name + "."}, nil
		}
	}
	return judge.Ruling{}, errors.New("no such contender")
}

type failingJudge struct{}

func (failingJudge) Decide(context.Context, []judge.Contender) (judge.Ruling, error) {
	return judge.Ruling{}, errors.New("judge is down")
}

func newVerdictPair(t *testing.T, cfg VerdictConfig, j judge.Judge) (*VerdictEngine, *VerdictEngine, chan VerdictResult, chan VerdictResult) {
	t.Helper()
	deps := newTestDeps(t)

	hostVerdicts := make(chan VerdictResult, 1)
	host := NewVerdict(deps, cfg, j, Events{
		OnVerdict: func(r VerdictResult) { hostVerdicts <- r },
	})
	t.Cleanup(host.Close)

	guestVerdicts := make(chan VerdictResult, 1)
	guest := NewVerdict(deps, cfg, j, Events{
		OnVerdict: func(r VerdictResult) { guestVerdicts <- r },
	})
	t.Cleanup(guest.Close)

	return host, guest, hostVerdicts, guestVerdicts
}

func TestVerdictEndToEnd(t *testing.T) {
	cfg := VerdictConfig{WritingSeconds: 30, GraceSeconds: 1}
	host, guest, hostVerdicts, guestVerdicts := newVerdictPair(t, cfg, namedJudge{name: "Bob"})
	ctx := context.Background()

	if err := host.Create(ctx, "Ada", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := guest.Join(ctx, host.SessionID(), "Bob", nil); err != nil {
		t.Fatalf("join: %v", err)
	}

	waitFor(t, "host to see both players", func() bool {
		return len(host.Players()) == 2
	})

	if err := host.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "both clients writing", func() bool {
		return host.Stage() == StageWriting && guest.Stage() == StageWriting
	})

	if err := host.Submit(ctx, "Beach", "Sun all day"); err != nil {
		t.Fatalf("host submit: %v", err)
	}
	if err := guest.Submit(ctx, "Mountains", "Snow and quiet, no crowds"); err != nil {
		t.Fatalf("guest submit: %v", err)
	}

	for _, verdicts := range []chan VerdictResult{hostVerdicts, guestVerdicts} {
		result := <-verdicts
		if result.WinnerName != "Bob" {
			t.Fatalf("winner = %q, want Bob", result.WinnerName)
		}
		if result.Submission != "Mountains" {
			t.Fatalf("submission = %q, want Mountains", result.Submission)
		}
		if result.Reason == "" {
			t.Fatal("expected a ruling reason")
		}
	}

	session, err := host.deps.Store.GetSession(ctx, host.SessionID())
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.Status != db.SessionStatusRevealed {
		t.Fatalf("session status = %q, want %q", session.Status, db.SessionStatusRevealed)
	}
}

func TestVerdictTimeoutAutoSubmitsPlaceholders(t *testing.T) {
	cfg := VerdictConfig{WritingSeconds: 1, GraceSeconds: 1}
	host, guest, hostVerdicts, _ := newVerdictPair(t, cfg, namedJudge{name: "Ada"})
	ctx := context.Background()

	var judging atomic.Int32
	host.events.OnStage = func(s Stage) {
		if s == StageJudging {
			judging.Add(1)
		}
	}

	if err := host.Create(ctx, "Ada", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := guest.Join(ctx, host.SessionID(), "Bob", nil); err != nil {
		t.Fatalf("join: %v", err)
	}
	waitFor(t, "host to see both players", func() bool {
		return len(host.Players()) == 2
	})
	sessionID := host.SessionID()
	if err := host.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Nobody writes anything; the deadline submits for them.
	result := <-hostVerdicts
	if result.WinnerName != "Ada" {
		t.Fatalf("winner = %q, want Ada", result.WinnerName)
	}
	if got := judging.Load(); got != 1 {
		t.Fatalf("judging fired %d times, want 1", got)
	}

	players, err := host.deps.Store.ListPlayers(ctx, sessionID)
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	for _, p := range players {
		if p.Submission == nil || *p.Submission != submissionPlaceholder {
			t.Fatalf("player %s submission = %v, want placeholder", p.Name, p.Submission)
		}
		if p.Justification == nil || *p.Justification != justificationPlaceholder {
			t.Fatalf("player %s justification = %v, want placeholder", p.Name, p.Justification)
		}
	}
}

func TestVerdictMissingKeyFailsClosed(t *testing.T) {
	cfg := VerdictConfig{WritingSeconds: 30, GraceSeconds: 1}
	host, guest, hostVerdicts, _ := newVerdictPair(t, cfg, &judge.GeminiJudge{})
	ctx := context.Background()

	alerts := make(chan string, 4)
	host.events.OnAlert = func(title, _ string) { alerts <- title }

	if err := host.Create(ctx, "Ada", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := guest.Join(ctx, host.SessionID(), "Bob", nil); err != nil {
		t.Fatalf("join: %v", err)
	}
	waitFor(t, "host to see both players", func() bool {
		return len(host.Players()) == 2
	})
	if err := host.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "both clients writing", func() bool {
		return host.Stage() == StageWriting && guest.Stage() == StageWriting
	})

	if err := host.Submit(ctx, "Beach", "Sun"); err != nil {
		t.Fatalf("host submit: %v", err)
	}
	if err := guest.Submit(ctx, "Mountains", "Snow"); err != nil {
		t.Fatalf("guest submit: %v", err)
	}

	waitFor(t, "the configuration alert", func() bool {
		select {
		case title := <-alerts:
			return title == "Configuration Error"
		default:
			return false
		}
	})

	// No ruling means no reveal: nothing is fabricated.
	select {
	case result := <-hostVerdicts:
		t.Fatalf("unexpected verdict %+v without a judge credential", result)
	case <-time.After(200 * time.Millisecond):
	}
	session, err := host.deps.Store.GetSession(ctx, host.SessionID())
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.Status != db.SessionStatusWriting {
		t.Fatalf("session status = %q, want %q", session.Status, db.SessionStatusWriting)
	}
}

func TestVerdictJudgeFailureFallsBack(t *testing.T) {
	cfg := VerdictConfig{WritingSeconds: 30, GraceSeconds: 1}
	host, guest, _, guestVerdicts := newVerdictPair(t, cfg, failingJudge{})
	ctx := context.Background()

	if err := host.Create(ctx, "Ada", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := guest.Join(ctx, host.SessionID(), "Bob", nil); err != nil {
		t.Fatalf("join: %v", err)
	}
	waitFor(t, "host to see both players", func() bool {
		return len(host.Players()) == 2
	})

	players, err := host.deps.Store.ListPlayers(ctx, host.SessionID())
	if err != nil {
		t.Fatalf("list players: %v", err)
	}
	known := make(map[string]bool, len(players))
	for _, p := range players {
		known[p.ID] = true
	}

	if err := host.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "both clients writing", func() bool {
		return host.Stage() == StageWriting && guest.Stage() == StageWriting
	})
	if err := host.Submit(ctx, "Beach", "Sun"); err != nil {
		t.Fatalf("host submit: %v", err)
	}
	if err := guest.Submit(ctx, "Mountains", "Snow and quiet"); err != nil {
		t.Fatalf("guest submit: %v", err)
	}

	result := <-guestVerdicts
	if !known[result.WinnerID] {
		t.Fatalf("fallback picked winner %q outside the player set", result.WinnerID)
	}
	if result.Reason == "" {
		t.Fatal("expected a fallback reason")
	}
}

func TestVerdictApplyIsIdempotent(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()

	var reveals, verdicts atomic.Int32
	host := NewVerdict(deps, VerdictConfig{WritingSeconds: 30, GraceSeconds: 1}, namedJudge{name: "Ada"}, Events{
		OnStage: func(s Stage) {
			if s == StageRevealed {
				reveals.Add(1)
			}
		},
		OnVerdict: func(VerdictResult) { verdicts.Add(1) },
	})
	defer host.Close()

	if err := host.Create(ctx, "Ada", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	winnerID := host.Players()[0].ID

	row := &db.VerdictSession{
		ID:       host.SessionID(),
		Status:   db.SessionStatusRevealed,
		WinnerID: strptr(winnerID),
		AIReason: strptr("The court favors Ada."),
	}
	for i := 0; i < 5; i++ {
		host.Apply(row, nil)
	}

	if got := reveals.Load(); got != 1 {
		t.Fatalf("revealed fired %d times, want 1", got)
	}
	if got := verdicts.Load(); got != 1 {
		t.Fatalf("verdict fired %d times, want 1", got)
	}
}

func TestVerdictStartNeedsTwoPlayers(t *testing.T) {
	cfg := VerdictConfig{WritingSeconds: 30, GraceSeconds: 1}
	host, _, _, _ := newVerdictPair(t, cfg, namedJudge{name: "Ada"})
	ctx := context.Background()

	if err := host.Create(ctx, "Ada", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := host.Start(ctx); err == nil {
		t.Fatal("expected start to fail with a single player")
	}
}
