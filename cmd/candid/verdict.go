package main

import (
	"context"
	"fmt"
	"strings"

	"candid-decisions/internal/db"
	"candid-decisions/internal/game"
	"candid-decisions/internal/judge"
)

func (a *app) runVerdict(host bool) {
	name := a.prompt("Your name")
	if name == "" {
		fmt.Println("Please enter your name.")
		return
	}

	stages := make(chan game.Stage, 8)
	verdicts := make(chan game.VerdictResult, 1)
	events := game.Events{
		OnStage: func(s game.Stage) { stages <- s },
		OnAlert: func(title, message string) { fmt.Printf("[%s] %s\n", title, message) },
		OnPlayers: func(players []db.VerdictPlayer) {
			names := make([]string, 0, len(players))
			for _, p := range players {
				if p.IsHost {
					names = append(names, p.Name+" (host)")
				} else {
					names = append(names, p.Name)
				}
			}
			fmt.Printf("Players (%d): %s\n", len(players), strings.Join(names, ", "))
		},
		OnTick: func(left int) {
			if left%15 == 0 || left <= 5 {
				fmt.Printf("  %ds left...\n", left)
			}
		},
		OnVerdict: func(r game.VerdictResult) {
			select {
			case verdicts <- r:
			default:
			}
		},
	}

	engine := game.NewVerdict(a.deps(), game.VerdictConfig{
		WritingSeconds: a.cfg.WritingSeconds,
		GraceSeconds:   a.cfg.JudgeGraceSeconds,
	}, &judge.GeminiJudge{
		APIKey: a.cfg.GeminiAPIKey,
		Model:  a.cfg.GeminiModel,
	}, events)
	defer engine.Close()
	ctx := context.Background()

	if host {
		if err := engine.Create(ctx, name, nil); err != nil {
			return
		}
		fmt.Printf("Room code: %s\n", engine.SessionID())
		a.prompt("Press Enter to start once everyone has joined")
		if err := engine.Start(ctx); err != nil {
			fmt.Println(err)
			engine.Leave(ctx)
			return
		}
	} else {
		if err := engine.Join(ctx, a.prompt("Room code"), name, nil); err != nil {
			return
		}
		fmt.Println("Waiting for the host to start...")
	}

	for {
		select {
		case stage := <-stages:
			switch stage {
			case game.StageWriting:
				fmt.Println("Court is in session. Make your case!")
				option := a.prompt("Your option")
				justification := a.prompt("Why is it the best?")
				if err := engine.Submit(ctx, option, justification); err != nil {
					return
				}
			case game.StageJudging:
				fmt.Println("The Judge is deciding...")
			case game.StageMenu:
				return
			}
		case result := <-verdicts:
			fmt.Printf("JUDGMENT DELIVERED: %q\n", result.Reason)
			fmt.Printf("Winner: %s. The choice is %s.\n", result.WinnerName, result.Submission)
			engine.Leave(ctx)
			return
		}
	}
}
