package main

import (
	"context"
	"fmt"

	"candid-decisions/internal/game"
)

func (a *app) runRPS(host bool) {
	name := a.prompt("Your name")
	food := a.prompt("Your choice (e.g. Pizza)")
	if name == "" || food == "" {
		fmt.Println("Please enter your name and a choice.")
		return
	}

	stages := make(chan game.Stage, 8)
	results := make(chan game.MatchResult, 1)
	engine := game.NewRPS(a.deps(), game.Events{
		OnStage: func(s game.Stage) { stages <- s },
		OnAlert: func(title, message string) { fmt.Printf("[%s] %s\n", title, message) },
		OnResult: func(r game.MatchResult) {
			select {
			case results <- r:
			default:
			}
		},
	})
	defer engine.Close()
	ctx := context.Background()

	if host {
		match, err := engine.Create(ctx, name, food)
		if err != nil {
			return
		}
		fmt.Printf("Room code: %s. Waiting for an opponent...\n", match.ID)
	} else {
		code := a.prompt("Room code")
		if _, err := engine.Join(ctx, code, name, food); err != nil {
			return
		}
	}

	moved := false
	for {
		select {
		case stage := <-stages:
			switch stage {
			case game.StagePlaying:
				if !moved {
					moved = true
					if err := engine.SubmitMove(ctx, a.promptMove()); err != nil {
						return
					}
					fmt.Println("Move locked in, waiting for the reveal...")
				}
			case game.StageMenu:
				return
			}
		case result := <-results:
			a.printOutcome(result)
			engine.Leave(ctx)
			return
		}
	}
}

func (a *app) promptMove() game.Move {
	for {
		move := game.Move(a.prompt("Your move (rock/paper/scissors)"))
		if game.ValidMove(move) {
			return move
		}
		fmt.Println("That is not a move.")
	}
}

func (a *app) printOutcome(result game.MatchResult) {
	if result.Outcome == game.OutcomeTie {
		fmt.Println("It's a tie! Roll the dice instead.")
		return
	}
	fmt.Printf("%s wins! The decision is %s.\n", result.WinnerName, result.Food)
}
