package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/lox/blackjacktable/internal/simulate"
)

// SimulateCmd estimates outcome rates by playing rounds offline
type SimulateCmd struct {
	Rounds  int    `kong:"default='10000',help='Number of rounds to play'"`
	Workers int    `kong:"default='0',help='Worker goroutines (0 = GOMAXPROCS)'"`
	Seed    *int64 `kong:"help='Deterministic RNG seed (optional)'"`
	Bet     int    `kong:"default='10',help='Bet per round'"`
	Decks   int    `kong:"default='6',help='Decks per shoe'"`
	Debug   bool   `kong:"help='Enable debug logging'"`
}

func (c *SimulateCmd) Run() error {
	level := "info"
	if c.Debug {
		level = "debug"
	}
	logger := newLogger(os.Stderr, level)

	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
	}
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	logger.Info("simulating rounds",
		"rounds", c.Rounds, "workers", workers, "seed", seed, "bet", c.Bet)

	start := time.Now()
	stats, err := simulate.Run(context.Background(), simulate.Config{
		Rounds:  c.Rounds,
		Workers: workers,
		Seed:    seed,
		Decks:   c.Decks,
		Bet:     c.Bet,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	fmt.Printf("rounds:     %d (%.2fs)\n", stats.Rounds, time.Since(start).Seconds())
	fmt.Printf("wins:       %d (%d blackjacks)\n", stats.Wins, stats.Blackjacks)
	fmt.Printf("losses:     %d\n", stats.Losses)
	fmt.Printf("pushes:     %d\n", stats.Pushes)
	fmt.Printf("net:        %+d chips\n", stats.Net)
	fmt.Printf("house edge: %.2f%%\n", stats.EdgePercent(c.Bet))
	return nil
}
