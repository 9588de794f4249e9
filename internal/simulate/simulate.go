// Package simulate plays solo rounds against the dealer to estimate
// outcome distributions under a fixed hit-below-17 strategy.
package simulate

import (
	"context"
	"fmt"
	rand "math/rand/v2"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/blackjacktable/internal/deck"
	"github.com/lox/blackjacktable/internal/game"
	"github.com/lox/blackjacktable/internal/randutil"
)

const simPlayerID = "sim"

// Config holds configuration for running simulations
type Config struct {
	Rounds  int
	Workers int
	Seed    int64
	Decks   int
	Bet     int
	Logger  *log.Logger
}

// Stats aggregates round outcomes. Net is in chips relative to the
// total amount staked.
type Stats struct {
	Rounds     int
	Wins       int
	Blackjacks int
	Losses     int
	Pushes     int
	Net        int
}

func (s *Stats) add(o Stats) {
	s.Rounds += o.Rounds
	s.Wins += o.Wins
	s.Blackjacks += o.Blackjacks
	s.Losses += o.Losses
	s.Pushes += o.Pushes
	s.Net += o.Net
}

// EdgePercent returns the house edge over the simulated rounds.
func (s *Stats) EdgePercent(bet int) float64 {
	if s.Rounds == 0 || bet == 0 {
		return 0
	}
	return -100 * float64(s.Net) / float64(s.Rounds*bet)
}

// Run plays cfg.Rounds rounds split across cfg.Workers goroutines, each
// with an independent RNG derived from the base seed so results are
// reproducible for a given (seed, workers) pair.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	if cfg.Rounds <= 0 {
		return nil, fmt.Errorf("rounds must be positive, got %d", cfg.Rounds)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Decks <= 0 {
		cfg.Decks = deck.DecksPerShoe
	}
	if cfg.Bet <= 0 {
		cfg.Bet = 10
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	perWorker := cfg.Rounds / cfg.Workers
	remainder := cfg.Rounds % cfg.Workers

	g, ctx := errgroup.WithContext(ctx)
	results := make(chan Stats, cfg.Workers)

	for w := 0; w < cfg.Workers; w++ {
		rounds := perWorker
		if w < remainder {
			rounds++
		}
		if rounds == 0 {
			continue
		}
		workerSeed := cfg.Seed + int64(w)

		g.Go(func() error {
			rng := randutil.New(workerSeed)
			var stats Stats
			for i := 0; i < rounds; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				net, err := playRound(rng, cfg.Decks, cfg.Bet)
				if err != nil {
					return fmt.Errorf("round %d: %w", i, err)
				}
				stats.Rounds++
				stats.Net += net
				switch {
				case net == cfg.Bet+cfg.Bet/2:
					stats.Blackjacks++
					stats.Wins++
				case net > 0:
					stats.Wins++
				case net < 0:
					stats.Losses++
				default:
					stats.Pushes++
				}
			}
			select {
			case results <- stats:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	go func() {
		defer close(results)
		_ = g.Wait()
	}()

	total := &Stats{}
	for stats := range results {
		total.add(stats)
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	cfg.Logger.Debug("simulation complete", "rounds", total.Rounds, "net", total.Net)
	return total, nil
}

// playRound plays one seeded solo round and returns the chip delta.
// The player hits below 17, mirroring the dealer's own rule.
func playRound(rng *rand.Rand, decks, bet int) (int, error) {
	const start = 1_000_000

	table := game.NewTable(&game.Player{
		ID:       simPlayerID,
		Name:     "Sim",
		Balance:  start,
		JoinedAt: 1,
	})

	table, _, err := table.PlaceBet(simPlayerID, bet)
	if err != nil {
		return 0, err
	}
	table, _, err = table.Deal(simPlayerID, deck.NewShoe(decks, rng))
	if err != nil {
		return 0, err
	}

	for table.Turn == simPlayerID {
		p := table.Players[simPlayerID]
		if p.Hands[p.ActiveHand()].Score < 17 {
			table, _, err = table.Hit(simPlayerID)
		} else {
			table, _, err = table.Stand(simPlayerID)
		}
		if err != nil {
			return 0, err
		}
	}
	for table.Turn == game.TurnDealer {
		if !table.DealerDoneDrawing() {
			table, _, err = table.DealerDraw()
		} else {
			table, _, err = table.Resolve()
		}
		if err != nil {
			return 0, err
		}
	}
	return table.Players[simPlayerID].Balance - start, nil
}
