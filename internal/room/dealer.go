package room

import (
	"errors"

	"github.com/lox/blackjacktable/internal/game"
)

// The dealer automation is an explicit little state machine driven by
// one scheduled task at a time: observing dealer_turn schedules a step,
// the step issues one atomic write, and the resulting notification
// schedules the next. Only the current host runs it, so at most one
// writer drives dealer play however many clients are connected — and a
// host elected mid-sequence picks the loop up from whatever state the
// previous driver committed last.

// maybeScheduleDealer arms the next dealer step if this client is the
// host, the dealer is to act, and no step is already pending.
func (s *Session) maybeScheduleDealer(t *game.Table) {
	me, ok := t.Players[s.playerID]
	if !ok || !me.IsHost {
		return
	}
	if t.Status != game.StatusPlaying || t.Turn != game.TurnDealer || t.Error != "" {
		return
	}

	s.mu.Lock()
	if s.timerPending {
		s.mu.Unlock()
		return
	}
	s.timerPending = true
	s.mu.Unlock()

	// The pauses are cosmetic pacing for the watching humans, not
	// correctness-relevant timeouts.
	delay := s.opts.DrawDelay
	if t.DealerDoneDrawing() {
		delay = s.opts.ResolveDelay
	}
	s.opts.Clock.AfterFunc(delay, s.dealerStep)
}

// dealerStep performs exactly one transition: draw one card while the
// dealer is under seventeen, otherwise resolve payouts and finish the
// round.
func (s *Session) dealerStep() {
	s.mu.Lock()
	s.timerPending = false
	t := s.table
	s.mu.Unlock()
	if t == nil {
		return
	}
	// Revalidate against the latest snapshot: the table may have moved
	// on, or we may have lost the host flag, while the timer ran.
	me, ok := t.Players[s.playerID]
	if !ok || !me.IsHost {
		return
	}
	if t.Status != game.StatusPlaying || t.Turn != game.TurnDealer || t.Error != "" {
		return
	}

	if !t.DealerDoneDrawing() {
		_, delta, err := t.DealerDraw()
		if errors.Is(err, game.ErrShoeExhausted) {
			s.failRound(err)
			return
		}
		if err != nil {
			s.logger.Error("dealer draw failed", "error", err)
			return
		}
		s.logger.Debug("dealer drew", "score", t.Dealer.Score)
		if err := s.write(delta); err != nil {
			s.logger.Error("dealer draw write failed", "error", err)
		}
		return
	}

	_, delta, err := t.Resolve()
	if err != nil {
		s.logger.Error("resolution failed", "error", err)
		return
	}
	s.logger.Info("round resolved", "dealerScore", t.Dealer.Score)
	if err := s.write(delta); err != nil {
		s.logger.Error("resolution write failed", "error", err)
	}
}

// failRound surfaces a fatal dealer-side failure to every client and
// aborts the round. Deck exhaustion is not expected at six-deck depth,
// but drawing from an empty sequence must fail loudly, not quietly.
func (s *Session) failRound(err error) {
	s.logger.Error("fatal round failure", "error", err)
	if werr := s.write(game.Delta{
		"error":  err.Error(),
		"status": game.StatusFinished,
		"turn":   game.TurnFinished,
	}); werr != nil {
		s.logger.Error("failed to surface fatal round failure", "error", werr)
	}
}
