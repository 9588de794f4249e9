package game

// DealerDoneDrawing reports whether the dealer's drawing loop has terminated:
// the house hits while its score is under 17 regardless of softness.
func (t *Table) DealerDoneDrawing() bool {
	return t.Dealer.Score >= 17
}

// DealerDraw performs one step of the dealer's drawing loop: a single
// card onto the dealer hand, written back as one atomic step so any
// client can re-elect a new driver between steps. Exhausting the shoe
// here is fatal to the round.
func (t *Table) DealerDraw() (*Table, Delta, error) {
	if t.Status != StatusPlaying || t.Turn != TurnDealer {
		return nil, nil, ErrWrongPhase
	}
	if t.DealerDoneDrawing() {
		return nil, nil, ErrWrongPhase
	}
	next := t.Clone()
	card, err := next.draw()
	if err != nil {
		return nil, nil, err
	}
	next.Dealer.Hand = append(next.Dealer.Hand, card)
	next.Dealer.Score = Score(next.Dealer.Hand)
	return next, Delta{
		"deck":         next.Deck,
		"dealer/hand":  next.Dealer.Hand,
		"dealer/score": next.Dealer.Score,
	}, nil
}

// HandPayout computes a single hand's payout against the dealer. Pure
// function of the dealer score, dealer hand length and the hand's
// status, score and bet:
//
//   - blackjack pushes against a dealer natural, otherwise pays the
//     stake plus the 3:2 premium
//   - a busted hand forfeits its stake
//   - a standing hand pays even money against a dealer bust or lower
//     score, pushes on a tie and loses otherwise
func HandPayout(h Hand, dealerScore, dealerCards int) int {
	switch h.Status {
	case HandBlackjack:
		if dealerScore == 21 && dealerCards == 2 {
			return h.Bet
		}
		return h.Bet * 5 / 2
	case HandBusted:
		return 0
	default:
		switch {
		case dealerScore > 21 || h.Score > dealerScore:
			return h.Bet * 2
		case h.Score == dealerScore:
			return h.Bet
		default:
			return 0
		}
	}
}

// Resolve pays out every hand of every player independently and moves
// the table to finished. Runs exactly once per round, triggered solely
// by the dealer loop's terminal step; this is the only point balances
// grow after the deal.
func (t *Table) Resolve() (*Table, Delta, error) {
	if t.Status != StatusPlaying || t.Turn != TurnDealer {
		return nil, nil, ErrWrongPhase
	}
	if !t.DealerDoneDrawing() {
		return nil, nil, ErrWrongPhase
	}
	next := t.Clone()
	delta := Delta{}
	for id, p := range next.Players {
		won := 0
		for _, h := range p.Hands {
			won += HandPayout(h, next.Dealer.Score, len(next.Dealer.Hand))
		}
		p.Balance += won
		delta["players/"+id+"/balance"] = p.Balance
	}
	next.Status = StatusFinished
	next.Turn = TurnFinished
	next.Dealer.Status = DealerDone
	delta["status"] = next.Status
	delta["turn"] = next.Turn
	delta["dealer/status"] = next.Dealer.Status
	return next, delta, nil
}
