package game

import (
	"github.com/lox/blackjacktable/internal/deck"
)

// Every action below is a pure function over a table snapshot: it
// validates against the snapshot, mutates a clone and returns the clone
// together with the Delta of store paths the caller must submit as one
// atomic write. A returned error means no state changed anywhere.

// AddPlayer seats a new player. Joining is only allowed while the table
// is taking bets.
func (t *Table) AddPlayer(p *Player) (*Table, Delta, error) {
	if t.Status != StatusBetting {
		return nil, nil, ErrWrongPhase
	}
	if _, ok := t.Players[p.ID]; ok {
		return nil, nil, ErrUnknownPlayer
	}
	next := t.Clone()
	next.Players[p.ID] = p.Clone()
	return next, Delta{"players/" + p.ID: next.Players[p.ID]}, nil
}

// RemovePlayer unseats a player, e.g. on disconnect cleanup.
func (t *Table) RemovePlayer(id string) (*Table, Delta, error) {
	if _, ok := t.Players[id]; !ok {
		return nil, nil, ErrUnknownPlayer
	}
	next := t.Clone()
	delete(next.Players, id)
	return next, Delta{"players/" + id: nil}, nil
}

// PlaceBet stages amount from the player's balance. Amounts accumulate
// when called more than once before the deal. No hands exist yet, so
// only the player's balance and staged bet move.
func (t *Table) PlaceBet(playerID string, amount int) (*Table, Delta, error) {
	if amount <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	if t.Status != StatusBetting {
		return nil, nil, ErrWrongPhase
	}
	p, ok := t.Players[playerID]
	if !ok {
		return nil, nil, ErrUnknownPlayer
	}
	if amount > p.Balance {
		return nil, nil, ErrInsufficientFunds
	}
	next := t.Clone()
	np := next.Players[playerID]
	np.Balance -= amount
	np.Bet += amount
	return next, Delta{
		"players/" + playerID + "/balance": np.Balance,
		"players/" + playerID + "/bet":     np.Bet,
	}, nil
}

// Deal transitions betting -> playing. Host only. The caller supplies a
// freshly shuffled shoe; the previous round's shoe is never reused.
// Every player receives one two-card hand carrying their staged bet, the
// dealer receives two cards, and the turn goes to the owner of the first
// playing hand in turn order, or straight to the dealer if everyone was
// dealt a natural. Dealing is rejected while any seated player has no
// bet staged, rather than silently dealing a zero-stake hand.
func (t *Table) Deal(callerID string, shoe deck.Shoe) (*Table, Delta, error) {
	caller, ok := t.Players[callerID]
	if !ok {
		return nil, nil, ErrUnknownPlayer
	}
	if !caller.IsHost {
		return nil, nil, ErrNotHost
	}
	if t.Status != StatusBetting {
		return nil, nil, ErrWrongPhase
	}
	for _, p := range t.Players {
		if p.Bet <= 0 {
			return nil, nil, ErrBetsNotPlaced
		}
	}

	next := t.Clone()
	next.Deck = shoe.Clone()

	delta := Delta{}
	order := next.TurnOrder()
	for _, id := range order {
		p := next.Players[id]
		cards, err := next.drawN(2)
		if err != nil {
			return nil, nil, err
		}
		p.Hands = []Hand{NewHand(cards, p.Bet)}
		delta["players/"+id+"/hands"] = p.Hands
	}

	dealerCards, err := next.drawN(2)
	if err != nil {
		return nil, nil, err
	}
	next.Dealer = Dealer{
		Hand:   dealerCards,
		Score:  Score(dealerCards),
		Status: DealerPlaying,
	}

	next.Status = StatusPlaying
	next.Turn = TurnDealer
	for _, id := range order {
		if next.Players[id].HasPlayingHand() {
			next.Turn = id
			break
		}
	}

	delta["deck"] = next.Deck
	delta["dealer"] = next.Dealer
	delta["status"] = next.Status
	delta["turn"] = next.Turn
	return next, delta, nil
}

// Hit draws one card onto the caller's active hand. The hand busts over
// 21 and auto-stands on exactly 21; a player is never offered further
// choices once they reach 21. The turn advances only when the hand left
// playing status.
func (t *Table) Hit(playerID string) (*Table, Delta, error) {
	next, hand, err := t.actingHand(playerID)
	if err != nil {
		return nil, nil, err
	}
	card, err := next.draw()
	if err != nil {
		return nil, nil, err
	}
	hand.Cards = append(hand.Cards, card)
	hand.Rescore()
	switch {
	case hand.Score > 21:
		hand.Status = HandBusted
	case hand.Score == 21:
		hand.Status = HandStanding
	}

	delta := Delta{
		"deck": next.Deck,
		"players/" + playerID + "/hands": next.Players[playerID].Hands,
	}
	if !hand.Playing() {
		next.Turn = next.NextTurn(playerID)
		delta["turn"] = next.Turn
	}
	return next, delta, nil
}

// Stand ends the caller's active hand voluntarily and always advances
// the turn.
func (t *Table) Stand(playerID string) (*Table, Delta, error) {
	next, hand, err := t.actingHand(playerID)
	if err != nil {
		return nil, nil, err
	}
	hand.Status = HandStanding
	next.Turn = next.NextTurn(playerID)
	return next, Delta{
		"players/" + playerID + "/hands": next.Players[playerID].Hands,
		"turn":                           next.Turn,
	}, nil
}

// Double doubles the stake on the caller's active hand, draws exactly
// one card and ends the hand. Only legal on the initial two cards.
func (t *Table) Double(playerID string) (*Table, Delta, error) {
	next, hand, err := t.actingHand(playerID)
	if err != nil {
		return nil, nil, err
	}
	p := next.Players[playerID]
	if len(hand.Cards) != 2 {
		return nil, nil, ErrInvalidDouble
	}
	if p.Balance < hand.Bet {
		return nil, nil, ErrInsufficientFunds
	}
	p.Balance -= hand.Bet
	card, err := next.draw()
	if err != nil {
		return nil, nil, err
	}
	hand.Cards = append(hand.Cards, card)
	hand.Rescore()
	hand.Bet *= 2
	hand.Doubled = true
	// Double always consumes the turn.
	if hand.Score > 21 {
		hand.Status = HandBusted
	} else {
		hand.Status = HandStanding
	}
	next.Turn = next.NextTurn(playerID)
	return next, Delta{
		"deck":                              next.Deck,
		"players/" + playerID + "/hands":   p.Hands,
		"players/" + playerID + "/balance": p.Balance,
		"turn":                             next.Turn,
	}, nil
}

// Split replaces the caller's active pair with two hands, each taking
// one original card plus one drawn card and carrying the original bet.
// Split aces stand immediately; any other split leaves both hands
// playing with the first as the active hand, so play resumes with the
// same player.
func (t *Table) Split(playerID string) (*Table, Delta, error) {
	next, hand, err := t.actingHand(playerID)
	if err != nil {
		return nil, nil, err
	}
	p := next.Players[playerID]
	if len(hand.Cards) != 2 || hand.Cards[0].Rank != hand.Cards[1].Rank {
		return nil, nil, ErrInvalidSplit
	}
	if p.Balance < hand.Bet {
		return nil, nil, ErrInsufficientFunds
	}
	p.Balance -= hand.Bet

	idx := p.ActiveHand()
	split := make([]Hand, 2)
	for i := 0; i < 2; i++ {
		card, err := next.draw()
		if err != nil {
			return nil, nil, err
		}
		split[i] = Hand{
			Cards:  []deck.Card{hand.Cards[i], card},
			Bet:    hand.Bet,
			Status: HandPlaying,
		}
		split[i].Rescore()
		// House rule: no further hits on split aces.
		if hand.Cards[i].IsAce() {
			split[i].Status = HandStanding
		}
	}

	// The pair occupies the position the original hand held so the
	// active-hand scan resumes on the first of the two.
	hands := make([]Hand, 0, len(p.Hands)+1)
	hands = append(hands, p.Hands[:idx]...)
	hands = append(hands, split...)
	hands = append(hands, p.Hands[idx+1:]...)
	p.Hands = hands

	next.Turn = next.NextTurn(playerID)
	return next, Delta{
		"deck":                              next.Deck,
		"players/" + playerID + "/hands":   p.Hands,
		"players/" + playerID + "/balance": p.Balance,
		"turn":                             next.Turn,
	}, nil
}

// NextRound transitions finished -> betting. Host only. Hands and bets
// clear, balances carry forward.
func (t *Table) NextRound(callerID string) (*Table, Delta, error) {
	caller, ok := t.Players[callerID]
	if !ok {
		return nil, nil, ErrUnknownPlayer
	}
	if !caller.IsHost {
		return nil, nil, ErrNotHost
	}
	if t.Status != StatusFinished {
		return nil, nil, ErrWrongPhase
	}
	next := t.Clone()
	next.Status = StatusBetting
	next.Turn = TurnNone
	next.Dealer = Dealer{Status: DealerWaiting}
	delta := Delta{
		"status": next.Status,
		"turn":   next.Turn,
		"dealer": next.Dealer,
	}
	for id, p := range next.Players {
		p.Hands = nil
		p.Bet = 0
		delta["players/"+id+"/hands"] = nil
		delta["players/"+id+"/bet"] = 0
	}
	return next, delta, nil
}

// actingHand validates phase and turn and returns a cloned table plus a
// pointer to the caller's active hand within it.
func (t *Table) actingHand(playerID string) (*Table, *Hand, error) {
	if t.Status != StatusPlaying {
		return nil, nil, ErrWrongPhase
	}
	if t.Turn != playerID {
		return nil, nil, ErrNotYourTurn
	}
	p, ok := t.Players[playerID]
	if !ok {
		return nil, nil, ErrUnknownPlayer
	}
	if p.ActiveHand() < 0 {
		return nil, nil, ErrNoActiveHand
	}
	next := t.Clone()
	np := next.Players[playerID]
	return next, &np.Hands[np.ActiveHand()], nil
}

func (t *Table) drawN(n int) ([]deck.Card, error) {
	cards := make([]deck.Card, 0, n)
	for i := 0; i < n; i++ {
		card, err := t.draw()
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}
