package game

// NextTurn decides the turn pointer after actorID finished acting. It
// must be evaluated against the hypothetical post-action table, not the
// last synced snapshot, because the store round-trip has not yet been
// observed by the caller.
//
// The actor keeps the turn while they still have a playing hand (the
// next hand from a split). Otherwise the first later player in turn
// order with any playing hand acts next. Otherwise the dealer plays.
// Total: always returns a seated player id or TurnDealer.
func (t *Table) NextTurn(actorID string) string {
	if p, ok := t.Players[actorID]; ok && p.HasPlayingHand() {
		return actorID
	}
	order := t.TurnOrder()
	start := 0
	for i, id := range order {
		if id == actorID {
			start = i + 1
			break
		}
	}
	// Earlier seats finished before the turn reached the actor, so the
	// scan only needs to look forward.
	for _, id := range order[start:] {
		if t.Players[id].HasPlayingHand() {
			return id
		}
	}
	return TurnDealer
}
