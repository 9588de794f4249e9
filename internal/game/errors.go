package game

import "errors"

// Validation errors are local to the acting participant: the action is
// rejected before any write happens, so no other client observes it.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("bet amount must be positive")
	ErrInvalidDouble     = errors.New("double only allowed on the initial two cards")
	ErrInvalidSplit      = errors.New("split requires two cards of equal rank")
	ErrNoActiveHand      = errors.New("no active hand")
	ErrBetsNotPlaced     = errors.New("every player must place a bet before the deal")
	ErrNotHost           = errors.New("only the host may do this")
	ErrWrongPhase        = errors.New("action not allowed in this phase")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrUnknownPlayer     = errors.New("unknown player")

	// ErrShoeExhausted is the one fatal error: drawing from an empty
	// shoe mid-round aborts the round for the whole table.
	ErrShoeExhausted = errors.New("shoe exhausted")

	// ErrStaleWrite names the conflict class the store cannot detect:
	// two clients writing from different snapshots of the same path.
	// Nothing returns it today; turn gating keeps the window narrow and
	// the later write wins.
	ErrStaleWrite = errors.New("stale write")
)
