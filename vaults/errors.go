package vaults

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the vault models. Each maps to a numeric
// on-chain code via ErrorCode.
var (
	ErrNotConfigured          = errors.New("vault is not configured")
	ErrDepositCapExceeded     = errors.New("deposit cap exceeded")
	ErrInvalidFarm            = errors.New("invalid farm identifier")
	ErrSlotFull               = errors.New("no free standalone vault slot")
	ErrDuplicateChild         = errors.New("standalone vault already registered")
	ErrUnknownStandaloneVault = errors.New("standalone vault not registered")
	ErrSameSourceAndDestination = errors.New("rebalance source and destination are the same vault")
	ErrInsufficientShares     = errors.New("insufficient shares in tracking escrow")
	ErrInsufficientFunds      = errors.New("insufficient deposited balance")
	ErrInsufficientUnderlying = errors.New("insufficient underlying balance")
	ErrMathOverflow           = errors.New("math overflow")
	ErrUnauthorizedAuthority  = errors.New("unauthorized authority")
	ErrNotOnAllowList         = errors.New("caller is not on the allow list")
)

// PausedError reports an action refused because its pause flag is set.
type PausedError struct {
	Action Action
}

func (e *PausedError) Error() string {
	return fmt.Sprintf("vault action %s is paused", e.Action)
}

// LockedError reports a tracking withdrawal attempted before the lockup
// elapsed. Until carries the unlock timestamp for UI rendering.
type LockedError struct {
	Until int64
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("tracking shares are locked until %d", e.Until)
}

// InvalidRebalanceStateError reports a rebalance handler invoked out of
// sequence.
type InvalidRebalanceStateError struct {
	Expected RebalanceState
	Found    RebalanceState
}

func (e *InvalidRebalanceStateError) Error() string {
	return fmt.Sprintf("invalid rebalance state: expected %s, found %s", e.Expected, e.Found)
}

// StaleRebaseError reports a rebalance refused because the standalone vault
// rebase fell outside the slot window.
type StaleRebaseError struct {
	Slots uint64
}

func (e *StaleRebaseError) Error() string {
	return fmt.Sprintf("standalone vault rebase is %d slots stale", e.Slots)
}

// BelowMinimumRebalanceError reports a rebalance against a source vault whose
// live balance is under the configured minimum.
type BelowMinimumRebalanceError struct {
	Balance uint64
	Minimum uint64
}

func (e *BelowMinimumRebalanceError) Error() string {
	return fmt.Sprintf("source vault balance %d is below minimum rebalance amount %d", e.Balance, e.Minimum)
}

// On-chain error codes, anchor convention (custom program errors start at
// 6000, ordered as declared by the program).
const (
	codePaused uint32 = 6000 + iota
	codeNotConfigured
	codeDepositCapExceeded
	codeInvalidFarm
	codeSlotFull
	codeDuplicateChild
	codeUnknownStandaloneVault
	codeInvalidRebalanceState
	codeStaleRebase
	codeSameSourceAndDestination
	codeBelowMinimumRebalance
	codeLocked
	codeInsufficientShares
	codeInsufficientUnderlying
	codeInsufficientFunds
	codeMathOverflow
	codeUnauthorizedAuthority
	codeNotOnAllowList
)

// ErrorCode maps a vault error to the numeric code the on-chain program
// surfaces on transaction revert. Unrecognized errors map to 0.
func ErrorCode(err error) uint32 {
	var paused *PausedError
	var locked *LockedError
	var badState *InvalidRebalanceStateError
	var stale *StaleRebaseError
	var belowMin *BelowMinimumRebalanceError
	switch {
	case errors.As(err, &paused):
		return codePaused
	case errors.As(err, &locked):
		return codeLocked
	case errors.As(err, &badState):
		return codeInvalidRebalanceState
	case errors.As(err, &stale):
		return codeStaleRebase
	case errors.As(err, &belowMin):
		return codeBelowMinimumRebalance
	case errors.Is(err, ErrNotConfigured):
		return codeNotConfigured
	case errors.Is(err, ErrDepositCapExceeded):
		return codeDepositCapExceeded
	case errors.Is(err, ErrInvalidFarm):
		return codeInvalidFarm
	case errors.Is(err, ErrSlotFull):
		return codeSlotFull
	case errors.Is(err, ErrDuplicateChild):
		return codeDuplicateChild
	case errors.Is(err, ErrUnknownStandaloneVault):
		return codeUnknownStandaloneVault
	case errors.Is(err, ErrSameSourceAndDestination):
		return codeSameSourceAndDestination
	case errors.Is(err, ErrInsufficientShares):
		return codeInsufficientShares
	case errors.Is(err, ErrInsufficientFunds):
		return codeInsufficientFunds
	case errors.Is(err, ErrInsufficientUnderlying):
		return codeInsufficientUnderlying
	case errors.Is(err, ErrMathOverflow):
		return codeMathOverflow
	case errors.Is(err, ErrUnauthorizedAuthority):
		return codeUnauthorizedAuthority
	case errors.Is(err, ErrNotOnAllowList):
		return codeNotOnAllowList
	default:
		return 0
	}
}
