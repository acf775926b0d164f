// Package vaults models the on-chain state of the Tulip V2 vaults: the
// tokenized-share base layer, the multi-deposit optimizer and its standalone
// children, the rebalance state machine, and per-user deposit tracking.
//
// The structs mirror the persisted account layouts byte for byte (field
// order, alignment padding and trailing reserve buffers included) so they can
// be decoded straight from account data. The methods mirror the on-chain
// handler semantics and are used for client-side preflight and testing; they
// never wrap on overflow.
package vaults

import (
	"math"
	"math/big"

	"github.com/gagliardetto/solana-go"
)

// Action identifies a pausable vault operation.
type Action uint8

const (
	ActionDeposit Action = iota
	ActionWithdraw
	ActionCompound
	ActionRebase
	ActionRebalance
	ActionDepositAndWithdrawal
	ActionAll
)

func (a Action) String() string {
	switch a {
	case ActionDeposit:
		return "deposit"
	case ActionWithdraw:
		return "withdraw"
	case ActionCompound:
		return "compound"
	case ActionRebase:
		return "rebase"
	case ActionRebalance:
		return "rebalance"
	case ActionDepositAndWithdrawal:
		return "deposit-and-withdrawal"
	case ActionAll:
		return "all"
	default:
		return "unknown"
	}
}

// FeesV1 is the fee record embedded in every vault. 112 bytes.
type FeesV1 struct {
	FeeMultiplier   uint64           // 8, divisor applied to the rates below
	ControllerFee   uint64           // 8
	PlatformFee     uint64           // 8
	WithdrawFee     uint64           // 8
	DepositFee      uint64           // 8
	FeeWallet       solana.PublicKey // 32
	TotalCollectedA uint64           // 8
	TotalCollectedB uint64           // 8, second total for dual-reward vaults
	Buffer          [24]uint8        // 24 reserved
}

// VaultBaseV1 is the tokenized-share accounting record embedded in every
// vault variant. Serialized size 512 bytes; the on-chain account prepends the
// 8-byte discriminator.
type VaultBaseV1 struct {
	Nonce                    uint8            // 1
	Tag                      [32]uint8        // 32
	PDA                      solana.PublicKey // 32, vault signer
	PDANonce                 uint8            // 1
	PDAAlignment             [6]uint8         // 6 padding
	TotalDepositedBalance    uint64           // 8
	TotalShares              uint64           // 8
	UnderlyingMint           solana.PublicKey // 32
	UnderlyingWithdrawQueue  solana.PublicKey // 32
	UnderlyingDepositQueue   solana.PublicKey // 32
	UnderlyingCompoundQueue  solana.PublicKey // 32
	SharesMint               solana.PublicKey // 32
	Authority                solana.PublicKey // 32, management authority
	WithdrawsPaused          uint8            // 1
	DepositsPaused           uint8            // 1
	CompoundPaused           uint8            // 1
	SupportsCompound         uint8            // 1
	RebasePaused             uint8            // 1
	RebalancePaused          uint8            // 1
	StateAlignment           [2]uint8         // 2 padding
	PrecisionFactor          uint64           // 8
	LastCompoundTime         int64            // 8
	CompoundInterval         int64            // 8
	SlippageTolerance        uint8            // 1
	SlipAlignment            [7]uint8         // 7 padding
	Fees                     FeesV1           // 112
	Farm                     [2]uint64        // 16, (family, variant)
	Configured               uint8            // 1
	ConfiguredAlignment      [7]uint8         // 7 padding
	PendingFees              uint64           // 8
	TotalDepositedBalanceCap uint64           // 8, 0 = uncapped
	Buffer                   [40]uint8        // 40 reserved
}

// VaultBaseSerializedSize is the borsh size of VaultBaseV1.
const VaultBaseSerializedSize = 512

// SharesToGive returns the vault shares minted for depositing amount
// underlying. An empty pool mints 1:1. Intermediate math is 128-bit; a result
// that does not fit u64 is ErrMathOverflow.
func (b *VaultBaseV1) SharesToGive(amount uint64) (uint64, error) {
	if b.TotalDepositedBalance == 0 {
		return amount, nil
	}
	return mulDivFloor(amount, b.TotalShares, b.TotalDepositedBalance)
}

// UnderlyingToRedeem returns the underlying owed for burning shares.
func (b *VaultBaseV1) UnderlyingToRedeem(shares uint64) (uint64, error) {
	return mulDivFloor(shares, b.TotalDepositedBalance, b.TotalShares)
}

// SyncShares assigns the live share-mint supply. The mint supply is the
// authoritative source for TotalShares and must be synced before any
// computation that depends on it.
func (b *VaultBaseV1) SyncShares(mintSupply uint64) {
	b.TotalShares = mintSupply
}

// DepositsCapped reports whether accepting incoming underlying would exceed
// the configured cap. A zero cap never limits.
func (b *VaultBaseV1) DepositsCapped(incoming uint64) bool {
	if b.TotalDepositedBalanceCap == 0 {
		return false
	}
	if b.TotalDepositedBalance > math.MaxUint64-incoming {
		return true
	}
	return b.TotalDepositedBalance+incoming > b.TotalDepositedBalanceCap
}

// CanDo reports whether the vault accepts the given action: it must be
// configured and the corresponding pause flag(s) must be clear.
func (b *VaultBaseV1) CanDo(action Action) bool {
	if b.Configured != 1 {
		return false
	}
	switch action {
	case ActionDeposit:
		return b.DepositsPaused == 0
	case ActionWithdraw:
		return b.WithdrawsPaused == 0
	case ActionCompound:
		return b.CompoundPaused == 0
	case ActionRebase:
		return b.RebasePaused == 0
	case ActionRebalance:
		return b.RebalancePaused == 0
	case ActionDepositAndWithdrawal:
		return b.DepositsPaused == 0 && b.WithdrawsPaused == 0
	case ActionAll:
		return b.DepositsPaused == 0 && b.WithdrawsPaused == 0 &&
			b.CompoundPaused == 0 && b.RebasePaused == 0 && b.RebalancePaused == 0
	default:
		return false
	}
}

// ensureCan converts a CanDo failure into the matching handler error.
func (b *VaultBaseV1) ensureCan(action Action) error {
	if b.Configured != 1 {
		return ErrNotConfigured
	}
	if !b.CanDo(action) {
		return &PausedError{Action: action}
	}
	return nil
}

// IsLocked reports whether shares deposited at lastDepositTime are still
// inside the lockup window at now.
func IsLocked(lastDepositTime, now int64) bool {
	return lastDepositTime+LockupSeconds >= now
}

func mulDivFloor(a, b, denominator uint64) (uint64, error) {
	if denominator == 0 {
		return 0, ErrMathOverflow
	}
	out := new(big.Int).SetUint64(a)
	out.Mul(out, new(big.Int).SetUint64(b))
	out.Div(out, new(big.Int).SetUint64(denominator))
	if !out.IsUint64() {
		return 0, ErrMathOverflow
	}
	return out.Uint64(), nil
}

func checkedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrMathOverflow
	}
	return a + b, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrMathOverflow
	}
	return a - b, nil
}
