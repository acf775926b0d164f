package vaults

import (
	"github.com/gagliardetto/solana-go"
)

// RebalanceState tracks the three-phase transfer of underlying liquidity
// between two standalone vaults. The only valid cycle is
// Inactive -> Started -> VaultARemoved -> VaultABRebalanced -> Inactive.
type RebalanceState uint8

const (
	RebalanceInactive RebalanceState = iota
	RebalanceStarted
	RebalanceVaultARemoved
	RebalanceVaultABRebalanced
)

func (s RebalanceState) String() string {
	switch s {
	case RebalanceInactive:
		return "inactive"
	case RebalanceStarted:
		return "started"
	case RebalanceVaultARemoved:
		return "vault-a-removed"
	case RebalanceVaultABRebalanced:
		return "vault-ab-rebalanced"
	default:
		return "invalid"
	}
}

// Next returns the state a successful transition out of s lands in.
func (s RebalanceState) Next() RebalanceState {
	switch s {
	case RebalanceInactive:
		return RebalanceStarted
	case RebalanceStarted:
		return RebalanceVaultARemoved
	case RebalanceVaultARemoved:
		return RebalanceVaultABRebalanced
	default:
		return RebalanceInactive
	}
}

// StandaloneVaultRebaseSlotWindow is the maximum slot lag of the standalone
// vault rebase tolerated when starting a rebalance.
const StandaloneVaultRebaseSlotWindow uint64 = 360

// RebalanceStateTransitionV1 is the per-parent transition record. Serialized
// size 400 bytes (408 on chain with the discriminator).
type RebalanceStateTransitionV1 struct {
	VaultPubkey         solana.PublicKey // 32, owning multi-deposit vault
	VaultAddressA       solana.PublicKey // 32, source child
	VaultAddressB       solana.PublicKey // 32, destination child
	ProgramTypeA        ProgramType      // 1
	ProgramTypeB        ProgramType      // 1
	State               RebalanceState   // 1
	StateAlignment      [5]uint8         // 5 padding
	VaultRemovalAmountA uint64           // 8, intended removal from A
	VaultSupplyAmountB  uint64           // 8, observed amount supplied to B
	LastCompletionTS    int64            // 8
	Buffer              [272]uint8       // 272 reserved
}

// RebalanceStateTransitionSerializedSize is the borsh size of the record.
const RebalanceStateTransitionSerializedSize = 400

// Start begins a rebalance moving amount underlying out of child a and into
// child b. The source's live balance is checked against the parent's
// minimum, and the standalone rebase must have happened inside the slot
// window. No fields change on failure.
func (t *RebalanceStateTransitionV1) Start(
	parent *MultiDepositOptimizerV1,
	a solana.PublicKey,
	b solana.PublicKey,
	amount uint64,
	currentSlot uint64,
) error {
	if t.State != RebalanceInactive {
		return &InvalidRebalanceStateError{Expected: RebalanceInactive, Found: t.State}
	}
	if err := parent.Base.ensureCan(ActionRebalance); err != nil {
		return err
	}
	if a.Equals(b) {
		return ErrSameSourceAndDestination
	}

	sourceIdx := parent.standaloneIndex(a)
	if sourceIdx < 0 {
		return ErrUnknownStandaloneVault
	}
	destIdx := parent.standaloneIndex(b)
	if destIdx < 0 {
		return ErrUnknownStandaloneVault
	}

	if currentSlot > parent.LastRebaseSlot {
		if lag := currentSlot - parent.LastRebaseSlot; lag > StandaloneVaultRebaseSlotWindow {
			return &StaleRebaseError{Slots: lag}
		}
	}

	source := &parent.StandaloneVaults[sourceIdx]
	if source.DepositedBalance < parent.MinimumRebalanceAmount {
		return &BelowMinimumRebalanceError{
			Balance: source.DepositedBalance,
			Minimum: parent.MinimumRebalanceAmount,
		}
	}
	if amount > source.DepositedBalance {
		return ErrInsufficientFunds
	}

	t.VaultAddressA = a
	t.VaultAddressB = b
	t.ProgramTypeA = source.ProgramType
	t.ProgramTypeB = parent.StandaloneVaults[destIdx].ProgramType
	t.VaultRemovalAmountA = amount
	t.VaultSupplyAmountB = 0
	t.State = RebalanceStarted
	return nil
}

// WithdrawVaultA records the release of underlying out of the source child.
// observed is the amount actually received after the external protocol's
// rounding and interest accrual; it may be less than the intended amount.
// The state stays Started on failure so the transition is retryable.
func (t *RebalanceStateTransitionV1) WithdrawVaultA(parent *MultiDepositOptimizerV1, observed uint64) error {
	if t.State != RebalanceStarted {
		return &InvalidRebalanceStateError{Expected: RebalanceStarted, Found: t.State}
	}

	idx := parent.standaloneIndex(t.VaultAddressA)
	if idx < 0 {
		return ErrUnknownStandaloneVault
	}
	balance, err := checkedSub(parent.StandaloneVaults[idx].DepositedBalance, observed)
	if err != nil {
		return err
	}

	parent.StandaloneVaults[idx].DepositedBalance = balance
	t.VaultSupplyAmountB = observed
	t.State = RebalanceVaultARemoved
	return nil
}

// DepositVaultB supplies the observed amount into the destination child.
func (t *RebalanceStateTransitionV1) DepositVaultB(parent *MultiDepositOptimizerV1) error {
	if t.State != RebalanceVaultARemoved {
		return &InvalidRebalanceStateError{Expected: RebalanceVaultARemoved, Found: t.State}
	}

	idx := parent.standaloneIndex(t.VaultAddressB)
	if idx < 0 {
		return ErrUnknownStandaloneVault
	}
	balance, err := checkedAdd(parent.StandaloneVaults[idx].DepositedBalance, t.VaultSupplyAmountB)
	if err != nil {
		return err
	}

	parent.StandaloneVaults[idx].DepositedBalance = balance
	t.State = RebalanceVaultABRebalanced
	return nil
}

// Finalize completes the cycle: all transition fields are cleared except the
// completion timestamp.
func (t *RebalanceStateTransitionV1) Finalize(now int64) error {
	if t.State != RebalanceVaultABRebalanced {
		return &InvalidRebalanceStateError{Expected: RebalanceVaultABRebalanced, Found: t.State}
	}
	t.reset()
	t.LastCompletionTS = now
	return nil
}

// ForceFinalize unconditionally returns a stuck transition to Inactive. The
// operator must ensure the underlying transfer actually completed first;
// balances are not corrected retroactively.
func (t *RebalanceStateTransitionV1) ForceFinalize() error {
	if t.State == RebalanceInactive {
		return &InvalidRebalanceStateError{Expected: RebalanceStarted, Found: RebalanceInactive}
	}
	t.State = RebalanceInactive
	return nil
}

func (t *RebalanceStateTransitionV1) reset() {
	t.VaultAddressA = solana.PublicKey{}
	t.VaultAddressB = solana.PublicKey{}
	t.ProgramTypeA = ProgramTypeUnknown
	t.ProgramTypeB = ProgramTypeUnknown
	t.VaultRemovalAmountA = 0
	t.VaultSupplyAmountB = 0
	t.State = RebalanceInactive
}
