package vaults

import (
	"sort"

	"github.com/gagliardetto/solana-go"
)

// ProgramType selects which external lending protocol a standalone vault
// deposits into, and therefore which account vector its withdraw path needs.
type ProgramType uint8

const (
	ProgramTypeSplUnmodified ProgramType = iota
	ProgramTypeSplModifiedSolend
	ProgramTypeMangoV3
	ProgramTypeUnknown
)

func (p ProgramType) String() string {
	switch p {
	case ProgramTypeSplUnmodified:
		return "spl-unmodified"
	case ProgramTypeSplModifiedSolend:
		return "spl-modified-solend"
	case ProgramTypeMangoV3:
		return "mango-v3"
	default:
		return "unknown"
	}
}

// StandaloneVaultCacheV1 is one child slot in the multi-deposit optimizer.
// Serialized size 160 bytes. A default slot has VaultAddress equal to the
// all-zero sentinel.
type StandaloneVaultCacheV1 struct {
	VaultAddress         solana.PublicKey // 32
	DepositedBalance     uint64           // 8
	ProgramType          ProgramType      // 1
	ProgramTypeAlignment [7]uint8         // 7 padding
	ProgramAddress       solana.PublicKey // 32, external lending program
	SharesMint           solana.PublicKey // 32
	SharesAccount        solana.PublicKey // 32, parent-owned position
	Buffer               [16]uint8        // 16 reserved
}

// IsDefault reports whether the slot is unoccupied.
func (c *StandaloneVaultCacheV1) IsDefault() bool {
	return c.VaultAddress.IsZero()
}

// MultiDepositOptimizerV1 is the parent vault issuing a single share against
// the balance pooled across up to six standalone children. Serialized size
// 2064 bytes (2072 on chain with the discriminator).
type MultiDepositOptimizerV1 struct {
	Base                   VaultBaseV1                                  // 512
	LastRebaseSlot         uint64                                       // 8
	StandaloneVaults       [MaxStandaloneVaults]StandaloneVaultCacheV1  // 960
	TargetVault            solana.PublicKey                             // 32, deposit sweep destination
	StateTransitionAccount solana.PublicKey                             // 32
	MinimumRebalanceAmount uint64                                       // 8
	Buffer                 [512]uint8                                   // 512 reserved
}

// MaxStandaloneVaults is the fixed child slot count.
const MaxStandaloneVaults = 6

// MultiDepositSerializedSize is the borsh size of MultiDepositOptimizerV1.
const MultiDepositSerializedSize = 2064

// ActiveDeposits returns the non-default, non-zero-balance child slots,
// deduplicated by vault address.
func (m *MultiDepositOptimizerV1) ActiveDeposits() []StandaloneVaultCacheV1 {
	seen := make(map[solana.PublicKey]struct{}, MaxStandaloneVaults)
	active := make([]StandaloneVaultCacheV1, 0, MaxStandaloneVaults)
	for _, slot := range m.StandaloneVaults {
		if slot.IsDefault() || slot.DepositedBalance == 0 {
			continue
		}
		if _, dup := seen[slot.VaultAddress]; dup {
			continue
		}
		seen[slot.VaultAddress] = struct{}{}
		active = append(active, slot)
	}
	return active
}

// TopTwoDeposits returns the two largest active deposits, largest first. The
// second element is a default slot when only one child is funded. Fails with
// ErrInsufficientFunds when no child holds a balance.
func (m *MultiDepositOptimizerV1) TopTwoDeposits() ([2]StandaloneVaultCacheV1, error) {
	var out [2]StandaloneVaultCacheV1

	active := m.ActiveDeposits()
	if len(active) == 0 {
		return out, ErrInsufficientFunds
	}
	sortByBalance(active)

	out[0] = active[len(active)-1]
	if len(active) > 1 {
		out[1] = active[len(active)-2]
	}
	return out, nil
}

// BottomTwoDeposits sorts all six slots ascending by balance, walks to the
// first funded slot and returns it together with its successor. The second
// element is a default slot when only one child is funded.
func (m *MultiDepositOptimizerV1) BottomTwoDeposits() ([2]StandaloneVaultCacheV1, error) {
	var out [2]StandaloneVaultCacheV1

	slots := make([]StandaloneVaultCacheV1, MaxStandaloneVaults)
	copy(slots, m.StandaloneVaults[:])
	sortByBalance(slots)

	for idx, slot := range slots {
		if slot.IsDefault() || slot.DepositedBalance == 0 {
			continue
		}
		out[0] = slot
		if idx+1 < len(slots) {
			out[1] = slots[idx+1]
		}
		return out, nil
	}
	return out, ErrInsufficientFunds
}

// FreeStandaloneSpace reports whether a child slot is still available.
func (m *MultiDepositOptimizerV1) FreeStandaloneSpace() bool {
	return m.StandaloneVaults[MaxStandaloneVaults-1].IsDefault()
}

// FreeStandaloneSpaceCount returns the number of unoccupied child slots.
func (m *MultiDepositOptimizerV1) FreeStandaloneSpaceCount() int {
	free := 0
	for _, slot := range m.StandaloneVaults {
		if slot.IsDefault() {
			free++
		}
	}
	return free
}

// StandaloneExists reports whether the vault occupies a child slot.
func (m *MultiDepositOptimizerV1) StandaloneExists(vault solana.PublicKey) bool {
	return m.standaloneIndex(vault) >= 0
}

// RegisterStandaloneVault inserts a new child into the first free slot.
func (m *MultiDepositOptimizerV1) RegisterStandaloneVault(cache StandaloneVaultCacheV1) error {
	if cache.IsDefault() {
		return ErrUnknownStandaloneVault
	}
	if m.StandaloneExists(cache.VaultAddress) {
		return ErrDuplicateChild
	}
	if m.FreeStandaloneSpaceCount() == 0 {
		return ErrSlotFull
	}
	for idx := range m.StandaloneVaults {
		if m.StandaloneVaults[idx].IsDefault() {
			m.StandaloneVaults[idx] = cache
			return nil
		}
	}
	return ErrSlotFull
}

// RemoveStandaloneVault clears a child slot back to default. Only permitted
// once the child's deposited balance has been drained to zero.
func (m *MultiDepositOptimizerV1) RemoveStandaloneVault(vault solana.PublicKey) error {
	idx := m.standaloneIndex(vault)
	if idx < 0 {
		return ErrUnknownStandaloneVault
	}
	if m.StandaloneVaults[idx].DepositedBalance != 0 {
		return ErrInsufficientFunds
	}
	m.StandaloneVaults[idx] = StandaloneVaultCacheV1{}
	return nil
}

// IssueShares mirrors the issue_shares handler: it gates on configuration,
// pause flags and the deposit cap, mints SharesToGive(amount) into the
// tracking escrow and sweeps the deposit to the target child when one is
// configured. Returns the minted share amount.
func (m *MultiDepositOptimizerV1) IssueShares(tracking *DepositTrackingV1, amount uint64, now int64) (uint64, error) {
	if err := m.Base.ensureCan(ActionDeposit); err != nil {
		return 0, err
	}
	if m.Base.DepositsCapped(amount) {
		return 0, ErrDepositCapExceeded
	}

	minted, err := m.applyDeposit(amount)
	if err != nil {
		return 0, err
	}
	tracking.RecordDeposit(minted, amount, now)
	return minted, nil
}

// applyDeposit computes every new balance before mutating anything, matching
// the all-or-nothing commit of the on-chain handler.
func (m *MultiDepositOptimizerV1) applyDeposit(amount uint64) (uint64, error) {
	minted, err := m.Base.SharesToGive(amount)
	if err != nil {
		return 0, err
	}
	newShares, err := checkedAdd(m.Base.TotalShares, minted)
	if err != nil {
		return 0, err
	}
	newDeposited, err := checkedAdd(m.Base.TotalDepositedBalance, amount)
	if err != nil {
		return 0, err
	}

	targetIdx := m.standaloneIndex(m.TargetVault)
	targetBalance := uint64(0)
	if targetIdx >= 0 {
		targetBalance, err = checkedAdd(m.StandaloneVaults[targetIdx].DepositedBalance, amount)
		if err != nil {
			return 0, err
		}
	}

	m.Base.TotalShares = newShares
	m.Base.TotalDepositedBalance = newDeposited
	if targetIdx >= 0 {
		m.StandaloneVaults[targetIdx].DepositedBalance = targetBalance
	}
	return minted, nil
}

// WithdrawFromStandalone mirrors withdraw_multi_deposit_optimizer_vault for a
// caller-chosen child: burns shares against the parent, computes the owed
// underlying and drains it from the child's position. Returns the underlying
// released.
func (m *MultiDepositOptimizerV1) WithdrawFromStandalone(child solana.PublicKey, shares uint64) (uint64, error) {
	if err := m.Base.ensureCan(ActionWithdraw); err != nil {
		return 0, err
	}

	idx := m.standaloneIndex(child)
	if idx < 0 {
		return 0, ErrUnknownStandaloneVault
	}

	underlying, err := m.Base.UnderlyingToRedeem(shares)
	if err != nil {
		return 0, err
	}
	if m.StandaloneVaults[idx].DepositedBalance < underlying {
		return 0, ErrInsufficientFunds
	}

	newShares, err := checkedSub(m.Base.TotalShares, shares)
	if err != nil {
		return 0, err
	}
	newDeposited, err := checkedSub(m.Base.TotalDepositedBalance, underlying)
	if err != nil {
		return 0, err
	}
	m.StandaloneVaults[idx].DepositedBalance -= underlying
	m.Base.TotalShares = newShares
	m.Base.TotalDepositedBalance = newDeposited
	return underlying, nil
}

// TotalStandaloneBalance sums deposited balances across the child slots.
func (m *MultiDepositOptimizerV1) TotalStandaloneBalance() (uint64, error) {
	total := uint64(0)
	for _, slot := range m.StandaloneVaults {
		next, err := checkedAdd(total, slot.DepositedBalance)
		if err != nil {
			return 0, err
		}
		total = next
	}
	return total, nil
}

func (m *MultiDepositOptimizerV1) standaloneIndex(vault solana.PublicKey) int {
	if vault.IsZero() {
		return -1
	}
	for idx := range m.StandaloneVaults {
		if m.StandaloneVaults[idx].VaultAddress.Equals(vault) {
			return idx
		}
	}
	return -1
}

// sortByBalance sorts ascending on balance only. The sort is stable so equal
// balances keep insertion order; addresses never tie-break.
func sortByBalance(slots []StandaloneVaultCacheV1) {
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].DepositedBalance < slots[j].DepositedBalance
	})
}
