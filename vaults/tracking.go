package vaults

import (
	"github.com/gagliardetto/solana-go"
)

// DepositTrackingV1 is the per-(vault, user) record holding minted shares
// under the lockup. Serialized size 152 bytes (160 on chain with the
// discriminator). The escrow token account is owned by a signer derived from
// this account's address and is never shared across users.
type DepositTrackingV1 struct {
	Owner                    solana.PublicKey // 32
	Vault                    solana.PublicKey // 32
	PDANonce                 uint8            // 1, tracking signer bump
	QueueNonce               uint8            // 1, lockup queue bump
	Alignment                [6]uint8         // 6 padding
	Shares                   uint64           // 8, escrowed share balance
	DepositedBalance         uint64           // 8
	LastDepositTime          int64            // 8
	PendingWithdrawAmount    uint64           // 8
	TotalDepositedUnderlying uint64           // 8
	TotalWithdrawnUnderlying uint64           // 8
	Buffer                   [32]uint8        // 32 reserved
}

// DepositTrackingSerializedSize is the borsh size of DepositTrackingV1.
const DepositTrackingSerializedSize = 152

// RecordDeposit credits freshly minted shares to the escrow and restamps the
// lockup clock. Every deposit restarts the window for the whole escrow.
func (d *DepositTrackingV1) RecordDeposit(shares, underlying uint64, now int64) {
	d.Shares += shares
	d.DepositedBalance += underlying
	d.TotalDepositedUnderlying += underlying
	d.LastDepositTime = now
}

// WithdrawShares releases shares from the escrow to the user once the lockup
// has elapsed. The shares remain fungible vault shares afterwards; the
// tracking account simply stops tracking them.
func (d *DepositTrackingV1) WithdrawShares(amount uint64, now int64) error {
	if IsLocked(d.LastDepositTime, now) {
		return &LockedError{Until: d.LastDepositTime + LockupSeconds}
	}
	if amount > d.Shares {
		return ErrInsufficientShares
	}
	d.Shares -= amount
	return nil
}

// UnlockedAt returns the first timestamp at which the escrow may release
// shares.
func (d *DepositTrackingV1) UnlockedAt() int64 {
	return d.LastDepositTime + LockupSeconds + 1
}

// RecordUnderlyingWithdrawal updates the cumulative totals after shares have
// been redeemed against the vault for underlying.
func (d *DepositTrackingV1) RecordUnderlyingWithdrawal(underlying uint64) {
	d.TotalWithdrawnUnderlying += underlying
	if underlying >= d.DepositedBalance {
		d.DepositedBalance = 0
		return
	}
	d.DepositedBalance -= underlying
}
