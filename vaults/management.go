package vaults

import (
	"github.com/gagliardetto/solana-go"
)

// ManagementV1 is the vault's management record: the co-signing authority
// for operator actions and the allow list consulted by
// permissioned_issue_shares.
type ManagementV1 struct {
	Authority solana.PublicKey   // 32
	AllowList [16]solana.PublicKey // 512, zero entries are unused
	Buffer    [64]uint8          // 64 reserved
}

// Allowed reports whether the caller appears on the allow list.
func (mg *ManagementV1) Allowed(caller solana.PublicKey) bool {
	for _, entry := range mg.AllowList {
		if !entry.IsZero() && entry.Equals(caller) {
			return true
		}
	}
	return false
}

// PermissionedIssueShares mirrors the permissioned_issue_shares handler:
// identical gating to IssueShares, but the caller must be allow-listed and
// must own the receiving share account, and no tracking escrow or lockup is
// involved. Returns the minted share amount.
func (m *MultiDepositOptimizerV1) PermissionedIssueShares(
	management *ManagementV1,
	caller solana.PublicKey,
	receivingOwner solana.PublicKey,
	amount uint64,
) (uint64, error) {
	if !management.Allowed(caller) {
		return 0, ErrNotOnAllowList
	}
	if !receivingOwner.Equals(caller) {
		return 0, ErrUnauthorizedAuthority
	}
	if err := m.Base.ensureCan(ActionDeposit); err != nil {
		return 0, err
	}
	if m.Base.DepositsCapped(amount) {
		return 0, ErrDepositCapExceeded
	}

	return m.applyDeposit(amount)
}
