// Package instructions assembles the instruction payloads and account-meta
// vectors consumed by the Tulip V2 vaults program. Builders validate their
// inputs and return errors; they never panic on user-supplied data.
package instructions

import (
	"crypto/sha256"
	"fmt"
	"sync"
)

// Canonical instruction names. The first eight bytes of
// sha256("global:" + name) form the wire discriminator.
const (
	NameRegisterDepositTracking    = "register_deposit_tracking_account"
	NameIssueShares                = "issue_shares"
	NamePermissionedIssueShares    = "permissioned_issue_shares"
	NameWithdrawDepositTracking    = "withdraw_deposit_tracking"
	NameWithdrawMultiDepositVault  = "withdraw_multi_deposit_optimizer_vault"
	NameRebalanceStart             = "rebalance_start"
	NameRebalanceWithdrawVaultA    = "rebalance_withdraw_a"
	NameRebalanceDepositVaultB     = "rebalance_deposit_b"
	NameRebalanceFinalize          = "rebalance_finalize"
	NameRebalanceFinalizeForce     = "rebalance_finalize_force"
)

var instructionNames = []string{
	NameRegisterDepositTracking,
	NameIssueShares,
	NamePermissionedIssueShares,
	NameWithdrawDepositTracking,
	NameWithdrawMultiDepositVault,
	NameRebalanceStart,
	NameRebalanceWithdrawVaultA,
	NameRebalanceDepositVaultB,
	NameRebalanceFinalize,
	NameRebalanceFinalizeForce,
}

var (
	discriminatorOnce  sync.Once
	discriminatorTable map[string][8]byte
)

// DiscriminatorNotFoundError reports a lookup for a name outside the table.
type DiscriminatorNotFoundError struct {
	Name string
}

func (e *DiscriminatorNotFoundError) Error() string {
	return fmt.Sprintf("no instruction discriminator for %q", e.Name)
}

// Discriminator returns the 8-byte discriminator for a canonical instruction
// name. The table is built once before first use and is read-only afterwards,
// so concurrent lookups need no locking.
func Discriminator(name string) ([8]byte, error) {
	discriminatorOnce.Do(func() {
		discriminatorTable = make(map[string][8]byte, len(instructionNames))
		for _, ixName := range instructionNames {
			discriminatorTable[ixName] = sighash(ixName)
		}
	})
	disc, ok := discriminatorTable[name]
	if !ok {
		return [8]byte{}, &DiscriminatorNotFoundError{Name: name}
	}
	return disc, nil
}

func sighash(ixName string) [8]byte {
	hash := sha256.Sum256([]byte("global:" + ixName))
	var out [8]byte
	copy(out[:], hash[:8])
	return out
}
