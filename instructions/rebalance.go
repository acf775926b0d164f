package instructions

import (
	"github.com/gagliardetto/solana-go"

	tulipv2 "github.com/sol-farm/tulipv2-sdk-sub000"
)

// RebalanceAccounts is the base positional account vector shared by the
// rebalance management instructions. Authority is the vault's management
// authority; only it may drive the state machine.
type RebalanceAccounts struct {
	Authority           solana.PublicKey // operator, signer
	MultiVault          solana.PublicKey
	MultiVaultPDA       solana.PublicKey
	StateTransition     solana.PublicKey // rebalance transition record
	VaultA              solana.PublicKey // source child
	VaultB              solana.PublicKey // destination child
	TransitionUnderlyingAccount solana.PublicKey // holds funds between phases
}

func (a RebalanceAccounts) metas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Authority, true, true),
		solana.NewAccountMeta(a.MultiVault, true, false),
		solana.NewAccountMeta(a.MultiVaultPDA, false, false),
		solana.NewAccountMeta(a.StateTransition, true, false),
		solana.NewAccountMeta(a.VaultA, true, false),
		solana.NewAccountMeta(a.VaultB, true, false),
		solana.NewAccountMeta(a.TransitionUnderlyingAccount, true, false),
		solana.NewAccountMeta(solana.SysVarClockPubkey, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
}

// NewRebalanceStartInstruction begins a rebalance of amount underlying from
// child A to child B. Payload: u64 amount.
func NewRebalanceStartInstruction(accounts RebalanceAccounts, amount uint64) (solana.Instruction, error) {
	disc, err := Discriminator(NameRebalanceStart)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, 8+8)
	data = append(data, disc[:]...)
	data = appendU64(data, amount)
	return solana.NewInstruction(tulipv2.VaultProgramID, accounts.metas(), data), nil
}

// NewRebalanceWithdrawVaultAInstruction drives the Started -> VaultARemoved
// phase: the source child's external protocol releases the intended amount
// into the transition record's underlying account. The protocol suffix of
// child A follows the base vector.
func NewRebalanceWithdrawVaultAInstruction(
	accounts RebalanceAccounts,
	standalone StandaloneWithdrawAccounts,
) (solana.Instruction, error) {
	disc, err := Discriminator(NameRebalanceWithdrawVaultA)
	if err != nil {
		return nil, err
	}
	suffix, err := validateStandaloneAccounts(standalone)
	if err != nil {
		return nil, err
	}
	metas := append(accounts.metas(), suffix...)
	return solana.NewInstruction(tulipv2.VaultProgramID, metas, disc[:]), nil
}

// NewRebalanceDepositVaultBInstruction drives the VaultARemoved ->
// VaultABRebalanced phase: the observed amount is supplied into child B's
// external protocol. The protocol suffix of child B follows the base vector.
func NewRebalanceDepositVaultBInstruction(
	accounts RebalanceAccounts,
	standalone StandaloneWithdrawAccounts,
) (solana.Instruction, error) {
	disc, err := Discriminator(NameRebalanceDepositVaultB)
	if err != nil {
		return nil, err
	}
	suffix, err := validateStandaloneAccounts(standalone)
	if err != nil {
		return nil, err
	}
	metas := append(accounts.metas(), suffix...)
	return solana.NewInstruction(tulipv2.VaultProgramID, metas, disc[:]), nil
}

// NewRebalanceFinalizeInstruction clears the transition record back to
// Inactive and stamps the completion time.
func NewRebalanceFinalizeInstruction(accounts RebalanceAccounts) (solana.Instruction, error) {
	disc, err := Discriminator(NameRebalanceFinalize)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(tulipv2.VaultProgramID, accounts.metas(), disc[:]), nil
}

// NewRebalanceFinalizeForceInstruction force-resets a stuck transition. Its
// sole on-chain effect is state := Inactive; balances are not corrected.
func NewRebalanceFinalizeForceInstruction(accounts RebalanceAccounts) (solana.Instruction, error) {
	disc, err := Discriminator(NameRebalanceFinalizeForce)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(tulipv2.VaultProgramID, accounts.metas(), disc[:]), nil
}
