package instructions

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	tulipv2 "github.com/sol-farm/tulipv2-sdk-sub000"
	"github.com/sol-farm/tulipv2-sdk-sub000/farms"
)

// RegisterDepositTrackingAccounts is the positional account vector of
// register_deposit_tracking_account.
type RegisterDepositTrackingAccounts struct {
	Authority              solana.PublicKey // user, signer
	Vault                  solana.PublicKey
	DepositTrackingAccount solana.PublicKey
	DepositTrackingQueue   solana.PublicKey // escrow share token account
	DepositTrackingPDA     solana.PublicKey // escrow signer
	SharesMint             solana.PublicKey
	UnderlyingMint         solana.PublicKey
}

// NewRegisterDepositTrackingInstruction builds the instruction creating a
// deposit tracking account and its share escrow. Payload: 16-byte farm tag.
func NewRegisterDepositTrackingInstruction(
	accounts RegisterDepositTrackingAccounts,
	farm farms.Farm,
) (solana.Instruction, error) {
	disc, err := Discriminator(NameRegisterDepositTracking)
	if err != nil {
		return nil, err
	}

	tag := farm.Serialize()
	data := make([]byte, 0, 8+farms.TagSize)
	data = append(data, disc[:]...)
	data = append(data, tag[:]...)

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(accounts.Authority, true, true),
		solana.NewAccountMeta(accounts.Vault, false, false),
		solana.NewAccountMeta(accounts.DepositTrackingAccount, true, false),
		solana.NewAccountMeta(accounts.DepositTrackingQueue, true, false),
		solana.NewAccountMeta(accounts.DepositTrackingPDA, false, false),
		solana.NewAccountMeta(accounts.SharesMint, false, false),
		solana.NewAccountMeta(accounts.UnderlyingMint, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SysVarRentPubkey, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}

	return solana.NewInstruction(tulipv2.VaultProgramID, metas, data), nil
}

// IssueSharesAccounts is the positional account vector of issue_shares.
type IssueSharesAccounts struct {
	Authority              solana.PublicKey // user, signer
	Vault                  solana.PublicKey
	DepositTrackingAccount solana.PublicKey
	DepositTrackingPDA     solana.PublicKey
	VaultPDA               solana.PublicKey
	SharesMint             solana.PublicKey
	ReceivingSharesAccount solana.PublicKey // tracking escrow
	DepositingUnderlying   solana.PublicKey // user's underlying account
	VaultUnderlyingQueue   solana.PublicKey // vault deposit queue
}

// NewIssueSharesInstruction builds the instruction that moves underlying into
// the vault's deposit queue and mints shares into the tracking escrow.
// Payload: 16-byte farm tag followed by the u64 amount. Note the ordering is
// reversed relative to withdraw_deposit_tracking; both are wire-frozen.
func NewIssueSharesInstruction(
	accounts IssueSharesAccounts,
	farm farms.Farm,
	amount uint64,
) (solana.Instruction, error) {
	disc, err := Discriminator(NameIssueShares)
	if err != nil {
		return nil, err
	}

	tag := farm.Serialize()
	data := make([]byte, 0, 8+farms.TagSize+8)
	data = append(data, disc[:]...)
	data = append(data, tag[:]...)
	data = appendU64(data, amount)

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(accounts.Authority, true, true),
		solana.NewAccountMeta(accounts.Vault, true, false),
		solana.NewAccountMeta(accounts.DepositTrackingAccount, true, false),
		solana.NewAccountMeta(accounts.DepositTrackingPDA, false, false),
		solana.NewAccountMeta(accounts.VaultPDA, false, false),
		solana.NewAccountMeta(accounts.SharesMint, true, false),
		solana.NewAccountMeta(accounts.ReceivingSharesAccount, true, false),
		solana.NewAccountMeta(accounts.DepositingUnderlying, true, false),
		solana.NewAccountMeta(accounts.VaultUnderlyingQueue, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}

	return solana.NewInstruction(tulipv2.VaultProgramID, metas, data), nil
}

// PermissionedIssueSharesAccounts is the positional account vector of
// permissioned_issue_shares. Unlike issue_shares there is no tracking escrow:
// shares land in a caller-owned account and skip the lockup. The caller must
// be on the vault's allow list.
type PermissionedIssueSharesAccounts struct {
	Authority              solana.PublicKey // allow-listed caller, signer
	Vault                  solana.PublicKey
	VaultPDA               solana.PublicKey
	ManagementAccount      solana.PublicKey // carries the allow list
	SharesMint             solana.PublicKey
	ReceivingSharesAccount solana.PublicKey // must be owned by Authority
	DepositingUnderlying   solana.PublicKey
	VaultUnderlyingQueue   solana.PublicKey
}

// NewPermissionedIssueSharesInstruction builds the allow-listed deposit path.
// Payload matches issue_shares: 16-byte farm tag followed by the u64 amount.
func NewPermissionedIssueSharesInstruction(
	accounts PermissionedIssueSharesAccounts,
	farm farms.Farm,
	amount uint64,
) (solana.Instruction, error) {
	disc, err := Discriminator(NamePermissionedIssueShares)
	if err != nil {
		return nil, err
	}

	tag := farm.Serialize()
	data := make([]byte, 0, 8+farms.TagSize+8)
	data = append(data, disc[:]...)
	data = append(data, tag[:]...)
	data = appendU64(data, amount)

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(accounts.Authority, true, true),
		solana.NewAccountMeta(accounts.Vault, true, false),
		solana.NewAccountMeta(accounts.VaultPDA, false, false),
		solana.NewAccountMeta(accounts.ManagementAccount, false, false),
		solana.NewAccountMeta(accounts.SharesMint, true, false),
		solana.NewAccountMeta(accounts.ReceivingSharesAccount, true, false),
		solana.NewAccountMeta(accounts.DepositingUnderlying, true, false),
		solana.NewAccountMeta(accounts.VaultUnderlyingQueue, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}

	return solana.NewInstruction(tulipv2.VaultProgramID, metas, data), nil
}

// WithdrawDepositTrackingAccounts is the positional account vector of
// withdraw_deposit_tracking.
type WithdrawDepositTrackingAccounts struct {
	Authority              solana.PublicKey // user, signer
	DepositTrackingAccount solana.PublicKey
	DepositTrackingPDA     solana.PublicKey
	DepositTrackingQueue   solana.PublicKey // escrow share token account
	ReceivingSharesAccount solana.PublicKey // user-owned share account
	SharesMint             solana.PublicKey
	Vault                  solana.PublicKey
}

// NewWithdrawDepositTrackingInstruction builds the instruction releasing
// shares from the tracking escrow once the lockup elapsed. Payload: u64
// amount followed by the 16-byte farm tag.
func NewWithdrawDepositTrackingInstruction(
	accounts WithdrawDepositTrackingAccounts,
	farm farms.Farm,
	amount uint64,
) (solana.Instruction, error) {
	disc, err := Discriminator(NameWithdrawDepositTracking)
	if err != nil {
		return nil, err
	}

	tag := farm.Serialize()
	data := make([]byte, 0, 8+8+farms.TagSize)
	data = append(data, disc[:]...)
	data = appendU64(data, amount)
	data = append(data, tag[:]...)

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(accounts.Authority, true, true),
		solana.NewAccountMeta(solana.SysVarClockPubkey, false, false),
		solana.NewAccountMeta(accounts.DepositTrackingAccount, true, false),
		solana.NewAccountMeta(accounts.DepositTrackingPDA, false, false),
		solana.NewAccountMeta(accounts.DepositTrackingQueue, true, false),
		solana.NewAccountMeta(accounts.ReceivingSharesAccount, true, false),
		solana.NewAccountMeta(accounts.SharesMint, false, false),
		solana.NewAccountMeta(accounts.Vault, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}

	return solana.NewInstruction(tulipv2.VaultProgramID, metas, data), nil
}

func appendU64(data []byte, value uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	return append(data, buf[:]...)
}
