// Package pda derives the program-owned addresses used by the Tulip V2
// vaults program. Seed order is wire-compatible with the deployed program and
// must not change.
package pda

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	tulipv2 "github.com/sol-farm/tulipv2-sdk-sub000"
	"github.com/sol-farm/tulipv2-sdk-sub000/farms"
)

// DeriveVaultPDA derives a vault account from its farm identifier and tag.
func DeriveVaultPDA(farm farms.Farm, tag [32]byte) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		[]byte("v1"),
		u64LE(uint64(farm.Family)),
		u64LE(farm.Variant),
		tag[:],
	}, tulipv2.VaultProgramID)
}

// DeriveVaultSignerPDA derives the signer authority a vault issues token
// instructions with.
func DeriveVaultSignerPDA(vault solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{vault.Bytes()}, tulipv2.VaultProgramID)
}

// DeriveSharesMintPDA derives a vault's share mint.
func DeriveSharesMintPDA(vault, underlyingMint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{vault.Bytes(), underlyingMint.Bytes()}, tulipv2.VaultProgramID)
}

// DeriveWithdrawQueuePDA derives the underlying withdraw queue token account.
func DeriveWithdrawQueuePDA(vault, underlyingMint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		[]byte("withdrawqueue"),
		vault.Bytes(),
		underlyingMint.Bytes(),
	}, tulipv2.VaultProgramID)
}

// DeriveCompoundQueuePDA derives the underlying compound queue token account.
func DeriveCompoundQueuePDA(vault, underlyingMint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		[]byte("compoundqueue"),
		vault.Bytes(),
		underlyingMint.Bytes(),
	}, tulipv2.VaultProgramID)
}

// DeriveDepositQueuePDA derives the underlying deposit queue token account.
func DeriveDepositQueuePDA(vault, underlyingMint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		[]byte("depositqueue"),
		vault.Bytes(),
		underlyingMint.Bytes(),
	}, tulipv2.VaultProgramID)
}

// DeriveTrackingPDA derives the per-(vault, user) deposit tracking account.
func DeriveTrackingPDA(vault, owner solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		[]byte("tracking"),
		vault.Bytes(),
		owner.Bytes(),
	}, tulipv2.VaultProgramID)
}

// DeriveTrackingSignerPDA derives the escrow signer of a tracking account.
func DeriveTrackingSignerPDA(tracking solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{tracking.Bytes()}, tulipv2.VaultProgramID)
}

// DeriveTrackingQueuePDA derives the tracking account's lockup queue, the
// token account that escrows minted shares until the lockup elapses.
func DeriveTrackingQueuePDA(trackingSigner solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		[]byte("queue"),
		trackingSigner.Bytes(),
	}, tulipv2.VaultProgramID)
}

// DeriveRebalanceStateTransitionPDA derives the multi-deposit vault's
// rebalance transition record.
func DeriveRebalanceStateTransitionPDA(vault solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		[]byte("statetransition"),
		vault.Bytes(),
	}, tulipv2.VaultProgramID)
}

// MustDeriveVaultPDA panics on derivation failure. Intended for static
// configuration paths only.
func MustDeriveVaultPDA(farm farms.Farm, tag [32]byte) solana.PublicKey {
	pk, _, err := DeriveVaultPDA(farm, tag)
	if err != nil {
		panic(fmt.Errorf("derive vault PDA: %w", err))
	}
	return pk
}

func u64LE(value uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, value)
	return buf
}
