package instructions

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	tulipv2 "github.com/sol-farm/tulipv2-sdk-sub000"
	"github.com/sol-farm/tulipv2-sdk-sub000/vaults"
)

var (
	// ErrMissingStandaloneAccounts reports a withdraw built without the
	// protocol-specific account suffix.
	ErrMissingStandaloneAccounts = errors.New("missing standalone vault withdraw accounts")
)

// AccountVectorLengthMismatchError reports a protocol suffix whose length
// does not match what the program type's handler expects.
type AccountVectorLengthMismatchError struct {
	ProgramType vaults.ProgramType
	Expected    int
	Found       int
}

func (e *AccountVectorLengthMismatchError) Error() string {
	return fmt.Sprintf("account vector length mismatch for %s: expected %d, found %d",
		e.ProgramType, e.Expected, e.Found)
}

// StandaloneWithdrawAccounts is the protocol-specific account suffix appended
// to withdraw_multi_deposit_optimizer_vault. Each lending protocol a
// standalone vault integrates supplies its own shape.
type StandaloneWithdrawAccounts interface {
	ProgramType() vaults.ProgramType
	AccountMetas() solana.AccountMetaSlice
}

// SplUnmodifiedAccounts is the 7-account suffix for vanilla SPL lending
// reserves.
type SplUnmodifiedAccounts struct {
	SourceCollateralTokenAccount solana.PublicKey
	ReserveAccount               solana.PublicKey
	ReserveLiquiditySupply       solana.PublicKey
	ReserveCollateralMint        solana.PublicKey
	LendingMarketAccount         solana.PublicKey
	LendingMarketAuthority       solana.PublicKey
	ReserveOracle                solana.PublicKey
}

func (a SplUnmodifiedAccounts) ProgramType() vaults.ProgramType {
	return vaults.ProgramTypeSplUnmodified
}

func (a SplUnmodifiedAccounts) AccountMetas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(a.SourceCollateralTokenAccount, true, false),
		solana.NewAccountMeta(a.ReserveAccount, true, false),
		solana.NewAccountMeta(a.ReserveLiquiditySupply, true, false),
		solana.NewAccountMeta(a.ReserveCollateralMint, true, false),
		solana.NewAccountMeta(a.LendingMarketAccount, false, false),
		solana.NewAccountMeta(a.LendingMarketAuthority, false, false),
		solana.NewAccountMeta(a.ReserveOracle, false, false),
	}
}

// SplModifiedSolendAccounts is the 8-account suffix for Solend-style
// reserves, which read both a pyth and a switchboard price account.
type SplModifiedSolendAccounts struct {
	SourceCollateralTokenAccount   solana.PublicKey
	ReserveAccount                 solana.PublicKey
	ReserveLiquiditySupply         solana.PublicKey
	ReserveCollateralMint          solana.PublicKey
	LendingMarketAccount           solana.PublicKey
	LendingMarketAuthority         solana.PublicKey
	ReservePythPriceAccount        solana.PublicKey
	ReserveSwitchboardPriceAccount solana.PublicKey
}

func (a SplModifiedSolendAccounts) ProgramType() vaults.ProgramType {
	return vaults.ProgramTypeSplModifiedSolend
}

func (a SplModifiedSolendAccounts) AccountMetas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(a.SourceCollateralTokenAccount, true, false),
		solana.NewAccountMeta(a.ReserveAccount, true, false),
		solana.NewAccountMeta(a.ReserveLiquiditySupply, true, false),
		solana.NewAccountMeta(a.ReserveCollateralMint, true, false),
		solana.NewAccountMeta(a.LendingMarketAccount, false, false),
		solana.NewAccountMeta(a.LendingMarketAuthority, false, false),
		solana.NewAccountMeta(a.ReservePythPriceAccount, false, false),
		solana.NewAccountMeta(a.ReserveSwitchboardPriceAccount, false, false),
	}
}

// MangoV3Accounts is the 8-account suffix for Mango Markets v3 optimizer
// vaults.
type MangoV3Accounts struct {
	Group                 solana.PublicKey
	OptimizerMangoAccount solana.PublicKey
	Cache                 solana.PublicKey
	RootBank              solana.PublicKey
	NodeBank              solana.PublicKey
	TokenAccount          solana.PublicKey
	GroupSigner           solana.PublicKey
}

func (a MangoV3Accounts) ProgramType() vaults.ProgramType {
	return vaults.ProgramTypeMangoV3
}

func (a MangoV3Accounts) AccountMetas() solana.AccountMetaSlice {
	return solana.AccountMetaSlice{
		solana.NewAccountMeta(a.Group, false, false),
		solana.NewAccountMeta(a.OptimizerMangoAccount, true, false),
		solana.NewAccountMeta(a.Cache, true, false),
		solana.NewAccountMeta(a.RootBank, true, false),
		solana.NewAccountMeta(a.NodeBank, true, false),
		solana.NewAccountMeta(a.TokenAccount, true, false),
		solana.NewAccountMeta(a.GroupSigner, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
}

// expected suffix lengths per program type
var standaloneSuffixLen = map[vaults.ProgramType]int{
	vaults.ProgramTypeSplUnmodified:     7,
	vaults.ProgramTypeSplModifiedSolend: 8,
	vaults.ProgramTypeMangoV3:           8,
}

func validateStandaloneAccounts(standalone StandaloneWithdrawAccounts) (solana.AccountMetaSlice, error) {
	if standalone == nil {
		return nil, ErrMissingStandaloneAccounts
	}
	metas := standalone.AccountMetas()
	expected, ok := standaloneSuffixLen[standalone.ProgramType()]
	if !ok {
		return nil, fmt.Errorf("unsupported standalone program type %s", standalone.ProgramType())
	}
	if len(metas) != expected {
		return nil, &AccountVectorLengthMismatchError{
			ProgramType: standalone.ProgramType(),
			Expected:    expected,
			Found:       len(metas),
		}
	}
	return metas, nil
}

// WithdrawMultiDepositOptimizerVaultAccounts is the base positional account
// vector of withdraw_multi_deposit_optimizer_vault; the protocol suffix of
// the chosen child follows it.
type WithdrawMultiDepositOptimizerVaultAccounts struct {
	Authority                     solana.PublicKey // user, signer
	MultiVault                    solana.PublicKey
	MultiVaultPDA                 solana.PublicKey
	WithdrawVault                 solana.PublicKey // chosen standalone child
	WithdrawVaultPDA              solana.PublicKey
	LendingProgram                solana.PublicKey // child's external protocol
	MultiBurningSharesAccount     solana.PublicKey // user's parent shares, burned
	WithdrawBurningSharesAccount  solana.PublicKey // parent's position at the child
	ReceivingUnderlyingAccount    solana.PublicKey // user's underlying account
	MultiUnderlyingWithdrawQueue  solana.PublicKey
	MultiSharesMint               solana.PublicKey
	WithdrawSharesMint            solana.PublicKey
	WithdrawVaultUnderlyingQueue  solana.PublicKey // child's deposit queue
}

// NewWithdrawMultiDepositOptimizerVaultInstruction builds the withdraw path
// through a caller-chosen standalone child. Payload: u64 amount.
func NewWithdrawMultiDepositOptimizerVaultInstruction(
	accounts WithdrawMultiDepositOptimizerVaultAccounts,
	standalone StandaloneWithdrawAccounts,
	amount uint64,
) (solana.Instruction, error) {
	disc, err := Discriminator(NameWithdrawMultiDepositVault)
	if err != nil {
		return nil, err
	}
	suffix, err := validateStandaloneAccounts(standalone)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, 8+8)
	data = append(data, disc[:]...)
	data = appendU64(data, amount)

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(accounts.Authority, true, true),
		solana.NewAccountMeta(accounts.MultiVault, true, false),
		solana.NewAccountMeta(accounts.MultiVaultPDA, false, false),
		solana.NewAccountMeta(accounts.WithdrawVault, true, false),
		solana.NewAccountMeta(accounts.WithdrawVaultPDA, false, false),
		solana.NewAccountMeta(accounts.LendingProgram, false, false),
		solana.NewAccountMeta(accounts.MultiBurningSharesAccount, true, false),
		solana.NewAccountMeta(accounts.WithdrawBurningSharesAccount, true, false),
		solana.NewAccountMeta(accounts.ReceivingUnderlyingAccount, true, false),
		solana.NewAccountMeta(accounts.MultiUnderlyingWithdrawQueue, true, false),
		solana.NewAccountMeta(accounts.MultiSharesMint, true, false),
		solana.NewAccountMeta(accounts.WithdrawSharesMint, true, false),
		solana.NewAccountMeta(accounts.WithdrawVaultUnderlyingQueue, true, false),
		solana.NewAccountMeta(solana.SysVarClockPubkey, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
	metas = append(metas, suffix...)

	return solana.NewInstruction(tulipv2.VaultProgramID, metas, data), nil
}
