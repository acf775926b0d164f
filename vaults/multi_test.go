package vaults_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/sol-farm/tulipv2-sdk-sub000/vaults"
)

func newParent() *vaults.MultiDepositOptimizerV1 {
	return &vaults.MultiDepositOptimizerV1{Base: configuredBase()}
}

func newChild(balance uint64) vaults.StandaloneVaultCacheV1 {
	return vaults.StandaloneVaultCacheV1{
		VaultAddress:     solana.NewWallet().PublicKey(),
		DepositedBalance: balance,
		ProgramType:      vaults.ProgramTypeSplUnmodified,
	}
}

func TestRegisterStandaloneVault(t *testing.T) {
	parent := newParent()

	child := newChild(0)
	require.NoError(t, parent.RegisterStandaloneVault(child))
	require.True(t, parent.StandaloneExists(child.VaultAddress))
	require.Equal(t, vaults.MaxStandaloneVaults-1, parent.FreeStandaloneSpaceCount())

	require.ErrorIs(t, parent.RegisterStandaloneVault(child), vaults.ErrDuplicateChild)
	require.ErrorIs(t, parent.RegisterStandaloneVault(vaults.StandaloneVaultCacheV1{}), vaults.ErrUnknownStandaloneVault)
}

func TestRegisterStandaloneVaultSlotFull(t *testing.T) {
	parent := newParent()
	for i := 0; i < vaults.MaxStandaloneVaults; i++ {
		require.NoError(t, parent.RegisterStandaloneVault(newChild(uint64(i))))
	}
	require.False(t, parent.FreeStandaloneSpace())
	require.ErrorIs(t, parent.RegisterStandaloneVault(newChild(0)), vaults.ErrSlotFull)
}

func TestRemoveStandaloneVault(t *testing.T) {
	parent := newParent()
	funded := newChild(100)
	empty := newChild(0)
	require.NoError(t, parent.RegisterStandaloneVault(funded))
	require.NoError(t, parent.RegisterStandaloneVault(empty))

	require.ErrorIs(t, parent.RemoveStandaloneVault(funded.VaultAddress), vaults.ErrInsufficientFunds)
	require.NoError(t, parent.RemoveStandaloneVault(empty.VaultAddress))
	require.False(t, parent.StandaloneExists(empty.VaultAddress))
	require.ErrorIs(t, parent.RemoveStandaloneVault(empty.VaultAddress), vaults.ErrUnknownStandaloneVault)
}

func TestActiveDepositsSkipsDefaultAndZero(t *testing.T) {
	parent := newParent()
	funded := newChild(500)
	drained := newChild(0)
	require.NoError(t, parent.RegisterStandaloneVault(funded))
	require.NoError(t, parent.RegisterStandaloneVault(drained))

	active := parent.ActiveDeposits()
	require.Len(t, active, 1)
	require.Equal(t, funded.VaultAddress, active[0].VaultAddress)
}

func TestTopTwoDeposits(t *testing.T) {
	parent := newParent()
	small := newChild(100)
	big := newChild(900)
	mid := newChild(400)
	for _, child := range []vaults.StandaloneVaultCacheV1{small, big, mid} {
		require.NoError(t, parent.RegisterStandaloneVault(child))
	}

	top, err := parent.TopTwoDeposits()
	require.NoError(t, err)
	require.Equal(t, big.VaultAddress, top[0].VaultAddress)
	require.Equal(t, mid.VaultAddress, top[1].VaultAddress)
}

func TestTopTwoDepositsSingleChild(t *testing.T) {
	parent := newParent()
	only := newChild(100)
	require.NoError(t, parent.RegisterStandaloneVault(only))

	top, err := parent.TopTwoDeposits()
	require.NoError(t, err)
	require.Equal(t, only.VaultAddress, top[0].VaultAddress)
	require.True(t, top[1].IsDefault())
}

func TestTopTwoDepositsEmpty(t *testing.T) {
	parent := newParent()
	_, err := parent.TopTwoDeposits()
	require.ErrorIs(t, err, vaults.ErrInsufficientFunds)
}

func TestBottomTwoDeposits(t *testing.T) {
	parent := newParent()
	small := newChild(100)
	big := newChild(900)
	mid := newChild(400)
	for _, child := range []vaults.StandaloneVaultCacheV1{big, small, mid} {
		require.NoError(t, parent.RegisterStandaloneVault(child))
	}

	bottom, err := parent.BottomTwoDeposits()
	require.NoError(t, err)
	require.Equal(t, small.VaultAddress, bottom[0].VaultAddress)
	require.Equal(t, mid.VaultAddress, bottom[1].VaultAddress)
}

func TestBottomTwoDepositsEmpty(t *testing.T) {
	parent := newParent()
	_, err := parent.BottomTwoDeposits()
	require.ErrorIs(t, err, vaults.ErrInsufficientFunds)
}

func TestTotalStandaloneBalance(t *testing.T) {
	parent := newParent()
	require.NoError(t, parent.RegisterStandaloneVault(newChild(100)))
	require.NoError(t, parent.RegisterStandaloneVault(newChild(250)))

	total, err := parent.TotalStandaloneBalance()
	require.NoError(t, err)
	require.Equal(t, uint64(350), total)
}

func TestIssueShares(t *testing.T) {
	parent := newParent()
	tracking := &vaults.DepositTrackingV1{}

	minted, err := parent.IssueShares(tracking, 1000, 500)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), minted, "empty pool mints 1:1")
	require.Equal(t, uint64(1000), parent.Base.TotalShares)
	require.Equal(t, uint64(1000), parent.Base.TotalDepositedBalance)
	require.Equal(t, uint64(1000), tracking.Shares)
	require.Equal(t, int64(500), tracking.LastDepositTime)

	// vault appreciates, second depositor gets fewer shares
	parent.Base.TotalDepositedBalance = 2000
	minted, err = parent.IssueShares(tracking, 1000, 600)
	require.NoError(t, err)
	require.Equal(t, uint64(500), minted)
	require.Equal(t, uint64(1500), parent.Base.TotalShares)
	require.Equal(t, uint64(3000), parent.Base.TotalDepositedBalance)
	require.Equal(t, int64(600), tracking.LastDepositTime)
}

func TestIssueSharesSweepsToTargetVault(t *testing.T) {
	parent := newParent()
	target := newChild(0)
	require.NoError(t, parent.RegisterStandaloneVault(target))
	parent.TargetVault = target.VaultAddress

	tracking := &vaults.DepositTrackingV1{}
	_, err := parent.IssueShares(tracking, 700, 1)
	require.NoError(t, err)

	active := parent.ActiveDeposits()
	require.Len(t, active, 1)
	require.Equal(t, uint64(700), active[0].DepositedBalance)
}

func TestIssueSharesGates(t *testing.T) {
	t.Run("unconfigured", func(t *testing.T) {
		parent := &vaults.MultiDepositOptimizerV1{}
		_, err := parent.IssueShares(&vaults.DepositTrackingV1{}, 1, 1)
		require.ErrorIs(t, err, vaults.ErrNotConfigured)
	})

	t.Run("paused", func(t *testing.T) {
		parent := newParent()
		parent.Base.DepositsPaused = 1
		_, err := parent.IssueShares(&vaults.DepositTrackingV1{}, 1, 1)
		var paused *vaults.PausedError
		require.ErrorAs(t, err, &paused)
		require.Equal(t, vaults.ActionDeposit, paused.Action)
	})

	t.Run("capped", func(t *testing.T) {
		parent := newParent()
		parent.Base.TotalDepositedBalance = 999
		parent.Base.TotalDepositedBalanceCap = 1000
		_, err := parent.IssueShares(&vaults.DepositTrackingV1{}, 2, 1)
		require.ErrorIs(t, err, vaults.ErrDepositCapExceeded)
	})
}

func TestIssueSharesAtomicOnOverflow(t *testing.T) {
	parent := newParent()
	target := newChild(math.MaxUint64)
	require.NoError(t, parent.RegisterStandaloneVault(target))
	parent.TargetVault = target.VaultAddress
	parent.Base.TotalDepositedBalance = 1000
	parent.Base.TotalShares = 1000

	tracking := &vaults.DepositTrackingV1{}
	_, err := parent.IssueShares(tracking, 1, 1)
	require.ErrorIs(t, err, vaults.ErrMathOverflow)

	// nothing may change when the target slot credit fails
	require.Equal(t, uint64(1000), parent.Base.TotalShares)
	require.Equal(t, uint64(1000), parent.Base.TotalDepositedBalance)
	require.Zero(t, tracking.Shares)
	require.Zero(t, tracking.LastDepositTime)
}

func TestWithdrawFromStandalone(t *testing.T) {
	parent := newParent()
	child := newChild(2000)
	require.NoError(t, parent.RegisterStandaloneVault(child))
	parent.Base.TotalDepositedBalance = 2000
	parent.Base.TotalShares = 1000

	underlying, err := parent.WithdrawFromStandalone(child.VaultAddress, 500)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), underlying)
	require.Equal(t, uint64(500), parent.Base.TotalShares)
	require.Equal(t, uint64(1000), parent.Base.TotalDepositedBalance)

	active := parent.ActiveDeposits()
	require.Len(t, active, 1)
	require.Equal(t, uint64(1000), active[0].DepositedBalance)
}

func TestWithdrawFromStandaloneErrors(t *testing.T) {
	parent := newParent()
	shallow := newChild(10)
	require.NoError(t, parent.RegisterStandaloneVault(shallow))
	parent.Base.TotalDepositedBalance = 2000
	parent.Base.TotalShares = 1000

	_, err := parent.WithdrawFromStandalone(solana.NewWallet().PublicKey(), 1)
	require.ErrorIs(t, err, vaults.ErrUnknownStandaloneVault)

	// child holds less than the owed underlying
	_, err = parent.WithdrawFromStandalone(shallow.VaultAddress, 500)
	require.ErrorIs(t, err, vaults.ErrInsufficientFunds)
	require.Equal(t, uint64(1000), parent.Base.TotalShares, "failed withdraw must not burn")

	parent.Base.WithdrawsPaused = 1
	_, err = parent.WithdrawFromStandalone(shallow.VaultAddress, 1)
	var paused *vaults.PausedError
	require.ErrorAs(t, err, &paused)
}

func TestPermissionedIssueShares(t *testing.T) {
	parent := newParent()
	caller := solana.NewWallet().PublicKey()
	management := &vaults.ManagementV1{}
	management.AllowList[3] = caller

	minted, err := parent.PermissionedIssueShares(management, caller, caller, 1000)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), minted)
	require.Equal(t, uint64(1000), parent.Base.TotalShares)
}

func TestPermissionedIssueSharesRejections(t *testing.T) {
	parent := newParent()
	caller := solana.NewWallet().PublicKey()
	outsider := solana.NewWallet().PublicKey()
	management := &vaults.ManagementV1{}
	management.AllowList[0] = caller

	_, err := parent.PermissionedIssueShares(management, outsider, outsider, 1)
	require.ErrorIs(t, err, vaults.ErrNotOnAllowList)

	_, err = parent.PermissionedIssueShares(management, caller, outsider, 1)
	require.ErrorIs(t, err, vaults.ErrUnauthorizedAuthority)

	require.Zero(t, parent.Base.TotalShares)
}

func TestTopBottomOrderingRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	for i := 0; i < 2000; i++ {
		parent := newParent()
		children := 1 + rng.Intn(vaults.MaxStandaloneVaults)
		funded := 0
		for c := 0; c < children; c++ {
			balance := uint64(rng.Int63n(1_000_000))
			if balance > 0 {
				funded++
			}
			require.NoError(t, parent.RegisterStandaloneVault(newChild(balance)))
		}
		if funded == 0 {
			continue
		}

		top, err := parent.TopTwoDeposits()
		require.NoError(t, err)
		if !top[1].IsDefault() {
			require.GreaterOrEqual(t, top[0].DepositedBalance, top[1].DepositedBalance)
		}

		bottom, err := parent.BottomTwoDeposits()
		require.NoError(t, err)
		if !bottom[1].IsDefault() && bottom[1].DepositedBalance > 0 {
			require.LessOrEqual(t, bottom[0].DepositedBalance, bottom[1].DepositedBalance)
		}
	}
}

func TestAllowedIgnoresZeroEntries(t *testing.T) {
	management := &vaults.ManagementV1{}
	require.False(t, management.Allowed(solana.PublicKey{}), "the zero key is never allow-listed")

	caller := solana.NewWallet().PublicKey()
	require.False(t, management.Allowed(caller))
	management.AllowList[15] = caller
	require.True(t, management.Allowed(caller))
}
