package vaults_test

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/sol-farm/tulipv2-sdk-sub000/vaults"
)

func rebalanceFixture(t *testing.T) (*vaults.MultiDepositOptimizerV1, vaults.StandaloneVaultCacheV1, vaults.StandaloneVaultCacheV1) {
	t.Helper()

	parent := newParent()
	parent.LastRebaseSlot = 10_000

	source := newChild(5000)
	dest := newChild(1000)
	dest.ProgramType = vaults.ProgramTypeMangoV3
	require.NoError(t, parent.RegisterStandaloneVault(source))
	require.NoError(t, parent.RegisterStandaloneVault(dest))
	return parent, source, dest
}

func TestRebalanceFullCycle(t *testing.T) {
	parent, source, dest := rebalanceFixture(t)
	transition := &vaults.RebalanceStateTransitionV1{VaultPubkey: solana.NewWallet().PublicKey()}

	require.NoError(t, transition.Start(parent, source.VaultAddress, dest.VaultAddress, 2000, parent.LastRebaseSlot+100))
	require.Equal(t, vaults.RebalanceStarted, transition.State)
	require.Equal(t, source.VaultAddress, transition.VaultAddressA)
	require.Equal(t, dest.VaultAddress, transition.VaultAddressB)
	require.Equal(t, vaults.ProgramTypeSplUnmodified, transition.ProgramTypeA)
	require.Equal(t, vaults.ProgramTypeMangoV3, transition.ProgramTypeB)
	require.Equal(t, uint64(2000), transition.VaultRemovalAmountA)

	require.NoError(t, transition.WithdrawVaultA(parent, 2000))
	require.Equal(t, vaults.RebalanceVaultARemoved, transition.State)
	require.Equal(t, uint64(2000), transition.VaultSupplyAmountB)

	require.NoError(t, transition.DepositVaultB(parent))
	require.Equal(t, vaults.RebalanceVaultABRebalanced, transition.State)

	require.NoError(t, transition.Finalize(1_700_000_000))
	require.Equal(t, vaults.RebalanceInactive, transition.State)
	require.True(t, transition.VaultAddressA.IsZero())
	require.True(t, transition.VaultAddressB.IsZero())
	require.Equal(t, vaults.ProgramTypeUnknown, transition.ProgramTypeA)
	require.Zero(t, transition.VaultRemovalAmountA)
	require.Zero(t, transition.VaultSupplyAmountB)
	require.Equal(t, int64(1_700_000_000), transition.LastCompletionTS)

	// balances moved source -> dest, total untouched
	active := parent.ActiveDeposits()
	require.Len(t, active, 2)
	require.Equal(t, uint64(3000), active[0].DepositedBalance)
	require.Equal(t, uint64(3000), active[1].DepositedBalance)
}

func TestRebalanceObservedLessThanIntended(t *testing.T) {
	parent, source, dest := rebalanceFixture(t)
	transition := &vaults.RebalanceStateTransitionV1{}

	require.NoError(t, transition.Start(parent, source.VaultAddress, dest.VaultAddress, 2000, parent.LastRebaseSlot))
	// external protocol rounds down on redemption
	require.NoError(t, transition.WithdrawVaultA(parent, 1999))
	require.NoError(t, transition.DepositVaultB(parent))

	active := parent.ActiveDeposits()
	require.Equal(t, uint64(3001), active[0].DepositedBalance)
	require.Equal(t, uint64(2999), active[1].DepositedBalance)
}

func TestRebalanceStartRejections(t *testing.T) {
	parent, source, dest := rebalanceFixture(t)

	t.Run("same source and destination", func(t *testing.T) {
		transition := &vaults.RebalanceStateTransitionV1{}
		err := transition.Start(parent, source.VaultAddress, source.VaultAddress, 1, parent.LastRebaseSlot)
		require.ErrorIs(t, err, vaults.ErrSameSourceAndDestination)
	})

	t.Run("unknown source", func(t *testing.T) {
		transition := &vaults.RebalanceStateTransitionV1{}
		err := transition.Start(parent, solana.NewWallet().PublicKey(), dest.VaultAddress, 1, parent.LastRebaseSlot)
		require.ErrorIs(t, err, vaults.ErrUnknownStandaloneVault)
	})

	t.Run("unknown destination", func(t *testing.T) {
		transition := &vaults.RebalanceStateTransitionV1{}
		err := transition.Start(parent, source.VaultAddress, solana.NewWallet().PublicKey(), 1, parent.LastRebaseSlot)
		require.ErrorIs(t, err, vaults.ErrUnknownStandaloneVault)
	})

	t.Run("amount exceeds source balance", func(t *testing.T) {
		transition := &vaults.RebalanceStateTransitionV1{}
		err := transition.Start(parent, source.VaultAddress, dest.VaultAddress, 5001, parent.LastRebaseSlot)
		require.ErrorIs(t, err, vaults.ErrInsufficientFunds)
		require.Equal(t, vaults.RebalanceInactive, transition.State)
		require.True(t, transition.VaultAddressA.IsZero(), "no fields change on a failed start")
	})
}

func TestRebalanceStartStaleRebase(t *testing.T) {
	parent, source, dest := rebalanceFixture(t)
	transition := &vaults.RebalanceStateTransitionV1{}

	atWindow := parent.LastRebaseSlot + vaults.StandaloneVaultRebaseSlotWindow
	require.NoError(t, transition.Start(parent, source.VaultAddress, dest.VaultAddress, 1, atWindow))
	require.NoError(t, transition.ForceFinalize())

	var stale *vaults.StaleRebaseError
	err := transition.Start(parent, source.VaultAddress, dest.VaultAddress, 1, atWindow+1)
	require.ErrorAs(t, err, &stale)
	require.Equal(t, vaults.StandaloneVaultRebaseSlotWindow+1, stale.Slots)
}

func TestRebalanceStartBelowMinimum(t *testing.T) {
	parent, source, dest := rebalanceFixture(t)
	parent.MinimumRebalanceAmount = 10_000
	transition := &vaults.RebalanceStateTransitionV1{}

	var below *vaults.BelowMinimumRebalanceError
	err := transition.Start(parent, source.VaultAddress, dest.VaultAddress, 1, parent.LastRebaseSlot)
	require.ErrorAs(t, err, &below)
	require.Equal(t, uint64(5000), below.Balance)
	require.Equal(t, uint64(10_000), below.Minimum)
}

func TestRebalancePauseOnlyGatesStart(t *testing.T) {
	parent, source, dest := rebalanceFixture(t)
	transition := &vaults.RebalanceStateTransitionV1{}

	require.NoError(t, transition.Start(parent, source.VaultAddress, dest.VaultAddress, 100, parent.LastRebaseSlot))

	// pausing mid-cycle does not stop the remaining phases
	parent.Base.RebalancePaused = 1
	require.NoError(t, transition.WithdrawVaultA(parent, 100))
	require.NoError(t, transition.DepositVaultB(parent))
	require.NoError(t, transition.Finalize(1))

	var paused *vaults.PausedError
	err := transition.Start(parent, source.VaultAddress, dest.VaultAddress, 100, parent.LastRebaseSlot)
	require.ErrorAs(t, err, &paused)
	require.Equal(t, vaults.ActionRebalance, paused.Action)
}

func TestRebalanceWrongStatePerPhase(t *testing.T) {
	parent, source, dest := rebalanceFixture(t)
	transition := &vaults.RebalanceStateTransitionV1{}

	var invalid *vaults.InvalidRebalanceStateError

	require.ErrorAs(t, transition.WithdrawVaultA(parent, 1), &invalid)
	require.Equal(t, vaults.RebalanceStarted, invalid.Expected)
	require.Equal(t, vaults.RebalanceInactive, invalid.Found)

	require.ErrorAs(t, transition.DepositVaultB(parent), &invalid)
	require.Equal(t, vaults.RebalanceVaultARemoved, invalid.Expected)

	require.ErrorAs(t, transition.Finalize(1), &invalid)
	require.Equal(t, vaults.RebalanceVaultABRebalanced, invalid.Expected)

	require.NoError(t, transition.Start(parent, source.VaultAddress, dest.VaultAddress, 1, parent.LastRebaseSlot))
	require.ErrorAs(t, transition.Start(parent, source.VaultAddress, dest.VaultAddress, 1, parent.LastRebaseSlot), &invalid)
	require.Equal(t, vaults.RebalanceInactive, invalid.Expected)
	require.Equal(t, vaults.RebalanceStarted, invalid.Found)
}

func TestRebalanceCycleSurvivesChildRemoval(t *testing.T) {
	parent, source, dest := rebalanceFixture(t)
	transition := &vaults.RebalanceStateTransitionV1{}

	require.NoError(t, transition.Start(parent, source.VaultAddress, dest.VaultAddress, 100, parent.LastRebaseSlot))

	// child slot cleared mid-cycle: phase fails, state holds for retry
	parent.StandaloneVaults[0] = vaults.StandaloneVaultCacheV1{}
	require.ErrorIs(t, transition.WithdrawVaultA(parent, 100), vaults.ErrUnknownStandaloneVault)
	require.Equal(t, vaults.RebalanceStarted, transition.State)
}

func TestForceFinalize(t *testing.T) {
	parent, source, dest := rebalanceFixture(t)
	transition := &vaults.RebalanceStateTransitionV1{}

	var invalid *vaults.InvalidRebalanceStateError
	require.ErrorAs(t, transition.ForceFinalize(), &invalid)

	require.NoError(t, transition.Start(parent, source.VaultAddress, dest.VaultAddress, 100, parent.LastRebaseSlot))
	require.NoError(t, transition.ForceFinalize())
	require.Equal(t, vaults.RebalanceInactive, transition.State)
	// only the state resets; balances and fields are left for the operator
	require.Equal(t, source.VaultAddress, transition.VaultAddressA)
	require.Equal(t, uint64(100), transition.VaultRemovalAmountA)
}

func TestRebalanceNext(t *testing.T) {
	require.Equal(t, vaults.RebalanceStarted, vaults.RebalanceInactive.Next())
	require.Equal(t, vaults.RebalanceVaultARemoved, vaults.RebalanceStarted.Next())
	require.Equal(t, vaults.RebalanceVaultABRebalanced, vaults.RebalanceVaultARemoved.Next())
	require.Equal(t, vaults.RebalanceInactive, vaults.RebalanceVaultABRebalanced.Next())
}
