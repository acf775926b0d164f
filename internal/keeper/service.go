// Package keeper drives the three-phase rebalance of a multi-deposit
// optimizer vault. Each tick it reads the on-chain transition record, decides
// which phase instruction comes next, preflights the move against the local
// vault model, and submits the transaction.
package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/sol-farm/tulipv2-sdk-sub000/instructions"
	"github.com/sol-farm/tulipv2-sdk-sub000/internal/config"
	"github.com/sol-farm/tulipv2-sdk-sub000/pda"
	"github.com/sol-farm/tulipv2-sdk-sub000/vaults"
)

var errSkipMove = errors.New("skip rebalance move")

type Service struct {
	cfg    config.KeeperConfig
	rpc    *rpc.Client
	signer solana.PrivateKey
	logger *slog.Logger

	// stuck-transition detection for force finalize
	lastState     vaults.RebalanceState
	lastStateSeen time.Time
}

// vaultState is the per-tick snapshot of the accounts the keeper acts on.
type vaultState struct {
	transitionKey solana.PublicKey
	vaultPDA      solana.PublicKey
	parent        *vaults.MultiDepositOptimizerV1
	transition    *vaults.RebalanceStateTransitionV1
	currentSlot   uint64
}

func New(cfg config.KeeperConfig, logger *slog.Logger) (*Service, error) {
	signer, err := solana.PrivateKeyFromSolanaKeygenFile(cfg.KeypairPath)
	if err != nil {
		return nil, fmt.Errorf("load keypair %q: %w", cfg.KeypairPath, err)
	}

	return &Service{
		cfg:    cfg,
		rpc:    rpc.New(cfg.RPCURL),
		signer: signer,
		logger: logger,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("rebalance keeper started",
		"rpc", s.cfg.RPCURL,
		"commitment", s.cfg.Commitment,
		"authority", s.signer.PublicKey(),
		"vault", s.cfg.Plan.Vault,
		"source", s.cfg.Plan.SourceVault,
		"destination", s.cfg.Plan.DestinationVault,
		"amount", s.cfg.Plan.Amount,
	)

	if err := s.tick(ctx); err != nil {
		s.logger.Error("keeper tick failed", "err", err)
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("rebalance keeper stopped")
			return nil
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				s.logger.Error("keeper tick failed", "err", err)
			}
		}
	}
}

func (s *Service) tick(ctx context.Context) error {
	state, err := s.loadVaultState(ctx)
	if err != nil {
		return err
	}

	if !state.parent.Base.Authority.Equals(s.signer.PublicKey()) {
		return fmt.Errorf("signer %s is not the vault authority %s",
			s.signer.PublicKey(), state.parent.Base.Authority)
	}

	s.trackState(state.transition.State)

	err = s.advance(ctx, state)
	if errors.Is(err, errSkipMove) {
		s.logger.Warn("rebalance move skipped",
			"state", state.transition.State.String(), "reason", err)
		return nil
	}
	return err
}

// advance submits the instruction that moves the transition record forward
// one phase. One phase per tick keeps each transaction small and lets the
// next tick observe the confirmed state before continuing.
func (s *Service) advance(ctx context.Context, state *vaultState) error {
	if s.shouldForceFinalize(state.transition.State) {
		return s.forceFinalize(ctx, state)
	}

	switch state.transition.State {
	case vaults.RebalanceInactive:
		return s.start(ctx, state)
	case vaults.RebalanceStarted:
		return s.withdrawVaultA(ctx, state)
	case vaults.RebalanceVaultARemoved:
		return s.depositVaultB(ctx, state)
	case vaults.RebalanceVaultABRebalanced:
		return s.finalize(ctx, state)
	default:
		return fmt.Errorf("transition record %s is in unknown state %d",
			state.transitionKey, state.transition.State)
	}
}

func (s *Service) start(ctx context.Context, state *vaultState) error {
	plan := s.cfg.Plan
	if plan.Amount == 0 {
		return fmt.Errorf("%w: plan amount is zero", errSkipMove)
	}

	// Preflight against the local model so predictable program errors
	// (pause, staleness, minimum balance) never reach the chain.
	parentCopy := *state.parent
	transitionCopy := *state.transition
	if err := transitionCopy.Start(&parentCopy, plan.SourceVault, plan.DestinationVault, plan.Amount, state.currentSlot); err != nil {
		return fmt.Errorf("%w: %v", errSkipMove, err)
	}

	ix, err := instructions.NewRebalanceStartInstruction(s.baseAccounts(state, plan.SourceVault, plan.DestinationVault), plan.Amount)
	if err != nil {
		return fmt.Errorf("build rebalance_start instruction: %w", err)
	}

	signature, err := s.submit(ctx, ix)
	if err != nil {
		return fmt.Errorf("rebalance_start: %w", err)
	}
	s.logger.Info("rebalance started",
		"vault", plan.Vault,
		"source", plan.SourceVault,
		"destination", plan.DestinationVault,
		"amount", plan.Amount,
		"signature", signature,
	)
	return nil
}

func (s *Service) withdrawVaultA(ctx context.Context, state *vaultState) error {
	source := state.transition.VaultAddressA
	standalone, err := s.standaloneAccountsFor(source)
	if err != nil {
		return fmt.Errorf("%w: %v", errSkipMove, err)
	}

	ix, err := instructions.NewRebalanceWithdrawVaultAInstruction(
		s.baseAccounts(state, source, state.transition.VaultAddressB),
		standalone,
	)
	if err != nil {
		return fmt.Errorf("build rebalance_withdraw_a instruction: %w", err)
	}

	signature, err := s.submit(ctx, ix)
	if err != nil {
		return fmt.Errorf("rebalance_withdraw_a: %w", err)
	}
	s.logger.Info("rebalance withdrew source vault",
		"vault", s.cfg.Plan.Vault,
		"source", source,
		"intended_amount", state.transition.VaultRemovalAmountA,
		"signature", signature,
	)
	return nil
}

func (s *Service) depositVaultB(ctx context.Context, state *vaultState) error {
	destination := state.transition.VaultAddressB
	standalone, err := s.standaloneAccountsFor(destination)
	if err != nil {
		return fmt.Errorf("%w: %v", errSkipMove, err)
	}

	ix, err := instructions.NewRebalanceDepositVaultBInstruction(
		s.baseAccounts(state, state.transition.VaultAddressA, destination),
		standalone,
	)
	if err != nil {
		return fmt.Errorf("build rebalance_deposit_b instruction: %w", err)
	}

	signature, err := s.submit(ctx, ix)
	if err != nil {
		return fmt.Errorf("rebalance_deposit_b: %w", err)
	}
	s.logger.Info("rebalance supplied destination vault",
		"vault", s.cfg.Plan.Vault,
		"destination", destination,
		"observed_amount", state.transition.VaultSupplyAmountB,
		"signature", signature,
	)
	return nil
}

func (s *Service) finalize(ctx context.Context, state *vaultState) error {
	ix, err := instructions.NewRebalanceFinalizeInstruction(
		s.baseAccounts(state, state.transition.VaultAddressA, state.transition.VaultAddressB),
	)
	if err != nil {
		return fmt.Errorf("build rebalance_finalize instruction: %w", err)
	}

	signature, err := s.submit(ctx, ix)
	if err != nil {
		return fmt.Errorf("rebalance_finalize: %w", err)
	}
	s.logger.Info("rebalance finalized",
		"vault", s.cfg.Plan.Vault,
		"signature", signature,
	)
	return nil
}

func (s *Service) forceFinalize(ctx context.Context, state *vaultState) error {
	ix, err := instructions.NewRebalanceFinalizeForceInstruction(
		s.baseAccounts(state, state.transition.VaultAddressA, state.transition.VaultAddressB),
	)
	if err != nil {
		return fmt.Errorf("build rebalance_finalize_force instruction: %w", err)
	}

	signature, err := s.submit(ctx, ix)
	if err != nil {
		return fmt.Errorf("rebalance_finalize_force: %w", err)
	}
	s.logger.Warn("rebalance force finalized",
		"vault", s.cfg.Plan.Vault,
		"stuck_state", state.transition.State.String(),
		"stuck_for", time.Since(s.lastStateSeen),
		"signature", signature,
	)
	return nil
}

// trackState records when the on-chain state last changed so a transition
// stuck mid-cycle can be force finalized after the configured grace period.
func (s *Service) trackState(current vaults.RebalanceState) {
	if current != s.lastState || s.lastStateSeen.IsZero() {
		s.lastState = current
		s.lastStateSeen = time.Now()
	}
}

func (s *Service) shouldForceFinalize(current vaults.RebalanceState) bool {
	if s.cfg.ForceFinalizeAfter <= 0 {
		return false
	}
	if current == vaults.RebalanceInactive {
		return false
	}
	return time.Since(s.lastStateSeen) > s.cfg.ForceFinalizeAfter
}

func (s *Service) loadVaultState(ctx context.Context) (*vaultState, error) {
	plan := s.cfg.Plan

	transitionKey, _, err := pda.DeriveRebalanceStateTransitionPDA(plan.Vault)
	if err != nil {
		return nil, fmt.Errorf("derive state transition PDA: %w", err)
	}
	vaultPDA, _, err := pda.DeriveVaultSignerPDA(plan.Vault)
	if err != nil {
		return nil, fmt.Errorf("derive vault signer PDA: %w", err)
	}

	fetched, err := s.rpc.GetMultipleAccountsWithOpts(ctx,
		[]solana.PublicKey{plan.Vault, transitionKey},
		&rpc.GetMultipleAccountsOpts{Commitment: s.cfg.Commitment},
	)
	if err != nil {
		return nil, fmt.Errorf("fetch vault accounts: %w", err)
	}
	if len(fetched.Value) != 2 || fetched.Value[0] == nil || fetched.Value[1] == nil {
		return nil, fmt.Errorf("vault %s or transition record %s not found", plan.Vault, transitionKey)
	}

	parent, err := vaults.ParseMultiDepositOptimizer(fetched.Value[0].Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("decode vault %s: %w", plan.Vault, err)
	}
	transition, err := vaults.ParseRebalanceStateTransition(fetched.Value[1].Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("decode transition record %s: %w", transitionKey, err)
	}

	slot, err := s.rpc.GetSlot(ctx, s.cfg.Commitment)
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}

	return &vaultState{
		transitionKey: transitionKey,
		vaultPDA:      vaultPDA,
		parent:        parent,
		transition:    transition,
		currentSlot:   slot,
	}, nil
}

func (s *Service) baseAccounts(state *vaultState, vaultA, vaultB solana.PublicKey) instructions.RebalanceAccounts {
	underlying, _, err := solana.FindAssociatedTokenAddress(state.transitionKey, s.cfg.Plan.UnderlyingMint)
	if err != nil {
		// off-curve transition record keys always derive; leave zero on failure
		underlying = solana.PublicKey{}
	}
	return instructions.RebalanceAccounts{
		Authority:                   s.signer.PublicKey(),
		MultiVault:                  s.cfg.Plan.Vault,
		MultiVaultPDA:               state.vaultPDA,
		StateTransition:             state.transitionKey,
		VaultA:                      vaultA,
		VaultB:                      vaultB,
		TransitionUnderlyingAccount: underlying,
	}
}

// standaloneAccountsFor resolves a child's protocol account suffix from the
// operator's plan.
func (s *Service) standaloneAccountsFor(vault solana.PublicKey) (instructions.StandaloneWithdrawAccounts, error) {
	entry, ok := s.cfg.Plan.StandaloneFor(vault)
	if !ok {
		return nil, fmt.Errorf("no standalone accounts configured for vault %s", vault)
	}

	switch entry.ProgramType {
	case vaults.ProgramTypeSplUnmodified:
		return instructions.SplUnmodifiedAccounts{
			SourceCollateralTokenAccount: entry.SourceCollateralTokenAccount,
			ReserveAccount:               entry.ReserveAccount,
			ReserveLiquiditySupply:       entry.ReserveLiquiditySupply,
			ReserveCollateralMint:        entry.ReserveCollateralMint,
			LendingMarketAccount:         entry.LendingMarketAccount,
			LendingMarketAuthority:       entry.LendingMarketAuthority,
			ReserveOracle:                entry.ReservePythOracle,
		}, nil
	case vaults.ProgramTypeSplModifiedSolend:
		return instructions.SplModifiedSolendAccounts{
			SourceCollateralTokenAccount:   entry.SourceCollateralTokenAccount,
			ReserveAccount:                 entry.ReserveAccount,
			ReserveLiquiditySupply:         entry.ReserveLiquiditySupply,
			ReserveCollateralMint:          entry.ReserveCollateralMint,
			LendingMarketAccount:           entry.LendingMarketAccount,
			LendingMarketAuthority:         entry.LendingMarketAuthority,
			ReservePythPriceAccount:        entry.ReservePythOracle,
			ReserveSwitchboardPriceAccount: entry.ReserveSwitchboardOracle,
		}, nil
	case vaults.ProgramTypeMangoV3:
		return instructions.MangoV3Accounts{
			Group:                 entry.MangoGroup,
			OptimizerMangoAccount: entry.OptimizerMangoAccount,
			Cache:                 entry.MangoCache,
			RootBank:              entry.MangoRootBank,
			NodeBank:              entry.MangoNodeBank,
			TokenAccount:          entry.MangoTokenAccount,
			GroupSigner:           entry.MangoGroupSigner,
		}, nil
	default:
		return nil, fmt.Errorf("standalone vault %s has unsupported program type %s", vault, entry.ProgramType)
	}
}

func (s *Service) submit(ctx context.Context, ix solana.Instruction) (solana.Signature, error) {
	ixs := make([]solana.Instruction, 0, 3)
	if s.cfg.ComputeUnitLimit > 0 {
		cuLimitIx, err := computebudget.NewSetComputeUnitLimitInstruction(s.cfg.ComputeUnitLimit).ValidateAndBuild()
		if err != nil {
			return solana.Signature{}, fmt.Errorf("build compute unit limit instruction: %w", err)
		}
		ixs = append(ixs, cuLimitIx)
	}
	if s.cfg.ComputeUnitPriceMicroLamports > 0 {
		cuPriceIx, err := computebudget.NewSetComputeUnitPriceInstruction(s.cfg.ComputeUnitPriceMicroLamports).ValidateAndBuild()
		if err != nil {
			return solana.Signature{}, fmt.Errorf("build compute unit price instruction: %w", err)
		}
		ixs = append(ixs, cuPriceIx)
	}
	ixs = append(ixs, ix)

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	signature, err := s.sendTransaction(txCtx, ixs)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	if err := s.waitForConfirmation(txCtx, signature); err != nil {
		return solana.Signature{}, fmt.Errorf("confirm %s: %w", signature, err)
	}
	return signature, nil
}

func (s *Service) sendTransaction(ctx context.Context, ixs []solana.Instruction) (solana.Signature, error) {
	recent, err := s.rpc.GetLatestBlockhash(ctx, s.cfg.Commitment)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		ixs,
		recent.Value.Blockhash,
		solana.TransactionPayer(s.signer.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if s.signer.PublicKey().Equals(key) {
			return &s.signer
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	opts := rpc.TransactionOpts{
		SkipPreflight:       s.cfg.SkipPreflight,
		PreflightCommitment: s.cfg.Commitment,
	}
	if s.cfg.MaxRetries != nil {
		retries := *s.cfg.MaxRetries
		opts.MaxRetries = &retries
	}

	sig, err := s.rpc.SendTransactionWithOpts(ctx, tx, opts)
	if err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

func (s *Service) waitForConfirmation(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(700 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			result, err := s.rpc.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				continue
			}
			if len(result.Value) == 0 || result.Value[0] == nil {
				continue
			}
			status := result.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction failed: %v", status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}
