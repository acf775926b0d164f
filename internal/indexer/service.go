// Package indexer polls a set of multi-deposit optimizer vaults, decodes
// their on-chain state, and persists per-slot snapshots to postgres. An
// optional websocket stream from Pyth Hermes keeps a live price per feed so
// snapshots carry a USD valuation.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/sol-farm/tulipv2-sdk-sub000/decimal"
	"github.com/sol-farm/tulipv2-sdk-sub000/internal/config"
	"github.com/sol-farm/tulipv2-sdk-sub000/pda"
	"github.com/sol-farm/tulipv2-sdk-sub000/vaults"
)

type Service struct {
	cfg    config.IndexerConfig
	rpc    *rpc.Client
	store  *Store
	logger *slog.Logger
	prices *priceBook
}

func New(cfg config.IndexerConfig, logger *slog.Logger) (*Service, error) {
	store, err := NewStore(cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	return &Service{
		cfg:    cfg,
		rpc:    rpc.New(cfg.RPCURL),
		store:  store,
		logger: logger,
		prices: newPriceBook(),
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("failed to close store", "err", err)
		}
	}()

	s.logger.Info("vault indexer started",
		"rpc", s.cfg.RPCURL,
		"db_driver", "postgres",
		"commitment", s.cfg.Commitment,
		"vaults", len(s.cfg.Vaults),
	)

	if s.cfg.EnablePythPriceStream {
		go s.runPriceStream(ctx)
	}

	if err := s.syncOnce(ctx); err != nil {
		s.logger.Error("initial sync failed", "err", err)
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("vault indexer stopped")
			return nil
		case <-ticker.C:
			if err := s.syncOnce(ctx); err != nil {
				s.logger.Error("sync failed", "err", err)
			}
		}
	}
}

func (s *Service) syncOnce(ctx context.Context) error {
	keys := make([]solana.PublicKey, 0, 2*len(s.cfg.Vaults))
	for _, target := range s.cfg.Vaults {
		transitionKey, _, err := pda.DeriveRebalanceStateTransitionPDA(target.Vault)
		if err != nil {
			return fmt.Errorf("derive transition PDA for %s: %w", target.Vault, err)
		}
		keys = append(keys, target.Vault, transitionKey)
	}

	fetched, err := s.rpc.GetMultipleAccountsWithOpts(ctx, keys,
		&rpc.GetMultipleAccountsOpts{Commitment: s.cfg.Commitment})
	if err != nil {
		return fmt.Errorf("fetch vault accounts: %w", err)
	}
	if len(fetched.Value) != len(keys) {
		return fmt.Errorf("unexpected account count %d, wanted %d", len(fetched.Value), len(keys))
	}
	slot := fetched.RPCContext.Context.Slot
	now := time.Now().Unix()

	synced := 0
	for i, target := range s.cfg.Vaults {
		vaultAccount := fetched.Value[2*i]
		transitionAccount := fetched.Value[2*i+1]
		if vaultAccount == nil {
			s.logger.Warn("vault account missing", "vault", target.Vault)
			continue
		}
		if err := s.snapshotVault(ctx, target, vaultAccount, transitionAccount, slot, now); err != nil {
			s.logger.Error("vault snapshot failed", "vault", target.Vault, "err", err)
			continue
		}
		synced++
	}

	s.logger.Info("sync complete", "slot", slot, "vaults", len(s.cfg.Vaults), "synced", synced)
	return nil
}

func (s *Service) snapshotVault(
	ctx context.Context,
	target config.IndexerVaultTarget,
	vaultAccount *rpc.Account,
	transitionAccount *rpc.Account,
	slot uint64,
	now int64,
) error {
	parent, err := vaults.ParseMultiDepositOptimizer(vaultAccount.Data.GetBinary())
	if err != nil {
		return fmt.Errorf("decode vault: %w", err)
	}

	sharePrice := s.sharePrice(parent)
	tvlUSD := s.valueUSD(parent.Base.TotalDepositedBalance, target.PythFeedID)

	rawJSON, err := json.Marshal(parent)
	if err != nil {
		rawJSON = []byte("{}")
	}

	var transition *vaults.RebalanceStateTransitionV1
	if transitionAccount != nil {
		transition, err = vaults.ParseRebalanceStateTransition(transitionAccount.Data.GetBinary())
		if err != nil {
			s.logger.Warn("transition record decode failed", "vault", target.Vault, "err", err)
			transition = nil
		}
	}

	return s.store.WithTx(ctx, func(tx *Tx) error {
		err := s.store.InsertVaultSnapshot(ctx, tx, VaultSnapshotInput{
			Vault:                 target.Vault.String(),
			Slot:                  slot,
			TotalDepositedBalance: parent.Base.TotalDepositedBalance,
			TotalShares:           parent.Base.TotalShares,
			SharePrice:            sharePrice,
			TVLUSD:                tvlUSD,
			DepositsPaused:        parent.Base.DepositsPaused != 0,
			RawJSON:               string(rawJSON),
			UpdatedAt:             now,
		})
		if err != nil {
			return err
		}

		for _, child := range parent.ActiveDeposits() {
			err := s.store.InsertStandaloneBalance(ctx, tx, StandaloneBalanceInput{
				Vault:            target.Vault.String(),
				Standalone:       child.VaultAddress.String(),
				Slot:             slot,
				ProgramType:      child.ProgramType.String(),
				DepositedBalance: child.DepositedBalance,
				UpdatedAt:        now,
			})
			if err != nil {
				return err
			}
		}

		if transition != nil {
			err := s.store.UpsertRebalanceTransition(ctx, tx, RebalanceTransitionInput{
				Vault:            target.Vault.String(),
				State:            transition.State.String(),
				VaultA:           transition.VaultAddressA.String(),
				VaultB:           transition.VaultAddressB.String(),
				RemovalAmount:    transition.VaultRemovalAmountA,
				SupplyAmount:     transition.VaultSupplyAmountB,
				LastCompletionTS: transition.LastCompletionTS,
				Slot:             slot,
				UpdatedAt:        now,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// sharePrice reports underlying per share. An empty pool prices at one.
func (s *Service) sharePrice(parent *vaults.MultiDepositOptimizerV1) string {
	if parent.Base.TotalShares == 0 {
		return decimal.FromU64(1).String()
	}
	price, err := decimal.FromU64(parent.Base.TotalDepositedBalance).
		Div(decimal.FromU64(parent.Base.TotalShares))
	if err != nil {
		return decimal.Zero().String()
	}
	return price.String()
}

// valueUSD prices a base-unit balance with the feed's latest streamed price.
// Empty when the stream is disabled or no tick has arrived yet.
func (s *Service) valueUSD(balance uint64, feedID string) string {
	if feedID == "" {
		return ""
	}
	price, ok := s.prices.Latest(feedID)
	if !ok {
		return ""
	}
	value, err := decimal.FromU64(balance).Mul(price)
	if err != nil {
		return ""
	}
	return value.String()
}
