package vaults

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// Account discriminators, anchor convention: sha256("account:<Name>")[:8].
var (
	MultiDepositOptimizerDiscriminator   = accountDiscriminator("MultiDepositOptimizerV1")
	RebalanceStateTransitionDiscriminator = accountDiscriminator("RebalanceStateTransitionV1")
	DepositTrackingDiscriminator          = accountDiscriminator("DepositTrackingV1")
)

// ParseMultiDepositOptimizer decodes a multi-deposit vault account.
func ParseMultiDepositOptimizer(data []byte) (*MultiDepositOptimizerV1, error) {
	payload, err := stripDiscriminator(data, MultiDepositOptimizerDiscriminator, "multi deposit optimizer")
	if err != nil {
		return nil, err
	}
	out := new(MultiDepositOptimizerV1)
	if err := bin.NewBorshDecoder(payload).Decode(out); err != nil {
		return nil, fmt.Errorf("decode multi deposit optimizer: %w", err)
	}
	return out, nil
}

// ParseRebalanceStateTransition decodes a rebalance transition record.
func ParseRebalanceStateTransition(data []byte) (*RebalanceStateTransitionV1, error) {
	payload, err := stripDiscriminator(data, RebalanceStateTransitionDiscriminator, "rebalance state transition")
	if err != nil {
		return nil, err
	}
	out := new(RebalanceStateTransitionV1)
	if err := bin.NewBorshDecoder(payload).Decode(out); err != nil {
		return nil, fmt.Errorf("decode rebalance state transition: %w", err)
	}
	return out, nil
}

// ParseDepositTracking decodes a deposit tracking account.
func ParseDepositTracking(data []byte) (*DepositTrackingV1, error) {
	payload, err := stripDiscriminator(data, DepositTrackingDiscriminator, "deposit tracking")
	if err != nil {
		return nil, err
	}
	out := new(DepositTrackingV1)
	if err := bin.NewBorshDecoder(payload).Decode(out); err != nil {
		return nil, fmt.Errorf("decode deposit tracking: %w", err)
	}
	return out, nil
}

func stripDiscriminator(data []byte, want [8]byte, what string) ([]byte, error) {
	if len(data) < len(want) {
		return nil, fmt.Errorf("%s account payload too short (%d bytes)", what, len(data))
	}
	if !bytes.Equal(data[:8], want[:]) {
		return nil, fmt.Errorf("%s account discriminator mismatch", what)
	}
	return data[8:], nil
}

func accountDiscriminator(name string) [8]byte {
	hash := sha256.Sum256([]byte("account:" + name))
	var out [8]byte
	copy(out[:], hash[:8])
	return out
}
