package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/require"

	"github.com/sol-farm/tulipv2-sdk-sub000/vaults"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseProgramType(t *testing.T) {
	cases := map[string]vaults.ProgramType{
		"spl":                 vaults.ProgramTypeSplUnmodified,
		"spl_unmodified":      vaults.ProgramTypeSplUnmodified,
		"SPL-Unmodified":      vaults.ProgramTypeSplUnmodified,
		"solend":              vaults.ProgramTypeSplModifiedSolend,
		"spl-modified-solend": vaults.ProgramTypeSplModifiedSolend,
		"mango":               vaults.ProgramTypeMangoV3,
		" mango_v3 ":          vaults.ProgramTypeMangoV3,
	}
	for raw, want := range cases {
		got, err := parseProgramType(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}

	_, err := parseProgramType("drift")
	require.ErrorContains(t, err, "unknown program type")
}

func TestLoadRebalancePlan(t *testing.T) {
	vault := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	source := solana.NewWallet().PublicKey()
	dest := solana.NewWallet().PublicKey()
	lending := solana.NewWallet().PublicKey()

	path := writeFile(t, "plan.yaml", `
vault: `+vault.String()+`
underlying_mint: `+mint.String()+`
source_vault: `+source.String()+`
destination_vault: `+dest.String()+`
amount: 123456
standalones:
  - vault: `+source.String()+`
    program_type: spl
    lending_program: `+lending.String()+`
  - vault: `+dest.String()+`
    program_type: mango
`)

	plan, err := loadRebalancePlan(path)
	require.NoError(t, err)
	require.Equal(t, vault, plan.Vault)
	require.Equal(t, mint, plan.UnderlyingMint)
	require.Equal(t, uint64(123456), plan.Amount)
	require.Len(t, plan.Standalones, 2)

	standalone, ok := plan.StandaloneFor(source)
	require.True(t, ok)
	require.Equal(t, vaults.ProgramTypeSplUnmodified, standalone.ProgramType)
	require.Equal(t, lending, standalone.LendingProgram)

	standalone, ok = plan.StandaloneFor(dest)
	require.True(t, ok)
	require.Equal(t, vaults.ProgramTypeMangoV3, standalone.ProgramType)

	_, ok = plan.StandaloneFor(solana.NewWallet().PublicKey())
	require.False(t, ok)
}

func TestLoadRebalancePlanRejections(t *testing.T) {
	_, err := loadRebalancePlan(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorContains(t, err, "read rebalance plan")

	path := writeFile(t, "plan.yaml", "vault: not-a-pubkey\n")
	_, err = loadRebalancePlan(path)
	require.ErrorContains(t, err, "invalid pubkey")

	path = writeFile(t, "plan.yaml", "vault: ''\n")
	_, err = loadRebalancePlan(path)
	require.ErrorContains(t, err, "missing required field")

	vault := solana.NewWallet().PublicKey().String()
	path = writeFile(t, "plan.yaml", `
vault: `+vault+`
underlying_mint: `+vault+`
source_vault: `+vault+`
destination_vault: `+vault+`
standalones:
  - program_type: spl
`)
	_, err = loadRebalancePlan(path)
	require.ErrorContains(t, err, "missing its vault address")
}

func TestLoadIndexerVaults(t *testing.T) {
	first := solana.NewWallet().PublicKey()
	second := solana.NewWallet().PublicKey()

	path := writeFile(t, "vaults.yaml", `
vaults:
  - vault: `+first.String()+`
    pyth_feed_id: "0xEFF61894217869A5A4C9D7A5D4F9A1C6F2DCCE9C5F7D1C4D3FE55C9A2FEAB000"
  - vault: `+second.String()+`
`)

	targets, err := loadIndexerVaults(path)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	require.Equal(t, first, targets[0].Vault)
	require.Equal(t, "0xeff61894217869a5a4c9d7a5d4f9a1c6f2dcce9c5f7d1c4d3fe55c9a2feab000", targets[0].PythFeedID, "feed ids normalize to lowercase")
	require.Empty(t, targets[1].PythFeedID)
}

func TestLoadIndexerVaultsEmptyList(t *testing.T) {
	path := writeFile(t, "vaults.yaml", "vaults: []\n")
	_, err := loadIndexerVaults(path)
	require.ErrorContains(t, err, "names no vaults")
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TEST_DURATION", "45s")
	d, err := envDuration("TEST_DURATION", time.Second)
	require.NoError(t, err)
	require.Equal(t, 45*time.Second, d)

	d, err = envDuration("TEST_DURATION_UNSET", time.Second)
	require.NoError(t, err)
	require.Equal(t, time.Second, d)

	t.Setenv("TEST_BOOL", "true")
	b, err := envBool("TEST_BOOL", false)
	require.NoError(t, err)
	require.True(t, b)

	t.Setenv("TEST_BOOL", "not-a-bool")
	_, err = envBool("TEST_BOOL", false)
	require.Error(t, err)

	t.Setenv("TEST_UINT", "42")
	u64, err := envUint64("TEST_UINT", 0)
	require.NoError(t, err)
	require.Equal(t, uint64(42), u64)

	retries, err := envOptionalUint("TEST_RETRIES_UNSET")
	require.NoError(t, err)
	require.Nil(t, retries)

	t.Setenv("TEST_RETRIES", "3")
	retries, err = envOptionalUint("TEST_RETRIES")
	require.NoError(t, err)
	require.NotNil(t, retries)
	require.Equal(t, uint(3), *retries)

	t.Setenv("TEST_STR", "  value  ")
	require.Equal(t, "value", envOrDefault("TEST_STR", "fallback"))
	require.Equal(t, "fallback", envOrDefault("TEST_STR_UNSET", "fallback"))
}

func TestEnvCommitment(t *testing.T) {
	c, err := envCommitment("TEST_COMMITMENT_UNSET", rpc.CommitmentConfirmed)
	require.NoError(t, err)
	require.Equal(t, rpc.CommitmentConfirmed, c)

	t.Setenv("TEST_COMMITMENT", "Finalized")
	c, err = envCommitment("TEST_COMMITMENT", rpc.CommitmentConfirmed)
	require.NoError(t, err)
	require.Equal(t, rpc.CommitmentFinalized, c)

	t.Setenv("TEST_COMMITMENT", "strong")
	_, err = envCommitment("TEST_COMMITMENT", rpc.CommitmentConfirmed)
	require.ErrorContains(t, err, "invalid commitment")
}
