//go:build !staging && !localnet

package vaults

// LockupSeconds is the wall-clock window after a deposit during which the
// minted shares may not leave the tracking escrow. The window discourages
// reward-cycle gaming.
const LockupSeconds int64 = 900
