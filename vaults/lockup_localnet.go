//go:build localnet

package vaults

// LockupSeconds on local test validators.
const LockupSeconds int64 = 14
