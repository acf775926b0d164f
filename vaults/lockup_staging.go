//go:build staging

package vaults

// LockupSeconds on the staging deployment.
const LockupSeconds int64 = 60
