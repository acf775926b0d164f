// Package tulipv2 holds the program ids and global constants shared by the
// Tulip V2 vault SDK packages.
package tulipv2

import "github.com/gagliardetto/solana-go"

var (
	// VaultProgramID is the deployed Tulip V2 vaults program.
	VaultProgramID = solana.MustPublicKeyFromBase58("TLPv2tuSVvn3fSk8RgW3yPddkp5oFivzZV3rA9hQxtX")

	// MangoV3ProgramID is the Mango Markets v3 program integrated by the
	// MangoV3 standalone vaults.
	MangoV3ProgramID = solana.MustPublicKeyFromBase58("mv3ekLzLbnVPNxjSKvqBpU3ZeZXPQdEC3bp5MDEBG68")
)
