// Package farms encodes the farm identifiers used to key Tulip V2 vaults.
//
// A farm is a pair of u64s (family, variant). The numeric values are
// load-bearing: downstream systems and the on-chain program key on them, so
// they must never be renumbered.
package farms

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// Family is the top-level farm family discriminant.
type Family uint64

const (
	FamilyRaydium Family = 0
	FamilyLending Family = 1
	FamilyOrca    Family = 2
	FamilyQuarry  Family = 3
)

// Farm identifies a specific vault family, e.g. LENDING-USDC.
type Farm struct {
	Family  Family
	Variant uint64
}

// TagSize is the serialized size of a farm identifier.
const TagSize = 16

var familyNames = map[Family]string{
	FamilyRaydium: "RAYDIUM",
	FamilyLending: "LENDING",
	FamilyOrca:    "ORCA",
	FamilyQuarry:  "QUARRY",
}

// Variant tables. Values are append-only.
var variantNames = map[Family]map[uint64]string{
	FamilyRaydium: {
		0: "RAY",
		1: "RAYUSDC",
		2: "RAYUSDT",
		3: "RAYSRM",
		4: "RAYSOL",
	},
	FamilyLending: {
		0: "USDC",
		1: "USDT",
		2: "SOL",
		3: "RAY",
		4: "TULIP",
		5: "MSOL",
	},
	FamilyOrca: {
		0: "ORCASOL",
		1: "SOLUSDC",
		2: "ORCAUSDC",
	},
	FamilyQuarry: {
		0: "VANILLA",
		1: "SUNNY",
	},
}

// Lending shorthands for the variants downstream callers reach for most.
var (
	LendingUSDC = Farm{Family: FamilyLending, Variant: 0}
	LendingUSDT = Farm{Family: FamilyLending, Variant: 1}
	LendingSOL  = Farm{Family: FamilyLending, Variant: 2}
	LendingRAY  = Farm{Family: FamilyLending, Variant: 3}
)

// Serialize packs the farm as two little-endian u64s, the wire form every
// instruction payload and PDA seed uses.
func (f Farm) Serialize() [TagSize]byte {
	var out [TagSize]byte
	binary.LittleEndian.PutUint64(out[0:8], uint64(f.Family))
	binary.LittleEndian.PutUint64(out[8:16], f.Variant)
	return out
}

// DeserializeFarm reverses Serialize.
func DeserializeFarm(data [TagSize]byte) Farm {
	return Farm{
		Family:  Family(binary.LittleEndian.Uint64(data[0:8])),
		Variant: binary.LittleEndian.Uint64(data[8:16]),
	}
}

// String renders the canonical "<FAMILY>-<VARIANT>" form.
func (f Farm) String() string {
	family, ok := familyNames[f.Family]
	if !ok {
		return fmt.Sprintf("UNKNOWN-%d-%d", uint64(f.Family), f.Variant)
	}
	variant, ok := variantNames[f.Family][f.Variant]
	if !ok {
		return fmt.Sprintf("%s-UNKNOWN-%d", family, f.Variant)
	}
	return family + "-" + variant
}

// ParseFarm reverses String.
func ParseFarm(name string) (Farm, error) {
	idx := strings.Index(name, "-")
	if idx < 0 {
		return Farm{}, fmt.Errorf("invalid farm name %q", name)
	}
	familyPart, variantPart := name[:idx], name[idx+1:]

	var family Family
	found := false
	for candidate, candidateName := range familyNames {
		if candidateName == familyPart {
			family = candidate
			found = true
			break
		}
	}
	if !found {
		return Farm{}, fmt.Errorf("unknown farm family %q", familyPart)
	}

	for variant, variantName := range variantNames[family] {
		if variantName == variantPart {
			return Farm{Family: family, Variant: variant}, nil
		}
	}
	return Farm{}, fmt.Errorf("unknown %s farm variant %q", familyPart, variantPart)
}

// FormatTaggedName renders the display form a vault carries on chain:
// "<farm_name>-tag(<ascii_tag>)" with trailing NUL bytes stripped from the
// 32-byte tag.
func FormatTaggedName(farm Farm, tag [32]byte) string {
	return fmt.Sprintf("%s-tag(%s)", farm.String(), TagString(tag))
}

// ParseTaggedName reverses FormatTaggedName.
func ParseTaggedName(formatted string) (Farm, [32]byte, error) {
	var tag [32]byte

	open := strings.LastIndex(formatted, "-tag(")
	if open < 0 || !strings.HasSuffix(formatted, ")") {
		return Farm{}, tag, fmt.Errorf("invalid tagged vault name %q", formatted)
	}

	farm, err := ParseFarm(formatted[:open])
	if err != nil {
		return Farm{}, tag, err
	}

	ascii := formatted[open+len("-tag(") : len(formatted)-1]
	if len(ascii) > len(tag) {
		return Farm{}, tag, fmt.Errorf("vault tag %q exceeds 32 bytes", ascii)
	}
	copy(tag[:], ascii)
	return farm, tag, nil
}

// TagString strips NUL padding from a 32-byte vault tag.
func TagString(tag [32]byte) string {
	idx := bytes.IndexByte(tag[:], 0)
	if idx < 0 {
		idx = len(tag)
	}
	return string(tag[:idx])
}
