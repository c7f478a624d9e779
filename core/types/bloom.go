// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.
//
// Bloom filter construction mirrors go-ethereum's core/types/bloom9.go
// algorithm; Bloom itself is an alias for go-ethereum's 2048-bit type
// so LogsBloom round-trips through core/vm and core/types helpers
// (DeriveSha, etc.) without conversion.

package types

import (
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Bloom is the 2048-bit (256-byte) log bloom filter carried in a
// block header.
type Bloom = gethtypes.Bloom

// bloom9 ORs the 3-hash-derived bits for data into b, the same
// construction go-ethereum uses for transaction receipt blooms.
func bloom9(b []byte, data []byte) {
	h := crypto.Keccak256(data)
	for i := 0; i < 6; i += 2 {
		bit := (uint(h[i+1]) + (uint(h[i]) << 8)) & 2047
		b[256-bit/8-1] |= 1 << (bit % 8)
	}
}

// CreateBloom computes the logs bloom for a set of receipts: every
// log's address and every topic contributes its 3 bits.
func CreateBloom(receipts []Receipt) Bloom {
	var bin Bloom
	for _, r := range receipts {
		for _, l := range r.Logs {
			bloom9(bin[:], l.Address.Bytes())
			for _, topic := range l.Topics {
				bloom9(bin[:], topic.Bytes())
			}
		}
	}
	return bin
}

// MergeBloom ORs src into dst in place, the helper used when building
// a block's aggregate bloom incrementally one receipt at a time.
func MergeBloom(dst *Bloom, src Bloom) {
	for i := range dst {
		dst[i] |= src[i]
	}
}

// BloomLookup reports whether topic may be present in b (false
// positives possible, false negatives are not).
func BloomLookup(b Bloom, topic []byte) bool {
	var want Bloom
	bloom9(want[:], topic)
	for i := range want {
		if want[i]&b[i] != want[i] {
			return false
		}
	}
	return true
}
