// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.
//
// EIP-55 mixed-case checksum encoding, grounded on rt-evm's
// model/src/types/primitive.rs Hex helpers.

package types

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ChecksumAddress returns the EIP-55 mixed-case hex encoding of addr:
// a hex digit is upper-cased when the corresponding nibble of
// keccak256(lowercase hex) is >= 8.
func ChecksumAddress(addr common.Address) string {
	unchecksummed := hex.EncodeToString(addr.Bytes())
	hash := crypto.Keccak256([]byte(unchecksummed))

	var out strings.Builder
	out.WriteString("0x")
	for i, c := range unchecksummed {
		if c >= '0' && c <= '9' {
			out.WriteRune(c)
			continue
		}
		hashByte := hash[i/2]
		var nibble byte
		if i%2 == 0 {
			nibble = hashByte >> 4
		} else {
			nibble = hashByte & 0xf
		}
		if nibble >= 8 {
			out.WriteRune(c - 'a' + 'A')
		} else {
			out.WriteRune(c)
		}
	}
	return out.String()
}

// ParseChecksumAddress parses a hex address string and, if it carries
// mixed case, verifies its EIP-55 checksum.
func ParseChecksumAddress(s string) (common.Address, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if len(trimmed) != 40 {
		return common.Address{}, fmt.Errorf("evmcore/types: invalid address length %d", len(trimmed))
	}
	if strings.ToLower(trimmed) != trimmed && strings.ToUpper(trimmed) != trimmed {
		addr := common.HexToAddress(s)
		if ChecksumAddress(addr) != "0x"+trimmed {
			return common.Address{}, fmt.Errorf("evmcore/types: %s failed EIP-55 checksum", s)
		}
		return addr, nil
	}
	return common.HexToAddress(s), nil
}
