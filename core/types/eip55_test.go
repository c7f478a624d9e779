// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestChecksumAddressRoundTrip(t *testing.T) {
	addr := common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	checksummed := ChecksumAddress(addr)

	parsed, err := ParseChecksumAddress(checksummed)
	require.NoError(t, err)
	require.Equal(t, addr, parsed)
}

func TestParseChecksumAddressRejectsBadCasing(t *testing.T) {
	addr := common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	checksummed := ChecksumAddress(addr)
	mangled := []byte(checksummed)
	for i, c := range mangled {
		if c >= 'a' && c <= 'f' {
			mangled[i] = c - 32
			break
		}
		if c >= 'A' && c <= 'F' {
			mangled[i] = c + 32
			break
		}
	}
	_, err := ParseChecksumAddress(string(mangled))
	require.Error(t, err)
}
