// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestEmptyAccountIsEmpty(t *testing.T) {
	require.True(t, EmptyAccount().IsEmpty())
}

func TestAccountEncodeDecodeRoundTrip(t *testing.T) {
	acc := Account{
		Nonce:       7,
		Balance:     big.NewInt(12345),
		StorageRoot: NilHash,
		CodeHash:    NilHash,
	}
	raw, err := acc.Encode()
	require.NoError(t, err)

	decoded, err := DecodeAccount(raw)
	require.NoError(t, err)
	require.Equal(t, acc.Nonce, decoded.Nonce)
	require.Equal(t, 0, acc.Balance.Cmp(decoded.Balance))
	require.Equal(t, acc.StorageRoot, decoded.StorageRoot)
	require.Equal(t, acc.CodeHash, decoded.CodeHash)
}

func TestNilHashIsKeccakOfEmpty(t *testing.T) {
	require.Equal(t, crypto.Keccak256Hash(nil), NilHash)
}
