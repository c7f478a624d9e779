// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.
//
// This file is a derived work, based on the go-ethereum library whose
// original notices appear below.
//
// Copyright 2014 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it
// and/or modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation, either version
// 3 of the License, or (at your option) any later version.

package types

import (
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// NilHash is keccak256(nil), the sentinel value an empty account's
// storage_root and code_hash default to.
var NilHash = crypto.Keccak256Hash(nil)

// Account is the value stored in the world-state MPT, keyed by address.
type Account struct {
	Nonce       uint64
	Balance     *big.Int
	StorageRoot common.Hash
	CodeHash    common.Hash
}

// EmptyAccount returns the default account value for an address with no
// world-state entry: zero balance and nonce, nil storage root and code
// hash.
func EmptyAccount() Account {
	return Account{
		Nonce:       0,
		Balance:     new(big.Int),
		StorageRoot: NilHash,
		CodeHash:    NilHash,
	}
}

// IsEmpty reports whether the account matches the EIP-161 definition of
// an empty account: zero balance, zero nonce, and no code.
func (a Account) IsEmpty() bool {
	return a.Nonce == 0 && (a.Balance == nil || a.Balance.Sign() == 0) && a.CodeHash == NilHash
}

// accountRLP mirrors the wire tuple from spec.md §6: (nonce, balance,
// storage_root, code_hash).
type accountRLP struct {
	Nonce       uint64
	Balance     *big.Int
	StorageRoot common.Hash
	CodeHash    common.Hash
}

// EncodeRLP implements rlp.Encoder.
func (a Account) EncodeRLP(w io.Writer) error {
	balance := a.Balance
	if balance == nil {
		balance = new(big.Int)
	}
	return rlp.Encode(w, accountRLP{
		Nonce:       a.Nonce,
		Balance:     balance,
		StorageRoot: a.StorageRoot,
		CodeHash:    a.CodeHash,
	})
}

// DecodeAccount decodes the RLP-encoded account value read out of the
// world-state trie.
func DecodeAccount(data []byte) (Account, error) {
	var dec accountRLP
	if err := rlp.DecodeBytes(data, &dec); err != nil {
		return Account{}, err
	}
	return Account{
		Nonce:       dec.Nonce,
		Balance:     dec.Balance,
		StorageRoot: dec.StorageRoot,
		CodeHash:    dec.CodeHash,
	}, nil
}

// Encode is a convenience wrapper used by callers that just want the
// encoded bytes rather than writing to an io.Writer.
func (a Account) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(a)
}
