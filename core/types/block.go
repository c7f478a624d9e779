// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.
//
// Header/Block/Proposal layout follows spec.md §3, grounded on
// rt-evm's model/src/types/block.rs field order.

package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Header is the fixed-size block metadata committed to by Block.Hash.
type Header struct {
	PrevHash         common.Hash
	Proposer         common.Address
	StateRoot        common.Hash
	TransactionsRoot common.Hash
	ReceiptsRoot     common.Hash
	LogsBloom        Bloom
	Number           uint64
	GasLimit         uint64
	GasUsed          uint64
	Timestamp        uint64
	ExtraData        []byte
	BaseFeePerGas    *big.Int
}

// Hash returns the RLP+keccak256 hash of the header, the value used as
// a block's identity and as the next header's PrevHash.
func (h *Header) Hash() common.Hash {
	raw, err := rlp.EncodeToBytes(h)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(raw)
}

// Block is a finalized header plus the ordered list of signed
// transactions it commits to via TransactionsRoot.
type Block struct {
	Header       Header
	Transactions []SignedTransaction
}

// Genesis builds the block-zero header: all roots point at the empty
// trie / empty list, PrevHash is the zero hash, and Timestamp is
// caller-supplied so tests stay deterministic.
func Genesis(stateRoot common.Hash, timestamp uint64, extraData []byte) *Block {
	return &Block{
		Header: Header{
			PrevHash:         common.Hash{},
			Proposer:         common.Address{},
			StateRoot:        stateRoot,
			TransactionsRoot: EmptyRootHash,
			ReceiptsRoot:     EmptyRootHash,
			LogsBloom:        Bloom{},
			Number:           0,
			GasLimit:         0,
			GasUsed:          0,
			Timestamp:        timestamp,
			ExtraData:        extraData,
			BaseFeePerGas:    new(big.Int),
		},
	}
}

// EmptyRootHash is keccak256 of the RLP empty string, the root of an
// empty trie and so the transactions/receipts root of a block with no
// transactions.
var EmptyRootHash = crypto.Keccak256Hash(rlpEmptyList())

func rlpEmptyList() []byte {
	b, err := rlp.EncodeToBytes([]byte{})
	if err != nil {
		panic(err)
	}
	return b
}

// Proposal is the unexecuted form of a block assembled by the block
// manager: distinct from Block because StateRoot/ReceiptsRoot/GasUsed/
// LogsBloom are only known after execution. It carries no receipts;
// verifying it means re-executing its transactions.
type Proposal struct {
	PrevHash     common.Hash
	Proposer     common.Address
	Number       uint64
	Timestamp    uint64
	GasLimit     uint64
	ExtraData    []byte
	Transactions []SignedTransaction
}

// ToHeader builds the final Header for a Proposal once execution has
// produced the missing fields.
func (p *Proposal) ToHeader(stateRoot, txRoot, receiptsRoot common.Hash, gasUsed uint64, bloom Bloom, baseFee *big.Int) Header {
	return Header{
		PrevHash:         p.PrevHash,
		Proposer:         p.Proposer,
		StateRoot:        stateRoot,
		TransactionsRoot: txRoot,
		ReceiptsRoot:     receiptsRoot,
		LogsBloom:        bloom,
		Number:           p.Number,
		GasLimit:         p.GasLimit,
		GasUsed:          gasUsed,
		Timestamp:        p.Timestamp,
		ExtraData:        p.ExtraData,
		BaseFeePerGas:    baseFee,
	}
}
