// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.
//
// Receipt/Log layout follows spec.md §3 and rt-evm's
// model/src/types/receipt.rs: one receipt per transaction, with a
// block-scoped running log index.

package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Log is one EVM LOG0..LOG4 event emitted during execution.
type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    []byte

	// Indexing metadata, not part of the consensus-critical payload but
	// needed by the query API's eth_getLogs filter.
	BlockNumber     uint64
	BlockHash       common.Hash
	TransactionHash common.Hash
	TransactionIndex uint64
	LogIndex        uint64
	Removed         bool
}

// ExecResult is the outcome of running one transaction: whether it
// succeeded, gas consumed, and any data returned (revert reason or
// CREATE's deployed code).
type ExecResult struct {
	Succeeded   bool
	UsedGas     uint64
	FeeCost     *big.Int // gas_price * used_gas; nil for read-only Call results
	RetData     []byte
	Logs        []Log
	ContractAddr *common.Address
	ExitReason  string
}

// Receipt is the durable record of one transaction's execution,
// keyed by TransactionHash.
type Receipt struct {
	TransactionHash   common.Hash
	TransactionIndex  uint64
	BlockHash         common.Hash
	BlockNumber       uint64
	From              common.Address
	To                *common.Address
	ContractAddress   *common.Address
	CumulativeGasUsed uint64
	GasUsed           uint64
	LogsBloom         Bloom
	Logs              []Log
	StateRoot         common.Hash // present for pre-Byzantium-style receipts; zero when Status is used
	Status            uint64      // 1 success, 0 failure
	Removed           bool
}

// NewReceipt builds a Receipt from one transaction's ExecResult,
// assigning log indexes starting at logIndexBase (the running count
// across the whole block) and stamping each log with its
// block/transaction identity.
func NewReceipt(tx SignedTransaction, result ExecResult, blockHash common.Hash, blockNumber, txIndex, cumulativeGasUsed, logIndexBase uint64) Receipt {
	status := uint64(0)
	if result.Succeeded {
		status = 1
	}

	var to *common.Address
	var contractAddr *common.Address
	if action := tx.Transaction.Unsigned.Action(); action.To != nil {
		to = action.To
	} else {
		contractAddr = result.ContractAddr
	}

	logs := make([]Log, len(result.Logs))
	for i, l := range result.Logs {
		l.BlockNumber = blockNumber
		l.BlockHash = blockHash
		l.TransactionHash = tx.Transaction.Hash
		l.TransactionIndex = txIndex
		l.LogIndex = logIndexBase + uint64(i)
		logs[i] = l
	}

	r := Receipt{
		TransactionHash:   tx.Transaction.Hash,
		TransactionIndex:  txIndex,
		BlockHash:         blockHash,
		BlockNumber:       blockNumber,
		From:              tx.Sender,
		To:                to,
		ContractAddress:   contractAddr,
		CumulativeGasUsed: cumulativeGasUsed,
		GasUsed:           result.UsedGas,
		Logs:              logs,
		Status:            status,
	}
	r.LogsBloom = CreateBloom([]Receipt{r})
	return r
}
