// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.
//
// Named constants from spec.md §3/§4, grounded on rt-evm's
// model/src/types/constant.rs.

package params

import "math/big"

const (
	// MaxBlockGasLimit is the hard ceiling on a block's gas_limit.
	MaxBlockGasLimit uint64 = 50_000_000

	// BaseFeePerGasValue is the fixed base fee this runtime reports; there
	// is no EIP-1559 fee-market adjustment since block production is
	// driven by the embedder, not by network congestion.
	BaseFeePerGasValue uint64 = 0x539

	// MinTransactionGasLimit is the floor every transaction's
	// gas_limit must clear, and the synthetic charge applied to a
	// transaction rejected for an invalid nonce.
	MinTransactionGasLimit uint64 = 21_000

	// GasCallTransaction is the intrinsic gas cost of a Call-action
	// transaction before any execution.
	GasCallTransaction uint64 = 21_000

	// GasCreateTransaction is the intrinsic gas cost of a Create-action
	// transaction before any execution.
	GasCreateTransaction uint64 = 32_000

	// BlockHashWindow is how many of the most recent blocks the BLOCKHASH
	// opcode can see.
	BlockHashWindow uint64 = 256

	// MempoolDefaultLifetimeSecs is how long an admitted transaction may
	// sit in the mempool before the cleaner evicts it.
	MempoolDefaultLifetimeSecs uint64 = 600

	// MempoolDefaultCapacity is the default maximum number of
	// transactions the mempool will hold at once.
	MempoolDefaultCapacity = 200_000

	// MempoolDefaultGasCap is the default ceiling a transaction's
	// gas_limit must not exceed to be admitted to the mempool; it tracks
	// MaxBlockGasLimit since no single transaction can ever execute
	// within a larger budget than a whole block has.
	MempoolDefaultGasCap uint64 = MaxBlockGasLimit

	// MaxLogsPerQuery caps eth_getLogs result size.
	MaxLogsPerQuery = 10_000
)

// BaseFeePerGas returns BaseFeePerGasValue as a *big.Int, the shape
// callers filling in Header.BaseFeePerGas or an ExecutorContext need.
func BaseFeePerGas() *big.Int { return new(big.Int).SetUint64(BaseFeePerGasValue) }
