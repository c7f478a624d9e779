// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.
//
// Adapter is the read-only query surface, the Go port of rt-evm's
// DefaultAPIAdapter (api/src/adapter.rs): every accessor resolves a
// BlockID (number, hash, "latest" or "pending") against durable
// storage and, for the pending view, against the mempool.

package query

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ferrochain/evmcore/core/blockmgr"
	"github.com/ferrochain/evmcore/core/executor"
	"github.com/ferrochain/evmcore/core/mempool"
	"github.com/ferrochain/evmcore/core/state"
	"github.com/ferrochain/evmcore/core/storage"
	"github.com/ferrochain/evmcore/core/types"
	"github.com/ferrochain/evmcore/params"
	evmtrie "github.com/ferrochain/evmcore/trie"
)

// ErrBlockNotFound is returned when a BlockID resolves to no known
// block.
var ErrBlockNotFound = errors.New("evmcore/query: block not found")

// ErrTooManyLogs is returned by GetLogs once the result would exceed
// params.MaxLogsPerQuery.
var ErrTooManyLogs = errors.New("evmcore/query: result would exceed the maximum log count")

// BlockID selects a block the way the JSON-RPC method surface does:
// an explicit number, a hash, "latest", or "pending". Every accessor
// resolves "pending" to the latest header; GetTransactionCount
// additionally adds the sender's mempool transactions, and no other
// accessor applies mempool contents.
type BlockID struct {
	Number  *uint64
	Hash    *common.Hash
	Latest  bool
	Pending bool
}

// ByNumber builds a BlockID selecting an explicit block number.
func ByNumber(n uint64) BlockID { return BlockID{Number: &n} }

// ByHash builds a BlockID selecting a block by hash.
func ByHash(h common.Hash) BlockID { return BlockID{Hash: &h} }

// Latest selects the chain head.
func Latest() BlockID { return BlockID{Latest: true} }

// Pending selects the mempool-augmented view.
func Pending() BlockID { return BlockID{Pending: true} }

// Adapter answers read-only queries against storage, the mempool, and
// (for eth_call/eth_estimateGas) the executor.
type Adapter struct {
	storage *storage.Storage
	pool    *mempool.Mempool
	blocks  *blockmgr.BlockMgmt
	store   *evmtrie.Store
	chainID uint64
}

// New builds an Adapter.
func New(st *storage.Storage, pool *mempool.Mempool, blocks *blockmgr.BlockMgmt, store *evmtrie.Store, chainID uint64) *Adapter {
	return &Adapter{storage: st, pool: pool, blocks: blocks, store: store, chainID: chainID}
}

// ChainID returns the configured chain id (eth_chainId).
func (a *Adapter) ChainID() uint64 { return a.chainID }

func (a *Adapter) resolveHeader(id BlockID) (*types.Header, error) {
	switch {
	case id.Latest || id.Pending:
		h := a.blocks.Head()
		return &h, nil
	case id.Hash != nil:
		block, err := a.storage.GetBlockByHash(*id.Hash)
		if err != nil {
			return nil, err
		}
		if block == nil {
			return nil, ErrBlockNotFound
		}
		return &block.Header, nil
	case id.Number != nil:
		header, err := a.storage.GetHeaderByNumber(*id.Number)
		if err != nil {
			return nil, err
		}
		if header == nil {
			return nil, ErrBlockNotFound
		}
		return header, nil
	default:
		return nil, errors.New("evmcore/query: empty BlockID")
	}
}

// GetBlockByNumber returns the block at number, or nil if unknown.
func (a *Adapter) GetBlockByNumber(number uint64) (*types.Block, error) {
	return a.storage.GetBlockByNumber(number)
}

// GetBlockByHash returns the block identified by hash, or nil.
func (a *Adapter) GetBlockByHash(hash common.Hash) (*types.Block, error) {
	return a.storage.GetBlockByHash(hash)
}

// GetTransactionByHash returns the transaction stored under hash, or
// nil; its block position is not returned.
func (a *Adapter) GetTransactionByHash(hash common.Hash) (*types.SignedTransaction, error) {
	tx, _, err := a.storage.GetTransactionByHash(hash)
	return tx, err
}

// GetTransactionReceipt returns the receipt recorded for hash.
func (a *Adapter) GetTransactionReceipt(hash common.Hash) (*types.Receipt, error) {
	return a.storage.GetReceiptByHash(hash)
}

// BlockNumber returns the current chain head's number.
func (a *Adapter) BlockNumber() uint64 { return a.blocks.Head().Number }

// GetTransactionCount returns addr's nonce as of id: for Pending, the
// on-chain nonce plus however many of addr's transactions currently
// sit in the mempool, mirroring rt-evm's pending-nonce synthesis.
func (a *Adapter) GetTransactionCount(addr common.Address, id BlockID) (uint64, error) {
	header, err := a.resolveHeader(id)
	if err != nil {
		return 0, err
	}
	handle, err := a.store.ReadOnly(blockmgr.WorldStateBackendKey, header.StateRoot)
	if err != nil {
		return 0, err
	}
	raw, err := handle.Get(addr.Bytes())
	if err != nil {
		return 0, err
	}
	nonce := uint64(0)
	if raw != nil {
		acc, err := types.DecodeAccount(raw)
		if err != nil {
			return 0, err
		}
		nonce = acc.Nonce
	}
	if id.Pending {
		nonce += uint64(a.pool.PendingCountOf(addr))
	}
	return nonce, nil
}

// GetBalance returns addr's balance as of id.
func (a *Adapter) GetBalance(addr common.Address, id BlockID) (*big.Int, error) {
	header, err := a.resolveHeader(id)
	if err != nil {
		return nil, err
	}
	handle, err := a.store.ReadOnly(blockmgr.WorldStateBackendKey, header.StateRoot)
	if err != nil {
		return nil, err
	}
	raw, err := handle.Get(addr.Bytes())
	if err != nil || raw == nil {
		return new(big.Int), err
	}
	acc, err := types.DecodeAccount(raw)
	if err != nil {
		return nil, err
	}
	if acc.Balance == nil {
		return new(big.Int), nil
	}
	return acc.Balance, nil
}

// GetCode returns addr's deployed bytecode as of id.
func (a *Adapter) GetCode(addr common.Address, id BlockID) ([]byte, error) {
	header, err := a.resolveHeader(id)
	if err != nil {
		return nil, err
	}
	handle, err := a.store.ReadOnly(blockmgr.WorldStateBackendKey, header.StateRoot)
	if err != nil {
		return nil, err
	}
	raw, err := handle.Get(addr.Bytes())
	if err != nil || raw == nil {
		return nil, err
	}
	acc, err := types.DecodeAccount(raw)
	if err != nil {
		return nil, err
	}
	if acc.CodeHash == types.NilHash {
		return nil, nil
	}
	return a.storage.GetCode(acc.CodeHash)
}

// GetStorageAt returns the value at addr's storage key as of id.
func (a *Adapter) GetStorageAt(addr common.Address, key common.Hash, id BlockID) (common.Hash, error) {
	header, err := a.resolveHeader(id)
	if err != nil {
		return common.Hash{}, err
	}
	worldHandle, err := a.store.ReadOnly(blockmgr.WorldStateBackendKey, header.StateRoot)
	if err != nil {
		return common.Hash{}, err
	}
	raw, err := worldHandle.Get(addr.Bytes())
	if err != nil || raw == nil {
		return common.Hash{}, err
	}
	acc, err := types.DecodeAccount(raw)
	if err != nil {
		return common.Hash{}, err
	}
	if acc.StorageRoot == types.NilHash {
		return common.Hash{}, nil
	}
	storageHandle, err := a.store.ReadOnly("storage:"+addr.Hex(), acc.StorageRoot)
	if err != nil {
		return common.Hash{}, err
	}
	raw, err = storageHandle.Get(key.Bytes())
	if err != nil || raw == nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(raw), nil
}

// Call runs eth_call against the world state as of id. It never
// touches the mempool and never commits the world or storage tries;
// code deployed by a CREATE during the call is written to the code
// store, as StateDB.SetCode always does.
func (a *Adapter) Call(from common.Address, tx types.UnsignedTransaction, id BlockID) (*types.ExecResult, error) {
	header, err := a.resolveHeader(id)
	if err != nil {
		return nil, err
	}
	handle, err := a.store.Restore(blockmgr.WorldStateBackendKey, header.StateRoot)
	if err != nil {
		return nil, err
	}
	openStorage := func(addr common.Address, root common.Hash) (*evmtrie.MutableHandle, error) {
		return a.store.RestoreOrCreate("storage:"+addr.Hex(), root)
	}
	rules := executor.ChainConfig(a.chainID).Rules(new(big.Int).SetUint64(header.Number), false, header.Timestamp)
	st := state.New(handle, a.storage, queryBlockHashes{a}, rules, openStorage)

	ectx := executor.Context{
		ChainID:     a.chainID,
		BlockNumber: header.Number,
		Timestamp:   header.Timestamp,
		Coinbase:    header.Proposer,
		GasLimit:    params.MaxBlockGasLimit,
		BaseFee:     params.BaseFeePerGas(),
		GetHash:     func(n uint64) common.Hash { h, _ := a.storage.GetHashByNumber(n); return h },
	}
	return executor.Call(ectx, st, from, tx, tx.GasLimit())
}

// EstimateGas runs Call once at the transaction's own gas_limit and
// reports the gas it actually used (UsedGas already includes the
// intrinsic gas floor); a production-grade implementation would
// binary-search the gas ceiling, but a single deterministic execution
// is sufficient for the embedder-driven use this runtime targets (no
// network gas-price competition to optimize against).
func (a *Adapter) EstimateGas(from common.Address, tx types.UnsignedTransaction, id BlockID) (uint64, error) {
	result, err := a.Call(from, tx, id)
	if err != nil {
		return 0, err
	}
	return result.UsedGas, nil
}

// GetLogs scans blocks in [fromBlock, toBlock] for logs matching
// addresses and topics, stopping with ErrTooManyLogs once the result
// would exceed params.MaxLogsPerQuery (spec.md's hard cap on query
// cost).
func (a *Adapter) GetLogs(fromBlock, toBlock uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error) {
	var out []types.Log
	for n := fromBlock; n <= toBlock; n++ {
		block, err := a.storage.GetBlockByNumber(n)
		if err != nil {
			return nil, err
		}
		if block == nil {
			continue
		}
		for _, tx := range block.Transactions {
			receipt, err := a.storage.GetReceiptByHash(tx.Transaction.Hash)
			if err != nil || receipt == nil {
				continue
			}
			for _, l := range receipt.Logs {
				if !matchLog(l, addresses, topics) {
					continue
				}
				if len(out) >= params.MaxLogsPerQuery {
					return nil, ErrTooManyLogs
				}
				out = append(out, l)
			}
		}
	}
	return out, nil
}

func matchLog(l types.Log, addresses []common.Address, topics [][]common.Hash) bool {
	if len(addresses) > 0 {
		found := false
		for _, a := range addresses {
			if a == l.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for i, wanted := range topics {
		if len(wanted) == 0 {
			continue
		}
		if i >= len(l.Topics) {
			return false
		}
		matched := false
		for _, w := range wanted {
			if w == l.Topics[i] {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

type queryBlockHashes struct{ a *Adapter }

func (q queryBlockHashes) GetHashByNumber(number uint64) (common.Hash, bool) {
	return q.a.storage.GetHashByNumber(number)
}
