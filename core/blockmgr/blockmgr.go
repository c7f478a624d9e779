// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.
//
// BlockMgmt is the Go port of rt-evm's BlockMgmt (blockmgmt/src/lib.rs):
// it turns a batch of mempool transactions into a Proposal, executes
// the proposal into a finalized Block plus its Receipts, and commits
// both to durable storage. EXEC_LK is an RWMutex serializing
// produce-block against concurrent query-side eth_call, exactly the
// role rt-evm's EXEC_LK RwLock plays: queries take the read side so
// many can run concurrently, production takes the write side.

package blockmgr

import (
	"bytes"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	gethtrie "github.com/ethereum/go-ethereum/trie"

	"github.com/ferrochain/evmcore/core/executor"
	"github.com/ferrochain/evmcore/core/mempool"
	"github.com/ferrochain/evmcore/core/state"
	"github.com/ferrochain/evmcore/core/storage"
	"github.com/ferrochain/evmcore/core/types"
	"github.com/ferrochain/evmcore/params"
	evmtrie "github.com/ferrochain/evmcore/trie"
)

// WorldStateBackendKey is the trie.Store backend key the world-state
// trie is kept under; embedders bootstrapping genesis need it to open
// the first handle before a BlockMgmt exists.
const WorldStateBackendKey = "world-state"

// BlockMgmt owns block production and proposal verification.
type BlockMgmt struct {
	execLock sync.RWMutex

	store    *evmtrie.Store
	storage  *storage.Storage
	pool     *mempool.Mempool
	chainID  uint64
	gasLimit uint64

	head  types.Header
	nowFn func() time.Time
}

// New builds a BlockMgmt resuming from head (the most recently
// committed block's header).
func New(store *evmtrie.Store, st *storage.Storage, pool *mempool.Mempool, chainID uint64, head types.Header) *BlockMgmt {
	return &BlockMgmt{
		store:    store,
		storage:  st,
		pool:     pool,
		chainID:  chainID,
		gasLimit: params.MaxBlockGasLimit,
		head:     head,
		nowFn:    time.Now,
	}
}

// WithClock overrides the clock VerifyProposal checks a proposal's
// timestamp against; intended for tests.
func (b *BlockMgmt) WithClock(now func() time.Time) { b.nowFn = now }

// Head returns the most recently committed header.
func (b *BlockMgmt) Head() types.Header {
	b.execLock.RLock()
	defer b.execLock.RUnlock()
	return b.head
}

// GenerateProposal pulls pending transactions from the mempool and
// assembles an unexecuted Proposal on top of the current head.
func (b *BlockMgmt) GenerateProposal(proposer common.Address, timestamp uint64, maxTxs int) *types.Proposal {
	b.execLock.RLock()
	defer b.execLock.RUnlock()
	return b.proposalLocked(proposer, timestamp, maxTxs)
}

func (b *BlockMgmt) proposalLocked(proposer common.Address, timestamp uint64, maxTxs int) *types.Proposal {
	txs := b.pool.Propose(maxTxs)
	return &types.Proposal{
		PrevHash:     b.head.Hash(),
		Proposer:     proposer,
		Number:       b.head.Number + 1,
		Timestamp:    timestamp,
		GasLimit:     b.gasLimit,
		Transactions: txs,
	}
}

// GenerateBlock executes every transaction in proposal sequentially
// against the world state committed by the current head, producing
// the finalized Block and its Receipts. It does not itself take
// EXEC_LK; callers driving production (ProduceBlock) or verification
// (VerifyProposal) hold the appropriate side of the lock.
func (b *BlockMgmt) GenerateBlock(head types.Header, proposal *types.Proposal) (*types.Block, []types.Receipt, error) {
	handle, err := b.store.Restore(WorldStateBackendKey, head.StateRoot)
	if err != nil {
		return nil, nil, err
	}

	openStorage := func(addr common.Address, root common.Hash) (*evmtrie.MutableHandle, error) {
		return b.store.RestoreOrCreate("storage:"+addr.Hex(), root)
	}

	rules := executor.ChainConfig(b.chainID).Rules(new(big.Int).SetUint64(proposal.Number), false, proposal.Timestamp)

	ectx := executor.Context{
		ChainID:     b.chainID,
		BlockNumber: proposal.Number,
		Timestamp:   proposal.Timestamp,
		Coinbase:    proposal.Proposer,
		GasLimit:    proposal.GasLimit,
		BaseFee:     params.BaseFeePerGas(),
		GetHash:     b.blockHashResolver(proposal.Number),
	}

	st := state.New(handle, b.storage, blockHashesAdapter{b}, rules, openStorage)

	receipts := make([]types.Receipt, 0, len(proposal.Transactions))
	retData := make([][]byte, 0, len(proposal.Transactions))
	var cumulativeGas uint64
	var logIndex uint64
	var bloom types.Bloom

	for i, tx := range proposal.Transactions {
		result, newRoot, err := executor.Exec(ectx, st, tx)
		if err != nil {
			return nil, nil, fmt.Errorf("evmcore/blockmgr: exec tx %s: %w", tx.Transaction.Hash, err)
		}
		_ = newRoot // st.worldTrie (handle) is mutated in place; Root() below reflects it.

		cumulativeGas += result.UsedGas
		receipt := types.NewReceipt(tx, *result, common.Hash{}, proposal.Number, uint64(i), cumulativeGas, logIndex)
		logIndex += uint64(len(receipt.Logs))
		types.MergeBloom(&bloom, receipt.LogsBloom)
		receipts = append(receipts, receipt)
		retData = append(retData, result.RetData)
	}

	txRoot := derivedTxRoot(proposal.Transactions)
	receiptsRoot := derivedReceiptsRoot(retData)

	header := proposal.ToHeader(handle.Root(), txRoot, receiptsRoot, cumulativeGas, bloom, params.BaseFeePerGas())
	blockHash := header.Hash()

	for i := range receipts {
		receipts[i].BlockHash = blockHash
	}

	block := &types.Block{Header: header, Transactions: proposal.Transactions}
	return block, receipts, nil
}

// ProduceBlock is the full production cycle: build a proposal from the
// mempool, execute it, persist the result, advance the head, and drop
// the included transactions from the mempool. It holds EXEC_LK for
// writing for the whole cycle so no eth_call observes a half-applied
// block.
func (b *BlockMgmt) ProduceBlock(proposer common.Address, timestamp uint64, maxTxs int) (*types.Block, []types.Receipt, error) {
	b.execLock.Lock()
	defer b.execLock.Unlock()

	head := b.head
	proposal := b.proposalLocked(proposer, timestamp, maxTxs)
	block, receipts, err := b.GenerateBlock(head, proposal)
	if err != nil {
		return nil, nil, err
	}

	if err := b.storage.PutBlock(block); err != nil {
		return nil, nil, err
	}
	if err := b.storage.PutReceipts(receipts); err != nil {
		return nil, nil, err
	}

	for _, tx := range block.Transactions {
		b.pool.Remove(tx.Transaction.Hash)
	}

	b.head = block.Header
	return block, receipts, nil
}

// VerifyProposal checks proposal against the full explicit reject list
// before re-executing it against the world state rooted at baseHead,
// the check an embedder runs before accepting a block produced
// elsewhere: number must follow baseHead, every transaction must carry
// this chain's id and a hash that matches its own encoding, every
// transaction must independently pass the mempool's admission
// pre-check, the proposal must not claim a future timestamp, and the
// re-executed header must match claimedHeader exactly (which subsumes
// recomputing transactions_root/receipts_root). It takes EXEC_LK for
// reading so concurrent eth_call queries are unaffected, matching
// rt-evm's verify_proposal.
func (b *BlockMgmt) VerifyProposal(baseHead types.Header, proposal *types.Proposal, claimedHeader types.Header) (bool, error) {
	b.execLock.RLock()
	defer b.execLock.RUnlock()

	if proposal.Number < 1 || proposal.Number != baseHead.Number+1 {
		return false, nil
	}
	if proposal.PrevHash != baseHead.Hash() {
		return false, nil
	}
	if proposal.Timestamp > uint64(b.nowFn().Unix()) {
		return false, nil
	}

	for _, tx := range proposal.Transactions {
		if tx.Transaction.ChainID != b.chainID {
			return false, nil
		}
		raw, err := types.EncodeSigned(tx.Transaction)
		if err != nil {
			return false, err
		}
		if crypto.Keccak256Hash(raw) != tx.Transaction.Hash {
			return false, nil
		}
		if err := b.pool.PreCheck(tx); err != nil {
			return false, nil
		}
	}

	block, _, err := b.GenerateBlock(baseHead, proposal)
	if err != nil {
		return false, err
	}
	if block.Header.TransactionsRoot != claimedHeader.TransactionsRoot ||
		block.Header.ReceiptsRoot != claimedHeader.ReceiptsRoot {
		return false, nil
	}
	return block.Header.Hash() == claimedHeader.Hash(), nil
}

func (b *BlockMgmt) blockHashResolver(currentNumber uint64) func(uint64) common.Hash {
	return func(number uint64) common.Hash {
		if number >= currentNumber || currentNumber-number > params.BlockHashWindow {
			return common.Hash{}
		}
		h, ok := b.storage.GetHashByNumber(number)
		if !ok {
			return common.Hash{}
		}
		return h
	}
}

type blockHashesAdapter struct{ b *BlockMgmt }

func (a blockHashesAdapter) GetHashByNumber(number uint64) (common.Hash, bool) {
	return a.b.storage.GetHashByNumber(number)
}

// rawList adapts a slice of pre-encoded byte strings to
// go-ethereum's DerivableList, letting DeriveSha build the ordered
// index trie the same way it does for go-ethereum's own block bodies
// (transactions and receipts are each keyed by their RLP-encoded
// index within the block).
type rawList [][]byte

func (l rawList) Len() int { return len(l) }
func (l rawList) EncodeIndex(i int, w *bytes.Buffer) { w.Write(l[i]) }

// derivedTxRoot builds transactions_root = trie_root(index -> tx hash),
// matching rt-evm's trie_root_txs (executor/src/utils.rs), not the full
// encoded transaction body.
func derivedTxRoot(txs []types.SignedTransaction) common.Hash {
	raws := make(rawList, len(txs))
	for i, tx := range txs {
		raws[i] = tx.Transaction.Hash.Bytes()
	}
	return gethtypes.DeriveSha(raws, gethtrie.NewStackTrie(nil))
}

// derivedReceiptsRoot builds receipts_root = trie_root(index ->
// keccak(return_data)), matching rt-evm's receipt_hashes construction
// (executor/src/lib.rs), not the full RLP-encoded receipt.
func derivedReceiptsRoot(retData [][]byte) common.Hash {
	raws := make(rawList, len(retData))
	for i, data := range retData {
		digest := crypto.Keccak256(data)
		raws[i] = digest
	}
	return gethtypes.DeriveSha(raws, gethtrie.NewStackTrie(nil))
}
