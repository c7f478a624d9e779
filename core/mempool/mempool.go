// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.
//
// Mempool is the Go port of rt-evm's TinyMempool (mempool/src/lib.rs):
// an ordered index of admitted transactions keyed by a descending
// insertion counter, a time-bucketed lifetime index for eviction, a
// FIFO broadcast queue for newly admitted transactions, and a
// per-sender pending-nonce index. A background goroutine evicts
// expired transactions every lifetime_in_secs, mirroring the Rust
// cleaner task.

package mempool

import (
	"container/list"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/btree"

	"github.com/ferrochain/evmcore/core/types"
	"github.com/ferrochain/evmcore/params"
)

var (
	// ErrPoolFull is returned when Insert is called against a mempool
	// already at Capacity.
	ErrPoolFull = errors.New("evmcore/mempool: pool full")
	// ErrAlreadyKnown is returned for a transaction hash already
	// admitted to the pool.
	ErrAlreadyKnown = errors.New("evmcore/mempool: transaction already known")
	// ErrAlreadyPersisted is returned when a transaction's hash already
	// belongs to a committed block, so re-admitting it into the pool
	// can never produce anything but a duplicate.
	ErrAlreadyPersisted = errors.New("evmcore/mempool: transaction already persisted")
	// ErrNonceTooLow mirrors the executor's check but is applied
	// eagerly at admission time against the caller-supplied account
	// oracle.
	ErrNonceTooLow = errors.New("evmcore/mempool: nonce too low")
	// ErrGasPriceOutOfRange is returned when gas_price is not in
	// (0, 2^64).
	ErrGasPriceOutOfRange = errors.New("evmcore/mempool: gas price out of range")
	// ErrGasLimitOutOfRange is returned when gas_limit falls outside
	// [MinTransactionGasLimit, Config.GasCap].
	ErrGasLimitOutOfRange = errors.New("evmcore/mempool: gas limit out of range")
	// ErrInsufficientBalance is returned when the sender cannot cover
	// even the minimum fee (gas_price * MinTransactionGasLimit).
	ErrInsufficientBalance = errors.New("evmcore/mempool: insufficient balance for minimum fee")
)

// AccountOracle answers the account/storage questions tx_pre_check
// needs: the sender's next expected nonce and spendable balance, and
// whether a transaction hash has already been committed to a block.
// BlockMgmt's world-state trie and Storage together play this role.
type AccountOracle interface {
	NonceOf(addr common.Address) uint64
	BalanceOf(addr common.Address) *big.Int
	IsPersisted(hash common.Hash) bool
}

type indexedTx struct {
	index uint64
	tx    types.SignedTransaction
	admittedAtBucket uint64
}

// Config controls eviction policy and admission limits.
type Config struct {
	Capacity     int
	LifetimeSecs uint64
	// GasCap is the ceiling a transaction's gas_limit must not exceed to
	// be admitted (the upper end of tx_pre_check's gas_limit range).
	GasCap uint64
}

// DefaultConfig returns spec.md's default capacity/lifetime/gas cap.
func DefaultConfig() Config {
	return Config{
		Capacity:     params.MempoolDefaultCapacity,
		LifetimeSecs: params.MempoolDefaultLifetimeSecs,
		GasCap:       params.MempoolDefaultGasCap,
	}
}

// Mempool holds admitted, not-yet-proposed transactions.
type Mempool struct {
	mu sync.Mutex

	cfg    Config
	oracle AccountOracle
	logger log.Logger

	nextIndex uint64 // decremented from math.MaxUint64, so newer entries sort first

	byIndex        *btree.BTree // *indexedTx ordered by index ascending (newest admission first)
	byHash         map[common.Hash]*indexedTx
	lifetimeBucket map[uint64]map[common.Hash]struct{}
	pendingBySender map[common.Address]map[common.Hash]uint64

	broadcastQueue *list.List // FIFO of common.Hash awaiting TakeBroadcast

	stopCh chan struct{}
	doneCh chan struct{}

	nowFn func() time.Time
}

// New builds a Mempool that admits against an account oracle and a
// clock (overridable by tests via WithClock).
func New(cfg Config, oracle AccountOracle, logger log.Logger) *Mempool {
	if logger == nil {
		logger = log.Root()
	}
	m := &Mempool{
		cfg:             cfg,
		oracle:          oracle,
		logger:          logger,
		nextIndex:       ^uint64(0),
		byIndex:         btree.New(32),
		byHash:          make(map[common.Hash]*indexedTx),
		lifetimeBucket:  make(map[uint64]map[common.Hash]struct{}),
		pendingBySender: make(map[common.Address]map[common.Hash]uint64),
		broadcastQueue:  list.New(),
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
		nowFn:           time.Now,
	}
	return m
}

// WithClock overrides the mempool's time source; intended for tests
// driving the cleaner deterministically.
func (m *Mempool) WithClock(now func() time.Time) { m.nowFn = now }

func (m *Mempool) bucketFor(ts uint64) uint64 {
	if m.cfg.LifetimeSecs == 0 {
		return 0
	}
	return ts % m.cfg.LifetimeSecs
}

// checkAdmission runs tx_pre_check (spec.md §4.4 / rt-evm
// mempool/src/lib.rs tx_pre_check): gas_price must be in (0, 2^64),
// gas_limit must be in [MinTransactionGasLimit, Config.GasCap], and,
// when an AccountOracle is wired, the sender's nonce must not be
// behind, its balance must cover the minimum fee, and the transaction
// must not already be persisted in a committed block.
func (m *Mempool) checkAdmission(tx types.SignedTransaction) error {
	gasPrice := tx.Transaction.Unsigned.GasPrice()
	if gasPrice.Sign() <= 0 || gasPrice.BitLen() > 64 {
		return ErrGasPriceOutOfRange
	}
	gasLimit := tx.Transaction.Unsigned.GasLimit()
	if gasLimit < params.MinTransactionGasLimit || gasLimit > m.cfg.GasCap {
		return ErrGasLimitOutOfRange
	}
	if m.oracle == nil {
		return nil
	}
	if tx.Transaction.Unsigned.Nonce() < m.oracle.NonceOf(tx.Sender) {
		return ErrNonceTooLow
	}
	minFee := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(params.MinTransactionGasLimit))
	if m.oracle.BalanceOf(tx.Sender).Cmp(minFee) < 0 {
		return ErrInsufficientBalance
	}
	if m.oracle.IsPersisted(tx.Transaction.Hash) {
		return ErrAlreadyPersisted
	}
	return nil
}

// PreCheck exposes checkAdmission without mutating the pool, so
// callers verifying a proposal built elsewhere (BlockMgmt.VerifyProposal)
// can apply the same admission rule to every transaction it carries.
func (m *Mempool) PreCheck(tx types.SignedTransaction) error {
	return m.checkAdmission(tx)
}

// Insert admits tx, rejecting it if the pool is full, the hash is
// already known, or it fails checkAdmission's pre-check.
// Lock order: pendingBySender is read/written under the single mu,
// matching the write-then-read ordering rt-evm's TinyMempool enforces
// between pending_by_sender and txs.
func (m *Mempool) Insert(tx types.SignedTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash := tx.Transaction.Hash
	if _, ok := m.byHash[hash]; ok {
		return ErrAlreadyKnown
	}
	if len(m.byHash) >= m.cfg.Capacity {
		return ErrPoolFull
	}
	if err := m.checkAdmission(tx); err != nil {
		return err
	}

	index := m.nextIndex
	m.nextIndex--

	entry := &indexedTx{index: index, tx: tx, admittedAtBucket: m.bucketFor(uint64(m.nowFn().Unix()))}
	m.byIndex.ReplaceOrInsert(btreeItem{entry})
	m.byHash[hash] = entry

	bucket := m.lifetimeBucket[entry.admittedAtBucket]
	if bucket == nil {
		bucket = make(map[common.Hash]struct{})
		m.lifetimeBucket[entry.admittedAtBucket] = bucket
	}
	bucket[hash] = struct{}{}

	senderSet, ok := m.pendingBySender[tx.Sender]
	if !ok {
		senderSet = make(map[common.Hash]uint64)
		m.pendingBySender[tx.Sender] = senderSet
	}
	senderSet[hash] = tx.Transaction.Unsigned.Nonce()

	m.broadcastQueue.PushBack(hash)
	return nil
}

// btreeItem adapts *indexedTx to btree.Item.
type btreeItem struct{ *indexedTx }

func (a btreeItem) Less(other btree.Item) bool {
	return a.indexedTx.index < other.(btreeItem).indexedTx.index
}

// TakeBroadcast drains and returns every transaction hash queued for
// gossip since the last call (the supplemented rt-evm broadcast-queue
// accessor; see SPEC_FULL.md).
func (m *Mempool) TakeBroadcast() []common.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]common.Hash, 0, m.broadcastQueue.Len())
	for e := m.broadcastQueue.Front(); e != nil; {
		next := e.Next()
		out = append(out, e.Value.(common.Hash))
		m.broadcastQueue.Remove(e)
		e = next
	}
	return out
}

// Propose returns up to limit transactions ordered by gas price
// descending, then by nonce ascending, mirroring rt-evm's
// tx_take_propose priority so higher-fee transactions are included
// first. The nonce order holds only among equal gas prices: a sender's
// transactions at different gas prices are ordered by gas price.
func (m *Mempool) Propose(limit int) []types.SignedTransaction {
	m.mu.Lock()
	all := make([]types.SignedTransaction, 0, m.byIndex.Len())
	m.byIndex.Ascend(func(item btree.Item) bool {
		all = append(all, item.(btreeItem).indexedTx.tx)
		return true
	})
	m.mu.Unlock()

	// sortByGasPriceThenNonce is a stable insertion sort, so
	// transactions with equal gas price and nonce keep the newest-first
	// order Ascend produced above.
	sortByGasPriceThenNonce(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}

func sortByGasPriceThenNonce(txs []types.SignedTransaction) {
	// Insertion sort is adequate here: proposal batches are bounded by
	// mempool capacity and this runs once per produced block, not on
	// any hot per-transaction path.
	for i := 1; i < len(txs); i++ {
		j := i
		for j > 0 && less(txs[j], txs[j-1]) {
			txs[j], txs[j-1] = txs[j-1], txs[j]
			j--
		}
	}
}

func less(a, b types.SignedTransaction) bool {
	gpA := a.Transaction.Unsigned.GasPrice()
	gpB := b.Transaction.Unsigned.GasPrice()
	if cmp := gpA.Cmp(gpB); cmp != 0 {
		return cmp > 0 // higher gas price first
	}
	return a.Transaction.Unsigned.Nonce() < b.Transaction.Unsigned.Nonce()
}

// Remove drops tx (e.g. once it has been included in a produced
// block) from every index.
func (m *Mempool) Remove(hash common.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(hash)
}

func (m *Mempool) removeLocked(hash common.Hash) {
	entry, ok := m.byHash[hash]
	if !ok {
		return
	}
	m.byIndex.Delete(btreeItem{entry})
	delete(m.byHash, hash)
	if bucket, ok := m.lifetimeBucket[entry.admittedAtBucket]; ok {
		delete(bucket, hash)
		if len(bucket) == 0 {
			delete(m.lifetimeBucket, entry.admittedAtBucket)
		}
	}
	if senderSet, ok := m.pendingBySender[entry.tx.Sender]; ok {
		delete(senderSet, hash)
		if len(senderSet) == 0 {
			delete(m.pendingBySender, entry.tx.Sender)
		}
	}
}

// Len returns the number of currently admitted transactions.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byHash)
}

// PendingCountOf returns how many of addr's transactions currently
// sit in the pool, used by the query API to synthesize a "pending"
// block view of an account's nonce.
func (m *Mempool) PendingCountOf(addr common.Address) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pendingBySender[addr])
}

// cleanup evicts every transaction admitted into a bucket the clock
// has now aged out of the lifetime window.
func (m *Mempool) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	guard := m.bucketFor(uint64(m.nowFn().Unix()))
	for bucket, hashes := range m.lifetimeBucket {
		if bucket == guard {
			continue
		}
		for hash := range hashes {
			m.removeLocked(hash)
		}
	}
}

// Start launches the background cleaner goroutine; Stop must be
// called to let it exit (and is safe to await via goleak in tests).
func (m *Mempool) Start() {
	go func() {
		defer close(m.doneCh)
		interval := time.Duration(m.cfg.LifetimeSecs) * time.Second
		if interval <= 0 {
			interval = time.Second
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.cleanup()
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop signals the cleaner goroutine to exit and waits for it.
func (m *Mempool) Stop() {
	close(m.stopCh)
	<-m.doneCh
}
