// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.
//
// Storage is the durable block/header/transaction/receipt/code store,
// the Go port of rt-evm's FunStorage (storage/src/lib.rs): a
// goleveldb-backed key space with an in-process LRU read cache in
// front of it, matching the role rt-evm gives `moka::sync::Cache`.

package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	lru "github.com/hashicorp/golang-lru"

	"github.com/ferrochain/evmcore/core/types"
	"github.com/ferrochain/evmcore/kv"
)

var (
	prefixHeaderByNumber = []byte("h")
	prefixHashByNumber    = []byte("n")
	prefixNumberByHash    = []byte("H")
	prefixBlockByHash     = []byte("b")
	prefixTxByHash        = []byte("t")
	prefixTxLocation      = []byte("l")
	prefixReceiptByHash   = []byte("r")
	prefixCodeByHash      = []byte("c")
	keyLatestNumber       = []byte("latest")
)

func numKey(prefix []byte, n uint64) []byte {
	b := make([]byte, len(prefix)+8)
	copy(b, prefix)
	binary.BigEndian.PutUint64(b[len(prefix):], n)
	return b
}

func hashKey(prefix []byte, h common.Hash) []byte {
	return append(append([]byte(nil), prefix...), h.Bytes()...)
}

// txLocation records which block/index a transaction landed in, so
// eth_getTransactionByHash can find its receipt and position without
// scanning every block.
type txLocation struct {
	BlockHash common.Hash
	BlockNumber uint64
	Index     uint64
}

// Storage is the block/tx/receipt/code store.
type Storage struct {
	db         kv.DB
	blockCache *lru.Cache
	txCache    *lru.Cache
	receiptCache *lru.Cache
	codeCache  *lru.Cache
}

// New wraps db with 256-entry LRU caches for blocks/transactions/
// receipts and a 1024-entry cache for code (code is looked up far
// more often, once per CALL/DELEGATECALL/STATICCALL target).
func New(db kv.DB) (*Storage, error) {
	blockCache, err := lru.New(256)
	if err != nil {
		return nil, err
	}
	txCache, err := lru.New(256)
	if err != nil {
		return nil, err
	}
	receiptCache, err := lru.New(256)
	if err != nil {
		return nil, err
	}
	codeCache, err := lru.New(1024)
	if err != nil {
		return nil, err
	}
	return &Storage{db: db, blockCache: blockCache, txCache: txCache, receiptCache: receiptCache, codeCache: codeCache}, nil
}

// PutBlock persists a block's header (indexed by number and by hash)
// and every transaction/location it contains.
func (s *Storage) PutBlock(block *types.Block) error {
	hash := block.Header.Hash()

	headerRaw, err := rlp.EncodeToBytes(&block.Header)
	if err != nil {
		return err
	}
	if err := s.db.Put(numKey(prefixHeaderByNumber, block.Header.Number), headerRaw); err != nil {
		return err
	}
	if err := s.db.Put(numKey(prefixHashByNumber, block.Header.Number), hash.Bytes()); err != nil {
		return err
	}
	if err := s.db.Put(hashKey(prefixNumberByHash, hash), numberBytes(block.Header.Number)); err != nil {
		return err
	}

	txHashes := make([]common.Hash, len(block.Transactions))
	for i, tx := range block.Transactions {
		txHashes[i] = tx.Transaction.Hash
		raw, err := types.EncodeSigned(tx.Transaction)
		if err != nil {
			return err
		}
		if err := s.db.Put(hashKey(prefixTxByHash, tx.Transaction.Hash), raw); err != nil {
			return err
		}
		loc := txLocation{BlockHash: hash, BlockNumber: block.Header.Number, Index: uint64(i)}
		locRaw, err := rlp.EncodeToBytes(loc)
		if err != nil {
			return err
		}
		if err := s.db.Put(hashKey(prefixTxLocation, tx.Transaction.Hash), locRaw); err != nil {
			return err
		}
		s.txCache.Add(tx.Transaction.Hash, tx)
	}

	blockRaw, err := rlp.EncodeToBytes(blockRLP{Header: block.Header, TxHashes: txHashes})
	if err != nil {
		return err
	}
	if err := s.db.Put(hashKey(prefixBlockByHash, hash), blockRaw); err != nil {
		return err
	}
	if err := s.db.Put(keyLatestNumber, numberBytes(block.Header.Number)); err != nil {
		return err
	}

	s.blockCache.Add(hash, block)
	s.blockCache.Add(block.Header.Number, block)
	return nil
}

// PutReceipts persists the receipts produced for one block.
func (s *Storage) PutReceipts(receipts []types.Receipt) error {
	for _, r := range receipts {
		raw, err := rlp.EncodeToBytes(&r)
		if err != nil {
			return err
		}
		if err := s.db.Put(hashKey(prefixReceiptByHash, r.TransactionHash), raw); err != nil {
			return err
		}
		s.receiptCache.Add(r.TransactionHash, r)
	}
	return nil
}

// GetCode returns the code stored under hash, or nil if none.
func (s *Storage) GetCode(hash common.Hash) ([]byte, error) {
	if v, ok := s.codeCache.Get(hash); ok {
		return v.([]byte), nil
	}
	raw, err := s.db.Get(hashKey(prefixCodeByHash, hash))
	if err == kv.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.codeCache.Add(hash, raw)
	return raw, nil
}

// PutCode stores code under its keccak256 hash.
func (s *Storage) PutCode(hash common.Hash, code []byte) error {
	if err := s.db.Put(hashKey(prefixCodeByHash, hash), code); err != nil {
		return err
	}
	s.codeCache.Add(hash, code)
	return nil
}

// GetHeaderByNumber returns the header at number.
func (s *Storage) GetHeaderByNumber(number uint64) (*types.Header, error) {
	raw, err := s.db.Get(numKey(prefixHeaderByNumber, number))
	if err == kv.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var h types.Header
	if err := rlp.DecodeBytes(raw, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// GetHashByNumber resolves a block number to its hash, the lookup
// BLOCKHASH needs within the 256-block window.
func (s *Storage) GetHashByNumber(number uint64) (common.Hash, bool) {
	raw, err := s.db.Get(numKey(prefixHashByNumber, number))
	if err != nil {
		return common.Hash{}, false
	}
	return common.BytesToHash(raw), true
}

// GetNumberByHash resolves a block hash to its number.
func (s *Storage) GetNumberByHash(hash common.Hash) (uint64, bool) {
	raw, err := s.db.Get(hashKey(prefixNumberByHash, hash))
	if err != nil {
		return 0, false
	}
	return binary.BigEndian.Uint64(raw), true
}

// LatestNumber returns the number of the most recently persisted
// block, or (0, false) if the store is empty.
func (s *Storage) LatestNumber() (uint64, bool) {
	raw, err := s.db.Get(keyLatestNumber)
	if err != nil {
		return 0, false
	}
	return binary.BigEndian.Uint64(raw), true
}

// GetTransactionByHash returns the signed transaction stored under
// hash and the location it was included at.
func (s *Storage) GetTransactionByHash(hash common.Hash) (*types.SignedTransaction, *txLocation, error) {
	locRaw, err := s.db.Get(hashKey(prefixTxLocation, hash))
	if err == kv.ErrNotFound {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	var loc txLocation
	if err := rlp.DecodeBytes(locRaw, &loc); err != nil {
		return nil, nil, err
	}

	if v, ok := s.txCache.Get(hash); ok {
		tx := v.(types.SignedTransaction)
		return &tx, &loc, nil
	}

	raw, err := s.db.Get(hashKey(prefixTxByHash, hash))
	if err != nil {
		return nil, nil, err
	}
	utx, err := types.DecodeSigned(raw)
	if err != nil {
		return nil, nil, err
	}
	tx, err := types.Recover(utx)
	if err != nil {
		return nil, nil, err
	}
	s.txCache.Add(hash, tx)
	return &tx, &loc, nil
}

// GetReceiptByHash returns the receipt recorded for a transaction.
func (s *Storage) GetReceiptByHash(hash common.Hash) (*types.Receipt, error) {
	if v, ok := s.receiptCache.Get(hash); ok {
		r := v.(types.Receipt)
		return &r, nil
	}
	raw, err := s.db.Get(hashKey(prefixReceiptByHash, hash))
	if err == kv.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r types.Receipt
	if err := rlp.DecodeBytes(raw, &r); err != nil {
		return nil, err
	}
	s.receiptCache.Add(hash, r)
	return &r, nil
}

// GetBlockByHash reassembles a block from its header and transaction
// list.
func (s *Storage) GetBlockByHash(hash common.Hash) (*types.Block, error) {
	if v, ok := s.blockCache.Get(hash); ok {
		return v.(*types.Block), nil
	}
	raw, err := s.db.Get(hashKey(prefixBlockByHash, hash))
	if err == kv.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var enc blockRLP
	if err := rlp.DecodeBytes(raw, &enc); err != nil {
		return nil, err
	}
	txs := make([]types.SignedTransaction, 0, len(enc.TxHashes))
	for _, h := range enc.TxHashes {
		tx, _, err := s.GetTransactionByHash(h)
		if err != nil {
			return nil, err
		}
		if tx == nil {
			return nil, fmt.Errorf("evmcore/storage: missing transaction %s referenced by block %s", h, hash)
		}
		txs = append(txs, *tx)
	}
	block := &types.Block{Header: enc.Header, Transactions: txs}
	s.blockCache.Add(hash, block)
	return block, nil
}

// GetBlockByNumber resolves number to its hash and loads the block.
func (s *Storage) GetBlockByNumber(number uint64) (*types.Block, error) {
	hash, ok := s.GetHashByNumber(number)
	if !ok {
		return nil, nil
	}
	return s.GetBlockByHash(hash)
}

func numberBytes(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

type blockRLP struct {
	Header   types.Header
	TxHashes []common.Hash
}
