// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.
//
// Genesis bootstraps a fresh chain's persisted state: the chain id
// record, the token-distribution applied as a single batch of
// account writes, and the three EVM_RUNTIME_*.meta marker files rt-evm
// uses to distinguish a cold start from a restart (storage/src/lib.rs
// and blockmgmt/src/lib.rs describe this contract; spec.md §6 names
// the three file names verbatim).

package genesis

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ferrochain/evmcore/core/types"
	"github.com/ferrochain/evmcore/trie"
)

const (
	chainIDMetaFile  = "EVM_RUNTIME_chain_id.meta"
	trieMetaFile     = "EVM_RUNTIME_trie.meta"
	storageMetaFile  = "EVM_RUNTIME_storage.meta"
)

// ErrPartialState is returned when some but not all of the three meta
// files are present: a corrupt or interrupted prior run, which this
// runtime refuses to silently paper over.
var ErrPartialState = errors.New("evmcore/genesis: partial persisted state (some but not all meta files present)")

// Alloc is one genesis token allocation.
type Alloc struct {
	Address common.Address
	Balance *big.Int
}

// Config describes the genesis state to build on a cold start.
type Config struct {
	ChainID   uint64
	Timestamp uint64
	ExtraData []byte
	Allocs    []Alloc
}

// Status reports which of the three meta files exist under baseDir.
type Status struct {
	ChainIDPresent bool
	TriePresent    bool
	StoragePresent bool
}

// IsCold reports whether none of the three files are present (a fresh
// start).
func (s Status) IsCold() bool { return !s.ChainIDPresent && !s.TriePresent && !s.StoragePresent }

// IsWarm reports whether all three files are present (a clean
// restart).
func (s Status) IsWarm() bool { return s.ChainIDPresent && s.TriePresent && s.StoragePresent }

// Inspect reads which meta files exist under baseDir without
// modifying anything.
func Inspect(baseDir string) (Status, error) {
	exists := func(name string) (bool, error) {
		_, err := os.Stat(filepath.Join(baseDir, name))
		if err == nil {
			return true, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	var s Status
	var err error
	if s.ChainIDPresent, err = exists(chainIDMetaFile); err != nil {
		return Status{}, err
	}
	if s.TriePresent, err = exists(trieMetaFile); err != nil {
		return Status{}, err
	}
	if s.StoragePresent, err = exists(storageMetaFile); err != nil {
		return Status{}, err
	}
	if !s.IsCold() && !s.IsWarm() {
		return s, ErrPartialState
	}
	return s, nil
}

// Bootstrap applies cfg's token distribution to a freshly created
// world-state trie and writes the three meta marker files, returning
// the genesis block. It must only be called when Inspect reports
// IsCold(); callers restarting against existing state should use
// Restore-style helpers on trie.Store/core/storage instead.
func Bootstrap(baseDir string, worldTrie *trie.MutableHandle, cfg Config) (*types.Block, error) {
	for _, alloc := range cfg.Allocs {
		acc := types.EmptyAccount()
		acc.Balance = alloc.Balance
		encoded, err := acc.Encode()
		if err != nil {
			return nil, fmt.Errorf("evmcore/genesis: encode alloc %s: %w", alloc.Address, err)
		}
		if err := worldTrie.Update(alloc.Address.Bytes(), encoded); err != nil {
			return nil, fmt.Errorf("evmcore/genesis: apply alloc %s: %w", alloc.Address, err)
		}
	}

	stateRoot, err := worldTrie.Commit()
	if err != nil {
		return nil, err
	}

	block := types.Genesis(stateRoot, cfg.Timestamp, cfg.ExtraData)

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	if err := writeMeta(baseDir, chainIDMetaFile, []byte(fmt.Sprintf("%d", cfg.ChainID))); err != nil {
		return nil, err
	}
	if err := writeMeta(baseDir, trieMetaFile, stateRoot.Bytes()); err != nil {
		return nil, err
	}
	if err := writeMeta(baseDir, storageMetaFile, block.Header.Hash().Bytes()); err != nil {
		return nil, err
	}

	return block, nil
}

func writeMeta(baseDir, name string, content []byte) error {
	return os.WriteFile(filepath.Join(baseDir, name), content, 0o644)
}

// ReadChainID parses the persisted chain id marker file on a warm
// restart.
func ReadChainID(baseDir string) (uint64, error) {
	raw, err := os.ReadFile(filepath.Join(baseDir, chainIDMetaFile))
	if err != nil {
		return 0, err
	}
	var id uint64
	if _, err := fmt.Sscanf(string(raw), "%d", &id); err != nil {
		return 0, err
	}
	return id, nil
}

// ReadTrieRoot parses the persisted world-state root marker file on a
// warm restart.
func ReadTrieRoot(baseDir string) (common.Hash, error) {
	raw, err := os.ReadFile(filepath.Join(baseDir, trieMetaFile))
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(raw), nil
}
