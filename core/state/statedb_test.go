// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	gethparams "github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/ferrochain/evmcore/core/types"
	"github.com/ferrochain/evmcore/kv"
	"github.com/ferrochain/evmcore/trie"
)

type memCode struct{ m map[common.Hash][]byte }

func newMemCode() *memCode { return &memCode{m: make(map[common.Hash][]byte)} }

func (c *memCode) GetCode(hash common.Hash) ([]byte, error) { return c.m[hash], nil }
func (c *memCode) PutCode(hash common.Hash, code []byte) error {
	c.m[hash] = code
	return nil
}

type noHashes struct{}

func (noHashes) GetHashByNumber(uint64) (common.Hash, bool) { return common.Hash{}, false }

func newTestStateDB(t *testing.T) (*StateDB, *trie.Store) {
	t.Helper()
	store := trie.NewStore(func(string) (kv.DB, error) { return kv.NewMemDB(), nil }, 1<<16)
	worldTrie, err := store.Create("world-state")
	require.NoError(t, err)

	openStorage := func(addr common.Address, root common.Hash) (*trie.MutableHandle, error) {
		return store.RestoreOrCreate("storage:"+addr.Hex(), root)
	}
	return New(worldTrie, newMemCode(), noHashes{}, gethparams.Rules{}, openStorage), store
}

func TestStateDBBalanceAndNonce(t *testing.T) {
	sdb, _ := newTestStateDB(t)
	addr := common.HexToAddress("0x0000000000000000000000000000000000dEaD")

	sdb.AddBalance(addr, uint256.NewInt(100), tracing.BalanceChangeUnspecified)
	require.Equal(t, uint256.NewInt(100), sdb.GetBalance(addr))

	sdb.SubBalance(addr, uint256.NewInt(40), tracing.BalanceChangeUnspecified)
	require.Equal(t, uint256.NewInt(60), sdb.GetBalance(addr))

	sdb.SetNonce(addr, 5)
	require.Equal(t, uint64(5), sdb.GetNonce(addr))
}

func TestStateDBSnapshotRevert(t *testing.T) {
	sdb, _ := newTestStateDB(t)
	addr := common.HexToAddress("0x0000000000000000000000000000000000beEF")

	sdb.AddBalance(addr, uint256.NewInt(10), tracing.BalanceChangeUnspecified)
	snap := sdb.Snapshot()
	sdb.AddBalance(addr, uint256.NewInt(90), tracing.BalanceChangeUnspecified)
	require.Equal(t, uint256.NewInt(100), sdb.GetBalance(addr))

	sdb.RevertToSnapshot(snap)
	require.Equal(t, uint256.NewInt(10), sdb.GetBalance(addr))
}

func TestStateDBStorageSetGet(t *testing.T) {
	sdb, _ := newTestStateDB(t)
	addr := common.HexToAddress("0x0000000000000000000000000000000000cAFe")
	key := common.HexToHash("0x01")
	value := common.HexToHash("0x2a")

	require.Equal(t, common.Hash{}, sdb.GetState(addr, key))
	sdb.SetState(addr, key, value)
	require.Equal(t, value, sdb.GetState(addr, key))
}

func TestStateDBCodeRoundTrip(t *testing.T) {
	sdb, _ := newTestStateDB(t)
	addr := common.HexToAddress("0x0000000000000000000000000000000000f00d")
	code := []byte{0x60, 0x01, 0x60, 0x02, 0x01}

	sdb.SetCode(addr, code)
	require.Equal(t, code, sdb.GetCode(addr))
	require.Equal(t, len(code), sdb.GetCodeSize(addr))
}

func TestStateDBSelfDestructMarksDestroyed(t *testing.T) {
	sdb, _ := newTestStateDB(t)
	addr := common.HexToAddress("0x0000000000000000000000000000000000aBcD")
	sdb.AddBalance(addr, uint256.NewInt(5), tracing.BalanceChangeUnspecified)

	require.False(t, sdb.HasSelfDestructed(addr))
	sdb.SelfDestruct(addr)
	require.True(t, sdb.HasSelfDestructed(addr))
	require.Equal(t, new(uint256.Int), sdb.GetBalance(addr))
}

func TestStateDBCommitPersistsAccountAndStorage(t *testing.T) {
	sdb, _ := newTestStateDB(t)
	addr := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	key := common.HexToHash("0x01")
	value := common.HexToHash("0x7b")

	sdb.AddBalance(addr, uint256.NewInt(500), tracing.BalanceChangeUnspecified)
	sdb.SetNonce(addr, 1)
	sdb.SetState(addr, key, value)

	root, err := sdb.Commit()
	require.NoError(t, err)
	require.NotEqual(t, kv.NullHash, root)

	raw, err := sdb.worldTrie.Get(addr.Bytes())
	require.NoError(t, err)
	require.NotNil(t, raw)

	acc, err := types.DecodeAccount(raw)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(500), acc.Balance)
	require.Equal(t, uint64(1), acc.Nonce)
	require.NotEqual(t, types.NilHash, acc.StorageRoot)
}

func TestStateDBCommitDeletesEmptyAccount(t *testing.T) {
	sdb, _ := newTestStateDB(t)
	addr := common.HexToAddress("0x0000000000000000000000000000000000e000")

	sdb.CreateAccount(addr)
	_, err := sdb.Commit()
	require.NoError(t, err)

	raw, err := sdb.worldTrie.Get(addr.Bytes())
	require.NoError(t, err)
	require.Nil(t, raw)
}
