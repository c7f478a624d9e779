// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package query

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/ferrochain/evmcore/core/blockmgr"
	"github.com/ferrochain/evmcore/core/genesis"
	"github.com/ferrochain/evmcore/core/mempool"
	"github.com/ferrochain/evmcore/core/storage"
	"github.com/ferrochain/evmcore/core/types"
	"github.com/ferrochain/evmcore/kv"
	evmtrie "github.com/ferrochain/evmcore/trie"
)

func newTestAdapter(t *testing.T, allocs []genesis.Alloc) (*Adapter, *blockmgr.BlockMgmt, *mempool.Mempool) {
	t.Helper()
	dir := t.TempDir()

	trieStore := evmtrie.NewStore(func(string) (kv.DB, error) { return kv.NewMemDB(), nil }, 1<<16)
	worldTrie, err := trieStore.Create(blockmgr.WorldStateBackendKey)
	require.NoError(t, err)

	genBlock, err := genesis.Bootstrap(dir, worldTrie, genesis.Config{ChainID: 1337, Timestamp: 1, Allocs: allocs})
	require.NoError(t, err)

	st, err := storage.New(kv.NewMemDB())
	require.NoError(t, err)
	require.NoError(t, st.PutBlock(genBlock))

	pool := mempool.New(mempool.DefaultConfig(), nil, nil)
	mgr := blockmgr.New(trieStore, st, pool, 1337, genBlock.Header)

	return New(st, pool, mgr, trieStore, 1337), mgr, pool
}

func TestAdapterGetBalanceAtLatest(t *testing.T) {
	addr := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	adapter, _, _ := newTestAdapter(t, []genesis.Alloc{{Address: addr, Balance: big.NewInt(42)}})

	bal, err := adapter.GetBalance(addr, Latest())
	require.NoError(t, err)
	require.Equal(t, 0, big.NewInt(42).Cmp(bal))
}

func TestAdapterGetBalanceUnknownAddressIsZero(t *testing.T) {
	adapter, _, _ := newTestAdapter(t, nil)
	bal, err := adapter.GetBalance(common.HexToAddress("0x1"), Latest())
	require.NoError(t, err)
	require.Equal(t, 0, big.NewInt(0).Cmp(bal))
}

func TestAdapterResolveHeaderUnknownNumberErrors(t *testing.T) {
	adapter, _, _ := newTestAdapter(t, nil)
	_, err := adapter.GetTransactionCount(common.Address{}, ByNumber(999))
	require.ErrorIs(t, err, ErrBlockNotFound)
}

func TestAdapterBlockNumberMatchesHead(t *testing.T) {
	adapter, mgr, _ := newTestAdapter(t, nil)
	require.Equal(t, mgr.Head().Number, adapter.BlockNumber())
}

func TestAdapterGetTransactionCountPendingIncludesMempool(t *testing.T) {
	sender, _ := crypto.GenerateKey()
	senderAddr := crypto.PubkeyToAddress(sender.PublicKey)
	adapter, _, pool := newTestAdapter(t, []genesis.Alloc{{Address: senderAddr, Balance: big.NewInt(1_000_000)}})

	to := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	unsigned := &types.LegacyTx{
		NonceVal: 0, GasPriceVal: big.NewInt(1), GasLimitVal: 21000,
		ActionVal: types.CallAction(to), ValueVal: big.NewInt(1),
	}
	hash, err := types.SigningHash(unsigned, 1337)
	require.NoError(t, err)
	sig, err := crypto.Sign(hash.Bytes(), sender)
	require.NoError(t, err)
	signed, err := types.Recover(types.UnverifiedTransaction{
		Unsigned: unsigned, ChainID: 1337,
		Signature: &types.SignatureComponents{V: sig[64], R: sig[0:32], S: sig[32:64]},
	})
	require.NoError(t, err)
	require.NoError(t, pool.Insert(signed))

	latestCount, err := adapter.GetTransactionCount(senderAddr, Latest())
	require.NoError(t, err)
	require.Equal(t, uint64(0), latestCount)

	pendingCount, err := adapter.GetTransactionCount(senderAddr, Pending())
	require.NoError(t, err)
	require.Equal(t, uint64(1), pendingCount)
}

func TestAdapterEstimateGasMatchesIntrinsicFloorForPlainTransfer(t *testing.T) {
	from := common.HexToAddress("0x0000000000000000000000000000000000cafe")
	to := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	adapter, _, _ := newTestAdapter(t, []genesis.Alloc{{Address: from, Balance: big.NewInt(1_000_000)}})

	tx := &types.LegacyTx{
		NonceVal: 0, GasPriceVal: big.NewInt(1), GasLimitVal: 21000,
		ActionVal: types.CallAction(to), ValueVal: big.NewInt(1),
	}
	gas, err := adapter.EstimateGas(from, tx, Latest())
	require.NoError(t, err)
	require.Equal(t, uint64(21000), gas)
}

func TestAdapterGetLogsEmptyRangeReturnsNil(t *testing.T) {
	adapter, _, _ := newTestAdapter(t, nil)
	logs, err := adapter.GetLogs(1, 5, nil, nil)
	require.NoError(t, err)
	require.Empty(t, logs)
}
