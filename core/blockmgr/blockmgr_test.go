// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package blockmgr

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/ferrochain/evmcore/core/genesis"
	"github.com/ferrochain/evmcore/core/mempool"
	"github.com/ferrochain/evmcore/core/storage"
	"github.com/ferrochain/evmcore/core/types"
	"github.com/ferrochain/evmcore/kv"
	evmtrie "github.com/ferrochain/evmcore/trie"
)

type harness struct {
	mgr   *BlockMgmt
	pool  *mempool.Mempool
	store *storage.Storage
}

func newHarness(t *testing.T, allocs []genesis.Alloc) *harness {
	t.Helper()
	dir := t.TempDir()

	trieStore := evmtrie.NewStore(func(string) (kv.DB, error) { return kv.NewMemDB(), nil }, 1<<16)
	worldTrie, err := trieStore.Create(WorldStateBackendKey)
	require.NoError(t, err)

	genBlock, err := genesis.Bootstrap(dir, worldTrie, genesis.Config{
		ChainID: 1337, Timestamp: 1, Allocs: allocs,
	})
	require.NoError(t, err)

	st, err := storage.New(kv.NewMemDB())
	require.NoError(t, err)
	require.NoError(t, st.PutBlock(genBlock))

	pool := mempool.New(mempool.DefaultConfig(), nil, nil)
	pool.Start()
	t.Cleanup(pool.Stop)

	mgr := New(trieStore, st, pool, 1337, genBlock.Header)
	return &harness{mgr: mgr, pool: pool, store: st}
}

func TestBlockMgmtProducesGenesisThenSimpleTransfer(t *testing.T) {
	sender, _ := crypto.GenerateKey()
	senderAddr := crypto.PubkeyToAddress(sender.PublicKey)
	h := newHarness(t, []genesis.Alloc{{Address: senderAddr, Balance: big.NewInt(10_000_000)}})

	to := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	unsigned := &types.LegacyTx{
		NonceVal: 0, GasPriceVal: big.NewInt(1), GasLimitVal: 21000,
		ActionVal: types.CallAction(to), ValueVal: big.NewInt(5000),
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
	require.NoError(t, h.pool.Insert(signed))

	block, receipts, err := h.mgr.ProduceBlock(common.Address{}, 2, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), block.Header.Number)
	require.Len(t, block.Transactions, 1)
	require.Len(t, receipts, 1)
	require.Equal(t, uint64(1), receipts[0].Status)
	require.Equal(t, uint64(0), h.pool.Len())
	require.Equal(t, block.Header, h.mgr.Head())
}

func TestBlockMgmtBadNonceYieldsFailedReceipt(t *testing.T) {
	sender, _ := crypto.GenerateKey()
	senderAddr := crypto.PubkeyToAddress(sender.PublicKey)
	h := newHarness(t, []genesis.Alloc{{Address: senderAddr, Balance: big.NewInt(10_000_000)}})

	to := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	unsigned := &types.LegacyTx{
		NonceVal: 1, GasPriceVal: big.NewInt(1), GasLimitVal: 21000, // should be 0
		ActionVal: types.CallAction(to), ValueVal: big.NewInt(100),
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
	require.NoError(t, h.pool.Insert(signed))

	_, receipts, err := h.mgr.ProduceBlock(common.Address{}, 2, 0)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	require.Equal(t, uint64(0), receipts[0].Status)
}

func TestBlockMgmtContractCreateAndStorageWrite(t *testing.T) {
	sender, _ := crypto.GenerateKey()
	senderAddr := crypto.PubkeyToAddress(sender.PublicKey)
	h := newHarness(t, []genesis.Alloc{{Address: senderAddr, Balance: big.NewInt(10_000_000)}})

	// PUSH1 0x2a PUSH1 0x00 SSTORE PUSH1 0x00 PUSH1 0x00 RETURN
	init := []byte{0x60, 0x2a, 0x60, 0x00, 0x55, 0x60, 0x00, 0x60, 0x00, 0xf3}
	unsigned := &types.LegacyTx{
		NonceVal: 0, GasPriceVal: big.NewInt(1), GasLimitVal: 200_000,
		ActionVal: types.CreateAction(), ValueVal: big.NewInt(0), DataVal: init,
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
	require.NoError(t, h.pool.Insert(signed))

	block, receipts, err := h.mgr.ProduceBlock(common.Address{}, 2, 0)
	require.NoError(t, err)
	require.Len(t, block.Transactions, 1)
	require.Len(t, receipts, 1)
	require.Equal(t, uint64(1), receipts[0].Status)
	require.NotNil(t, receipts[0].ContractAddress)
	require.Nil(t, receipts[0].To)
}

func TestBlockMgmtVerifyProposalMatchesHeader(t *testing.T) {
	sender, _ := crypto.GenerateKey()
	senderAddr := crypto.PubkeyToAddress(sender.PublicKey)
	h := newHarness(t, []genesis.Alloc{{Address: senderAddr, Balance: big.NewInt(10_000_000)}})

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

	head := h.mgr.Head()
	proposal := h.mgr.GenerateProposal(common.Address{}, 2, 0)
	proposal.Transactions = []types.SignedTransaction{signed}

	block, _, err := h.mgr.GenerateBlock(head, proposal)
	require.NoError(t, err)

	ok, err := h.mgr.VerifyProposal(head, proposal, block.Header)
	require.NoError(t, err)
	require.True(t, ok)
}
