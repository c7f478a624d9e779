// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package executor

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/ferrochain/evmcore/core/state"
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

func newTestState(t *testing.T) *state.StateDB {
	t.Helper()
	store := trie.NewStore(func(string) (kv.DB, error) { return kv.NewMemDB(), nil }, 1<<16)
	worldTrie, err := store.Create("world-state")
	require.NoError(t, err)
	openStorage := func(addr common.Address, root common.Hash) (*trie.MutableHandle, error) {
		return store.RestoreOrCreate("storage:"+addr.Hex(), root)
	}
	return state.New(worldTrie, newMemCode(), noHashes{}, ChainConfig(1337).Rules(big.NewInt(1), false, 0), openStorage)
}

func testContext() Context {
	return Context{
		ChainID:     1337,
		BlockNumber: 1,
		Timestamp:   1000,
		GasLimit:    8_000_000,
		BaseFee:     new(big.Int),
		GetHash:     func(uint64) common.Hash { return common.Hash{} },
	}
}

func signLegacy(t *testing.T, tx *types.LegacyTx, chainID uint64) types.SignedTransaction {
	t.Helper()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	hash, err := types.SigningHash(tx, chainID)
	require.NoError(t, err)
	sig, err := crypto.Sign(hash.Bytes(), priv)
	require.NoError(t, err)
	utx := types.UnverifiedTransaction{
		Unsigned:  tx,
		Signature: &types.SignatureComponents{V: sig[64], R: sig[0:32], S: sig[32:64]},
		ChainID:   chainID,
	}
	signed, err := types.Recover(utx)
	require.NoError(t, err)
	return signed
}

func TestExecSimpleTransferSucceeds(t *testing.T) {
	st := newTestState(t)
	to := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	tx := &types.LegacyTx{
		NonceVal: 0, GasPriceVal: big.NewInt(1), GasLimitVal: 21000,
		ActionVal: types.CallAction(to), ValueVal: big.NewInt(1000),
	}
	signed := signLegacy(t, tx, 1337)

	st.AddBalance(signed.Sender, uint256.NewInt(1_000_000), 0)

	result, _, err := Exec(testContext(), st, signed)
	require.NoError(t, err)
	require.True(t, result.Succeeded)
	require.Equal(t, uint64(21000), result.UsedGas)
	require.Equal(t, uint256.NewInt(1000), st.GetBalance(to))
}

func TestExecNonceTooLowYieldsFailedReceipt(t *testing.T) {
	st := newTestState(t)
	to := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	tx := &types.LegacyTx{
		NonceVal: 0, GasPriceVal: big.NewInt(1), GasLimitVal: 21000,
		ActionVal: types.CallAction(to), ValueVal: big.NewInt(0),
	}
	signed := signLegacy(t, tx, 1337)
	st.AddBalance(signed.Sender, uint256.NewInt(1_000_000), 0)
	st.SetNonce(signed.Sender, 1) // sender has already advanced past nonce 0

	result, _, err := Exec(testContext(), st, signed)
	require.NoError(t, err)
	require.False(t, result.Succeeded)
	require.Equal(t, ErrNonceTooLow.Error(), result.ExitReason)
	require.Equal(t, uint64(2), st.GetNonce(signed.Sender), "invalid-nonce path must still advance the nonce by one")
}

func TestExecContractCreateAndSSTORE(t *testing.T) {
	st := newTestState(t)

	// PUSH1 0x2a PUSH1 0x00 SSTORE: stores 0x2a at storage slot 0 of the
	// deployed contract, then returns no code (a minimal init that just
	// mutates storage as a side effect of construction).
	init := []byte{0x60, 0x2a, 0x60, 0x00, 0x55, 0x60, 0x00, 0x60, 0x00, 0xf3}
	tx := &types.LegacyTx{
		NonceVal: 0, GasPriceVal: big.NewInt(1), GasLimitVal: 200_000,
		ActionVal: types.CreateAction(), ValueVal: big.NewInt(0), DataVal: init,
	}
	signed := signLegacy(t, tx, 1337)
	st.AddBalance(signed.Sender, uint256.NewInt(10_000_000), 0)

	result, _, err := Exec(testContext(), st, signed)
	require.NoError(t, err)
	require.True(t, result.Succeeded)
	require.NotNil(t, result.ContractAddr)

	slot := st.GetState(*result.ContractAddr, common.Hash{})
	require.Equal(t, common.HexToHash("0x2a"), slot)
}

func TestCallUsedGasIncludesIntrinsic(t *testing.T) {
	st := newTestState(t)
	from := common.HexToAddress("0x0000000000000000000000000000000000cafe")
	to := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	st.AddBalance(from, uint256.NewInt(1_000_000), 0)

	tx := &types.LegacyTx{
		NonceVal: 0, GasPriceVal: big.NewInt(1), GasLimitVal: 21000,
		ActionVal: types.CallAction(to), ValueVal: big.NewInt(1),
	}

	result, err := Call(testContext(), st, from, tx, tx.GasLimitVal)
	require.NoError(t, err)
	require.True(t, result.Succeeded)
	require.Equal(t, uint64(21000), result.UsedGas, "a plain transfer spends nothing beyond the intrinsic floor")
}

func TestIntrinsicGasAccountsForDataBytes(t *testing.T) {
	tx := &types.LegacyTx{
		ActionVal: types.CreateAction(),
		DataVal:   []byte{0x00, 0x01, 0x02},
	}
	// 32000 base + 4 (zero byte) + 16 + 16 (non-zero bytes)
	require.Equal(t, uint64(32000+4+16+16), IntrinsicGas(tx))
}
