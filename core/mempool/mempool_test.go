// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package mempool

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ferrochain/evmcore/core/types"
	"github.com/ferrochain/evmcore/params"
)

func mustTx(t *testing.T, nonce uint64, gasPrice int64) types.SignedTransaction {
	t.Helper()
	return mustTxWithGasLimit(t, nonce, gasPrice, 21000)
}

func mustTxWithGasLimit(t *testing.T, nonce uint64, gasPrice int64, gasLimit uint64) types.SignedTransaction {
	t.Helper()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	to := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	unsigned := &types.LegacyTx{
		NonceVal:    nonce,
		GasPriceVal: big.NewInt(gasPrice),
		GasLimitVal: gasLimit,
		ActionVal:   types.CallAction(to),
		ValueVal:    big.NewInt(0),
	}
	hash, err := types.SigningHash(unsigned, 1337)
	require.NoError(t, err)
	sig, err := crypto.Sign(hash.Bytes(), priv)
	require.NoError(t, err)
	utx := types.UnverifiedTransaction{
		Unsigned:  unsigned,
		Signature: &types.SignatureComponents{V: sig[64], R: sig[0:32], S: sig[32:64]},
		ChainID:   1337,
	}
	signed, err := types.Recover(utx)
	require.NoError(t, err)
	return signed
}

// stubOracle is a configurable AccountOracle: zero value behaves as an
// all-permitting oracle (nonce 0, ample balance, nothing persisted).
type stubOracle struct {
	nonce     uint64
	balance   *big.Int
	persisted map[common.Hash]bool
}

func (s stubOracle) NonceOf(common.Address) uint64 { return s.nonce }

func (s stubOracle) BalanceOf(common.Address) *big.Int {
	if s.balance == nil {
		return big.NewInt(1_000_000_000_000)
	}
	return s.balance
}

func (s stubOracle) IsPersisted(hash common.Hash) bool { return s.persisted[hash] }

func TestMempoolInsertRejectsDuplicateAndFull(t *testing.T) {
	m := New(Config{Capacity: 1, LifetimeSecs: 60, GasCap: params.MempoolDefaultGasCap}, stubOracle{}, nil)
	tx := mustTx(t, 0, 10)

	require.NoError(t, m.Insert(tx))
	require.ErrorIs(t, m.Insert(tx), ErrAlreadyKnown)

	other := mustTx(t, 0, 20)
	require.ErrorIs(t, m.Insert(other), ErrPoolFull)
}

func TestMempoolInsertRejectsNonceTooLow(t *testing.T) {
	m := New(DefaultConfig(), stubOracle{nonce: 5}, nil)
	tx := mustTx(t, 1, 10)
	require.ErrorIs(t, m.Insert(tx), ErrNonceTooLow)
}

func TestMempoolInsertRejectsGasPriceOutOfRange(t *testing.T) {
	m := New(DefaultConfig(), stubOracle{}, nil)
	zero := mustTx(t, 0, 0)
	require.ErrorIs(t, m.Insert(zero), ErrGasPriceOutOfRange)
}

func TestMempoolInsertRejectsGasLimitOutOfRange(t *testing.T) {
	m := New(Config{Capacity: 10, LifetimeSecs: 60, GasCap: 21000}, stubOracle{}, nil)
	tx := mustTxWithGasLimit(t, 0, 10, 30000)
	require.ErrorIs(t, m.Insert(tx), ErrGasLimitOutOfRange)
}

func TestMempoolInsertRejectsInsufficientBalance(t *testing.T) {
	m := New(DefaultConfig(), stubOracle{balance: big.NewInt(1)}, nil)
	tx := mustTx(t, 0, 10)
	require.ErrorIs(t, m.Insert(tx), ErrInsufficientBalance)
}

func TestMempoolInsertRejectsAlreadyPersisted(t *testing.T) {
	tx := mustTx(t, 0, 10)
	oracle := stubOracle{persisted: map[common.Hash]bool{tx.Transaction.Hash: true}}
	m := New(DefaultConfig(), oracle, nil)
	require.ErrorIs(t, m.Insert(tx), ErrAlreadyPersisted)
}

func TestMempoolProposeOrdersByGasPriceDescending(t *testing.T) {
	m := New(DefaultConfig(), stubOracle{}, nil)
	low := mustTx(t, 0, 5)
	high := mustTx(t, 0, 50)
	mid := mustTx(t, 0, 20)

	require.NoError(t, m.Insert(low))
	require.NoError(t, m.Insert(high))
	require.NoError(t, m.Insert(mid))

	proposed := m.Propose(0)
	require.Len(t, proposed, 3)
	require.Equal(t, high.Transaction.Hash, proposed[0].Transaction.Hash)
	require.Equal(t, mid.Transaction.Hash, proposed[1].Transaction.Hash)
	require.Equal(t, low.Transaction.Hash, proposed[2].Transaction.Hash)
}

func TestMempoolProposeRespectsLimit(t *testing.T) {
	m := New(DefaultConfig(), stubOracle{}, nil)
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Insert(mustTx(t, 0, int64(i+1))))
	}
	require.Len(t, m.Propose(2), 2)
}

func TestMempoolRemoveDropsFromEveryIndex(t *testing.T) {
	m := New(DefaultConfig(), stubOracle{}, nil)
	tx := mustTx(t, 0, 10)
	require.NoError(t, m.Insert(tx))
	require.Equal(t, 1, m.Len())

	m.Remove(tx.Transaction.Hash)
	require.Equal(t, 0, m.Len())
	require.Equal(t, 0, m.PendingCountOf(tx.Sender))
}

func TestMempoolTakeBroadcastDrainsQueue(t *testing.T) {
	m := New(DefaultConfig(), stubOracle{}, nil)
	tx := mustTx(t, 0, 10)
	require.NoError(t, m.Insert(tx))

	hashes := m.TakeBroadcast()
	require.Equal(t, []common.Hash{tx.Transaction.Hash}, hashes)
	require.Empty(t, m.TakeBroadcast())
}

func TestMempoolCleanupEvictsExpiredBucket(t *testing.T) {
	now := time.Unix(0, 0)
	m := New(Config{Capacity: 10, LifetimeSecs: 10, GasCap: params.MempoolDefaultGasCap}, stubOracle{}, nil)
	m.WithClock(func() time.Time { return now })

	tx := mustTx(t, 0, 10)
	require.NoError(t, m.Insert(tx))
	require.Equal(t, 1, m.Len())

	now = now.Add(11 * time.Second)
	m.cleanup()
	require.Equal(t, 0, m.Len())
}

func TestMempoolStartStopTerminatesCleanlyWithoutLeaks(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := New(Config{Capacity: 10, LifetimeSecs: 1}, stubOracle{}, nil)
	m.Start()
	m.Stop()
}
