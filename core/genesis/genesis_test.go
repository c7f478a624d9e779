// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package genesis

import (
	"math/big"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ferrochain/evmcore/kv"
	"github.com/ferrochain/evmcore/trie"
)

func TestInspectReportsCold(t *testing.T) {
	dir := t.TempDir()
	status, err := Inspect(dir)
	require.NoError(t, err)
	require.True(t, status.IsCold())
	require.False(t, status.IsWarm())
}

func TestInspectReportsPartialState(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/"+chainIDMetaFile, []byte("1"), 0o644))

	_, err := Inspect(dir)
	require.ErrorIs(t, err, ErrPartialState)
}

func TestBootstrapWritesMetaAndAppliesAllocs(t *testing.T) {
	dir := t.TempDir()
	store := trie.NewStore(func(string) (kv.DB, error) { return kv.NewMemDB(), nil }, 1<<16)
	handle, err := store.Create("world-state")
	require.NoError(t, err)

	addr := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	cfg := Config{
		ChainID:   1337,
		Timestamp: 1000,
		Allocs:    []Alloc{{Address: addr, Balance: big.NewInt(5_000_000)}},
	}

	block, err := Bootstrap(dir, handle, cfg)
	require.NoError(t, err)
	require.Equal(t, uint64(0), block.Header.Number)
	require.NotEqual(t, common.Hash{}, block.Header.StateRoot)

	status, err := Inspect(dir)
	require.NoError(t, err)
	require.True(t, status.IsWarm())

	gotChainID, err := ReadChainID(dir)
	require.NoError(t, err)
	require.Equal(t, uint64(1337), gotChainID)

	gotRoot, err := ReadTrieRoot(dir)
	require.NoError(t, err)
	require.Equal(t, block.Header.StateRoot, gotRoot)
}
