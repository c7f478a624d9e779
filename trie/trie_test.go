// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package trie

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/ferrochain/evmcore/kv"
)

func newTestTrie(t *testing.T) *Trie {
	t.Helper()
	backend := kv.NewBackend(kv.NewMemDB(), 1<<16)
	return New(backend, []byte("test"), kv.NullHash)
}

func TestTrieGetMissingKeyIsNil(t *testing.T) {
	tr := newTestTrie(t)
	v, err := tr.Get([]byte("missing"))
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestTrieUpdateThenGet(t *testing.T) {
	tr := newTestTrie(t)
	require.NoError(t, tr.Update([]byte("foo"), []byte("bar")))
	require.NoError(t, tr.Update([]byte("food"), []byte("baz")))
	require.NoError(t, tr.Update([]byte("fox"), []byte("qux")))

	v, err := tr.Get([]byte("foo"))
	require.NoError(t, err)
	require.Equal(t, []byte("bar"), v)

	v, err = tr.Get([]byte("food"))
	require.NoError(t, err)
	require.Equal(t, []byte("baz"), v)

	v, err = tr.Get([]byte("fox"))
	require.NoError(t, err)
	require.Equal(t, []byte("qux"), v)

	require.NotEqual(t, common.Hash{}, tr.Root())
}

func TestTrieDeleteRemovesKey(t *testing.T) {
	tr := newTestTrie(t)
	require.NoError(t, tr.Update([]byte("alpha"), []byte("1")))
	require.NoError(t, tr.Update([]byte("alphabet"), []byte("2")))

	require.NoError(t, tr.Delete([]byte("alpha")))

	v, err := tr.Get([]byte("alpha"))
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = tr.Get([]byte("alphabet"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)
}

func TestTrieRootIsDeterministic(t *testing.T) {
	trA := newTestTrie(t)
	trB := newTestTrie(t)

	keys := [][2]string{{"a", "1"}, {"bb", "2"}, {"ccc", "3"}}
	for _, kv := range keys {
		require.NoError(t, trA.Update([]byte(kv[0]), []byte(kv[1])))
	}
	for i := len(keys) - 1; i >= 0; i-- {
		require.NoError(t, trB.Update([]byte(keys[i][0]), []byte(keys[i][1])))
	}

	require.Equal(t, trA.Root(), trB.Root())
}

func TestTrieEmptyRootIsNullHash(t *testing.T) {
	tr := newTestTrie(t)
	require.Equal(t, kv.NullHash, tr.Root())
}
