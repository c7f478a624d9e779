// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package kv

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestBackendInsertThenGet(t *testing.T) {
	b := NewBackend(NewMemDB(), 1<<16)
	hash, err := b.Insert([]byte("p"), []byte("hello"))
	require.NoError(t, err)

	v, err := b.Get([]byte("p"), hash)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), v)
}

func TestBackendRefcountKeepsValueUntilLastRemove(t *testing.T) {
	b := NewBackend(NewMemDB(), 1<<16)
	hash, err := b.Insert([]byte("p"), []byte("shared"))
	require.NoError(t, err)
	require.NoError(t, b.Emplace([]byte("p"), hash, []byte("shared"))) // second reference

	require.NoError(t, b.Remove([]byte("p"), hash))
	v, err := b.Get([]byte("p"), hash)
	require.NoError(t, err)
	require.Equal(t, []byte("shared"), v, "value must survive while refcount > 0")

	require.NoError(t, b.Remove([]byte("p"), hash))
	v, err = b.Get([]byte("p"), hash)
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestBackendNullHashShortCircuits(t *testing.T) {
	b := NewBackend(NewMemDB(), 1<<16)
	v, err := b.Get([]byte("p"), NullHash)
	require.NoError(t, err)
	require.Equal(t, []byte{}, v)

	ok, err := b.Contains([]byte("p"), NullHash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBackendGetMissingReturnsNil(t *testing.T) {
	b := NewBackend(NewMemDB(), 1<<16)
	v, err := b.Get([]byte("p"), crypto.Keccak256Hash([]byte("absent")))
	require.NoError(t, err)
	require.Nil(t, v)
}
