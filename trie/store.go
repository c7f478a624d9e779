// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.
//
// Store is the Go analogue of rt-evm's MptStore (storage/trie_db.rs):
// it keeps one shared kv.Backend per backend_key and hands out
// handles onto tries rooted against that backend. Three handle kinds
// mirror MptRo/MptMut/MptOnce: a read-only handle can only Get, a
// mutable handle can Get/Update/Delete and must be finalized with
// Commit or Close, and a commit-once handle wraps a mutable handle
// and, like it, is invalidated the instant Commit or Close runs.

package trie

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ferrochain/evmcore/kv"
)

// ErrHandleUsed is returned by any operation on a handle after its
// Commit or Close has already run.
var ErrHandleUsed = errors.New("trie: handle already committed or closed")

// ErrUnknownBackend names a backend_key with no registered backend.
// Store does not return it: Create, Restore, RestoreOrCreate and
// ReadOnly all open a missing backend through newDB on first use, so
// restoring under an unseen key yields a trie over an empty backend.
var ErrUnknownBackend = errors.New("trie: unknown backend key")

// Store owns the backends tries are opened against, keyed by an
// opaque caller-chosen string ("world-state", or an account address
// for per-account storage tries).
type Store struct {
	mu       sync.Mutex
	backends map[string]*kv.Backend
	newDB    func(key string) (kv.DB, error)
	cacheBytes int
}

// NewStore builds a Store whose backends are created on demand via
// newDB (e.g. opening a LevelDB directory per key, or a shared
// single-file DB partitioned by prefix).
func NewStore(newDB func(key string) (kv.DB, error), cacheBytes int) *Store {
	return &Store{backends: make(map[string]*kv.Backend), newDB: newDB, cacheBytes: cacheBytes}
}

func (s *Store) backend(key string) (*kv.Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.backends[key]; ok {
		return b, nil
	}
	db, err := s.newDB(key)
	if err != nil {
		return nil, fmt.Errorf("trie: open backend %q: %w", key, err)
	}
	b := kv.NewBackend(db, s.cacheBytes)
	s.backends[key] = b
	return b, nil
}

// Create opens a brand-new, empty trie under backendKey.
func (s *Store) Create(backendKey string) (*MutableHandle, error) {
	b, err := s.backend(backendKey)
	if err != nil {
		return nil, err
	}
	return &MutableHandle{t: New(b, []byte(backendKey), kv.NullHash)}, nil
}

// Restore reopens the trie rooted at root under backendKey.
func (s *Store) Restore(backendKey string, root common.Hash) (*MutableHandle, error) {
	b, err := s.backend(backendKey)
	if err != nil {
		return nil, err
	}
	return &MutableHandle{t: New(b, []byte(backendKey), root)}, nil
}

// RestoreOrCreate reopens root if it is non-zero/non-null, or creates
// a fresh empty trie otherwise — the helper the executor adapter uses
// when it cannot yet tell whether an account already has a storage
// trie.
func (s *Store) RestoreOrCreate(backendKey string, root common.Hash) (*MutableHandle, error) {
	if root == (common.Hash{}) || root == kv.NullHash {
		return s.Create(backendKey)
	}
	return s.Restore(backendKey, root)
}

// ReadOnly opens root under backendKey for lookups only.
func (s *Store) ReadOnly(backendKey string, root common.Hash) (*ReadHandle, error) {
	b, err := s.backend(backendKey)
	if err != nil {
		return nil, err
	}
	return &ReadHandle{t: New(b, []byte(backendKey), root)}, nil
}

// CommitOnce opens a mutable, single-use handle through
// RestoreOrCreate: once Commit or Close is called the handle is
// permanently invalidated, exactly as a MutableHandle is. Reading the
// intermediate root via Root does not invalidate either kind.
func (s *Store) CommitOnce(backendKey string, root common.Hash) (*CommitOnceHandle, error) {
	h, err := s.RestoreOrCreate(backendKey, root)
	if err != nil {
		return nil, err
	}
	return &CommitOnceHandle{MutableHandle: *h}, nil
}

// ReadHandle is a read-only view onto a trie.
type ReadHandle struct {
	t    *Trie
	used bool
}

// Get looks up key.
func (h *ReadHandle) Get(key []byte) ([]byte, error) {
	if h.used {
		return nil, ErrHandleUsed
	}
	return h.t.Get(key)
}

// Root returns the trie's root hash.
func (h *ReadHandle) Root() common.Hash { return h.t.Root() }

// Close invalidates the handle. Read-only handles never write, so
// Close is purely bookkeeping against reuse-after-close bugs.
func (h *ReadHandle) Close() error {
	if h.used {
		return ErrHandleUsed
	}
	h.used = true
	return nil
}

// MutableHandle is a read/write view onto a trie. It must be
// finalized with Commit (to persist the resulting root) or Close (to
// abandon in-flight edits); using it afterward is an error.
type MutableHandle struct {
	t    *Trie
	used bool
}

func (h *MutableHandle) Get(key []byte) ([]byte, error) {
	if h.used {
		return nil, ErrHandleUsed
	}
	return h.t.Get(key)
}

func (h *MutableHandle) Update(key, value []byte) error {
	if h.used {
		return ErrHandleUsed
	}
	return h.t.Update(key, value)
}

func (h *MutableHandle) Delete(key []byte) error {
	if h.used {
		return ErrHandleUsed
	}
	return h.t.Delete(key)
}

// Root returns the current (possibly uncommitted) root hash.
func (h *MutableHandle) Root() common.Hash { return h.t.Root() }

// Commit finalizes the handle's edits and returns the resulting root.
// The handle may not be used again afterward.
func (h *MutableHandle) Commit() (common.Hash, error) {
	if h.used {
		return common.Hash{}, ErrHandleUsed
	}
	h.used = true
	return h.t.Root(), nil
}

// Close abandons the handle without committing. Because this
// implementation writes nodes eagerly, Close does not roll back
// already-written nodes; no handle kind offers rollback.
func (h *MutableHandle) Close() error {
	if h.used {
		return ErrHandleUsed
	}
	h.used = true
	return nil
}

// CommitOnceHandle is a MutableHandle that is guaranteed to be used
// for exactly one commit cycle.
type CommitOnceHandle struct {
	MutableHandle
}
