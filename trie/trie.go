// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.
//
// Trie is a Merkle-Patricia trie addressed through a kv.Backend,
// grounded on rt-evm's MptStore/MptMut/MptRo (storage/trie_db.rs):
// every node is content-addressed and refcounted in its backend, so
// identical subtrees under one backend key and prefix are stored once.
// Store gives the world-state trie and each account's storage trie
// their own backend key, so subtrees are not shared across them.

package trie

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ferrochain/evmcore/kv"
)

// ErrKeyNotFound is a sentinel for an absent key. Trie.Get does not
// return it: Get reports an absent key as (nil, nil).
var ErrKeyNotFound = errors.New("trie: key not found")

// Trie is a mutable handle onto one Merkle-Patricia trie rooted at
// Root(), backed by a shared content-addressed store.
type Trie struct {
	backend *kv.Backend
	prefix  []byte
	root    common.Hash
}

// New opens a trie rooted at root (NullHash for a brand new, empty
// trie) against backend, namespaced by prefix so unrelated tries
// sharing one physical backend never collide.
func New(backend *kv.Backend, prefix []byte, root common.Hash) *Trie {
	return &Trie{backend: backend, prefix: prefix, root: root}
}

// Root returns the current root hash.
func (t *Trie) Root() common.Hash { return t.root }

func (t *Trie) loadNode(hash common.Hash) (node, error) {
	if hash == kv.NullHash {
		return nil, nil
	}
	raw, err := t.backend.Get(t.prefix, hash)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return decodeNode(raw)
}

func (t *Trie) storeNode(n node) (common.Hash, error) {
	raw, err := n.encode()
	if err != nil {
		return common.Hash{}, err
	}
	return t.backend.Insert(t.prefix, raw)
}

func (t *Trie) dropNode(hash common.Hash) error {
	if hash == kv.NullHash {
		return nil
	}
	return t.backend.Remove(t.prefix, hash)
}

// Get looks up key, returning (nil, nil) if it is absent.
func (t *Trie) Get(key []byte) ([]byte, error) {
	n, err := t.loadNode(t.root)
	if err != nil || n == nil {
		return nil, err
	}
	return t.get(n, keyToNibbles(key))
}

func (t *Trie) get(n node, path []byte) ([]byte, error) {
	switch cur := n.(type) {
	case *leafNode:
		if prefixLen(cur.Key, path) == len(cur.Key) && len(cur.Key) == len(path) {
			return cur.Value, nil
		}
		return nil, nil
	case *extensionNode:
		if len(path) < len(cur.Key) || prefixLen(cur.Key, path) != len(cur.Key) {
			return nil, nil
		}
		child, err := t.loadNode(cur.Child)
		if err != nil || child == nil {
			return nil, err
		}
		return t.get(child, path[len(cur.Key):])
	case *branchNode:
		if len(path) == 0 {
			return nil, errors.New("trie: malformed path")
		}
		if path[0] == 16 {
			return cur.Value, nil
		}
		childHash := cur.Children[path[0]]
		if childHash == (common.Hash{}) {
			return nil, nil
		}
		child, err := t.loadNode(childHash)
		if err != nil || child == nil {
			return nil, err
		}
		return t.get(child, path[1:])
	default:
		return nil, nil
	}
}

// Update sets key to value, writing new nodes to the backend and
// dropping references to nodes the update displaced. An empty value
// is rejected; callers wanting to remove a key must call Delete.
func (t *Trie) Update(key, value []byte) error {
	if len(value) == 0 {
		return errors.New("trie: empty value, use Delete")
	}
	root, err := t.loadNode(t.root)
	if err != nil {
		return err
	}
	oldRoot := t.root
	newNode, err := t.insert(root, keyToNibbles(key), value)
	if err != nil {
		return err
	}
	newHash, err := t.storeNode(newNode)
	if err != nil {
		return err
	}
	if err := t.dropNode(oldRoot); err != nil {
		return err
	}
	t.root = newHash
	return nil
}

func (t *Trie) insert(n node, path, value []byte) (node, error) {
	if n == nil {
		return &leafNode{Key: path, Value: value}, nil
	}

	switch cur := n.(type) {
	case *leafNode:
		match := prefixLen(cur.Key, path)
		if match == len(cur.Key) && match == len(path) {
			return &leafNode{Key: path, Value: value}, nil
		}
		return t.splitShort(cur.Key, cur.Value, path, value, true)

	case *extensionNode:
		match := prefixLen(cur.Key, path)
		if match == len(cur.Key) {
			child, err := t.loadNode(cur.Child)
			if err != nil {
				return nil, err
			}
			newChild, err := t.insert(child, path[match:], value)
			if err != nil {
				return nil, err
			}
			newChildHash, err := t.storeNode(newChild)
			if err != nil {
				return nil, err
			}
			if err := t.dropNode(cur.Child); err != nil {
				return nil, err
			}
			return &extensionNode{Key: cur.Key, Child: newChildHash}, nil
		}
		return t.splitExtension(cur, path, value, match)

	case *branchNode:
		if len(path) == 0 || path[0] == 16 {
			nb := *cur
			nb.Value = value
			return &nb, nil
		}
		child, err := t.loadNode(cur.Children[path[0]])
		if err != nil {
			return nil, err
		}
		newChild, err := t.insert(child, path[1:], value)
		if err != nil {
			return nil, err
		}
		newChildHash, err := t.storeNode(newChild)
		if err != nil {
			return nil, err
		}
		if err := t.dropNode(cur.Children[path[0]]); err != nil {
			return nil, err
		}
		nb := *cur
		nb.Children[path[0]] = newChildHash
		return &nb, nil
	}
	return nil, errors.New("trie: unknown node type")
}

// splitShort handles a leaf/value collision by building a branch node
// (and, if a shared prefix remains, an extension above it).
func (t *Trie) splitShort(existingKey, existingValue, newKey, newValue []byte, existingIsLeaf bool) (node, error) {
	match := prefixLen(existingKey, newKey)
	var branch branchNode

	setSlot := func(key []byte, value []byte) error {
		if len(key) == 0 || (len(key) == 1 && key[0] == 16) {
			branch.Value = value
			return nil
		}
		leaf := &leafNode{Key: key[1:], Value: value}
		hash, err := t.storeNode(leaf)
		if err != nil {
			return err
		}
		branch.Children[key[0]] = hash
		return nil
	}

	if err := setSlot(existingKey[match:], existingValue); err != nil {
		return nil, err
	}
	if err := setSlot(newKey[match:], newValue); err != nil {
		return nil, err
	}

	if match == 0 {
		return &branch, nil
	}
	branchHash, err := t.storeNode(&branch)
	if err != nil {
		return nil, err
	}
	return &extensionNode{Key: existingKey[:match], Child: branchHash}, nil
}

// splitExtension handles inserting a key that diverges partway through
// an extension node's shared prefix.
func (t *Trie) splitExtension(ext *extensionNode, newKey, newValue []byte, match int) (node, error) {
	var branch branchNode

	remaining := ext.Key[match:]
	if len(remaining) == 1 {
		branch.Children[remaining[0]] = ext.Child
	} else {
		newExt := &extensionNode{Key: remaining[1:], Child: ext.Child}
		hash, err := t.storeNode(newExt)
		if err != nil {
			return nil, err
		}
		branch.Children[remaining[0]] = hash
	}

	newRemaining := newKey[match:]
	if len(newRemaining) == 0 || (len(newRemaining) == 1 && newRemaining[0] == 16) {
		branch.Value = newValue
	} else {
		leaf := &leafNode{Key: newRemaining[1:], Value: newValue}
		hash, err := t.storeNode(leaf)
		if err != nil {
			return nil, err
		}
		branch.Children[newRemaining[0]] = hash
	}

	if match == 0 {
		return &branch, nil
	}
	branchHash, err := t.storeNode(&branch)
	if err != nil {
		return nil, err
	}
	return &extensionNode{Key: ext.Key[:match], Child: branchHash}, nil
}

// Delete removes key if present; deleting an absent key is a no-op.
func (t *Trie) Delete(key []byte) error {
	root, err := t.loadNode(t.root)
	if err != nil || root == nil {
		return err
	}
	oldRoot := t.root
	newNode, removed, err := t.delete(root, keyToNibbles(key))
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}
	if err := t.dropNode(oldRoot); err != nil {
		return err
	}
	if newNode == nil {
		t.root = kv.NullHash
		return nil
	}
	newHash, err := t.storeNode(newNode)
	if err != nil {
		return err
	}
	t.root = newHash
	return nil
}

func (t *Trie) delete(n node, path []byte) (node, bool, error) {
	switch cur := n.(type) {
	case *leafNode:
		if prefixLen(cur.Key, path) == len(cur.Key) && len(cur.Key) == len(path) {
			return nil, true, nil
		}
		return cur, false, nil

	case *extensionNode:
		if len(path) < len(cur.Key) || prefixLen(cur.Key, path) != len(cur.Key) {
			return cur, false, nil
		}
		child, err := t.loadNode(cur.Child)
		if err != nil {
			return nil, false, err
		}
		newChild, removed, err := t.delete(child, path[len(cur.Key):])
		if err != nil || !removed {
			return cur, removed, err
		}
		if err := t.dropNode(cur.Child); err != nil {
			return nil, false, err
		}
		if newChild == nil {
			return nil, true, nil
		}
		return t.mergeExtension(cur.Key, newChild)

	case *branchNode:
		nb := *cur
		if len(path) > 0 && path[0] == 16 {
			if nb.Value == nil {
				return cur, false, nil
			}
			nb.Value = nil
		} else if len(path) > 0 {
			childHash := cur.Children[path[0]]
			if childHash == (common.Hash{}) {
				return cur, false, nil
			}
			child, err := t.loadNode(childHash)
			if err != nil {
				return nil, false, err
			}
			newChild, removed, err := t.delete(child, path[1:])
			if err != nil || !removed {
				return cur, removed, err
			}
			if err := t.dropNode(childHash); err != nil {
				return nil, false, err
			}
			if newChild == nil {
				nb.Children[path[0]] = common.Hash{}
			} else {
				hash, err := t.storeNode(newChild)
				if err != nil {
					return nil, false, err
				}
				nb.Children[path[0]] = hash
			}
		}
		return t.collapseBranch(&nb)
	}
	return n, false, nil
}

// mergeExtension re-derives an extension node after its child changed,
// collapsing extension-of-extension into a single node.
func (t *Trie) mergeExtension(key []byte, child node) (node, bool, error) {
	switch c := child.(type) {
	case *extensionNode:
		return &extensionNode{Key: append(append([]byte(nil), key...), c.Key...), Child: c.Child}, true, nil
	case *leafNode:
		return &leafNode{Key: append(append([]byte(nil), key...), c.Key...), Value: c.Value}, true, nil
	default:
		hash, err := t.storeNode(child)
		if err != nil {
			return nil, false, err
		}
		return &extensionNode{Key: key, Child: hash}, true, nil
	}
}

// collapseBranch reduces a branch left with a single child (or only a
// value) into an extension/leaf, matching canonical MPT shape rules.
func (t *Trie) collapseBranch(b *branchNode) (node, bool, error) {
	count := 0
	var onlyIdx int
	for i, h := range b.Children {
		if h != (common.Hash{}) {
			count++
			onlyIdx = i
		}
	}

	if count == 0 && b.Value == nil {
		return nil, true, nil
	}
	if count == 0 && b.Value != nil {
		return &leafNode{Key: []byte{16}, Value: b.Value}, true, nil
	}
	if count == 1 && b.Value == nil {
		child, err := t.loadNode(b.Children[onlyIdx])
		if err != nil {
			return nil, false, err
		}
		if err := t.dropNode(b.Children[onlyIdx]); err != nil {
			return nil, false, err
		}
		return t.mergeExtension([]byte{byte(onlyIdx)}, child)
	}
	return b, true, nil
}
