// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.
//
// Merkle-Patricia node shapes, grounded on rt-evm's storage/trie_db.rs
// description of a leaf/extension/branch trie layered over a HashDB.
// Unlike go-ethereum's trie package this implementation always
// addresses children by hash (no small-node inlining); it trades a
// little storage density for a much simpler, self-contained node
// encoding that does not need to track RLP-size thresholds.

package trie

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// node is implemented by leafNode, extensionNode and branchNode.
// emptyNode is represented by a nil node / the zero hash.
type node interface {
	encode() ([]byte, error)
}

// leafNode terminates a path: Key holds the remaining nibbles
// (with terminator) and Value the stored bytes.
type leafNode struct {
	Key   []byte
	Value []byte
}

// extensionNode shares a nibble prefix among descendants, pointing at
// a single child (almost always a branchNode).
type extensionNode struct {
	Key   []byte
	Child common.Hash
}

// branchNode has one slot per nibble value plus a value slot for a
// key that terminates exactly at this node.
type branchNode struct {
	Children [16]common.Hash // the zero hash (common.Hash{}) means empty
	Value    []byte
}

type rawShort struct {
	Key   []byte
	Value []byte
}

type rawBranch struct {
	C0, C1, C2, C3, C4, C5, C6, C7, C8, C9, C10, C11, C12, C13, C14, C15 common.Hash
	Value                                                                 []byte
}

func (n *leafNode) encode() ([]byte, error) {
	return rlp.EncodeToBytes(rawShort{Key: hexToCompact(n.Key), Value: n.Value})
}

func (n *extensionNode) encode() ([]byte, error) {
	key := append(append([]byte(nil), n.Key...))
	return rlp.EncodeToBytes(rawShort{Key: hexToCompact(key), Value: n.Child[:]})
}

func (n *branchNode) encode() ([]byte, error) {
	c := n.Children
	return rlp.EncodeToBytes(rawBranch{
		C0: c[0], C1: c[1], C2: c[2], C3: c[3], C4: c[4], C5: c[5], C6: c[6], C7: c[7],
		C8: c[8], C9: c[9], C10: c[10], C11: c[11], C12: c[12], C13: c[13], C14: c[14], C15: c[15],
		Value: n.Value,
	})
}

// decodeNode tells a 2-field short node (leaf or extension) from a
// 17-field branch node by attempting the branch shape first; RLP list
// length differs (2 vs 17 items) so the two never ambiguously parse.
func decodeNode(raw []byte) (node, error) {
	var branch rawBranch
	if err := rlp.DecodeBytes(raw, &branch); err == nil {
		return &branchNode{
			Children: [16]common.Hash{
				branch.C0, branch.C1, branch.C2, branch.C3, branch.C4, branch.C5, branch.C6, branch.C7,
				branch.C8, branch.C9, branch.C10, branch.C11, branch.C12, branch.C13, branch.C14, branch.C15,
			},
			Value: branch.Value,
		}, nil
	}

	var short rawShort
	if err := rlp.DecodeBytes(raw, &short); err != nil {
		return nil, err
	}
	key := compactToHex(short.Key)
	if hasTerm(key) {
		return &leafNode{Key: key, Value: short.Value}, nil
	}
	return &extensionNode{Key: key, Child: common.BytesToHash(short.Value)}, nil
}
