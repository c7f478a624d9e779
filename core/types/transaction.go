// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.
//
// Transaction encoding follows spec.md §6: Legacy, EIP-2930 and
// EIP-1559 transactions, RLP-encoded and keccak256-hashed exactly as
// rt-evm's model/src/codec/transaction.rs describes.

package types

import (
	"errors"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Transaction type identifiers, per EIP-2718.
const (
	LegacyTxType     = 0x00
	AccessListTxType = 0x01
	DynamicFeeTxType = 0x02
)

var (
	ErrInvalidTxType   = errors.New("evmcore/types: invalid transaction type")
	ErrInvalidSig      = errors.New("evmcore/types: invalid signature")
	ErrTxHashMismatch  = errors.New("evmcore/types: body hash does not match encoded bytes")
	ErrAccessListShape = errors.New("evmcore/types: malformed access list entry")
)

// TransactionAction is Call(address) or Create, encoded in RLP as the
// 20-byte address or the empty string respectively.
type TransactionAction struct {
	To *common.Address // nil means Create
}

// CallAction builds a Call action to addr.
func CallAction(addr common.Address) TransactionAction { return TransactionAction{To: &addr} }

// CreateAction is the zero value; kept as a named constructor for
// readability at call sites.
func CreateAction() TransactionAction { return TransactionAction{} }

// IsCreate reports whether this action deploys a new contract.
func (a TransactionAction) IsCreate() bool { return a.To == nil }

// EncodeRLP implements rlp.Encoder: an empty string for Create, the
// 20-byte address for Call.
func (a TransactionAction) EncodeRLP(w io.Writer) error {
	if a.To == nil {
		return rlp.Encode(w, []byte{})
	}
	return rlp.Encode(w, a.To.Bytes())
}

// DecodeRLP implements rlp.Decoder.
func (a *TransactionAction) DecodeRLP(s *rlp.Stream) error {
	b, err := s.Bytes()
	if err != nil {
		return err
	}
	if len(b) == 0 {
		a.To = nil
		return nil
	}
	addr := common.BytesToAddress(b)
	a.To = &addr
	return nil
}

// AccessTuple is one (address, storage-keys) entry of an EIP-2930
// access list.
type AccessTuple struct {
	Address     common.Address
	StorageKeys []common.Hash
}

// AccessList is the ordered list of access tuples carried by EIP-2930
// and EIP-1559 transactions.
type AccessList []AccessTuple

// UnsignedTransaction is implemented by LegacyTx, AccessListTx and
// DynamicFeeTx; it exposes the fields every variant shares so the
// executor and mempool can work against one interface regardless of
// type, matching rt-evm's `UnsignedTransaction` enum dispatch.
type UnsignedTransaction interface {
	TxType() byte
	Nonce() uint64
	GasPrice() *big.Int // for DynamicFeeTx this is max_fee_per_gas
	GasTipCap() *big.Int
	GasLimit() uint64
	Action() TransactionAction
	Value() *big.Int
	Data() []byte
	AccessList() AccessList
}

// LegacyTx is a pre-EIP-2718 transaction.
type LegacyTx struct {
	NonceVal    uint64
	GasPriceVal *big.Int
	GasLimitVal uint64
	ActionVal   TransactionAction
	ValueVal    *big.Int
	DataVal     []byte
}

func (tx *LegacyTx) TxType() byte                  { return LegacyTxType }
func (tx *LegacyTx) Nonce() uint64                 { return tx.NonceVal }
func (tx *LegacyTx) GasPrice() *big.Int            { return tx.GasPriceVal }
func (tx *LegacyTx) GasTipCap() *big.Int           { return tx.GasPriceVal }
func (tx *LegacyTx) GasLimit() uint64              { return tx.GasLimitVal }
func (tx *LegacyTx) Action() TransactionAction      { return tx.ActionVal }
func (tx *LegacyTx) Value() *big.Int               { return tx.ValueVal }
func (tx *LegacyTx) Data() []byte                  { return tx.DataVal }
func (tx *LegacyTx) AccessList() AccessList        { return nil }

// AccessListTx is an EIP-2930 (type 0x01) transaction.
type AccessListTx struct {
	NonceVal       uint64
	GasPriceVal    *big.Int
	GasLimitVal    uint64
	ActionVal      TransactionAction
	ValueVal       *big.Int
	DataVal        []byte
	AccessListVal  AccessList
}

func (tx *AccessListTx) TxType() byte             { return AccessListTxType }
func (tx *AccessListTx) Nonce() uint64            { return tx.NonceVal }
func (tx *AccessListTx) GasPrice() *big.Int       { return tx.GasPriceVal }
func (tx *AccessListTx) GasTipCap() *big.Int      { return tx.GasPriceVal }
func (tx *AccessListTx) GasLimit() uint64         { return tx.GasLimitVal }
func (tx *AccessListTx) Action() TransactionAction { return tx.ActionVal }
func (tx *AccessListTx) Value() *big.Int          { return tx.ValueVal }
func (tx *AccessListTx) Data() []byte             { return tx.DataVal }
func (tx *AccessListTx) AccessList() AccessList   { return tx.AccessListVal }

// DynamicFeeTx is an EIP-1559 (type 0x02) transaction. GasFeeCapVal
// holds max_fee_per_gas and is what GasPrice() returns, matching spec.md's wire-format note that the
// "gas_price" field in the RLP tuple is the fee cap.
type DynamicFeeTx struct {
	NonceVal          uint64
	GasTipCapVal      *big.Int
	GasFeeCapVal      *big.Int
	GasLimitVal       uint64
	ActionVal         TransactionAction
	ValueVal          *big.Int
	DataVal           []byte
	AccessListVal     AccessList
}

func (tx *DynamicFeeTx) TxType() byte             { return DynamicFeeTxType }
func (tx *DynamicFeeTx) Nonce() uint64            { return tx.NonceVal }
func (tx *DynamicFeeTx) GasPrice() *big.Int       { return tx.GasFeeCapVal }
func (tx *DynamicFeeTx) GasTipCap() *big.Int      { return tx.GasTipCapVal }
func (tx *DynamicFeeTx) GasLimit() uint64         { return tx.GasLimitVal }
func (tx *DynamicFeeTx) Action() TransactionAction { return tx.ActionVal }
func (tx *DynamicFeeTx) Value() *big.Int          { return tx.ValueVal }
func (tx *DynamicFeeTx) Data() []byte             { return tx.DataVal }
func (tx *DynamicFeeTx) AccessList() AccessList   { return tx.AccessListVal }

// SignatureComponents is the (v, r, s) tuple of an ECDSA signature over
// a transaction body hash.
type SignatureComponents struct {
	V byte // "standard" recovery id, 0 or 1
	R []byte
	S []byte
}

// addChainReplayProtection computes the EIP-155 legacy v value:
// chain_id*2 + 35 + recovery_id.
func (sig SignatureComponents) addChainReplayProtection(chainID uint64) uint64 {
	return uint64(sig.V) + 35 + chainID*2
}

// extractStandardV recovers the 0/1 recovery id from an EIP-155 v
// value, or from a pre-EIP-155 27/28 value.
func extractStandardV(v uint64) (byte, bool) {
	switch {
	case v == 27 || v == 28:
		return byte(v - 27), true
	case v >= 35:
		return byte((v - 35) % 2), true
	default:
		return 0, false
	}
}

// extractChainID recovers the chain id embedded in an EIP-155 v value;
// ok is false for pre-EIP-155 legacy transactions (v == 27/28).
func extractChainID(v uint64) (uint64, bool) {
	if v == 27 || v == 28 {
		return 0, false
	}
	if v < 35 {
		return 0, false
	}
	return (v - 35) / 2, true
}

// UnverifiedTransaction is the unsigned body plus the signature and the
// chain id it was signed against, with its body hash memoized.
type UnverifiedTransaction struct {
	Unsigned  UnsignedTransaction
	Signature *SignatureComponents
	ChainID   uint64
	Hash      common.Hash
}

// SignedTransaction wraps an UnverifiedTransaction with its recovered
// sender address, the authoritative form used everywhere past
// admission (mempool, executor, storage, query API).
type SignedTransaction struct {
	Transaction UnverifiedTransaction
	Sender      common.Address
	PublicKey   []byte
}

// legacyRLPSigned / eip2930RLPSigned / eip1559RLPSigned mirror the
// exact field orders from spec.md §6.
type legacyRLPSigned struct {
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	Action   TransactionAction
	Value    *big.Int
	Data     []byte
	V        *big.Int
	R        *big.Int
	S        *big.Int
}

type accessListRLPItem struct {
	Address     common.Address
	StorageKeys []common.Hash
}

type eip2930RLPSigned struct {
	ChainID    uint64
	Nonce      uint64
	GasPrice   *big.Int
	GasLimit   uint64
	Action     TransactionAction
	Value      *big.Int
	Data       []byte
	AccessList []accessListRLPItem
	V          uint64
	R          *big.Int
	S          *big.Int
}

type eip1559RLPSigned struct {
	ChainID           uint64
	Nonce             uint64
	GasTipCap         *big.Int
	GasFeeCap         *big.Int
	GasLimit          uint64
	Action            TransactionAction
	Value             *big.Int
	Data              []byte
	AccessList        []accessListRLPItem
	V                 uint64
	R                 *big.Int
	S                 *big.Int
}

func toRLPAccessList(al AccessList) []accessListRLPItem {
	out := make([]accessListRLPItem, len(al))
	for i, a := range al {
		out[i] = accessListRLPItem{Address: a.Address, StorageKeys: a.StorageKeys}
	}
	return out
}

func fromRLPAccessList(al []accessListRLPItem) AccessList {
	if len(al) == 0 {
		return nil
	}
	out := make(AccessList, len(al))
	for i, a := range al {
		out[i] = AccessTuple{Address: a.Address, StorageKeys: a.StorageKeys}
	}
	return out
}

// EncodeSigned returns the canonical wire bytes of the transaction: for
// typed transactions the 1-byte type prefix followed by the RLP
// payload, for legacy transactions just the RLP payload.
func EncodeSigned(utx UnverifiedTransaction) ([]byte, error) {
	var body []byte
	var err error

	switch tx := utx.Unsigned.(type) {
	case *LegacyTx:
		v := new(big.Int)
		r := new(big.Int)
		s := new(big.Int)
		if utx.Signature != nil {
			v.SetUint64(utx.Signature.addChainReplayProtection(utx.ChainID))
			r.SetBytes(utx.Signature.R)
			s.SetBytes(utx.Signature.S)
		} else {
			v.SetUint64(utx.ChainID)
		}
		body, err = rlp.EncodeToBytes(legacyRLPSigned{
			Nonce: tx.NonceVal, GasPrice: tx.GasPriceVal, GasLimit: tx.GasLimitVal,
			Action: tx.ActionVal, Value: tx.ValueVal, Data: tx.DataVal,
			V: v, R: r, S: s,
		})
	case *AccessListTx:
		var v uint64
		r := new(big.Int)
		s := new(big.Int)
		if utx.Signature != nil {
			v = uint64(utx.Signature.V)
			r.SetBytes(utx.Signature.R)
			s.SetBytes(utx.Signature.S)
		}
		body, err = rlp.EncodeToBytes(eip2930RLPSigned{
			ChainID: utx.ChainID, Nonce: tx.NonceVal, GasPrice: tx.GasPriceVal,
			GasLimit: tx.GasLimitVal, Action: tx.ActionVal, Value: tx.ValueVal,
			Data: tx.DataVal, AccessList: toRLPAccessList(tx.AccessListVal),
			V: v, R: r, S: s,
		})
		if err == nil {
			body = append([]byte{AccessListTxType}, body...)
		}
	case *DynamicFeeTx:
		var v uint64
		r := new(big.Int)
		s := new(big.Int)
		if utx.Signature != nil {
			v = uint64(utx.Signature.V)
			r.SetBytes(utx.Signature.R)
			s.SetBytes(utx.Signature.S)
		}
		body, err = rlp.EncodeToBytes(eip1559RLPSigned{
			ChainID: utx.ChainID, Nonce: tx.NonceVal, GasTipCap: tx.GasTipCapVal,
			GasFeeCap: tx.GasFeeCapVal, GasLimit: tx.GasLimitVal, Action: tx.ActionVal,
			Value: tx.ValueVal, Data: tx.DataVal, AccessList: toRLPAccessList(tx.AccessListVal),
			V: v, R: r, S: s,
		})
		if err == nil {
			body = append([]byte{DynamicFeeTxType}, body...)
		}
	default:
		return nil, ErrInvalidTxType
	}
	return body, err
}

// SigningHash returns the hash signed by the sender: the RLP of the
// unsigned body (with chain-id/zero-zero padding for legacy
// transactions per EIP-155, or the typed-transaction prefix for
// 2930/1559), keccak256'd.
func SigningHash(unsigned UnsignedTransaction, chainID uint64) (common.Hash, error) {
	utx := UnverifiedTransaction{Unsigned: unsigned, ChainID: chainID}
	raw, err := EncodeSigned(utx)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(raw), nil
}

// DecodeSigned parses the canonical wire bytes (as produced by
// EncodeSigned) back into an UnverifiedTransaction, computing its body
// hash over the raw bytes exactly as received.
func DecodeSigned(raw []byte) (UnverifiedTransaction, error) {
	if len(raw) == 0 {
		return UnverifiedTransaction{}, ErrInvalidTxType
	}

	if raw[0] >= 0x80 {
		// Legacy: the whole thing is a single RLP list.
		var dec legacyRLPSigned
		if err := rlp.DecodeBytes(raw, &dec); err != nil {
			return UnverifiedTransaction{}, err
		}
		v := dec.V.Uint64()
		chainID, hasChainID := extractChainID(v)
		standardV, ok := extractStandardV(v)
		if !ok {
			return UnverifiedTransaction{}, ErrInvalidSig
		}
		_ = hasChainID
		return UnverifiedTransaction{
			Unsigned: &LegacyTx{
				NonceVal: dec.Nonce, GasPriceVal: dec.GasPrice, GasLimitVal: dec.GasLimit,
				ActionVal: dec.Action, ValueVal: dec.Value, DataVal: dec.Data,
			},
			Signature: &SignatureComponents{V: standardV, R: dec.R.Bytes(), S: dec.S.Bytes()},
			ChainID:   chainID,
			Hash:      crypto.Keccak256Hash(raw),
		}, nil
	}

	switch raw[0] {
	case AccessListTxType:
		var dec eip2930RLPSigned
		if err := rlp.DecodeBytes(raw[1:], &dec); err != nil {
			return UnverifiedTransaction{}, err
		}
		return UnverifiedTransaction{
			Unsigned: &AccessListTx{
				NonceVal: dec.Nonce, GasPriceVal: dec.GasPrice, GasLimitVal: dec.GasLimit,
				ActionVal: dec.Action, ValueVal: dec.Value, DataVal: dec.Data,
				AccessListVal: fromRLPAccessList(dec.AccessList),
			},
			Signature: &SignatureComponents{V: byte(dec.V), R: dec.R.Bytes(), S: dec.S.Bytes()},
			ChainID:   dec.ChainID,
			Hash:      crypto.Keccak256Hash(raw),
		}, nil
	case DynamicFeeTxType:
		var dec eip1559RLPSigned
		if err := rlp.DecodeBytes(raw[1:], &dec); err != nil {
			return UnverifiedTransaction{}, err
		}
		return UnverifiedTransaction{
			Unsigned: &DynamicFeeTx{
				NonceVal: dec.Nonce, GasTipCapVal: dec.GasTipCap, GasFeeCapVal: dec.GasFeeCap,
				GasLimitVal: dec.GasLimit, ActionVal: dec.Action, ValueVal: dec.Value,
				DataVal: dec.Data, AccessListVal: fromRLPAccessList(dec.AccessList),
			},
			Signature: &SignatureComponents{V: byte(dec.V), R: dec.R.Bytes(), S: dec.S.Bytes()},
			ChainID:   dec.ChainID,
			Hash:      crypto.Keccak256Hash(raw),
		}, nil
	default:
		return UnverifiedTransaction{}, ErrInvalidTxType
	}
}

// Recover derives the sender address and public key of an
// UnverifiedTransaction by recovering the secp256k1 public key from its
// signature over SigningHash. A zero Hash is filled in with the
// keccak256 of the transaction's canonical encoding (EncodeSigned).
func Recover(utx UnverifiedTransaction) (SignedTransaction, error) {
	if utx.Signature == nil {
		return SignedTransaction{}, ErrInvalidSig
	}
	sigHash, err := SigningHash(utx.Unsigned, utx.ChainID)
	if err != nil {
		return SignedTransaction{}, err
	}
	sig := make([]byte, 65)
	copy(sig[0:32], leftPad32(utx.Signature.R))
	copy(sig[32:64], leftPad32(utx.Signature.S))
	sig[64] = utx.Signature.V

	pub, err := crypto.Ecrecover(sigHash.Bytes(), sig)
	if err != nil {
		return SignedTransaction{}, err
	}
	addr := common.BytesToAddress(crypto.Keccak256(pub[1:])[12:])

	if utx.Hash == (common.Hash{}) {
		raw, err := EncodeSigned(utx)
		if err != nil {
			return SignedTransaction{}, err
		}
		utx.Hash = crypto.Keccak256Hash(raw)
	}
	return SignedTransaction{Transaction: utx, Sender: addr, PublicKey: pub}, nil
}

func leftPad32(b []byte) []byte {
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
