// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.
//
// RPC exposes Adapter and BlockMgmt over the embedder-facing JSON-RPC
// method surface, wired through gorilla/rpc's JSON 2.0 codec rather
// than a hand-rolled dispatcher. Methods are registered under
// gorilla/rpc's Service.Method names, so eth_chainId is called as
// "eth.ChainID", net_version as "eth.NetVersion" and web3_sha3 as
// "eth.Sha3"; the literal eth_*/net_*/web3_* names are not
// registered. This is a minimal binding, not a full node's RPC hardening (no
// batching limits, no subscription/eth_subscribe, no per-method rate
// limiting) — those are explicit Non-goals.

package query

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/rpc"
	"github.com/gorilla/rpc/json"

	"github.com/ferrochain/evmcore/core/blockmgr"
	"github.com/ferrochain/evmcore/core/mempool"
	"github.com/ferrochain/evmcore/core/types"
	"github.com/ferrochain/evmcore/params"
)

// EthService implements the eth_* / net_* / web3_* method surface, one
// exported method per Go RPC convention (func(r *http.Request, args
// *T, reply *R) error), the shape gorilla/rpc requires.
type EthService struct {
	adapter *Adapter
	blocks  *blockmgr.BlockMgmt
	pool    *mempool.Mempool
}

// NewEthService builds the RPC-facing service around an Adapter.
func NewEthService(adapter *Adapter, blocks *blockmgr.BlockMgmt, pool *mempool.Mempool) *EthService {
	return &EthService{adapter: adapter, blocks: blocks, pool: pool}
}

// NewHandler registers EthService under the "eth" RPC prefix using
// gorilla/rpc's JSON-RPC 2.0 codec, the same wiring pattern
// JSON-over-HTTP services in the pack use.
func NewHandler(svc *EthService) (*rpc.Server, error) {
	server := rpc.NewServer()
	server.RegisterCodec(json.NewCodec(), "application/json")
	if err := server.RegisterService(svc, "eth"); err != nil {
		return nil, err
	}
	return server, nil
}

// BlockIDArg decodes the Ethereum "block tag or number or hash"
// parameter family used throughout eth_*.
type BlockIDArg struct {
	Tag    string         `json:"tag,omitempty"`
	Number *hexutil.Big   `json:"number,omitempty"`
	Hash   *common.Hash   `json:"hash,omitempty"`
}

func (b BlockIDArg) resolve() BlockID {
	switch {
	case b.Hash != nil:
		return ByHash(*b.Hash)
	case b.Number != nil:
		return ByNumber(b.Number.ToInt().Uint64())
	case b.Tag == "pending":
		return Pending()
	default:
		return Latest()
	}
}

// ChainIDArgs is the empty-args convention gorilla/rpc requires even
// for no-parameter methods.
type ChainIDArgs struct{}

// ChainIDReply wraps eth_chainId's hex-encoded result.
type ChainIDReply struct{ Result hexutil.Uint64 }

// ChainID implements eth_chainId.
func (s *EthService) ChainID(r *http.Request, args *ChainIDArgs, reply *ChainIDReply) error {
	reply.Result = hexutil.Uint64(s.adapter.ChainID())
	return nil
}

// BlockNumberReply wraps eth_blockNumber's result.
type BlockNumberReply struct{ Result hexutil.Uint64 }

// BlockNumber implements eth_blockNumber.
func (s *EthService) BlockNumber(r *http.Request, args *ChainIDArgs, reply *BlockNumberReply) error {
	reply.Result = hexutil.Uint64(s.adapter.BlockNumber())
	return nil
}

// GetBalanceArgs is eth_getBalance's parameter pair.
type GetBalanceArgs struct {
	Address common.Address
	Block   BlockIDArg
}

// GetBalanceReply wraps the hex-encoded balance.
type GetBalanceReply struct{ Result *hexutil.Big }

// GetBalance implements eth_getBalance.
func (s *EthService) GetBalance(r *http.Request, args *GetBalanceArgs, reply *GetBalanceReply) error {
	bal, err := s.adapter.GetBalance(args.Address, args.Block.resolve())
	if err != nil {
		return err
	}
	reply.Result = (*hexutil.Big)(bal)
	return nil
}

// GetTransactionCountArgs is eth_getTransactionCount's parameter pair.
type GetTransactionCountArgs struct {
	Address common.Address
	Block   BlockIDArg
}

// GetTransactionCountReply wraps the hex-encoded nonce.
type GetTransactionCountReply struct{ Result hexutil.Uint64 }

// GetTransactionCount implements eth_getTransactionCount.
func (s *EthService) GetTransactionCount(r *http.Request, args *GetTransactionCountArgs, reply *GetTransactionCountReply) error {
	nonce, err := s.adapter.GetTransactionCount(args.Address, args.Block.resolve())
	if err != nil {
		return err
	}
	reply.Result = hexutil.Uint64(nonce)
	return nil
}

// GetCodeArgs is eth_getCode's parameter pair.
type GetCodeArgs struct {
	Address common.Address
	Block   BlockIDArg
}

// GetCodeReply wraps the hex-encoded bytecode.
type GetCodeReply struct{ Result hexutil.Bytes }

// GetCode implements eth_getCode.
func (s *EthService) GetCode(r *http.Request, args *GetCodeArgs, reply *GetCodeReply) error {
	code, err := s.adapter.GetCode(args.Address, args.Block.resolve())
	if err != nil {
		return err
	}
	reply.Result = code
	return nil
}

// GetStorageAtArgs is eth_getStorageAt's parameter triple.
type GetStorageAtArgs struct {
	Address common.Address
	Key     common.Hash
	Block   BlockIDArg
}

// GetStorageAtReply wraps the hex-encoded storage slot value.
type GetStorageAtReply struct{ Result common.Hash }

// GetStorageAt implements eth_getStorageAt.
func (s *EthService) GetStorageAt(r *http.Request, args *GetStorageAtArgs, reply *GetStorageAtReply) error {
	val, err := s.adapter.GetStorageAt(args.Address, args.Key, args.Block.resolve())
	if err != nil {
		return err
	}
	reply.Result = val
	return nil
}

// GetBlockByNumberArgs is eth_getBlockByNumber's parameter pair.
type GetBlockByNumberArgs struct {
	Number          hexutil.Uint64
	FullTransactions bool
}

// BlockReply carries a block (or nil, if unknown) to the RPC caller.
type BlockReply struct{ Result *types.Block }

// GetBlockByNumber implements eth_getBlockByNumber.
func (s *EthService) GetBlockByNumber(r *http.Request, args *GetBlockByNumberArgs, reply *BlockReply) error {
	block, err := s.adapter.GetBlockByNumber(uint64(args.Number))
	if err != nil {
		return err
	}
	reply.Result = block
	return nil
}

// GetBlockByHashArgs is eth_getBlockByHash's parameter pair.
type GetBlockByHashArgs struct {
	Hash            common.Hash
	FullTransactions bool
}

// GetBlockByHash implements eth_getBlockByHash.
func (s *EthService) GetBlockByHash(r *http.Request, args *GetBlockByHashArgs, reply *BlockReply) error {
	block, err := s.adapter.GetBlockByHash(args.Hash)
	if err != nil {
		return err
	}
	reply.Result = block
	return nil
}

// GetTransactionByHashArgs is eth_getTransactionByHash's parameter.
type GetTransactionByHashArgs struct{ Hash common.Hash }

// TransactionReply carries a transaction (or nil) to the RPC caller.
type TransactionReply struct{ Result *types.SignedTransaction }

// GetTransactionByHash implements eth_getTransactionByHash.
func (s *EthService) GetTransactionByHash(r *http.Request, args *GetTransactionByHashArgs, reply *TransactionReply) error {
	tx, err := s.adapter.GetTransactionByHash(args.Hash)
	if err != nil {
		return err
	}
	reply.Result = tx
	return nil
}

// GetTransactionReceiptArgs is eth_getTransactionReceipt's parameter.
type GetTransactionReceiptArgs struct{ Hash common.Hash }

// ReceiptReply carries a receipt (or nil) to the RPC caller.
type ReceiptReply struct{ Result *types.Receipt }

// GetTransactionReceipt implements eth_getTransactionReceipt.
func (s *EthService) GetTransactionReceipt(r *http.Request, args *GetTransactionReceiptArgs, reply *ReceiptReply) error {
	receipt, err := s.adapter.GetTransactionReceipt(args.Hash)
	if err != nil {
		return err
	}
	reply.Result = receipt
	return nil
}

// SendRawTransactionArgs is eth_sendRawTransaction's parameter.
type SendRawTransactionArgs struct{ Raw hexutil.Bytes }

// SendRawTransactionReply wraps the admitted transaction's hash.
type SendRawTransactionReply struct{ Result common.Hash }

// SendRawTransaction implements eth_sendRawTransaction: decode, recover
// the sender, and admit into the mempool.
func (s *EthService) SendRawTransaction(r *http.Request, args *SendRawTransactionArgs, reply *SendRawTransactionReply) error {
	utx, err := types.DecodeSigned(args.Raw)
	if err != nil {
		return err
	}
	signed, err := types.Recover(utx)
	if err != nil {
		return err
	}
	if err := s.pool.Insert(signed); err != nil {
		return err
	}
	reply.Result = signed.Transaction.Hash
	return nil
}

// CallArgs is eth_call/eth_estimateGas's transaction-object parameter,
// the loosely-typed JSON shape every eth_call client sends.
type CallArgs struct {
	From     common.Address
	To       *common.Address
	Gas      hexutil.Uint64
	GasPrice *hexutil.Big
	Value    *hexutil.Big
	Data     hexutil.Bytes
	Nonce    hexutil.Uint64
}

func (c CallArgs) toUnsigned() types.UnsignedTransaction {
	gasPrice := big.NewInt(0)
	if c.GasPrice != nil {
		gasPrice = c.GasPrice.ToInt()
	}
	value := big.NewInt(0)
	if c.Value != nil {
		value = c.Value.ToInt()
	}
	action := types.TransactionAction{To: c.To}
	return &types.LegacyTx{
		NonceVal:    uint64(c.Nonce),
		GasPriceVal: gasPrice,
		GasLimitVal: uint64(c.Gas),
		ActionVal:   action,
		ValueVal:    value,
		DataVal:     c.Data,
	}
}

// CallArgsWrapper bundles CallArgs with the block the call runs
// against, gorilla/rpc's convention for a two-positional-parameter
// JSON-RPC method.
type CallArgsWrapper struct {
	Tx    CallArgs
	Block BlockIDArg
}

// CallReply wraps eth_call's raw hex return data.
type CallReply struct{ Result hexutil.Bytes }

// Call implements eth_call.
func (s *EthService) Call(r *http.Request, args *CallArgsWrapper, reply *CallReply) error {
	result, err := s.adapter.Call(args.Tx.From, args.Tx.toUnsigned(), args.Block.resolve())
	if err != nil {
		return err
	}
	reply.Result = result.RetData
	return nil
}

// EstimateGasReply wraps eth_estimateGas's hex-encoded gas estimate.
type EstimateGasReply struct{ Result hexutil.Uint64 }

// EstimateGas implements eth_estimateGas.
func (s *EthService) EstimateGas(r *http.Request, args *CallArgsWrapper, reply *EstimateGasReply) error {
	gas, err := s.adapter.EstimateGas(args.Tx.From, args.Tx.toUnsigned(), args.Block.resolve())
	if err != nil {
		return err
	}
	reply.Result = hexutil.Uint64(gas)
	return nil
}

// GetLogsArgs is eth_getLogs' filter-object parameter.
type GetLogsArgs struct {
	FromBlock hexutil.Uint64
	ToBlock   hexutil.Uint64
	Addresses []common.Address
	Topics    [][]common.Hash
}

// GetLogsReply wraps the matching log list.
type GetLogsReply struct{ Result []types.Log }

// GetLogs implements eth_getLogs.
func (s *EthService) GetLogs(r *http.Request, args *GetLogsArgs, reply *GetLogsReply) error {
	logs, err := s.adapter.GetLogs(uint64(args.FromBlock), uint64(args.ToBlock), args.Addresses, args.Topics)
	if err != nil {
		return err
	}
	reply.Result = logs
	return nil
}

// NetVersionReply wraps net_version's decimal chain id string.
type NetVersionReply struct{ Result string }

// NetVersion implements net_version.
func (s *EthService) NetVersion(r *http.Request, args *ChainIDArgs, reply *NetVersionReply) error {
	reply.Result = new(big.Int).SetUint64(s.adapter.ChainID()).String()
	return nil
}

// SyncingReply wraps eth_syncing's always-false result: this runtime
// has no P2P sync to report on.
type SyncingReply struct{ Result bool }

// Syncing implements eth_syncing.
func (s *EthService) Syncing(r *http.Request, args *ChainIDArgs, reply *SyncingReply) error {
	reply.Result = false
	return nil
}

// Sha3Args is web3_sha3's single hex-data parameter.
type Sha3Args struct{ Data hexutil.Bytes }

// Sha3Reply wraps the hex-encoded keccak256 digest.
type Sha3Reply struct{ Result common.Hash }

// Sha3 implements web3_sha3.
func (s *EthService) Sha3(r *http.Request, args *Sha3Args, reply *Sha3Reply) error {
	reply.Result = crypto.Keccak256Hash(args.Data)
	return nil
}

// GasPriceReply wraps eth_gasPrice's result: the fixed base fee this
// runtime charges, since it has no fee market to poll.
type GasPriceReply struct{ Result *hexutil.Big }

// GasPrice implements eth_gasPrice.
func (s *EthService) GasPrice(r *http.Request, args *ChainIDArgs, reply *GasPriceReply) error {
	reply.Result = (*hexutil.Big)(params.BaseFeePerGas())
	return nil
}
