// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.
//
// Executor runs transactions against a state.StateDB using
// go-ethereum's EVM interpreter, playing the role of rt-evm's
// RTEvmExecutor (executor/src/lib.rs): Call is the read-only query
// path (eth_call/eth_estimateGas), Exec is the block-production path
// that prepays gas, validates the nonce, dispatches the call or
// create, and charges/refunds gas exactly as rt-evm's exec() does.

package executor

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcore "github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	gethparams "github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/ferrochain/evmcore/core/state"
	"github.com/ferrochain/evmcore/core/types"
	"github.com/ferrochain/evmcore/params"
)

var (
	// ErrNonceTooLow is returned when a transaction's nonce is behind
	// the sender's current account nonce.
	ErrNonceTooLow = errors.New("evmcore/executor: nonce too low")
	// ErrNonceTooHigh is returned when a transaction's nonce is ahead
	// of the sender's current account nonce.
	ErrNonceTooHigh = errors.New("evmcore/executor: nonce too high")
	// ErrInsufficientBalance is returned when the sender cannot cover
	// gas_price*gas_limit + value.
	ErrInsufficientBalance = errors.New("evmcore/executor: insufficient balance for prepay")
	// ErrIntrinsicGas is returned when gas_limit is below the
	// transaction's intrinsic gas floor.
	ErrIntrinsicGas = errors.New("evmcore/executor: intrinsic gas floor not met")
)

// ChainConfig returns the pinned London-rules chain configuration
// this runtime executes against (spec.md names no hard-fork schedule,
// so we pin the newest stable fork rt-evm itself targets).
func ChainConfig(chainID uint64) *gethparams.ChainConfig {
	id := new(big.Int).SetUint64(chainID)
	return &gethparams.ChainConfig{
		ChainID:             id,
		HomesteadBlock:      big.NewInt(0),
		EIP150Block:         big.NewInt(0),
		EIP155Block:         big.NewInt(0),
		EIP158Block:         big.NewInt(0),
		ByzantiumBlock:      big.NewInt(0),
		ConstantinopleBlock: big.NewInt(0),
		PetersburgBlock:     big.NewInt(0),
		IstanbulBlock:       big.NewInt(0),
		MuirGlacierBlock:    big.NewInt(0),
		BerlinBlock:         big.NewInt(0),
		LondonBlock:         big.NewInt(0),
	}
}

// Context carries the per-block environment the EVM needs: the
// proposer, timestamp, gas limit and base fee of the block being
// built or queried against, plus a resolver for BLOCKHASH.
type Context struct {
	ChainID       uint64
	BlockNumber   uint64
	Timestamp     uint64
	Coinbase      common.Address
	GasLimit      uint64
	BaseFee       *big.Int
	GetHash       func(number uint64) common.Hash
}

func (c Context) blockContext() gethcore.BlockContext {
	return gethcore.BlockContext{
		CanTransfer: func(db gethcore.StateDB, addr common.Address, amount *uint256.Int) bool {
			return db.GetBalance(addr).Cmp(amount) >= 0
		},
		Transfer: func(db gethcore.StateDB, from, to common.Address, amount *uint256.Int) {
			db.SubBalance(from, amount, 0)
			db.AddBalance(to, amount, 0)
		},
		GetHash:     c.GetHash,
		Coinbase:    c.Coinbase,
		GasLimit:    c.GasLimit,
		BlockNumber: new(big.Int).SetUint64(c.BlockNumber),
		Time:        c.Timestamp,
		Difficulty:  new(big.Int),
		BaseFee:     c.BaseFee,
	}
}

// IntrinsicGas computes the minimum gas a transaction must supply
// before any opcode executes, per spec.md's GasCallTransaction /
// GasCreateTransaction constants.
func IntrinsicGas(tx types.UnsignedTransaction) uint64 {
	gas := params.GasCallTransaction
	if tx.Action().IsCreate() {
		gas = params.GasCreateTransaction
	}
	for _, b := range tx.Data() {
		if b == 0 {
			gas += 4
		} else {
			gas += 16
		}
	}
	return gas
}

// Call runs a read-only query (eth_call/eth_estimateGas): it never
// touches the sender's nonce or balance beyond what the EVM itself
// debits/credits within the call, and the caller discards the
// StateDB's account and storage changes (a query-path StateDB is
// throwaway); code deployed during the call has already reached the
// CodeStore through SetCode.
// UsedGas includes the intrinsic gas floor, matching Exec's gas_used
// = used + base accounting.
func Call(ctx Context, st *state.StateDB, from common.Address, tx types.UnsignedTransaction, gasLimit uint64) (*types.ExecResult, error) {
	cfg := ChainConfig(ctx.ChainID)
	rules := cfg.Rules(new(big.Int).SetUint64(ctx.BlockNumber), false, ctx.Timestamp)

	value, _ := uint256.FromBig(tx.Value())
	evm := gethcore.NewEVM(ctx.blockContext(), gethcore.TxContext{Origin: from, GasPrice: tx.GasPrice()}, st, cfg, gethcore.Config{})
	st.Prepare(rules, from, ctx.Coinbase, addrOf(tx.Action()), gethcore.ActivePrecompiles(rules), toGethAccessList(tx.AccessList()))

	base := IntrinsicGas(tx)
	execGas := uint64(0)
	if gasLimit > base {
		execGas = gasLimit - base
	}

	var (
		ret        []byte
		leftOver   uint64
		vmErr      error
		contractAd *common.Address
	)

	if tx.Action().IsCreate() {
		var addr common.Address
		ret, addr, leftOver, vmErr = evm.Create(gethcore.AccountRef(from), tx.Data(), execGas, value)
		contractAd = &addr
	} else {
		ret, leftOver, vmErr = evm.Call(gethcore.AccountRef(from), *tx.Action().To, tx.Data(), execGas, value)
	}

	used := base + (execGas - leftOver)
	result := &types.ExecResult{
		Succeeded:    vmErr == nil,
		UsedGas:      used,
		RetData:      ret,
		Logs:         st.Logs(),
		ContractAddr: contractAd,
	}
	if vmErr != nil {
		result.ExitReason = vmErr.Error()
	}
	return result, nil
}

// Exec runs one transaction as part of block production: it validates
// the nonce (charging MinTransactionGasLimit and returning a
// failed-but-valid receipt on mismatch, mirroring rt-evm's
// invalid-nonce handling), prepays gas_price*gas_limit, dispatches the
// call/create, applies state on success, refunds unused gas, and
// returns the ExecResult plus the new world-state root.
func Exec(ctx Context, st *state.StateDB, tx types.SignedTransaction) (*types.ExecResult, common.Hash, error) {
	unsigned := tx.Transaction.Unsigned
	from := tx.Sender

	if unsigned.GasLimit() < IntrinsicGas(unsigned) {
		return nil, common.Hash{}, ErrIntrinsicGas
	}

	gasPrice := unsigned.GasPrice()
	prepay := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(unsigned.GasLimit()))

	senderNonce := st.GetNonce(from)
	if unsigned.Nonce() != senderNonce {
		// Charge the minimum fee and advance the nonce by one anyway: a
		// synthetic failed receipt, matching rt-evm's invalid-nonce path.
		minFee := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(params.MinTransactionGasLimit))
		bal := st.GetBalance(from).ToBig()
		if bal.Cmp(minFee) >= 0 {
			amount, _ := uint256.FromBig(minFee)
			st.SubBalance(from, amount, 0)
		}
		st.SetNonce(from, senderNonce+1)
		root, err := st.Commit()
		if err != nil {
			return nil, common.Hash{}, err
		}
		reason := ErrNonceTooLow
		if unsigned.Nonce() > senderNonce {
			reason = ErrNonceTooHigh
		}
		return &types.ExecResult{
			Succeeded:  false,
			UsedGas:    params.MinTransactionGasLimit,
			FeeCost:    minFee,
			ExitReason: reason.Error(),
		}, root, nil
	}

	balance := st.GetBalance(from).ToBig()
	if balance.Cmp(new(big.Int).Add(prepay, unsigned.Value())) < 0 {
		return nil, common.Hash{}, ErrInsufficientBalance
	}
	prepayAmt, _ := uint256.FromBig(prepay)
	st.SubBalance(from, prepayAmt, 0)
	if !unsigned.Action().IsCreate() {
		// evm.Create advances the nonce itself, after deriving the
		// contract address from the current one.
		st.SetNonce(from, senderNonce+1)
	}

	cfg := ChainConfig(ctx.ChainID)
	rules := cfg.Rules(new(big.Int).SetUint64(ctx.BlockNumber), false, ctx.Timestamp)
	value, _ := uint256.FromBig(unsigned.Value())

	evm := gethcore.NewEVM(ctx.blockContext(), gethcore.TxContext{Origin: from, GasPrice: gasPrice}, st, cfg, gethcore.Config{})
	st.Prepare(rules, from, ctx.Coinbase, addrOf(unsigned.Action()), gethcore.ActivePrecompiles(rules), toGethAccessList(unsigned.AccessList()))

	snapshot := st.Snapshot()
	logStart := len(st.Logs())

	var (
		ret        []byte
		leftOver   uint64
		vmErr      error
		contractAd *common.Address
	)

	gasLimit := unsigned.GasLimit() - IntrinsicGas(unsigned)
	if unsigned.Action().IsCreate() {
		st.CreateContract(crypto.CreateAddress(from, senderNonce))
		var addr common.Address
		ret, addr, leftOver, vmErr = evm.Create(gethcore.AccountRef(from), unsigned.Data(), gasLimit, value)
		contractAd = &addr
	} else {
		ret, leftOver, vmErr = evm.Call(gethcore.AccountRef(from), *unsigned.Action().To, unsigned.Data(), gasLimit, value)
	}

	if vmErr != nil {
		st.RevertToSnapshot(snapshot)
	}
	// Reverting a failed create also unwinds evm.Create's nonce bump;
	// either way the sender's nonce ends one past senderNonce.
	st.SetNonce(from, senderNonce+1)

	// gasLimit handed to the EVM already had intrinsic gas subtracted,
	// so leftOver is denominated against the full gas_limit budget.
	totalUsed := unsigned.GasLimit() - leftOver
	refund := new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(unsigned.GasLimit()-totalUsed))
	refundAmt, _ := uint256.FromBig(refund)
	st.AddBalance(from, refundAmt, 0)

	root, err := st.Commit()
	if err != nil {
		return nil, common.Hash{}, err
	}

	result := &types.ExecResult{
		Succeeded:    vmErr == nil,
		UsedGas:      totalUsed,
		FeeCost:      new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(totalUsed)),
		RetData:      ret,
		Logs:         st.Logs()[logStart:],
		ContractAddr: contractAd,
	}
	if vmErr != nil {
		result.ExitReason = vmErr.Error()
	}
	return result, root, nil
}

func addrOf(action types.TransactionAction) *common.Address { return action.To }

func toGethAccessList(al types.AccessList) gethtypes.AccessList {
	if len(al) == 0 {
		return nil
	}
	out := make(gethtypes.AccessList, len(al))
	for i, a := range al {
		out[i] = gethtypes.AccessTuple{Address: a.Address, StorageKeys: a.StorageKeys}
	}
	return out
}
