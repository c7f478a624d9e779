// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.
//
// StateDB is the executor backend adapter: a journaled overlay over
// the world-state trie that implements go-ethereum/core/vm.StateDB so
// core/executor can hand it straight to vm.NewEVM. It plays the role
// of rt-evm's RTEvmExecutorAdapter (executor/src/adapter/mod.rs),
// which wraps the same MptStore-backed world state behind the `evm`
// crate's Backend/ApplyBackend traits.

package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/ferrochain/evmcore/core/types"
	"github.com/ferrochain/evmcore/trie"
)

// CodeStore resolves and stores contract bytecode by its keccak256
// hash, shared across all accounts (deduplicated exactly like
// go-ethereum's code table).
type CodeStore interface {
	GetCode(hash common.Hash) ([]byte, error)
	PutCode(hash common.Hash, code []byte) error
}

// BlockHashes resolves a recent block's hash by number, backing the
// BLOCKHASH opcode within the 256-block window (params.BlockHashWindow).
type BlockHashes interface {
	GetHashByNumber(number uint64) (common.Hash, bool)
}

type journalEntry interface {
	revert(s *StateDB)
}

type dirtyAccount struct {
	addr    common.Address
	account types.Account
	exists  bool // whether the account existed at all before this entry
}

func (e dirtyAccount) revert(s *StateDB) {
	if e.exists {
		s.accounts[e.addr] = e.account
	} else {
		delete(s.accounts, e.addr)
	}
}

type dirtyStorage struct {
	addr  common.Address
	key   common.Hash
	value common.Hash
	had   bool
}

func (e dirtyStorage) revert(s *StateDB) {
	slots := s.storage[e.addr]
	if e.had {
		slots[e.key] = e.value
	} else {
		delete(slots, e.key)
	}
}

type refundChange struct{ prev uint64 }

func (e refundChange) revert(s *StateDB) { s.refund = e.prev }

type destructChange struct {
	addr common.Address
	had  bool
}

func (e destructChange) revert(s *StateDB) {
	if e.had {
		s.destructed[e.addr] = struct{}{}
	} else {
		delete(s.destructed, e.addr)
	}
}

type logChange struct{}

func (e logChange) revert(s *StateDB) { s.logs = s.logs[:len(s.logs)-1] }

// StateDB is a per-block (or per-call) mutable view over the
// world-state trie: reads fall through to the trie and are cached,
// writes land in an in-memory overlay journaled for Snapshot/
// RevertToSnapshot, and Commit writes the overlay back into the trie.
type StateDB struct {
	worldTrie *trie.MutableHandle
	code      CodeStore
	hashes    BlockHashes
	rules     params.Rules

	accounts map[common.Address]types.Account
	storage  map[common.Address]map[common.Hash]common.Hash
	committedStorage map[common.Address]map[common.Hash]common.Hash

	destructed map[common.Address]struct{}
	created    map[common.Address]struct{}

	transient map[common.Address]map[common.Hash]common.Hash

	accessAddrs map[common.Address]struct{}
	accessSlots map[common.Address]map[common.Hash]struct{}

	refund uint64
	logs   []*gethtypes.Log

	journal []journalEntry

	openStorage func(addr common.Address, root common.Hash) (*trie.MutableHandle, error)
	storageHandles map[common.Address]*trie.MutableHandle
}

// New builds a StateDB reading through worldTrie. openStorage opens a
// mutable handle onto one account's per-address storage trie, keyed
// by its current StorageRoot; core/executor supplies this bound to
// its trie.Store so StateDB never needs a direct reference to the
// store itself.
func New(worldTrie *trie.MutableHandle, code CodeStore, hashes BlockHashes, rules params.Rules, openStorage func(addr common.Address, root common.Hash) (*trie.MutableHandle, error)) *StateDB {
	return &StateDB{
		worldTrie:        worldTrie,
		code:             code,
		hashes:           hashes,
		rules:            rules,
		accounts:         make(map[common.Address]types.Account),
		storage:          make(map[common.Address]map[common.Hash]common.Hash),
		committedStorage: make(map[common.Address]map[common.Hash]common.Hash),
		destructed:       make(map[common.Address]struct{}),
		created:          make(map[common.Address]struct{}),
		transient:        make(map[common.Address]map[common.Hash]common.Hash),
		accessAddrs:      make(map[common.Address]struct{}),
		accessSlots:      make(map[common.Address]map[common.Hash]struct{}),
		openStorage:      openStorage,
		storageHandles:   make(map[common.Address]*trie.MutableHandle),
	}
}

func (s *StateDB) loadAccount(addr common.Address) types.Account {
	if acc, ok := s.accounts[addr]; ok {
		return acc
	}
	raw, err := s.worldTrie.Get(addr.Bytes())
	if err != nil || raw == nil {
		acc := types.EmptyAccount()
		s.accounts[addr] = acc
		return acc
	}
	acc, err := types.DecodeAccount(raw)
	if err != nil {
		acc = types.EmptyAccount()
	}
	s.accounts[addr] = acc
	return acc
}

func (s *StateDB) setAccount(addr common.Address, acc types.Account) {
	prev := s.loadAccount(addr)
	s.journal = append(s.journal, dirtyAccount{addr: addr, account: prev, exists: true})
	s.accounts[addr] = acc
}

func (s *StateDB) storageSlots(addr common.Address) map[common.Hash]common.Hash {
	if m, ok := s.storage[addr]; ok {
		return m
	}
	m := make(map[common.Hash]common.Hash)
	s.storage[addr] = m
	return m
}

// CreateAccount ensures addr has an entry in the overlay, matching
// go-ethereum's hook invoked before a CREATE writes an account's
// initial nonce/balance.
func (s *StateDB) CreateAccount(addr common.Address) {
	existing := s.loadAccount(addr)
	s.journal = append(s.journal, dirtyAccount{addr: addr, account: existing, exists: true})
	acc := types.EmptyAccount()
	acc.Balance = existing.Balance
	s.accounts[addr] = acc
}

// CreateContract marks addr as freshly created within this
// transaction, the EIP-6780 distinction SELFDESTRUCT needs.
func (s *StateDB) CreateContract(addr common.Address) {
	s.created[addr] = struct{}{}
}

func (s *StateDB) SubBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) {
	acc := s.loadAccount(addr)
	bal := acc.Balance
	if bal == nil {
		bal = new(big.Int)
	}
	next := new(big.Int).Sub(bal, amount.ToBig())
	acc.Balance = next
	s.setAccount(addr, acc)
}

func (s *StateDB) AddBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) {
	acc := s.loadAccount(addr)
	bal := acc.Balance
	if bal == nil {
		bal = new(big.Int)
	}
	next := new(big.Int).Add(bal, amount.ToBig())
	acc.Balance = next
	s.setAccount(addr, acc)
}

func (s *StateDB) GetBalance(addr common.Address) *uint256.Int {
	acc := s.loadAccount(addr)
	bal := acc.Balance
	if bal == nil {
		return new(uint256.Int)
	}
	v, _ := uint256.FromBig(bal)
	return v
}

func (s *StateDB) GetNonce(addr common.Address) uint64 { return s.loadAccount(addr).Nonce }

func (s *StateDB) SetNonce(addr common.Address, nonce uint64) {
	acc := s.loadAccount(addr)
	acc.Nonce = nonce
	s.setAccount(addr, acc)
}

func (s *StateDB) GetCodeHash(addr common.Address) common.Hash { return s.loadAccount(addr).CodeHash }

func (s *StateDB) GetCode(addr common.Address) []byte {
	hash := s.GetCodeHash(addr)
	if hash == types.NilHash {
		return nil
	}
	code, err := s.code.GetCode(hash)
	if err != nil {
		return nil
	}
	return code
}

func (s *StateDB) SetCode(addr common.Address, code []byte) {
	hash := common.BytesToHash(crypto256(code))
	if err := s.code.PutCode(hash, code); err != nil {
		return
	}
	acc := s.loadAccount(addr)
	acc.CodeHash = hash
	s.setAccount(addr, acc)
}

func (s *StateDB) GetCodeSize(addr common.Address) int { return len(s.GetCode(addr)) }

func (s *StateDB) AddRefund(amount uint64) {
	s.journal = append(s.journal, refundChange{prev: s.refund})
	s.refund += amount
}

func (s *StateDB) SubRefund(amount uint64) {
	s.journal = append(s.journal, refundChange{prev: s.refund})
	if amount > s.refund {
		panic(fmt.Sprintf("evmcore/state: refund underflow: %d > %d", amount, s.refund))
	}
	s.refund -= amount
}

func (s *StateDB) GetRefund() uint64 { return s.refund }

func (s *StateDB) GetCommittedState(addr common.Address, key common.Hash) common.Hash {
	if slots, ok := s.committedStorage[addr]; ok {
		if v, ok := slots[key]; ok {
			return v
		}
	}
	acc := s.loadAccount(addr)
	if acc.StorageRoot == types.NilHash {
		return common.Hash{}
	}
	handle, err := s.storageHandle(addr, acc.StorageRoot)
	if err != nil {
		return common.Hash{}
	}
	raw, err := handle.Get(key.Bytes())
	if err != nil || raw == nil {
		s.rememberCommitted(addr, key, common.Hash{})
		return common.Hash{}
	}
	v := common.BytesToHash(raw)
	s.rememberCommitted(addr, key, v)
	return v
}

func (s *StateDB) rememberCommitted(addr common.Address, key, value common.Hash) {
	m, ok := s.committedStorage[addr]
	if !ok {
		m = make(map[common.Hash]common.Hash)
		s.committedStorage[addr] = m
	}
	m[key] = value
}

func (s *StateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	if slots, ok := s.storage[addr]; ok {
		if v, ok := slots[key]; ok {
			return v
		}
	}
	return s.GetCommittedState(addr, key)
}

func (s *StateDB) SetState(addr common.Address, key, value common.Hash) {
	slots := s.storageSlots(addr)
	prev, had := slots[key]
	s.journal = append(s.journal, dirtyStorage{addr: addr, key: key, value: prev, had: had})
	slots[key] = value
}

// GetStorageRoot returns the account's last-committed storage root;
// it does not reflect uncommitted writes in this transaction's
// overlay, matching go-ethereum's semantics for this accessor.
func (s *StateDB) GetStorageRoot(addr common.Address) common.Hash {
	return s.loadAccount(addr).StorageRoot
}

func (s *StateDB) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	if m, ok := s.transient[addr]; ok {
		return m[key]
	}
	return common.Hash{}
}

func (s *StateDB) SetTransientState(addr common.Address, key, value common.Hash) {
	m, ok := s.transient[addr]
	if !ok {
		m = make(map[common.Hash]common.Hash)
		s.transient[addr] = m
	}
	m[key] = value
}

func (s *StateDB) SelfDestruct(addr common.Address) {
	_, had := s.destructed[addr]
	s.journal = append(s.journal, destructChange{addr: addr, had: had})
	s.destructed[addr] = struct{}{}
	acc := s.loadAccount(addr)
	acc.Balance = new(big.Int)
	s.setAccount(addr, acc)
}

func (s *StateDB) HasSelfDestructed(addr common.Address) bool {
	_, ok := s.destructed[addr]
	return ok
}

// Selfdestruct6780 applies EIP-6780: SELFDESTRUCT only actually
// destroys the account if it was created earlier in this same
// transaction.
func (s *StateDB) Selfdestruct6780(addr common.Address) {
	if _, created := s.created[addr]; created {
		s.SelfDestruct(addr)
		return
	}
	acc := s.loadAccount(addr)
	acc.Balance = new(big.Int)
	s.setAccount(addr, acc)
}

func (s *StateDB) Exist(addr common.Address) bool {
	if _, ok := s.destructed[addr]; ok {
		return true
	}
	acc := s.loadAccount(addr)
	return !acc.IsEmpty() || s.accountTouched(addr)
}

func (s *StateDB) accountTouched(addr common.Address) bool {
	_, ok := s.accounts[addr]
	return ok
}

func (s *StateDB) Empty(addr common.Address) bool {
	if _, ok := s.destructed[addr]; ok {
		return true
	}
	return s.loadAccount(addr).IsEmpty()
}

func (s *StateDB) AddressInAccessList(addr common.Address) bool {
	_, ok := s.accessAddrs[addr]
	return ok
}

func (s *StateDB) SlotInAccessList(addr common.Address, slot common.Hash) (bool, bool) {
	addrOK := s.AddressInAccessList(addr)
	slots, ok := s.accessSlots[addr]
	if !ok {
		return addrOK, false
	}
	_, slotOK := slots[slot]
	return addrOK, slotOK
}

func (s *StateDB) AddAddressToAccessList(addr common.Address) { s.accessAddrs[addr] = struct{}{} }

func (s *StateDB) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	s.accessAddrs[addr] = struct{}{}
	slots, ok := s.accessSlots[addr]
	if !ok {
		slots = make(map[common.Hash]struct{})
		s.accessSlots[addr] = slots
	}
	slots[slot] = struct{}{}
}

// Prepare seeds the access list per EIP-2929/2930/3651 ahead of
// executing a transaction.
func (s *StateDB) Prepare(rules params.Rules, sender, coinbase common.Address, dest *common.Address, precompiles []common.Address, txAccesses gethtypes.AccessList) {
	s.AddAddressToAccessList(sender)
	if dest != nil {
		s.AddAddressToAccessList(*dest)
	}
	for _, p := range precompiles {
		s.AddAddressToAccessList(p)
	}
	for _, a := range txAccesses {
		s.AddAddressToAccessList(a.Address)
		for _, k := range a.StorageKeys {
			s.AddSlotToAccessList(a.Address, k)
		}
	}
	if rules.IsShanghai {
		s.AddAddressToAccessList(coinbase)
	}
}

// Snapshot returns an id identifying the current journal length; the
// matching RevertToSnapshot unwinds every entry appended since.
func (s *StateDB) Snapshot() int { return len(s.journal) }

func (s *StateDB) RevertToSnapshot(id int) {
	for i := len(s.journal) - 1; i >= id; i-- {
		s.journal[i].revert(s)
	}
	s.journal = s.journal[:id]
}

func (s *StateDB) AddLog(log *gethtypes.Log) {
	s.journal = append(s.journal, logChange{})
	s.logs = append(s.logs, log)
}

func (s *StateDB) AddPreimage(common.Hash, []byte) {}

func (s *StateDB) GetLogs(common.Hash, uint64, common.Hash) []*gethtypes.Log { return s.logs }

// Logs returns every log recorded so far, converted to this module's
// Log type.
func (s *StateDB) Logs() []types.Log {
	out := make([]types.Log, len(s.logs))
	for i, l := range s.logs {
		out[i] = types.Log{Address: l.Address, Topics: l.Topics, Data: l.Data}
	}
	return out
}

// GetBlockHash returns the hash the BlockHashes source records for
// number, or the zero hash for an unknown number. It applies no
// 256-block window itself; blockmgr's GetHash resolver for the EVM
// block context applies that window.
func (s *StateDB) GetBlockHash(number uint64) common.Hash {
	if h, ok := s.hashes.GetHashByNumber(number); ok {
		return h
	}
	return common.Hash{}
}

// storageHandle opens (and caches for the lifetime of this StateDB) a
// mutable handle onto addr's per-account storage trie, keyed by the
// address so unrelated accounts' storage never shares a backend_key.
func (s *StateDB) storageHandle(addr common.Address, root common.Hash) (*trie.MutableHandle, error) {
	if h, ok := s.storageHandles[addr]; ok {
		return h, nil
	}
	if s.openStorage == nil {
		return nil, fmt.Errorf("evmcore/state: no storage opener configured")
	}
	h, err := s.openStorage(addr, root)
	if err != nil {
		return nil, err
	}
	s.storageHandles[addr] = h
	return h, nil
}

// Commit writes every dirty account's storage slots into its
// per-account trie, updates the corresponding account's StorageRoot/
// CodeHash/Nonce/Balance in the world-state trie, deletes
// self-destructed accounts, and returns the new world-state root. It
// must be called after the EVM call completes and before the result
// is considered final.
func (s *StateDB) Commit() (common.Hash, error) {
	for addr := range s.destructed {
		if err := s.worldTrie.Delete(addr.Bytes()); err != nil {
			return common.Hash{}, err
		}
		delete(s.accounts, addr)
	}

	for addr, slots := range s.storage {
		if _, destructed := s.destructed[addr]; destructed {
			continue
		}
		if len(slots) == 0 {
			continue
		}
		acc := s.loadAccount(addr)
		handle, err := s.storageHandle(addr, acc.StorageRoot)
		if err != nil {
			return common.Hash{}, err
		}
		for key, value := range slots {
			if value == (common.Hash{}) {
				if err := handle.Delete(key.Bytes()); err != nil {
					return common.Hash{}, err
				}
				continue
			}
			if err := handle.Update(key.Bytes(), value.Bytes()); err != nil {
				return common.Hash{}, err
			}
		}
		acc.StorageRoot = handle.Root()
		s.accounts[addr] = acc
	}

	for addr, acc := range s.accounts {
		if _, destructed := s.destructed[addr]; destructed {
			continue
		}
		if acc.IsEmpty() {
			if err := s.worldTrie.Delete(addr.Bytes()); err != nil {
				return common.Hash{}, err
			}
			continue
		}
		encoded, err := acc.Encode()
		if err != nil {
			return common.Hash{}, err
		}
		if err := s.worldTrie.Update(addr.Bytes(), encoded); err != nil {
			return common.Hash{}, err
		}
	}

	return s.worldTrie.Root(), nil
}

func crypto256(code []byte) []byte {
	h := crypto.Keccak256Hash(code)
	return h[:]
}
