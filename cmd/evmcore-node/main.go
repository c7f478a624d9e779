// Copyright (C) 2019-2026, Ferrochain Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// evmcore-node is a demo embedder driving the runtime standalone: it
// bootstraps or resumes persisted state, serves the JSON-RPC query
// surface, and produces a block on a fixed timer — the minimal host
// program this library is meant to be embedded inside, not a
// production node (no P2P, no consensus engine).
package main

import (
	"fmt"
	"math/big"
	"net/http"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"

	"github.com/ferrochain/evmcore/core/blockmgr"
	"github.com/ferrochain/evmcore/core/genesis"
	"github.com/ferrochain/evmcore/core/mempool"
	"github.com/ferrochain/evmcore/core/storage"
	"github.com/ferrochain/evmcore/core/types"
	"github.com/ferrochain/evmcore/kv"
	"github.com/ferrochain/evmcore/params"
	"github.com/ferrochain/evmcore/query"
	evmtrie "github.com/ferrochain/evmcore/trie"
)

const clientIdentifier = "evmcore-node"

var app = &cli.App{
	Name:  clientIdentifier,
	Usage: "embeddable EVM execution runtime demo host",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "config", Usage: "path to a YAML/TOML/JSON config file"},
		&cli.StringFlag{Name: "datadir", Value: "./evmcore-data", Usage: "base directory for persisted state"},
		&cli.Uint64Flag{Name: "chain-id", Value: 1337},
		&cli.DurationFlag{Name: "block-interval", Value: 2 * time.Second},
		&cli.StringFlag{Name: "rpc-addr", Value: "127.0.0.1:8545"},
	},
}

func init() {
	app.Action = run
	app.Before = func(ctx *cli.Context) error {
		log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, log.LevelInfo, true)))
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// config mirrors the flags above and is also populated from a viper
// config file when --config is supplied, the pattern the pack's
// viper-backed services use for flag/file precedence (flags win).
type config struct {
	DataDir       string
	ChainID       uint64
	BlockInterval time.Duration
	RPCAddr       string
	Proposer      common.Address
}

func loadConfig(cliCtx *cli.Context) (config, error) {
	cfg := config{
		DataDir:       cliCtx.String("datadir"),
		ChainID:       cliCtx.Uint64("chain-id"),
		BlockInterval: cliCtx.Duration("block-interval"),
		RPCAddr:       cliCtx.String("rpc-addr"),
	}
	if path := cliCtx.String("config"); path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return config{}, fmt.Errorf("evmcore-node: read config: %w", err)
		}
		if v.IsSet("datadir") && !cliCtx.IsSet("datadir") {
			cfg.DataDir = v.GetString("datadir")
		}
		if v.IsSet("chain_id") && !cliCtx.IsSet("chain-id") {
			cfg.ChainID = v.GetUint64("chain_id")
		}
		if v.IsSet("block_interval") && !cliCtx.IsSet("block-interval") {
			cfg.BlockInterval = v.GetDuration("block_interval")
		}
		if v.IsSet("rpc_addr") && !cliCtx.IsSet("rpc-addr") {
			cfg.RPCAddr = v.GetString("rpc_addr")
		}
	}
	return cfg, nil
}

func run(cliCtx *cli.Context) error {
	cfg, err := loadConfig(cliCtx)
	if err != nil {
		return err
	}

	newDB := func(key string) (kv.DB, error) {
		return kv.OpenLevelDB(cfg.DataDir + "/trie-" + sanitize(key))
	}
	store := evmtrie.NewStore(newDB, 0)

	status, err := genesis.Inspect(cfg.DataDir)
	if err != nil {
		return err
	}

	blockDB, err := kv.OpenLevelDB(cfg.DataDir + "/blocks")
	if err != nil {
		return err
	}
	st, err := storage.New(blockDB)
	if err != nil {
		return err
	}

	var head types.Header
	if status.IsCold() {
		worldTrie, err := store.Create(blockmgr.WorldStateBackendKey)
		if err != nil {
			return err
		}
		block, err := genesis.Bootstrap(cfg.DataDir, worldTrie, genesis.Config{
			ChainID:   cfg.ChainID,
			Timestamp: uint64(time.Now().Unix()),
		})
		if err != nil {
			return err
		}
		if err := st.PutBlock(block); err != nil {
			return err
		}
		head = block.Header
		log.Info("bootstrapped genesis", "hash", head.Hash(), "stateRoot", head.StateRoot)
	} else {
		number, ok := st.LatestNumber()
		if !ok {
			return fmt.Errorf("evmcore-node: warm state but no persisted blocks under %s", cfg.DataDir)
		}
		existing, err := st.GetHeaderByNumber(number)
		if err != nil {
			return err
		}
		head = *existing
		log.Info("resumed chain", "number", head.Number, "hash", head.Hash())
	}

	oracle := &nodeAccountOracle{store: store, storage: st}
	pool := mempool.New(mempool.DefaultConfig(), oracle, nil)
	pool.Start()
	defer pool.Stop()

	mgr := blockmgr.New(store, st, pool, cfg.ChainID, head)
	oracle.mgr = mgr
	adapter := query.New(st, pool, mgr, store, cfg.ChainID)
	svc := query.NewEthService(adapter, mgr, pool)
	handler, err := query.NewHandler(svc)
	if err != nil {
		return err
	}

	go func() {
		log.Info("serving JSON-RPC", "addr", cfg.RPCAddr)
		if err := http.ListenAndServe(cfg.RPCAddr, handler); err != nil {
			log.Error("rpc server stopped", "err", err)
		}
	}()

	ticker := time.NewTicker(cfg.BlockInterval)
	defer ticker.Stop()
	for range ticker.C {
		block, receipts, err := mgr.ProduceBlock(cfg.Proposer, uint64(time.Now().Unix()), 0)
		if err != nil {
			log.Error("produce block failed", "err", err)
			continue
		}
		log.Info("produced block", "number", block.Header.Number, "txs", len(block.Transactions), "receipts", len(receipts))
	}
	return nil
}

// nodeAccountOracle answers the mempool's tx_pre_check queries (nonce,
// balance, already-persisted) against the live chain head's world
// state, the balance/storage oracle the mempool needs to be wired to
// rather than be a bare nonce source.
type nodeAccountOracle struct {
	store   *evmtrie.Store
	storage *storage.Storage
	mgr     *blockmgr.BlockMgmt
}

func (o *nodeAccountOracle) account(addr common.Address) (types.Account, bool) {
	var header types.Header
	if o.mgr != nil {
		header = o.mgr.Head()
	}
	handle, err := o.store.ReadOnly(blockmgr.WorldStateBackendKey, header.StateRoot)
	if err != nil {
		return types.Account{}, false
	}
	raw, err := handle.Get(addr.Bytes())
	if err != nil || raw == nil {
		return types.Account{}, false
	}
	acc, err := types.DecodeAccount(raw)
	if err != nil {
		return types.Account{}, false
	}
	return acc, true
}

// NonceOf implements mempool.AccountOracle.
func (o *nodeAccountOracle) NonceOf(addr common.Address) uint64 {
	acc, ok := o.account(addr)
	if !ok {
		return 0
	}
	return acc.Nonce
}

// BalanceOf implements mempool.AccountOracle.
func (o *nodeAccountOracle) BalanceOf(addr common.Address) *big.Int {
	acc, ok := o.account(addr)
	if !ok || acc.Balance == nil {
		return new(big.Int)
	}
	return acc.Balance
}

// IsPersisted implements mempool.AccountOracle.
func (o *nodeAccountOracle) IsPersisted(hash common.Hash) bool {
	tx, _, err := o.storage.GetTransactionByHash(hash)
	return err == nil && tx != nil
}

func sanitize(key string) string {
	out := make([]byte, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c == ':' || c == '/' {
			c = '_'
		}
		out[i] = c
	}
	return string(out)
}
