package launcher

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/sirupsen/logrus"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/peregrinenet/go-peregrine/blockchain"
	"github.com/peregrinenet/go-peregrine/chainstore"
	"github.com/peregrinenet/go-peregrine/flags"
	"github.com/peregrinenet/go-peregrine/genesis"
	"github.com/peregrinenet/go-peregrine/kvstore"
	"github.com/peregrinenet/go-peregrine/ledger"
	"github.com/peregrinenet/go-peregrine/peregrine"
)

var app = flags.NewApp()

func init() {
	app.Flags = append(app.Flags, flags.CommonFlags()...)
	app.Flags = append(app.Flags, flags.NetworkFlags()...)
	app.Commands = []cli.Command{
		{
			Name:      "init",
			Usage:     "Initialize a chain database from a genesis description",
			ArgsUsage: "[<genesis.json>]",
			Action:    initChain,
		},
		{
			Name:   "head",
			Usage:  "Print the current head of the chain database",
			Action: printHead,
		},
		{
			Name:      "account",
			Usage:     "Print the balance of an account at the head state",
			ArgsUsage: "<address>",
			Action:    printAccount,
		},
	}
	app.Action = func(ctx *cli.Context) error {
		return cli.ShowAppHelp(ctx)
	}
}

// Launch runs the CLI with the given process arguments.
func Launch(args []string) error {
	return app.Run(args)
}

func makeNode(ctx *cli.Context) (*Config, *kvstore.Store, error) {
	cfg, err := MakeConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := setupLogging(cfg.Logging); err != nil {
		return nil, nil, err
	}
	log.Root().SetHandler(log.LvlFilterHandler(
		log.Lvl(cfg.Logging.Verbosity), log.StreamHandler(os.Stderr, log.TerminalFormat(cfg.Logging.Color))))
	metrics.Enabled = cfg.Metrics

	store, err := kvstore.Open(cfg.ChainDataPath())
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func initChain(ctx *cli.Context) error {
	cfg, err := MakeConfig(ctx)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg.Logging); err != nil {
		return err
	}

	var g *genesis.Genesis
	if ctx.NArg() > 0 {
		g, err = genesis.LoadJSON(ctx.Args().First())
		if err != nil {
			return err
		}
	} else if cfg.Rules.NetworkID == peregrine.FakeNetworkID {
		g = genesis.FakeGenesis(cfg.FakeValidators, cfg.Rules)
	} else {
		return fmt.Errorf("network %q needs an explicit genesis file", cfg.Rules.Name)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.ChainDataPath()), 0700); err != nil {
		return err
	}
	store, err := kvstore.Open(cfg.ChainDataPath())
	if err != nil {
		return err
	}
	defer store.Close()

	b, err := g.Apply(store)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"network":    g.Rules.Name,
		"block":      b.Hash().Hex(),
		"state_root": b.StateRoot().Hex(),
		"validators": len(g.Validators),
	}).Info("chain initialized")
	return nil
}

func printHead(ctx *cli.Context) error {
	cfg, store, err := makeNode(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	bc, err := blockchain.New(store, cfg.Rules)
	if err != nil {
		return err
	}
	head := bc.Head()
	logrus.WithFields(logrus.Fields{
		"number":     head.Number(),
		"hash":       head.Hash().Hex(),
		"state_root": head.StateRoot().Hex(),
		"time":       head.Time(),
	}).Info("chain head")
	return nil
}

func printAccount(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one address argument")
	}
	if !common.IsHexAddress(ctx.Args().First()) {
		return fmt.Errorf("invalid address %q", ctx.Args().First())
	}
	addr := common.HexToAddress(ctx.Args().First())

	cfg, store, err := makeNode(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	bc, err := blockchain.New(store, cfg.Rules)
	if err != nil {
		return err
	}
	return bc.Snapshot(func(st *ledger.State, cs *chainstore.Store) error {
		acc, err := st.GetAccount(addr)
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"address": addr.Hex(),
			"type":    acc.Type(),
			"balance": acc.Balance(),
		}).Info("account")
		return nil
	})
}
