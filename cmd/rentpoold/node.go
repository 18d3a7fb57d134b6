package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"rentpool/config"
	"rentpool/core/events"
	"rentpool/crypto"
	"rentpool/native/bank"
	nativecommon "rentpool/native/common"
	"rentpool/native/convert"
	"rentpool/native/rental"
	"rentpool/state"
	"rentpool/storage"
)

// node bundles the engine with the collaborators it was wired against.
type node struct {
	engine    *rental.Engine
	ledger    *bank.Ledger
	receipts  *bank.Receipts
	converter *convert.Engine
	manager   *state.Manager
	pauses    *nativecommon.Pauses
	logger    *slog.Logger
}

func buildNode(cfg *config.Config, db storage.Database, logger *slog.Logger) (*node, error) {
	owner, err := crypto.DecodeAddress(cfg.OwnerAddress)
	if err != nil {
		return nil, fmt.Errorf("node: invalid owner address: %w", err)
	}

	moduleAddr := moduleAccount(crypto.VaultPrefix, "module")
	vaultAddr := moduleAccount(crypto.VaultPrefix, "fee-vault")

	manager := state.NewManager(db)
	ledger := bank.NewLedger(manager)
	receipts := bank.NewReceipts(manager)
	// Conversions settle against the module's own holdings: the paid asset is
	// burned out of module custody and the pool asset minted in its place.
	converter := convert.NewEngine(ledger, moduleAddr)

	engine, err := rental.NewEngine(moduleAddr, vaultAddr, cfg.Rental)
	if err != nil {
		return nil, err
	}
	engine.SetState(manager)
	engine.SetTokenLedger(ledger)
	engine.SetReceiptRegistry(receipts)
	engine.SetConverter(converter)
	engine.SetEmitter(events.NewLogEmitter(logger))
	pauses := nativecommon.NewPauses()
	engine.SetPauses(pauses)
	engine.SetOwner(owner)
	// The daemon has no block producer, so logical height follows the wall
	// clock: liquidity added in one second becomes removable the next.
	engine.SetHeightSource(func() uint64 { return uint64(time.Now().Unix()) })

	collector := owner
	if cfg.CollectorAddress != "" {
		collector, err = crypto.DecodeAddress(cfg.CollectorAddress)
		if err != nil {
			return nil, fmt.Errorf("node: invalid collector address: %w", err)
		}
	}
	engine.SetCollector(collector)

	// Receipt transfers between holders respect the maturity freeze.
	receipts.SetAuthorizer(engine)

	return &node{
		engine:    engine,
		ledger:    ledger,
		receipts:  receipts,
		converter: converter,
		manager:   manager,
		pauses:    pauses,
		logger:    logger,
	}, nil
}

// applyManifest seeds the catalog, account balances and conversion rates from
// the bootstrap document. Catalog entries are only registered against an
// empty catalog so restarts are idempotent.
func (n *node) applyManifest(path string) error {
	manifest, err := config.LoadManifest(path)
	if err != nil {
		return err
	}

	for _, seed := range manifest.Rates {
		rate, err := seed.Ratio()
		if err != nil {
			return err
		}
		if err := n.converter.SetRate(seed.From, seed.To, rate); err != nil {
			return err
		}
	}

	for _, seed := range manifest.Accounts {
		amount, err := seed.Amount()
		if err != nil {
			return err
		}
		addr, err := crypto.DecodeAddress(seed.Address)
		if err != nil {
			return fmt.Errorf("manifest: account %s: %w", seed.Address, err)
		}
		existing, err := n.ledger.BalanceOf(seed.Token, addr)
		if err != nil {
			return err
		}
		if existing.Sign() > 0 {
			continue
		}
		if amount.Sign() == 0 {
			continue
		}
		if err := n.ledger.Mint(seed.Token, addr, amount); err != nil {
			return err
		}
	}

	pool, err := n.engine.PoolSnapshot()
	if err != nil {
		return err
	}
	if pool.ServiceCount > 0 {
		return nil
	}
	owner := n.engine.Owner()
	for _, seed := range manifest.Services {
		svc, err := seed.Service()
		if err != nil {
			return err
		}
		index, err := n.engine.RegisterService(owner, svc)
		if err != nil {
			return err
		}
		n.logger.Info("registered service", "index", index, "name", svc.Name)
	}
	return nil
}

func listenAndServe(addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
