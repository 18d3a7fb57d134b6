package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"rentpool/config"
	"rentpool/crypto"
	"rentpool/gateway/middleware"
	"rentpool/gateway/routes"
	"rentpool/observability/logging"
	"rentpool/rpc"
	"rentpool/storage"
)

// moduleAccount derives a deterministic address for a protocol-owned account
// from its name. The accounts have no known private key.
func moduleAccount(prefix crypto.AddressPrefix, name string) crypto.Address {
	digest := ethcrypto.Keccak256([]byte("rentpool/account/" + name))
	return crypto.MustNewAddress(prefix, digest[12:])
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("RENTPOOL_ENV"))
	logger := logging.Setup("rentpoold", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	node, err := buildNode(cfg, db, logger)
	if err != nil {
		logger.Error("Failed to assemble node", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.ServiceManifest != "" {
		if err := node.applyManifest(cfg.ServiceManifest); err != nil {
			logger.Error("Failed to apply bootstrap manifest", slog.Any("error", err))
			os.Exit(1)
		}
	}

	rpcServer := rpc.NewServer(node.engine, logger)
	rpcServer.SetPauses(node.pauses)
	rpcServer.SetReceipts(node.receipts)
	go func() {
		if err := rpcServer.Start(cfg.RPCAddress); err != nil {
			logger.Error("JSON-RPC server stopped", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	limiter := middleware.NewRateLimiter(map[string]middleware.RateLimit{
		"rpc":   {RequestsPerMinute: cfg.RPCRequestsPerMinute, Burst: 20},
		"views": {RequestsPerMinute: cfg.ViewRequestsPerMinute, Burst: 50},
	}, logger)
	handler := routes.New(routes.Config{
		Engine:      node.engine,
		RPCHandler:  rpcServer.Handler(),
		RateLimiter: limiter,
		CORS:        middleware.CORSConfig{},
	})

	logger.Info("starting gateway", "addr", cfg.ListenAddress)
	if err := listenAndServe(cfg.ListenAddress, handler); err != nil {
		logger.Error("gateway stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
