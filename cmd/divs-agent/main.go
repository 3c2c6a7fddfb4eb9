package main

import (
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/urfave/cli/v2"

	"github.com/divs-identity/divs-agent/api/identityhandler"
	"github.com/divs-identity/divs-agent/api/ownerhandler"
	"github.com/divs-identity/divs-agent/api/requesterhandler"
	"github.com/divs-identity/divs-agent/cmd/flags"
	"github.com/divs-identity/divs-agent/common"
	"github.com/divs-identity/divs-agent/httpserver"
	"github.com/divs-identity/divs-agent/metrics"
	"github.com/divs-identity/divs-agent/registry"
	"github.com/divs-identity/divs-agent/storage"
	"github.com/divs-identity/divs-agent/wallet"
	"github.com/divs-identity/divs-agent/workflow"
)

func main() {
	app := &cli.App{
		Name:  "divs-agent",
		Usage: "Serve the identity verification agent for one wallet",
		Flags: append([]cli.Flag{
			flags.RpcUrlFlag,
			flags.ChainIDFlag,
			flags.IdentityContractFlag,
			flags.RequestContractFlag,
			flags.PinnerFlag,
			flags.KeyFlag,
			flags.RedisUrlFlag,
			flags.ListenAddrFlag,
			flags.NetworkCheckIntervalFlag,
			flags.LogServiceFlagFn("divs-agent"),
		}, flags.CommonFlags...),
		Action: runAgent,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runAgent(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	identityAddr, requestAddr, err := flags.ContractAddresses(cCtx)
	if err != nil {
		return err
	}
	locations, err := flags.PinnerLocations(cCtx)
	if err != nil {
		return err
	}

	// Wallet
	key, err := wallet.NewKeyLoader().Load(ctx, cCtx.String(flags.KeyFlag.Name))
	if err != nil {
		logger.Error("Failed to load wallet key", "err", err)
		return err
	}
	chainID := big.NewInt(cCtx.Int64(flags.ChainIDFlag.Name))
	w, err := wallet.NewLocalWallet(key, chainID)
	if err != nil {
		return err
	}
	logger = logger.With("wallet", w.Address().Hex())

	// Chain
	rpcURL := cCtx.String(flags.RpcUrlFlag.Name)
	logger.Info("Connecting to Ethereum RPC", "address", rpcURL)
	ethClient, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		logger.Error("Failed to dial RPC", "err", err)
		return err
	}
	defer ethClient.Close()

	monitor := wallet.NewNetworkMonitor(ethClient, chainID, cCtx.Duration(flags.NetworkCheckIntervalFlag.Name), logger)
	if err := monitor.Check(ctx); err != nil {
		logger.Error("Refusing to start on this network", "err", err)
		return err
	}
	go monitor.Run(ctx)

	gateway, err := registry.NewOnchainGateway(ethClient, ethClient, identityAddr, requestAddr)
	if err != nil {
		return err
	}
	opts, err := w.TransactOpts(ctx)
	if err != nil {
		return err
	}
	gateway.SetTransactOpts(opts)
	gateway.SetWriteCheck(monitor.Err)

	// Storage
	metricsSrv, err := metrics.New(common.PackageName, cCtx.String(flags.MetricsAddrFlag.Name))
	if err != nil {
		return err
	}
	pinner, err := storage.NewPinnerFactory(logger, metricsSrv.Metrics).CreateMultiPinner(locations)
	if err != nil {
		logger.Error("Failed to configure pinning backends", "err", err)
		return err
	}

	// Workflow
	controllerOpts := []workflow.Option{workflow.WithMetrics(metricsSrv.Metrics)}
	if redisURL := cCtx.String(flags.RedisUrlFlag.Name); redisURL != "" {
		rdb, err := workflow.NewRedisClient(ctx, redisURL)
		if err != nil {
			logger.Error("Failed to connect to Redis", "err", err)
			return err
		}
		defer rdb.Close()
		controllerOpts = append(controllerOpts,
			workflow.WithGuard(workflow.NewRedisGuard(rdb, workflow.DefaultGuardTTL)),
			workflow.WithJournal(workflow.NewRedisJournal(rdb, workflow.DefaultJournalTTL)),
		)
		logger.Info("Using Redis for in-flight guard and journal")
	}

	controller := workflow.NewController(logger, gateway, pinner, w, controllerOpts...)
	requester := workflow.NewRequester(logger, gateway, pinner, w, metricsSrv.Metrics)
	registrar := workflow.NewRegistrar(logger, gateway, pinner, w, metricsSrv.Metrics)

	cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flags.ListenAddrFlag.Name))
	server, err := httpserver.New(cfg, metricsSrv,
		ownerhandler.NewHandler(controller, logger),
		requesterhandler.NewHandler(requester, logger),
		identityhandler.NewHandler(registrar, logger),
	)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}
	server.AddReadinessCheck("network", monitor.Err)

	if _, err := controller.LoadRequests(ctx); err != nil {
		logger.Warn("Initial request load failed", "err", err)
	}

	server.RunInBackground()

	logger.Info("Server is running, press Ctrl+C to stop")
	<-ctx.Done()
	logger.Info("Shutdown signal received")

	server.Shutdown()
	logger.Info("Server shutdown complete")
	return nil
}
