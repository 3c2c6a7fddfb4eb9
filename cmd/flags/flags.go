package flags

import (
	"fmt"
	"log/slog"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/divs-identity/divs-agent/api"
	"github.com/divs-identity/divs-agent/common"
	"github.com/divs-identity/divs-agent/interfaces"
)

// DefaultChainID is Polygon Amoy.
const DefaultChainID = 80002

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *api.HTTPServerConfig {
	metricsAddr := cCtx.String("metrics-addr")
	enablePprof := cCtx.Bool("pprof")
	drainDuration := time.Duration(cCtx.Int64("drain-seconds")) * time.Second

	return &api.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             5 * time.Minute,
	}
}

// ContractAddresses reads and validates the two registry addresses.
func ContractAddresses(cCtx *cli.Context) (identity, requests ethcommon.Address, err error) {
	for _, f := range []struct {
		name string
		dst  *ethcommon.Address
	}{
		{IdentityContractFlag.Name, &identity},
		{RequestContractFlag.Name, &requests},
	} {
		raw := cCtx.String(f.name)
		if !ethcommon.IsHexAddress(raw) {
			return identity, requests, fmt.Errorf("%w: --%s is not an address: %q", interfaces.ErrInvalidArgument, f.name, raw)
		}
		*f.dst = ethcommon.HexToAddress(raw)
	}
	return identity, requests, nil
}

// PinnerLocations parses every --pinner URI.
func PinnerLocations(cCtx *cli.Context) ([]interfaces.PinnerLocation, error) {
	uris := cCtx.StringSlice(PinnerFlag.Name)
	if len(uris) == 0 {
		return nil, fmt.Errorf("%w: at least one --%s is required", interfaces.ErrInvalidArgument, PinnerFlag.Name)
	}

	locations := make([]interfaces.PinnerLocation, 0, len(uris))
	for _, uri := range uris {
		location, err := interfaces.NewPinnerLocation(uri)
		if err != nil {
			return nil, err
		}
		locations = append(locations, location)
	}
	return locations, nil
}

var RpcUrlFlag = &cli.StringFlag{
	Name:    "rpc-url",
	Value:   "http://127.0.0.1:8545",
	Usage:   "JSON-RPC endpoint of the chain hosting the registries",
	EnvVars: []string{"DIVS_RPC_URL"},
}

var ChainIDFlag = &cli.Int64Flag{
	Name:    "chain-id",
	Value:   DefaultChainID,
	Usage:   "chain id the agent refuses to run against any other",
	EnvVars: []string{"DIVS_CHAIN_ID"},
}

var IdentityContractFlag = &cli.StringFlag{
	Name:     "identity-contract",
	Required: true,
	Usage:    "address of the Identity registry",
	EnvVars:  []string{"DIVS_IDENTITY_CONTRACT"},
}

var RequestContractFlag = &cli.StringFlag{
	Name:     "request-contract",
	Required: true,
	Usage:    "address of the DataRequest registry",
	EnvVars:  []string{"DIVS_REQUEST_CONTRACT"},
}

var PinnerFlag = &cli.StringSliceFlag{
	Name:    "pinner",
	Usage:   "pinning backend URI (pinata://, ipfs://, s3://, file://); repeat for mirrors, the first one is authoritative",
	EnvVars: []string{"DIVS_PINNERS"},
}

var KeyFlag = &cli.StringFlag{
	Name:    "key",
	Usage:   "wallet key source: hex key, keystore:///path or vault://host/mount/path",
	EnvVars: []string{"DIVS_KEY"},
}

var RedisUrlFlag = &cli.StringFlag{
	Name:    "redis-url",
	Usage:   "Redis URL for the shared in-flight guard and approval journal; in-memory when empty",
	EnvVars: []string{"DIVS_REDIS_URL"},
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	Usage:   "address to listen on for API",
	EnvVars: []string{"DIVS_LISTEN_ADDR"},
}

var NetworkCheckIntervalFlag = &cli.DurationFlag{
	Name:    "network-check-interval",
	Value:   30 * time.Second,
	Usage:   "how often to re-check the RPC chain id",
	EnvVars: []string{"DIVS_NETWORK_CHECK_INTERVAL"},
}

var AgentUrlFlag = &cli.StringFlag{
	Name:    "agent-url",
	Value:   "http://127.0.0.1:8080",
	Usage:   "base URL of the divs-agent API",
	EnvVars: []string{"DIVS_AGENT_URL"},
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics",
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
}
